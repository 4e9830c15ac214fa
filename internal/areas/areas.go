// 包 areas：切分结果的瓦片与瓦片列表，负责编号、重叠外扩与文件格式
package areas

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"tile-splitter/internal/collections"
	"tile-splitter/internal/geo"
)

// MaxMapID：编号索引以 int32 为键，更大的编号无法区分
const MaxMapID = math.MaxInt32

// ValidMapID：0 表示尚未编号
func ValidMapID(id int) bool {
	return id >= 0 && id <= MaxMapID
}

// SubArea：一个瓦片
// 约束：Bounds 与 Size 由切分器填写；MapID 由调用方在切分后顺序分配；
// 重叠边界只在写出前由 InitForWrite 计算一次，之后不再变化
type SubArea struct {
	Bounds geo.Area
	MapID  int
	Size   int64

	overlap    geo.Area
	overlapSet bool
	writing    bool
}

func NewSubArea(bounds geo.Area, size int64) *SubArea {
	return &SubArea{Bounds: bounds, Size: size}
}

// InitForWrite：计算外扩 overlap 个单位后的边界，裁剪到 geo.Planet
func (a *SubArea) InitForWrite(overlap int) {
	if !a.overlapSet {
		a.overlap = a.Bounds.Expand(max(overlap, 0)).Clip(geo.Planet)
		a.overlapSet = true
	}
	a.writing = true
}

// FinishWrite：结束本轮写出
func (a *SubArea) FinishWrite() { a.writing = false }

func (a *SubArea) Writing() bool { return a.writing }

// OverlapBounds：未初始化时等同 Bounds
func (a *SubArea) OverlapBounds() geo.Area {
	if !a.overlapSet {
		return a.Bounds
	}
	return a.overlap
}

func (a *SubArea) String() string {
	return fmt.Sprintf("%08d: %v (%d)", a.MapID, a.Bounds, a.Size)
}

// List：按创建顺序保存的瓦片与其并集边界
type List struct {
	areas  []*SubArea
	bounds geo.Area
	byID   *collections.IntObjMap[*SubArea]
}

func NewList() *List {
	return &List{byID: collections.NewIntObjMap[*SubArea]()}
}

// Add：追加瓦片，已有 MapID 时建立索引
func (l *List) Add(a *SubArea) {
	if len(l.areas) == 0 {
		l.bounds = a.Bounds
	} else {
		l.bounds = l.bounds.Union(a.Bounds)
	}
	l.areas = append(l.areas, a)
	if a.MapID != 0 {
		l.byID.Put(int32(a.MapID), a)
	}
}

// Areas：按创建顺序返回，调用方不得修改切片
func (l *List) Areas() []*SubArea { return l.areas }
func (l *List) Len() int          { return len(l.areas) }
func (l *List) Bounds() geo.Area  { return l.bounds }

// AssignMapIDs：从 start 起顺序编号并重建索引
func (l *List) AssignMapIDs(start int) {
	l.byID = collections.NewIntObjMap[*SubArea]()
	for i, a := range l.areas {
		a.MapID = start + i
		l.byID.Put(int32(a.MapID), a)
	}
}

func (l *List) ByMapID(id int) (*SubArea, bool) {
	return l.byID.Lookup(int32(id))
}

func (l *List) TotalSize() int64 {
	var n int64
	for _, a := range l.areas {
		n += a.Size
	}
	return n
}

// Validate：检查瓦片两两不重叠且面积之和等于并集面积，即无缝无叠地铺满并集矩形
func (l *List) Validate() error {
	var sum int64
	for i, a := range l.areas {
		if a.Bounds.Width() < 0 || a.Bounds.Height() < 0 {
			return errors.Errorf("area %d has invalid bounds %v", a.MapID, a.Bounds)
		}
		sum += a.Bounds.Size()
		for _, b := range l.areas[i+1:] {
			if a.Bounds.Overlaps(b.Bounds) {
				return errors.Errorf("areas %d and %d overlap: %v / %v", a.MapID, b.MapID, a.Bounds, b.Bounds)
			}
		}
	}
	if sum != l.bounds.Size() {
		return errors.Errorf("areas cover %d units, union bounds %v cover %d", sum, l.bounds, l.bounds.Size())
	}
	return nil
}

// Dump：逐个瓦片输出调试日志
func (l *List) Dump(lg *slog.Logger) {
	for _, a := range l.areas {
		lg.Debug("area",
			"mapid", a.MapID,
			"bounds", a.Bounds.String(),
			"degrees", a.Bounds.DegreesString(),
			"size", a.Size,
		)
	}
}
