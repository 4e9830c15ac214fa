// 包 geo：地图单位坐标与矩形区域
// 背景：地图单位 = 360°/2^24，全部几何运算使用整数，避免浮点误差影响瓦片对齐
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	MinResolution     = 1
	MaxResolution     = 24
	DefaultResolution = 13
)

// Planet：未给出边界时密度图的缺省覆盖范围（纬度 ±90°，经度 ±180°）
var Planet = Area{MinLat: -0x400000, MinLon: -0x800000, MaxLat: 0x400000, MaxLon: 0x800000}

// ToMapUnit：角度转地图单位，四舍五入（远离零）
func ToMapUnit(deg float64) int {
	return int(math.Round(deg * (1 << 24) / 360))
}

func ToDegrees(u int) float64 {
	return float64(u) * 360 / (1 << 24)
}

// Alignment：分辨率对应的对齐单位 2^(24-res)
func Alignment(res int) int {
	return 1 << (MaxResolution - res)
}

func ValidResolution(res int) bool {
	return res >= MinResolution && res <= MaxResolution
}

// Area：闭区间矩形 [Min, Max]，约束 Min <= Max
type Area struct {
	MinLat int
	MinLon int
	MaxLat int
	MaxLon int
}

func (a Area) Width() int  { return a.MaxLon - a.MinLon }
func (a Area) Height() int { return a.MaxLat - a.MinLat }

// Size：面积，int64 防止全球范围溢出
func (a Area) Size() int64 { return int64(a.Width()) * int64(a.Height()) }

func (a Area) Contains(lat, lon int) bool {
	return lat >= a.MinLat && lat <= a.MaxLat && lon >= a.MinLon && lon <= a.MaxLon
}

// ContainsArea：b 完全位于 a 内（含边界）
func (a Area) ContainsArea(b Area) bool {
	return b.MinLat >= a.MinLat && b.MaxLat <= a.MaxLat && b.MinLon >= a.MinLon && b.MaxLon <= a.MaxLon
}

// Intersects：闭区间相交，仅共享边界也算相交
func (a Area) Intersects(b Area) bool {
	return a.MinLat <= b.MaxLat && b.MinLat <= a.MaxLat && a.MinLon <= b.MaxLon && b.MinLon <= a.MaxLon
}

// Overlaps：交集面积为正；相邻瓦片共享边界不算重叠
func (a Area) Overlaps(b Area) bool {
	return a.MinLat < b.MaxLat && b.MinLat < a.MaxLat && a.MinLon < b.MaxLon && b.MinLon < a.MaxLon
}

func (a Area) Union(b Area) Area {
	return Area{
		MinLat: min(a.MinLat, b.MinLat),
		MinLon: min(a.MinLon, b.MinLon),
		MaxLat: max(a.MaxLat, b.MaxLat),
		MaxLon: max(a.MaxLon, b.MaxLon),
	}
}

// Expand：四边各外扩 n 个单位
func (a Area) Expand(n int) Area {
	return Area{MinLat: a.MinLat - n, MinLon: a.MinLon - n, MaxLat: a.MaxLat + n, MaxLon: a.MaxLon + n}
}

// Clip：裁剪到 b 内；不相交时结果可能 Min > Max，调用方需先判断 Intersects
func (a Area) Clip(b Area) Area {
	return Area{
		MinLat: max(a.MinLat, b.MinLat),
		MinLon: max(a.MinLon, b.MinLon),
		MaxLat: min(a.MaxLat, b.MaxLat),
		MaxLon: min(a.MaxLon, b.MaxLon),
	}
}

// IsAligned：四条边都是 align 的整数倍
func (a Area) IsAligned(align int) bool {
	return a.MinLat%align == 0 && a.MinLon%align == 0 && a.MaxLat%align == 0 && a.MaxLon%align == 0
}

// Round：按分辨率向外取整
// 约束：边是对齐单位的倍数，宽高是两倍对齐单位的倍数（瓦片中心也要落在对齐点上）；
// 补齐时优先外扩 Max 边，越过 Planet 时改为外扩 Min 边
func (a Area) Round(res int) Area {
	align := Alignment(res)
	minLat, maxLat := widen(roundDown(a.MinLat, align), roundUp(a.MaxLat, align), align, Planet.MaxLat)
	minLon, maxLon := widen(roundDown(a.MinLon, align), roundUp(a.MaxLon, align), align, Planet.MaxLon)
	return Area{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}

func roundDown(v, align int) int { return v &^ (align - 1) }
func roundUp(v, align int) int   { return (v + align - 1) &^ (align - 1) }

func widen(lo, hi, align, limit int) (int, int) {
	span := hi - lo
	var grow int
	switch {
	case span == 0:
		grow = 2 * align
	case span%(2*align) != 0:
		grow = align
	default:
		return lo, hi
	}
	if hi+grow <= limit {
		return lo, hi + grow
	}
	return lo - grow, hi
}

func (a Area) String() string {
	return fmt.Sprintf("%d,%d to %d,%d", a.MinLat, a.MinLon, a.MaxLat, a.MaxLon)
}

// DegreesString：供日志与注释行使用的角度表示
func (a Area) DegreesString() string {
	return fmt.Sprintf("%f,%f to %f,%f", ToDegrees(a.MinLat), ToDegrees(a.MinLon), ToDegrees(a.MaxLat), ToDegrees(a.MaxLon))
}

// Bound：转换为 orb 角度边界，点坐标顺序为 [lon, lat]
func (a Area) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{ToDegrees(a.MinLon), ToDegrees(a.MinLat)},
		Max: orb.Point{ToDegrees(a.MaxLon), ToDegrees(a.MaxLat)},
	}
}

// FromBound：orb 角度边界转回地图单位
func FromBound(b orb.Bound) Area {
	return Area{
		MinLat: ToMapUnit(b.Min.Lat()),
		MinLon: ToMapUnit(b.Min.Lon()),
		MaxLat: ToMapUnit(b.Max.Lat()),
		MaxLon: ToMapUnit(b.Max.Lon()),
	}
}

// Bounds：精确外包框累加器，由扫描方持有
type Bounds struct {
	area  Area
	count int64
}

func (b *Bounds) Extend(lat, lon int) {
	if b.count == 0 {
		b.area = Area{MinLat: lat, MinLon: lon, MaxLat: lat, MaxLon: lon}
	} else {
		b.area.MinLat = min(b.area.MinLat, lat)
		b.area.MinLon = min(b.area.MinLon, lon)
		b.area.MaxLat = max(b.area.MaxLat, lat)
		b.area.MaxLon = max(b.area.MaxLon, lon)
	}
	b.count++
}

func (b *Bounds) Empty() bool  { return b.count == 0 }
func (b *Bounds) Count() int64 { return b.count }
func (b *Bounds) Area() Area   { return b.area }
