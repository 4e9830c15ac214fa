package areas

import (
	"github.com/pkg/errors"

	"tile-splitter/internal/geo"
)

// MaxAreasPerPass：单遍写出内的瓦片编号占 8 位，0 保留
const MaxAreasPerPass = 255

// Batches：把瓦片列表按顺序分成若干遍，每遍不超过 maxPerPass 个
// 约束：遍数 = ceil(n/max)，每遍数量 = ceil(n/遍数)，使各遍大小尽量均匀
func (l *List) Batches(maxPerPass int) ([][]*SubArea, error) {
	if maxPerPass < 1 || maxPerPass > MaxAreasPerPass {
		return nil, errors.Errorf("max areas per pass %d out of range 1..%d", maxPerPass, MaxAreasPerPass)
	}
	n := len(l.areas)
	if n == 0 {
		return nil, nil
	}
	passes := (n + maxPerPass - 1) / maxPerPass
	per := (n + passes - 1) / passes
	out := make([][]*SubArea, 0, passes)
	for i := 0; i < n; i += per {
		out = append(out, l.areas[i:min(i+per, n)])
	}
	return out, nil
}

// Pass：一遍写出涉及的瓦片，编号为本遍内的 1..len
type Pass struct {
	areas  []*SubArea
	bounds geo.Area
}

// NewPass：为本遍瓦片计算重叠边界
func NewPass(batch []*SubArea, overlap int) (*Pass, error) {
	if len(batch) == 0 || len(batch) > MaxAreasPerPass {
		return nil, errors.Errorf("pass must hold 1..%d areas, got %d", MaxAreasPerPass, len(batch))
	}
	p := &Pass{areas: batch}
	for i, a := range batch {
		a.InitForWrite(overlap)
		if i == 0 {
			p.bounds = a.OverlapBounds()
		} else {
			p.bounds = p.bounds.Union(a.OverlapBounds())
		}
	}
	return p, nil
}

// Route：返回重叠边界包含该点的瓦片编号，追加到 dst
func (p *Pass) Route(lat, lon int, dst []uint8) []uint8 {
	if !p.bounds.Contains(lat, lon) {
		return dst
	}
	for i, a := range p.areas {
		if a.overlap.Contains(lat, lon) {
			dst = append(dst, uint8(i+1))
		}
	}
	return dst
}

// Area：编号转回瓦片，0 或越界返回 nil
func (p *Pass) Area(id uint8) *SubArea {
	if id == 0 || int(id) > len(p.areas) {
		return nil
	}
	return p.areas[id-1]
}

func (p *Pass) Len() int { return len(p.areas) }

func (p *Pass) Areas() []*SubArea { return p.areas }

// Finish：结束本遍写出
func (p *Pass) Finish() {
	for _, a := range p.areas {
		a.FinishWrite()
	}
}
