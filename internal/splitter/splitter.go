// 包 splitter：按节点密度把覆盖范围递归切分成不超过 max-nodes 的对齐瓦片
package splitter

import (
	"errors"
	"fmt"

	"tile-splitter/internal/areas"
	"tile-splitter/internal/density"
	"tile-splitter/internal/logger"
)

// Outcome：切分结果标记
type Outcome int

const (
	// Balanced：所有瓦片都不超过预算
	Balanced Outcome = iota
	// OversizedSingleCell：至少一个不可再分的格子超过预算，需提高分辨率才能解决
	OversizedSingleCell
)

func (o Outcome) String() string {
	switch o {
	case Balanced:
		return "balanced"
	case OversizedSingleCell:
		return "oversized_single_cell"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ParseOutcome：String 的逆
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{Balanced, OversizedSingleCell} {
		if o.String() == s {
			return o, nil
		}
	}
	return Balanced, fmt.Errorf("unknown outcome %q", s)
}

// Options：切分参数
// EvenCells 为 true 时只在偶数格偏移处切分，瓦片宽高都是两倍对齐单位的倍数，最小不可分单元变为 2×2 格
type Options struct {
	MaxNodes  int64
	EvenCells bool
}

type Result struct {
	Areas     *areas.List
	Outcome   Outcome
	Oversized []*areas.SubArea
}

var ErrInvalidMaxNodes = errors.New("max nodes must be at least 1")

// axis：切分方向，lon 为竖切（按列），lat 为横切（按行）
type axis int

const (
	axisLon axis = iota
	axisLat
)

// Split：深度优先切分，显式栈代替递归；先处理西/南半边，同一输入得到同一顺序的瓦片列表
// 约束：瓦片两两不重叠，并集等于密度图覆盖范围，各边落在格线上
func Split(dm *density.DensityMap, opts Options) (*Result, error) {
	if opts.MaxNodes < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxNodes, opts.MaxNodes)
	}
	step := 1
	if opts.EvenCells {
		step = 2
	}
	res := &Result{Areas: areas.NewList(), Outcome: Balanced}
	stack := []density.Cells{dm.Full()}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cols := dm.ColumnSums(c)
		var total int64
		for _, v := range cols {
			total += v
		}
		if total <= opts.MaxNodes {
			res.Areas.Add(areas.NewSubArea(dm.CellArea(c), total))
			continue
		}
		ax, cut, ok := chooseCut(c, cols, dm.RowSums(c), total, step)
		if !ok {
			a := areas.NewSubArea(dm.CellArea(c), total)
			res.Areas.Add(a)
			res.Oversized = append(res.Oversized, a)
			res.Outcome = OversizedSingleCell
			logger.L().Warn("split_oversized_cell",
				"bounds", a.Bounds.String(),
				"size", total,
				"max_nodes", opts.MaxNodes,
			)
			continue
		}
		lo, hi := halves(c, ax, cut)
		stack = append(stack, hi, lo)
	}
	return res, nil
}

func halves(c density.Cells, ax axis, cut int) (density.Cells, density.Cells) {
	if ax == axisLon {
		return density.Cells{X: c.X, Y: c.Y, W: cut, H: c.H},
			density.Cells{X: c.X + cut, Y: c.Y, W: c.W - cut, H: c.H}
	}
	return density.Cells{X: c.X, Y: c.Y, W: c.W, H: cut},
		density.Cells{X: c.X, Y: c.Y + cut, W: c.W, H: c.H - cut}
}

// chooseCut：选择切分方向与切线
// 约束：一边超过另一边 1.5 倍时优先切长边；尺寸相近时取两半更均衡的方向，平局取长边，再平局取竖切
func chooseCut(c density.Cells, cols, rows []int64, total int64, step int) (axis, int, bool) {
	xCut, xDiff, xOK := bestCut(cols, total, step)
	yCut, yDiff, yOK := bestCut(rows, total, step)
	switch {
	case !xOK && !yOK:
		return 0, 0, false
	case !yOK:
		return axisLon, xCut, true
	case !xOK:
		return axisLat, yCut, true
	case 2*c.W > 3*c.H:
		return axisLon, xCut, true
	case 2*c.H > 3*c.W:
		return axisLat, yCut, true
	case xDiff < yDiff:
		return axisLon, xCut, true
	case yDiff < xDiff:
		return axisLat, yCut, true
	case c.H > c.W:
		return axisLat, yCut, true
	}
	return axisLon, xCut, true
}

// bestCut：沿一个方向线性扫描前缀和，返回两半差值最小的切线（平局取靠前者）
func bestCut(sums []int64, total int64, step int) (int, int64, bool) {
	best, bestDiff, found := 0, int64(0), false
	var left int64
	for k := 1; k < len(sums); k++ {
		left += sums[k-1]
		if k%step != 0 {
			continue
		}
		diff := total - 2*left
		if diff < 0 {
			diff = -diff
		}
		if !found || diff < bestDiff {
			best, bestDiff, found = k, diff, true
		}
	}
	return best, bestDiff, found
}
