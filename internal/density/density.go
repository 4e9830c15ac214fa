// 包 density：第一遍扫描建立的节点密度网格，为切分器提供行列求和
package density

import (
	"errors"
	"fmt"
	"math"

	"tile-splitter/internal/geo"
)

var (
	ErrOutOfBounds = errors.New("point outside density map bounds")
	ErrNotAligned  = errors.New("area not aligned to cell size")

	// ErrCellOverflow：单格计数以 int32 存放
	ErrCellOverflow = errors.New("density cell count overflow")
)

// DensityMap：覆盖对齐矩形的计数网格，每格 cell×cell 地图单位
// 约束：x 为经度方向列下标，y 为纬度方向行下标；列按需分配，稀疏的全球网格只为有数据的列付出内存
type DensityMap struct {
	bounds geo.Area
	res    int
	cell   int
	width  int
	height int
	grid   [][]int32
	total  int64
}

// Cells：以格为单位的子矩形 [X, X+W) × [Y, Y+H)
type Cells struct {
	X, Y, W, H int
}

func (c Cells) Empty() bool { return c.W <= 0 || c.H <= 0 }

// New：按分辨率建立网格，格边长为该分辨率的对齐单位
func New(area geo.Area, res int) (*DensityMap, error) {
	if !geo.ValidResolution(res) {
		return nil, fmt.Errorf("invalid resolution %d", res)
	}
	dm, err := NewWithCellSize(area, geo.Alignment(res))
	if err != nil {
		return nil, err
	}
	dm.res = res
	return dm, nil
}

// NewWithCellSize：任意格边长的网格，分辨率记为 0
func NewWithCellSize(area geo.Area, cell int) (*DensityMap, error) {
	if cell <= 0 {
		return nil, fmt.Errorf("invalid cell size %d", cell)
	}
	if area.Width() < 0 || area.Height() < 0 {
		return nil, fmt.Errorf("invalid area %v", area)
	}
	if !area.IsAligned(cell) {
		return nil, fmt.Errorf("%w: %v cell %d", ErrNotAligned, area, cell)
	}
	w, h := area.Width()/cell, area.Height()/cell
	return &DensityMap{
		bounds: area,
		cell:   cell,
		width:  w,
		height: h,
		grid:   make([][]int32, w),
	}, nil
}

func (dm *DensityMap) Bounds() geo.Area { return dm.bounds }
func (dm *DensityMap) Resolution() int  { return dm.res }
func (dm *DensityMap) CellSize() int    { return dm.cell }
func (dm *DensityMap) Width() int       { return dm.width }
func (dm *DensityMap) Height() int      { return dm.height }
func (dm *DensityMap) Total() int64     { return dm.total }
func (dm *DensityMap) Full() Cells      { return Cells{W: dm.width, H: dm.height} }

// AddPoint：对所在格计数加一
// 约束：落在 Max 边上的点计入最后一行/列；覆盖范围外的点返回 ErrOutOfBounds，调用方负责预先过滤；
// 单格已达 math.MaxInt32 时返回 ErrCellOverflow，计数不变
func (dm *DensityMap) AddPoint(lat, lon int) error {
	if dm.width == 0 || dm.height == 0 || !dm.bounds.Contains(lat, lon) {
		return fmt.Errorf("%w: %d,%d not in %v", ErrOutOfBounds, lat, lon, dm.bounds)
	}
	x := (lon - dm.bounds.MinLon) / dm.cell
	if x == dm.width {
		x--
	}
	y := (lat - dm.bounds.MinLat) / dm.cell
	if y == dm.height {
		y--
	}
	if dm.Count(x, y) == math.MaxInt32 {
		return fmt.Errorf("%w: cell %d,%d at %d,%d", ErrCellOverflow, x, y, lat, lon)
	}
	dm.add(x, y, 1)
	return nil
}

func (dm *DensityMap) add(x, y int, n int32) {
	col := dm.grid[x]
	if col == nil {
		col = make([]int32, dm.height)
		dm.grid[x] = col
	}
	col[y] += n
	dm.total += int64(n)
}

func (dm *DensityMap) Count(x, y int) int32 {
	if col := dm.grid[x]; col != nil {
		return col[y]
	}
	return 0
}

// Subset：截取到 area 的新网格
// 约束：area 需与格边长对齐，可超出原覆盖范围（超出部分计数为 0）；area 外的计数被丢弃
func (dm *DensityMap) Subset(area geo.Area) (*DensityMap, error) {
	out, err := NewWithCellSize(area, dm.cell)
	if err != nil {
		return nil, err
	}
	out.res = dm.res
	dx := (area.MinLon - dm.bounds.MinLon) / dm.cell
	dy := (area.MinLat - dm.bounds.MinLat) / dm.cell
	for x := 0; x < out.width; x++ {
		sx := x + dx
		if sx < 0 || sx >= dm.width || dm.grid[sx] == nil {
			continue
		}
		src := dm.grid[sx]
		for y := 0; y < out.height; y++ {
			sy := y + dy
			if sy < 0 || sy >= dm.height || src[sy] == 0 {
				continue
			}
			out.add(x, y, src[sy])
		}
	}
	return out, nil
}

// ColumnSums：子矩形内每列之和，长度 c.W
func (dm *DensityMap) ColumnSums(c Cells) []int64 {
	sums := make([]int64, max(c.W, 0))
	for i := range sums {
		col := dm.grid[c.X+i]
		if col == nil {
			continue
		}
		var s int64
		for _, v := range col[c.Y : c.Y+c.H] {
			s += int64(v)
		}
		sums[i] = s
	}
	return sums
}

// RowSums：子矩形内每行之和，长度 c.H
func (dm *DensityMap) RowSums(c Cells) []int64 {
	sums := make([]int64, max(c.H, 0))
	for x := c.X; x < c.X+c.W; x++ {
		col := dm.grid[x]
		if col == nil {
			continue
		}
		for i := range sums {
			sums[i] += int64(col[c.Y+i])
		}
	}
	return sums
}

func (dm *DensityMap) Sum(c Cells) int64 {
	var s int64
	for _, v := range dm.ColumnSums(c) {
		s += v
	}
	return s
}

// CellArea：格子矩形对应的地图单位区域
func (dm *DensityMap) CellArea(c Cells) geo.Area {
	return geo.Area{
		MinLat: dm.bounds.MinLat + c.Y*dm.cell,
		MinLon: dm.bounds.MinLon + c.X*dm.cell,
		MaxLat: dm.bounds.MinLat + (c.Y+c.H)*dm.cell,
		MaxLon: dm.bounds.MinLon + (c.X+c.W)*dm.cell,
	}
}

// AllocatedColumns：已分配的列数，用于内存观测
func (dm *DensityMap) AllocatedColumns() int {
	n := 0
	for _, col := range dm.grid {
		if col != nil {
			n++
		}
	}
	return n
}
