package density

import (
	"errors"
	"fmt"

	"tile-splitter/internal/collections"
	"tile-splitter/internal/geo"
)

var ErrNoPoints = errors.New("no points collected")

// CollectorOptions：采集参数
// Bounds 为空时使用 geo.Planet；Buffered 为 true 时先缓存坐标，拿到精确边界后再建网格
type CollectorOptions struct {
	Resolution  int
	Bounds      *geo.Area
	Buffered    bool
	SegmentSize int
}

// Collector：第一遍扫描的采集器，持有精确外包框并向密度网格计数
// 背景：网格模式先在覆盖范围（缺省全球）上计数，结束后截取到取整后的数据范围；
// 缓存模式把坐标存入分段列表，结束时一次性建立紧凑网格并排空列表
type Collector struct {
	res     int
	bounds  geo.Area
	exact   geo.Bounds
	dm      *DensityMap
	lats    *collections.SplitIntList
	lons    *collections.SplitIntList
	skipped int64
}

func NewCollector(opts CollectorOptions) (*Collector, error) {
	bounds := geo.Planet
	if opts.Bounds != nil {
		bounds = *opts.Bounds
	}
	c := &Collector{res: opts.Resolution, bounds: bounds}
	if opts.Buffered {
		c.lats = collections.NewSplitIntList(opts.SegmentSize)
		c.lons = collections.NewSplitIntList(opts.SegmentSize)
		return c, nil
	}
	dm, err := New(coverArea(bounds, opts.Resolution), opts.Resolution)
	if err != nil {
		return nil, err
	}
	c.dm = dm
	return c, nil
}

// Add：记录一个点；覆盖范围外的点计入 Skipped 并忽略
func (c *Collector) Add(lat, lon int) error {
	if !c.bounds.Contains(lat, lon) {
		c.skipped++
		return nil
	}
	if c.lats != nil {
		c.lats.Add(int32(lat))
		c.lons.Add(int32(lon))
	} else if err := c.dm.AddPoint(lat, lon); err != nil {
		return err
	}
	c.exact.Extend(lat, lon)
	return nil
}

func (c *Collector) Count() int64        { return c.exact.Count() }
func (c *Collector) Skipped() int64      { return c.skipped }
func (c *Collector) ExactArea() geo.Area { return c.exact.Area() }

// RoundedArea：精确范围取整后的网格覆盖范围
func (c *Collector) RoundedArea() geo.Area { return coverArea(c.exact.Area(), c.res) }

// coverArea：取整前 Max 边先加一个单位，使恰好落在对齐点上的点所在格被包含；Planet 边界处不外扩
func coverArea(a geo.Area, res int) geo.Area {
	if a.MaxLat < geo.Planet.MaxLat {
		a.MaxLat++
	}
	if a.MaxLon < geo.Planet.MaxLon {
		a.MaxLon++
	}
	return a.Round(res)
}

// Rounded：返回覆盖 RoundedArea 的密度网格
// 约束：缓存模式下只能调用一次，坐标列表在此被排空
func (c *Collector) Rounded() (*DensityMap, error) {
	if c.exact.Empty() {
		return nil, ErrNoPoints
	}
	area := c.RoundedArea()
	if c.dm != nil {
		return c.dm.Subset(area)
	}
	if c.lats.Drained() {
		return nil, errors.New("buffered collector already drained")
	}
	dm, err := New(area, c.res)
	if err != nil {
		return nil, err
	}
	lats, lons := c.lats.DrainingIterator(), c.lons.DrainingIterator()
	if lats.Remaining() != lons.Remaining() {
		return nil, fmt.Errorf("buffered collector holds %d lats and %d lons", lats.Remaining(), lons.Remaining())
	}
	for {
		lat, ok := lats.Next()
		if !ok {
			break
		}
		lon, _ := lons.Next()
		if err := dm.AddPoint(int(lat), int(lon)); err != nil {
			return nil, err
		}
	}
	return dm, nil
}
