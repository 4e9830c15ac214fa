package pipeline

import (
	"context"
	"strconv"
	"time"

	"tile-splitter/internal/areas"
	"tile-splitter/internal/collections"
	"tile-splitter/internal/ingest"
	"tile-splitter/internal/logger"
	"tile-splitter/internal/metrics"
)

// VerifyReport：第二遍核对的统计
type VerifyReport struct {
	Passes   int
	Nodes    int64
	Routed   int64
	Unrouted int64
	counts   *collections.IntIntMap
}

// Count：落入该地图编号瓦片（含重叠边）的节点数
func (r *VerifyReport) Count(mapID int) int64 {
	return int64(r.counts.Get(int32(mapID)))
}

// Verify：按 max-areas 分批，每批扫描一次输入，把每个节点分配到重叠边界包含它的瓦片
// 约束：不被任何瓦片接收的节点只在第一批时判定一次，计入 Unrouted
func (p *Pipeline) Verify(ctx context.Context, list *areas.List, inputs []string) (*VerifyReport, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	l := logger.L()
	batches, err := list.Batches(p.cfg.MaxAreas)
	if err != nil {
		return nil, err
	}
	passes := make([]*areas.Pass, 0, len(batches))
	for _, b := range batches {
		ps, err := areas.NewPass(b, p.cfg.Overlap)
		if err != nil {
			return nil, err
		}
		passes = append(passes, ps)
	}
	rep := &VerifyReport{Passes: len(passes), counts: collections.NewIntIntMap()}
	t0 := time.Now()
	for i, ps := range passes {
		label := strconv.Itoa(i + 1)
		var routed int64
		dst := make([]uint8, 0, 4)
		st, err := ingest.ScanNodes(ctx, inputs, func(_ int64, lat, lon int) error {
			dst = ps.Route(lat, lon, dst[:0])
			for _, id := range dst {
				rep.counts.Increment(int32(ps.Area(id).MapID), 1)
			}
			routed += int64(len(dst))
			if i == 0 && len(dst) == 0 && !routedElsewhere(passes[1:], lat, lon) {
				rep.Unrouted++
			}
			return nil
		})
		ps.Finish()
		if err != nil {
			return nil, err
		}
		rep.Nodes = st.Nodes
		rep.Routed += routed
		metrics.PointsIngestedTotal.WithLabelValues("route").Add(float64(st.Nodes))
		metrics.PointsRoutedTotal.WithLabelValues(label).Add(float64(routed))
		l.Info("verify_pass_done", "pass", i+1, "of", len(passes), "tiles", ps.Len(), "routed", routed)
	}
	metrics.PointsUnroutedTotal.Add(float64(rep.Unrouted))
	observe("verify", t0)
	if rep.Unrouted > 0 {
		l.Warn("verify_unrouted", "nodes", rep.Unrouted)
	}
	return rep, nil
}

func routedElsewhere(passes []*areas.Pass, lat, lon int) bool {
	var buf [4]uint8
	for _, ps := range passes {
		if len(ps.Route(lat, lon, buf[:0])) > 0 {
			return true
		}
	}
	return false
}
