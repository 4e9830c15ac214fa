// 包 pipeline：串联第一遍扫描（密度图、切分、写出瓦片列表）与第二遍核对（把节点分配到瓦片）
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"tile-splitter/internal/areas"
	"tile-splitter/internal/config"
	"tile-splitter/internal/density"
	"tile-splitter/internal/geo"
	"tile-splitter/internal/ingest"
	"tile-splitter/internal/logger"
	"tile-splitter/internal/metrics"
	"tile-splitter/internal/plancache"
	"tile-splitter/internal/splitter"
	"tile-splitter/internal/store"
	"tile-splitter/internal/utils"
)

var ErrNoInputs = errors.New("no input files")

// RunStore：运行记录持久化，nil 表示不落库
type RunStore interface {
	SaveRun(ctx context.Context, run *store.Run, list *areas.List) error
}

// PlanCache：切分结果缓存
type PlanCache interface {
	Get(ctx context.Context, plan uint64) (*plancache.Entry, bool, error)
	Put(ctx context.Context, plan uint64, e *plancache.Entry) error
}

// Source：瓦片列表的来源
type Source string

const (
	SourceSplitFile Source = "split-file"
	SourceCache     Source = "cache"
	SourceSnapshot  Source = "snapshot"
	SourceScan      Source = "scan"
)

// Plan：一次切分的结果
type Plan struct {
	RunID       uuid.UUID
	Fingerprint uint64
	Source      Source
	Areas       *areas.List
	Outcome     splitter.Outcome
	Oversized   int
	Points      int64
	Exact       geo.Area
	Files       []string
}

type Pipeline struct {
	cfg    config.Config
	bounds *geo.Area
	store  RunStore
	cache  PlanCache
}

// New：cfg 应已经过 Normalize；st、cache 可为 nil
func New(cfg config.Config, st RunStore, cache PlanCache) (*Pipeline, error) {
	b, err := config.ParseBounds(cfg.Bounds)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = plancache.New(nil, 0)
	}
	return &Pipeline{cfg: cfg, bounds: b, store: st, cache: cache}, nil
}

func observe(phase string, t0 time.Time) {
	metrics.PhaseDurationMs.WithLabelValues(phase).Observe(float64(time.Since(t0).Milliseconds()))
}

func (p *Pipeline) params() plancache.Params {
	return plancache.Params{
		Resolution: p.cfg.Resolution,
		MaxNodes:   p.cfg.MaxNodes,
		EvenCells:  p.cfg.EvenCells,
		Bounds:     p.cfg.Bounds,
	}
}

// Plan：得到瓦片列表，依次尝试 split-file、缓存、密度快照，最后扫描输入文件
// 约束：split-file 解析失败时记录警告并改为重新计算；split-file 中的地图编号原样保留
func (p *Pipeline) Plan(ctx context.Context, inputs []string) (*Plan, error) {
	l := logger.L()
	plan := &Plan{RunID: uuid.New(), Outcome: splitter.Balanced}
	if p.cfg.SplitFile != "" {
		list, err := areas.Read(p.cfg.SplitFile)
		var pe *areas.ParseError
		switch {
		case err == nil:
			plan.Source = SourceSplitFile
			plan.Areas = list
			plan.Points = list.TotalSize()
			l.Info("split_file_loaded", "file", p.cfg.SplitFile, "tiles", list.Len())
			return plan, nil
		case errors.As(err, &pe):
			l.Warn("split_file_invalid", "file", p.cfg.SplitFile, "line", pe.Line, "err", err)
		default:
			return nil, err
		}
	}
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	fp, err := plancache.InputFingerprint(inputs)
	if err != nil {
		return nil, errors.Wrap(err, "fingerprint inputs")
	}
	plan.Fingerprint = fp
	key := plancache.PlanKey(fp, p.params())

	cached, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		l.Warn("plan_cache_get_error", "err", err)
	}
	if ok {
		cached.Areas.AssignMapIDs(p.cfg.MapID)
		plan.Source = SourceCache
		plan.Areas = cached.Areas
		plan.Points = cached.Points
		plan.Outcome = cached.Outcome
		for _, a := range cached.Areas.Areas() {
			if a.Size > p.cfg.MaxNodes {
				plan.Oversized++
			}
		}
		l.Info("plan_cache_hit",
			"key", plancache.Key(key),
			"tiles", cached.Areas.Len(),
			"outcome", cached.Outcome.String(),
		)
		return plan, nil
	}

	dm, err := p.density(ctx, inputs, plan)
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	res, err := splitter.Split(dm, splitter.Options{MaxNodes: p.cfg.MaxNodes, EvenCells: p.cfg.EvenCells})
	if err != nil {
		return nil, err
	}
	observe("split", t0)
	res.Areas.AssignMapIDs(p.cfg.MapID)
	if err := res.Areas.Validate(); err != nil {
		return nil, errors.Wrap(err, "split result")
	}
	plan.Areas = res.Areas
	plan.Outcome = res.Outcome
	plan.Oversized = len(res.Oversized)
	metrics.TilesTotal.Add(float64(res.Areas.Len()))
	metrics.OversizedTilesTotal.Add(float64(len(res.Oversized)))
	l.Info("split_done",
		"run", plan.RunID.String(),
		"tiles", res.Areas.Len(),
		"outcome", res.Outcome.String(),
		"oversized", len(res.Oversized),
		"ms", time.Since(t0).Milliseconds(),
	)
	entry := &plancache.Entry{Areas: res.Areas, Points: plan.Points, Outcome: res.Outcome}
	if err := p.cache.Put(ctx, key, entry); err != nil {
		l.Warn("plan_cache_put_error", "err", err)
	}
	return plan, nil
}

// density：快照的指纹与分辨率都匹配时直接加载，否则扫描输入并（若配置了快照路径）写出新快照
func (p *Pipeline) density(ctx context.Context, inputs []string, plan *Plan) (*density.DensityMap, error) {
	l := logger.L()
	snapKey := plancache.PlanKey(plan.Fingerprint, plancache.Params{Resolution: p.cfg.Resolution, Bounds: p.cfg.Bounds})
	if p.cfg.Snapshot != "" {
		dm, meta, err := density.Load(p.cfg.Snapshot)
		switch {
		case err == nil && meta.Fingerprint == snapKey && dm.Resolution() == p.cfg.Resolution:
			plan.Source = SourceSnapshot
			plan.Points = meta.Points
			plan.Exact = meta.Exact
			l.Info("snapshot_loaded", "file", p.cfg.Snapshot, "points", meta.Points)
			return dm, nil
		case err == nil:
			l.Info("snapshot_stale", "file", p.cfg.Snapshot)
		case errors.Is(err, os.ErrNotExist):
		default:
			l.Warn("snapshot_load_error", "file", p.cfg.Snapshot, "err", err)
		}
	}

	buffered := p.cfg.Buffered
	if !buffered {
		cover := geo.Planet
		if p.bounds != nil {
			cover = *p.bounds
		}
		r := cover.Round(p.cfg.Resolution)
		align := geo.Alignment(p.cfg.Resolution)
		need := utils.GridBytes(r.Width()/align, r.Height()/align)
		if tight, avail := utils.MemoryTight(need); tight {
			l.Warn("memory_tight", "grid_bytes", need, "available", avail, "mode", "buffered")
			buffered = true
		}
	}
	col, err := density.NewCollector(density.CollectorOptions{
		Resolution: p.cfg.Resolution,
		Bounds:     p.bounds,
		Buffered:   buffered,
	})
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	st, err := ingest.ScanNodes(ctx, inputs, func(_ int64, lat, lon int) error {
		return col.Add(lat, lon)
	})
	if err != nil {
		return nil, err
	}
	metrics.PointsIngestedTotal.WithLabelValues("density").Add(float64(st.Nodes))
	metrics.PointsSkippedTotal.Add(float64(col.Skipped()))
	dm, err := col.Rounded()
	if err != nil {
		return nil, err
	}
	observe("collect", t0)
	plan.Source = SourceScan
	plan.Points = col.Count()
	plan.Exact = col.ExactArea()
	l.Info("density_ready",
		"points", col.Count(),
		"skipped", col.Skipped(),
		"exact", plan.Exact.DegreesString(),
		"grid", dm.Bounds().String(),
		"width", dm.Width(),
		"height", dm.Height(),
		"columns", dm.AllocatedColumns(),
		"buffered", buffered,
	)
	if p.cfg.Snapshot != "" {
		meta := density.Meta{Fingerprint: snapKey, Exact: plan.Exact, Points: plan.Points}
		if err := density.Save(p.cfg.Snapshot, dm, meta); err != nil {
			l.Warn("snapshot_save_error", "file", p.cfg.Snapshot, "err", err)
		} else {
			l.Info("snapshot_saved", "file", p.cfg.Snapshot)
		}
	}
	return dm, nil
}

// Run：Plan 之后写出结果文件并保存运行记录
func (p *Pipeline) Run(ctx context.Context, inputs []string) (*Plan, error) {
	l := logger.L()
	plan, err := p.Plan(ctx, inputs)
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	files, err := p.WriteOutputs(plan.Areas)
	if err != nil {
		return nil, err
	}
	observe("write", t0)
	plan.Files = files
	plan.Areas.Dump(l)

	if p.store != nil {
		run := &store.Run{
			ID:          plan.RunID,
			CreatedAt:   time.Now(),
			Fingerprint: plan.Fingerprint,
			Resolution:  p.cfg.Resolution,
			MaxNodes:    p.cfg.MaxNodes,
			Overlap:     p.cfg.Overlap,
			Bounds:      plan.Areas.Bounds(),
			TotalPoints: plan.Points,
			Tiles:       plan.Areas.Len(),
			Outcome:     plan.Outcome.String(),
		}
		if err := p.store.SaveRun(ctx, run, plan.Areas); err != nil {
			l.Error("db_run_save_error", "run", plan.RunID.String(), "err", err)
		}
	}
	l.Info("run_done", "run", plan.RunID.String(), "source", string(plan.Source), "tiles", plan.Areas.Len(), "files", len(files))
	return plan, nil
}
