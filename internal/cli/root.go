// 包 cli：命令行入口，split / verify / export 三个子命令共享配置加载与外部依赖初始化
package cli

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tile-splitter/internal/config"
	"tile-splitter/internal/logger"
	"tile-splitter/internal/metrics"
	"tile-splitter/internal/migrate"
	"tile-splitter/internal/pipeline"
	"tile-splitter/internal/plancache"
	"tile-splitter/internal/store"
	"tile-splitter/internal/utils"
)

// app：一次命令执行的状态
type app struct {
	configPath string
	flags      config.Config
	cfg        config.Config

	st *store.Store
	rc *redis.Client
}

// flagBindings：命令行参数只有显式给出时才覆盖配置文件与环境变量
var flagBindings = map[string]func(dst, src *config.Config){
	"resolution":    func(d, s *config.Config) { d.Resolution = s.Resolution },
	"max-nodes":     func(d, s *config.Config) { d.MaxNodes = s.MaxNodes },
	"max-areas":     func(d, s *config.Config) { d.MaxAreas = s.MaxAreas },
	"mapid":         func(d, s *config.Config) { d.MapID = s.MapID },
	"overlap":       func(d, s *config.Config) { d.Overlap = s.Overlap },
	"description":   func(d, s *config.Config) { d.Description = s.Description },
	"split-file":    func(d, s *config.Config) { d.SplitFile = s.SplitFile },
	"write-kml":     func(d, s *config.Config) { d.WriteKML = s.WriteKML },
	"write-geojson": func(d, s *config.Config) { d.WriteGeoJSON = s.WriteGeoJSON },
	"output-dir":    func(d, s *config.Config) { d.OutputDir = s.OutputDir },
	"even-cells":    func(d, s *config.Config) { d.EvenCells = s.EvenCells },
	"buffered":      func(d, s *config.Config) { d.Buffered = s.Buffered },
	"snapshot":      func(d, s *config.Config) { d.Snapshot = s.Snapshot },
	"bounds":        func(d, s *config.Config) { d.Bounds = s.Bounds },
	"db":            func(d, s *config.Config) { d.DB.Enable = s.DB.Enable },
	"redis":         func(d, s *config.Config) { d.Redis.Enable = s.Redis.Enable },
	"metrics-addr":  func(d, s *config.Config) { d.Metrics.Addr = s.Metrics.Addr },
	"log-level":     func(d, s *config.Config) { d.Logging.Level = s.Logging.Level },
	"log-format":    func(d, s *config.Config) { d.Logging.Format = s.Logging.Format },
}

func (a *app) bindFlags(fs *pflag.FlagSet) {
	d := config.Default()
	f := &a.flags
	fs.StringVar(&a.configPath, "config", "", "YAML config file")
	fs.IntVar(&f.Resolution, "resolution", d.Resolution, "density grid resolution (1..24)")
	fs.Int64Var(&f.MaxNodes, "max-nodes", d.MaxNodes, "maximum nodes per tile")
	fs.IntVar(&f.MaxAreas, "max-areas", d.MaxAreas, "maximum tiles per routing pass (1..255)")
	fs.IntVar(&f.MapID, "mapid", d.MapID, "map id of the first tile")
	fs.IntVar(&f.Overlap, "overlap", d.Overlap, "overlap around each tile in map units")
	fs.StringVar(&f.Description, "description", d.Description, "description written to template.args")
	fs.StringVar(&f.SplitFile, "split-file", "", "use an existing areas.list or KML file instead of computing tiles")
	fs.StringVar(&f.WriteKML, "write-kml", "", "also write the tiles as KML")
	fs.StringVar(&f.WriteGeoJSON, "write-geojson", "", "also write the tiles as GeoJSON")
	fs.StringVar(&f.OutputDir, "output-dir", d.OutputDir, "directory for output files")
	fs.BoolVar(&f.EvenCells, "even-cells", false, "only cut at even cell offsets")
	fs.BoolVar(&f.Buffered, "buffered", false, "buffer coordinates and build a compact grid after the scan")
	fs.StringVar(&f.Snapshot, "snapshot", "", "density snapshot file to reuse between runs")
	fs.StringVar(&f.Bounds, "bounds", "", "only collect nodes inside minLat,minLon,maxLat,maxLon (degrees)")
	fs.BoolVar(&f.DB.Enable, "db", false, "save runs to PostgreSQL (PG_* env)")
	fs.BoolVar(&f.Redis.Enable, "redis", false, "cache tile lists in Redis (REDIS_* env)")
	fs.StringVar(&f.Metrics.Addr, "metrics-addr", "", "serve /metrics on this address")
	fs.StringVar(&f.Logging.Level, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.Logging.Format, "log-format", "", "text or json")
}

// NewRootCmd：构造完整的命令树
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "splitter",
		Short:         "Split OSM data into tiles of bounded node count",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	a.bindFlags(root.PersistentFlags())
	root.AddCommand(newSplitCmd(a), newVerifyCmd(a), newExportCmd(a))
	return root
}

// Execute：由 main 调用
func Execute(ctx context.Context) error {
	return execute(ctx, &app{}, nil)
}

// execute：子命令出错时 cobra 不运行 PersistentPostRun，连接在这里关闭
func execute(ctx context.Context, a *app, args []string) error {
	defer a.close()
	root := newRootCmd(a)
	if args != nil {
		root.SetArgs(args)
	}
	return root.ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if bind, ok := flagBindings[f.Name]; ok {
			bind(&cfg, &a.flags)
		}
	})
	if cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		level, format := cfg.Logging.Level, cfg.Logging.Format
		if level == "" {
			level = os.Getenv("LOG_LEVEL")
		}
		if format == "" {
			format = os.Getenv("LOG_FORMAT")
		}
		logger.SetupWith(level, format)
	}
	l := logger.L()
	for _, adj := range cfg.Normalize() {
		l.Warn("config_adjusted", "field", adj.Field, "got", adj.Got, "reset", adj.Reset)
	}
	a.cfg = cfg
	l.Debug("config_loaded",
		"resolution", cfg.Resolution,
		"max_nodes", cfg.MaxNodes,
		"max_areas", cfg.MaxAreas,
		"mapid", cfg.MapID,
		"overlap", cfg.Overlap,
	)
	if cfg.Metrics.Addr != "" {
		startMetrics(cfg.Metrics.Addr)
	}
	return nil
}

func startMetrics(addr string) {
	l := logger.L()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: logger.AccessMiddleware(l)(mux), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		l.Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("metrics_server_error", "err", err)
		}
	}()
}

// openStore：数据库打开或建表失败视为致命错误
func (a *app) openStore() (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	l := logger.L()
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	l.Info("db_open_ok")
	if err := migrate.EnsureSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "schema")
	}
	a.st = store.AttachDB(db)
	return a.st, nil
}

// openCache：Redis 不可用时只记录错误，按无缓存继续
func (a *app) openCache(ctx context.Context) *plancache.Cache {
	if !a.cfg.Redis.Enable {
		return plancache.New(nil, 0)
	}
	l := logger.L()
	rc := utils.OpenRedisFromEnv()
	if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
		rc.Close()
		return plancache.New(nil, 0)
	}
	l.Info("redis_ping_ok")
	a.rc = rc
	return plancache.New(rc, a.cfg.Redis.TTL)
}

// newPipeline：按配置接入数据库与缓存
func (a *app) newPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	var rs pipeline.RunStore
	if a.cfg.DB.Enable {
		st, err := a.openStore()
		if err != nil {
			return nil, err
		}
		rs = st
	}
	return pipeline.New(a.cfg, rs, a.openCache(ctx))
}

func (a *app) close() {
	if a.st != nil {
		a.st.Close()
	}
	if a.rc != nil {
		a.rc.Close()
	}
}
