// 包 config：切分参数，来源依次为缺省值、YAML 文件、SPLIT_* 环境变量、命令行
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"tile-splitter/internal/areas"
	"tile-splitter/internal/geo"
)

const (
	DefaultMaxNodes    = 1600000
	DefaultMapID       = 63240001
	DefaultOverlap     = 2000
	DefaultDescription = "OSM Map"
)

type DBConfig struct {
	Enable bool `yaml:"enable"`
}

type RedisConfig struct {
	Enable bool          `yaml:"enable"`
	TTL    time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config：一次运行的全部参数
type Config struct {
	Resolution   int    `yaml:"resolution"`
	MaxNodes     int64  `yaml:"max-nodes"`
	MaxAreas     int    `yaml:"max-areas"`
	MapID        int    `yaml:"mapid"`
	Overlap      int    `yaml:"overlap"`
	Description  string `yaml:"description"`
	SplitFile    string `yaml:"split-file"`
	WriteKML     string `yaml:"write-kml"`
	WriteGeoJSON string `yaml:"write-geojson"`
	OutputDir    string `yaml:"output-dir"`
	EvenCells    bool   `yaml:"even-cells"`
	Buffered     bool   `yaml:"buffered"`
	Snapshot     string `yaml:"snapshot"`
	// Bounds：可选的采集范围（角度，minLat,minLon,maxLat,maxLon），为空时采集全球
	Bounds       string `yaml:"bounds"`

	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

func Default() Config {
	return Config{
		Resolution:  geo.DefaultResolution,
		MaxNodes:    DefaultMaxNodes,
		MaxAreas:    areas.MaxAreasPerPass,
		MapID:       DefaultMapID,
		Overlap:     DefaultOverlap,
		Description: DefaultDescription,
		OutputDir:   ".",
		Redis:       RedisConfig{TTL: 24 * time.Hour},
	}
}

// Load：缺省值 → YAML 文件（path 为空时跳过）→ 环境变量
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv：SPLIT_* 环境变量覆盖，解析失败的值忽略
func (c *Config) ApplyEnv() {
	envInt("SPLIT_RESOLUTION", &c.Resolution)
	envInt("SPLIT_MAX_AREAS", &c.MaxAreas)
	envInt("SPLIT_MAPID", &c.MapID)
	envInt("SPLIT_OVERLAP", &c.Overlap)
	if v := os.Getenv("SPLIT_MAX_NODES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxNodes = n
		}
	}
	envString("SPLIT_DESCRIPTION", &c.Description)
	envString("SPLIT_OUTPUT_DIR", &c.OutputDir)
	envString("SPLIT_SNAPSHOT", &c.Snapshot)
	envString("SPLIT_BOUNDS", &c.Bounds)
	envString("SPLIT_METRICS_ADDR", &c.Metrics.Addr)
	envBool("SPLIT_DB_ENABLE", &c.DB.Enable)
	envBool("SPLIT_REDIS_ENABLE", &c.Redis.Enable)
	if v := os.Getenv("SPLIT_REDIS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Redis.TTL = d
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Adjustment：Normalize 对越界参数做的一次修正
type Adjustment struct {
	Field string
	Got   int64
	Reset int64
}

// Normalize：越界参数回退为缺省值并返回修正列表，由调用方记录警告，不中止运行
func (c *Config) Normalize() []Adjustment {
	var adj []Adjustment
	if !geo.ValidResolution(c.Resolution) {
		adj = append(adj, Adjustment{Field: "resolution", Got: int64(c.Resolution), Reset: geo.DefaultResolution})
		c.Resolution = geo.DefaultResolution
	}
	if c.MaxAreas < 1 || c.MaxAreas > areas.MaxAreasPerPass {
		adj = append(adj, Adjustment{Field: "max-areas", Got: int64(c.MaxAreas), Reset: areas.MaxAreasPerPass})
		c.MaxAreas = areas.MaxAreasPerPass
	}
	if c.MaxNodes < 1 {
		adj = append(adj, Adjustment{Field: "max-nodes", Got: c.MaxNodes, Reset: DefaultMaxNodes})
		c.MaxNodes = DefaultMaxNodes
	}
	if c.Overlap < 0 {
		adj = append(adj, Adjustment{Field: "overlap", Got: int64(c.Overlap), Reset: 0})
		c.Overlap = 0
	}
	if c.MapID < 1 || !areas.ValidMapID(c.MapID) {
		adj = append(adj, Adjustment{Field: "mapid", Got: int64(c.MapID), Reset: DefaultMapID})
		c.MapID = DefaultMapID
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	return adj
}

// ParseBounds：解析 "minLat,minLon,maxLat,maxLon"（角度），空串返回 nil
func ParseBounds(s string) (*geo.Area, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.Errorf("bounds %q: want minLat,minLon,maxLat,maxLon", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bounds %q", s)
		}
		v[i] = f
	}
	a := geo.Area{
		MinLat: geo.ToMapUnit(v[0]),
		MinLon: geo.ToMapUnit(v[1]),
		MaxLat: geo.ToMapUnit(v[2]),
		MaxLon: geo.ToMapUnit(v[3]),
	}
	if a.MinLat > a.MaxLat || a.MinLon > a.MaxLon {
		return nil, errors.Errorf("bounds %q: min greater than max", s)
	}
	return &a, nil
}
