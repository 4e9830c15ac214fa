package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tile-splitter/internal/geo"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SPLIT_RESOLUTION", "SPLIT_MAX_AREAS", "SPLIT_MAPID", "SPLIT_OVERLAP", "SPLIT_MAX_NODES",
		"SPLIT_DESCRIPTION", "SPLIT_OUTPUT_DIR", "SPLIT_SNAPSHOT", "SPLIT_BOUNDS", "SPLIT_METRICS_ADDR",
		"SPLIT_DB_ENABLE", "SPLIT_REDIS_ENABLE", "SPLIT_REDIS_TTL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("Load(\"\") = %+v, want %+v", cfg, want)
	}
	if cfg.Resolution != 13 || cfg.MaxNodes != 1600000 || cfg.MaxAreas != 255 || cfg.MapID != 63240001 || cfg.Overlap != 2000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "splitter.yaml")
	yml := `resolution: 14
max-nodes: 800000
mapid: 12340001
description: Test Map
write-kml: areas.kml
redis:
  enable: true
  ttl: 2h
metrics:
  addr: ":9100"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPLIT_MAX_NODES", "900000")
	t.Setenv("SPLIT_OVERLAP", "not-a-number")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Resolution != 14 || cfg.MapID != 12340001 || cfg.Description != "Test Map" || cfg.WriteKML != "areas.kml" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.MaxNodes != 900000 {
		t.Errorf("MaxNodes = %d, want env override 900000", cfg.MaxNodes)
	}
	if cfg.Overlap != DefaultOverlap {
		t.Errorf("Overlap = %d, want default after bad env value", cfg.Overlap)
	}
	if !cfg.Redis.Enable || cfg.Redis.TTL != 2*time.Hour || cfg.Metrics.Addr != ":9100" {
		t.Errorf("nested values not applied: %+v", cfg)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load() of missing file succeeded")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"valid", func(c *Config) {}, nil},
		{"resolution too high", func(c *Config) { c.Resolution = 25 }, []string{"resolution"}},
		{"resolution zero", func(c *Config) { c.Resolution = 0 }, []string{"resolution"}},
		{"max areas", func(c *Config) { c.MaxAreas = 300 }, []string{"max-areas"}},
		{"several", func(c *Config) { c.MaxAreas = 0; c.MaxNodes = -1; c.Overlap = -5 }, []string{"max-areas", "max-nodes", "overlap"}},
		{"mapid beyond int32", func(c *Config) { c.MapID = 1 << 32 }, []string{"mapid"}},
		{"mapid zero", func(c *Config) { c.MapID = 0 }, []string{"mapid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			adj := cfg.Normalize()
			if len(adj) != len(tt.fields) {
				t.Fatalf("Normalize() = %+v, want fields %v", adj, tt.fields)
			}
			for i, f := range tt.fields {
				if adj[i].Field != f {
					t.Errorf("adjustment %d field = %s, want %s", i, adj[i].Field, f)
				}
			}
			if !geo.ValidResolution(cfg.Resolution) || cfg.MaxAreas < 1 || cfg.MaxAreas > 255 || cfg.MaxNodes < 1 || cfg.Overlap < 0 || cfg.MapID < 1 {
				t.Errorf("config still out of range: %+v", cfg)
			}
		})
	}
}

func TestParseBounds(t *testing.T) {
	a, err := ParseBounds("45, -1, 46.5, 2")
	if err != nil {
		t.Fatal(err)
	}
	want := geo.Area{MinLat: geo.ToMapUnit(45), MinLon: geo.ToMapUnit(-1), MaxLat: geo.ToMapUnit(46.5), MaxLon: geo.ToMapUnit(2)}
	if *a != want {
		t.Errorf("ParseBounds() = %v, want %v", *a, want)
	}
	if a, err := ParseBounds(""); a != nil || err != nil {
		t.Errorf("ParseBounds(\"\") = %v, %v", a, err)
	}
	for _, bad := range []string{"1,2,3", "a,b,c,d", "10,0,5,1"} {
		if _, err := ParseBounds(bad); err == nil {
			t.Errorf("ParseBounds(%q) accepted", bad)
		}
	}
}
