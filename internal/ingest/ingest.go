// 包 ingest：读取 OSM 输入文件并把节点坐标（地图单位）逐个交给处理函数
// 背景：两遍扫描都经由这里，第一遍建立密度图，第二遍把节点分配到瓦片
package ingest

import (
	"context"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"

	"tile-splitter/internal/geo"
	"tile-splitter/internal/logger"
)

// NodeHandler：收到一个节点；返回错误时中止扫描
type NodeHandler func(id int64, lat, lon int) error

// Stats：一次扫描的统计
type Stats struct {
	Files     int
	Nodes     int64
	Others    int64
	MinNodeID int64
	MaxNodeID int64
}

func (s *Stats) node(id int64) {
	if s.Nodes == 0 || id < s.MinNodeID {
		s.MinNodeID = id
	}
	if s.Nodes == 0 || id > s.MaxNodeID {
		s.MaxNodeID = id
	}
	s.Nodes++
}

// ProgressEvery：每处理这么多节点输出一次进度日志
var ProgressEvery int64 = 10_000_000

// Supported：是否为可识别的输入文件扩展名
func Supported(path string) bool {
	p := strings.ToLower(path)
	for _, suf := range []string{".pbf", ".osm", ".osm.gz", ".osm.zst"} {
		if strings.HasSuffix(p, suf) {
			return true
		}
	}
	return false
}

// ScanNodes：依次扫描所有文件
// 约束：ctx 取消时停止并返回 ctx.Err()；遇到第一个 way 后不再读取该文件（OSM 文件按 node/way/relation 排序）
func ScanNodes(ctx context.Context, paths []string, h NodeHandler) (Stats, error) {
	var st Stats
	l := logger.L()
	for _, p := range paths {
		l.Info("ingest_start", "file", p)
		if err := scanFile(ctx, p, h, &st); err != nil {
			return st, err
		}
		st.Files++
		l.Info("ingest_file_done", "file", p, "nodes", st.Nodes)
	}
	return st, nil
}

func scanFile(ctx context.Context, path string, h NodeHandler, st *Stats) error {
	sc, closer, err := open(ctx, path)
	if err != nil {
		return err
	}
	defer closer.Close()
	defer sc.Close()

	l := logger.L()
	for sc.Scan() {
		switch o := sc.Object().(type) {
		case *osm.Node:
			id := int64(o.ID)
			st.node(id)
			if err := h(id, geo.ToMapUnit(o.Lat), geo.ToMapUnit(o.Lon)); err != nil {
				return errors.Wrapf(err, "%s: node %d", path, id)
			}
			if ProgressEvery > 0 && st.Nodes%ProgressEvery == 0 {
				l.Info("ingest_progress", "file", path, "nodes", st.Nodes)
			}
		case *osm.Way, *osm.Relation:
			st.Others++
			return ctx.Err()
		default:
			st.Others++
		}
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return errors.Wrapf(err, "scan %s", path)
	}
	return ctx.Err()
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closeFunc func()

func (f closeFunc) Close() error { f(); return nil }

// open：按扩展名选择解码器
func open(ctx context.Context, path string) (osm.Scanner, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".pbf"):
		s := osmpbf.New(ctx, f, runtime.NumCPU())
		s.SkipWays = true
		s.SkipRelations = true
		return s, f, nil
	case strings.HasSuffix(p, ".osm.gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, errors.Wrapf(err, "gzip %s", path)
		}
		return osmxml.New(ctx, gz), multiCloser{f, gz}, nil
	case strings.HasSuffix(p, ".osm.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, errors.Wrapf(err, "zstd %s", path)
		}
		return osmxml.New(ctx, zr), multiCloser{f, closeFunc(zr.Close)}, nil
	case strings.HasSuffix(p, ".osm"):
		return osmxml.New(ctx, f), f, nil
	}
	f.Close()
	return nil, nil, errors.Errorf("unsupported input %s", path)
}
