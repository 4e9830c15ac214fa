// 包 plancache：以输入文件与切分参数的指纹为键，在 Redis 中缓存瓦片列表
// 背景：同一份数据以同一参数重跑时可直接跳过两遍扫描中的第一遍与切分
package plancache

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"tile-splitter/internal/areas"
	"tile-splitter/internal/logger"
	"tile-splitter/internal/metrics"
	"tile-splitter/internal/splitter"
)

const keyPrefix = "splitter:areas:"

// Params：影响切分结果的参数
type Params struct {
	Resolution int
	MaxNodes   int64
	EvenCells  bool
	Bounds     string
}

// InputFingerprint：FNV-64a(绝对路径, 大小, 修改时间)，不读取文件内容
func InputFingerprint(paths []string) (uint64, error) {
	h := fnv.New64a()
	var buf [8]byte
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return 0, err
		}
		st, err := os.Stat(p)
		if err != nil {
			return 0, err
		}
		h.Write([]byte(abs))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(st.Size()))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(st.ModTime().UnixNano()))
		h.Write(buf[:])
	}
	return h.Sum64(), nil
}

// PlanKey：输入指纹与参数合成缓存键
func PlanKey(input uint64, p Params) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], input)
	h.Write(buf[:])
	fmt.Fprintf(h, "|r=%d|n=%d|e=%t|b=%s", p.Resolution, p.MaxNodes, p.EvenCells, p.Bounds)
	return h.Sum64()
}

func Key(plan uint64) string { return fmt.Sprintf("%s%016x", keyPrefix, plan) }

// Entry：缓存的一次切分结果
// 约束：areas.list 文本不含瓦片计数，计数、总点数与切分结果标记放在 # 开头的头部行，整个值仍是合法的 areas.list
type Entry struct {
	Areas   *areas.List
	Points  int64
	Outcome splitter.Outcome
}

func encode(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#plan points=%d outcome=%s tiles=%d\n", e.Points, e.Outcome, e.Areas.Len())
	for _, a := range e.Areas.Areas() {
		fmt.Fprintf(&buf, "#size %d %d\n", a.MapID, a.Size)
	}
	if err := e.Areas.WriteText(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(b []byte, key string) (*Entry, error) {
	var (
		e       Entry
		outcome string
		tiles   = -1
		ids     []int
		sizes   []int64
	)
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "#plan "):
			if _, err := fmt.Sscanf(line, "#plan points=%d outcome=%s tiles=%d", &e.Points, &outcome, &tiles); err != nil {
				return nil, errors.Wrapf(err, "%s: plan header", key)
			}
		case strings.HasPrefix(line, "#size "):
			var id int
			var size int64
			if _, err := fmt.Sscanf(line, "#size %d %d", &id, &size); err != nil {
				return nil, errors.Wrapf(err, "%s: size line", key)
			}
			ids = append(ids, id)
			sizes = append(sizes, size)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if tiles < 0 {
		return nil, errors.Errorf("%s: missing plan header", key)
	}
	o, err := splitter.ParseOutcome(outcome)
	if err != nil {
		return nil, errors.Wrap(err, key)
	}
	e.Outcome = o
	if e.Areas, err = areas.ReadText(bytes.NewReader(b), key); err != nil {
		return nil, err
	}
	list := e.Areas.Areas()
	if len(list) != tiles || len(sizes) != tiles {
		return nil, errors.Errorf("%s: %d tiles, %d sizes, header says %d", key, len(list), len(sizes), tiles)
	}
	for i, a := range list {
		if a.MapID != ids[i] {
			return nil, errors.Errorf("%s: size line %d is for map %d, tile is %d", key, i, ids[i], a.MapID)
		}
		a.Size = sizes[i]
	}
	return &e, nil
}

// Cache：rc 为 nil 时所有操作视为未命中，不阻断主流程
type Cache struct {
	rc  *redis.Client
	ttl time.Duration
}

func New(rc *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rc: rc, ttl: ttl}
}

// Get：命中时返回解析后的切分结果；缓存内容损坏时按未命中处理并删除该键
func (c *Cache) Get(ctx context.Context, plan uint64) (*Entry, bool, error) {
	if c == nil || c.rc == nil {
		return nil, false, nil
	}
	key := Key(plan)
	b, err := c.rc.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.PlanCacheTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.PlanCacheTotal.WithLabelValues("error").Inc()
		return nil, false, err
	}
	e, err := decode(b, key)
	if err != nil {
		logger.L().Warn("plan_cache_corrupt", "key", key, "err", err)
		_ = c.rc.Del(ctx, key).Err()
		metrics.PlanCacheTotal.WithLabelValues("corrupt").Inc()
		return nil, false, nil
	}
	metrics.PlanCacheTotal.WithLabelValues("hit").Inc()
	return e, true, nil
}

func (c *Cache) Put(ctx context.Context, plan uint64, e *Entry) error {
	if c == nil || c.rc == nil {
		return nil
	}
	b, err := encode(e)
	if err != nil {
		return err
	}
	return c.rc.Set(ctx, Key(plan), b, c.ttl).Err()
}
