package density

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"tile-splitter/internal/geo"
)

const (
	snapshotMagic   = "TSDM"
	snapshotVersion = 1
)

// Meta：快照附带的扫描信息，用于判断能否跳过第一遍扫描
type Meta struct {
	Fingerprint uint64
	Exact       geo.Area
	Points      int64
}

// snapshotHeader：定长小端头部，不压缩，便于 mmap 后直接读取
type snapshotHeader struct {
	Magic       [4]byte
	Version     uint32
	Resolution  int32
	Cell        int32
	Bounds      [4]int32
	Exact       [4]int32
	Fingerprint uint64
	Points      int64
	Total       int64
}

func toInt32s(a geo.Area) [4]int32 {
	return [4]int32{int32(a.MinLat), int32(a.MinLon), int32(a.MaxLat), int32(a.MaxLon)}
}

func fromInt32s(v [4]int32) geo.Area {
	return geo.Area{MinLat: int(v[0]), MinLon: int(v[1]), MaxLat: int(v[2]), MaxLon: int(v[3])}
}

// Save：写出密度网格快照
// 格式：定长头部 + zstd 压缩的列数据（每列一个字节标记是否分配，随后 height 个 int32）
func Save(path string, dm *DensityMap, meta Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create snapshot %s", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	hdr := snapshotHeader{
		Version:     snapshotVersion,
		Resolution:  int32(dm.res),
		Cell:        int32(dm.cell),
		Bounds:      toInt32s(dm.bounds),
		Exact:       toInt32s(meta.Exact),
		Fingerprint: meta.Fingerprint,
		Points:      meta.Points,
		Total:       dm.total,
	}
	copy(hdr.Magic[:], snapshotMagic)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "write snapshot header")
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return errors.Wrap(err, "create zstd writer")
	}
	for _, col := range dm.grid {
		if col == nil {
			if _, err := enc.Write([]byte{0}); err != nil {
				return errors.Wrap(err, "write snapshot column")
			}
			continue
		}
		if _, err := enc.Write([]byte{1}); err != nil {
			return errors.Wrap(err, "write snapshot column")
		}
		if err := binary.Write(enc, binary.LittleEndian, col); err != nil {
			return errors.Wrap(err, "write snapshot column")
		}
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "close zstd writer")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "flush snapshot %s", path)
	}
	return f.Sync()
}

// Load：只读映射快照文件并解码网格
func Load(path string) (*DensityMap, Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Meta{}, errors.Wrapf(err, "open snapshot %s", path)
	}
	defer f.Close()
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, Meta{}, errors.Wrapf(err, "mmap snapshot %s", path)
	}
	defer m.Unmap()

	var hdr snapshotHeader
	hdrLen := binary.Size(hdr)
	if len(m) < hdrLen {
		return nil, Meta{}, errors.Errorf("snapshot %s truncated", path)
	}
	if err := binary.Read(bytes.NewReader(m[:hdrLen]), binary.LittleEndian, &hdr); err != nil {
		return nil, Meta{}, errors.Wrap(err, "read snapshot header")
	}
	if string(hdr.Magic[:]) != snapshotMagic || hdr.Version != snapshotVersion {
		return nil, Meta{}, errors.Errorf("snapshot %s: unsupported format", path)
	}
	dm, err := NewWithCellSize(fromInt32s(hdr.Bounds), int(hdr.Cell))
	if err != nil {
		return nil, Meta{}, err
	}
	dm.res = int(hdr.Resolution)

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, Meta{}, errors.Wrap(err, "create zstd reader")
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(m[hdrLen:], nil)
	if err != nil {
		return nil, Meta{}, errors.Wrapf(err, "decode snapshot %s", path)
	}
	colBytes := dm.height * 4
	off := 0
	for x := 0; x < dm.width; x++ {
		if off >= len(raw) {
			return nil, Meta{}, errors.Errorf("snapshot %s: column %d missing", path, x)
		}
		flag := raw[off]
		off++
		if flag == 0 {
			continue
		}
		if off+colBytes > len(raw) {
			return nil, Meta{}, errors.Errorf("snapshot %s: column %d truncated", path, x)
		}
		col := make([]int32, dm.height)
		for y := range col {
			col[y] = int32(binary.LittleEndian.Uint32(raw[off+4*y:]))
		}
		off += colBytes
		dm.grid[x] = col
		for _, v := range col {
			dm.total += int64(v)
		}
	}
	if dm.total != hdr.Total {
		return nil, Meta{}, errors.Errorf("snapshot %s: total %d, header says %d", path, dm.total, hdr.Total)
	}
	meta := Meta{Fingerprint: hdr.Fingerprint, Exact: fromInt32s(hdr.Exact), Points: hdr.Points}
	return dm, meta, nil
}
