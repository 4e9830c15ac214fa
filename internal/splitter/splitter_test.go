package splitter

import (
	"errors"
	"math/rand"
	"testing"

	"tile-splitter/internal/density"
	"tile-splitter/internal/geo"
)

// gridMap：按 counts[y][x] 建立格边长为 cell 的密度图，原点在 (0,0)
func gridMap(t *testing.T, cell int, counts [][]int) *density.DensityMap {
	t.Helper()
	h, w := len(counts), len(counts[0])
	dm, err := density.NewWithCellSize(geo.Area{MaxLat: h * cell, MaxLon: w * cell}, cell)
	if err != nil {
		t.Fatal(err)
	}
	for y, row := range counts {
		for x, n := range row {
			for i := 0; i < n; i++ {
				if err := dm.AddPoint(y*cell+cell/2, x*cell+cell/2); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	return dm
}

func checkPartition(t *testing.T, dm *density.DensityMap, res *Result, maxNodes int64) {
	t.Helper()
	l := res.Areas
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if l.Bounds() != dm.Bounds() {
		t.Fatalf("union %v, want %v", l.Bounds(), dm.Bounds())
	}
	var total int64
	for _, a := range l.Areas() {
		total += a.Size
		if !a.Bounds.IsAligned(dm.CellSize()) {
			t.Errorf("tile %v not aligned to %d", a.Bounds, dm.CellSize())
		}
		if a.Size > maxNodes {
			single := a.Bounds.Width() == dm.CellSize() && a.Bounds.Height() == dm.CellSize()
			if !single || res.Outcome != OversizedSingleCell {
				t.Errorf("tile %v size %d exceeds %d", a.Bounds, a.Size, maxNodes)
			}
		}
	}
	if total != dm.Total() {
		t.Errorf("tile sizes sum to %d, want %d", total, dm.Total())
	}
}

func TestSplitTwoByTwo(t *testing.T) {
	dm := gridMap(t, 1000, [][]int{{5, 5}, {5, 5}})
	res, err := Split(dm, Options{MaxNodes: 12})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Balanced {
		t.Errorf("Outcome = %v, want balanced", res.Outcome)
	}
	got := res.Areas.Areas()
	if len(got) != 2 {
		t.Fatalf("got %d tiles, want 2", len(got))
	}
	want := []geo.Area{
		{MinLat: 0, MinLon: 0, MaxLat: 2000, MaxLon: 1000},
		{MinLat: 0, MinLon: 1000, MaxLat: 2000, MaxLon: 2000},
	}
	for i, a := range got {
		if a.Size != 10 || a.Bounds != want[i] {
			t.Errorf("tile %d = %v size %d, want %v size 10", i, a.Bounds, a.Size, want[i])
		}
	}
	checkPartition(t, dm, res, 12)
}

func TestSplitSingleTile(t *testing.T) {
	dm := gridMap(t, 1000, [][]int{{5, 5, 1}, {5, 5, 0}})
	res, err := Split(dm, Options{MaxNodes: 21})
	if err != nil {
		t.Fatal(err)
	}
	if res.Areas.Len() != 1 || res.Areas.Areas()[0].Bounds != dm.Bounds() || res.Areas.Areas()[0].Size != 21 {
		t.Errorf("got %v, want one tile covering %v", res.Areas.Areas(), dm.Bounds())
	}
}

func TestSplitEmptyMap(t *testing.T) {
	dm, err := density.New(geo.Area{MinLat: 0, MinLon: 0, MaxLat: 8192, MaxLon: 8192}, 13)
	if err != nil {
		t.Fatal(err)
	}
	res, err := Split(dm, Options{MaxNodes: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Areas.Len() != 1 || res.Areas.Areas()[0].Size != 0 {
		t.Errorf("empty map split into %d tiles", res.Areas.Len())
	}
}

func TestSplitRejectsBadBudget(t *testing.T) {
	dm := gridMap(t, 1000, [][]int{{1}})
	if _, err := Split(dm, Options{MaxNodes: 0}); !errors.Is(err, ErrInvalidMaxNodes) {
		t.Errorf("Split() error = %v, want ErrInvalidMaxNodes", err)
	}
}

func TestSplitOversizedCell(t *testing.T) {
	counts := [][]int{
		{1, 1, 1, 1},
		{1, 1, 1, 1},
		{1, 100, 1, 1},
		{1, 1, 1, 1},
	}
	dm := gridMap(t, 1000, counts)
	res, err := Split(dm, Options{MaxNodes: 10})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OversizedSingleCell {
		t.Fatalf("Outcome = %v, want oversized_single_cell", res.Outcome)
	}
	if len(res.Oversized) != 1 {
		t.Fatalf("Oversized has %d tiles, want 1", len(res.Oversized))
	}
	want := geo.Area{MinLat: 2000, MinLon: 1000, MaxLat: 3000, MaxLon: 2000}
	if a := res.Oversized[0]; a.Bounds != want || a.Size != 100 {
		t.Errorf("oversized tile = %v size %d, want %v size 100", a.Bounds, a.Size, want)
	}
	checkPartition(t, dm, res, 10)
}

func randomDensity(t *testing.T, seed int64, w, h, points int) *density.DensityMap {
	t.Helper()
	dm, err := density.New(geo.Area{MinLat: -h * 1024, MinLon: -w * 1024, MaxLat: h * 1024, MaxLon: w * 1024}, 13)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(seed))
	b := dm.Bounds()
	for i := 0; i < points; i++ {
		// 两个聚集中心加均匀背景
		var lat, lon int
		switch i % 3 {
		case 0:
			lat = int(r.NormFloat64()*float64(b.Height())/10) + b.Height()/4
			lon = int(r.NormFloat64()*float64(b.Width())/12) - b.Width()/5
		case 1:
			lat = int(r.NormFloat64()*float64(b.Height())/20) - b.Height()/5
			lon = int(r.NormFloat64()*float64(b.Width())/20) + b.Width()/4
		default:
			lat = b.MinLat + r.Intn(b.Height())
			lon = b.MinLon + r.Intn(b.Width())
		}
		lat = min(max(lat, b.MinLat), b.MaxLat)
		lon = min(max(lon, b.MinLon), b.MaxLon)
		if err := dm.AddPoint(lat, lon); err != nil {
			t.Fatal(err)
		}
	}
	return dm
}

func TestSplitProperties(t *testing.T) {
	tests := []struct {
		name     string
		seed     int64
		w, h     int
		points   int
		maxNodes int64
		even     bool
	}{
		{"square", 1, 64, 64, 50000, 2000, false},
		{"wide", 2, 200, 20, 40000, 1500, false},
		{"tall", 3, 10, 120, 30000, 999, false},
		{"tiny budget", 4, 16, 16, 5000, 1, false},
		{"even cells", 5, 64, 32, 50000, 2000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := randomDensity(t, tt.seed, tt.w, tt.h, tt.points)
			opts := Options{MaxNodes: tt.maxNodes, EvenCells: tt.even}
			res, err := Split(dm, opts)
			if err != nil {
				t.Fatal(err)
			}
			if tt.even {
				for _, a := range res.Areas.Areas() {
					if a.Bounds.Width()%(2*dm.CellSize()) != 0 || a.Bounds.Height()%(2*dm.CellSize()) != 0 {
						t.Errorf("tile %v not a multiple of two cells", a.Bounds)
					}
					if a.Size > tt.maxNodes && (a.Bounds.Width() > 2*dm.CellSize() || a.Bounds.Height() > 2*dm.CellSize()) {
						t.Errorf("tile %v size %d exceeds %d", a.Bounds, a.Size, tt.maxNodes)
					}
				}
			} else {
				checkPartition(t, dm, res, tt.maxNodes)
			}
			if err := res.Areas.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}

			again, err := Split(dm, opts)
			if err != nil {
				t.Fatal(err)
			}
			if again.Areas.Len() != res.Areas.Len() {
				t.Fatalf("second split produced %d tiles, want %d", again.Areas.Len(), res.Areas.Len())
			}
			for i, a := range res.Areas.Areas() {
				b := again.Areas.Areas()[i]
				if a.Bounds != b.Bounds || a.Size != b.Size {
					t.Fatalf("tile %d differs between runs: %v/%d vs %v/%d", i, a.Bounds, a.Size, b.Bounds, b.Size)
				}
			}
		})
	}
}

func TestChooseCutPrefersLongAxis(t *testing.T) {
	// 行方向更均衡，但宽度超过高度 1.5 倍时仍竖切
	cols := []int64{8, 0, 0, 0, 0, 0, 0, 0, 0, 12}
	rows := []int64{10, 10}
	ax, cut, ok := chooseCut(density.Cells{W: 10, H: 2}, cols, rows, 20, 1)
	if !ok || ax != axisLon || cut != 1 {
		t.Errorf("chooseCut() = %v, %d, %v, want lon, 1, true", ax, cut, ok)
	}
	ax, _, _ = chooseCut(density.Cells{W: 3, H: 3}, []int64{4, 4, 12}, []int64{10, 0, 10}, 20, 1)
	if ax != axisLat {
		t.Errorf("chooseCut() on square range = %v, want lat", ax)
	}
}

func TestParseOutcome(t *testing.T) {
	for _, o := range []Outcome{Balanced, OversizedSingleCell} {
		got, err := ParseOutcome(o.String())
		if err != nil || got != o {
			t.Errorf("ParseOutcome(%q) = %v, %v, want %v", o.String(), got, err, o)
		}
	}
	if _, err := ParseOutcome("outcome(7)"); err == nil {
		t.Errorf("ParseOutcome accepted an unknown outcome")
	}
}
