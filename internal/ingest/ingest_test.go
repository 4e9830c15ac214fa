package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"tile-splitter/internal/geo"
)

const sampleOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
 <node id="11" version="1" lat="51.5" lon="-0.1"/>
 <node id="5" version="1" lat="48.85" lon="2.35"/>
 <node id="42" version="1" lat="-33.9" lon="151.2"/>
 <way id="100" version="1">
  <nd ref="11"/>
  <nd ref="5"/>
 </way>
</osm>
`

func writeSamples(t *testing.T) map[string]string {
	t.Helper()
	dir := t.TempDir()
	out := map[string]string{}

	plain := filepath.Join(dir, "sample.osm")
	if err := os.WriteFile(plain, []byte(sampleOSM), 0o644); err != nil {
		t.Fatal(err)
	}
	out["osm"] = plain

	gzPath := filepath.Join(dir, "sample.osm.gz")
	f, err := os.Create(gzPath)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	gw.Write([]byte(sampleOSM))
	gw.Close()
	f.Close()
	out["gzip"] = gzPath

	zstPath := filepath.Join(dir, "sample.osm.zst")
	f, err = os.Create(zstPath)
	if err != nil {
		t.Fatal(err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	zw.Write([]byte(sampleOSM))
	zw.Close()
	f.Close()
	out["zstd"] = zstPath

	// 三个节点同 sampleOSM，未压缩的 DenseNodes 块
	out["pbf"] = filepath.Join("testdata", "sample.osm.pbf")
	return out
}

func TestScanNodes(t *testing.T) {
	for name, path := range writeSamples(t) {
		t.Run(name, func(t *testing.T) {
			type pt struct {
				id       int64
				lat, lon int
			}
			var got []pt
			st, err := ScanNodes(context.Background(), []string{path}, func(id int64, lat, lon int) error {
				got = append(got, pt{id, lat, lon})
				return nil
			})
			if err != nil {
				t.Fatalf("ScanNodes() error = %v", err)
			}
			if st.Nodes != 3 || st.Files != 1 || st.MinNodeID != 5 || st.MaxNodeID != 42 {
				t.Errorf("Stats = %+v", st)
			}
			if len(got) != 3 {
				t.Fatalf("handler saw %d nodes, want 3", len(got))
			}
			want := pt{11, geo.ToMapUnit(51.5), geo.ToMapUnit(-0.1)}
			if got[0] != want {
				t.Errorf("first node = %+v, want %+v", got[0], want)
			}
		})
	}
}

func TestScanNodesHandlerError(t *testing.T) {
	path := writeSamples(t)["osm"]
	stop := errors.New("stop")
	_, err := ScanNodes(context.Background(), []string{path}, func(int64, int, int) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("ScanNodes() error = %v, want wrapped stop", err)
	}
}

func TestScanNodesUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	os.WriteFile(path, []byte("1,2"), 0o644)
	if _, err := ScanNodes(context.Background(), []string{path}, func(int64, int, int) error { return nil }); err == nil {
		t.Errorf("ScanNodes() accepted %s", path)
	}
	if Supported(path) || !Supported("planet.osm.pbf") || !Supported("x.OSM.GZ") {
		t.Errorf("Supported() wrong")
	}
}
