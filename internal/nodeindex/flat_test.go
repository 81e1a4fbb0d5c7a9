package nodeindex

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/streetlevel/mapraster-go/internal/graph"
)

var _ graph.CoordStore = (*FlatIndex)(nil)

func TestPutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.bin")

	idx, err := Create(path)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	defer idx.Close()

	idx.Put(1, 37.8701234, -122.2504321)
	idx.Put(9_999_999, -43.7384, 7.4246)

	lat, lon, ok := idx.Get(1)
	if !ok {
		t.Fatal("expected node 1")
	}
	// Fixed-point storage keeps 7 decimal places
	if math.Abs(lat-37.8701234) > 2e-7 || math.Abs(lon+122.2504321) > 2e-7 {
		t.Errorf("got (%f, %f)", lat, lon)
	}

	if _, _, ok := idx.Get(2); ok {
		t.Error("unwritten id must read as absent")
	}
	if _, _, ok := idx.Get(-1); ok {
		t.Error("negative id must read as absent")
	}
	if _, _, ok := idx.Get(maxNodeID + 5); ok {
		t.Error("out-of-range id must read as absent")
	}
}

func TestBacksGraphCoordinates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.bin")

	idx, err := Create(path)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	defer idx.Close()

	g := graph.NewWithCoordStore(idx)
	g.AddNode(graph.Node{ID: 1, Lon: -122.25, Lat: 37.87})
	g.AddNode(graph.Node{ID: 2, Lon: -122.24, Lat: 37.87})

	d, err := g.Distance(1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d-877.8) > 2.0 {
		t.Errorf("expected ~877.8m through the flat store, got %f", d)
	}
}

func TestReopenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.bin")

	idx, err := Create(path)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	idx.Put(42, 51.5074, -0.1278)
	if err := idx.Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	ro, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer ro.Close()

	lat, lon, ok := ro.Get(42)
	if !ok {
		t.Fatal("expected node 42 after reopen")
	}
	if math.Abs(lat-51.5074) > 2e-7 || math.Abs(lon+0.1278) > 2e-7 {
		t.Errorf("got (%f, %f)", lat, lon)
	}
}
