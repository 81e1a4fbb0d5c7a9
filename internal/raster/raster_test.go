package raster

import (
	"math"
	"testing"

	"github.com/streetlevel/mapraster-go/internal/geo"
)

func berkeleyPyramid() geo.Pyramid {
	return geo.Pyramid{
		RootUpperLeftLon:  -122.2998046875,
		RootUpperLeftLat:  37.892195547244356,
		RootLowerRightLon: -122.2119140625,
		RootLowerRightLat: 37.82280243352756,
		TileSide:          256,
		MaxDepth:          7,
	}
}

func TestDepthFor(t *testing.T) {
	p := berkeleyPyramid()
	rootDPP := p.RootWidth() / p.TileSide

	tests := []struct {
		name   string
		lonDPP float64
		want   int
	}{
		{name: "exactly depth 0", lonDPP: rootDPP, want: 0},
		{name: "slightly finer than depth 0", lonDPP: rootDPP * 0.99, want: 1},
		{name: "coarser than depth 0 clamps low", lonDPP: rootDPP * 10, want: 0},
		{name: "depth 4", lonDPP: rootDPP / 16, want: 4},
		{name: "between depths rounds deeper", lonDPP: rootDPP / 24, want: 5},
		{name: "finer than max depth clamps high", lonDPP: rootDPP / 1e6, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DepthFor(p, tt.lonDPP); got != tt.want {
				t.Errorf("DepthFor(%g) = %d, want %d", tt.lonDPP, got, tt.want)
			}
		})
	}
}

func TestSelectDeepZoom(t *testing.T) {
	// Narrow box rendered into a wide viewport: wants finer resolution than
	// the pyramid has, so depth clamps to 7
	q := Query{
		UpperLeftLon:  -122.24163047377972,
		UpperLeftLat:  37.87655856892288,
		LowerRightLon: -122.24053369025242,
		LowerRightLat: 37.87548268822065,
		Width:         892,
	}

	res, err := Select(berkeleyPyramid(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatal("expected query to succeed")
	}
	if res.Depth != 7 {
		t.Errorf("expected depth 7, got %d", res.Depth)
	}

	if len(res.Grid) != 3 || len(res.Grid[0]) != 3 {
		t.Fatalf("expected 3x3 grid, got %dx%d", len(res.Grid), len(res.Grid[0]))
	}
	if res.Grid[0][0] != "d7_x84_y28.png" {
		t.Errorf("expected top-left tile d7_x84_y28.png, got %s", res.Grid[0][0])
	}
	if res.Grid[2][2] != "d7_x86_y30.png" {
		t.Errorf("expected bottom-right tile d7_x86_y30.png, got %s", res.Grid[2][2])
	}

	wantBounds := Bounds{
		UpperLeftLon:  -122.24212646484375,
		UpperLeftLat:  37.87701580361881,
		LowerRightLon: -122.24006652832031,
		LowerRightLat: 37.87538940251607,
	}
	checkBounds(t, res.Bounds, wantBounds)

	if !res.Bounds.Contains(q) {
		t.Error("covered bounds must contain the query box")
	}
}

func TestSelectMidZoom(t *testing.T) {
	q := Query{
		UpperLeftLon:  -122.30410170759153,
		UpperLeftLat:  37.870213571328854,
		LowerRightLon: -122.2104604264636,
		LowerRightLat: 37.8318576119893,
		Width:         1091,
	}

	res, err := Select(berkeleyPyramid(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatal("expected query to succeed")
	}
	if res.Depth != 2 {
		t.Errorf("expected depth 2, got %d", res.Depth)
	}
	if res.Grid[0][0] != "d2_x0_y1.png" {
		t.Errorf("expected top-left tile d2_x0_y1.png, got %s", res.Grid[0][0])
	}
}

func TestSelectWholeRoot(t *testing.T) {
	p := berkeleyPyramid()
	q := Query{
		UpperLeftLon:  p.RootUpperLeftLon,
		UpperLeftLat:  p.RootUpperLeftLat,
		LowerRightLon: p.RootLowerRightLon,
		LowerRightLat: p.RootLowerRightLat,
		Width:         p.TileSide,
	}

	res, err := Select(p, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK || res.Depth != 0 {
		t.Fatalf("expected depth 0 success, got depth %d ok %v", res.Depth, res.OK)
	}
	if len(res.Grid) != 1 || len(res.Grid[0]) != 1 || res.Grid[0][0] != "d0_x0_y0.png" {
		t.Errorf("expected single root tile, got %v", res.Grid)
	}
	checkBounds(t, res.Bounds, Bounds{
		UpperLeftLon:  p.RootUpperLeftLon,
		UpperLeftLat:  p.RootUpperLeftLat,
		LowerRightLon: p.RootLowerRightLon,
		LowerRightLat: p.RootLowerRightLat,
	})
}

func TestSelectQueryWiderThanRoot(t *testing.T) {
	// Query box spills past the root on both sides: indices clamp to the
	// full grid at the chosen depth
	q := Query{
		UpperLeftLon:  -122.3027284165759,
		UpperLeftLat:  37.88708748276975,
		LowerRightLon: -122.20908713544797,
		LowerRightLat: 37.848731523430196,
		Width:         305,
	}

	res, err := Select(berkeleyPyramid(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatal("expected query to succeed")
	}
	if res.Depth != 1 {
		t.Errorf("expected depth 1, got %d", res.Depth)
	}
	if len(res.Grid) != 2 || len(res.Grid[0]) != 2 {
		t.Fatalf("expected full 2x2 grid, got %v", res.Grid)
	}
	if res.Grid[0][0] != "d1_x0_y0.png" || res.Grid[1][1] != "d1_x1_y1.png" {
		t.Errorf("unexpected grid corners: %v", res.Grid)
	}
}

func TestSelectDegenerateWidth(t *testing.T) {
	for _, width := range []float64{0, -100} {
		q := Query{
			UpperLeftLon:  -122.25,
			UpperLeftLat:  37.88,
			LowerRightLon: -122.22,
			LowerRightLat: 37.84,
			Width:         width,
		}
		if _, err := Select(berkeleyPyramid(), q); err != ErrDegenerateQuery {
			t.Errorf("width %g: expected ErrDegenerateQuery, got %v", width, err)
		}
	}
}

func TestSelectOutsideRoot(t *testing.T) {
	// Entirely west of the root area: no grid, but bounds are still reported
	q := Query{
		UpperLeftLon:  -123.0,
		UpperLeftLat:  37.88,
		LowerRightLon: -122.9,
		LowerRightLat: 37.84,
		Width:         100,
	}

	res, err := Select(berkeleyPyramid(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Error("expected query to fail")
	}
	if res.Grid != nil {
		t.Errorf("failed query must not return a partial grid, got %v", res.Grid)
	}
}

func TestSelectGridShape(t *testing.T) {
	q := Query{
		UpperLeftLon:  -122.29,
		UpperLeftLat:  37.89,
		LowerRightLon: -122.22,
		LowerRightLat: 37.83,
		Width:         700,
	}

	res, err := Select(berkeleyPyramid(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatal("expected query to succeed")
	}

	// Equal row lengths, unique names, strictly increasing indices
	seen := make(map[string]bool)
	for r, row := range res.Grid {
		if len(row) != len(res.Grid[0]) {
			t.Fatalf("row %d has length %d, want %d", r, len(row), len(res.Grid[0]))
		}
		for _, name := range row {
			if seen[name] {
				t.Errorf("duplicate tile %s", name)
			}
			seen[name] = true
		}
	}
}

func TestSelectIdempotent(t *testing.T) {
	q := Query{
		UpperLeftLon:  -122.27,
		UpperLeftLat:  37.88,
		LowerRightLon: -122.23,
		LowerRightLat: 37.84,
		Width:         500,
	}

	first, err1 := Select(berkeleyPyramid(), q)
	second, err2 := Select(berkeleyPyramid(), q)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if first.Depth != second.Depth || first.OK != second.OK ||
		first.Bounds != second.Bounds || len(first.Grid) != len(second.Grid) {
		t.Error("identical queries must yield identical results")
	}
	for r := range first.Grid {
		for c := range first.Grid[r] {
			if first.Grid[r][c] != second.Grid[r][c] {
				t.Fatalf("grid mismatch at (%d,%d)", r, c)
			}
		}
	}
}

func TestTileName(t *testing.T) {
	if got := TileName(7, 84, 28); got != "d7_x84_y28.png" {
		t.Errorf("TileName(7, 84, 28) = %s, want d7_x84_y28.png", got)
	}
}

func checkBounds(t *testing.T, got, want Bounds) {
	t.Helper()
	const eps = 1e-9
	if math.Abs(got.UpperLeftLon-want.UpperLeftLon) > eps ||
		math.Abs(got.UpperLeftLat-want.UpperLeftLat) > eps ||
		math.Abs(got.LowerRightLon-want.LowerRightLon) > eps ||
		math.Abs(got.LowerRightLat-want.LowerRightLat) > eps {
		t.Errorf("bounds = %+v, want %+v", got, want)
	}
}
