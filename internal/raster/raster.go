package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/streetlevel/mapraster-go/internal/geo"
)

// ErrDegenerateQuery is returned when the viewport width is zero or negative,
// which would make the resolution target undefined
var ErrDegenerateQuery = errors.New("raster: degenerate query viewport")

// Query is one map-viewer request: a geographic box and the viewport width
// in pixels it will be rendered into
type Query struct {
	UpperLeftLon  float64
	UpperLeftLat  float64
	LowerRightLon float64
	LowerRightLat float64
	Width         float64 // viewport width in pixels
}

// LonDPP returns the query's longitudinal distance per pixel
func (q Query) LonDPP() float64 {
	return (q.LowerRightLon - q.UpperLeftLon) / q.Width
}

// Bounds is the exact geographic area spanned by a tile grid
type Bounds struct {
	UpperLeftLon  float64
	UpperLeftLat  float64
	LowerRightLon float64
	LowerRightLat float64
}

// Contains reports whether the query box lies inside the bounds
func (b Bounds) Contains(q Query) bool {
	return b.UpperLeftLon <= q.UpperLeftLon && b.UpperLeftLat >= q.UpperLeftLat &&
		b.LowerRightLon >= q.LowerRightLon && b.LowerRightLat <= q.LowerRightLat
}

// Result is the answer to a raster query. Grid is row-major with the
// northernmost row first; every row has equal length. When OK is false the
// grid is nil but Bounds still reports the area the index arithmetic covered,
// so callers can report the attempted extent.
type Result struct {
	Depth  int
	Grid   [][]string
	Bounds Bounds
	OK     bool
}

// TileName returns the identifier of the tile at the given depth and absolute
// column/row indices. The format is a fixed contract with the tile image
// store: "d<depth>_x<col>_y<row>.png".
func TileName(depth, x, y int) string {
	return fmt.Sprintf("d%d_x%d_y%d.png", depth, x, y)
}

// DepthFor returns the smallest depth in [0, MaxDepth] whose per-tile LonDPP
// is at or below the target, clamped to MaxDepth when the target asks for
// finer resolution than the pyramid provides
func DepthFor(p geo.Pyramid, lonDPP float64) int {
	depth := 0
	cur := p.RootWidth() / p.TileSide
	for cur > lonDPP && depth < p.MaxDepth {
		cur /= 2
		depth++
	}
	return depth
}

// Select maps a query box and viewport width onto the tile pyramid: it picks
// the shallowest depth fine enough for the viewport, computes the inclusive
// tile index range intersecting the box, and builds the tile-name grid plus
// the exact bounds the grid covers.
//
// A non-positive viewport width fails with ErrDegenerateQuery before any
// bounds are computed. An empty or out-of-range index range yields a Result
// with OK=false and no grid; a partial grid is never returned. Query boxes
// outside the root area are not rejected up front, the index range check
// catches them.
func Select(p geo.Pyramid, q Query) (Result, error) {
	if q.Width <= 0 {
		return Result{}, ErrDegenerateQuery
	}

	depth := DepthFor(p, q.LonDPP())
	tiles := float64(int(1) << depth) // 2^depth per axis

	incrX := p.RootWidth() / tiles
	incrY := p.RootHeight() / tiles

	// Corner offsets are measured from different root edges: the upper-left
	// corner from the root's upper-left edges, the lower-right corner from
	// the root's lower-right edges. Indices grow left-to-right and
	// top-to-bottom, hence the 2^d-1-floor form for the far corner.
	leftX := int(math.Floor(math.Abs(p.RootUpperLeftLon-q.UpperLeftLon) / incrX))
	topY := int(math.Floor(math.Abs(p.RootUpperLeftLat-q.UpperLeftLat) / incrY))
	rightX := int(tiles) - int(math.Floor(math.Abs(p.RootLowerRightLon-q.LowerRightLon)/incrX)) - 1
	bottomY := int(tiles) - int(math.Floor(math.Abs(p.RootLowerRightLat-q.LowerRightLat)/incrY)) - 1

	res := Result{
		Depth: depth,
		Bounds: Bounds{
			UpperLeftLon:  p.RootUpperLeftLon + float64(leftX)*incrX,
			UpperLeftLat:  p.RootUpperLeftLat - float64(topY)*incrY,
			LowerRightLon: p.RootUpperLeftLon + float64(rightX+1)*incrX,
			LowerRightLat: p.RootUpperLeftLat - float64(bottomY+1)*incrY,
		},
	}

	cols := rightX - leftX + 1
	rows := bottomY - topY + 1
	if cols <= 0 || rows <= 0 ||
		leftX < 0 || topY < 0 || rightX >= int(tiles) || bottomY >= int(tiles) {
		return res, nil
	}

	grid := make([][]string, rows)
	for r := 0; r < rows; r++ {
		grid[r] = make([]string, cols)
		for c := 0; c < cols; c++ {
			grid[r][c] = TileName(depth, leftX+c, topY+r)
		}
	}
	res.Grid = grid
	res.OK = true

	return res, nil
}
