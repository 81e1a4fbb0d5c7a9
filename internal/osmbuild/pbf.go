package osmbuild

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/streetlevel/mapraster-go/internal/config"
)

// ParsePBFFile streams an OSM PBF file into the builder. Decoding is
// parallel inside the scanner, but objects are delivered in file order so
// the builder sees the same sequential event stream as the XML driver.
// When bbox is set, nodes outside it are dropped; ways referencing them
// lose those connections the same way an undeclared node would.
func ParsePBFFile(ctx context.Context, filename string, b *Builder, bbox *config.BBox, workers int) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open PBF file: %w", err)
	}
	defer f.Close()

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	scanner := osmpbf.New(ctx, f, workers)
	defer scanner.Close()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch o := scanner.Object().(type) {
		case *osm.Node:
			if bbox != nil && !bbox.Contains(o.Lat, o.Lon) {
				continue
			}
			feedNode(b, o)
		case *osm.Way:
			feedWay(b, o)
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("PBF parse error: %w", err)
	}

	return nil
}

func feedNode(b *Builder, n *osm.Node) {
	b.OnElementStart("node", map[string]string{
		"id":  strconv.FormatInt(int64(n.ID), 10),
		"lat": strconv.FormatFloat(n.Lat, 'f', -1, 64),
		"lon": strconv.FormatFloat(n.Lon, 'f', -1, 64),
	})
	for _, t := range n.Tags {
		b.OnElementStart("tag", map[string]string{"k": t.Key, "v": t.Value})
		b.OnElementEnd("tag")
	}
	b.OnElementEnd("node")
}

func feedWay(b *Builder, w *osm.Way) {
	b.OnElementStart("way", map[string]string{
		"id": strconv.FormatInt(int64(w.ID), 10),
	})
	for _, wn := range w.Nodes {
		b.OnElementStart("nd", map[string]string{
			"ref": strconv.FormatInt(int64(wn.ID), 10),
		})
		b.OnElementEnd("nd")
	}
	for _, t := range w.Tags {
		b.OnElementStart("tag", map[string]string{"k": t.Key, "v": t.Value})
		b.OnElementEnd("tag")
	}
	b.OnElementEnd("way")
}
