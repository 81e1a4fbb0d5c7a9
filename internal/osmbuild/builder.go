// Package osmbuild turns a streaming parse of OSM data into a road graph.
// The Builder consumes element start/end events, accumulates nodes and way
// candidates, and emits distance-weighted edges for ways that describe
// traversable roads.
package osmbuild

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/streetlevel/mapraster-go/internal/graph"
	"github.com/streetlevel/mapraster-go/internal/logger"
)

// WayFilter decides whether a way's tags describe a road the graph should
// include. The zero-configuration choice is DefaultHighwayFilter.
type WayFilter interface {
	Routable(tags map[string]string) bool
}

// DefaultAllowedHighways lists the highway tag values accepted by the default
// filter. Service and pedestrian ways are excluded so routing stays on roads
// a vehicle can use.
var DefaultAllowedHighways = []string{
	"motorway", "trunk", "primary", "secondary", "tertiary",
	"unclassified", "residential", "living_street",
	"motorway_link", "trunk_link", "primary_link", "secondary_link",
	"tertiary_link",
}

// DefaultRetainedKeys are the tag keys copied from a way onto its edges
var DefaultRetainedKeys = []string{"name", "maxspeed"}

// HighwayFilter accepts ways whose highway tag value is in a fixed set
type HighwayFilter struct {
	allowed map[string]struct{}
}

// NewHighwayFilter creates a filter accepting the given highway values
func NewHighwayFilter(values []string) *HighwayFilter {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return &HighwayFilter{allowed: allowed}
}

// DefaultHighwayFilter returns a filter with the standard road-type set
func DefaultHighwayFilter() *HighwayFilter {
	return NewHighwayFilter(DefaultAllowedHighways)
}

// Routable reports whether the way's highway tag is in the allowed set.
// Ways without a highway tag are never routable.
func (f *HighwayFilter) Routable(tags map[string]string) bool {
	_, ok := f.allowed[tags["highway"]]
	return ok
}

// Stats counts what a build consumed and produced
type Stats struct {
	Nodes        int64 // nodes added to the graph
	Ways         int64 // way elements seen
	RoutableWays int64 // ways accepted by the filter
	Edges        int64 // undirected connections added
	SkippedRefs  int64 // way node references with no matching node
}

type builderState int

const (
	stateIdle builderState = iota
	stateInNode
	stateInWay
)

// Builder is the visitor driven by a streaming parser. It is single-threaded:
// events must arrive sequentially, and the graph must not be read until the
// stream is complete.
type Builder struct {
	g      *graph.Graph
	filter WayFilter
	retain map[string]struct{}
	log    *zap.Logger

	state    builderState
	curNode  int64
	haveNode bool

	// per-way accumulator, re-initialized at every way start
	wayNodes []int64
	wayTags  map[string]string

	stats Stats
}

// Option configures a Builder
type Option func(*Builder)

// WithFilter replaces the default highway filter
func WithFilter(f WayFilter) Option {
	return func(b *Builder) { b.filter = f }
}

// WithRetainedKeys replaces the tag keys copied onto edges
func WithRetainedKeys(keys []string) Option {
	return func(b *Builder) {
		b.retain = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			b.retain[k] = struct{}{}
		}
	}
}

// NewBuilder creates a builder that populates the given graph
func NewBuilder(g *graph.Graph, opts ...Option) *Builder {
	b := &Builder{
		g:      g,
		filter: DefaultHighwayFilter(),
		log:    logger.Get(),
	}
	WithRetainedKeys(DefaultRetainedKeys)(b)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stats returns the running build statistics
func (b *Builder) Stats() Stats {
	return b.stats
}

// OnElementStart handles the start of one element in the stream.
// Unrecognized element names are ignored.
func (b *Builder) OnElementStart(name string, attrs map[string]string) {
	switch {
	case name == "node":
		b.state = stateInNode
		b.haveNode = false

		id, err := strconv.ParseInt(attrs["id"], 10, 64)
		if err != nil {
			b.log.Warn("Skipping node with bad id", zap.String("id", attrs["id"]))
			return
		}
		lon, errLon := strconv.ParseFloat(attrs["lon"], 64)
		lat, errLat := strconv.ParseFloat(attrs["lat"], 64)
		if errLon != nil || errLat != nil {
			b.log.Warn("Skipping node with bad coordinates", zap.Int64("id", id))
			return
		}

		b.g.AddNode(graph.Node{ID: id, Lon: lon, Lat: lat})
		b.curNode = id
		b.haveNode = true
		b.stats.Nodes++

	case name == "way":
		b.state = stateInWay
		b.wayNodes = nil
		b.wayTags = make(map[string]string)

	case b.state == stateInWay && name == "nd":
		ref, err := strconv.ParseInt(attrs["ref"], 10, 64)
		if err != nil {
			b.log.Warn("Skipping way node ref", zap.String("ref", attrs["ref"]))
			return
		}
		b.wayNodes = append(b.wayNodes, ref)

	case b.state == stateInWay && name == "tag":
		if k := attrs["k"]; k != "" {
			b.wayTags[k] = attrs["v"]
		}

	case b.state == stateInNode && name == "tag":
		if b.haveNode && attrs["k"] == "name" {
			b.g.SetNodeName(b.curNode, attrs["v"])
		}
	}
}

// OnElementEnd handles the end of one element in the stream. Ending a way
// connects its consecutive node pairs when the way is routable, then discards
// the accumulator either way.
func (b *Builder) OnElementEnd(name string) {
	switch name {
	case "node":
		b.state = stateIdle
		b.haveNode = false

	case "way":
		b.stats.Ways++
		if b.filter.Routable(b.wayTags) {
			b.stats.RoutableWays++
			b.connectWay()
		}
		b.wayNodes = nil
		b.wayTags = nil
		b.state = stateIdle
	}
}

// connectWay adds one undirected edge per consecutive node pair of the
// current way. A reference to a node that was never declared skips that
// single connection rather than aborting the build; the rest of the stream
// still loads.
func (b *Builder) connectWay() {
	tags := make(map[string]string, len(b.retain))
	for k := range b.retain {
		if v, ok := b.wayTags[k]; ok {
			tags[k] = v
		}
	}

	for i := 1; i < len(b.wayNodes); i++ {
		n1, n2 := b.wayNodes[i-1], b.wayNodes[i]
		dist, err := b.g.Distance(n1, n2)
		if err != nil {
			b.stats.SkippedRefs++
			b.log.Warn("Skipping connection to unknown node",
				zap.Int64("from", n1), zap.Int64("to", n2))
			continue
		}
		if err := b.g.AddEdge(n1, n2, dist, tags); err != nil {
			b.stats.SkippedRefs++
			continue
		}
		b.stats.Edges++
	}
}
