package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/streetlevel/mapraster-go/internal/geo"
)

// ErrUnknownNode is returned when an operation references a node id that was
// never added to the graph
var ErrUnknownNode = errors.New("graph: unknown node id")

// Node is a geographic point in the road network
type Node struct {
	ID   int64
	Lon  float64
	Lat  float64
	Name string // optional label, empty when the source carries none
}

// Edge is a weighted connection between two nodes, carrying the retained tags
// of the way that defined it
type Edge struct {
	From   int64
	To     int64
	Weight float64 // great-circle distance in meters
	Tags   map[string]string
}

// CoordStore holds node positions keyed by id. The default is an in-memory
// map; large extracts can use the mmap-backed flat index instead.
type CoordStore interface {
	Put(id int64, lat, lon float64)
	Get(id int64) (lat, lon float64, ok bool)
}

type mapStore map[int64][2]float64

func (m mapStore) Put(id int64, lat, lon float64) { m[id] = [2]float64{lat, lon} }

func (m mapStore) Get(id int64) (lat, lon float64, ok bool) {
	c, ok := m[id]
	return c[0], c[1], ok
}

// Graph is the road network: node positions plus, per node, the outgoing
// weighted edges. It is populated once by the builder and read-only
// afterwards; concurrent readers need no locking after the build completes.
type Graph struct {
	coords CoordStore
	ids    map[int64]struct{}
	names  map[int64]string
	adj    map[int64]map[int64]Edge
}

// New creates an empty graph with in-memory coordinate storage
func New() *Graph {
	return NewWithCoordStore(make(mapStore))
}

// NewWithCoordStore creates an empty graph storing node positions in the
// given store
func NewWithCoordStore(coords CoordStore) *Graph {
	return &Graph{
		coords: coords,
		ids:    make(map[int64]struct{}),
		names:  make(map[int64]string),
		adj:    make(map[int64]map[int64]Edge),
	}
}

// AddNode inserts a node, replacing any previous node with the same id
func (g *Graph) AddNode(n Node) {
	g.ids[n.ID] = struct{}{}
	g.coords.Put(n.ID, n.Lat, n.Lon)
	if n.Name != "" {
		g.names[n.ID] = n.Name
	}
}

// SetNodeName attaches a label to an existing node
func (g *Graph) SetNodeName(id int64, name string) error {
	if _, ok := g.ids[id]; !ok {
		return fmt.Errorf("set name for node %d: %w", id, ErrUnknownNode)
	}
	g.names[id] = name
	return nil
}

// Node returns the node with the given id
func (g *Graph) Node(id int64) (Node, bool) {
	if _, ok := g.ids[id]; !ok {
		return Node{}, false
	}
	lat, lon, ok := g.coords.Get(id)
	if !ok {
		return Node{}, false
	}
	return Node{ID: id, Lon: lon, Lat: lat, Name: g.names[id]}, true
}

// Distance returns the great-circle distance in meters between two nodes
func (g *Graph) Distance(a, b int64) (float64, error) {
	na, ok := g.Node(a)
	if !ok {
		return 0, fmt.Errorf("distance from node %d: %w", a, ErrUnknownNode)
	}
	nb, ok := g.Node(b)
	if !ok {
		return 0, fmt.Errorf("distance to node %d: %w", b, ErrUnknownNode)
	}
	return geo.Distance(na.Lon, na.Lat, nb.Lon, nb.Lat), nil
}

// AddEdge connects two nodes in both directions with the given weight and
// tags. An existing edge between the same pair is replaced, not duplicated;
// the last way defining the connection wins.
func (g *Graph) AddEdge(from, to int64, weight float64, tags map[string]string) error {
	if _, ok := g.ids[from]; !ok {
		return fmt.Errorf("edge from node %d: %w", from, ErrUnknownNode)
	}
	if _, ok := g.ids[to]; !ok {
		return fmt.Errorf("edge to node %d: %w", to, ErrUnknownNode)
	}
	g.putEdge(Edge{From: from, To: to, Weight: weight, Tags: tags})
	g.putEdge(Edge{From: to, To: from, Weight: weight, Tags: tags})
	return nil
}

func (g *Graph) putEdge(e Edge) {
	out := g.adj[e.From]
	if out == nil {
		out = make(map[int64]Edge)
		g.adj[e.From] = out
	}
	out[e.To] = e
}

// HasEdge reports whether an edge from one node to another exists
func (g *Graph) HasEdge(from, to int64) bool {
	_, ok := g.adj[from][to]
	return ok
}

// EdgeBetween returns the stored edge for an ordered node pair
func (g *Graph) EdgeBetween(from, to int64) (Edge, bool) {
	e, ok := g.adj[from][to]
	return e, ok
}

// Neighbors returns the ids reachable by one edge from the given node,
// sorted for deterministic iteration
func (g *Graph) Neighbors(id int64) []int64 {
	out := g.adj[id]
	if len(out) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(out))
	for to := range out {
		ids = append(ids, to)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NodeCount returns the number of nodes in the graph
func (g *Graph) NodeCount() int {
	return len(g.ids)
}

// EdgeCount returns the number of stored directed edges; an undirected
// connection counts twice
func (g *Graph) EdgeCount() int {
	n := 0
	for _, out := range g.adj {
		n += len(out)
	}
	return n
}

// Nodes returns all nodes, sorted by id
func (g *Graph) Nodes() []Node {
	ids := make([]int64, 0, len(g.ids))
	for id := range g.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.Node(id); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Edges returns all directed edges, sorted by (from, to)
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.EdgeCount())
	for _, out := range g.adj {
		for _, e := range out {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Clean removes nodes that ended up with no edges. Most OSM nodes describe
// building outlines and points of interest rather than road geometry, so a
// built graph typically sheds the bulk of its nodes here.
func (g *Graph) Clean() int {
	removed := 0
	for id := range g.ids {
		if len(g.adj[id]) == 0 {
			delete(g.ids, id)
			delete(g.names, id)
			removed++
		}
	}
	return removed
}

// Closest returns the id of the connected node nearest to the given
// position, or an error when the graph has no connected nodes
func (g *Graph) Closest(lon, lat float64) (int64, error) {
	var best int64
	found := false
	bestDist := math.Inf(1)
	for id := range g.ids {
		if len(g.adj[id]) == 0 {
			continue
		}
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		d := geo.Distance(lon, lat, n.Lon, n.Lat)
		if d < bestDist {
			best = id
			bestDist = d
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("closest to (%f, %f): %w", lon, lat, ErrUnknownNode)
	}
	return best, nil
}
