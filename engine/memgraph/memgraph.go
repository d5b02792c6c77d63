// Package memgraph is an in-memory labeled property graph that satisfies the
// loader's store contract. It backs dry runs and the loader tests, and builds
// the derived relationships with the algorithms in engine/chain.
package memgraph

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/WessleyAI/vaarweggraph/engine/chain"
	"github.com/WessleyAI/vaarweggraph/engine/domain"
)

// Node is a stored node. ID is assigned by the graph and is unrelated to the
// source Id attribute.
type Node struct {
	ID    int64
	Label domain.Label
	Props map[string]any
}

// Key returns the source Id attribute.
func (n Node) Key() (int64, bool) { return domain.Attrs(n.Props).Int(domain.AttrID) }

// Edge is a stored directed relationship.
type Edge struct {
	From  int64
	To    int64
	Type  domain.RelType
	Props map[string]any
}

type edgeKey struct {
	from, to int64
	typ      domain.RelType
}

// Graph is safe for concurrent use.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[int64]*Node
	byLabel  map[domain.Label][]int64
	byKey    map[domain.Label]map[int64][]int64
	edges    []*Edge
	edgeIdx  map[edgeKey]*Edge
	outgoing map[int64][]*Edge
	layers   map[string]*Layer
	indexed  map[domain.Label]bool
	nextID   int64
}

// Layer is a spatial layer: a named set of nodes with WKT geometry.
type Layer struct {
	Name  string
	Label domain.Label
	Nodes []int64
	seen  map[int64]bool
}

// New returns an empty graph.
func New() *Graph {
	g := &Graph{}
	g.clear()
	return g
}

func (g *Graph) clear() {
	g.nodes = make(map[int64]*Node)
	g.byLabel = make(map[domain.Label][]int64)
	g.byKey = make(map[domain.Label]map[int64][]int64)
	g.edges = nil
	g.edgeIdx = make(map[edgeKey]*Edge)
	g.outgoing = make(map[int64][]*Edge)
	g.layers = make(map[string]*Layer)
	g.indexed = make(map[domain.Label]bool)
}

// Reset deletes every node, edge and layer and registers the Id index of
// each label.
func (g *Graph) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clear()
	for _, l := range domain.Labels {
		g.indexed[l] = true
	}
	return nil
}

// CreateNodes adds one node per entity and connects it along the foreign
// keys of its label to every existing node whose Id matches.
func (g *Graph) CreateNodes(ctx context.Context, label domain.Label, batch []domain.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range batch {
		n := g.addNode(label, e.Props())
		for _, fk := range domain.ForeignKeys[label] {
			ref, ok := domain.Attrs(n.Props).Int(fk.Attr)
			if !ok {
				continue
			}
			for _, target := range g.byKey[fk.Target][ref] {
				g.addEdge(n.ID, target, fk.Rel, nil)
			}
		}
	}
	return nil
}

func (g *Graph) addNode(label domain.Label, props map[string]any) *Node {
	g.nextID++
	n := &Node{ID: g.nextID, Label: label, Props: props}
	if n.Props == nil {
		n.Props = make(map[string]any)
	}
	g.nodes[n.ID] = n
	g.byLabel[label] = append(g.byLabel[label], n.ID)
	if key, ok := n.Key(); ok {
		if g.byKey[label] == nil {
			g.byKey[label] = make(map[int64][]int64)
		}
		g.byKey[label][key] = append(g.byKey[label][key], n.ID)
	}
	return n
}

// addEdge merges on (from, to, type) and reports whether an edge was created.
func (g *Graph) addEdge(from, to int64, typ domain.RelType, props map[string]any) bool {
	k := edgeKey{from, to, typ}
	if e, ok := g.edgeIdx[k]; ok {
		maps.Copy(e.Props, props)
		return false
	}
	e := &Edge{From: from, To: to, Type: typ, Props: make(map[string]any, len(props))}
	maps.Copy(e.Props, props)
	g.edges = append(g.edges, e)
	g.edgeIdx[k] = e
	g.outgoing[from] = append(g.outgoing[from], e)
	return true
}

// ChainFairways creates STREAMS edges between consecutive fairways of the
// same route and returns the number of STREAMS edges it touched.
func (g *Graph) ChainFairways(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var members []chain.Member
	for _, id := range g.byLabel[domain.LabelFairway] {
		n := g.nodes[id]
		num, ok := domain.Attrs(n.Props).Int(domain.AttrFairwayNumber)
		if !ok {
			continue
		}
		for _, route := range g.targets(id, domain.RelPartOf, domain.LabelRoute) {
			members = append(members, chain.Member{Node: id, Route: route, Number: num})
		}
	}
	links := chain.Streams(members)
	for _, l := range links {
		g.addEdge(l.From, l.To, domain.RelStreams, nil)
	}
	return int64(len(links)), nil
}

// ChainObstructions links each bridge or lock without an outgoing NEXT edge
// to its nearest successors along a shared route and returns the number of
// NEXT edges it touched.
func (g *Graph) ChainObstructions(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var points []chain.Point
	eligible := make(map[int64]bool)
	for _, label := range []domain.Label{domain.LabelBridge, domain.LabelLock} {
		for _, id := range g.byLabel[label] {
			n := g.nodes[id]
			km, ok := domain.Attrs(n.Props).Float(domain.AttrRouteKmBegin)
			if !ok {
				continue
			}
			for _, route := range g.targets(id, domain.RelLinkedTo, domain.LabelRoute) {
				points = append(points, chain.Point{Node: id, Route: route, Km: km})
			}
			eligible[id] = !g.hasNext(id)
		}
	}
	links := chain.Successors(points, func(id int64) bool { return eligible[id] })
	for _, l := range links {
		g.addEdge(l.From, l.To, domain.RelNext, map[string]any{domain.AttrKm: l.Km})
	}
	return int64(len(links)), nil
}

func (g *Graph) hasNext(id int64) bool {
	for _, e := range g.outgoing[id] {
		if e.Type == domain.RelNext && domain.IsObstruction(g.nodes[e.To].Label) {
			return true
		}
	}
	return false
}

// targets returns the ids of nodes labeled target reached from id over rel.
func (g *Graph) targets(id int64, rel domain.RelType, target domain.Label) []int64 {
	var out []int64
	for _, e := range g.outgoing[id] {
		if e.Type == rel && g.nodes[e.To].Label == target {
			out = append(out, e.To)
		}
	}
	return out
}

// BuildSpatialIndex registers every node of each layer's label that carries
// a geometry. Existing layers are extended, not recreated.
func (g *Graph) BuildSpatialIndex(ctx context.Context, layers []domain.SpatialLayer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, sl := range layers {
		layer, ok := g.layers[sl.Name]
		if !ok {
			layer = &Layer{Name: sl.Name, Label: sl.Label, seen: make(map[int64]bool)}
			g.layers[sl.Name] = layer
		}
		for _, id := range g.byLabel[sl.Label] {
			if _, ok := domain.Attrs(g.nodes[id].Props).String(domain.AttrGeometry); !ok || layer.seen[id] {
				continue
			}
			layer.seen[id] = true
			layer.Nodes = append(layer.Nodes, id)
		}
	}
	return nil
}

// Stats counts nodes per label and edges per type.
func (g *Graph) Stats(ctx context.Context) (domain.Stats, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stats{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := domain.Stats{
		Nodes:         make(map[domain.Label]int64),
		Relationships: make(map[domain.RelType]int64),
	}
	for l, ids := range g.byLabel {
		s.Nodes[l] = int64(len(ids))
	}
	for _, e := range g.edges {
		s.Relationships[e.Type]++
	}
	return s, nil
}

// Nodes returns copies of the nodes of a label in creation order.
func (g *Graph) Nodes(label domain.Label) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.byLabel[label]))
	for _, id := range g.byLabel[label] {
		out = append(out, g.copyNode(id))
	}
	return out
}

// Lookup returns the nodes of a label with the given source Id.
func (g *Graph) Lookup(label domain.Label, key int64) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Node
	for _, id := range g.byKey[label][key] {
		out = append(out, g.copyNode(id))
	}
	return out
}

// Edges returns copies of the edges of a type in creation order.
func (g *Graph) Edges(typ domain.RelType) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for _, e := range g.edges {
		if e.Type == typ {
			out = append(out, Edge{From: e.From, To: e.To, Type: e.Type, Props: maps.Clone(e.Props)})
		}
	}
	return out
}

// Layer returns the node ids registered under a spatial layer.
func (g *Graph) Layer(name string) ([]int64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.layers[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(l.Nodes), true
}

// Indexed reports whether Reset registered the Id index of a label.
func (g *Graph) Indexed(label domain.Label) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.indexed[label]
}

func (g *Graph) copyNode(id int64) Node {
	n := g.nodes[id]
	return Node{ID: n.ID, Label: n.Label, Props: maps.Clone(n.Props)}
}
