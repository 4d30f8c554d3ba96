// Package view is a headless rendering of a product system: one node per
// process and one edge per link that is currently drawn.
package view

import (
	"maps"
	"slices"

	"github.com/meikuraledutech/supplychain"
)

// Node is the rendered counterpart of a process.
type Node struct {
	id supplychain.ProcessID
}

// ProcessID returns the id of the process the node renders.
func (n *Node) ProcessID() supplychain.ProcessID { return n.id }

// Edge is the rendered counterpart of a link. A disconnected edge is no
// longer drawn but can be reconnected.
type Edge struct {
	link  supplychain.ProcessLink
	graph *Graph
}

// Link returns the link the edge renders.
func (e *Edge) Link() supplychain.ProcessLink { return e.link }

// Disconnect detaches the edge from the graph.
func (e *Edge) Disconnect() {
	if e.graph.edges[e.link] == e {
		delete(e.graph.edges, e.link)
	}
}

// Reconnect attaches the edge to the graph again.
func (e *Edge) Reconnect() {
	e.graph.edges[e.link] = e
}

// Connected reports whether the edge is drawn.
func (e *Edge) Connected() bool {
	return e.graph.edges[e.link] == e
}

// Graph holds the rendered nodes and edges. It implements
// supplychain.VisualGraph. A Graph is not safe for concurrent use.
type Graph struct {
	nodes map[supplychain.ProcessID]*Node
	edges map[supplychain.ProcessLink]*Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[supplychain.ProcessID]*Node),
		edges: make(map[supplychain.ProcessLink]*Edge),
	}
}

// Build renders every process and link of s.
func Build(s *supplychain.ProductSystem) *Graph {
	g := New()
	for _, p := range s.Processes {
		g.AddNode(p)
	}
	for _, l := range s.Links {
		g.Connect(l)
	}
	return g
}

// AddNode renders process id and returns its node. An existing node is
// returned as is.
func (g *Graph) AddNode(id supplychain.ProcessID) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{id: id}
	g.nodes[id] = n
	return n
}

// Connect draws link between its two rendered endpoints. It returns nil when
// an endpoint is not rendered.
func (g *Graph) Connect(link supplychain.ProcessLink) *Edge {
	if _, ok := g.nodes[link.ProviderID]; !ok {
		return nil
	}
	if _, ok := g.nodes[link.ProcessID]; !ok {
		return nil
	}
	if e, ok := g.edges[link]; ok {
		return e
	}
	e := &Edge{link: link, graph: g}
	g.edges[link] = e
	return e
}

// Node returns the node of id, or nil.
func (g *Graph) Node(id supplychain.ProcessID) supplychain.VisualNode {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	return nil
}

// Edge returns the connected edge of link, or nil.
func (g *Graph) Edge(link supplychain.ProcessLink) supplychain.VisualEdge {
	if e, ok := g.edges[link]; ok {
		return e
	}
	return nil
}

// AddChildren puts nodes back into the graph.
func (g *Graph) AddChildren(nodes ...supplychain.VisualNode) {
	for _, vn := range nodes {
		if n, ok := vn.(*Node); ok {
			g.nodes[n.id] = n
			continue
		}
		g.AddNode(vn.ProcessID())
	}
}

// RemoveChild takes node out of the graph. Edges are disconnected separately.
func (g *Graph) RemoveChild(node supplychain.VisualNode) {
	delete(g.nodes, node.ProcessID())
}

// Disconnect removes every edge touching id and returns them.
func (g *Graph) Disconnect(id supplychain.ProcessID) []*Edge {
	var removed []*Edge
	for l, e := range g.edges {
		if l.ProviderID == id || l.ProcessID == id {
			removed = append(removed, e)
			delete(g.edges, l)
		}
	}
	return removed
}

// Clone returns an independent copy of the drawn nodes and edges.
func (g *Graph) Clone() *Graph {
	c := New()
	for id := range g.nodes {
		c.nodes[id] = &Node{id: id}
	}
	for l := range g.edges {
		c.edges[l] = &Edge{link: l, graph: c}
	}
	return c
}

// Nodes returns the ids of all rendered processes in ascending order.
func (g *Graph) Nodes() []supplychain.ProcessID {
	return slices.Sorted(maps.Keys(g.nodes))
}

// Edges returns all drawn links.
func (g *Graph) Edges() []supplychain.ProcessLink {
	return slices.Collect(maps.Keys(g.edges))
}
