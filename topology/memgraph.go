package topology

import (
	"sort"
	"strconv"
)

type properties map[string]string

func (p properties) GetProperty(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

func (p properties) SetProperty(name, value string) {
	p[name] = value
}

func (p properties) names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// MemNode is a node of a MemGraph. Its id property is set on creation.
type MemNode struct {
	properties
	id int64
}

// ID returns the node id.
func (n *MemNode) ID() int64 {
	return n.id
}

// MemEdge is a directed edge of a MemGraph.
type MemEdge struct {
	properties
	src, dst *MemNode
}

// Source returns the node the edge leaves.
func (e *MemEdge) Source() Node {
	return e.src
}

// Target returns the node the edge enters.
func (e *MemEdge) Target() Node {
	return e.dst
}

// SourceID returns the id of the source node.
func (e *MemEdge) SourceID() int64 {
	return e.src.id
}

// TargetID returns the id of the target node.
func (e *MemEdge) TargetID() int64 {
	return e.dst.id
}

// MemGraph is an in-memory directed property graph. It is not safe for
// concurrent modification.
type MemGraph struct {
	properties
	nodes map[int64]*MemNode
	order []int64
	edges []*MemEdge
}

// NewMemGraph creates an empty graph on a ring of the given size.
func NewMemGraph(addrSpace int64) *MemGraph {
	g := &MemGraph{
		properties: properties{},
		nodes:      make(map[int64]*MemNode),
	}
	g.SetProperty(PropAddrSpace, strconv.FormatInt(addrSpace, 10))

	return g
}

// AddNode returns the node with the given id, creating it if needed.
func (g *MemGraph) AddNode(id int64) *MemNode {
	if n, ok := g.nodes[id]; ok {
		return n
	}

	n := &MemNode{
		properties: properties{PropID: strconv.FormatInt(id, 10)},
		id:         id,
	}
	g.nodes[id] = n
	g.order = append(g.order, id)

	return n
}

// AddEdge adds an edge from src to dst, creating the nodes if needed.
func (g *MemGraph) AddEdge(src, dst int64) *MemEdge {
	e := &MemEdge{
		properties: properties{},
		src:        g.AddNode(src),
		dst:        g.AddNode(dst),
	}
	g.edges = append(g.edges, e)

	return e
}

// Node returns the node with the given id.
func (g *MemGraph) Node(id int64) (*MemNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (g *MemGraph) Nodes() []*MemNode {
	nodes := make([]*MemNode, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}

	return nodes
}

// Edges returns the edges in insertion order.
func (g *MemGraph) Edges() []*MemEdge {
	return g.edges
}

// OutEdges returns the edges leaving the node with the given id.
func (g *MemGraph) OutEdges(id int64) []*MemEdge {
	var out []*MemEdge

	for _, e := range g.edges {
		if e.src.id == id {
			out = append(out, e)
		}
	}

	return out
}
