package scriptflow

import (
	"errors"
	"fmt"
	"strings"
)

// Graph errors
var (
	ErrDuplicateNode = errors.New("duplicate node ID")
	ErrNodeNotFound  = errors.New("node not found")
)

// Edge is a directed control-flow connection between two node ports.
// Endpoints use composite "nodeId:port" addressing; a missing port segment
// defaults to the "flow" port.
type Edge struct {
	ID   string
	From string // source "nodeId:port"
	To   string // destination "nodeId:port"
}

// SourceNode returns the node ID half of the From endpoint.
func (e Edge) SourceNode() string {
	id, _ := SplitPortRef(e.From)
	return id
}

// SourcePort returns the port half of the From endpoint.
func (e Edge) SourcePort() string {
	_, port := SplitPortRef(e.From)
	return port
}

// TargetNode returns the node ID half of the To endpoint.
func (e Edge) TargetNode() string {
	id, _ := SplitPortRef(e.To)
	return id
}

// SplitPortRef splits a composite "nodeId:port" reference. A reference
// without a colon addresses the node's "flow" port.
func SplitPortRef(ref string) (nodeID, port string) {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, PortFlow
}

// PortRef builds a composite "nodeId:port" reference.
func PortRef(nodeID, port string) string {
	return nodeID + ":" + port
}

// Graph is one loaded behavior graph: nodes, edges, and the initial
// variables merged into interpreter state at load time.
//
// Edge lookup by (source node, port) is answered from an index built as
// edges are added. When several edges share a source port only the first
// one added wins; later edges on that port are never followed. Fan-out is
// expressed in authoring tools by chaining, not by sharing a port.
type Graph struct {
	ID        string
	Name      string
	Variables map[string]any

	nodes     map[string]*Node
	nodeOrder []string // preserves declaration order
	edges     []Edge
	portIndex map[string]Edge // "nodeId:port" -> first matching edge
}

// NewGraph creates an empty graph with the given ID and name.
func NewGraph(id, name string) *Graph {
	return &Graph{
		ID:        id,
		Name:      name,
		Variables: make(map[string]any),
		nodes:     make(map[string]*Node),
		portIndex: make(map[string]Edge),
	}
}

// AddNode adds a node to the graph.
// Returns an error if a node with the same ID already exists.
func (g *Graph) AddNode(node *Node) error {
	if node == nil {
		return errors.New("cannot add nil node")
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	g.nodes[node.ID] = node
	g.nodeOrder = append(g.nodeOrder, node.ID)
	return nil
}

// AddEdge adds a control-flow edge. Endpoints are not validated here:
// dangling references resolve to "no successor" at traversal time, which
// keeps load cheap and authoring mistakes non-fatal.
func (g *Graph) AddEdge(edge Edge) {
	g.edges = append(g.edges, edge)
	key := PortRef(SplitPortRef(edge.From))
	if _, taken := g.portIndex[key]; !taken {
		g.portIndex[key] = edge
	}
}

// NodeByID retrieves a node by its ID.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Edges returns all edges in the graph.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// EventNodes returns the graph's Event nodes in declaration order.
// The tick driver walks this slice every tick.
func (g *Graph) EventNodes() []*Node {
	var events []*Node
	for _, id := range g.nodeOrder {
		if n := g.nodes[id]; n.Category == CategoryEvent {
			events = append(events, n)
		}
	}
	return events
}

// NodesOfKind returns Event nodes with the given trigger kind.
// Used to clear completion marks when an event kind is re-armed.
func (g *Graph) NodesOfKind(category NodeCategory, kind string) []*Node {
	var out []*Node
	for _, id := range g.nodeOrder {
		if n := g.nodes[id]; n.Category == category && n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// NextNode resolves the first edge leaving node's port and returns its
// target. A missing edge or a dangling target both yield nil: the branch
// simply terminates.
func (g *Graph) NextNode(node *Node, port string) *Node {
	edge, ok := g.portIndex[PortRef(node.ID, port)]
	if !ok {
		return nil
	}
	target, ok := g.nodes[edge.TargetNode()]
	if !ok {
		return nil
	}
	return target
}
