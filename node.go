package scriptflow

import (
	"strings"
	"time"
)

// NodeCategory identifies which dispatch protocol a node participates in.
// The set is deliberately closed: behavior variety lives in the Kind string,
// not in new categories.
type NodeCategory string

const (
	// CategoryEvent marks nodes whose trigger predicate is evaluated every
	// tick; a newly-true trigger starts a chain.
	CategoryEvent NodeCategory = "Event"

	// CategoryCondition marks nodes evaluated to a boolean that select one
	// of two outgoing branches.
	CategoryCondition NodeCategory = "Condition"

	// CategoryAction marks nodes that perform a side effect, possibly
	// asynchronously.
	CategoryAction NodeCategory = "Action"
)

// String returns the string representation of the NodeCategory.
func (c NodeCategory) String() string {
	return string(c)
}

// ParseCategory normalizes a category string from a graph document.
// Matching is case-insensitive; unknown strings are returned as-is so the
// lint pass can report them.
func ParseCategory(s string) NodeCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "event":
		return CategoryEvent
	case "condition":
		return CategoryCondition
	case "action":
		return CategoryAction
	}
	return NodeCategory(s)
}

// Outgoing port names. Conditions branch on PortTrue/PortFalse; everything
// else continues on PortFlow.
const (
	PortFlow  = "flow"
	PortTrue  = "flow_true"
	PortFalse = "flow_false"
)

// Node is a single vertex in a behavior graph. Nodes are pure data: the
// behavior selected by (Category, Kind) lives in the handler registry.
type Node struct {
	// ID is unique within the owning graph.
	ID string

	// Category selects the dispatch protocol (Event, Condition, Action).
	Category NodeCategory

	// Kind selects the handler, e.g. "OnStart", "HasFlag", "teleport".
	Kind string

	// Props is the authoring-time property bag consumed by handlers.
	Props map[string]any

	// X, Y are the authoring canvas position. Non-functional.
	X, Y float64
}

// PropString returns a string property, or def when absent or not a string.
func (n *Node) PropString(key, def string) string {
	if n.Props == nil {
		return def
	}
	if s, ok := n.Props[key].(string); ok {
		return s
	}
	return def
}

// PropFloat returns a numeric property as float64. JSON and YAML decoders
// produce float64 or int depending on source, so both are accepted.
func (n *Node) PropFloat(key string, def float64) float64 {
	if n.Props == nil {
		return def
	}
	switch v := n.Props[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// PropInt returns a numeric property truncated to int.
func (n *Node) PropInt(key string, def int) int {
	if n.Props == nil {
		return def
	}
	switch v := n.Props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// PropBool returns a boolean property, or def when absent or not a bool.
func (n *Node) PropBool(key string, def bool) bool {
	if n.Props == nil {
		return def
	}
	if b, ok := n.Props[key].(bool); ok {
		return b
	}
	return def
}

// PropDuration reads a property holding a millisecond count and returns it
// as a time.Duration. Graph documents express all durations in milliseconds.
func (n *Node) PropDuration(key string, def time.Duration) time.Duration {
	if n.Props == nil {
		return def
	}
	switch v := n.Props[key].(type) {
	case float64:
		return time.Duration(v * float64(time.Millisecond))
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	}
	return def
}
