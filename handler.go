package scriptflow

import (
	"context"
	"log/slog"
	"time"
)

// Call carries everything a handler may consult while servicing one node
// visit: the shared interpreter state, the host facade, the owning graph,
// the node being visited, and the tick clock at the start of the tick that
// launched the chain.
type Call struct {
	State  *State
	Facade Facade
	Graph  *Graph
	Node   *Node

	// Entity is the optional entity the chain is scoped to, taken from the
	// Event node's "entityId" property. Entity-scoped kinds fall back to
	// the node's own "entityId" property when this is empty.
	Entity string

	// Clock is the simulation time at the start of the tick that launched
	// the chain. It stays frozen for the chain's whole lifetime; handlers
	// that care about elapsed time after a suspension read ClockNow.
	Clock time.Duration

	// Now, set by the interpreter, reads the live simulation clock.
	Now func() time.Duration

	// Release, set by the interpreter, hands the tick driver back to event
	// evaluation. Handlers call Suspend rather than invoking it directly.
	Release func()

	// Wall and PrevWall bracket the current tick in wall-clock time.
	// Only schedule-style triggers look at these.
	Wall     time.Time
	PrevWall time.Time

	Logger *slog.Logger
}

// ClockNow returns the simulation clock at call time. A chain that has
// suspended across ticks sees the advanced clock here while Clock stays
// frozen at the launching tick. Falls back to Clock when no live source
// is attached.
func (c *Call) ClockNow() time.Duration {
	if c.Now != nil {
		return c.Now()
	}
	return c.Clock
}

// Suspend marks this chain invocation as entering a real-time wait. The
// tick driver stops waiting on the chain and moves on to the next Event
// node; the chain keeps running on its own goroutine and its later state
// writes land on whichever tick is current when they happen. Safe to call
// more than once, and a no-op when no driver is attached.
func (c *Call) Suspend() {
	if c.Release != nil {
		c.Release()
	}
}

// EntityID resolves the entity a node call applies to: an explicit
// "entityId" node property wins over the chain's entity scope.
func (c *Call) EntityID() string {
	if c.Node != nil {
		if id := c.Node.PropString("entityId", ""); id != "" {
			return id
		}
	}
	return c.Entity
}

// ActionFunc performs a node's side effect. A returned error truncates the
// branch at that node; sibling branches and other chains are unaffected.
type ActionFunc func(ctx context.Context, call *Call) error

// ConditionFunc evaluates a node to a boolean, routing the chain through
// the node's flow_true or flow_false port.
type ConditionFunc func(ctx context.Context, call *Call) (bool, error)

// TriggerFunc is an Event node's trigger predicate, evaluated fresh every
// tick. A true result fires the node's chain once; the completion mark
// suppresses refiring until explicitly cleared.
type TriggerFunc func(ctx context.Context, call *Call) (bool, error)
