// Package interp provides the execution engine for scriptflow behavior
// graphs: the tick driver, the event-chain traversal engine, and the timer
// subsystem.
package interp

import (
	"sync/atomic"
	"time"

	"github.com/emberforge/scriptflow"
)

// EventKind identifies the type of event emitted by the interpreter.
type EventKind string

const (
	// EventTickStarted is emitted at the start of every simulation tick.
	EventTickStarted EventKind = "tick.started"

	// EventTickFinished is emitted when a tick's trigger evaluation and
	// timer retirement are done. Chains launched by the tick may still be
	// running.
	EventTickFinished EventKind = "tick.finished"

	// EventTriggerFired is emitted when an Event node's predicate turns
	// true and its chain is launched.
	EventTriggerFired EventKind = "trigger.fired"

	// EventChainStarted is emitted when an event chain begins traversal.
	EventChainStarted EventKind = "chain.started"

	// EventChainFinished is emitted when an event chain's traversal ends,
	// whether it ran to the end of its branch or was truncated.
	EventChainFinished EventKind = "chain.finished"

	// EventNodeExecuted is emitted after a node's handler completes.
	EventNodeExecuted EventKind = "node.executed"

	// EventNodeFailed is emitted when a node's handler returns an error or
	// panics. The branch is truncated at that node.
	EventNodeFailed EventKind = "node.failed"

	// EventNodeSkipped is emitted when no handler is registered for a
	// node's (category, kind) pair.
	EventNodeSkipped EventKind = "node.skipped"

	// EventTimerExpired is emitted when a countdown timer is retired.
	EventTimerExpired EventKind = "timer.expired"

	// EventRearmed is emitted when TriggerEvent clears completion marks
	// for an event kind.
	EventRearmed EventKind = "event.rearmed"

	// EventStateImported is emitted after a snapshot import replaces the
	// interpreter state.
	EventStateImported EventKind = "state.imported"

	// EventStateReset is emitted when the interpreter state is cleared.
	EventStateReset EventKind = "state.reset"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured, streamable record of what happened during
// execution. Events should stay small: node property bags and state
// contents do not belong in payloads.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// RunID identifies the interpreter instance emitting the event.
	RunID string

	// ChainID identifies one event-chain invocation (empty for tick-level
	// events).
	ChainID string

	// GraphID is the owning graph (empty for interpreter-level events).
	GraphID string

	// NodeID is the node that produced this event (empty for tick-level
	// events).
	NodeID string

	// NodeKind and Category describe the node's registry key.
	NodeKind string
	Category scriptflow.NodeCategory

	// Tick is the simulation tick counter at emission.
	Tick uint64

	// Clock is the accumulated simulation time at emission.
	Clock time.Duration

	// Time is the wall-clock emission time.
	Time time.Time

	// Payload contains event-specific data.
	Payload map[string]any

	// Seq is a monotonic sequence number per interpreter (1-indexed).
	Seq uint64
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(kind EventKind, runID string) Event {
	return Event{
		Kind:    kind,
		RunID:   runID,
		Time:    time.Now(),
		Payload: make(map[string]any),
	}
}

// WithNode sets the node information on the event.
func (e Event) WithNode(node *scriptflow.Node) Event {
	e.NodeID = node.ID
	e.NodeKind = node.Kind
	e.Category = node.Category
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// EventHandler is a function type for handling events. Implementations can
// log, store, or forward events as needed.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// ChannelEventHandler returns a handler that sends events to a channel.
// Events are dropped if the channel is full.
func ChannelEventHandler(ch chan<- Event) EventHandler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full
		}
	}
}

// EventPublisher can publish events to external subscribers. This
// interface is satisfied by bus.EventBus, allowing the interpreter to
// distribute events without importing the bus package directly.
type EventPublisher interface {
	Publish(event Event)
}

// seqGen stamps each emitted event with a monotonic, 1-indexed sequence
// number. Tick-driver events and events from suspended chains share one
// counter, so Seq totally orders a run's stream even when publish order
// wobbles across goroutines.
type seqGen struct {
	counter atomic.Uint64
}

func newSeqGen() *seqGen {
	return &seqGen{}
}

func (s *seqGen) Next() uint64 {
	return s.counter.Add(1)
}
