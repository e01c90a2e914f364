package bus

import (
	"context"

	"github.com/emberforge/scriptflow/interp"
)

// EventStore journals interpreter events so a play session can be replayed
// after the fact: which triggers fired, which nodes ran, where a chain
// failed. One run is one interpreter lifetime, keyed by the interpreter's
// RunID; within a run the Seq field orders events totally and the Tick
// field groups them by simulation frame.
type EventStore interface {
	// Append stores one event.
	Append(ctx context.Context, event interp.Event) error

	// List returns a run's events in Seq order. afterSeq skips events with
	// Seq <= afterSeq (0 means from the beginning); limit caps the result
	// (0 means unbounded). Tailing a live run is List(run, lastSeen, n) in
	// a loop.
	List(ctx context.Context, runID string, afterSeq uint64, limit int) ([]interp.Event, error)

	// ListTicks returns a run's events whose Tick lies in [fromTick,
	// toTick], in Seq order. This is the frame-scrubbing query: everything
	// the interpreter did during a window of simulation frames.
	ListTicks(ctx context.Context, runID string, fromTick, toTick uint64) ([]interp.Event, error)

	// LatestSeq returns the highest Seq recorded for a run, 0 when the run
	// has no events.
	LatestSeq(ctx context.Context, runID string) (uint64, error)
}
