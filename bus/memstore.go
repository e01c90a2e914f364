package bus

import (
	"context"
	"sort"
	"sync"

	"github.com/emberforge/scriptflow/interp"
)

// MemEventStore keeps per-run event journals in memory. It backs tests and
// short headless simulations where the journal is inspected immediately
// and thrown away; anything that should survive the process goes to the
// SQLite store instead.
type MemEventStore struct {
	mu   sync.RWMutex
	runs map[string][]interp.Event // runID -> events in append order
}

// NewMemEventStore creates an empty in-memory event store.
func NewMemEventStore() *MemEventStore {
	return &MemEventStore{
		runs: make(map[string][]interp.Event),
	}
}

func (s *MemEventStore) Append(_ context.Context, event interp.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[event.RunID] = append(s.runs[event.RunID], event)
	return nil
}

func (s *MemEventStore) List(_ context.Context, runID string, afterSeq uint64, limit int) ([]interp.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []interp.Event
	for _, e := range s.ordered(runID) {
		if afterSeq > 0 && e.Seq <= afterSeq {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemEventStore) ListTicks(_ context.Context, runID string, fromTick, toTick uint64) ([]interp.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []interp.Event
	for _, e := range s.ordered(runID) {
		if e.Tick >= fromTick && e.Tick <= toTick {
			result = append(result, e)
		}
	}
	return result, nil
}

// ordered returns a run's journal sorted by Seq. Suspended chains can
// append slightly out of publish order; queries still promise Seq order.
// Caller holds at least the read lock.
func (s *MemEventStore) ordered(runID string) []interp.Event {
	events := s.runs[runID]
	if sort.SliceIsSorted(events, func(a, b int) bool { return events[a].Seq < events[b].Seq }) {
		return events
	}
	sorted := make([]interp.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Seq < sorted[b].Seq })
	return sorted
}

func (s *MemEventStore) LatestSeq(_ context.Context, runID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Suspended chains emit out of publish order, so the journal is not
	// necessarily Seq-sorted; scan rather than peek at the tail.
	var maxSeq uint64
	for _, e := range s.runs[runID] {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	return maxSeq, nil
}

// Compile-time interface check.
var _ EventStore = (*MemEventStore)(nil)
