package scriptflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Snapshot errors
var (
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// Snapshot is the serializable form of the whole interpreter state, used
// for save-game integration. Set- and map-shaped state substructures are
// flattened to arrays and plain objects; durations are milliseconds.
type Snapshot struct {
	Variables       map[string]any      `json:"variables"`
	CompletedEvents []string            `json:"completedEvents"`
	ActiveTimers    map[string]int64    `json:"activeTimers"` // timer ID -> absolute expiry, ms on the tick clock
	Flags           []string            `json:"flags"`
	EntityPositions map[string]Position `json:"entityPositions"`

	// ClockMs records the tick clock at export time so timers can be
	// rebased when the snapshot is imported into an interpreter whose
	// clock reads differently.
	ClockMs int64 `json:"clockMs,omitempty"`
}

// Export captures the state as a snapshot taken at the given clock reading.
// Sets are emitted sorted so snapshots are byte-stable for a given state.
func (s *State) Export(clock time.Duration) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Variables:       make(map[string]any, len(s.variables)),
		CompletedEvents: make([]string, 0, len(s.completedEvents)),
		ActiveTimers:    make(map[string]int64, len(s.activeTimers)),
		Flags:           make([]string, 0, len(s.flags)),
		EntityPositions: make(map[string]Position, len(s.entityPositions)),
		ClockMs:         clock.Milliseconds(),
	}
	for k, v := range s.variables {
		snap.Variables[k] = v
	}
	for id := range s.completedEvents {
		snap.CompletedEvents = append(snap.CompletedEvents, id)
	}
	for id, expiry := range s.activeTimers {
		snap.ActiveTimers[id] = expiry.Milliseconds()
	}
	for f := range s.flags {
		snap.Flags = append(snap.Flags, f)
	}
	for id, pos := range s.entityPositions {
		snap.EntityPositions[id] = pos
	}
	sort.Strings(snap.CompletedEvents)
	sort.Strings(snap.Flags)
	return snap
}

// Import replaces the state with the snapshot's contents. Timer expiries
// are rebased so each timer keeps its remaining time relative to the
// importing interpreter's clock. The replacement is all-or-nothing: the
// new tables are built first and swapped in together, so a failure leaves
// prior state untouched.
func (s *State) Import(snap Snapshot, clock time.Duration) error {
	variables := make(map[string]any, len(snap.Variables))
	for k, v := range snap.Variables {
		variables[k] = v
	}
	flags := make(map[string]struct{}, len(snap.Flags))
	for _, f := range snap.Flags {
		flags[f] = struct{}{}
	}
	completed := make(map[string]struct{}, len(snap.CompletedEvents))
	for _, id := range snap.CompletedEvents {
		completed[id] = struct{}{}
	}
	positions := make(map[string]Position, len(snap.EntityPositions))
	for id, pos := range snap.EntityPositions {
		positions[id] = pos
	}

	exportClock := time.Duration(snap.ClockMs) * time.Millisecond
	timers := make(map[string]time.Duration, len(snap.ActiveTimers))
	for id, expiryMs := range snap.ActiveTimers {
		expiry := time.Duration(expiryMs) * time.Millisecond
		timers[id] = clock + (expiry - exportClock)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables = variables
	s.flags = flags
	s.activeTimers = timers
	s.completedEvents = completed
	s.entityPositions = positions
	return nil
}

// DecodeSnapshot parses a JSON snapshot, rejecting documents that do not
// match the snapshot shape.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return snap, nil
}

// EncodeSnapshot serializes a snapshot as JSON.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}
