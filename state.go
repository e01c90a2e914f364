package scriptflow

import (
	"sync"
	"time"
)

// Position is a cached 2D entity coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the interpreter's mutable heap: named variables, a flag set, a
// map of named countdown timers, the set of already-fired one-shot event
// node IDs, and a cache of last-known entity positions.
//
// One State is created at interpreter construction and lives for the
// interpreter's lifetime; it is shared by every loaded graph so that a flag
// set in one graph is visible to conditions in another within the same
// tick. Chains for independently-triggered events run concurrently, so all
// access goes through an internal mutex.
type State struct {
	mu              sync.RWMutex
	variables       map[string]any
	flags           map[string]struct{}
	activeTimers    map[string]time.Duration // timer ID -> absolute expiry on the tick clock
	completedEvents map[string]struct{}      // fired Event node IDs
	entityPositions map[string]Position
}

// NewState creates an empty interpreter state.
func NewState() *State {
	s := &State{}
	s.initLocked()
	return s
}

func (s *State) initLocked() {
	s.variables = make(map[string]any)
	s.flags = make(map[string]struct{})
	s.activeTimers = make(map[string]time.Duration)
	s.completedEvents = make(map[string]struct{})
	s.entityPositions = make(map[string]Position)
}

// SetVariable stores an untyped named scalar.
func (s *State) SetVariable(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[name] = value
}

// GetVariable returns a variable and whether it is set.
func (s *State) GetVariable(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[name]
	return v, ok
}

// MergeVariables copies the given bag into the variable table, overwriting
// existing names. Called once per graph at load time.
func (s *State) MergeVariables(vars map[string]any) {
	if len(vars) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range vars {
		s.variables[k] = v
	}
}

// SetFlag sets or clears a named boolean marker. Clearing removes the
// entry entirely: an unset flag reads as false.
func (s *State) SetFlag(name string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value {
		s.flags[name] = struct{}{}
	} else {
		delete(s.flags, name)
	}
}

// HasFlag reports whether the flag is set.
func (s *State) HasFlag(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flags[name]
	return ok
}

// SetTimer stores a timer expiring at the given absolute tick-clock time.
// Setting an existing ID restarts it; timers never stack.
func (s *State) SetTimer(id string, expiry time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTimers[id] = expiry
}

// IsTimerActive reports whether a timer exists and has not yet expired at
// the given clock reading.
func (s *State) IsTimerActive(id string, clock time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiry, ok := s.activeTimers[id]
	return ok && clock < expiry
}

// TimerExpired reports whether a timer exists and its expiry has been
// reached. During the tick in which a timer lapses this is true; the tick
// driver retires the entry afterwards, so the next tick sees no timer.
func (s *State) TimerExpired(id string, clock time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiry, ok := s.activeTimers[id]
	return ok && clock >= expiry
}

// RetireTimers removes every timer with expiry at or before the given clock
// reading and returns the removed IDs. Called once per tick, after event
// evaluation has had the chance to observe expiry.
func (s *State) RetireTimers(clock time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, expiry := range s.activeTimers {
		if expiry <= clock {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.activeTimers, id)
	}
	return expired
}

// MarkCompleted records that an Event node has fired. Returns false if the
// node was already marked, which suppresses refiring.
func (s *State) MarkCompleted(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.completedEvents[nodeID]; done {
		return false
	}
	s.completedEvents[nodeID] = struct{}{}
	return true
}

// IsCompleted reports whether an Event node has fired.
func (s *State) IsCompleted(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completedEvents[nodeID]
	return ok
}

// ClearCompleted removes completion marks for the given Event node IDs,
// re-arming them for another firing.
func (s *State) ClearCompleted(nodeIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range nodeIDs {
		delete(s.completedEvents, id)
	}
}

// SetEntityPosition caches the last-known coordinate of an entity.
func (s *State) SetEntityPosition(id string, x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entityPositions[id] = Position{X: x, Y: y}
}

// GetEntityPosition returns the cached coordinate of an entity.
func (s *State) GetEntityPosition(id string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.entityPositions[id]
	return pos, ok
}

// Reset clears all state categories: variables, flags, timers, completion
// marks, and entity positions.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
}
