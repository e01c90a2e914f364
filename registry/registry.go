// Package registry provides the handler registry for scriptflow graphs.
// It maps a (node category, node kind) pair to an executable behavior: an
// Action executor, a Condition evaluator, or an Event trigger predicate.
// Built-in handlers are thin translators from node properties to a facade
// call or a state mutation; all sequencing complexity lives in the interp
// package.
package registry

import (
	"log/slog"
	"sync"

	"github.com/emberforge/scriptflow"
)

// Key is the composite lookup key for a handler.
type Key struct {
	Category scriptflow.NodeCategory
	Kind     string
}

// Handler is a tagged variant: exactly one of Action, Condition, or
// Trigger is set, matching the Category.
type Handler struct {
	Category  scriptflow.NodeCategory
	Kind      string
	Action    scriptflow.ActionFunc
	Condition scriptflow.ConditionFunc
	Trigger   scriptflow.TriggerFunc
}

// Key returns the handler's registry key.
func (h Handler) Key() Key {
	return Key{Category: h.Category, Kind: h.Kind}
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the singleton registry. On first call it initializes the
// registry and registers all built-in handlers.
func Global() *Registry {
	globalOnce.Do(func() {
		global = New()
		registerBuiltins(global)
	})
	return global
}

// Registry holds handlers keyed by (category, kind).
type Registry struct {
	mu       sync.RWMutex
	handlers map[Key]Handler
	order    []Key // preserves registration order
}

// New creates an empty registry. Most callers want Global instead; a
// private registry is useful for tests and for hosts that replace the
// built-in vocabulary wholesale.
func New() *Registry {
	return &Registry{
		handlers: make(map[Key]Handler),
	}
}

// NewWithBuiltins creates a private registry pre-populated with the
// built-in handlers.
func NewWithBuiltins() *Registry {
	r := New()
	registerBuiltins(r)
	return r
}

// Register stores a handler. The last registration for a given
// (category, kind) pair wins, which is how hosts override built-ins.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := h.Key()
	if _, exists := r.handlers[key]; !exists {
		r.order = append(r.order, key)
	}
	r.handlers[key] = h
}

// RegisterAction registers an Action handler under the given kind.
func (r *Registry) RegisterAction(kind string, fn scriptflow.ActionFunc) {
	r.Register(Handler{Category: scriptflow.CategoryAction, Kind: kind, Action: fn})
}

// RegisterCondition registers a Condition handler under the given kind.
func (r *Registry) RegisterCondition(kind string, fn scriptflow.ConditionFunc) {
	r.Register(Handler{Category: scriptflow.CategoryCondition, Kind: kind, Condition: fn})
}

// RegisterTrigger registers an Event trigger predicate under the given kind.
func (r *Registry) RegisterTrigger(kind string, fn scriptflow.TriggerFunc) {
	r.Register(Handler{Category: scriptflow.CategoryEvent, Kind: kind, Trigger: fn})
}

// Lookup returns the handler for a (category, kind) pair. A miss is
// non-fatal by design: the caller logs it and does not advance past the
// node.
func (r *Registry) Lookup(category scriptflow.NodeCategory, kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[Key{Category: category, Kind: kind}]
	return h, ok
}

// Has reports whether a (category, kind) pair is registered.
func (r *Registry) Has(category scriptflow.NodeCategory, kind string) bool {
	_, ok := r.Lookup(category, kind)
	return ok
}

// Kinds returns the registered kinds for one category in registration order.
func (r *Registry) Kinds(category scriptflow.NodeCategory) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var kinds []string
	for _, key := range r.order {
		if key.Category == category {
			kinds = append(kinds, key.Kind)
		}
	}
	return kinds
}

// All returns every registered handler in registration order.
func (r *Registry) All() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.handlers[key])
	}
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// warnOnce logs a message the first time the given key is seen, then goes
// quiet. Handlers use it for absent optional facade surfaces, which would
// otherwise log every tick.
var loggedOnce sync.Map

func warnOnce(logger *slog.Logger, key, msg string, args ...any) {
	if _, seen := loggedOnce.LoadOrStore(key, struct{}{}); seen {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(msg, args...)
}
