package interp

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberforge/scriptflow"
	"github.com/emberforge/scriptflow/registry"
)

// Interpreter executes loaded behavior graphs against one long-lived
// shared state, once per simulation tick. It is the composition root for
// the graph store, the handler registry, the tick driver, and the host
// facade.
//
// Ticks are driven from a single goroutine (the host's game loop). A fired
// event chain runs synchronously with trigger evaluation until it finishes
// or suspends inside a real-time action (a cutscene, a Wait); only the
// suspended remainder keeps running on its own goroutine. State writes
// made before a suspension are therefore visible to every trigger and
// chain evaluated later in the same tick, in graph declaration order,
// while a suspended chain never stalls the loop or other chains. The
// shared State serializes access internally.
type Interpreter struct {
	id       string
	logger   *slog.Logger
	facade   scriptflow.Facade
	registry *registry.Registry
	state    *scriptflow.State
	now      func() time.Time

	handler   EventHandler
	bus       EventPublisher
	seq       *seqGen
	maxVisits int

	mu         sync.Mutex
	graphs     map[string]*scriptflow.Graph
	graphOrder []string // load order; also the per-tick evaluation order
	running    bool
	clock      time.Duration
	tick       uint64
	lastWall   time.Time

	chains sync.WaitGroup

	loggedMissing sync.Map // (category, kind) pairs already reported
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

// WithFacade sets the host engine facade. Defaults to a logging no-op.
func WithFacade(f scriptflow.Facade) Option {
	return func(i *Interpreter) { i.facade = f }
}

// WithRegistry sets the handler registry. Defaults to registry.Global.
func WithRegistry(r *registry.Registry) Option {
	return func(i *Interpreter) { i.registry = r }
}

// WithEventHandler sets a handler invoked synchronously for every emitted
// interpreter event.
func WithEventHandler(h EventHandler) Option {
	return func(i *Interpreter) { i.handler = h }
}

// WithEventBus sets a publisher that distributes interpreter events to
// subscribers.
func WithEventBus(bus EventPublisher) Option {
	return func(i *Interpreter) { i.bus = bus }
}

// WithNow sets the wall-clock source, for testing schedule triggers and
// event timestamps.
func WithNow(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

// WithMaxVisits caps how many nodes one chain invocation may visit. Zero
// means no cap beyond the per-invocation cycle guard. A chain hitting the
// cap finishes as truncated.
func WithMaxVisits(n int) Option {
	return func(i *Interpreter) { i.maxVisits = n }
}

// New creates an interpreter with empty state and no graphs loaded.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		id:       uuid.NewString(),
		logger:   slog.Default(),
		registry: registry.Global(),
		state:    scriptflow.NewState(),
		now:      time.Now,
		seq:      newSeqGen(),
		graphs:   make(map[string]*scriptflow.Graph),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.facade == nil {
		i.facade = scriptflow.NoopFacade{Logger: i.logger}
	}
	return i
}

// ID returns the interpreter instance identifier carried by its events.
func (i *Interpreter) ID() string {
	return i.id
}

// State returns the shared interpreter state.
func (i *Interpreter) State() *scriptflow.State {
	return i.state
}

// Load installs a graph and merges its initial variables into the shared
// state. Loading a graph with an already-installed ID replaces it; the
// replacement keeps its position in the evaluation order.
func (i *Interpreter) Load(g *scriptflow.Graph) {
	if g == nil {
		return
	}
	i.mu.Lock()
	if _, exists := i.graphs[g.ID]; !exists {
		i.graphOrder = append(i.graphOrder, g.ID)
	} else {
		i.logger.Warn("replacing loaded graph", slog.String("graph", g.ID))
	}
	i.graphs[g.ID] = g
	i.mu.Unlock()

	i.state.MergeVariables(g.Variables)
	i.logger.Debug("graph loaded",
		slog.String("graph", g.ID),
		slog.String("name", g.Name),
		slog.Int("nodes", len(g.Nodes())),
		slog.Int("edges", len(g.Edges())))
}

// LoadAll installs multiple graphs in order.
func (i *Interpreter) LoadAll(graphs []*scriptflow.Graph) {
	for _, g := range graphs {
		i.Load(g)
	}
}

// Graphs returns the loaded graphs in evaluation order.
func (i *Interpreter) Graphs() []*scriptflow.Graph {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.orderedGraphsLocked()
}

func (i *Interpreter) orderedGraphsLocked() []*scriptflow.Graph {
	out := make([]*scriptflow.Graph, 0, len(i.graphOrder))
	for _, id := range i.graphOrder {
		out = append(out, i.graphs[id])
	}
	return out
}

// Start enables ticking. Idempotent.
func (i *Interpreter) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = true
}

// Stop halts further ticks. Idempotent. In-flight asynchronous actions are
// not canceled; their effects land on an interpreter that is no longer
// being ticked.
func (i *Interpreter) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = false
}

// Running reports whether Tick currently advances the simulation.
func (i *Interpreter) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.running
}

// Wait blocks until every launched event chain has finished. Used by tests
// and by hosts shutting down.
func (i *Interpreter) Wait() {
	i.chains.Wait()
}

// Clock returns the accumulated simulation time.
func (i *Interpreter) Clock() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.clock
}

// TriggerEvent clears completion marks for Event nodes of the given kind
// across all loaded graphs, re-arming them so their next true evaluation
// fires again. This is the only supported replay mechanism. The optional
// data bag is attached to the emitted event for observers.
func (i *Interpreter) TriggerEvent(kind string, data map[string]any) {
	i.mu.Lock()
	graphs := i.orderedGraphsLocked()
	i.mu.Unlock()

	var cleared []string
	for _, g := range graphs {
		for _, node := range g.NodesOfKind(scriptflow.CategoryEvent, kind) {
			cleared = append(cleared, node.ID)
		}
	}
	i.state.ClearCompleted(cleared...)

	e := NewEvent(EventRearmed, i.id).
		WithPayload("kind", kind).
		WithPayload("cleared", len(cleared))
	if data != nil {
		e = e.WithPayload("data", data)
	}
	i.emit(e)
}

// SetVariable stores an untyped named scalar in the shared state.
func (i *Interpreter) SetVariable(name string, value any) {
	i.state.SetVariable(name, value)
}

// GetVariable returns a variable and whether it is set.
func (i *Interpreter) GetVariable(name string) (any, bool) {
	return i.state.GetVariable(name)
}

// SetFlag sets or clears a named boolean marker.
func (i *Interpreter) SetFlag(name string, value bool) {
	i.state.SetFlag(name, value)
}

// HasFlag reports whether the flag is set.
func (i *Interpreter) HasFlag(name string) bool {
	return i.state.HasFlag(name)
}

// SetEntityPosition caches the last-known coordinate of an entity.
func (i *Interpreter) SetEntityPosition(id string, x, y float64) {
	i.state.SetEntityPosition(id, x, y)
}

// GetEntityPosition returns the cached coordinate of an entity.
func (i *Interpreter) GetEntityPosition(id string) (scriptflow.Position, bool) {
	return i.state.GetEntityPosition(id)
}

// SetTimer starts (or restarts) a named countdown timer.
func (i *Interpreter) SetTimer(id string, duration time.Duration) {
	i.state.SetTimer(id, i.Clock()+duration)
}

// IsTimerActive reports whether a timer exists and has not yet expired.
func (i *Interpreter) IsTimerActive(id string) bool {
	return i.state.IsTimerActive(id, i.Clock())
}

// ExportState captures the whole interpreter state as a snapshot.
func (i *Interpreter) ExportState() scriptflow.Snapshot {
	return i.state.Export(i.Clock())
}

// ImportState replaces the interpreter state from a snapshot. On failure
// the prior state is retained.
func (i *Interpreter) ImportState(snap scriptflow.Snapshot) error {
	if err := i.state.Import(snap, i.Clock()); err != nil {
		i.logger.Error("snapshot import failed, prior state retained", slog.Any("error", err))
		return err
	}
	i.emit(NewEvent(EventStateImported, i.id).
		WithPayload("variables", len(snap.Variables)).
		WithPayload("timers", len(snap.ActiveTimers)))
	return nil
}

// ImportStateJSON decodes and imports a JSON snapshot. Malformed documents
// are rejected before any state is touched.
func (i *Interpreter) ImportStateJSON(data []byte) error {
	snap, err := scriptflow.DecodeSnapshot(data)
	if err != nil {
		i.logger.Error("snapshot import failed, prior state retained", slog.Any("error", err))
		return err
	}
	return i.ImportState(snap)
}

// Reset clears all interpreter state: variables, flags, timers, completion
// marks, and entity positions. Loaded graphs stay installed.
func (i *Interpreter) Reset() {
	i.state.Reset()
	i.emit(NewEvent(EventStateReset, i.id))
}

// emit stamps and fans out one interpreter event.
func (i *Interpreter) emit(e Event) {
	e.Seq = i.seq.Next()
	if i.bus != nil {
		i.bus.Publish(e)
	}
	if i.handler != nil {
		i.handler(e)
	}
}

// missingHandler logs an unregistered (category, kind) pair once per
// interpreter, then stays quiet about it.
func (i *Interpreter) missingHandler(category scriptflow.NodeCategory, kind, nodeID string) {
	key := string(category) + ":" + kind
	if _, seen := i.loggedMissing.LoadOrStore(key, struct{}{}); seen {
		return
	}
	i.logger.Warn("no handler registered",
		slog.String("category", string(category)),
		slog.String("kind", kind),
		slog.String("node", nodeID))
}
