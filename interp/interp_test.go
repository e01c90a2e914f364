package interp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/emberforge/scriptflow"
	"github.com/emberforge/scriptflow/registry"
)

// eventLog collects emitted events. Chains run concurrently, so access is
// locked.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handler() EventHandler {
	return func(e Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.events = append(l.events, e)
	}
}

func (l *eventLog) byKind(kind EventKind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// gateFacade records opened gates and shown texts.
type gateFacade struct {
	scriptflow.NoopFacade

	mu    sync.Mutex
	gates []string
	texts []string
}

func (f *gateFacade) OpenGate(_ context.Context, gateID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates = append(f.gates, gateID)
	return nil
}

func (f *gateFacade) ShowText(_ context.Context, text string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *gateFacade) Gates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gates...)
}

func (f *gateFacade) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// buildGraph assembles a test graph, failing the test on duplicate IDs.
func buildGraph(t *testing.T, id string, nodes []*scriptflow.Node, edges []scriptflow.Edge) *scriptflow.Graph {
	t.Helper()
	g := scriptflow.NewGraph(id, id)
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}
	for _, e := range edges {
		g.AddEdge(e)
	}
	return g
}

// gateGraph is the canonical test fixture: OnStart feeds a HasFlag check
// that opens a gate on true and shows text on false.
func gateGraph(t *testing.T) *scriptflow.Graph {
	t.Helper()
	return buildGraph(t, "gate-graph",
		[]*scriptflow.Node{
			{ID: "ev", Category: scriptflow.CategoryEvent, Kind: "OnStart"},
			{ID: "check", Category: scriptflow.CategoryCondition, Kind: "HasFlag",
				Props: map[string]any{"flagId": "has_key"}},
			{ID: "open", Category: scriptflow.CategoryAction, Kind: "openGate",
				Props: map[string]any{"gateId": "north"}},
			{ID: "deny", Category: scriptflow.CategoryAction, Kind: "showText",
				Props: map[string]any{"text": "locked"}},
		},
		[]scriptflow.Edge{
			{ID: "e1", From: "ev:flow", To: "check:flow"},
			{ID: "e2", From: "check:flow_true", To: "open:flow"},
			{ID: "e3", From: "check:flow_false", To: "deny:flow"},
		})
}

func TestNew_Defaults(t *testing.T) {
	it := New()

	if it.ID() == "" {
		t.Error("interpreter should have an ID")
	}
	if it.Running() {
		t.Error("interpreter should start stopped")
	}
	if it.Clock() != 0 {
		t.Errorf("Clock = %v, want 0", it.Clock())
	}
}

func TestInterpreter_Load_ReplacesByID(t *testing.T) {
	it := New()
	g1 := scriptflow.NewGraph("g", "first")
	g2 := scriptflow.NewGraph("g", "second")

	it.Load(g1)
	it.Load(g2)

	graphs := it.Graphs()
	if len(graphs) != 1 {
		t.Fatalf("len(Graphs) = %d, want 1", len(graphs))
	}
	if graphs[0].Name != "second" {
		t.Errorf("Graphs()[0].Name = %q, want second", graphs[0].Name)
	}
}

func TestInterpreter_Load_MergesVariables(t *testing.T) {
	it := New()
	g := scriptflow.NewGraph("g", "")
	g.Variables["difficulty"] = "hard"
	it.Load(g)

	if v, _ := it.GetVariable("difficulty"); v != "hard" {
		t.Errorf("variable after load = %v, want hard", v)
	}
}

func TestInterpreter_StartStop(t *testing.T) {
	it := New()
	it.Start()
	if !it.Running() {
		t.Error("Running() = false after Start")
	}
	it.Stop()
	if it.Running() {
		t.Error("Running() = true after Stop")
	}
	// Idempotent.
	it.Stop()
	it.Start()
	it.Start()
	if !it.Running() {
		t.Error("Running() = false after repeated Start")
	}
}

func TestInterpreter_TriggerEventRearms(t *testing.T) {
	log := &eventLog{}
	facade := &gateFacade{}
	it := New(WithFacade(facade), WithEventHandler(log.handler()))
	it.Load(gateGraph(t))
	it.SetFlag("has_key", true)
	it.Start()

	ctx := context.Background()
	it.Tick(ctx, 16*time.Millisecond)
	it.Wait()
	it.Tick(ctx, 16*time.Millisecond)
	it.Wait()

	if got := len(facade.Gates()); got != 1 {
		t.Fatalf("gate opened %d times before re-arm, want 1", got)
	}

	it.TriggerEvent("OnStart", map[string]any{"reason": "replay"})
	it.Tick(ctx, 16*time.Millisecond)
	it.Wait()

	if got := len(facade.Gates()); got != 2 {
		t.Errorf("gate opened %d times after re-arm, want 2", got)
	}
	if len(log.byKind(EventRearmed)) != 1 {
		t.Error("expected one event.rearmed")
	}
}

func TestInterpreter_SnapshotRoundTrip(t *testing.T) {
	it := New()
	it.SetVariable("hp", 10)
	it.SetFlag("door", true)
	it.SetTimer("bomb", 3*time.Second)

	snap := it.ExportState()

	other := New()
	if err := other.ImportState(snap); err != nil {
		t.Fatalf("ImportState: %v", err)
	}

	if v, _ := other.GetVariable("hp"); v != 10 {
		t.Errorf("variable = %v, want 10", v)
	}
	if !other.HasFlag("door") {
		t.Error("flag lost in transfer")
	}
	if !other.IsTimerActive("bomb") {
		t.Error("timer should remain active after rebased import")
	}
}

func TestInterpreter_ImportStateJSON_Malformed(t *testing.T) {
	it := New()
	it.SetFlag("keep", true)

	if err := it.ImportStateJSON([]byte("{broken")); err == nil {
		t.Fatal("malformed snapshot should error")
	}
	if !it.HasFlag("keep") {
		t.Error("prior state should be retained after failed import")
	}
}

func TestInterpreter_Reset(t *testing.T) {
	log := &eventLog{}
	it := New(WithEventHandler(log.handler()))
	it.SetFlag("f", true)

	it.Reset()

	if it.HasFlag("f") {
		t.Error("Reset should clear flags")
	}
	if len(log.byKind(EventStateReset)) != 1 {
		t.Error("Reset should emit state.reset")
	}
}

func TestInterpreter_MissingHandlerLogsNotFatal(t *testing.T) {
	log := &eventLog{}
	it := New(WithRegistry(registry.New()), WithEventHandler(log.handler()))
	it.Load(gateGraph(t))
	it.Start()

	// Empty registry: OnStart has no trigger. The tick must survive.
	it.Tick(context.Background(), 16*time.Millisecond)
	it.Wait()

	if len(log.byKind(EventTriggerFired)) != 0 {
		t.Error("no trigger should fire with an empty registry")
	}
	if len(log.byKind(EventTickFinished)) != 1 {
		t.Error("tick should complete despite missing handlers")
	}
}

func TestEvent_Sequencing(t *testing.T) {
	log := &eventLog{}
	it := New(WithEventHandler(log.handler()))
	it.Load(gateGraph(t))
	it.Start()
	it.Tick(context.Background(), 16*time.Millisecond)
	it.Wait()

	log.mu.Lock()
	defer log.mu.Unlock()
	seen := make(map[uint64]bool, len(log.events))
	for _, e := range log.events {
		if e.Seq == 0 {
			t.Error("event with zero Seq")
		}
		if seen[e.Seq] {
			t.Errorf("duplicate Seq %d", e.Seq)
		}
		seen[e.Seq] = true
		if e.RunID != it.ID() {
			t.Errorf("event RunID = %q, want %q", e.RunID, it.ID())
		}
	}
}
