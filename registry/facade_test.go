package registry

import (
	"context"
	"sync"
	"time"

	"github.com/emberforge/scriptflow"
)

// recordingFacade captures effect calls and answers queries from canned
// values. It covers the base Facade surface only; entityFacade layers the
// optional surfaces on top.
type recordingFacade struct {
	scriptflow.NoopFacade

	mu    sync.Mutex
	calls []string

	playerRoom   string
	activePlates map[string]bool
	defeated     map[string]bool
}

func (f *recordingFacade) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *recordingFacade) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *recordingFacade) OpenGate(_ context.Context, gateID string) error {
	f.record("OpenGate:" + gateID)
	return nil
}

func (f *recordingFacade) TeleportEntity(_ context.Context, entityID string, _, _ float64) error {
	f.record("Teleport:" + entityID)
	return nil
}

func (f *recordingFacade) ShowText(_ context.Context, text string, _ time.Duration) error {
	f.record("ShowText:" + text)
	return nil
}

func (f *recordingFacade) SwitchMusic(_ context.Context, trackID string, _ time.Duration) error {
	f.record("SwitchMusic:" + trackID)
	return nil
}

func (f *recordingFacade) SpawnEnemy(_ context.Context, enemyType string, _, _ float64) error {
	f.record("SpawnEnemy:" + enemyType)
	return nil
}

func (f *recordingFacade) IsPlayerInRoom(roomID string) bool {
	return f.playerRoom == roomID
}

func (f *recordingFacade) IsPressurePlateActive(plateID string) bool {
	return f.activePlates[plateID]
}

func (f *recordingFacade) IsEnemyDefeated(enemyID string) bool {
	return f.defeated[enemyID]
}

// entityFacade adds the optional entity and sensor surfaces.
type entityFacade struct {
	recordingFacade

	alive     map[string]bool
	items     map[string]bool // "owner/item"
	onGround  map[string]bool
	moving    map[string]bool
	collides  map[string][]string
	pressed   map[string]bool
}

func (f *entityFacade) MoveEntity(_ context.Context, entityID string, _, _ float64) error {
	f.record("Move:" + entityID)
	return nil
}

func (f *entityFacade) JumpEntity(_ context.Context, entityID string, _ float64) error {
	f.record("Jump:" + entityID)
	return nil
}

func (f *entityFacade) PlayAnimation(_ context.Context, entityID, animation string) error {
	f.record("PlayAnimation:" + entityID + ":" + animation)
	return nil
}

func (f *entityFacade) SpawnEntity(_ context.Context, entityKind string, _, _ float64) error {
	f.record("SpawnEntity:" + entityKind)
	return nil
}

func (f *entityFacade) PlaySound(_ context.Context, soundID string) error {
	f.record("PlaySound:" + soundID)
	return nil
}

func (f *entityFacade) IsEntityAlive(entityID string) bool { return f.alive[entityID] }
func (f *entityFacade) HasItem(ownerID, itemID string) bool {
	return f.items[ownerID+"/"+itemID]
}
func (f *entityFacade) IsOnGround(entityID string) bool        { return f.onGround[entityID] }
func (f *entityFacade) IsMoving(entityID string) bool          { return f.moving[entityID] }
func (f *entityFacade) CollisionTags(entityID string) []string { return f.collides[entityID] }
func (f *entityFacade) IsActionPressed(action string) bool     { return f.pressed[action] }

// newCall builds a Call for direct handler invocation in tests.
func newCall(node *scriptflow.Node, facade scriptflow.Facade, state *scriptflow.State, clock time.Duration) *scriptflow.Call {
	if state == nil {
		state = scriptflow.NewState()
	}
	return &scriptflow.Call{
		State:  state,
		Facade: facade,
		Node:   node,
		Clock:  clock,
	}
}

// Interface checks: the fakes must satisfy the optional surfaces.
var (
	_ scriptflow.Facade       = (*recordingFacade)(nil)
	_ scriptflow.EntityFacade = (*entityFacade)(nil)
	_ scriptflow.SensorFacade = (*entityFacade)(nil)
)
