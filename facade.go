package scriptflow

import (
	"context"
	"log/slog"
	"time"
)

// Facade is the narrow surface of the host engine the interpreter calls
// out to. Effect methods may block for the duration of a real-time effect
// (a cutscene, a scripted camera move); the chain that invoked them waits,
// other chains do not.
//
// Hosts that only care about a subset embed NoopFacade and override what
// they implement; the no-op base tolerates and logs the rest.
type Facade interface {
	// Effects
	OpenGate(ctx context.Context, gateID string) error
	PlayCutscene(ctx context.Context, cutsceneID string) error
	TeleportEntity(ctx context.Context, entityID string, x, y float64) error
	SpawnEnemy(ctx context.Context, enemyType string, x, y float64) error
	ShowText(ctx context.Context, text string, duration time.Duration) error
	SwitchMusic(ctx context.Context, trackID string, fade time.Duration) error

	// Queries
	IsPlayerInRoom(roomID string) bool
	IsPressurePlateActive(plateID string) bool
	IsEnemyDefeated(enemyID string) bool
	IsCutsceneEnded(cutsceneID string) bool
	IsNoclipExited() bool
}

// EntityFacade is the optional per-entity effect surface used by the
// entity-scoped Action kinds (Move, Jump, PlayAnimation, SpawnEntity,
// PlaySound). Hosts expose it by implementing the interface on the same
// value they pass as Facade.
type EntityFacade interface {
	MoveEntity(ctx context.Context, entityID string, dx, dy float64) error
	JumpEntity(ctx context.Context, entityID string, strength float64) error
	PlayAnimation(ctx context.Context, entityID, animation string) error
	SpawnEntity(ctx context.Context, entityKind string, x, y float64) error
	PlaySound(ctx context.Context, soundID string) error
}

// SensorFacade is the optional query surface used by the entity-scoped
// Condition and Event kinds (IsAlive, HasItem, IsOnGround, IsMoving,
// OnCollision, OnKeyPress).
type SensorFacade interface {
	IsEntityAlive(entityID string) bool
	HasItem(ownerID, itemID string) bool
	IsOnGround(entityID string) bool
	IsMoving(entityID string) bool
	CollisionTags(entityID string) []string
	IsActionPressed(action string) bool
}

// NoopFacade is a Facade that performs nothing. Every call is logged at
// debug level so a graph wired against an incomplete host is diagnosable.
// Embed it to implement only part of the surface.
type NoopFacade struct {
	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

func (f NoopFacade) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func (f NoopFacade) ignored(method string, args ...any) {
	attrs := append([]any{slog.String("method", method)}, args...)
	f.logger().Debug("facade call ignored", attrs...)
}

func (f NoopFacade) OpenGate(_ context.Context, gateID string) error {
	f.ignored("OpenGate", slog.String("gate", gateID))
	return nil
}

func (f NoopFacade) PlayCutscene(_ context.Context, cutsceneID string) error {
	f.ignored("PlayCutscene", slog.String("cutscene", cutsceneID))
	return nil
}

func (f NoopFacade) TeleportEntity(_ context.Context, entityID string, x, y float64) error {
	f.ignored("TeleportEntity", slog.String("entity", entityID), slog.Float64("x", x), slog.Float64("y", y))
	return nil
}

func (f NoopFacade) SpawnEnemy(_ context.Context, enemyType string, x, y float64) error {
	f.ignored("SpawnEnemy", slog.String("type", enemyType), slog.Float64("x", x), slog.Float64("y", y))
	return nil
}

func (f NoopFacade) ShowText(_ context.Context, text string, duration time.Duration) error {
	f.ignored("ShowText", slog.String("text", text), slog.Duration("duration", duration))
	return nil
}

func (f NoopFacade) SwitchMusic(_ context.Context, trackID string, fade time.Duration) error {
	f.ignored("SwitchMusic", slog.String("track", trackID), slog.Duration("fade", fade))
	return nil
}

func (f NoopFacade) IsPlayerInRoom(string) bool        { return false }
func (f NoopFacade) IsPressurePlateActive(string) bool { return false }
func (f NoopFacade) IsEnemyDefeated(string) bool       { return false }
func (f NoopFacade) IsCutsceneEnded(string) bool       { return false }
func (f NoopFacade) IsNoclipExited() bool              { return false }

// Ensure interface compliance at compile time.
var _ Facade = NoopFacade{}
