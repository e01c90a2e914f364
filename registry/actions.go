package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/emberforge/scriptflow"
)

// registerBuiltins installs the built-in handler vocabulary. Called once
// by Global during singleton initialization; NewWithBuiltins reuses it for
// private registries.
func registerBuiltins(r *Registry) {
	registerBuiltinActions(r)
	registerBuiltinConditions(r)
	registerBuiltinTriggers(r)
}

func registerBuiltinActions(r *Registry) {
	r.RegisterAction("openGate", actionOpenGate)
	r.RegisterAction("playCutscene", actionPlayCutscene)
	r.RegisterAction("teleport", actionTeleport)
	r.RegisterAction("setFlag", actionSetFlag)
	r.RegisterAction("spawnEnemy", actionSpawnEnemy)
	r.RegisterAction("setTimer", actionSetTimer)
	r.RegisterAction("showText", actionShowText)
	r.RegisterAction("musicSwitch", actionMusicSwitch)
	r.RegisterAction("Move", actionMove)
	r.RegisterAction("Jump", actionJump)
	r.RegisterAction("PlayAnimation", actionPlayAnimation)
	r.RegisterAction("SetVariable", actionSetVariable)
	r.RegisterAction("SpawnEntity", actionSpawnEntity)
	r.RegisterAction("PlaySound", actionPlaySound)
	r.RegisterAction("Wait", actionWait)
}

func actionOpenGate(ctx context.Context, call *scriptflow.Call) error {
	return call.Facade.OpenGate(ctx, call.Node.PropString("gateId", ""))
}

// actionPlayCutscene may block for the cutscene's real-time duration, so
// it suspends the chain first: the tick driver moves on while the invoking
// chain waits for the facade to return.
func actionPlayCutscene(ctx context.Context, call *scriptflow.Call) error {
	call.Suspend()
	return call.Facade.PlayCutscene(ctx, call.Node.PropString("cutsceneId", ""))
}

func actionTeleport(ctx context.Context, call *scriptflow.Call) error {
	entity := call.EntityID()
	x := call.Node.PropFloat("x", 0)
	y := call.Node.PropFloat("y", 0)
	if err := call.Facade.TeleportEntity(ctx, entity, x, y); err != nil {
		return err
	}
	call.State.SetEntityPosition(entity, x, y)
	return nil
}

func actionSetFlag(_ context.Context, call *scriptflow.Call) error {
	call.State.SetFlag(call.Node.PropString("flagId", ""), call.Node.PropBool("value", true))
	return nil
}

func actionSpawnEnemy(ctx context.Context, call *scriptflow.Call) error {
	return call.Facade.SpawnEnemy(ctx,
		call.Node.PropString("enemyType", ""),
		call.Node.PropFloat("x", 0),
		call.Node.PropFloat("y", 0))
}

// actionSetTimer restarts any timer already stored under the same ID;
// timers never stack. Expiry is computed from the live clock, not the
// launching tick's, so a timer armed after the chain suspended still runs
// its full duration.
func actionSetTimer(_ context.Context, call *scriptflow.Call) error {
	duration := call.Node.PropDuration("durationMs", 0)
	call.State.SetTimer(call.Node.PropString("timerId", ""), call.ClockNow()+duration)
	return nil
}

func actionShowText(ctx context.Context, call *scriptflow.Call) error {
	return call.Facade.ShowText(ctx,
		call.Node.PropString("text", ""),
		call.Node.PropDuration("durationMs", 0))
}

func actionMusicSwitch(ctx context.Context, call *scriptflow.Call) error {
	return call.Facade.SwitchMusic(ctx,
		call.Node.PropString("trackId", ""),
		call.Node.PropDuration("fadeMs", 0))
}

func actionMove(ctx context.Context, call *scriptflow.Call) error {
	ef, ok := call.Facade.(scriptflow.EntityFacade)
	if !ok {
		warnEntityFacadeAbsent(call, "Move")
		return nil
	}
	return ef.MoveEntity(ctx, call.EntityID(),
		call.Node.PropFloat("dx", 0),
		call.Node.PropFloat("dy", 0))
}

func actionJump(ctx context.Context, call *scriptflow.Call) error {
	ef, ok := call.Facade.(scriptflow.EntityFacade)
	if !ok {
		warnEntityFacadeAbsent(call, "Jump")
		return nil
	}
	return ef.JumpEntity(ctx, call.EntityID(), call.Node.PropFloat("strength", 1))
}

func actionPlayAnimation(ctx context.Context, call *scriptflow.Call) error {
	ef, ok := call.Facade.(scriptflow.EntityFacade)
	if !ok {
		warnEntityFacadeAbsent(call, "PlayAnimation")
		return nil
	}
	return ef.PlayAnimation(ctx, call.EntityID(), call.Node.PropString("animation", ""))
}

func actionSetVariable(_ context.Context, call *scriptflow.Call) error {
	name := call.Node.PropString("name", "")
	if name == "" {
		return nil
	}
	if call.Node.Props != nil {
		call.State.SetVariable(name, call.Node.Props["value"])
	}
	return nil
}

func actionSpawnEntity(ctx context.Context, call *scriptflow.Call) error {
	ef, ok := call.Facade.(scriptflow.EntityFacade)
	if !ok {
		warnEntityFacadeAbsent(call, "SpawnEntity")
		return nil
	}
	return ef.SpawnEntity(ctx, call.Node.PropString("entityType", ""),
		call.Node.PropFloat("x", 0),
		call.Node.PropFloat("y", 0))
}

func actionPlaySound(ctx context.Context, call *scriptflow.Call) error {
	ef, ok := call.Facade.(scriptflow.EntityFacade)
	if !ok {
		warnEntityFacadeAbsent(call, "PlaySound")
		return nil
	}
	return ef.PlaySound(ctx, call.Node.PropString("soundId", ""))
}

// actionWait suspends the chain for the node's duration in real time.
// Simulation ticks continue underneath; only this chain is paused.
func actionWait(ctx context.Context, call *scriptflow.Call) error {
	duration := call.Node.PropDuration("durationMs", 0)
	if duration <= 0 {
		return nil
	}
	call.Suspend()
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// warnEntityFacadeAbsent notes, once per kind, that an entity-scoped kind
// is wired into a graph but the host facade does not expose the entity
// surface. The action degrades to a no-op.
func warnEntityFacadeAbsent(call *scriptflow.Call, kind string) {
	warnOnce(call.Logger, "entity-facade:"+kind,
		"entity facade not implemented by host, action ignored",
		slog.String("kind", kind), slog.String("node", call.Node.ID))
}
