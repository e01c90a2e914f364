package registry

import (
	"context"
	"log/slog"

	"github.com/emberforge/scriptflow"
)

func registerBuiltinConditions(r *Registry) {
	r.RegisterCondition("HasFlag", conditionHasFlag)
	r.RegisterCondition("IsEntityNear", conditionIsEntityNear)
	r.RegisterCondition("TimerActive", conditionTimerActive)
	r.RegisterCondition("IsAlive", conditionIsAlive)
	r.RegisterCondition("HasItem", conditionHasItem)
	r.RegisterCondition("IsOnGround", conditionIsOnGround)
	r.RegisterCondition("IsMoving", conditionIsMoving)
}

func conditionHasFlag(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.State.HasFlag(call.Node.PropString("flagId", "")), nil
}

// conditionIsEntityNear checks the cached last-known position of an entity
// against a point and radius from the node properties. An entity with no
// cached position is never near anything.
func conditionIsEntityNear(_ context.Context, call *scriptflow.Call) (bool, error) {
	pos, ok := call.State.GetEntityPosition(call.EntityID())
	if !ok {
		return false, nil
	}
	dx := pos.X - call.Node.PropFloat("x", 0)
	dy := pos.Y - call.Node.PropFloat("y", 0)
	radius := call.Node.PropFloat("radius", 0)
	return dx*dx+dy*dy <= radius*radius, nil
}

// conditionTimerActive reads the live clock: a chain checking a timer
// after a suspension must see the countdown as it stands now, not as it
// stood when the chain launched.
func conditionTimerActive(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.State.IsTimerActive(call.Node.PropString("timerId", ""), call.ClockNow()), nil
}

func conditionIsAlive(_ context.Context, call *scriptflow.Call) (bool, error) {
	sf, ok := sensor(call, "IsAlive")
	if !ok {
		return false, nil
	}
	return sf.IsEntityAlive(call.EntityID()), nil
}

func conditionHasItem(_ context.Context, call *scriptflow.Call) (bool, error) {
	sf, ok := sensor(call, "HasItem")
	if !ok {
		return false, nil
	}
	owner := call.EntityID()
	if owner == "" {
		owner = "player"
	}
	return sf.HasItem(owner, call.Node.PropString("itemId", "")), nil
}

func conditionIsOnGround(_ context.Context, call *scriptflow.Call) (bool, error) {
	sf, ok := sensor(call, "IsOnGround")
	if !ok {
		return false, nil
	}
	return sf.IsOnGround(call.EntityID()), nil
}

func conditionIsMoving(_ context.Context, call *scriptflow.Call) (bool, error) {
	sf, ok := sensor(call, "IsMoving")
	if !ok {
		return false, nil
	}
	return sf.IsMoving(call.EntityID()), nil
}

// sensor resolves the optional sensor surface of the host facade. Absence
// is fail-closed: the condition reads false, logged once per kind.
func sensor(call *scriptflow.Call, kind string) (scriptflow.SensorFacade, bool) {
	sf, ok := call.Facade.(scriptflow.SensorFacade)
	if !ok {
		warnOnce(call.Logger, "sensor-facade:"+kind,
			"sensor facade not implemented by host, condition reads false",
			slog.String("kind", kind), slog.String("node", call.Node.ID))
		return nil, false
	}
	return sf, true
}
