package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/emberforge/scriptflow"
)

func registerBuiltinTriggers(r *Registry) {
	r.RegisterTrigger("OnStart", triggerOnStart)
	r.RegisterTrigger("OnEnterRoom", triggerOnEnterRoom)
	r.RegisterTrigger("OnPlate", triggerOnPlate)
	r.RegisterTrigger("OnTimer", triggerOnTimer)
	r.RegisterTrigger("OnEnemyDefeated", triggerOnEnemyDefeated)
	r.RegisterTrigger("OnCutsceneEnd", triggerOnCutsceneEnd)
	r.RegisterTrigger("OnNoclipExit", triggerOnNoclipExit)
	r.RegisterTrigger("OnCollision", triggerOnCollision)
	r.RegisterTrigger("OnKeyPress", triggerOnKeyPress)
	r.RegisterTrigger("OnFlag", triggerOnFlag)
	r.RegisterTrigger("OnSchedule", triggerOnSchedule)
}

// triggerOnStart is always true; the completion mark makes it fire once.
func triggerOnStart(context.Context, *scriptflow.Call) (bool, error) {
	return true, nil
}

func triggerOnEnterRoom(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.Facade.IsPlayerInRoom(call.Node.PropString("roomId", "")), nil
}

func triggerOnPlate(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.Facade.IsPressurePlateActive(call.Node.PropString("plateId", "")), nil
}

// triggerOnTimer is true during the tick in which the named timer's expiry
// is reached. The tick driver retires the timer after event evaluation, so
// the trigger observes expiry exactly once.
func triggerOnTimer(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.State.TimerExpired(call.Node.PropString("timerId", ""), call.Clock), nil
}

func triggerOnEnemyDefeated(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.Facade.IsEnemyDefeated(call.Node.PropString("enemyId", "")), nil
}

func triggerOnCutsceneEnd(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.Facade.IsCutsceneEnded(call.Node.PropString("cutsceneId", "")), nil
}

func triggerOnNoclipExit(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.Facade.IsNoclipExited(), nil
}

func triggerOnCollision(_ context.Context, call *scriptflow.Call) (bool, error) {
	sf, ok := sensor(call, "OnCollision")
	if !ok {
		return false, nil
	}
	want := call.Node.PropString("tag", "")
	for _, tag := range sf.CollisionTags(call.EntityID()) {
		if tag == want {
			return true, nil
		}
	}
	return false, nil
}

func triggerOnKeyPress(_ context.Context, call *scriptflow.Call) (bool, error) {
	sf, ok := sensor(call, "OnKeyPress")
	if !ok {
		return false, nil
	}
	return sf.IsActionPressed(call.Node.PropString("key", "")), nil
}

// triggerOnFlag fires when a named flag is set, from any graph. This is
// the cross-graph signaling primitive: an Action in one graph sets the
// flag, an OnFlag event in another picks it up within the same tick pass.
func triggerOnFlag(_ context.Context, call *scriptflow.Call) (bool, error) {
	return call.State.HasFlag(call.Node.PropString("flagId", "")), nil
}

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// scheduleCache holds parsed cron schedules keyed by expression. Graph
// documents repeat the same handful of expressions, so parse once.
var scheduleCache sync.Map

// triggerOnSchedule fires when a wall-clock cron boundary passes between
// the previous tick and this one. Used for timed live events that key off
// real time rather than the simulation clock.
func triggerOnSchedule(_ context.Context, call *scriptflow.Call) (bool, error) {
	expr := call.Node.PropString("schedule", "")
	if expr == "" {
		return false, fmt.Errorf("OnSchedule node %s has no schedule property", call.Node.ID)
	}
	if call.PrevWall.IsZero() {
		// First tick: no interval to test against yet.
		return false, nil
	}

	var schedule cron.Schedule
	if cached, ok := scheduleCache.Load(expr); ok {
		schedule = cached.(cron.Schedule)
	} else {
		parsed, err := scheduleParser.Parse(expr)
		if err != nil {
			return false, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		scheduleCache.Store(expr, parsed)
		schedule = parsed
	}

	next := schedule.Next(call.PrevWall)
	return !next.After(call.Wall), nil
}
