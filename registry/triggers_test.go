package registry

import (
	"context"
	"testing"
	"time"

	"github.com/emberforge/scriptflow"
)

func TestTriggerOnStart(t *testing.T) {
	on, err := triggerOnStart(context.Background(), nil)
	if err != nil || !on {
		t.Errorf("triggerOnStart = %v, %v, want true", on, err)
	}
}

func TestTriggerOnEnterRoom(t *testing.T) {
	f := &recordingFacade{playerRoom: "cellar"}
	node := &scriptflow.Node{ID: "n", Props: map[string]any{"roomId": "cellar"}}

	on, err := triggerOnEnterRoom(context.Background(), newCall(node, f, nil, 0))
	if err != nil || !on {
		t.Errorf("OnEnterRoom in room = %v, %v, want true", on, err)
	}

	elsewhere := &scriptflow.Node{ID: "n2", Props: map[string]any{"roomId": "attic"}}
	on, err = triggerOnEnterRoom(context.Background(), newCall(elsewhere, f, nil, 0))
	if err != nil || on {
		t.Errorf("OnEnterRoom elsewhere = %v, %v, want false", on, err)
	}
}

func TestTriggerOnPlate(t *testing.T) {
	f := &recordingFacade{activePlates: map[string]bool{"plate-1": true}}
	node := &scriptflow.Node{ID: "n", Props: map[string]any{"plateId": "plate-1"}}

	on, err := triggerOnPlate(context.Background(), newCall(node, f, nil, 0))
	if err != nil || !on {
		t.Errorf("OnPlate = %v, %v, want true", on, err)
	}
}

func TestTriggerOnTimer(t *testing.T) {
	st := scriptflow.NewState()
	st.SetTimer("bomb", 5*time.Second)
	node := &scriptflow.Node{ID: "n", Props: map[string]any{"timerId": "bomb"}}

	on, err := triggerOnTimer(context.Background(), newCall(node, &recordingFacade{}, st, 4*time.Second))
	if err != nil || on {
		t.Errorf("OnTimer before expiry = %v, %v, want false", on, err)
	}

	on, err = triggerOnTimer(context.Background(), newCall(node, &recordingFacade{}, st, 5*time.Second))
	if err != nil || !on {
		t.Errorf("OnTimer at expiry = %v, %v, want true", on, err)
	}

	// Once the tick driver retires the timer, the trigger never fires again.
	st.RetireTimers(5 * time.Second)
	on, err = triggerOnTimer(context.Background(), newCall(node, &recordingFacade{}, st, 6*time.Second))
	if err != nil || on {
		t.Errorf("OnTimer after retirement = %v, %v, want false", on, err)
	}
}

func TestTriggerOnFlag(t *testing.T) {
	st := scriptflow.NewState()
	node := &scriptflow.Node{ID: "n", Props: map[string]any{"flagId": "signal"}}

	on, err := triggerOnFlag(context.Background(), newCall(node, &recordingFacade{}, st, 0))
	if err != nil || on {
		t.Errorf("OnFlag unset = %v, %v, want false", on, err)
	}

	st.SetFlag("signal", true)
	on, err = triggerOnFlag(context.Background(), newCall(node, &recordingFacade{}, st, 0))
	if err != nil || !on {
		t.Errorf("OnFlag set = %v, %v, want true", on, err)
	}
}

func TestTriggerOnCollision(t *testing.T) {
	f := &entityFacade{collides: map[string][]string{"player": {"spikes", "water"}}}
	node := &scriptflow.Node{ID: "n", Props: map[string]any{"entityId": "player", "tag": "water"}}

	on, err := triggerOnCollision(context.Background(), newCall(node, f, nil, 0))
	if err != nil || !on {
		t.Errorf("OnCollision matching tag = %v, %v, want true", on, err)
	}

	other := &scriptflow.Node{ID: "n2", Props: map[string]any{"entityId": "player", "tag": "lava"}}
	on, err = triggerOnCollision(context.Background(), newCall(other, f, nil, 0))
	if err != nil || on {
		t.Errorf("OnCollision other tag = %v, %v, want false", on, err)
	}
}

func TestTriggerOnKeyPress(t *testing.T) {
	f := &entityFacade{pressed: map[string]bool{"interact": true}}
	node := &scriptflow.Node{ID: "n", Props: map[string]any{"key": "interact"}}

	on, err := triggerOnKeyPress(context.Background(), newCall(node, f, nil, 0))
	if err != nil || !on {
		t.Errorf("OnKeyPress = %v, %v, want true", on, err)
	}
}

func TestTriggerOnSchedule(t *testing.T) {
	node := &scriptflow.Node{ID: "n", Props: map[string]any{"schedule": "0 12 * * *"}}
	st := scriptflow.NewState()

	mkCall := func(prev, wall time.Time) *scriptflow.Call {
		c := newCall(node, &recordingFacade{}, st, 0)
		c.PrevWall = prev
		c.Wall = wall
		return c
	}

	noon := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Interval straddling the boundary fires.
	on, err := triggerOnSchedule(context.Background(), mkCall(noon.Add(-time.Minute), noon.Add(time.Second)))
	if err != nil || !on {
		t.Errorf("OnSchedule across boundary = %v, %v, want true", on, err)
	}

	// Interval entirely before the boundary does not.
	on, err = triggerOnSchedule(context.Background(), mkCall(noon.Add(-2*time.Minute), noon.Add(-time.Minute)))
	if err != nil || on {
		t.Errorf("OnSchedule before boundary = %v, %v, want false", on, err)
	}

	// First tick has no interval yet.
	on, err = triggerOnSchedule(context.Background(), mkCall(time.Time{}, noon))
	if err != nil || on {
		t.Errorf("OnSchedule first tick = %v, %v, want false", on, err)
	}
}

func TestTriggerOnSchedule_Invalid(t *testing.T) {
	st := scriptflow.NewState()

	missing := &scriptflow.Node{ID: "n", Props: map[string]any{}}
	call := newCall(missing, &recordingFacade{}, st, 0)
	call.PrevWall = time.Now().Add(-time.Second)
	call.Wall = time.Now()
	if _, err := triggerOnSchedule(context.Background(), call); err == nil {
		t.Error("OnSchedule without schedule prop should error")
	}

	bad := &scriptflow.Node{ID: "n2", Props: map[string]any{"schedule": "not a cron"}}
	call = newCall(bad, &recordingFacade{}, st, 0)
	call.PrevWall = time.Now().Add(-time.Second)
	call.Wall = time.Now()
	if _, err := triggerOnSchedule(context.Background(), call); err == nil {
		t.Error("OnSchedule with bad expression should error")
	}
}
