package scriptflow

import (
	"testing"
	"time"
)

func TestState_Variables(t *testing.T) {
	s := NewState()

	if _, ok := s.GetVariable("hp"); ok {
		t.Error("GetVariable on empty state should report not set")
	}

	s.SetVariable("hp", 100)
	v, ok := s.GetVariable("hp")
	if !ok || v != 100 {
		t.Errorf("GetVariable(hp) = %v, %v, want 100, true", v, ok)
	}

	s.MergeVariables(map[string]any{"hp": 50, "mana": 20})
	if v, _ := s.GetVariable("hp"); v != 50 {
		t.Errorf("MergeVariables should overwrite, hp = %v", v)
	}
	if v, _ := s.GetVariable("mana"); v != 20 {
		t.Errorf("MergeVariables should add, mana = %v", v)
	}
}

func TestState_Flags(t *testing.T) {
	s := NewState()

	if s.HasFlag("door_open") {
		t.Error("unset flag should read false")
	}

	s.SetFlag("door_open", true)
	if !s.HasFlag("door_open") {
		t.Error("set flag should read true")
	}

	s.SetFlag("door_open", false)
	if s.HasFlag("door_open") {
		t.Error("cleared flag should read false")
	}
}

func TestState_Timers(t *testing.T) {
	s := NewState()
	s.SetTimer("bomb", 5*time.Second)

	if !s.IsTimerActive("bomb", 4*time.Second) {
		t.Error("timer should be active before expiry")
	}
	if s.IsTimerActive("bomb", 5*time.Second) {
		t.Error("timer should not be active at expiry")
	}
	if s.TimerExpired("bomb", 4*time.Second) {
		t.Error("timer should not be expired before expiry")
	}
	if !s.TimerExpired("bomb", 5*time.Second) {
		t.Error("timer should be expired at expiry")
	}
	if s.TimerExpired("missing", 10*time.Second) {
		t.Error("absent timer is never expired")
	}
}

func TestState_SetTimer_Restarts(t *testing.T) {
	s := NewState()
	s.SetTimer("bomb", 2*time.Second)
	s.SetTimer("bomb", 9*time.Second)

	if s.TimerExpired("bomb", 5*time.Second) {
		t.Error("restarted timer should use the new expiry")
	}
	if !s.IsTimerActive("bomb", 5*time.Second) {
		t.Error("restarted timer should still be active")
	}
}

func TestState_RetireTimers(t *testing.T) {
	s := NewState()
	s.SetTimer("a", 1*time.Second)
	s.SetTimer("b", 2*time.Second)
	s.SetTimer("c", 10*time.Second)

	retired := s.RetireTimers(2 * time.Second)
	if len(retired) != 2 {
		t.Fatalf("RetireTimers removed %d, want 2 (%v)", len(retired), retired)
	}

	// Retired timers are gone entirely.
	if s.TimerExpired("a", 3*time.Second) {
		t.Error("retired timer should no longer read expired")
	}
	if !s.IsTimerActive("c", 2*time.Second) {
		t.Error("unexpired timer should survive retirement")
	}
}

func TestState_CompletedEvents(t *testing.T) {
	s := NewState()

	if !s.MarkCompleted("ev-1") {
		t.Error("first MarkCompleted should return true")
	}
	if s.MarkCompleted("ev-1") {
		t.Error("second MarkCompleted should return false")
	}
	if !s.IsCompleted("ev-1") {
		t.Error("IsCompleted should report marked node")
	}

	s.ClearCompleted("ev-1")
	if s.IsCompleted("ev-1") {
		t.Error("ClearCompleted should re-arm the node")
	}
	if !s.MarkCompleted("ev-1") {
		t.Error("MarkCompleted after clear should return true again")
	}
}

func TestState_EntityPositions(t *testing.T) {
	s := NewState()

	if _, ok := s.GetEntityPosition("player"); ok {
		t.Error("unknown entity should have no cached position")
	}

	s.SetEntityPosition("player", 3, -4)
	pos, ok := s.GetEntityPosition("player")
	if !ok || pos.X != 3 || pos.Y != -4 {
		t.Errorf("GetEntityPosition = %+v, %v, want {3 -4}, true", pos, ok)
	}
}

func TestState_Reset(t *testing.T) {
	s := NewState()
	s.SetVariable("hp", 1)
	s.SetFlag("f", true)
	s.SetTimer("t", time.Second)
	s.MarkCompleted("ev")
	s.SetEntityPosition("p", 1, 1)

	s.Reset()

	if _, ok := s.GetVariable("hp"); ok {
		t.Error("Reset should clear variables")
	}
	if s.HasFlag("f") {
		t.Error("Reset should clear flags")
	}
	if s.IsTimerActive("t", 0) {
		t.Error("Reset should clear timers")
	}
	if s.IsCompleted("ev") {
		t.Error("Reset should clear completion marks")
	}
	if _, ok := s.GetEntityPosition("p"); ok {
		t.Error("Reset should clear entity positions")
	}
}
