// Package script adds Lua-scriptable node kinds: a "Script" Condition that
// evaluates a Lua chunk to a boolean, and a "RunScript" Action that runs a
// chunk for its side effects. Interpreter state and a small set of facade
// effects are exposed to chunks as global functions.
package script

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/emberforge/scriptflow"
	"github.com/emberforge/scriptflow/registry"
)

const (
	// KindScript is the Condition kind. The chunk comes from the node's
	// "code" property and must return a value; Lua truthiness decides the
	// branch.
	KindScript = "Script"

	// KindRunScript is the Action kind. The chunk comes from the node's
	// "code" property; return values are ignored.
	KindRunScript = "RunScript"
)

// Register adds the Lua node kinds to the given registry.
func Register(r *registry.Registry) {
	r.RegisterCondition(KindScript, EvalCondition)
	r.RegisterAction(KindRunScript, RunAction)
}

// EvalCondition runs the node's "code" chunk and returns its first result
// coerced by Lua truthiness (nil and false are false, everything else true).
func EvalCondition(ctx context.Context, call *scriptflow.Call) (bool, error) {
	code := call.Node.PropString("code", "")
	if code == "" {
		return false, fmt.Errorf("script: node %q has no code property", call.Node.ID)
	}

	l := newLuaState(ctx, call)
	if err := lua.LoadBuffer(l, code, call.Node.ID, ""); err != nil {
		return false, fmt.Errorf("script: load: %w", err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return false, fmt.Errorf("script: run: %w", err)
	}
	result := l.ToBoolean(-1)
	l.Pop(1)
	return result, nil
}

// RunAction runs the node's "code" chunk for its side effects.
func RunAction(ctx context.Context, call *scriptflow.Call) error {
	code := call.Node.PropString("code", "")
	if code == "" {
		return fmt.Errorf("script: node %q has no code property", call.Node.ID)
	}

	l := newLuaState(ctx, call)
	if err := lua.LoadBuffer(l, code, call.Node.ID, ""); err != nil {
		return fmt.Errorf("script: load: %w", err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("script: run: %w", err)
	}
	return nil
}

// newLuaState builds a fresh Lua state for one chunk evaluation. A state is
// never shared between chains, so chunks need no locking discipline beyond
// what State already provides.
func newLuaState(ctx context.Context, call *scriptflow.Call) *lua.State {
	l := lua.NewState()
	lua.OpenLibraries(l)

	l.Register("get_var", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		v, ok := call.State.GetVariable(name)
		if !ok {
			l.PushNil()
			return 1
		}
		pushValue(l, v)
		return 1
	})

	l.Register("set_var", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		call.State.SetVariable(name, toGoValue(l, 2))
		return 0
	})

	l.Register("has_flag", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		l.PushBoolean(call.State.HasFlag(name))
		return 1
	})

	l.Register("set_flag", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		value := true
		if !l.IsNoneOrNil(2) {
			value = l.ToBoolean(2)
		}
		call.State.SetFlag(name, value)
		return 0
	})

	// Timer and clock bindings read the live simulation clock, so scripts
	// running after a suspension see time as it stands now.
	l.Register("timer_active", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		l.PushBoolean(call.State.IsTimerActive(name, call.ClockNow()))
		return 1
	})

	l.Register("set_timer", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		ms := lua.CheckNumber(l, 2)
		call.State.SetTimer(name, call.ClockNow()+time.Duration(ms)*time.Millisecond)
		return 0
	})

	l.Register("clock_ms", func(l *lua.State) int {
		l.PushNumber(float64(call.ClockNow().Milliseconds()))
		return 1
	})

	l.Register("entity", func(l *lua.State) int {
		l.PushString(call.EntityID())
		return 1
	})

	l.Register("position", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		pos, ok := call.State.GetEntityPosition(name)
		if !ok {
			l.PushNil()
			return 1
		}
		l.PushNumber(pos.X)
		l.PushNumber(pos.Y)
		return 2
	})

	l.Register("show_text", func(l *lua.State) int {
		text := lua.CheckString(l, 1)
		ms := lua.OptNumber(l, 2, 0)
		if err := call.Facade.ShowText(ctx, text, time.Duration(ms)*time.Millisecond); err != nil {
			lua.Errorf(l, "show_text: %s", err.Error())
		}
		return 0
	})

	l.Register("open_gate", func(l *lua.State) int {
		gateID := lua.CheckString(l, 1)
		if err := call.Facade.OpenGate(ctx, gateID); err != nil {
			lua.Errorf(l, "open_gate: %s", err.Error())
		}
		return 0
	})

	l.Register("play_sound", func(l *lua.State) int {
		soundID := lua.CheckString(l, 1)
		if ef, ok := call.Facade.(scriptflow.EntityFacade); ok {
			if err := ef.PlaySound(ctx, soundID); err != nil {
				lua.Errorf(l, "play_sound: %s", err.Error())
			}
		}
		return 0
	})

	return l
}

// pushValue pushes a Go value onto the Lua stack. Unsupported types push nil.
func pushValue(l *lua.State, v any) {
	switch x := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(x)
	case string:
		l.PushString(x)
	case int:
		l.PushNumber(float64(x))
	case int64:
		l.PushNumber(float64(x))
	case float64:
		l.PushNumber(x)
	case float32:
		l.PushNumber(float64(x))
	default:
		l.PushNil()
	}
}

// toGoValue converts the Lua value at index to a Go scalar. Whole numbers
// come back as int so round-tripped variables compare cleanly.
func toGoValue(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		if math.Mod(value, 1) == 0 {
			return int(value)
		}
		return value
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	default:
		return nil
	}
}
