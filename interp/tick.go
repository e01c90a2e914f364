package interp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emberforge/scriptflow"
)

// Tick advances the simulation by delta. It re-evaluates every Event node
// in every loaded graph in load/declaration order, runs each fired chain
// up to its first suspension before moving on (so a setFlag early in one
// graph is seen by triggers later in the same tick), and finally retires
// expired timers - after event evaluation, so an OnTimer trigger observes
// expiry during the tick the timer lapses and never again.
//
// Tick never panics and never returns an error: trigger and handler
// failures are logged and contained so the host loop keeps running. Ticks
// on a stopped interpreter are no-ops.
func (i *Interpreter) Tick(ctx context.Context, delta time.Duration) {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return
	}
	if delta < 0 {
		delta = 0
	}
	i.clock += delta
	i.tick++
	tick := i.tick
	clock := i.clock
	wall := i.now()
	prevWall := i.lastWall
	i.lastWall = wall
	graphs := i.orderedGraphsLocked()
	i.mu.Unlock()

	e := NewEvent(EventTickStarted, i.id).WithPayload("delta_ms", delta.Milliseconds())
	e.Tick, e.Clock, e.Time = tick, clock, wall
	i.emit(e)

	fired := 0
	for _, g := range graphs {
		for _, node := range g.EventNodes() {
			if i.state.IsCompleted(node.ID) {
				continue
			}
			handler, ok := i.registry.Lookup(scriptflow.CategoryEvent, node.Kind)
			if !ok || handler.Trigger == nil {
				i.missingHandler(scriptflow.CategoryEvent, node.Kind, node.ID)
				continue
			}

			call := &scriptflow.Call{
				State:    i.state,
				Facade:   i.facade,
				Graph:    g,
				Node:     node,
				Entity:   node.PropString("entityId", ""),
				Clock:    clock,
				Wall:     wall,
				PrevWall: prevWall,
				Logger:   i.logger,
			}
			on, err := callTrigger(ctx, handler.Trigger, call)
			if err != nil {
				i.logger.Error("trigger evaluation failed",
					slog.String("graph", g.ID),
					slog.String("node", node.ID),
					slog.String("kind", node.Kind),
					slog.Any("error", err))
				continue
			}
			if !on {
				continue
			}
			// Mark before launching so the chain never refires, even if
			// it suspends across many ticks.
			if !i.state.MarkCompleted(node.ID) {
				continue
			}
			fired++

			te := NewEvent(EventTriggerFired, i.id).WithNode(node)
			te.GraphID, te.Tick, te.Clock, te.Time = g.ID, tick, clock, wall
			i.emit(te)

			i.launchChain(ctx, g, node, tick, clock, wall, prevWall)
		}
	}

	for _, timerID := range i.state.RetireTimers(clock) {
		te := NewEvent(EventTimerExpired, i.id).WithPayload("timer", timerID)
		te.Tick, te.Clock, te.Time = tick, clock, wall
		i.emit(te)
	}

	fe := NewEvent(EventTickFinished, i.id).WithPayload("fired", fired)
	fe.Tick, fe.Clock, fe.Time = tick, clock, wall
	i.emit(fe)
}

// callTrigger evaluates a trigger predicate, converting a panic into an
// error so one bad handler cannot take down the tick driver.
func callTrigger(ctx context.Context, fn scriptflow.TriggerFunc, call *scriptflow.Call) (on bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			on, err = false, fmt.Errorf("trigger panic: %v", r)
		}
	}()
	return fn(ctx, call)
}
