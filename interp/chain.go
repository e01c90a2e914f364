package interp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberforge/scriptflow"
)

// launchChain runs one event-chain invocation on its own goroutine, but
// does not return until the chain has either finished or suspended inside
// a blocking action. That rendezvous keeps per-tick evaluation sequential:
// state writes from a chain's synchronous prefix are visible to every
// trigger and chain evaluated after it in the same tick, in graph
// declaration order. The chain inherits values from the tick context but
// not its cancellation: stopping the interpreter or ending the tick does
// not cancel an in-flight cutscene or Wait.
func (i *Interpreter) launchChain(ctx context.Context, g *scriptflow.Graph, event *scriptflow.Node, tick uint64, clock time.Duration, wall, prevWall time.Time) {
	chainID := uuid.NewString()
	i.chains.Add(1)
	ctx = context.WithoutCancel(ctx)

	released := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(released) }) }

	go func() {
		defer i.chains.Done()
		defer release()
		i.runChain(ctx, g, event, chainID, tick, clock, wall, prevWall, release)
	}()
	<-released
}

// runChain walks outgoing edges from a fired Event node, dispatching each
// visited node by category until no edge remains or a cycle is detected.
// The visited set guarantees each node ID is executed at most once per
// invocation; revisits truncate silently rather than erroring, since
// authoring-time cycle linting is a separate concern.
func (i *Interpreter) runChain(ctx context.Context, g *scriptflow.Graph, event *scriptflow.Node, chainID string, tick uint64, clock time.Duration, wall, prevWall time.Time, release func()) {
	started := NewEvent(EventChainStarted, i.id).WithNode(event)
	started.GraphID, started.ChainID, started.Tick, started.Clock = g.ID, chainID, tick, clock
	i.emit(started)

	entity := event.PropString("entityId", "")
	visited := make(map[string]struct{})
	steps := 0
	truncated := false

	node := event
	for node != nil {
		if _, seen := visited[node.ID]; seen {
			break // cycle guard, not an error
		}
		if i.maxVisits > 0 && len(visited) >= i.maxVisits {
			truncated = true
			break
		}
		visited[node.ID] = struct{}{}

		call := &scriptflow.Call{
			State:    i.state,
			Facade:   i.facade,
			Graph:    g,
			Node:     node,
			Entity:   entity,
			Clock:    clock,
			Now:      i.Clock,
			Release:  release,
			Wall:     wall,
			PrevWall: prevWall,
			Logger:   i.logger,
		}

		port := scriptflow.PortFlow
		switch node.Category {
		case scriptflow.CategoryAction:
			handler, ok := i.registry.Lookup(scriptflow.CategoryAction, node.Kind)
			if !ok || handler.Action == nil {
				// Missing Action handler dead-ends the branch.
				i.missingHandler(scriptflow.CategoryAction, node.Kind, node.ID)
				i.emitChainNode(EventNodeSkipped, g, node, chainID, tick, clock)
				truncated = true
				node = nil
				continue
			}
			// Await completion: actions may block for real-time effects.
			if err := callAction(ctx, handler.Action, call); err != nil {
				i.nodeFailed(g, node, chainID, tick, clock, err)
				truncated = true
				node = nil
				continue
			}
			steps++
			i.emitChainNode(EventNodeExecuted, g, node, chainID, tick, clock)

		case scriptflow.CategoryCondition:
			result := false
			handler, ok := i.registry.Lookup(scriptflow.CategoryCondition, node.Kind)
			switch {
			case !ok || handler.Condition == nil:
				// Missing Condition handler fails closed: route flow_false.
				i.missingHandler(scriptflow.CategoryCondition, node.Kind, node.ID)
				i.emitChainNode(EventNodeSkipped, g, node, chainID, tick, clock)
			default:
				res, err := callCondition(ctx, handler.Condition, call)
				if err != nil {
					i.nodeFailed(g, node, chainID, tick, clock, err)
					truncated = true
					node = nil
					continue
				}
				result = res
				steps++
				e := NewEvent(EventNodeExecuted, i.id).WithNode(node).WithPayload("result", result)
				e.GraphID, e.ChainID, e.Tick, e.Clock = g.ID, chainID, tick, clock
				i.emit(e)
			}
			if result {
				port = scriptflow.PortTrue
			} else {
				port = scriptflow.PortFalse
			}

		case scriptflow.CategoryEvent:
			// An Event node mid-chain passes through to its flow successors.
			steps++
		}

		node = g.NextNode(node, port)
	}

	finished := NewEvent(EventChainFinished, i.id).WithNode(event).
		WithPayload("steps", steps).
		WithPayload("truncated", truncated)
	finished.GraphID, finished.ChainID, finished.Tick, finished.Clock = g.ID, chainID, tick, clock
	i.emit(finished)
}

func (i *Interpreter) emitChainNode(kind EventKind, g *scriptflow.Graph, node *scriptflow.Node, chainID string, tick uint64, clock time.Duration) {
	e := NewEvent(kind, i.id).WithNode(node)
	e.GraphID, e.ChainID, e.Tick, e.Clock = g.ID, chainID, tick, clock
	i.emit(e)
}

// nodeFailed logs and emits a per-node handler failure. The failing branch
// does not continue past the node; sibling branches and other chains are
// unaffected.
func (i *Interpreter) nodeFailed(g *scriptflow.Graph, node *scriptflow.Node, chainID string, tick uint64, clock time.Duration, err error) {
	i.logger.Error("node handler failed",
		slog.String("graph", g.ID),
		slog.String("node", node.ID),
		slog.String("kind", node.Kind),
		slog.Any("error", err))
	e := NewEvent(EventNodeFailed, i.id).WithNode(node).WithPayload("error", err.Error())
	e.GraphID, e.ChainID, e.Tick, e.Clock = g.ID, chainID, tick, clock
	i.emit(e)
}

// callAction invokes an Action handler, converting a panic into an error
// caught at the node boundary.
func callAction(ctx context.Context, fn scriptflow.ActionFunc, call *scriptflow.Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, call)
}

// callCondition invokes a Condition handler, converting a panic into an
// error caught at the node boundary.
func callCondition(ctx context.Context, fn scriptflow.ConditionFunc, call *scriptflow.Call) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = false, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, call)
}
