// Package otel provides OpenTelemetry integration for scriptflow
// interpreter events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/emberforge/scriptflow/interp"
)

// TracingHandler translates interpreter events into OpenTelemetry spans.
// Each event chain becomes one span; node executions, failures, and skips
// are recorded as span events on the owning chain's span.
type TracingHandler struct {
	tracer trace.Tracer

	mu         sync.RWMutex
	chainSpans map[string]trace.Span // chainID -> span
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from interpreter events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:     tracer,
		chainSpans: make(map[string]trace.Span),
	}
}

// Handle processes an interpreter event and creates or ends spans
// accordingly. It implements interp.EventHandler semantics.
func (h *TracingHandler) Handle(e interp.Event) {
	switch e.Kind {
	case interp.EventChainStarted:
		h.handleChainStarted(e)
	case interp.EventNodeExecuted, interp.EventNodeSkipped:
		h.handleNodeEvent(e)
	case interp.EventNodeFailed:
		h.handleNodeFailed(e)
	case interp.EventChainFinished:
		h.handleChainFinished(e)
	}
}

// handleChainStarted creates a root span for the chain.
func (h *TracingHandler) handleChainStarted(e interp.Event) {
	spanName := "chain:" + e.NodeKind
	if e.NodeKind == "" {
		spanName = "chain:" + e.ChainID
	}

	_, span := h.tracer.Start(context.Background(), spanName,
		trace.WithAttributes(
			attribute.String("scriptflow.run_id", e.RunID),
			attribute.String("scriptflow.chain_id", e.ChainID),
			attribute.String("scriptflow.graph_id", e.GraphID),
			attribute.String("scriptflow.event_node", e.NodeID),
			attribute.Int64("scriptflow.tick", int64(e.Tick)), // #nosec G115
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.chainSpans[e.ChainID] = span
	h.mu.Unlock()
}

// handleNodeEvent adds a span event for a node execution or skip.
func (h *TracingHandler) handleNodeEvent(e interp.Event) {
	h.mu.RLock()
	span, ok := h.chainSpans[e.ChainID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("scriptflow.node_id", e.NodeID),
		attribute.String("scriptflow.node_kind", e.NodeKind),
		attribute.String("scriptflow.category", string(e.Category)),
	}
	if result, found := e.Payload["result"]; found {
		if b, ok := result.(bool); ok {
			attrs = append(attrs, attribute.Bool("scriptflow.result", b))
		}
	}

	span.AddEvent(string(e.Kind), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

// handleNodeFailed records the error on the chain span.
func (h *TracingHandler) handleNodeFailed(e interp.Event) {
	h.mu.RLock()
	span, ok := h.chainSpans[e.ChainID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	errMsg := "unknown error"
	if msg, found := e.Payload["error"]; found {
		if s, ok := msg.(string); ok {
			errMsg = s
		}
	}

	span.SetAttributes(attribute.String("scriptflow.failed_node", e.NodeID))
	span.RecordError(spanError(errMsg), trace.WithTimestamp(e.Time))
	span.SetStatus(codes.Error, errMsg)
}

// handleChainFinished ends the chain span.
func (h *TracingHandler) handleChainFinished(e interp.Event) {
	h.mu.Lock()
	span, ok := h.chainSpans[e.ChainID]
	if ok {
		delete(h.chainSpans, e.ChainID)
	}
	h.mu.Unlock()

	if ok {
		if steps, found := e.Payload["steps"]; found {
			if n, ok := steps.(int); ok {
				span.SetAttributes(attribute.Int("scriptflow.steps", n))
			}
		}
		if !payloadBool(e, "truncated") {
			span.SetStatus(codes.Ok, "")
		}
		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActiveChainSpanContext returns the SpanContext for the active chain span
// identified by chainID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveChainSpanContext(chainID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.chainSpans[chainID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
