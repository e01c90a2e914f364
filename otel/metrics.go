package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/emberforge/scriptflow/interp"
)

// MetricsHandler translates interpreter events into OpenTelemetry metrics.
// It records counters and histograms for trigger fires, node executions,
// failures, and chain lengths.
type MetricsHandler struct {
	triggerFires    metric.Int64Counter
	nodeExecutions  metric.Int64Counter
	nodeFailures    metric.Int64Counter
	timerExpiries   metric.Int64Counter
	chainExecutions metric.Int64Counter
	chainSteps      metric.Int64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording interpreter metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	triggerFires, err := meter.Int64Counter("scriptflow.trigger.fires",
		metric.WithDescription("Number of event-node trigger fires"),
	)
	if err != nil {
		return nil, err
	}

	nodeExec, err := meter.Int64Counter("scriptflow.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeFail, err := meter.Int64Counter("scriptflow.node.failures",
		metric.WithDescription("Number of node failures"),
	)
	if err != nil {
		return nil, err
	}

	timerExp, err := meter.Int64Counter("scriptflow.timer.expiries",
		metric.WithDescription("Number of countdown timer expiries"),
	)
	if err != nil {
		return nil, err
	}

	chainExec, err := meter.Int64Counter("scriptflow.chain.executions",
		metric.WithDescription("Number of event chains run"),
	)
	if err != nil {
		return nil, err
	}

	chainSteps, err := meter.Int64Histogram("scriptflow.chain.steps",
		metric.WithDescription("Nodes visited per event chain"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		triggerFires:    triggerFires,
		nodeExecutions:  nodeExec,
		nodeFailures:    nodeFail,
		timerExpiries:   timerExp,
		chainExecutions: chainExec,
		chainSteps:      chainSteps,
	}, nil
}

// Handle processes an interpreter event and records the appropriate metrics.
// It implements interp.EventHandler semantics.
func (h *MetricsHandler) Handle(e interp.Event) {
	switch e.Kind {
	case interp.EventTriggerFired:
		h.handleTriggerFired(e)
	case interp.EventNodeExecuted:
		h.handleNodeExecuted(e)
	case interp.EventNodeFailed:
		h.handleNodeFailed(e)
	case interp.EventTimerExpired:
		h.handleTimerExpired(e)
	case interp.EventChainFinished:
		h.handleChainFinished(e)
	}
}

func (h *MetricsHandler) handleTriggerFired(e interp.Event) {
	h.triggerFires.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("node_kind", e.NodeKind),
		attribute.String("graph_id", e.GraphID),
	))
}

func (h *MetricsHandler) handleNodeExecuted(e interp.Event) {
	h.nodeExecutions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("node_kind", e.NodeKind),
		attribute.String("category", string(e.Category)),
	))
}

func (h *MetricsHandler) handleNodeFailed(e interp.Event) {
	h.nodeFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("node_kind", e.NodeKind),
		attribute.String("node_id", e.NodeID),
	))
}

func (h *MetricsHandler) handleTimerExpired(e interp.Event) {
	h.timerExpiries.Add(context.Background(), 1)
}

// handleChainFinished increments the chain counter and records how many
// nodes the chain visited.
func (h *MetricsHandler) handleChainFinished(e interp.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("graph_id", e.GraphID),
		attribute.Bool("truncated", payloadBool(e, "truncated")),
	)
	h.chainExecutions.Add(ctx, 1, attrs)
	if steps, ok := payloadInt(e, "steps"); ok {
		h.chainSteps.Record(ctx, steps, attrs)
	}
}

func payloadBool(e interp.Event, key string) bool {
	v, ok := e.Payload[key].(bool)
	return ok && v
}

func payloadInt(e interp.Event, key string) (int64, bool) {
	switch v := e.Payload[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}
