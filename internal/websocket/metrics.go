package websocket

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type fanoutMetrics struct {
	delivered metric.Int64Counter
	dropped   metric.Int64Counter
	sessions  metric.Int64UpDownCounter
}

func newFanoutMetrics() *fanoutMetrics {
	meter := otel.Meter("benome-realtime/websocket")
	delivered, _ := meter.Int64Counter("realtime_events_delivered_total",
		metric.WithDescription("Frames queued to local connections"))
	dropped, _ := meter.Int64Counter("realtime_events_dropped_total",
		metric.WithDescription("Frames dropped because a connection queue was full or closed"))
	sessions, _ := meter.Int64UpDownCounter("realtime_sessions",
		metric.WithDescription("Open websocket connections on this node"))
	return &fanoutMetrics{delivered: delivered, dropped: dropped, sessions: sessions}
}

// groupKind keeps metric cardinality bounded: "user", "conversation" or "all".
func groupKind(group string) string {
	if group == "" {
		return "all"
	}
	kind, _, _ := strings.Cut(group, ":")
	return kind
}

func (m *fanoutMetrics) record(ctx context.Context, group string, delivered, dropped int) {
	attrs := metric.WithAttributes(attribute.String("group_kind", groupKind(group)))
	if delivered > 0 {
		m.delivered.Add(ctx, int64(delivered), attrs)
	}
	if dropped > 0 {
		m.dropped.Add(ctx, int64(dropped), attrs)
	}
}
