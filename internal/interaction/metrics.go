package interaction

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/tjfontaine/mfea-gateway/internal/interaction"

// Metrics holds the dispatcher's instruments.
type Metrics struct {
	interactions metric.Int64Counter
	followups    metric.Int64Counter
	taskDuration metric.Float64Histogram
	rejected     metric.Int64Counter
}

// NewMetrics registers instruments on meter. A nil meter records nothing.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}

	var (
		m   Metrics
		err error
	)
	if m.interactions, err = meter.Int64Counter("mfea.interactions",
		metric.WithDescription("Inbound interactions by kind and outcome.")); err != nil {
		return nil, err
	}
	if m.followups, err = meter.Int64Counter("mfea.followups",
		metric.WithDescription("Follow-up delivery attempts by result.")); err != nil {
		return nil, err
	}
	if m.taskDuration, err = meter.Float64Histogram("mfea.task.duration",
		metric.WithDescription("Background task wall time."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.rejected, err = meter.Int64Counter("mfea.pool.rejected",
		metric.WithDescription("Commands answered immediately because the worker pool was full or closed.")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) interaction(ctx context.Context, kind, outcome string) {
	m.interactions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) followup(ctx context.Context, command, result string) {
	m.followups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("result", result),
	))
}

func (m *Metrics) task(ctx context.Context, command string, d time.Duration) {
	m.taskDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("command", command)))
}

func (m *Metrics) poolRejected(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
