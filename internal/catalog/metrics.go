package catalog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pkt.systems/isocheck/api"
	"pkt.systems/pslog"
)

type catalogMetrics struct {
	operations metric.Int64Counter
	duration   metric.Int64Histogram
}

func newCatalogMetrics(logger pslog.Logger) *catalogMetrics {
	meter := otel.Meter("pkt.systems/isocheck/catalog")
	m := &catalogMetrics{}
	var err error

	m.operations, err = meter.Int64Counter(
		"isocheck.catalog.operations",
		metric.WithDescription("Scenario operations by outcome kind"),
	)
	logMetricInitError(logger, "isocheck.catalog.operations", err)

	m.duration, err = meter.Int64Histogram(
		"isocheck.catalog.duration_ms",
		metric.WithDescription("Wall time of one scenario operation, race windows included"),
		metric.WithUnit("ms"),
	)
	logMetricInitError(logger, "isocheck.catalog.duration_ms", err)

	return m
}

func (m *catalogMetrics) recordOp(ctx context.Context, backend, op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := metric.WithAttributes(
		attribute.String("isocheck.backend", backend),
		attribute.String("isocheck.op", op),
		attribute.String("isocheck.outcome", api.KindOf(err)),
	)
	if m.operations != nil {
		m.operations.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Milliseconds(), attrs)
	}
}

func logMetricInitError(logger pslog.Logger, name string, err error) {
	if err == nil || logger == nil {
		return
	}
	logger.Warn("telemetry.metric.init_failed", "name", name, "error", err)
}
