// Package instrument decorates a txn.Backend with tracing spans, trace/debug
// logging and transaction outcome metrics.
package instrument

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pkt.systems/pslog"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/correlation"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/loggingutil"
	"pkt.systems/isocheck/internal/svcfields"
	"pkt.systems/isocheck/internal/txn"
)

const scope = "pkt.systems/isocheck/adapters"

type backend struct {
	inner   txn.Backend
	logger  pslog.Logger
	tracer  trace.Tracer
	metrics *txnMetrics
}

// Wrap decorates inner. A nil logger disables logging.
func Wrap(inner txn.Backend, logger pslog.Logger) txn.Backend {
	logger = svcfields.WithBackend(svcfields.WithSubsystem(loggingutil.EnsureLogger(logger), "adapter"), inner.Name())
	return &backend{
		inner:   inner,
		logger:  logger,
		tracer:  otel.Tracer(scope),
		metrics: newTxnMetrics(logger),
	}
}

func (b *backend) Name() string { return b.inner.Name() }

// start opens a span for op and returns the logger scoped to the caller's
// correlation id together with a finish func that closes out the span.
func (b *backend) start(ctx context.Context, op string) (context.Context, trace.Span, pslog.Logger, func(error)) {
	ctx, span := b.tracer.Start(ctx, "isocheck.txn."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("isocheck.backend", b.inner.Name()),
		attribute.String("isocheck.txn.operation", op),
	)
	logger := b.logger
	if corr := correlation.ID(ctx); corr != "" {
		logger = logger.With("cid", corr)
		span.SetAttributes(attribute.String("isocheck.correlation_id", corr))
	}
	return ctx, span, logger, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, api.KindOf(err))
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}

func (b *backend) Begin(ctx context.Context) (txn.Executor, error) {
	ctx, span, logger, finish := b.start(ctx, "begin")
	defer span.End()
	tx, err := b.inner.Begin(ctx)
	finish(err)
	if err != nil {
		logger.Debug("txn.begin.error", "error", err)
		b.metrics.recordOutcome(ctx, b.inner.Name(), "begin", err, 0)
		return nil, err
	}
	logger.Trace("txn.begin")
	return &executor{b: b, inner: tx, begin: time.Now()}, nil
}

func (b *backend) Reset(ctx context.Context) error {
	ctx, span, logger, finish := b.start(ctx, "reset")
	defer span.End()
	begin := time.Now()
	logger.Info("txn.reset.begin")
	err := b.inner.Reset(ctx)
	finish(err)
	if err != nil {
		logger.Warn("txn.reset.error", "error", err, "elapsed", time.Since(begin))
		return err
	}
	logger.Info("txn.reset.success", "elapsed", time.Since(begin))
	return nil
}

func (b *backend) Close(ctx context.Context) error {
	err := b.inner.Close(ctx)
	if err != nil {
		b.logger.Warn("txn.close.error", "error", err)
	}
	return err
}

type executor struct {
	b     *backend
	inner txn.Executor
	begin time.Time
	steps int
}

func (e *executor) Exec(ctx context.Context, step intent.Step, params api.Params) (decode.Rows, error) {
	ctx, span, logger, finish := e.b.start(ctx, "exec")
	defer span.End()
	span.SetAttributes(attribute.String("isocheck.step", string(step)))
	e.steps++
	begin := time.Now()
	rows, err := e.inner.Exec(ctx, step, params)
	finish(err)
	if err != nil {
		logger.Debug("txn.exec.error", "step", string(step), "kind", api.KindOf(err), "error", err, "elapsed", time.Since(begin))
		return nil, err
	}
	span.SetAttributes(attribute.Int("isocheck.rows", len(rows)))
	logger.Trace("txn.exec.success", "step", string(step), "rows", len(rows), "elapsed", time.Since(begin))
	return rows, nil
}

func (e *executor) Commit(ctx context.Context) error {
	return e.end(ctx, "commit", e.inner.Commit)
}

func (e *executor) Abort(ctx context.Context) error {
	return e.end(ctx, "abort", e.inner.Abort)
}

func (e *executor) end(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span, logger, finish := e.b.start(ctx, op)
	defer span.End()
	err := fn(ctx)
	finish(err)
	elapsed := time.Since(e.begin)
	e.b.metrics.recordOutcome(ctx, e.b.inner.Name(), op, err, elapsed)
	if err != nil {
		logger.Debug("txn."+op+".error", "kind", api.KindOf(err), "error", err, "steps", e.steps, "elapsed", elapsed)
		return err
	}
	logger.Trace("txn."+op+".success", "steps", e.steps, "elapsed", elapsed)
	return nil
}

type txnMetrics struct {
	outcomes metric.Int64Counter
	duration metric.Int64Histogram
}

func newTxnMetrics(logger pslog.Logger) *txnMetrics {
	meter := otel.Meter(scope)
	m := &txnMetrics{}
	var err error

	m.outcomes, err = meter.Int64Counter(
		"isocheck.txn.outcomes",
		metric.WithDescription("Transactions by terminal call and outcome kind"),
	)
	logMetricInitError(logger, "isocheck.txn.outcomes", err)

	m.duration, err = meter.Int64Histogram(
		"isocheck.txn.duration_ms",
		metric.WithDescription("Time from begin to commit or abort"),
		metric.WithUnit("ms"),
	)
	logMetricInitError(logger, "isocheck.txn.duration_ms", err)
	return m
}

func (m *txnMetrics) recordOutcome(ctx context.Context, backend, end string, err error, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("isocheck.backend", backend),
		attribute.String("isocheck.txn.end", end),
		attribute.String("isocheck.outcome", api.KindOf(err)),
	)
	if m.outcomes != nil {
		m.outcomes.Add(ctx, 1, attrs)
	}
	if m.duration != nil && end != "begin" {
		m.duration.Record(ctx, elapsed.Milliseconds(), attrs)
	}
}

func logMetricInitError(logger pslog.Logger, name string, err error) {
	if err == nil {
		return
	}
	logger.Warn("telemetry.metric.init_failed", "name", name, "error", err)
}
