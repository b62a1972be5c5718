// Package catalog implements the anomaly scenarios once, on top of the
// backend-neutral txn.Backend. Each scenario is a family of operations
// (<name>Init, the racing operations, and the check) that take a parameter
// mapping and return a result mapping; the orchestrator decides whether the
// observed values prove an anomaly.
//
// Operations block until their backend round trips complete. Racing
// operations are made concurrent by calling them from separate goroutines;
// every call begins its own transaction and the catalog holds no lock across
// calls.
package catalog

import (
	"context"
	"math/rand/v2"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/correlation"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/loggingutil"
	"pkt.systems/isocheck/internal/svcfields"
	"pkt.systems/isocheck/internal/txn"
)

// DefaultOTVRounds is the number of increment transactions one otv1 call
// commits.
const DefaultOTVRounds = 100

// Catalog runs scenario operations against one backend.
type Catalog struct {
	backend   txn.Backend
	logger    pslog.Logger
	sleepTime time.Duration
	sleeper   func(ctx context.Context, d time.Duration) error
	pick      func(n int64) int64
	otvRounds int
	metrics   *catalogMetrics
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(logger pslog.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// WithSleepTime sets the race window used when an operation's parameters
// carry no sleepTime. The window only biases interleavings toward exposing
// anomalies; it never makes a scenario correct.
func WithSleepTime(d time.Duration) Option {
	return func(c *Catalog) { c.sleepTime = d }
}

// WithSleeper replaces the context-aware sleep between sub-steps.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Catalog) { c.sleeper = fn }
}

// WithPicker replaces the random source otv1 uses to choose a cycle entry.
// pick(n) must return a value in [0, n) and be safe for concurrent use.
func WithPicker(pick func(n int64) int64) Option {
	return func(c *Catalog) { c.pick = pick }
}

// WithOTVRounds overrides DefaultOTVRounds.
func WithOTVRounds(n int) Option {
	return func(c *Catalog) { c.otvRounds = n }
}

// New returns a catalog bound to backend.
func New(backend txn.Backend, opts ...Option) *Catalog {
	c := &Catalog{
		backend:   backend,
		sleeper:   sleepContext,
		pick:      rand.Int64N,
		otvRounds: DefaultOTVRounds,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = svcfields.WithSubsystem(loggingutil.EnsureLogger(c.logger), "catalog")
	if c.otvRounds <= 0 {
		c.otvRounds = DefaultOTVRounds
	}
	c.metrics = newCatalogMetrics(c.logger)
	return c
}

// Backend returns the backend the catalog runs against.
func (c *Catalog) Backend() txn.Backend { return c.backend }

// NukeDatabase deletes all data and reinstalls the schema. It must run once
// before any scenario's init.
func (c *Catalog) NukeDatabase(ctx context.Context) error {
	_, err := c.observe(ctx, "nukeDatabase", func(ctx context.Context) (api.Result, error) {
		return api.Result{}, c.backend.Reset(ctx)
	})
	return err
}

type outcome int

const (
	commit outcome = iota
	abort
)

// inTxn runs fn inside a fresh transaction. The transaction commits when fn
// returns commit and aborts when fn returns abort or an error.
func (c *Catalog) inTxn(ctx context.Context, fn func(tx txn.Executor) (outcome, error)) error {
	tx, err := c.backend.Begin(ctx)
	if err != nil {
		return err
	}
	out, err := fn(tx)
	if err != nil {
		if abortErr := tx.Abort(ctx); abortErr != nil {
			c.logger.Warn("catalog.txn.abort_after_error", "error", abortErr, "cause", err)
		}
		return err
	}
	if out == abort {
		return tx.Abort(ctx)
	}
	return tx.Commit(ctx)
}

// read runs fn inside a transaction that is always discarded.
func (c *Catalog) read(ctx context.Context, fn func(tx txn.Executor) error) error {
	return c.inTxn(ctx, func(tx txn.Executor) (outcome, error) {
		return abort, fn(tx)
	})
}

// exec runs one write step in its own committed transaction.
func (c *Catalog) exec(ctx context.Context, step intent.Step, p api.Params) error {
	return c.inTxn(ctx, func(tx txn.Executor) (outcome, error) {
		_, err := tx.Exec(ctx, step, p)
		return commit, err
	})
}

// first runs a read step and returns its first row.
func first(ctx context.Context, tx txn.Executor, step intent.Step, p api.Params) (decode.Row, error) {
	rows, err := tx.Exec(ctx, step, p)
	if err != nil {
		return nil, err
	}
	return rows.First(step)
}

// pause waits for the race window of p.
func (c *Catalog) pause(ctx context.Context, p api.Params) error {
	d := c.sleepTime
	if p.Has(api.ParamSleepTime) {
		var err error
		if d, err = p.Duration(api.ParamSleepTime); err != nil {
			return err
		}
	}
	if d <= 0 {
		return nil
	}
	return c.sleeper(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// observe wraps one operation with logging, metrics and error context.
func (c *Catalog) observe(ctx context.Context, op string, fn func(ctx context.Context) (api.Result, error)) (api.Result, error) {
	ctx, cid := correlation.Ensure(ctx)
	logger := c.logger.With("op", op, "cid", cid, "backend", c.backend.Name())
	logger.Trace("catalog.op.begin")
	begin := time.Now()
	res, err := fn(ctx)
	elapsed := time.Since(begin)
	c.metrics.recordOp(ctx, c.backend.Name(), op, err, elapsed)
	if err != nil {
		err = api.WithOp(op, err)
		logger.Debug("catalog.op.error", "kind", api.KindOf(err), "error", err, "elapsed", elapsed)
		return nil, err
	}
	if res == nil {
		res = api.Result{}
	}
	logger.Debug("catalog.op.success", "elapsed", elapsed, "fields", len(res))
	return res, nil
}
