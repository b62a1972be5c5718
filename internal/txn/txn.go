// Package txn defines the transaction handle contract every backend adapter
// implements and binds adapter parts into the backend-neutral surface used
// by the scenario catalog.
//
// An adapter supplies three independent parts over its own handle type H,
// request type Q and raw result type R:
//
//   - a Handler[H, Q, R] that opens, runs, commits and aborts transactions,
//   - a Builder[Q] that renders a step and its parameters into a request,
//   - a Decoder[R] that turns a raw result into decode.Rows.
//
// Bind composes them into a Backend. The catalog only ever sees Backend and
// Executor and never branches on which database sits behind them.
package txn

import (
	"context"
	"fmt"
	"sync/atomic"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
)

// Handler is the backend transaction handle contract.
//
// Begin opens a transaction and has no effect on stored data. Run executes one
// request inside h and may be called repeatedly before a terminal call; it
// must observe h's own uncommitted writes where the backend supports that.
// Commit and Abort are terminal. Implementations return errors already
// classified with an api kind where they can tell (connection, query,
// commit); unclassified errors are treated as query errors by Run and commit
// errors by Commit.
type Handler[H, Q, R any] interface {
	Begin(ctx context.Context) (H, error)
	Run(ctx context.Context, h H, q Q) (R, error)
	Commit(ctx context.Context, h H) error
	Abort(ctx context.Context, h H) error
}

// Admin covers the operations outside any scenario transaction.
type Admin interface {
	// Reset deletes all data and installs the schema every scenario needs.
	Reset(ctx context.Context) error
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Builder renders a step into a backend request.
type Builder[Q any] interface {
	Build(step intent.Step, params api.Params) (Q, error)
}

// Decoder turns a backend result into rows.
type Decoder[R any] interface {
	Decode(step intent.Step, raw R) (decode.Rows, error)
}

// BuildFunc renders one step.
type BuildFunc[Q any] func(params api.Params) (Q, error)

// Builders is a step-indexed table of BuildFunc.
type Builders[Q any] map[intent.Step]BuildFunc[Q]

// Build implements Builder.
func (b Builders[Q]) Build(step intent.Step, params api.Params) (Q, error) {
	fn, ok := b[step]
	if !ok {
		var zero Q
		return zero, &api.Error{Kind: api.ErrQuery, Step: string(step), Err: fmt.Errorf("step not supported by backend")}
	}
	q, err := fn(params)
	if err != nil {
		return q, api.Wrap(api.ErrParam, string(step), err)
	}
	return q, nil
}

// DecodeFunc decodes the result of one step.
type DecodeFunc[R any] func(raw R) (decode.Rows, error)

// Decoders is a step-indexed table of DecodeFunc. Steps without an entry are
// writes and decode to no rows.
type Decoders[R any] map[intent.Step]DecodeFunc[R]

// Decode implements Decoder.
func (d Decoders[R]) Decode(step intent.Step, raw R) (decode.Rows, error) {
	fn, ok := d[step]
	if !ok {
		return nil, nil
	}
	rows, err := fn(raw)
	if err != nil {
		return nil, api.Wrap(api.ErrDecode, string(step), err)
	}
	return rows, nil
}

// Executor is an open transaction as the catalog sees it. An Executor must
// not be used from two goroutines at once.
type Executor interface {
	Exec(ctx context.Context, step intent.Step, params api.Params) (decode.Rows, error)
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Backend is a database the catalog can run scenarios against. A Backend is
// safe for concurrent use; every Begin returns an independent Executor.
type Backend interface {
	Name() string
	Begin(ctx context.Context) (Executor, error)
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
}

// Parts are the adapter components composed by Bind.
type Parts[H, Q, R any] struct {
	Name    string
	Handler Handler[H, Q, R]
	Builder Builder[Q]
	Decoder Decoder[R]
	Admin   Admin
}

// Binding is the Backend produced by Bind.
type Binding[H, Q, R any] struct {
	name    string
	handler Handler[H, Q, R]
	builder Builder[Q]
	decoder Decoder[R]
	admin   Admin
}

// Bind composes adapter parts into a Backend.
func Bind[H, Q, R any](parts Parts[H, Q, R]) (*Binding[H, Q, R], error) {
	switch {
	case parts.Name == "":
		return nil, fmt.Errorf("txn: backend name required")
	case parts.Handler == nil:
		return nil, fmt.Errorf("txn: %s: handler required", parts.Name)
	case parts.Builder == nil:
		return nil, fmt.Errorf("txn: %s: builder required", parts.Name)
	case parts.Decoder == nil:
		return nil, fmt.Errorf("txn: %s: decoder required", parts.Name)
	case parts.Admin == nil:
		return nil, fmt.Errorf("txn: %s: admin required", parts.Name)
	}
	return &Binding[H, Q, R]{
		name:    parts.Name,
		handler: parts.Handler,
		builder: parts.Builder,
		decoder: parts.Decoder,
		admin:   parts.Admin,
	}, nil
}

// Name returns the backend name.
func (b *Binding[H, Q, R]) Name() string { return b.name }

// Begin opens a transaction.
func (b *Binding[H, Q, R]) Begin(ctx context.Context) (Executor, error) {
	h, err := b.handler.Begin(ctx)
	if err != nil {
		return nil, api.Wrap(api.ErrConnection, "", err)
	}
	return &handle[H, Q, R]{b: b, h: h}, nil
}

// Reset wipes the database and reinstalls the schema.
func (b *Binding[H, Q, R]) Reset(ctx context.Context) error {
	return api.Wrap(api.ErrQuery, "reset", b.admin.Reset(ctx))
}

// Close releases the backend connection.
func (b *Binding[H, Q, R]) Close(ctx context.Context) error {
	return b.admin.Close(ctx)
}

type handle[H, Q, R any] struct {
	b    *Binding[H, Q, R]
	h    H
	done atomic.Bool
}

func (t *handle[H, Q, R]) Exec(ctx context.Context, step intent.Step, params api.Params) (decode.Rows, error) {
	if t.done.Load() {
		return nil, &api.Error{Kind: api.ErrTxnDone, Step: string(step)}
	}
	q, err := t.b.builder.Build(step, params)
	if err != nil {
		return nil, err
	}
	raw, err := t.b.handler.Run(ctx, t.h, q)
	if err != nil {
		return nil, api.Wrap(api.ErrQuery, string(step), err)
	}
	return t.b.decoder.Decode(step, raw)
}

func (t *handle[H, Q, R]) Commit(ctx context.Context) error {
	if !t.done.CompareAndSwap(false, true) {
		return &api.Error{Kind: api.ErrTxnDone, Step: "commit"}
	}
	return api.Wrap(api.ErrCommit, "commit", t.b.handler.Commit(ctx, t.h))
}

// Abort discards the transaction. The handle is terminal afterwards even when
// the backend reports a failure.
func (t *handle[H, Q, R]) Abort(ctx context.Context) error {
	if !t.done.CompareAndSwap(false, true) {
		return &api.Error{Kind: api.ErrTxnDone, Step: "abort"}
	}
	return api.Wrap(api.ErrConnection, "abort", t.b.handler.Abort(ctx, t.h))
}
