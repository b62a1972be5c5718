package instrument

import (
	"context"
	"errors"
	"testing"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

type fakeExecutor struct {
	execs     []intent.Step
	commitErr error
	aborted   bool
}

func (f *fakeExecutor) Exec(_ context.Context, step intent.Step, _ api.Params) (decode.Rows, error) {
	f.execs = append(f.execs, step)
	if step == intent.G1aRead {
		return decode.Rows{{intent.KeyPVersion: int64(1)}}, nil
	}
	return nil, &api.Error{Kind: api.ErrQuery, Step: string(step), Err: errors.New("rejected")}
}

func (f *fakeExecutor) Commit(context.Context) error { return f.commitErr }

func (f *fakeExecutor) Abort(context.Context) error {
	f.aborted = true
	return nil
}

type fakeBackend struct {
	tx     *fakeExecutor
	resets int
	closed bool
}

func (f *fakeBackend) Name() string { return "fake" }
func (f *fakeBackend) Begin(context.Context) (txn.Executor, error) { return f.tx, nil }

func (f *fakeBackend) Reset(context.Context) error {
	f.resets++
	return nil
}

func (f *fakeBackend) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestWrapPassesThrough(t *testing.T) {
	inner := &fakeBackend{tx: &fakeExecutor{commitErr: &api.Error{Kind: api.ErrCommit, Err: errors.New("conflict")}}}
	b := Wrap(inner, nil)
	ctx := context.Background()
	if b.Name() != "fake" {
		t.Fatalf("unexpected name %q", b.Name())
	}
	if err := b.Reset(ctx); err != nil || inner.resets != 1 {
		t.Fatalf("reset not forwarded: %v", err)
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	rows, err := tx.Exec(ctx, intent.G1aRead, nil)
	if err != nil || len(rows) != 1 {
		t.Fatalf("exec read: %v %v", rows, err)
	}
	if _, err := tx.Exec(ctx, intent.G1aWrite, nil); !errors.Is(err, api.ErrQuery) {
		t.Fatalf("expected query error, got %v", err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, api.ErrCommit) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if err := tx.Abort(ctx); err != nil || !inner.tx.aborted {
		t.Fatalf("abort not forwarded: %v", err)
	}
	if err := b.Close(ctx); err != nil || !inner.closed {
		t.Fatalf("close not forwarded: %v", err)
	}
	if len(inner.tx.execs) != 2 {
		t.Fatalf("expected 2 execs, got %v", inner.tx.execs)
	}
}
