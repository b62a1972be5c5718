package sqlgraph

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/catalog"
	"pkt.systems/isocheck/internal/intent"
)

func newSQLiteCatalog(t *testing.T, opts ...catalog.Option) *catalog.Catalog {
	t.Helper()
	ctx := context.Background()
	backend, err := New(ctx, Config{
		Dialect: SQLite(),
		DSN:     SQLiteDSN(filepath.Join(t.TempDir(), "graph.db")),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close(context.Background()) })
	c := catalog.New(backend, opts...)
	if err := c.NukeDatabase(ctx); err != nil {
		t.Fatalf("nuke: %v", err)
	}
	return c
}

func run(t *testing.T, c *catalog.Catalog, op string, p api.Params) api.Result {
	t.Helper()
	res, err := c.Run(context.Background(), op, p)
	if err != nil {
		t.Fatalf("%s: %v", op, err)
	}
	return res
}

func TestSQLiteG0AppendsToEveryHistory(t *testing.T) {
	c := newSQLiteCatalog(t)
	run(t, c, catalog.OpG0Init, nil)
	p := api.Params{api.ParamPerson1ID: 1, api.ParamPerson2ID: 2}
	run(t, c, catalog.OpG0, p.With(api.ParamTransactionID, "t1"))
	run(t, c, catalog.OpG0, p.With(api.ParamTransactionID, 2))

	res := run(t, c, catalog.OpG0Check, p)
	want := []any{int64(0), "t1", int64(2)}
	for _, key := range []string{api.ResultP1VersionHistory, api.ResultKVersionHistory, api.ResultP2VersionHistory} {
		if !reflect.DeepEqual(res[key], want) {
			t.Fatalf("%s: expected %v, got %#v", key, want, res[key])
		}
	}
}

func TestSQLiteG1aReaderNeverSeesAbortedWrite(t *testing.T) {
	inWindow := make(chan struct{})
	release := make(chan struct{})
	var pauses atomic.Int32
	sleeper := func(ctx context.Context, _ time.Duration) error {
		if pauses.Add(1) == 2 {
			close(inWindow)
			select {
			case <-release:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	c := newSQLiteCatalog(t, catalog.WithSleeper(sleeper))
	run(t, c, catalog.OpG1aInit, nil)

	p := api.Params{api.ParamPersonID: 1, api.ParamSleepTime: 1}
	done := make(chan error, 1)
	go func() {
		_, err := c.G1a1(context.Background(), p)
		done <- err
	}()
	<-inWindow
	res := run(t, c, catalog.OpG1a2, p)
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("g1a1: %v", err)
	}
	if v, _ := res.Int(api.ResultPVersion); v != 1 {
		t.Fatalf("reader saw uncommitted version %d", v)
	}
	if v, _ := run(t, c, catalog.OpG1a2, p).Int(api.ResultPVersion); v != 1 {
		t.Fatalf("aborted write persisted: version %d", v)
	}
}

func TestSQLiteAtomicity(t *testing.T) {
	c := newSQLiteCatalog(t)
	run(t, c, catalog.OpAtomicityInit, nil)
	check := func(persons, names, emails int64) {
		t.Helper()
		res := run(t, c, catalog.OpAtomicityCheck, nil)
		got := []any{res[api.ResultNumPersons], res[api.ResultNumNames], res[api.ResultNumEmails]}
		if want := []any{persons, names, emails}; !reflect.DeepEqual(got, want) {
			t.Fatalf("expected persons/names/emails %v, got %v", want, got)
		}
	}
	check(2, 2, 3)

	run(t, c, catalog.OpAtomicityC, api.Params{
		api.ParamPerson1ID: 1, api.ParamPerson2ID: 3, api.ParamNewEmail: "alice@example.com", api.ParamSince: 2020,
	})
	check(3, 2, 4)

	run(t, c, catalog.OpAtomicityRB, api.Params{api.ParamPerson1ID: 1, api.ParamPerson2ID: 3, api.ParamNewEmail: "rolled@back"})
	check(3, 2, 4)

	run(t, c, catalog.OpAtomicityRB, api.Params{api.ParamPerson1ID: 1, api.ParamPerson2ID: 4, api.ParamNewEmail: "kept@example.com"})
	check(4, 2, 5)
}

func TestSQLiteDirtyWritesAndReads(t *testing.T) {
	c := newSQLiteCatalog(t)
	run(t, c, catalog.OpG1bInit, nil)
	run(t, c, catalog.OpG1b1, api.Params{api.ParamPersonID: 1, api.ParamEven: 4, api.ParamOdd: 5})
	if v, _ := run(t, c, catalog.OpG1b2, api.Params{api.ParamPersonID: 1}).Int(api.ResultPVersion); v != 5 {
		t.Fatalf("expected final odd version 5, got %d", v)
	}

	c = newSQLiteCatalog(t)
	run(t, c, catalog.OpG1cInit, nil)
	res := run(t, c, catalog.OpG1c, api.Params{api.ParamPerson1ID: 1, api.ParamPerson2ID: 2, api.ParamTransactionID: 7})
	if v, ok := res.Int(api.ResultPerson2Version); !ok || v != 0 {
		t.Fatalf("expected person2Version 0, got %v", res)
	}
	res = run(t, c, catalog.OpG1c, api.Params{api.ParamPerson1ID: 2, api.ParamPerson2ID: 1, api.ParamTransactionID: 8})
	if v, _ := res.Int(api.ResultPerson2Version); v != 7 {
		t.Fatalf("expected committed version 7, got %d", v)
	}
}

func TestSQLiteRereads(t *testing.T) {
	c := newSQLiteCatalog(t)
	run(t, c, catalog.OpIMPInit, nil)
	run(t, c, catalog.OpIMP1, api.Params{api.ParamPersonID: 1})
	res := run(t, c, catalog.OpIMP2, api.Params{api.ParamPersonID: 1})
	if res[api.ResultFirstRead] != int64(2) || res[api.ResultSecondRead] != int64(2) {
		t.Fatalf("unexpected imp2 %v", res)
	}

	c = newSQLiteCatalog(t)
	run(t, c, catalog.OpPMPInit, nil)
	res = run(t, c, catalog.OpPMP2, api.Params{api.ParamPostID: 1})
	if res[api.ResultFirstRead] != int64(0) {
		t.Fatalf("expected no likes, got %v", res)
	}
	run(t, c, catalog.OpPMP1, api.Params{api.ParamPersonID: 1, api.ParamPostID: 1})
	res = run(t, c, catalog.OpPMP2, api.Params{api.ParamPostID: 1})
	if res[api.ResultFirstRead] != int64(1) || res[api.ResultSecondRead] != int64(1) {
		t.Fatalf("unexpected pmp2 %v", res)
	}
}

func TestSQLiteCycles(t *testing.T) {
	c := newSQLiteCatalog(t, catalog.WithOTVRounds(5))
	run(t, c, catalog.OpOTVInit, nil)
	run(t, c, catalog.OpOTV1, api.Params{api.ParamCycleSize: intent.CycleLength})
	res := run(t, c, catalog.OpOTV2, api.Params{api.ParamPersonID: 2})
	want := []any{int64(5), int64(5), int64(5), int64(5)}
	if !reflect.DeepEqual(res[api.ResultFirstRead], want) || !reflect.DeepEqual(res[api.ResultSecondRead], want) {
		t.Fatalf("unexpected otv2 %v", res)
	}

	c = newSQLiteCatalog(t)
	run(t, c, catalog.OpFRInit, nil)
	run(t, c, catalog.OpFR1, api.Params{api.ParamPersonID: 1})
	run(t, c, catalog.OpFR1, api.Params{api.ParamPersonID: 3})
	res = run(t, c, catalog.OpFR2, api.Params{api.ParamPersonID: 1})
	want = []any{int64(2), int64(2), int64(2), int64(2)}
	if !reflect.DeepEqual(res[api.ResultFirstRead], want) {
		t.Fatalf("unexpected fr2 %v", res)
	}
}

func TestSQLiteConcurrentLostUpdates(t *testing.T) {
	c := newSQLiteCatalog(t)
	run(t, c, catalog.OpLUInit, nil)

	const writers = 8
	var committed atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < writers; i++ {
		p := api.Params{api.ParamPersonID: 1, api.ParamPerson2ID: 100 + i}
		g.Go(func() error {
			_, err := c.LU1(ctx, p)
			switch {
			case err == nil:
				committed.Add(1)
				return nil
			case api.Rejected(err):
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("lu1: %v", err)
	}
	res := run(t, c, catalog.OpLU2, api.Params{api.ParamPersonID: 1})
	edges, _ := res.Int(api.ResultNumKnowsEdges)
	prop, _ := res.Int(api.ResultNumFriendsProp)
	if edges != prop || edges != committed.Load() || edges > writers {
		t.Fatalf("edges=%d prop=%d committed=%d", edges, prop, committed.Load())
	}
}

func TestSQLiteWriteSkew(t *testing.T) {
	c := newSQLiteCatalog(t)
	run(t, c, catalog.OpWSInit, nil)
	run(t, c, catalog.OpWS1, api.Params{api.ParamForumID: 1, api.ParamPersonID: 1})
	run(t, c, catalog.OpWS1, api.Params{api.ParamForumID: 1, api.ParamPersonID: 2})
	if res := run(t, c, catalog.OpWS2, nil); len(res) != 0 {
		t.Fatalf("sequential ws1 produced a violation: %v", res)
	}

	ctx := context.Background()
	tx, err := c.Backend().Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, person := range []int{3, 4} {
		if _, err := tx.Exec(ctx, intent.WSAddModerator, api.Params{api.ParamForumID: 2, api.ParamPersonID: person}); err != nil {
			t.Fatalf("add moderator: %v", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	res := run(t, c, catalog.OpWS2, nil)
	if res[api.ResultForumID] != int64(2) || res[api.ResultModCount] != int64(2) {
		t.Fatalf("unexpected ws2 %v", res)
	}
}

func TestSQLiteReadsBeforeInitAreEmpty(t *testing.T) {
	c := newSQLiteCatalog(t)
	_, err := c.Run(context.Background(), catalog.OpG1a2, api.Params{api.ParamPersonID: 1})
	if !errors.Is(err, api.ErrEmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}
}

func TestHandleIsTerminal(t *testing.T) {
	c := newSQLiteCatalog(t)
	ctx := context.Background()
	tx, err := c.Backend().Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Abort(ctx); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, err := tx.Exec(ctx, intent.G1aRead, api.Params{api.ParamPersonID: 1}); !errors.Is(err, api.ErrTxnDone) {
		t.Fatalf("expected txn done, got %v", err)
	}
}
