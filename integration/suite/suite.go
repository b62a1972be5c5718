// Package scenariosuite runs every catalog scenario against a live backend.
// Assertions cover what any backend at read committed or stronger must
// uphold; anomalies that weaker levels permit are logged, not failed.
package scenariosuite

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"pkt.systems/isocheck"
	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/catalog"
	"pkt.systems/isocheck/internal/intent"
)

// DriverFactory opens a driver on a freshly nuked database.
type DriverFactory func(testing.TB) *isocheck.Driver

// Racers is the number of concurrent invocations per racing operation.
var Racers = 8

const window = 20 * time.Millisecond

// RunAll runs every scenario as a subtest.
func RunAll(t *testing.T, factory DriverFactory) {
	t.Run("Atomicity", func(t *testing.T) { RunAtomicity(t, factory) })
	t.Run("G0", func(t *testing.T) { RunG0(t, factory) })
	t.Run("G1a", func(t *testing.T) { RunG1a(t, factory) })
	t.Run("G1b", func(t *testing.T) { RunG1b(t, factory) })
	t.Run("G1c", func(t *testing.T) { RunG1c(t, factory) })
	t.Run("IMP", func(t *testing.T) { RunIMP(t, factory) })
	t.Run("PMP", func(t *testing.T) { RunPMP(t, factory) })
	t.Run("OTV", func(t *testing.T) { RunOTV(t, factory) })
	t.Run("FR", func(t *testing.T) { RunFR(t, factory) })
	t.Run("LU", func(t *testing.T) { RunLU(t, factory) })
	t.Run("WS", func(t *testing.T) { RunWS(t, factory) })
}

func ctxFor(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

func mustRun(t testing.TB, drv *isocheck.Driver, op string, p api.Params) api.Result {
	t.Helper()
	res, err := drv.Run(ctxFor(t), op, p)
	if err != nil {
		t.Fatalf("%s: %v", op, err)
	}
	return res
}

// racing runs fn n times concurrently. fn errors that are backend
// rejections count as outcomes; anything else fails the test.
func racing(t testing.TB, n int, fn func(i int) error) (committed int64) {
	t.Helper()
	var ok atomic.Int64
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			err := fn(i)
			switch {
			case err == nil:
				ok.Add(1)
				return nil
			case api.Rejected(err):
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("racing operation: %v", err)
	}
	return ok.Load()
}

func ints(t testing.TB, res api.Result, key string) []int64 {
	t.Helper()
	list, ok := res.List(key)
	if !ok {
		t.Fatalf("result %v has no list %q", res, key)
	}
	out := make([]int64, 0, len(list))
	for _, v := range list {
		n, ok := api.AsInt(v)
		if !ok {
			t.Fatalf("%s: non-integer entry %#v", key, v)
		}
		out = append(out, n)
	}
	return out
}

func list(t testing.TB, res api.Result, key string) []any {
	t.Helper()
	out, ok := res.List(key)
	if !ok {
		t.Fatalf("result %v has no list %q", res, key)
	}
	return out
}

func intOf(t testing.TB, res api.Result, key string) int64 {
	t.Helper()
	n, ok := res.Int(key)
	if !ok {
		t.Fatalf("result %v has no integer %q", res, key)
	}
	return n
}

// RunAtomicity checks that committed transactions are fully visible and
// aborted ones leave no trace.
func RunAtomicity(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpAtomicityInit, nil)
	counts := func() [3]int64 {
		res := mustRun(t, drv, catalog.OpAtomicityCheck, nil)
		return [3]int64{intOf(t, res, api.ResultNumPersons), intOf(t, res, api.ResultNumNames), intOf(t, res, api.ResultNumEmails)}
	}
	before := counts()
	mustRun(t, drv, catalog.OpAtomicityC, api.Params{
		api.ParamPerson1ID: 1, api.ParamPerson2ID: 3, api.ParamNewEmail: "carol@example.com", api.ParamSince: 2020,
	})
	afterCommit := counts()
	if want := [3]int64{before[0] + 1, before[1], before[2] + 1}; afterCommit != want {
		t.Fatalf("after commit: got %v want %v", afterCommit, want)
	}
	mustRun(t, drv, catalog.OpAtomicityRB, api.Params{api.ParamPerson1ID: 1, api.ParamPerson2ID: 3, api.ParamNewEmail: "ghost@example.com"})
	if got := counts(); got != afterCommit {
		t.Fatalf("after rollback: got %v want %v", got, afterCommit)
	}
}

// RunG0 races writers appending to the same two persons and edge; the three
// histories must record the same order.
func RunG0(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpG0Init, nil)
	base := api.Params{api.ParamPerson1ID: 1, api.ParamPerson2ID: 2}
	ctx := ctxFor(t)
	committed := racing(t, Racers, func(i int) error {
		var id any = i + 1
		if i%2 == 0 {
			id = fmt.Sprintf("t%d", i+1)
		}
		_, err := drv.Run(ctx, catalog.OpG0, base.With(api.ParamTransactionID, id))
		return err
	})
	res := mustRun(t, drv, catalog.OpG0Check, base)
	p1 := list(t, res, api.ResultP1VersionHistory)
	k := list(t, res, api.ResultKVersionHistory)
	p2 := list(t, res, api.ResultP2VersionHistory)
	if len(p1) == 0 || p1[0] != int64(0) {
		t.Fatalf("history must start with the seeded 0, got %#v", p1)
	}
	if int64(len(p1)) != committed+1 {
		t.Fatalf("expected %d history entries, got %v", committed+1, p1)
	}
	if fmt.Sprint(p1) != fmt.Sprint(k) || fmt.Sprint(p1) != fmt.Sprint(p2) {
		t.Fatalf("G0 write cycle: p1=%v k=%v p2=%v", p1, k, p2)
	}
}

// RunG1a checks readers never observe a write that was aborted.
func RunG1a(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpG1aInit, nil)
	p := api.Params{api.ParamPersonID: 1, api.ParamSleepTime: window}
	ctx := ctxFor(t)
	var dirty atomic.Int64
	racing(t, 2*Racers, func(i int) error {
		if i%2 == 0 {
			_, err := drv.Run(ctx, catalog.OpG1a1, p)
			return err
		}
		res, err := drv.Run(ctx, catalog.OpG1a2, p)
		if err == nil {
			if v, _ := res.Int(api.ResultPVersion); v != 1 {
				dirty.Add(1)
			}
		}
		return err
	})
	if n := dirty.Load(); n > 0 {
		t.Fatalf("G1a: %d reads observed an aborted write", n)
	}
}

// RunG1b checks readers never observe an intermediate value.
func RunG1b(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpG1bInit, nil)
	p := api.Params{api.ParamPersonID: 1, api.ParamEven: 2, api.ParamOdd: 3, api.ParamSleepTime: window}
	ctx := ctxFor(t)
	var intermediate atomic.Int64
	racing(t, 2*Racers, func(i int) error {
		if i%2 == 0 {
			_, err := drv.Run(ctx, catalog.OpG1b1, p)
			return err
		}
		res, err := drv.Run(ctx, catalog.OpG1b2, p)
		if err == nil {
			if v, _ := res.Int(api.ResultPVersion); v%2 == 0 {
				intermediate.Add(1)
			}
		}
		return err
	})
	if n := intermediate.Load(); n > 0 {
		t.Fatalf("G1b: %d reads observed an intermediate write", n)
	}
}

// RunG1c races two transactions that each write one person and read the
// other; both reading the other's write is circular information flow.
func RunG1c(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpG1cInit, nil)
	ctx := ctxFor(t)
	var seen [2]atomic.Int64
	racing(t, 2, func(i int) error {
		self, other := int64(i+1), int64(2-i)
		res, err := drv.Run(ctx, catalog.OpG1c, api.Params{
			api.ParamPerson1ID: self, api.ParamPerson2ID: other, api.ParamTransactionID: 100 + self,
		})
		if err == nil {
			if v, ok := res.Int(api.ResultPerson2Version); ok {
				seen[i].Store(v)
			}
		}
		return err
	})
	if seen[0].Load() == 102 && seen[1].Load() == 101 {
		t.Fatalf("G1c: each transaction read the other's write")
	}
}

// RunIMP logs whether a concurrent increment was visible between two reads.
func RunIMP(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpIMPInit, nil)
	ctx := ctxFor(t)
	var res api.Result
	racing(t, Racers+1, func(i int) error {
		if i == 0 {
			var err error
			res, err = drv.Run(ctx, catalog.OpIMP2, api.Params{api.ParamPersonID: 1, api.ParamSleepTime: 10 * window})
			return err
		}
		_, err := drv.Run(ctx, catalog.OpIMP1, api.Params{api.ParamPersonID: 1})
		return err
	})
	if res != nil {
		first, second := intOf(t, res, api.ResultFirstRead), intOf(t, res, api.ResultSecondRead)
		t.Logf("IMP reads: first=%d second=%d anomaly=%v", first, second, first != second)
	}
}

// RunPMP logs whether a concurrent like became visible between two counts.
func RunPMP(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpPMPInit, nil)
	ctx := ctxFor(t)
	var res api.Result
	racing(t, 2, func(i int) error {
		if i == 0 {
			var err error
			res, err = drv.Run(ctx, catalog.OpPMP2, api.Params{api.ParamPostID: 1, api.ParamSleepTime: 10 * window})
			return err
		}
		_, err := drv.Run(ctx, catalog.OpPMP1, api.Params{api.ParamPersonID: 1, api.ParamPostID: 1})
		return err
	})
	if res != nil {
		first, second := intOf(t, res, api.ResultFirstRead), intOf(t, res, api.ResultSecondRead)
		t.Logf("PMP counts: first=%d second=%d anomaly=%v", first, second, first != second)
	}
}

// RunOTV checks each read of the cycle returns four versions and logs
// whether a read mixed versions.
func RunOTV(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpOTVInit, nil)
	ctx := ctxFor(t)
	var res api.Result
	racing(t, 2, func(i int) error {
		if i == 0 {
			_, err := drv.Run(ctx, catalog.OpOTV1, api.Params{api.ParamCycleSize: intent.CycleLength})
			return err
		}
		var err error
		res, err = drv.Run(ctx, catalog.OpOTV2, api.Params{api.ParamPersonID: 1, api.ParamSleepTime: window})
		return err
	})
	if res != nil {
		first, second := ints(t, res, api.ResultFirstRead), ints(t, res, api.ResultSecondRead)
		if len(first) != intent.CycleLength || len(second) != intent.CycleLength {
			t.Fatalf("expected %d versions per read, got %v / %v", intent.CycleLength, first, second)
		}
		t.Logf("OTV reads: first=%v second=%v", first, second)
	}
}

// RunFR checks that a reader racing a cycle increment sees four versions
// per read and logs whether the two reads differed.
func RunFR(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpFRInit, nil)
	ctx := ctxFor(t)
	var res api.Result
	racing(t, 2, func(i int) error {
		if i == 0 {
			_, err := drv.Run(ctx, catalog.OpFR1, api.Params{api.ParamPersonID: 1})
			return err
		}
		var err error
		res, err = drv.Run(ctx, catalog.OpFR2, api.Params{api.ParamPersonID: 1, api.ParamSleepTime: window})
		return err
	})
	if res != nil {
		first, second := ints(t, res, api.ResultFirstRead), ints(t, res, api.ResultSecondRead)
		if len(first) != intent.CycleLength || len(second) != intent.CycleLength {
			t.Fatalf("expected %d versions per read, got %v / %v", intent.CycleLength, first, second)
		}
		t.Logf("FR reads: first=%v second=%v", first, second)
	}
}

// RunLU checks that no increment was lost: the counter equals the edge
// count and neither exceeds the committed calls.
func RunLU(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpLUInit, nil)
	ctx := ctxFor(t)
	committed := racing(t, Racers, func(i int) error {
		_, err := drv.Run(ctx, catalog.OpLU1, api.Params{api.ParamPersonID: 1, api.ParamPerson2ID: 1000 + i})
		return err
	})
	res := mustRun(t, drv, catalog.OpLU2, api.Params{api.ParamPersonID: 1})
	edges, prop := intOf(t, res, api.ResultNumKnowsEdges), intOf(t, res, api.ResultNumFriendsProp)
	if edges != prop || prop > committed {
		t.Fatalf("LU: edges=%d numFriends=%d committed=%d", edges, prop, committed)
	}
}

// RunWS races moderator assignments on one forum and logs any forum that
// ended up with two moderators.
func RunWS(t *testing.T, factory DriverFactory) {
	drv := factory(t)
	mustRun(t, drv, catalog.OpWSInit, nil)
	ctx := ctxFor(t)
	racing(t, 2, func(i int) error {
		_, err := drv.Run(ctx, catalog.OpWS1, api.Params{api.ParamForumID: 1, api.ParamPersonID: i + 1, api.ParamSleepTime: window})
		return err
	})
	res := mustRun(t, drv, catalog.OpWS2, nil)
	if len(res) == 0 {
		t.Logf("WS: no forum with more than one moderator")
		return
	}
	t.Logf("WS: write skew on forum %d with %d moderators", intOf(t, res, api.ResultForumID), intOf(t, res, api.ResultModCount))
}

// Open returns a DriverFactory for cfg that nukes the database before each
// scenario and closes the driver when the test ends.
func Open(cfg isocheck.Config) DriverFactory {
	return func(tb testing.TB) *isocheck.Driver {
		tb.Helper()
		drv, err := isocheck.Open(ctxFor(tb), cfg)
		if err != nil {
			tb.Fatalf("open %s: %v", cfg.Backend, err)
		}
		tb.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = drv.Close(ctx)
		})
		if err := drv.NukeDatabase(ctxFor(tb)); err != nil {
			tb.Fatalf("nuke %s: %v", cfg.Backend, err)
		}
		return drv
	}
}
