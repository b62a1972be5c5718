package archive

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"pkt.systems/pslog"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/loggingutil"
	"pkt.systems/isocheck/internal/svcfields"
)

// Recorder writes one record per operation call to a Store.
type Recorder struct {
	store   Store
	backend string
	logger  pslog.Logger
	now     func() time.Time
}

// NewRecorder returns a Recorder for backend. A nil logger discards output.
func NewRecorder(store Store, backend string, logger pslog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		backend: backend,
		logger:  svcfields.WithSubsystem(loggingutil.EnsureLogger(logger), "archive"),
		now:     time.Now,
	}
}

// Store returns the underlying store.
func (r *Recorder) Store() Store { return r.store }

// Record archives one call. started is when the operation began; res and
// callErr are what it returned.
func (r *Recorder) Record(ctx context.Context, op, cid string, started time.Time, p api.Params, res api.Result, callErr error) (Record, error) {
	id, err := NewID()
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:            id,
		Backend:       r.backend,
		Op:            op,
		CorrelationID: cid,
		Params:        map[string]any(p),
		Result:        map[string]any(res),
		Outcome:       OutcomeOf(callErr),
		StartedAt:     started.UTC(),
		ElapsedMS:     r.now().Sub(started).Milliseconds(),
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	doc, err := Encode(rec)
	if err != nil {
		return Record{}, err
	}
	key := Key(rec)
	if err := r.store.Put(ctx, key, doc); err != nil {
		r.logger.Warn("archive.put.error", "key", key, "error", err)
		return Record{}, err
	}
	r.logger.Debug("archive.put", "key", key, "outcome", rec.Outcome, "size", humanize.Bytes(uint64(len(doc))))
	return rec, nil
}

// OutcomeOf labels the result class of a call with the error kind, or "ok".
func OutcomeOf(err error) string {
	return api.KindOf(err)
}

// Load returns every record under prefix in key order.
func Load(ctx context.Context, store Store, prefix string) ([]Record, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(keys))
	for _, key := range keys {
		doc, err := store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		rec, err := Decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
