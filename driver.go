package isocheck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/archive"
	"pkt.systems/isocheck/internal/catalog"
	"pkt.systems/isocheck/internal/correlation"
	"pkt.systems/isocheck/internal/loggingutil"
	"pkt.systems/isocheck/internal/svcfields"
	"pkt.systems/isocheck/internal/txn"
)

// Driver runs the scenario catalog against one backend. The embedded
// Catalog exposes every operation as a method; Run dispatches by name and
// archives the call when an archive is configured.
type Driver struct {
	*catalog.Catalog
	backend  txn.Backend
	store    archive.Store
	recorder *archive.Recorder
	logger   pslog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open validates cfg, connects to the backend and returns a Driver.
func Open(ctx context.Context, cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := openArchive(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return newDriver(backend, store, cfg), nil
}

func newDriver(backend txn.Backend, store archive.Store, cfg Config) *Driver {
	logger := loggingutil.EnsureLogger(cfg.Logger)
	d := &Driver{
		Catalog: catalog.New(backend,
			catalog.WithLogger(logger),
			catalog.WithSleepTime(cfg.SleepTime),
			catalog.WithOTVRounds(cfg.OTVRounds),
		),
		backend: backend,
		store:   store,
		logger:  svcfields.WithBackend(svcfields.WithSubsystem(logger, "driver"), backend.Name()),
	}
	if store != nil {
		d.recorder = archive.NewRecorder(store, backend.Name(), logger)
	}
	return d
}

// Name returns the backend name.
func (d *Driver) Name() string { return d.backend.Name() }

// Operations lists every operation name in catalog order.
func (d *Driver) Operations() []string { return catalog.Operations() }

// Archive returns the trial archive, or nil when archiving is disabled.
func (d *Driver) Archive() archive.Store { return d.store }

// Run invokes the operation called name. Archive failures are logged and do
// not change the returned result.
func (d *Driver) Run(ctx context.Context, name string, p api.Params) (api.Result, error) {
	ctx, cid := correlation.Ensure(ctx)
	started := time.Now()
	res, err := d.Catalog.Run(ctx, name, p)
	if d.recorder != nil {
		if _, recErr := d.recorder.Record(context.WithoutCancel(ctx), name, cid, started, p, res, err); recErr != nil {
			d.logger.Warn("driver.archive.error", "op", name, "cid", cid, "error", recErr)
		}
	}
	return res, err
}

// Close releases the backend and the archive. It is safe to call more than
// once.
func (d *Driver) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		var errs []error
		if err := d.backend.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
		if d.store != nil {
			if err := d.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close archive: %w", err))
			}
		}
		d.closeErr = errors.Join(errs...)
		d.logger.Debug("driver.closed", "error", d.closeErr)
	})
	return d.closeErr
}
