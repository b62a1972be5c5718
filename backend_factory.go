package isocheck

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"pkt.systems/isocheck/internal/adapters/dgraph"
	"pkt.systems/isocheck/internal/adapters/instrument"
	"pkt.systems/isocheck/internal/adapters/neo4j"
	"pkt.systems/isocheck/internal/adapters/sqlgraph"
	"pkt.systems/isocheck/internal/archive"
	"pkt.systems/isocheck/internal/txn"
)

// openBackend dials the backend named by cfg.Backend and wraps it with the
// instrumentation decorator. cfg must be validated.
func openBackend(ctx context.Context, cfg Config) (txn.Backend, error) {
	target, err := ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	var inner txn.Backend
	switch target.Kind {
	case KindDgraph:
		dcfg := dgraph.Config{Addr: target.Address}
		if target.TLS {
			host, _, _ := net.SplitHostPort(target.Address)
			dcfg.TLS = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		backend, err := dgraph.New(ctx, dcfg)
		if err != nil {
			return nil, err
		}
		inner = backend
	case KindNeo4j:
		backend, err := neo4j.New(ctx, neo4j.Config{
			URI:      target.Address,
			Username: target.Username,
			Password: target.Password,
			Database: target.Database,
		})
		if err != nil {
			return nil, err
		}
		inner = backend
	case KindPostgres, KindSQLite:
		dialect := sqlgraph.SQLite()
		if target.Kind == KindPostgres {
			level, err := sqlgraph.ParseIsolation(cfg.Isolation)
			if err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
			dialect = sqlgraph.Postgres(level)
		}
		backend, err := sqlgraph.New(ctx, sqlgraph.Config{
			Dialect:      dialect,
			DSN:          target.Address,
			MaxOpenConns: cfg.SQLMaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		inner = backend
	default:
		return nil, fmt.Errorf("config: unsupported backend kind %q", target.Kind)
	}
	return instrument.Wrap(inner, cfg.Logger), nil
}

func openArchive(cfg Config) (archive.Store, error) {
	if cfg.Archive == "" {
		return nil, nil
	}
	return archive.Open(cfg.Archive)
}
