// Package sqlgraph runs the isolation scenarios against a relational engine
// that stores the person graph in plain tables: PostgreSQL through pgx, or
// SQLite through modernc.org/sqlite.
package sqlgraph

import (
	"context"
	"database/sql"
	"fmt"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/txn"
)

// Config describes a SQL backend.
type Config struct {
	Dialect Dialect
	// DSN is passed to sql.Open unchanged.
	DSN string
	// MaxOpenConns bounds the pool; zero leaves the driver default.
	MaxOpenConns int
}

// Backend is the bound SQL adapter.
type Backend = txn.Binding[*sql.Tx, Script, decode.Rows]

// New opens the pool. Connection failures surface on first use.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Dialect.Driver == "" {
		return nil, fmt.Errorf("sqlgraph: dialect required")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlgraph: %s: dsn required", cfg.Dialect.Name)
	}
	db, err := sql.Open(cfg.Dialect.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: open %s: %w", cfg.Dialect.Name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return txn.Bind(txn.Parts[*sql.Tx, Script, decode.Rows]{
		Name:    cfg.Dialect.Name,
		Handler: handler{db: db, dialect: cfg.Dialect},
		Builder: Builders(cfg.Dialect),
		Decoder: Decoders(),
		Admin:   &admin{db: db, dialect: cfg.Dialect},
	})
}

type admin struct {
	db      *sql.DB
	dialect Dialect
}

// Reset drops and recreates every table in one transaction.
func (a *admin) Reset(ctx context.Context) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return a.dialect.classify(err, api.ErrConnection)
	}
	for _, stmt := range resetStatements(a.dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%s: %w", stmt, a.dialect.classify(err, api.ErrQuery))
		}
	}
	if err := tx.Commit(); err != nil {
		return a.dialect.classify(err, api.ErrCommit)
	}
	return nil
}

func (a *admin) Close(context.Context) error {
	return a.db.Close()
}
