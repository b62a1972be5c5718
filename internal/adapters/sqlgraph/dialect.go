package sqlgraph

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/querytext"
)

// Dialect captures what differs between the supported SQL engines.
type Dialect struct {
	// Name labels the backend in logs and metrics.
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Key is the DDL of an auto-assigned BIGINT surrogate key column.
	Key string
	// Placeholder renders the n-th bind parameter.
	Placeholder func(n int) string
	// Isolation is requested for every scenario transaction.
	Isolation sql.IsolationLevel
	// Kind classifies an engine error, returning nil when it cannot tell.
	Kind func(err error) error
}

// Postgres returns the PostgreSQL dialect over pgx at the given isolation.
func Postgres(isolation sql.IsolationLevel) Dialect {
	return Dialect{
		Name:        "postgres",
		Driver:      "pgx",
		Key:         "BIGSERIAL PRIMARY KEY",
		Placeholder: querytext.Dollar,
		Isolation:   isolation,
		Kind:        postgresKind,
	}
}

// SQLite returns the SQLite dialect over modernc.org/sqlite. SQLite only
// offers serializable transactions, so no isolation is requested.
func SQLite() Dialect {
	return Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		Key:         "INTEGER PRIMARY KEY",
		Placeholder: querytext.Question,
		Isolation:   sql.LevelDefault,
		Kind:        sqliteKind,
	}
}

// SQLiteDSN opens path in WAL mode with a busy timeout so concurrent
// transactions wait for the write lock instead of failing at once.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// ParseIsolation maps a level name such as "repeatable read" to its
// database/sql constant. Empty means serializable.
func ParseIsolation(name string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(name))) {
	case "", "serializable":
		return sql.LevelSerializable, nil
	case "repeatable read":
		return sql.LevelRepeatableRead, nil
	case "read committed":
		return sql.LevelReadCommitted, nil
	case "read uncommitted":
		return sql.LevelReadUncommitted, nil
	case "snapshot":
		return sql.LevelSnapshot, nil
	default:
		return 0, fmt.Errorf("unknown isolation level %q", name)
	}
}

// Postgres SQLSTATE codes signalling a conflicting concurrent transaction.
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

func postgresKind(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateSerializationFailure, sqlstateDeadlockDetected:
			return api.ErrCommit
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return api.ErrConnection
		}
		return nil
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return api.ErrConnection
	}
	return nil
}

func sqliteKind(err error) error {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return api.ErrCommit
		case sqlite3.SQLITE_CANTOPEN:
			return api.ErrConnection
		}
	}
	return nil
}

// classify attaches the dialect kind to err, falling back when the engine
// error is not recognized.
func (d Dialect) classify(err error, fallback error) error {
	kind := fallback
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		kind = api.ErrConnection
	case errors.Is(err, sql.ErrTxDone):
		kind = api.ErrTxnDone
	default:
		if d.Kind != nil {
			if k := d.Kind(err); k != nil {
				kind = k
			}
		}
	}
	return &api.Error{Kind: kind, Err: err}
}
