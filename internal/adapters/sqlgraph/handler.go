package sqlgraph

import (
	"context"
	"database/sql"
	"fmt"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/decode"
)

type handler struct {
	db      *sql.DB
	dialect Dialect
}

func (h handler) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := h.db.BeginTx(ctx, &sql.TxOptions{Isolation: h.dialect.Isolation})
	if err != nil {
		return nil, h.dialect.classify(err, api.ErrConnection)
	}
	return tx, nil
}

func (h handler) Run(ctx context.Context, tx *sql.Tx, s Script) (decode.Rows, error) {
	for i, st := range s.Statements {
		if s.Query && i == len(s.Statements)-1 {
			rows, err := queryRows(ctx, tx, st)
			if err != nil {
				return nil, h.dialect.classify(err, api.ErrQuery)
			}
			return rows, nil
		}
		if _, err := tx.ExecContext(ctx, st.SQL, st.Args...); err != nil {
			return nil, h.dialect.classify(fmt.Errorf("statement %d: %w", i+1, err), api.ErrQuery)
		}
	}
	return nil, nil
}

func (h handler) Commit(_ context.Context, tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return h.dialect.classify(err, api.ErrCommit)
	}
	return nil
}

func (h handler) Abort(_ context.Context, tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil {
		return h.dialect.classify(err, api.ErrConnection)
	}
	return nil
}

// queryRows scans every result row into a column-keyed row. Text columns
// delivered as bytes are converted to strings.
func queryRows(ctx context.Context, tx *sql.Tx, st Statement) (decode.Rows, error) {
	rows, err := tx.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out decode.Rows
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(decode.Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
