package neo4j

import (
	"context"
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"pkt.systems/isocheck/api"
)

// session pairs an explicit transaction with the session that owns it.
type session struct {
	sess neo4j.SessionWithContext
	tx   neo4j.ExplicitTransaction
}

type handler struct {
	driver   neo4j.DriverWithContext
	database string
}

func (h handler) Begin(ctx context.Context) (*session, error) {
	sess := h.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: h.database,
	})
	tx, err := sess.BeginTransaction(ctx)
	if err != nil {
		_ = sess.Close(ctx)
		return nil, classify(err, api.ErrConnection)
	}
	return &session{sess: sess, tx: tx}, nil
}

func (h handler) Run(ctx context.Context, s *session, st Statement) (Records, error) {
	result, err := s.tx.Run(ctx, st.Cypher, st.Params)
	if err != nil {
		return nil, classify(err, api.ErrQuery)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, classify(err, api.ErrQuery)
	}
	return records, nil
}

func (h handler) Commit(ctx context.Context, s *session) error {
	err := s.tx.Commit(ctx)
	closeErr := s.sess.Close(ctx)
	if err != nil {
		return classify(err, api.ErrCommit)
	}
	if closeErr != nil {
		return classify(closeErr, api.ErrConnection)
	}
	return nil
}

func (h handler) Abort(ctx context.Context, s *session) error {
	err := s.tx.Rollback(ctx)
	closeErr := s.sess.Close(ctx)
	if err = errors.Join(err, closeErr); err != nil {
		return classify(err, api.ErrConnection)
	}
	return nil
}

// classify maps driver failures to an api kind. Transient server errors
// (deadlocks, lock timeouts, conflicting writes) are commit rejections.
func classify(err error, fallback error) error {
	kind := fallback
	var neoErr *neo4j.Neo4jError
	switch {
	case neo4j.IsConnectivityError(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		kind = api.ErrConnection
	case errors.As(err, &neoErr):
		if strings.HasPrefix(neoErr.Code, "Neo.TransientError.") {
			kind = api.ErrCommit
		}
	}
	return &api.Error{Kind: kind, Err: err}
}
