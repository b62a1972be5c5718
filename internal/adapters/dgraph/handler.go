package dgraph

import (
	"context"
	"errors"

	"github.com/dgraph-io/dgo/v230"
	dgapi "github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pkt.systems/isocheck/api"
)

// handler runs requests on dgo transactions.
type handler struct {
	client *dgo.Dgraph
}

func (h handler) Begin(context.Context) (*dgo.Txn, error) {
	return h.client.NewTxn(), nil
}

func (h handler) Run(ctx context.Context, t *dgo.Txn, req *dgapi.Request) (*dgapi.Response, error) {
	resp, err := t.Do(ctx, req)
	if err != nil {
		return nil, classify(err, api.ErrQuery)
	}
	return resp, nil
}

func (h handler) Commit(ctx context.Context, t *dgo.Txn) error {
	if err := t.Commit(ctx); err != nil {
		return classify(err, api.ErrCommit)
	}
	return nil
}

func (h handler) Abort(ctx context.Context, t *dgo.Txn) error {
	if err := t.Discard(ctx); err != nil {
		return classify(err, api.ErrConnection)
	}
	return nil
}

// classify maps dgo and gRPC failures to an api kind. Conflicts surface as
// commit errors wherever they are detected.
func classify(err error, fallback error) error {
	kind := fallback
	switch {
	case errors.Is(err, dgo.ErrAborted):
		kind = api.ErrCommit
	case errors.Is(err, dgo.ErrFinished):
		kind = api.ErrTxnDone
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = api.ErrConnection
	default:
		if s, ok := status.FromError(err); ok {
			switch s.Code() {
			case codes.Aborted:
				kind = api.ErrCommit
			case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
				kind = api.ErrConnection
			}
		}
	}
	return &api.Error{Kind: kind, Err: err}
}
