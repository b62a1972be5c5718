// Package dgraph runs the isolation scenarios against Dgraph over gRPC. Steps
// render to DQL queries and N-Quad upserts; results come back as JSON.
package dgraph

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/dgraph-io/dgo/v230"
	dgapi "github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/txn"
)

// Name is the backend label used in logs and metrics.
const Name = "dgraph"

// Schema is installed by Reset. Version histories are joined text so their
// order survives; id is indexed for equality and ordering.
const Schema = `
id: string @index(exact) .
name: string .
emails: [string] .
version: int .
versionHistory: string .
numFriends: int .
knows: [uid] @count .
liked_by: [uid] @count .
hasModerator: [uid] @count .

type Person {
  id
  name
  emails
  version
  versionHistory
  numFriends
  knows
}

type Post {
  id
  liked_by
}

type Forum {
  id
  hasModerator
}
`

// Config describes a Dgraph alpha endpoint.
type Config struct {
	// Addr is the alpha gRPC host:port.
	Addr string
	// TLS enables transport security when set.
	TLS *tls.Config
	// DialOptions are appended to the defaults.
	DialOptions []grpc.DialOption
}

// Backend is the bound Dgraph adapter.
type Backend = txn.Binding[*dgo.Txn, *dgapi.Request, *dgapi.Response]

// New connects to cfg.Addr. Connection failures surface on first use.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("dgraph: address required")
	}
	creds := insecure.NewCredentials()
	if cfg.TLS != nil {
		creds = credentials.NewTLS(cfg.TLS)
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, cfg.DialOptions...)
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dgraph: dial %s: %w", cfg.Addr, err)
	}
	client := dgo.NewDgraphClient(dgapi.NewDgraphClient(conn))
	return txn.Bind(txn.Parts[*dgo.Txn, *dgapi.Request, *dgapi.Response]{
		Name:    Name,
		Handler: handler{client: client},
		Builder: Builders(),
		Decoder: Decoders(),
		Admin:   &admin{client: client, conn: conn},
	})
}

type admin struct {
	client *dgo.Dgraph
	conn   *grpc.ClientConn
}

// Reset drops every predicate and reinstalls Schema.
func (a *admin) Reset(ctx context.Context) error {
	if err := a.client.Alter(ctx, &dgapi.Operation{DropAll: true}); err != nil {
		return fmt.Errorf("drop all: %w", classify(err, api.ErrQuery))
	}
	if err := a.client.Alter(ctx, &dgapi.Operation{Schema: Schema}); err != nil {
		return fmt.Errorf("alter schema: %w", classify(err, api.ErrQuery))
	}
	return nil
}

func (a *admin) Close(context.Context) error {
	return a.conn.Close()
}
