// Package neo4j runs the isolation scenarios against Neo4j over Bolt. Steps
// render to parameterized Cypher executed in explicit transactions.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/txn"
)

// Name is the backend label used in logs and metrics.
const Name = "neo4j"

// Config describes a Neo4j endpoint.
type Config struct {
	// URI is a bolt://, bolt+s://, neo4j:// or neo4j+s:// address.
	URI string
	// Username and Password enable basic auth when Username is set.
	Username string
	Password string
	// Database selects a database; empty uses the server default.
	Database string
}

// Backend is the bound Neo4j adapter.
type Backend = txn.Binding[*session, Statement, Records]

// resetStatements run in their own auto-commit transactions; schema and data
// changes cannot share one.
var resetStatements = []string{
	"MATCH (n) DETACH DELETE n",
	"CREATE INDEX person_id IF NOT EXISTS FOR (p:Person) ON (p.id)",
	"CREATE INDEX post_id IF NOT EXISTS FOR (p:Post) ON (p.id)",
	"CREATE INDEX forum_id IF NOT EXISTS FOR (f:Forum) ON (f.id)",
}

// New creates a driver for cfg.URI. Connection failures surface on first use.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j: uri required")
	}
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("neo4j: driver %s: %w", cfg.URI, err)
	}
	return txn.Bind(txn.Parts[*session, Statement, Records]{
		Name:    Name,
		Handler: handler{driver: driver, database: cfg.Database},
		Builder: Builders(),
		Decoder: Decoders(),
		Admin:   &admin{driver: driver, database: cfg.Database},
	})
}

type admin struct {
	driver   neo4j.DriverWithContext
	database string
}

// Reset deletes every node and relationship and ensures the id indexes.
func (a *admin) Reset(ctx context.Context) error {
	for _, stmt := range resetStatements {
		_, err := neo4j.ExecuteQuery(ctx, a.driver, stmt, nil, neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(a.database))
		if err != nil {
			return fmt.Errorf("%s: %w", stmt, classify(err, api.ErrQuery))
		}
	}
	return nil
}

func (a *admin) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}
