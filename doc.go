// Package isocheck drives transactional-isolation anomaly scenarios against
// graph and relational databases. Each scenario (G0, G1a, G1b, G1c, IMP,
// PMP, OTV, FR, LU, WS and an atomicity check) is a family of operations: an
// init that seeds a fixture, racing operations that an orchestrator calls
// concurrently, and a check whose result reveals whether the anomaly
// occurred. isocheck executes operations and reports what it observed; the
// orchestrator decides whether an observation proves an anomaly.
//
// # Backends
//
// The backend is chosen by URL:
//
//   - `dgraph://host:9080` or `dgraphs://host:9080` speaks DQL and N-Quads
//     over gRPC.
//   - `bolt://`, `bolt+s://`, `neo4j://` and `neo4j+s://` speak Cypher over
//     Bolt. User info in the URL enables basic auth and the path selects the
//     database.
//   - `postgres://...` and `sqlite:///path/file.db` model the graph as
//     tables and run at `Config.Isolation`.
//
// # Running operations
//
//	drv, err := isocheck.Open(ctx, isocheck.Config{Backend: "neo4j://localhost:7687"})
//	if err != nil { log.Fatal(err) }
//	defer drv.Close(context.Background())
//	if err := drv.NukeDatabase(ctx); err != nil { log.Fatal(err) }
//	if _, err := drv.Run(ctx, "g1aInit", nil); err != nil { log.Fatal(err) }
//	go drv.Run(ctx, "g1a1", api.Params{"personId": 1, "sleepTime": "250ms"})
//	res, err := drv.Run(ctx, "g1a2", api.Params{"personId": 1})
//
// A result of pVersion 2 from g1a2 means a reader saw a write that was later
// aborted.
//
// Every call begins its own transaction. Failures carry one of the api.Err*
// kinds; commit and query rejections (api.Rejected) are legitimate outcomes
// under strong isolation, not harness faults.
//
// # Archive and telemetry
//
// With `Config.Archive` set (mem://, disk:///dir or s3://bucket/prefix) every
// Run call is stored as a JSON record keyed by backend, operation and a
// UUIDv7. StartTelemetry exports spans over OTLP and serves Prometheus
// metrics for transaction outcomes and latency.
package isocheck
