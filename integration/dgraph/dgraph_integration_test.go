//go:build integration && dgraph

package dgraphintegration

import (
	"os"
	"testing"

	"pkt.systems/isocheck"
	scenariosuite "pkt.systems/isocheck/integration/suite"
)

func TestDgraphScenarios(t *testing.T) {
	addr := os.Getenv("ISOCHECK_DGRAPH_ADDR")
	if addr == "" {
		t.Skip("ISOCHECK_DGRAPH_ADDR not set")
	}
	scenariosuite.RunAll(t, scenariosuite.Open(isocheck.Config{Backend: "dgraph://" + addr}))
}
