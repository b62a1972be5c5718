package catalog

import (
	"context"
	"fmt"

	"pkt.systems/isocheck/api"
)

// Operation names exposed to orchestrators.
const (
	OpAtomicityInit  = "atomicityInit"
	OpAtomicityC     = "atomicityC"
	OpAtomicityRB    = "atomicityRB"
	OpAtomicityCheck = "atomicityCheck"
	OpG0Init         = "g0Init"
	OpG0             = "g0"
	OpG0Check        = "g0check"
	OpG1aInit        = "g1aInit"
	OpG1a1           = "g1a1"
	OpG1a2           = "g1a2"
	OpG1bInit        = "g1bInit"
	OpG1b1           = "g1b1"
	OpG1b2           = "g1b2"
	OpG1cInit        = "g1cInit"
	OpG1c            = "g1c"
	OpIMPInit        = "impInit"
	OpIMP1           = "imp1"
	OpIMP2           = "imp2"
	OpPMPInit        = "pmpInit"
	OpPMP1           = "pmp1"
	OpPMP2           = "pmp2"
	OpOTVInit        = "otvInit"
	OpOTV1           = "otv1"
	OpOTV2           = "otv2"
	OpFRInit         = "frInit"
	OpFR1            = "fr1"
	OpFR2            = "fr2"
	OpLUInit         = "luInit"
	OpLU1            = "lu1"
	OpLU2            = "lu2"
	OpWSInit         = "wsInit"
	OpWS1            = "ws1"
	OpWS2            = "ws2"
)

// Operation is one catalog entry point.
type Operation func(ctx context.Context, p api.Params) (api.Result, error)

// Scenario groups the operations of one anomaly.
type Scenario struct {
	// Name is the scenario label (g0, g1a, ...).
	Name string
	// Init seeds the fixture.
	Init string
	// Ops are the racing and check operations in call order.
	Ops []string
}

// Scenarios lists every scenario in catalog order.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "atomicity", Init: OpAtomicityInit, Ops: []string{OpAtomicityC, OpAtomicityRB, OpAtomicityCheck}},
		{Name: "g0", Init: OpG0Init, Ops: []string{OpG0, OpG0Check}},
		{Name: "g1a", Init: OpG1aInit, Ops: []string{OpG1a1, OpG1a2}},
		{Name: "g1b", Init: OpG1bInit, Ops: []string{OpG1b1, OpG1b2}},
		{Name: "g1c", Init: OpG1cInit, Ops: []string{OpG1c}},
		{Name: "imp", Init: OpIMPInit, Ops: []string{OpIMP1, OpIMP2}},
		{Name: "pmp", Init: OpPMPInit, Ops: []string{OpPMP1, OpPMP2}},
		{Name: "otv", Init: OpOTVInit, Ops: []string{OpOTV1, OpOTV2}},
		{Name: "fr", Init: OpFRInit, Ops: []string{OpFR1, OpFR2}},
		{Name: "lu", Init: OpLUInit, Ops: []string{OpLU1, OpLU2}},
		{Name: "ws", Init: OpWSInit, Ops: []string{OpWS1, OpWS2}},
	}
}

// Operations returns every operation name in catalog order.
func Operations() []string {
	var out []string
	for _, s := range Scenarios() {
		out = append(out, s.Init)
		out = append(out, s.Ops...)
	}
	return out
}

// Lookup returns the operation called name.
func (c *Catalog) Lookup(name string) (Operation, bool) {
	op, ok := c.table()[name]
	return op, ok
}

// Run invokes the operation called name.
func (c *Catalog) Run(ctx context.Context, name string, p api.Params) (api.Result, error) {
	op, ok := c.Lookup(name)
	if !ok {
		return nil, &api.Error{Kind: api.ErrParam, Op: name, Err: fmt.Errorf("unknown operation")}
	}
	if p == nil {
		p = api.Params{}
	}
	return op(ctx, p)
}

func (c *Catalog) table() map[string]Operation {
	return map[string]Operation{
		OpAtomicityInit:  c.AtomicityInit,
		OpAtomicityC:     c.AtomicityC,
		OpAtomicityRB:    c.AtomicityRB,
		OpAtomicityCheck: c.AtomicityCheck,
		OpG0Init:         c.G0Init,
		OpG0:             c.G0,
		OpG0Check:        c.G0Check,
		OpG1aInit:        c.G1aInit,
		OpG1a1:           c.G1a1,
		OpG1a2:           c.G1a2,
		OpG1bInit:        c.G1bInit,
		OpG1b1:           c.G1b1,
		OpG1b2:           c.G1b2,
		OpG1cInit:        c.G1cInit,
		OpG1c:            c.G1c,
		OpIMPInit:        c.IMPInit,
		OpIMP1:           c.IMP1,
		OpIMP2:           c.IMP2,
		OpPMPInit:        c.PMPInit,
		OpPMP1:           c.PMP1,
		OpPMP2:           c.PMP2,
		OpOTVInit:        c.OTVInit,
		OpOTV1:           c.OTV1,
		OpOTV2:           c.OTV2,
		OpFRInit:         c.FRInit,
		OpFR1:            c.FR1,
		OpFR2:            c.FR2,
		OpLUInit:         c.LUInit,
		OpLU1:            c.LU1,
		OpLU2:            c.LU2,
		OpWSInit:         c.WSInit,
		OpWS1:            c.WS1,
		OpWS2:            c.WS2,
	}
}
