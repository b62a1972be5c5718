package catalog

import (
	"context"
	"fmt"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
)

// OTVInit seeds persons 1..4 with version 0 on the cycle 1→2→3→4→1.
func (c *Catalog) OTVInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpOTVInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.OTVInit, p)
	})
}

// OTV1 commits a fixed number of transactions, each incrementing the version
// of a random cycle entry in 1..cycleSize and its three successors. The
// first failing transaction ends the call.
func (c *Catalog) OTV1(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpOTV1, func(ctx context.Context) (api.Result, error) {
		size, err := p.Int(api.ParamCycleSize)
		if err != nil {
			return nil, err
		}
		if size < 1 {
			return nil, api.ParamError(api.ParamCycleSize, fmt.Errorf("must be positive, got %d", size))
		}
		for round := 0; round < c.otvRounds; round++ {
			id := 1 + c.pick(size)
			if err := c.exec(ctx, intent.OTVIncrement, p.With(api.ParamPersonID, id)); err != nil {
				return nil, fmt.Errorf("round %d personId=%d: %w", round, id, err)
			}
		}
		return nil, nil
	})
}

// OTV2 reads the four versions reachable from personId twice in one
// transaction.
func (c *Catalog) OTV2(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpOTV2, func(ctx context.Context) (api.Result, error) {
		return c.rereadList(ctx, intent.OTVRead, p)
	})
}

// FRInit seeds the same cycle as OTVInit.
func (c *Catalog) FRInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpFRInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.FRInit, p)
	})
}

// FR1 increments all four versions on the cycle through personId in one
// transaction.
func (c *Catalog) FR1(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpFR1, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.FRIncrement, p)
	})
}

// FR2 reads the traversal-ordered versions from personId twice in one
// transaction.
func (c *Catalog) FR2(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpFR2, func(ctx context.Context) (api.Result, error) {
		return c.rereadList(ctx, intent.FRRead, p)
	})
}
