package catalog

import (
	"context"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

// LUInit seeds person 1 with numFriends 0.
func (c *Catalog) LUInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpLUInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.LUInit, p)
	})
}

// LU1 adds a knows edge from personId to a new person person2Id and bumps
// personId's numFriends with a plain read-modify-write, in one transaction.
func (c *Catalog) LU1(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpLU1, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.LUIncrement, p)
	})
}

// LU2 returns the knows edge count and the numFriends property of personId.
// A property lower than the edge count means an update was lost.
func (c *Catalog) LU2(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpLU2, func(ctx context.Context) (api.Result, error) {
		res := api.Result{}
		err := c.read(ctx, func(tx txn.Executor) error {
			row, err := first(ctx, tx, intent.LURead, p)
			if err != nil {
				return err
			}
			for _, key := range []string{intent.KeyNumKnowsEdges, intent.KeyNumFriendsProp} {
				n, err := row.Int(intent.LURead, key)
				if err != nil {
					return err
				}
				res[key] = n
			}
			return nil
		})
		return res, err
	})
}
