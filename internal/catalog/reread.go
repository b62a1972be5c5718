package catalog

import (
	"context"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

// IMPInit seeds person 1 with version 1.
func (c *Catalog) IMPInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpIMPInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.IMPInit, p)
	})
}

// IMP1 increments the version of personId.
func (c *Catalog) IMP1(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpIMP1, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.IMPIncrement, p)
	})
}

// IMP2 reads the version of personId twice in one transaction.
func (c *Catalog) IMP2(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpIMP2, func(ctx context.Context) (api.Result, error) {
		return c.rereadInt(ctx, intent.IMPRead, intent.KeyVersion, p)
	})
}

// PMPInit seeds person 1 and post 1 without a likes edge.
func (c *Catalog) PMPInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpPMPInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.PMPInit, p)
	})
}

// PMP1 makes personId like postId.
func (c *Catalog) PMP1(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpPMP1, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.PMPLike, p)
	})
}

// PMP2 counts the persons liking postId twice in one transaction.
func (c *Catalog) PMP2(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpPMP2, func(ctx context.Context) (api.Result, error) {
		return c.rereadInt(ctx, intent.PMPCount, intent.KeyLikes, p)
	})
}

// rereadInt runs step, waits, runs it again in the same transaction and
// returns both integer observations.
func (c *Catalog) rereadInt(ctx context.Context, step intent.Step, key string, p api.Params) (api.Result, error) {
	res := api.Result{}
	err := c.read(ctx, func(tx txn.Executor) error {
		for i, out := range []string{api.ResultFirstRead, api.ResultSecondRead} {
			if i > 0 {
				if err := c.pause(ctx, p); err != nil {
					return err
				}
			}
			row, err := first(ctx, tx, step, p)
			if err != nil {
				return err
			}
			v, err := row.Int(step, key)
			if err != nil {
				return err
			}
			res[out] = v
		}
		return nil
	})
	return res, err
}

// rereadList is rereadInt for steps yielding the four versions of a cycle.
func (c *Catalog) rereadList(ctx context.Context, step intent.Step, p api.Params) (api.Result, error) {
	res := api.Result{}
	err := c.read(ctx, func(tx txn.Executor) error {
		for i, out := range []string{api.ResultFirstRead, api.ResultSecondRead} {
			if i > 0 {
				if err := c.pause(ctx, p); err != nil {
					return err
				}
			}
			row, err := first(ctx, tx, step, p)
			if err != nil {
				return err
			}
			versions, err := row.Ints(step, intent.KeyVersions, intent.CycleLength)
			if err != nil {
				return err
			}
			res[out] = versions
		}
		return nil
	})
	return res, err
}
