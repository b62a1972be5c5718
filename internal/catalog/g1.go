package catalog

import (
	"context"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

// G1aInit seeds person 1 with version 1.
func (c *Catalog) G1aInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG1aInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.G1aInit, p)
	})
}

// G1a1 looks up personId, waits, writes version 2 through the bound
// reference, waits again and aborts. It never commits.
func (c *Catalog) G1a1(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG1a1, func(ctx context.Context) (api.Result, error) {
		return nil, c.inTxn(ctx, func(tx txn.Executor) (outcome, error) {
			row, err := first(ctx, tx, intent.G1aLookup, p)
			if err != nil {
				return abort, err
			}
			bound, err := bindRow(intent.G1aLookup, p, row, intent.KeyRef)
			if err != nil {
				return abort, err
			}
			if err := c.pause(ctx, p); err != nil {
				return abort, err
			}
			if _, err := tx.Exec(ctx, intent.G1aWrite, bound); err != nil {
				return abort, err
			}
			if err := c.pause(ctx, p); err != nil {
				return abort, err
			}
			return abort, nil
		})
	})
}

// G1a2 reads the version of personId. While a g1a1 is pending it must
// observe 1.
func (c *Catalog) G1a2(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG1a2, func(ctx context.Context) (api.Result, error) {
		return c.readVersion(ctx, intent.G1aRead, p)
	})
}

// G1bInit seeds person 1 with version 99.
func (c *Catalog) G1bInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG1bInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.G1bInit, p)
	})
}

// G1b1 writes even, waits, writes odd and commits.
func (c *Catalog) G1b1(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG1b1, func(ctx context.Context) (api.Result, error) {
		return nil, c.inTxn(ctx, func(tx txn.Executor) (outcome, error) {
			if _, err := tx.Exec(ctx, intent.G1bWriteEven, p); err != nil {
				return abort, err
			}
			if err := c.pause(ctx, p); err != nil {
				return abort, err
			}
			if _, err := tx.Exec(ctx, intent.G1bWriteOdd, p); err != nil {
				return abort, err
			}
			return commit, nil
		})
	})
}

// G1b2 reads the version of personId. Observing an even value means an
// intermediate write leaked.
func (c *Catalog) G1b2(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG1b2, func(ctx context.Context) (api.Result, error) {
		return c.readVersion(ctx, intent.G1bRead, p)
	})
}

func (c *Catalog) readVersion(ctx context.Context, step intent.Step, p api.Params) (api.Result, error) {
	res := api.Result{}
	err := c.read(ctx, func(tx txn.Executor) error {
		row, err := first(ctx, tx, step, p)
		if err != nil {
			return err
		}
		v, err := row.Int(step, intent.KeyPVersion)
		if err != nil {
			return err
		}
		res[api.ResultPVersion] = v
		return nil
	})
	return res, err
}

// G1cInit seeds persons 1 and 2 with version 0.
func (c *Catalog) G1cInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG1cInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.G1cInit, p)
	})
}

// G1c sets person1Id's version to transactionId, reads person2Id's version in
// the same transaction and commits. The read is only reported once the
// commit succeeds.
func (c *Catalog) G1c(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG1c, func(ctx context.Context) (api.Result, error) {
		res := api.Result{}
		err := c.inTxn(ctx, func(tx txn.Executor) (outcome, error) {
			if _, err := tx.Exec(ctx, intent.G1cWrite, p); err != nil {
				return abort, err
			}
			row, err := first(ctx, tx, intent.G1cRead, p)
			if err != nil {
				return abort, err
			}
			v, err := row.Int(intent.G1cRead, intent.KeyPerson2Version)
			if err != nil {
				return abort, err
			}
			res[api.ResultPerson2Version] = v
			return commit, nil
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}
