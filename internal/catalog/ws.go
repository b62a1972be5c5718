package catalog

import (
	"context"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

// WSInit seeds persons 1..4 and forums 1..3 without moderators.
func (c *Catalog) WSInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpWSInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.WSInit, p)
	})
}

// WS1 makes personId the moderator of forumId unless the forum already has
// one. The race window sits between the check and the write; when the check
// finds a moderator the transaction aborts.
func (c *Catalog) WS1(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpWS1, func(ctx context.Context) (api.Result, error) {
		return nil, c.inTxn(ctx, func(tx txn.Executor) (outcome, error) {
			row, err := first(ctx, tx, intent.WSModerators, p)
			if err != nil {
				return abort, err
			}
			count, err := row.Int(intent.WSModerators, intent.KeyModCount)
			if err != nil {
				return abort, err
			}
			if count > 0 {
				return abort, nil
			}
			if err := c.pause(ctx, p); err != nil {
				return abort, err
			}
			if _, err := tx.Exec(ctx, intent.WSAddModerator, p); err != nil {
				return abort, err
			}
			return commit, nil
		})
	})
}

// WS2 reports the first forum with more than one moderator as forumId and
// modCount, or an empty result when there is none.
func (c *Catalog) WS2(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpWS2, func(ctx context.Context) (api.Result, error) {
		res := api.Result{}
		err := c.read(ctx, func(tx txn.Executor) error {
			rows, err := tx.Exec(ctx, intent.WSViolations, p)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return nil
			}
			for _, key := range []string{intent.KeyForumID, intent.KeyModCount} {
				n, err := rows[0].Int(intent.WSViolations, key)
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
