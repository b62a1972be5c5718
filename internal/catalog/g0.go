package catalog

import (
	"context"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

// G0Init seeds persons 1 and 2 linked by one knows edge; both persons and
// the edge start with versionHistory [0].
func (c *Catalog) G0Init(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG0Init, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.G0Init, p)
	})
}

// G0 appends transactionId to the history of person1Id, person2Id and the
// edge between them in one transaction.
func (c *Catalog) G0(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG0, func(ctx context.Context) (api.Result, error) {
		return nil, c.inTxn(ctx, func(tx txn.Executor) (outcome, error) {
			row, err := first(ctx, tx, intent.G0Lookup, p)
			if err != nil {
				return abort, err
			}
			bound, err := bindRow(intent.G0Lookup, p, row,
				intent.KeyP1Ref, intent.KeyP2Ref, intent.KeyKRef,
				intent.KeyP1VersionHistory, intent.KeyKVersionHistory, intent.KeyP2VersionHistory)
			if err != nil {
				return abort, err
			}
			if _, err := tx.Exec(ctx, intent.G0Append, bound); err != nil {
				return abort, err
			}
			return commit, nil
		})
	})
}

// G0Check returns the three histories. Numeric entries are integers.
func (c *Catalog) G0Check(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpG0Check, func(ctx context.Context) (api.Result, error) {
		res := api.Result{}
		err := c.read(ctx, func(tx txn.Executor) error {
			row, err := first(ctx, tx, intent.G0Check, p)
			if err != nil {
				return err
			}
			for _, key := range []string{intent.KeyP1VersionHistory, intent.KeyKVersionHistory, intent.KeyP2VersionHistory} {
				raw, err := row.Value(intent.G0Check, key)
				if err != nil {
					return err
				}
				history, err := decode.History(raw)
				if err != nil {
					return api.DecodeError(string(intent.G0Check), "field %q: %v", key, err)
				}
				res[key] = history
			}
			return nil
		})
		return res, err
	})
}

// bindRow copies the listed keys of a lookup row into a new parameter set so
// a later step in the same transaction can address the matched entities.
// Keys the backend did not produce are left out; the consuming step reports
// them when it needs them.
func bindRow(step intent.Step, p api.Params, row decode.Row, keys ...string) (api.Params, error) {
	extra := make(map[string]any, len(keys))
	for _, key := range keys {
		v, ok := row[key]
		if !ok {
			continue
		}
		if v == nil {
			return nil, api.DecodeError(string(step), "field %q is null", key)
		}
		extra[key] = v
	}
	return p.Merge(extra), nil
}
