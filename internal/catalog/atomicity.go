package catalog

import (
	"context"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

// AtomicityInit seeds persons 1 (Alice, one email) and 2 (Bob, two emails).
func (c *Catalog) AtomicityInit(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpAtomicityInit, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.AtomicityInit, p)
	})
}

// AtomicityC creates person2Id, links person1Id to it and appends newEmail to
// person1Id in one committed transaction.
func (c *Catalog) AtomicityC(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpAtomicityC, func(ctx context.Context) (api.Result, error) {
		return nil, c.exec(ctx, intent.AtomicityCommit, p)
	})
}

// AtomicityRB appends newEmail to person1Id and then aborts when person2Id
// already exists; otherwise it creates person2Id and commits.
func (c *Catalog) AtomicityRB(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpAtomicityRB, func(ctx context.Context) (api.Result, error) {
		return nil, c.inTxn(ctx, func(tx txn.Executor) (outcome, error) {
			if _, err := tx.Exec(ctx, intent.AtomicityAppendEmail, p); err != nil {
				return abort, err
			}
			rows, err := tx.Exec(ctx, intent.AtomicityLookup, p)
			if err != nil {
				return abort, err
			}
			if len(rows) > 0 {
				return abort, nil
			}
			if _, err := tx.Exec(ctx, intent.AtomicityCreate, p); err != nil {
				return abort, err
			}
			return commit, nil
		})
	})
}

// AtomicityCheck counts persons, names and emails.
func (c *Catalog) AtomicityCheck(ctx context.Context, p api.Params) (api.Result, error) {
	return c.observe(ctx, OpAtomicityCheck, func(ctx context.Context) (api.Result, error) {
		res := api.Result{}
		err := c.read(ctx, func(tx txn.Executor) error {
			row, err := first(ctx, tx, intent.AtomicityCheck, p)
			if err != nil {
				return err
			}
			for _, key := range []string{intent.KeyNumPersons, intent.KeyNumNames, intent.KeyNumEmails} {
				n, err := row.Int(intent.AtomicityCheck, key)
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
