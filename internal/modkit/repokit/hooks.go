package repokit

import (
	"context"
	"maps"
	"slices"
)

// BeginHook runs first thing inside every transaction, on the tx bound Queryer
type BeginHook func(ctx context.Context, q Queryer) error

// WithBeginHooks returns a TxRunner whose transactions run hooks before fn
// statements outside Tx go straight to inner
func WithBeginHooks(inner TxRunner, hooks ...BeginHook) TxRunner {
	return hookedTx{TxRunner: inner, hooks: hooks}
}

type hookedTx struct {
	TxRunner
	hooks []BeginHook
}

func (h hookedTx) Tx(ctx context.Context, fn func(q Queryer) error) error {
	return h.TxRunner.Tx(ctx, func(q Queryer) error {
		for _, hk := range h.hooks {
			if err := hk(ctx, q); err != nil {
				return err
			}
		}
		return fn(q)
	})
}

// setConfigSQL is SET LOCAL with bindable arguments
const setConfigSQL = "SELECT set_config($1, $2, true)"

// SetLocal returns a BeginHook applying each setting for the current transaction
// only, in name order
func SetLocal(settings map[string]string) BeginHook {
	names := slices.Sorted(maps.Keys(settings))
	return func(ctx context.Context, q Queryer) error {
		for _, name := range names {
			if _, err := q.Exec(ctx, setConfigSQL, name, settings[name]); err != nil {
				return err
			}
		}
		return nil
	}
}
