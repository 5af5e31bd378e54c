package limits

import (
	"errors"
)

// Reconcile makes the registered identity set equal to the keys of desired.
//
// Identities missing from desired are removed and new ones are added with
// fresh state. An identity present on both sides keeps its live limiter
// even if its configuration changed; it is reported in Changed. Invalid
// configurations are reported in Errors and skipped.
func (rl *RateLimiter[K]) Reconcile(desired map[K]Config) ReconcileResult[K] {
	rl.reconcileMu.Lock()
	defer rl.reconcileMu.Unlock()

	var res ReconcileResult[K]

	for _, id := range rl.registry.Keys() {
		if _, keep := desired[id]; keep {
			continue
		}
		if err := rl.RemoveIdentity(id); err != nil {
			// Removed concurrently by a direct RemoveIdentity call.
			if !errors.Is(err, ErrNotFound) {
				res.Errors = append(res.Errors, err)
			}
			continue
		}
		res.Removed = append(res.Removed, id)
	}

	for id, cfg := range desired {
		live, err := rl.registry.Config(id)
		if err == nil {
			if live == cfg {
				res.Unchanged = append(res.Unchanged, id)
			} else {
				res.Changed = append(res.Changed, id)
				rl.logger.Warn("identity limits changed; keeping live limiter until it is removed and re-added",
					"identity", id,
					"live_kind", live.Kind,
					"desired_kind", cfg.Kind,
				)
			}
			continue
		}

		if err := rl.AddIdentity(id, cfg); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Added = append(res.Added, id)
	}

	rl.logger.Info("identities reconciled",
		"added", len(res.Added),
		"removed", len(res.Removed),
		"changed", len(res.Changed),
		"errors", len(res.Errors),
	)

	return res
}
