package router

import (
	"context"
	"strconv"

	"github.com/effective-security/toolrouter/events"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/xlog"
)

// IsRollbackEnabled returns true when the router ranks by priority only
func (r *Router) IsRollbackEnabled() bool {
	return r.rollback.Load()
}

// EnableEmergencyRollback switches the router to priority-only ranking.
// Returns true if the state changed.
func (r *Router) EnableEmergencyRollback(ctx context.Context, reason string) bool {
	return r.SetEmergencyRollback(ctx, true, reason)
}

// DisableEmergencyRollback restores scored ranking.
// Returns true if the state changed.
func (r *Router) DisableEmergencyRollback(ctx context.Context, reason string) bool {
	return r.SetEmergencyRollback(ctx, false, reason)
}

// SetEmergencyRollback sets the rollback state and emits rollback_toggled,
// even if the state did not change.
// In-flight requests may still be served in the previous mode.
func (r *Router) SetEmergencyRollback(ctx context.Context, enabled bool, reason string) bool {
	changed := r.rollback.CompareAndSwap(!enabled, enabled)
	if changed {
		metricskey.StatsRollbackToggled.IncrCounter(1, strconv.FormatBool(enabled))
		r.invalidateHealth()
	}

	logger.ContextKV(ctx, xlog.WARNING,
		"reason", "rollback_toggled",
		"enabled", enabled,
		"changed", changed,
		"message", reason,
	)

	r.emitter.Emit(ctx, events.New(events.KindRollbackToggled, map[string]any{
		"enabled": enabled,
		"changed": changed,
		"reason":  reason,
	}))
	return changed
}
