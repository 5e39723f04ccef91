package router

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/effective-security/toolrouter/events"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/xlog"
)

// HealthStatus of the router
type HealthStatus string

// Statuses
const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is a health snapshot
type Health struct {
	Status               HealthStatus `json:"status" yaml:"status"`
	TotalTools           int          `json:"totalTools" yaml:"totalTools"`
	EnabledTools         int          `json:"enabledTools" yaml:"enabledTools"`
	RollbackEnabled      bool         `json:"rollbackEnabled" yaml:"rollbackEnabled"`
	LastSuccess          *time.Time   `json:"lastSuccess,omitempty" yaml:"lastSuccess,omitempty"`
	FailuresSinceSuccess int64        `json:"failuresSinceSuccess" yaml:"failuresSinceSuccess"`
	Reasons              []string     `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	CheckedAt            time.Time    `json:"checkedAt" yaml:"checkedAt"`
}

type healthState struct {
	lock     sync.Mutex
	snapshot *Health
	// stale is set when the snapshot must be recomputed on the next read
	stale bool
}

// GetHealthStatus returns the cached snapshot,
// recomputing it when older than the health cache TTL.
func (r *Router) GetHealthStatus(ctx context.Context) Health {
	r.health.lock.Lock()
	if s := r.health.snapshot; s != nil && !r.health.stale && r.now().Sub(s.CheckedAt) < r.cfg.HealthCacheTTL {
		h := cloneHealth(s)
		r.health.lock.Unlock()
		return h
	}
	r.health.lock.Unlock()
	return r.ForceHealthCheck(ctx)
}

// ForceHealthCheck recomputes the health, bypassing the cached snapshot
func (r *Router) ForceHealthCheck(ctx context.Context) Health {
	started := time.Now()
	h := r.computeHealth()

	r.health.lock.Lock()
	var previous HealthStatus
	if r.health.snapshot != nil {
		previous = r.health.snapshot.Status
	}
	r.health.snapshot = &h
	r.health.stale = false
	r.health.lock.Unlock()

	metricskey.StatsHealthChecks.IncrCounter(1, string(h.Status))
	metricskey.PerfHealthCheck.MeasureSince(started, string(h.Status))

	if previous != "" && previous != h.Status {
		level := xlog.WARNING
		if h.Status == StatusHealthy {
			level = xlog.DEBUG
		}
		logger.ContextKV(ctx, level,
			"reason", "health_changed",
			"from", previous,
			"to", h.Status,
			"reasons", h.Reasons,
		)
		r.emitter.Emit(ctx, events.New(events.KindHealthChanged, map[string]any{
			"from":    string(previous),
			"to":      string(h.Status),
			"reasons": slices.Clone(h.Reasons),
		}))
	}
	return cloneHealth(&h)
}

// invalidateHealth forces the next GetHealthStatus to recompute
func (r *Router) invalidateHealth() {
	r.health.lock.Lock()
	r.health.stale = true
	r.health.lock.Unlock()
}

func (r *Router) computeHealth() Health {
	now := r.now()
	st := r.registry.Stats()
	h := Health{
		Status:               StatusHealthy,
		TotalTools:           st.TotalTools,
		EnabledTools:         st.EnabledTools,
		RollbackEnabled:      r.IsRollbackEnabled(),
		FailuresSinceSuccess: r.failuresSinceSuccess.Load(),
		CheckedAt:            now.UTC(),
	}
	var last time.Time
	if ns := r.lastSuccess.Load(); ns > 0 {
		last = time.Unix(0, ns).UTC()
		h.LastSuccess = &last
	}

	if st.EnabledTools == 0 {
		h.Status = StatusUnhealthy
		h.Reasons = append(h.Reasons, "no enabled tools registered")
		return h
	}
	if h.RollbackEnabled {
		h.Status = StatusDegraded
		h.Reasons = append(h.Reasons, "emergency rollback enabled")
	}
	if h.FailuresSinceSuccess > 0 && (last.IsZero() || now.Sub(last) > r.cfg.StaleAfter) {
		h.Status = StatusDegraded
		h.Reasons = append(h.Reasons,
			fmt.Sprintf("%d failures without a successful suggestion in %s", h.FailuresSinceSuccess, r.cfg.StaleAfter))
	}
	return h
}

func cloneHealth(h *Health) Health {
	c := *h
	c.Reasons = slices.Clone(h.Reasons)
	if h.LastSuccess != nil {
		t := *h.LastSuccess
		c.LastSuccess = &t
	}
	return c
}
