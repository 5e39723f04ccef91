package router

import (
	"context"
	"fmt"
	"time"
)

// CheckStatus is the outcome of a verification check
type CheckStatus string

// Check outcomes
const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// Rollout thresholds
const (
	MaxP95ProcessingTime = 1500.0
	MinCacheHitRate      = 20.0
	MinRequests          = 10
)

// Check is a single verification item
type Check struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Status      CheckStatus `json:"status" yaml:"status"`
	Value       any         `json:"value" yaml:"value"`
	Threshold   string      `json:"threshold" yaml:"threshold"`
}

// Verification is the rollout checklist
type Verification struct {
	Status    CheckStatus `json:"status" yaml:"status"`
	Checks    []Check     `json:"checks" yaml:"checks"`
	CheckedAt time.Time   `json:"checkedAt" yaml:"checkedAt"`
}

// Verification returns the rollout checklist.
// The overall status is the worst status of the checks.
func (r *Router) Verification(ctx context.Context) Verification {
	h := r.GetHealthStatus(ctx)
	st := r.GetPerformanceStats(ctx)

	checks := []Check{
		{
			Name:        "service_available",
			Description: "Router is available",
			Status:      passOr(h.Status != StatusUnhealthy, CheckFail),
			Value:       string(h.Status),
			Threshold:   "not unhealthy",
		},
		{
			Name:        "tools_registered",
			Description: "At least one enabled tool is registered",
			Status:      passOr(h.EnabledTools > 0, CheckFail),
			Value:       h.EnabledTools,
			Threshold:   "1",
		},
		{
			Name:        "suggestion_latency_p95",
			Description: "P95 suggestion latency under 1.5s",
			Status:      passOr(st.P95ProcessingTime <= MaxP95ProcessingTime, CheckFail),
			Value:       fmt.Sprintf("%.1fms", st.P95ProcessingTime),
			Threshold:   fmt.Sprintf("%.0fms", MaxP95ProcessingTime),
		},
		{
			Name:        "cache_hit_rate",
			Description: "Cache hit rate above 20%",
			Status:      passOr(st.CacheHitRate >= MinCacheHitRate, CheckFail),
			Value:       fmt.Sprintf("%.1f%%", st.CacheHitRate),
			Threshold:   fmt.Sprintf("%.0f%%", MinCacheHitRate),
		},
		{
			Name:        "total_requests",
			Description: "At least 10 requests processed",
			Status:      passOr(st.TotalRequests >= MinRequests, CheckWarn),
			Value:       st.TotalRequests,
			Threshold:   fmt.Sprintf("%d", MinRequests),
		},
		{
			Name:        "rollback_enabled",
			Description: "Emergency rollback is not active",
			Status:      passOr(!h.RollbackEnabled, CheckWarn),
			Value:       h.RollbackEnabled,
			Threshold:   "false",
		},
	}

	v := Verification{
		Status:    CheckPass,
		Checks:    checks,
		CheckedAt: r.now().UTC(),
	}
	for _, c := range checks {
		switch {
		case c.Status == CheckFail:
			v.Status = CheckFail
		case c.Status == CheckWarn && v.Status == CheckPass:
			v.Status = CheckWarn
		}
	}
	return v
}

func passOr(ok bool, otherwise CheckStatus) CheckStatus {
	if ok {
		return CheckPass
	}
	return otherwise
}
