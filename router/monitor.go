package router

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/robfig/cron/v3"
)

// StartHealthMonitor runs ForceHealthCheck on the configured schedule
// until the context is cancelled.
// It blocks, so it is meant to run in its own goroutine.
func (r *Router) StartHealthMonitor(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(r.cfg.HealthCheckSchedule, func() {
		h := r.ForceHealthCheck(ctx)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "health_check",
			"health", h.Status,
			"enabled_tools", h.EnabledTools,
		)
	})
	if err != nil {
		return errors.Wrapf(err, "invalid health check schedule %q", r.cfg.HealthCheckSchedule)
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "health_monitor_started", "schedule", r.cfg.HealthCheckSchedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.ContextKV(ctx, xlog.DEBUG, "status", "health_monitor_stopped")
	return nil
}
