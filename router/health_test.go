package router_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/effective-security/toolrouter/events"
	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/router"
	"github.com/effective-security/toolrouter/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyCache panics on Get when broken
type flakyCache struct {
	store.Cache
	broken atomic.Bool
}

func (c *flakyCache) Get(ctx context.Context, key string) (*store.Entry, error) {
	if c.broken.Load() {
		panic("cache is broken")
	}
	return c.Cache.Get(ctx, key)
}

func TestHealth_Transitions(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	rec := &recorder{}
	em := events.NewEmitter()
	em.On(events.KindHealthChanged, rec)

	r, err := router.New(router.Config{}, registry.New(), router.WithEmitter(em), router.WithClock(clk.Now))
	require.NoError(t, err)

	h := r.GetHealthStatus(ctx)
	assert.Equal(t, router.StatusUnhealthy, h.Status)
	assert.Equal(t, []string{"no enabled tools registered"}, h.Reasons)
	assert.Nil(t, h.LastSuccess)

	// registry changes invalidate the snapshot
	require.NoError(t, r.RegisterTool(ctx, defaultTools()[0]))
	h = r.GetHealthStatus(ctx)
	assert.Equal(t, router.StatusHealthy, h.Status)
	assert.Equal(t, 1, h.TotalTools)
	assert.Equal(t, 1, h.EnabledTools)
	assert.Empty(t, h.Reasons)

	r.EnableEmergencyRollback(ctx, "test")
	h = r.GetHealthStatus(ctx)
	assert.Equal(t, router.StatusDegraded, h.Status)
	assert.True(t, h.RollbackEnabled)
	assert.Equal(t, []string{"emergency rollback enabled"}, h.Reasons)

	r.DisableEmergencyRollback(ctx, "test")
	assert.Equal(t, router.StatusHealthy, r.GetHealthStatus(ctx).Status)

	// disabled tools make the router unhealthy
	r.SetToolEnabled(ctx, "git_status", false)
	h = r.GetHealthStatus(ctx)
	assert.Equal(t, router.StatusUnhealthy, h.Status)
	assert.Equal(t, 1, h.TotalTools)
	assert.Equal(t, 0, h.EnabledTools)

	var changes [][2]any
	for _, e := range rec.events {
		changes = append(changes, [2]any{e.Data["from"], e.Data["to"]})
	}
	assert.Equal(t, [][2]any{
		{"unhealthy", "healthy"},
		{"healthy", "degraded"},
		{"degraded", "healthy"},
		{"healthy", "unhealthy"},
	}, changes)
}

func TestHealth_Cached(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	reg := newRegistry(t, defaultTools()[0])
	r, err := router.New(router.Config{}, reg, router.WithClock(clk.Now))
	require.NoError(t, err)

	h := r.GetHealthStatus(ctx)
	assert.Equal(t, router.StatusHealthy, h.Status)
	checkedAt := h.CheckedAt

	// changes made behind the router are seen after the health cache TTL
	reg.SetEnabled("git_status", false)
	clk.Add(time.Second)
	h = r.GetHealthStatus(ctx)
	assert.Equal(t, router.StatusHealthy, h.Status)
	assert.Equal(t, checkedAt, h.CheckedAt)

	clk.Add(router.DefaultHealthCacheTTL)
	h = r.GetHealthStatus(ctx)
	assert.Equal(t, router.StatusUnhealthy, h.Status)
	assert.True(t, h.CheckedAt.After(checkedAt))

	reg.SetEnabled("git_status", true)
	assert.Equal(t, router.StatusUnhealthy, r.GetHealthStatus(ctx).Status)
	assert.Equal(t, router.StatusHealthy, r.ForceHealthCheck(ctx).Status)
}

func TestHealth_Failures(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	rec := &recorder{}
	em := events.NewEmitter()
	em.On(events.KindSuggestionFailed, rec)

	cache := &flakyCache{Cache: store.NewMemoryCache(10, time.Minute)}
	r, err := router.New(router.Config{}, newRegistry(t, defaultTools()...),
		router.WithCache(cache),
		router.WithEmitter(em),
		router.WithClock(clk.Now),
	)
	require.NoError(t, err)

	_, err = r.Suggest(ctx, &model.SuggestionRequest{Query: "git status"})
	require.NoError(t, err)
	h := r.ForceHealthCheck(ctx)
	require.NotNil(t, h.LastSuccess)
	assert.True(t, clk.Now().Equal(*h.LastSuccess))

	cache.broken.Store(true)
	_, err = r.Suggest(ctx, &model.SuggestionRequest{Query: "git status"})
	require.Error(t, err)
	ie, ok := router.IsInternalError(err)
	require.True(t, ok)
	assert.Contains(t, ie.Error(), "internal error: panic: cache is broken")

	require.Len(t, rec.events, 1)
	assert.Equal(t, "git status", rec.events[0].Data["query"])
	assert.NotEmpty(t, rec.events[0].Data["requestId"])

	// a recent success keeps the router healthy
	h = r.ForceHealthCheck(ctx)
	assert.Equal(t, router.StatusHealthy, h.Status)
	assert.Equal(t, int64(1), h.FailuresSinceSuccess)

	clk.Add(router.DefaultStaleAfter + time.Second)
	h = r.ForceHealthCheck(ctx)
	assert.Equal(t, router.StatusDegraded, h.Status)
	assert.Equal(t, []string{"1 failures without a successful suggestion in 10m0s"}, h.Reasons)

	cache.broken.Store(false)
	_, err = r.Suggest(ctx, &model.SuggestionRequest{Query: "list files"})
	require.NoError(t, err)
	h = r.ForceHealthCheck(ctx)
	assert.Equal(t, router.StatusHealthy, h.Status)
	assert.Equal(t, int64(0), h.FailuresSinceSuccess)

	st := r.GetPerformanceStats(ctx)
	assert.Equal(t, int64(3), st.TotalRequests)
	assert.Equal(t, int64(2), st.SuccessfulRequests)
	assert.Equal(t, int64(1), st.FailedRequests)
}

func TestStartHealthMonitor(t *testing.T) {
	reg := newRegistry(t, defaultTools()[0])
	rec := &recorder{}
	em := events.NewEmitter()
	em.On(events.KindHealthChanged, rec)

	r, err := router.New(router.Config{HealthCheckSchedule: "@every 1s"}, reg, router.WithEmitter(em))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	assert.Equal(t, router.StatusHealthy, r.ForceHealthCheck(ctx).Status)
	reg.SetEnabled("git_status", false)

	done := make(chan error, 1)
	go func() {
		done <- r.StartHealthMonitor(ctx)
	}()

	assert.Eventually(t, func() bool {
		return len(rec.kinds()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("health monitor did not stop")
	}

	e := rec.last(events.KindHealthChanged)
	require.NotNil(t, e)
	assert.Equal(t, "unhealthy", e.Data["to"])
}
