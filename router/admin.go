package router

import (
	"context"

	"github.com/effective-security/toolrouter/events"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/xlog"
)

// CacheStats describes the response cache
type CacheStats struct {
	Size    int     `json:"size" yaml:"size"`
	MaxSize int     `json:"maxSize" yaml:"maxSize"`
	TTL     string  `json:"ttl" yaml:"ttl"`
	Backend string  `json:"backend" yaml:"backend"`
	Hits    int64   `json:"hits" yaml:"hits"`
	Misses  int64   `json:"misses" yaml:"misses"`
	HitRate float64 `json:"hitRate" yaml:"hitRate"`
}

// RegisterTool adds the tool to the registry and clears the cache
func (r *Router) RegisterTool(ctx context.Context, tool *tools.Tool) error {
	if err := r.registry.Register(tool); err != nil {
		return err
	}
	metricskey.StatsRegistryChanges.IncrCounter(1, "register")
	r.onRegistryChanged(ctx)
	r.emitter.Emit(ctx, events.New(events.KindToolRegistered, map[string]any{
		"tool":     tool.Name,
		"category": tool.Category,
	}))
	return nil
}

// UnregisterTool removes the tool, returns false if it is not registered
func (r *Router) UnregisterTool(ctx context.Context, name string) bool {
	if !r.registry.Unregister(name) {
		return false
	}
	metricskey.StatsRegistryChanges.IncrCounter(1, "unregister")
	r.onRegistryChanged(ctx)
	r.emitter.Emit(ctx, events.New(events.KindToolUnregistered, map[string]any{
		"tool": name,
	}))
	return true
}

// SetToolEnabled enables or disables the tool, returns false if it is not registered
func (r *Router) SetToolEnabled(ctx context.Context, name string, enabled bool) bool {
	if !r.registry.SetEnabled(name, enabled) {
		return false
	}
	metricskey.StatsRegistryChanges.IncrCounter(1, "update")
	r.onRegistryChanged(ctx)
	r.emitter.Emit(ctx, events.New(events.KindToolUpdated, map[string]any{
		"tool":    name,
		"enabled": enabled,
	}))
	return true
}

func (r *Router) onRegistryChanged(ctx context.Context) {
	r.invalidateHealth()
	if _, err := r.ClearCache(ctx); err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "clear_cache", "err", err.Error())
	}
}

// ClearCache removes all cached responses, returns the number of removed entries
func (r *Router) ClearCache(ctx context.Context) (int, error) {
	n, err := r.cache.Clear(ctx)
	if err != nil {
		r.stats.cacheErrors.Add(1)
		metricskey.StatsCacheErrors.IncrCounter(1, "clear")
		return 0, &InternalError{Cause: err}
	}
	r.emitter.Emit(ctx, events.New(events.KindCacheCleared, map[string]any{
		"entries": n,
	}))
	return n, nil
}

// CacheStats returns the cache size and hit counters
func (r *Router) CacheStats(ctx context.Context) CacheStats {
	hits := r.stats.hits.Load()
	misses := r.stats.misses.Load()
	return CacheStats{
		Size:    r.cacheSize(ctx),
		MaxSize: r.cfg.CacheMaxEntries,
		TTL:     r.cfg.CacheTTL.String(),
		Backend: r.cfg.CacheBackend,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}
}
