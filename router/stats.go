package router

import (
	"context"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/xlog"
)

// PerformanceStats are running aggregates of suggest calls.
// Processing times are in milliseconds over the latency window.
type PerformanceStats struct {
	TotalRequests         int64     `json:"totalRequests" yaml:"totalRequests"`
	SuccessfulRequests    int64     `json:"successfulRequests" yaml:"successfulRequests"`
	FailedRequests        int64     `json:"failedRequests" yaml:"failedRequests"`
	CacheHits             int64     `json:"cacheHits" yaml:"cacheHits"`
	CacheMisses           int64     `json:"cacheMisses" yaml:"cacheMisses"`
	CacheErrors           int64     `json:"cacheErrors" yaml:"cacheErrors"`
	CacheHitRate          float64   `json:"cacheHitRate" yaml:"cacheHitRate"`
	CacheSize             int       `json:"cacheSize" yaml:"cacheSize"`
	RollbackRequests      int64     `json:"rollbackRequests" yaml:"rollbackRequests"`
	AverageProcessingTime float64   `json:"averageProcessingTime" yaml:"averageProcessingTime"`
	P95ProcessingTime     float64   `json:"p95ProcessingTime" yaml:"p95ProcessingTime"`
	P99ProcessingTime     float64   `json:"p99ProcessingTime" yaml:"p99ProcessingTime"`
	Samples               int       `json:"samples" yaml:"samples"`
	Since                 time.Time `json:"since" yaml:"since"`
}

type perfStats struct {
	total          atomic.Int64
	successful     atomic.Int64
	failed         atomic.Int64
	hits           atomic.Int64
	misses         atomic.Int64
	cacheErrors    atomic.Int64
	rollbackServed atomic.Int64

	lock    sync.Mutex
	since   time.Time
	window  []float64
	next    int
	samples int
}

func newPerfStats(window int) *perfStats {
	return &perfStats{
		since:  time.Now().UTC(),
		window: make([]float64, window),
	}
}

// observe records a processing time in milliseconds
func (s *perfStats) observe(ms float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.window) == 0 {
		return
	}
	s.window[s.next] = ms
	s.next = (s.next + 1) % len(s.window)
	if s.samples < len(s.window) {
		s.samples++
	}
}

func (s *perfStats) snapshot() PerformanceStats {
	st := PerformanceStats{
		TotalRequests:      s.total.Load(),
		SuccessfulRequests: s.successful.Load(),
		FailedRequests:     s.failed.Load(),
		CacheHits:          s.hits.Load(),
		CacheMisses:        s.misses.Load(),
		CacheErrors:        s.cacheErrors.Load(),
		RollbackRequests:   s.rollbackServed.Load(),
	}
	st.CacheHitRate = hitRate(st.CacheHits, st.CacheMisses)

	s.lock.Lock()
	st.Since = s.since
	sorted := slices.Clone(s.window[:s.samples])
	s.lock.Unlock()

	st.Samples = len(sorted)
	if len(sorted) > 0 {
		slices.Sort(sorted)
		var sum float64
		for _, v := range sorted {
			sum += v
		}
		st.AverageProcessingTime = round3(sum / float64(len(sorted)))
		st.P95ProcessingTime = percentile(sorted, 95)
		st.P99ProcessingTime = percentile(sorted, 99)
	}
	return st
}

func (s *perfStats) reset() {
	s.total.Store(0)
	s.successful.Store(0)
	s.failed.Store(0)
	s.hits.Store(0)
	s.misses.Store(0)
	s.cacheErrors.Store(0)
	s.rollbackServed.Store(0)

	s.lock.Lock()
	defer s.lock.Unlock()
	clear(s.window)
	s.next = 0
	s.samples = 0
	s.since = time.Now().UTC()
}

// percentile returns the nearest-rank percentile of sorted values
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// hitRate returns the hit rate in percent
func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*10000) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// GetPerformanceStats returns the running aggregates
func (r *Router) GetPerformanceStats(ctx context.Context) PerformanceStats {
	st := r.stats.snapshot()
	st.CacheSize = r.cacheSize(ctx)
	return st
}

// ResetPerformanceStats resets the counters and the latency window
func (r *Router) ResetPerformanceStats(ctx context.Context) {
	r.stats.reset()
	logger.ContextKV(ctx, xlog.WARNING, "reason", "performance_stats_reset")
}

func (r *Router) cacheSize(ctx context.Context) int {
	n, err := r.cache.Len(ctx)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "cache_len", "err", err.Error())
		return 0
	}
	return n
}
