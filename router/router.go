package router

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/events"
	"github.com/effective-security/toolrouter/matcher"
	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/scoring"
	"github.com/effective-security/toolrouter/store"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "router")

// Router serves tool suggestions.
// Router is safe for concurrent use.
type Router struct {
	cfg      Config
	registry *registry.Registry
	matcher  *matcher.Matcher
	engine   *scoring.Engine
	cache    store.Cache
	emitter  *events.Emitter
	now      func() time.Time

	rollback atomic.Bool
	stats    *perfStats
	health   healthState

	// lastSuccess is unix nano time of the last successful suggestion
	lastSuccess atomic.Int64
	// failuresSinceSuccess counts internal failures after the last success
	failuresSinceSuccess atomic.Int64
}

// Option configures the router
type Option func(*Router)

// WithCache sets the response cache, the memory cache is used by default
func WithCache(c store.Cache) Option {
	return func(r *Router) {
		r.cache = c
	}
}

// WithEmitter sets the event emitter
func WithEmitter(e *events.Emitter) Option {
	return func(r *Router) {
		r.emitter = e
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// New returns a router over the registry
func New(cfg Config, reg *registry.Registry, opts ...Option) (*Router, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid router configuration")
	}

	r := &Router{
		cfg:      cfg,
		registry: reg,
		matcher:  matcher.New(cfg.ContextMode),
		engine:   scoring.NewEngine(cfg.Weights),
		now:      time.Now,
		stats:    newPerfStats(cfg.LatencyWindow),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = store.NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheTTL)
	}
	if r.emitter == nil {
		r.emitter = events.NewEmitter()
	}
	r.rollback.Store(cfg.RollbackEnabled)
	return r, nil
}

// Registry returns the tool registry
func (r *Router) Registry() *registry.Registry {
	return r.registry
}

// Emitter returns the event emitter
func (r *Router) Emitter() *events.Emitter {
	return r.emitter
}

// Suggest returns tools ranked for the request.
// It returns *tools.ValidationError for malformed request,
// or *InternalError for unexpected failure.
func (r *Router) Suggest(ctx context.Context, req *model.SuggestionRequest) (*model.SuggestionResponse, error) {
	started := r.now()
	r.stats.total.Add(1)

	query, limit, err := r.validateRequest(req)
	if err != nil {
		r.stats.failed.Add(1)
		metricskey.StatsSuggestFailed.IncrCounter(1, "validation")
		logger.ContextKV(ctx, xlog.DEBUG, "reason", "invalid_request", "err", err.Error())
		return nil, err
	}

	requestID := model.NewRequestID()
	ctx = model.WithRequestID(ctx, requestID)

	mode := model.ModeNormal
	if r.rollback.Load() {
		mode = model.ModeRollback
	}

	resp, err := r.suggest(ctx, query, req, limit, mode)
	if err != nil {
		r.onFailure(ctx, query, err)
		return nil, err
	}

	elapsed := r.now().Sub(started)
	resp.RequestID = requestID
	resp.ProcessingTime = toMillis(elapsed)
	r.onSuccess(ctx, resp, elapsed)
	return resp, nil
}

func (r *Router) validateRequest(req *model.SuggestionRequest) (string, int, error) {
	if req == nil {
		return "", 0, tools.NewValidationError("request", "request is nil")
	}
	var violations []string
	query := strings.TrimSpace(req.Query)
	if query == "" {
		violations = append(violations, "query: is required")
	}
	if req.MaxSuggestions < 0 {
		violations = append(violations, "maxSuggestions: must not be less than 0")
	}
	if len(violations) > 0 {
		return "", 0, tools.NewValidationError("request", violations...)
	}

	limit := req.MaxSuggestions
	if limit == 0 {
		limit = r.cfg.DefaultMaxSuggestions
	}
	limit = min(limit, r.cfg.MaxSuggestionsLimit)
	return query, limit, nil
}

func (r *Router) suggest(ctx context.Context, query string, req *model.SuggestionRequest, limit int, mode model.Mode) (resp *model.SuggestionResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"reason", "panic",
				"err", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
			resp = nil
			err = &InternalError{Cause: errors.Errorf("panic: %v", rec)}
		}
	}()

	key, err := CacheKey(query, req.Context, limit, req.MinScore, mode)
	if err != nil {
		return nil, &InternalError{Cause: err}
	}

	if entry := r.cacheGet(ctx, key); entry != nil {
		resp = entry.Response.Clone()
		resp.CacheInfo = model.CacheInfo{
			Hit: true,
			Key: key,
			Age: toMillis(entry.Age(r.now())),
		}
		return resp, nil
	}

	candidates := r.matcher.GetContextualTools(r.registry.GetEnabledTools(), req.Context)

	var scores []model.ToolScore
	if mode == model.ModeRollback {
		scores = r.engine.RankByPriority(query, candidates, req.Context)
	} else {
		scores = r.engine.ScoreTools(query, candidates, req.Context)
		if req.MinScore > 0 {
			filtered := scores[:0]
			for _, s := range scores {
				if s.Score >= req.MinScore {
					filtered = append(filtered, s)
				}
			}
			scores = filtered
		}
	}
	if len(scores) > limit {
		scores = scores[:limit]
	}

	resp = &model.SuggestionResponse{
		Suggestions:          scores,
		Query:                query,
		TotalToolsConsidered: len(candidates),
		Mode:                 mode,
		CacheInfo:            model.CacheInfo{Key: key},
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []model.ToolScore{}
	}

	r.cacheSet(ctx, key, &store.Entry{
		Response: resp.Clone(),
		StoredAt: r.now(),
	})
	return resp, nil
}

// cacheGet returns a fresh entry, or nil on miss or cache failure
func (r *Router) cacheGet(ctx context.Context, key string) *store.Entry {
	entry, err := r.cache.Get(ctx, key)
	if err != nil {
		r.stats.cacheErrors.Add(1)
		metricskey.StatsCacheErrors.IncrCounter(1, "get")
		logger.ContextKV(ctx, xlog.ERROR, "reason", "cache_get", "key", key, "err", err.Error())
	}
	if entry == nil || entry.Response == nil || entry.Expired(r.now(), r.cfg.CacheTTL) {
		r.stats.misses.Add(1)
		metricskey.StatsCacheMisses.IncrCounter(1, r.cfg.CacheBackend)
		return nil
	}
	r.stats.hits.Add(1)
	metricskey.StatsCacheHits.IncrCounter(1, r.cfg.CacheBackend)
	return entry
}

func (r *Router) cacheSet(ctx context.Context, key string, entry *store.Entry) {
	if err := r.cache.Set(ctx, key, entry); err != nil {
		r.stats.cacheErrors.Add(1)
		metricskey.StatsCacheErrors.IncrCounter(1, "set")
		logger.ContextKV(ctx, xlog.ERROR, "reason", "cache_set", "key", key, "err", err.Error())
	}
}

func (r *Router) onSuccess(ctx context.Context, resp *model.SuggestionResponse, elapsed time.Duration) {
	r.stats.successful.Add(1)
	if resp.Mode == model.ModeRollback {
		r.stats.rollbackServed.Add(1)
	}
	r.stats.observe(toMillis(elapsed))
	r.lastSuccess.Store(r.now().UnixNano())
	r.failuresSinceSuccess.Store(0)

	metricskey.StatsSuggestRequests.IncrCounter(1, string(resp.Mode))
	metricskey.PerfSuggest.MeasureSince(r.now().Add(-elapsed), string(resp.Mode))

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "served",
		"request_id", resp.RequestID,
		"mode", resp.Mode,
		"suggestions", len(resp.Suggestions),
		"cache_hit", resp.CacheInfo.Hit,
		"elapsed", elapsed.String(),
	)

	r.emitter.Emit(ctx, events.New(events.KindSuggestionServed, map[string]any{
		"requestId":      resp.RequestID,
		"query":          resp.Query,
		"mode":           string(resp.Mode),
		"suggestions":    resp.ToolNames(),
		"cacheHit":       resp.CacheInfo.Hit,
		"processingTime": resp.ProcessingTime,
	}))
}

func (r *Router) onFailure(ctx context.Context, query string, err error) {
	r.stats.failed.Add(1)
	r.failuresSinceSuccess.Add(1)
	metricskey.StatsSuggestFailed.IncrCounter(1, "internal")

	logger.ContextKV(ctx, xlog.ERROR,
		"reason", "suggest",
		"request_id", model.GetRequestID(ctx),
		"err", err.Error(),
	)

	r.emitter.Emit(ctx, events.New(events.KindSuggestionFailed, map[string]any{
		"requestId": model.GetRequestID(ctx),
		"query":     query,
		"error":     err.Error(),
	}))
}

type cacheKeyInput struct {
	Query          string         `json:"query"`
	Context        *model.Context `json:"context"`
	MaxSuggestions int            `json:"maxSuggestions"`
	MinScore       float64        `json:"minScore"`
	Mode           model.Mode     `json:"mode"`
}

// CacheKey returns the deterministic cache key of the request.
// A nil context and an empty context produce the same key.
func CacheKey(query string, c *model.Context, maxSuggestions int, minScore float64, mode model.Mode) (string, error) {
	if c == nil {
		c = &model.Context{}
	}
	js, err := json.Marshal(cacheKeyInput{
		Query:          query,
		Context:        c,
		MaxSuggestions: maxSuggestions,
		MinScore:       minScore,
		Mode:           mode,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode cache key")
	}
	return strconv.FormatUint(xxhash.Sum64(js), 16), nil
}

func toMillis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
