package router

import (
	"maps"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/matcher"
	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/scoring"
	"github.com/effective-security/toolrouter/store"
	"github.com/robfig/cron/v3"
)

// Defaults
const (
	DefaultCacheTTL            = 60 * time.Second
	DefaultMaxSuggestionsLimit = 50
	DefaultHealthCacheTTL      = 5 * time.Second
	DefaultStaleAfter          = 10 * time.Minute
	DefaultLatencyWindow       = 1000
	DefaultHealthCheckSchedule = "@every 30s"
)

// Config of the router
type Config struct {
	// CacheTTL is the freshness window of cached responses
	CacheTTL time.Duration
	// CacheMaxEntries is the size of the memory cache
	CacheMaxEntries int
	// CacheBackend is the cache name reported in metrics
	CacheBackend string
	// DefaultMaxSuggestions is used when the request does not specify the limit
	DefaultMaxSuggestions int
	// MaxSuggestionsLimit caps the requested limit
	MaxSuggestionsLimit int
	// HealthCacheTTL is how long a health snapshot is served before recompute
	HealthCacheTTL time.Duration
	// StaleAfter is the age of the last successful suggestion
	// after which failures degrade the health
	StaleAfter time.Duration
	// LatencyWindow is the number of latency samples used for percentiles
	LatencyWindow int
	// HealthCheckSchedule is the cron spec of the health monitor
	HealthCheckSchedule string
	// RollbackEnabled is the initial emergency rollback state
	RollbackEnabled bool
	// ContextMode is the context matcher mode
	ContextMode matcher.Mode
	// Weights overrides the scoring weights
	Weights map[string]float64
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		CacheTTL:              DefaultCacheTTL,
		CacheMaxEntries:       store.DefaultMaxEntries,
		CacheBackend:          "memory",
		DefaultMaxSuggestions: model.DefaultMaxSuggestions,
		MaxSuggestionsLimit:   DefaultMaxSuggestionsLimit,
		HealthCacheTTL:        DefaultHealthCacheTTL,
		StaleAfter:            DefaultStaleAfter,
		LatencyWindow:         DefaultLatencyWindow,
		HealthCheckSchedule:   DefaultHealthCheckSchedule,
		ContextMode:           matcher.ModeBoost,
	}
}

// withDefaults returns a copy of the config with zero values replaced by defaults
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CacheTTL == 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheMaxEntries == 0 {
		c.CacheMaxEntries = d.CacheMaxEntries
	}
	if c.CacheBackend == "" {
		c.CacheBackend = d.CacheBackend
	}
	if c.DefaultMaxSuggestions == 0 {
		c.DefaultMaxSuggestions = d.DefaultMaxSuggestions
	}
	if c.MaxSuggestionsLimit == 0 {
		c.MaxSuggestionsLimit = d.MaxSuggestionsLimit
	}
	if c.HealthCacheTTL == 0 {
		c.HealthCacheTTL = d.HealthCacheTTL
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.LatencyWindow == 0 {
		c.LatencyWindow = d.LatencyWindow
	}
	if c.HealthCheckSchedule == "" {
		c.HealthCheckSchedule = d.HealthCheckSchedule
	}
	if c.ContextMode == "" {
		c.ContextMode = d.ContextMode
	}
	c.Weights = maps.Clone(c.Weights)
	return c
}

// validate checks the config and normalizes the context mode
func (c *Config) validate() error {
	if c.CacheTTL < 0 || c.HealthCacheTTL < 0 || c.StaleAfter < 0 {
		return errors.New("durations must not be negative")
	}
	if c.CacheMaxEntries < 0 || c.LatencyWindow < 0 {
		return errors.New("cache and latency window sizes must not be negative")
	}
	if c.DefaultMaxSuggestions < 0 || c.MaxSuggestionsLimit < 0 {
		return errors.New("suggestion limits must not be negative")
	}
	if c.DefaultMaxSuggestions > c.MaxSuggestionsLimit {
		return errors.Errorf("default max suggestions %d exceeds the limit %d",
			c.DefaultMaxSuggestions, c.MaxSuggestionsLimit)
	}
	mode, err := matcher.ParseMode(string(c.ContextMode))
	if err != nil {
		return err
	}
	c.ContextMode = mode
	if _, err := cron.ParseStandard(c.HealthCheckSchedule); err != nil {
		return errors.Wrapf(err, "invalid health check schedule %q", c.HealthCheckSchedule)
	}
	for k := range c.Weights {
		if _, ok := scoring.DefaultWeights()[k]; !ok {
			return errors.Errorf("unknown scoring weight: %q", k)
		}
	}
	return nil
}

// Configuration is the effective router configuration
type Configuration struct {
	CacheTTL              string             `json:"cacheTtl" yaml:"cacheTtl"`
	CacheMaxEntries       int                `json:"cacheMaxEntries" yaml:"cacheMaxEntries"`
	CacheBackend          string             `json:"cacheBackend" yaml:"cacheBackend"`
	DefaultMaxSuggestions int                `json:"defaultMaxSuggestions" yaml:"defaultMaxSuggestions"`
	MaxSuggestionsLimit   int                `json:"maxSuggestionsLimit" yaml:"maxSuggestionsLimit"`
	HealthCacheTTL        string             `json:"healthCacheTtl" yaml:"healthCacheTtl"`
	StaleAfter            string             `json:"staleAfter" yaml:"staleAfter"`
	LatencyWindow         int                `json:"latencyWindow" yaml:"latencyWindow"`
	HealthCheckSchedule   string             `json:"healthCheckSchedule" yaml:"healthCheckSchedule"`
	RollbackEnabled       bool               `json:"rollbackEnabled" yaml:"rollbackEnabled"`
	ContextMode           matcher.Mode       `json:"contextMode" yaml:"contextMode"`
	Weights               map[string]float64 `json:"weights" yaml:"weights"`
}

// Configuration returns the effective configuration,
// RollbackEnabled reflects the current state.
func (r *Router) Configuration() Configuration {
	return Configuration{
		CacheTTL:              r.cfg.CacheTTL.String(),
		CacheMaxEntries:       r.cfg.CacheMaxEntries,
		CacheBackend:          r.cfg.CacheBackend,
		DefaultMaxSuggestions: r.cfg.DefaultMaxSuggestions,
		MaxSuggestionsLimit:   r.cfg.MaxSuggestionsLimit,
		HealthCacheTTL:        r.cfg.HealthCacheTTL.String(),
		StaleAfter:            r.cfg.StaleAfter.String(),
		LatencyWindow:         r.cfg.LatencyWindow,
		HealthCheckSchedule:   r.cfg.HealthCheckSchedule,
		RollbackEnabled:       r.IsRollbackEnabled(),
		ContextMode:           r.matcher.Mode(),
		Weights:               r.engine.Weights(),
	}
}
