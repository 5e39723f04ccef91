// Package config provides the toolrouter service configuration.
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/matcher"
	"github.com/effective-security/toolrouter/router"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

// Defaults
const (
	DefaultListenAddr   = ":8080"
	DefaultReadTimeout  = "10s"
	DefaultWriteTimeout = "30s"
	DefaultCachePrefix  = "toolrouter"
	DefaultLogLevel     = "INFO"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config of the service
type Config struct {
	// LogLevel is the global log level: TRACE|DEBUG|INFO|NOTICE|WARNING|ERROR|CRITICAL
	LogLevel string        `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=TRACE DEBUG INFO NOTICE WARNING ERROR CRITICAL"`
	Server   ServerConfig  `json:"server" yaml:"server"`
	Router   RouterConfig  `json:"router" yaml:"router"`
	Cache    CacheConfig   `json:"cache" yaml:"cache"`
	Catalog  CatalogConfig `json:"catalog" yaml:"catalog"`
}

// ServerConfig specifies the HTTP server
type ServerConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" validate:"required"`
	// CORS enables permissive CORS headers
	CORS         bool   `json:"cors,omitempty" yaml:"cors,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty" validate:"omitempty,duration"`
	WriteTimeout string `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty" validate:"omitempty,duration"`
}

// RouterConfig specifies the suggestion router,
// zero values are replaced by the router defaults.
type RouterConfig struct {
	CacheTTL              string             `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty" validate:"omitempty,duration"`
	CacheMaxEntries       int                `json:"cache_max_entries,omitempty" yaml:"cache_max_entries,omitempty" validate:"min=0"`
	DefaultMaxSuggestions int                `json:"default_max_suggestions,omitempty" yaml:"default_max_suggestions,omitempty" validate:"min=0"`
	MaxSuggestionsLimit   int                `json:"max_suggestions_limit,omitempty" yaml:"max_suggestions_limit,omitempty" validate:"min=0"`
	HealthCacheTTL        string             `json:"health_cache_ttl,omitempty" yaml:"health_cache_ttl,omitempty" validate:"omitempty,duration"`
	StaleAfter            string             `json:"stale_after,omitempty" yaml:"stale_after,omitempty" validate:"omitempty,duration"`
	LatencyWindow         int                `json:"latency_window,omitempty" yaml:"latency_window,omitempty" validate:"min=0"`
	HealthCheckSchedule   string             `json:"health_check_schedule,omitempty" yaml:"health_check_schedule,omitempty"`
	RollbackEnabled       bool               `json:"rollback_enabled,omitempty" yaml:"rollback_enabled,omitempty"`
	ContextMode           string             `json:"context_mode,omitempty" yaml:"context_mode,omitempty" validate:"omitempty,oneof=boost exclusive"`
	Weights               map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// CacheConfig specifies the suggestion cache backend
type CacheConfig struct {
	Backend  string `json:"backend" yaml:"backend" validate:"oneof=memory redis"`
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" validate:"required_if=Backend redis"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// CatalogConfig specifies the tool catalogue files
type CatalogConfig struct {
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	cfg := new(Config)
	cfg.setDefaults()
	return cfg
}

// Load returns the configuration from file,
// empty file name returns the default configuration.
// Relative catalogue paths are resolved from the folder of the file.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		err := configloader.UnmarshalAndExpand(file, cfg)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %s", file)
		}
		dir := filepath.Dir(file)
		for i, f := range cfg.Catalog.Files {
			if f != "" && !filepath.IsAbs(f) {
				cfg.Catalog.Files[i] = filepath.Join(dir, f)
			}
		}
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	c.LogLevel = strings.ToUpper(values.StringsCoalesce(c.LogLevel, DefaultLogLevel))
	c.Server.ListenAddr = values.StringsCoalesce(c.Server.ListenAddr, DefaultListenAddr)
	c.Server.ReadTimeout = values.StringsCoalesce(c.Server.ReadTimeout, DefaultReadTimeout)
	c.Server.WriteTimeout = values.StringsCoalesce(c.Server.WriteTimeout, DefaultWriteTimeout)
	c.Cache.Backend = strings.ToLower(values.StringsCoalesce(c.Cache.Backend, CacheBackendMemory))
	c.Cache.Prefix = values.StringsCoalesce(c.Cache.Prefix, DefaultCachePrefix)

	d := router.DefaultConfig()
	c.Router.CacheTTL = values.StringsCoalesce(c.Router.CacheTTL, d.CacheTTL.String())
	c.Router.CacheMaxEntries = values.NumbersCoalesce(c.Router.CacheMaxEntries, d.CacheMaxEntries)
	c.Router.DefaultMaxSuggestions = values.NumbersCoalesce(c.Router.DefaultMaxSuggestions, d.DefaultMaxSuggestions)
	c.Router.MaxSuggestionsLimit = values.NumbersCoalesce(c.Router.MaxSuggestionsLimit, d.MaxSuggestionsLimit)
	c.Router.HealthCacheTTL = values.StringsCoalesce(c.Router.HealthCacheTTL, d.HealthCacheTTL.String())
	c.Router.StaleAfter = values.StringsCoalesce(c.Router.StaleAfter, d.StaleAfter.String())
	c.Router.LatencyWindow = values.NumbersCoalesce(c.Router.LatencyWindow, d.LatencyWindow)
	c.Router.HealthCheckSchedule = values.StringsCoalesce(c.Router.HealthCheckSchedule, d.HealthCheckSchedule)
	c.Router.ContextMode = strings.ToLower(values.StringsCoalesce(c.Router.ContextMode, string(d.ContextMode)))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// Validate returns error if the configuration is invalid
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "failed to validate config")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return errors.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, after, ok := strings.Cut(field, "."); ok {
		field = after
	}
	switch fe.Tag() {
	case "required", "required_if":
		return field + ": is required"
	case "duration":
		return fmt.Sprintf("%s: invalid duration %q", field, fe.Value())
	case "oneof":
		return field + ": must be one of [" + fe.Param() + "]"
	case "min":
		return field + ": must not be less than " + fe.Param()
	default:
		return field + ": failed on " + fe.Tag()
	}
}

// ServerTimeouts returns the read and write timeouts
func (c *Config) ServerTimeouts() (read time.Duration, write time.Duration, err error) {
	if read, err = parseDuration(c.Server.ReadTimeout); err != nil {
		return
	}
	write, err = parseDuration(c.Server.WriteTimeout)
	return
}

// RouterConfig returns the router configuration
func (c *Config) RouterConfig() (router.Config, error) {
	cfg := router.Config{
		CacheMaxEntries:       c.Router.CacheMaxEntries,
		CacheBackend:          c.Cache.Backend,
		DefaultMaxSuggestions: c.Router.DefaultMaxSuggestions,
		MaxSuggestionsLimit:   c.Router.MaxSuggestionsLimit,
		LatencyWindow:         c.Router.LatencyWindow,
		HealthCheckSchedule:   c.Router.HealthCheckSchedule,
		RollbackEnabled:       c.Router.RollbackEnabled,
		ContextMode:           matcher.Mode(c.Router.ContextMode),
		Weights:               c.Router.Weights,
	}

	var err error
	if cfg.CacheTTL, err = parseDuration(c.Router.CacheTTL); err != nil {
		return cfg, errors.WithMessage(err, "cache_ttl")
	}
	if cfg.HealthCacheTTL, err = parseDuration(c.Router.HealthCacheTTL); err != nil {
		return cfg, errors.WithMessage(err, "health_cache_ttl")
	}
	if cfg.StaleAfter, err = parseDuration(c.Router.StaleAfter); err != nil {
		return cfg, errors.WithMessage(err, "stale_after")
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration")
	}
	return d, nil
}
