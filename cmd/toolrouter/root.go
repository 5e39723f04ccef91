package main

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/catalog"
	"github.com/effective-security/toolrouter/config"
	"github.com/effective-security/toolrouter/events"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/router"
	"github.com/effective-security/toolrouter/store"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "cmd")

var logLevels = map[string]xlog.LogLevel{
	"TRACE":    xlog.TRACE,
	"DEBUG":    xlog.DEBUG,
	"INFO":     xlog.INFO,
	"NOTICE":   xlog.NOTICE,
	"WARNING":  xlog.WARNING,
	"ERROR":    xlog.ERROR,
	"CRITICAL": xlog.CRITICAL,
}

// app holds the global flags and the loaded configuration
type app struct {
	configFile string
	logLevel   string
	catalogs   []string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := new(app)
	cmd := &cobra.Command{
		Use:   "toolrouter",
		Short: "Suggest the most relevant tools for a free-text query",
		Long: `toolrouter ranks registered tools for a user query by lexical relevance,
caller context and tool priority, and serves the suggestions over HTTP.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: TRACE|DEBUG|INFO|NOTICE|WARNING|ERROR|CRITICAL")
	flags.StringSliceVar(&a.catalogs, "catalog", nil, "additional tool catalogue files")

	cmd.AddCommand(
		newServeCmd(a),
		newSuggestCmd(a),
		newListCmd(a),
		newSchemaCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = strings.ToUpper(a.logLevel)
	}
	cfg.Catalog.Files = append(cfg.Catalog.Files, a.catalogs...)
	if err = cfg.Validate(); err != nil {
		return err
	}

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(logLevels[cfg.LogLevel])

	a.cfg = cfg
	return nil
}

// loadRegistry returns the registry with the catalogue tools,
// tools that failed to register are logged and skipped.
func (a *app) loadRegistry() (*registry.Registry, error) {
	list, err := catalog.LoadFiles(a.cfg.Catalog.Files...)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	count, err := catalog.Register(reg, list)
	if err != nil {
		logger.KV(xlog.WARNING, "reason", "catalog", "registered", count, "err", err.Error())
	}
	return reg, nil
}

// newCache returns the configured cache backend,
// nil for the memory backend which is created by the router.
func (a *app) newCache(ctx context.Context, rc router.Config) (store.Cache, func(), error) {
	if a.cfg.Cache.Backend != config.CacheBackendRedis {
		return nil, func() {}, nil
	}

	opts, err := redis.ParseURL(a.cfg.Cache.RedisURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid redis URL")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "failed to connect to redis")
	}
	closer := func() {
		_ = client.Close()
	}
	return store.NewRedisCache(client, a.cfg.Cache.Prefix, rc.CacheTTL), closer, nil
}

// newRouter returns the router over the catalogue tools
func (a *app) newRouter(reg *registry.Registry, cache store.Cache, emitter *events.Emitter) (*router.Router, error) {
	rc, err := a.cfg.RouterConfig()
	if err != nil {
		return nil, err
	}
	opts := []router.Option{router.WithEmitter(emitter)}
	if cache != nil {
		opts = append(opts, router.WithCache(cache))
	}
	return router.New(rc, reg, opts...)
}
