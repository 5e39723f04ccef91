package main

import (
	"github.com/effective-security/toolrouter/events"
	"github.com/effective-security/toolrouter/server"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and the health monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
}

func (a *app) serve(cmd *cobra.Command) error {
	ctx := cmd.Context()

	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}
	rc, err := a.cfg.RouterConfig()
	if err != nil {
		return err
	}
	cache, closeCache, err := a.newCache(ctx, rc)
	if err != nil {
		return err
	}
	defer closeCache()

	emitter := events.NewEmitter()
	emitter.On(events.KindAll, events.NewPackageLogger(logger, xlog.DEBUG))

	r, err := a.newRouter(reg, cache, emitter)
	if err != nil {
		return err
	}

	read, write, err := a.cfg.ServerTimeouts()
	if err != nil {
		return err
	}
	srv := server.New(r,
		server.WithAddr(a.cfg.Server.ListenAddr),
		server.WithCORS(a.cfg.Server.CORS),
		server.WithTimeouts(read, write),
	)

	logger.KV(xlog.INFO,
		"status", "serving",
		"addr", a.cfg.Server.ListenAddr,
		"tools", reg.Len(),
		"cache", a.cfg.Cache.Backend,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return r.StartHealthMonitor(gctx)
	})
	return g.Wait()
}
