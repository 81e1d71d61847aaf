// Package app wires configuration, logging, caches, the resolver
// registry and the HTTP server into a runnable application.
package app

import (
	"context"
	"net/http"
	"os"

	"streamgate/pkg/appctx"
	"streamgate/pkg/cache"
	"streamgate/pkg/config"
	"streamgate/pkg/handlers/api"
	"streamgate/pkg/handlers/edge"
	"streamgate/pkg/httpclient"
	"streamgate/pkg/logging"
	"streamgate/pkg/metrics"
	"streamgate/pkg/middleware"
	"streamgate/pkg/resolver"
	"streamgate/pkg/server"
	"streamgate/pkg/upstream"
)

// App is the assembled application.
type App struct {
	ctx    *appctx.Context
	server *server.Server
	log    *logging.Logger
}

// New builds the application from environment configuration.
func New() *App {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogJSON, os.Stdout)

	metrics.Init()

	client := httpclient.New(cfg, log)
	store := upstream.New(cfg, client, log)
	shared := cache.NewMemory()

	registry := resolver.NewRegistry()
	registerResolvers(registry, client, log)
	cached := resolver.NewCached(registry, shared, cfg.ResolverCacheTTL, log)

	ctx := appctx.New(cfg, log).
		WithCache(shared).
		WithStore(store).
		WithResolver(cached)

	handler := buildHandler(ctx)
	srv := server.New(cfg, handler, log)

	return &App{ctx: ctx, server: srv, log: log}
}

// registerResolvers installs the provider extraction strategies.
// Registration order is match priority.
func registerResolvers(registry *resolver.Registry, client *httpclient.Client, log *logging.Logger) {
	registry.Register(resolver.NewVidfastResolver(client, log))
	registry.Register(resolver.NewFilemoonResolver(client, log))
	registry.Register(resolver.NewStreamwishResolver(client, log))
	registry.Register(resolver.NewDoodstreamResolver(client, log))
}

// buildHandler assembles the route table. The edge proxy is the
// catch-all; the JSON API and metrics endpoints take the more specific
// patterns.
func buildHandler(ctx *appctx.Context) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/", edge.New(ctx))
	mux.Handle("GET /metrics", metrics.Handler())
	api.New(ctx).Register(mux)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging(ctx.Log),
		middleware.Metrics,
		middleware.Recovery(ctx.Config, ctx.Log),
	)
}

// Run starts the server and blocks until it stops.
func (a *App) Run() error {
	a.log.Info("starting streamgate",
		"port", a.ctx.Config.Port,
		"providers", len(a.providerNames()),
	)
	return a.server.Start()
}

func (a *App) providerNames() []string {
	type lister interface{ Providers() []string }
	if l, ok := a.ctx.Resolver.(lister); ok {
		return l.Providers()
	}
	return nil
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
