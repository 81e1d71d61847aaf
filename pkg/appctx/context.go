// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"streamgate/pkg/cache"
	"streamgate/pkg/config"
	"streamgate/pkg/interfaces"
	"streamgate/pkg/logging"
	"streamgate/pkg/upstream"
)

// Context holds all application runtime dependencies.
// Pass this single struct to handlers instead of individual parameters.
type Context struct {
	Config   *config.Config
	Log      *logging.Logger
	Cache    cache.Cache
	Store    *upstream.Store
	Resolver interfaces.EmbedResolver
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	return &Context{
		Config: cfg,
		Log:    log,
	}
}

// WithCache sets the shared cache.
func (c *Context) WithCache(ca cache.Cache) *Context {
	c.Cache = ca
	return c
}

// WithStore sets the upstream store client.
func (c *Context) WithStore(s *upstream.Store) *Context {
	c.Store = s
	return c
}

// WithResolver sets the embed resolver.
func (c *Context) WithResolver(r interfaces.EmbedResolver) *Context {
	c.Resolver = r
	return c
}
