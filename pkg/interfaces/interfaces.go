// Package interfaces defines the core abstractions for the embed resolver
// and the streaming edge proxy. Provider resolvers implement these
// interfaces, keeping the system modular and easy to extend.
package interfaces

import (
	"context"
	"net/http"

	"streamgate/pkg/types"
)

// Resolver extracts direct media URLs from a provider's embed pages.
// Each supported embed host family has its own implementation.
//
// To add a new provider:
// 1. Create a new file in pkg/resolver/
// 2. Implement this interface
// 3. Register it in the resolver Registry (priority order matters)
type Resolver interface {
	// Name returns a unique identifier for this provider.
	Name() string

	// CanResolve returns true if this provider owns the embed URL's host.
	CanResolve(embedURL string) bool

	// Resolve fetches the embed page and extracts the direct media URL.
	Resolve(ctx context.Context, embedURL string) (*types.Resolution, error)
}

// EmbedResolver is the caller-facing resolution surface. Both the bare
// registry and its caching wrapper satisfy it.
type EmbedResolver interface {
	Resolve(ctx context.Context, embedURL string) (*types.Resolution, error)
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Logger defines the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
