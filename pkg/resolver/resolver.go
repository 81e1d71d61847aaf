// Package resolver turns opaque third-party embed page URLs into direct,
// playable media URLs.
//
// Each embed host family exposes the direct link differently: some embed
// it as a JSON blob inside a script tag, some require a follow-up API
// call with parameters scraped from the page, some obfuscate the URL with
// reversible encoding. A Registry holds one provider per family, tried in
// registration order; the first provider whose host pattern matches is
// used, with no fallthrough to other providers on extraction failure.
// Blind fallback risks returning an unrelated URL.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"streamgate/pkg/interfaces"
	"streamgate/pkg/types"
)

// Sentinel errors forming the resolver's failure taxonomy. Callers
// distinguish them with errors.Is.
var (
	// ErrInvalidInput means the embed URL did not parse as an absolute URL.
	// Caller error, not retryable.
	ErrInvalidInput = errors.New("invalid embed url")

	// ErrNoProvider means no registered provider matches the URL's host.
	ErrNoProvider = errors.New("no provider for embed url")

	// ErrFetchFailed means the embed page (or a follow-up call) could not
	// be fetched. Retryable by the caller; never retried internally.
	ErrFetchFailed = errors.New("embed page fetch failed")

	// ErrExtractionFailed means the page was fetched but the expected
	// extraction pattern was absent. The provider changed its markup;
	// surface to operators instead of retrying.
	ErrExtractionFailed = errors.New("extraction pattern not found")
)

// Registry holds provider resolvers in priority order.
//
// Unlike a generic fallback chain, the registry is deliberately closed:
// an unmatched host yields ErrNoProvider without any outbound fetch, and
// a matched provider that fails to extract is terminal.
type Registry struct {
	mu        sync.RWMutex
	resolvers []interfaces.Resolver
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a provider. Registration order is priority order;
// register more specific host patterns first.
func (r *Registry) Register(res interfaces.Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers = append(r.resolvers, res)
}

// Get returns the first provider whose host pattern matches, or nil.
func (r *Registry) Get(embedURL string) interfaces.Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, res := range r.resolvers {
		if res.CanResolve(embedURL) {
			return res
		}
	}
	return nil
}

// All returns all registered providers.
func (r *Registry) All() []interfaces.Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]interfaces.Resolver, len(r.resolvers))
	copy(result, r.resolvers)
	return result
}

// Providers returns the names of all registered providers in priority order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resolvers))
	for _, res := range r.resolvers {
		names = append(names, res.Name())
	}
	return names
}

// Resolve validates the embed URL, picks the matching provider, and runs
// its extraction. No outbound request is made when validation or provider
// matching fails.
func (r *Registry) Resolve(ctx context.Context, embedURL string) (*types.Resolution, error) {
	parsed, err := url.Parse(embedURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInput, embedURL)
	}

	res := r.Get(embedURL)
	if res == nil {
		return nil, fmt.Errorf("%w: host %q", ErrNoProvider, parsed.Host)
	}

	return res.Resolve(ctx, embedURL)
}

var _ interfaces.EmbedResolver = (*Registry)(nil)
