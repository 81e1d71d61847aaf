package resolver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"streamgate/pkg/httpclient"
	"streamgate/pkg/interfaces"
	"streamgate/pkg/logging"
	"streamgate/pkg/types"
	"streamgate/pkg/urlutil"
)

// StreamwishResolver extracts streams from Streamwish embed pages.
//
// Streamwish serves a plain JWPlayer setup with a JSON sources blob in a
// script tag, occasionally wrapped in the same packed-script compressor
// Filemoon uses. Matching keys on the narrowest stable token keeps the
// extraction alive across their frequent markup reshuffles.
type StreamwishResolver struct {
	*BaseResolver
	log *logging.Logger
}

// NewStreamwishResolver creates a new Streamwish resolver.
func NewStreamwishResolver(client *httpclient.Client, log *logging.Logger) *StreamwishResolver {
	return &StreamwishResolver{
		BaseResolver: NewBaseResolver(client, log),
		log:          log.WithComponent("streamwish-resolver"),
	}
}

// Name returns the provider name.
func (r *StreamwishResolver) Name() string {
	return "streamwish"
}

// CanResolve returns true for Streamwish embed URLs.
func (r *StreamwishResolver) CanResolve(embedURL string) bool {
	lower := strings.ToLower(embedURL)
	return strings.Contains(lower, "streamwish.") ||
		strings.Contains(lower, "embedwish.") ||
		strings.Contains(lower, "wishfast.") ||
		strings.Contains(lower, "swishsrv.")
}

var streamwishFileRe = regexp.MustCompile(`["']?file["']?\s*:\s*["']([^"']+)["']`)

// Resolve fetches the embed page and pulls the first file entry out of
// the player sources.
func (r *StreamwishResolver) Resolve(ctx context.Context, embedURL string) (*types.Resolution, error) {
	r.log.Debug("resolving streamwish embed", "url", embedURL)

	headers := embedHeaders(embedURL)
	html, err := r.FetchPage(ctx, embedURL, headers)
	if err != nil {
		return nil, err
	}

	if packed := findPacked(html); packed != "" {
		if unpacked, err := unpack(packed); err == nil {
			html = unpacked
		}
	}

	match := streamwishFileRe.FindStringSubmatch(html)
	if len(match) < 2 {
		return nil, fmt.Errorf("%w: no file entry in player sources", ErrExtractionFailed)
	}

	streamURL := urlutil.Normalize(match[1], embedURL)
	if _, err := url.ParseRequestURI(streamURL); err != nil {
		return nil, fmt.Errorf("%w: extracted value is not a URL", ErrExtractionFailed)
	}

	return types.NewResolution(streamURL, headers), nil
}

var _ interfaces.Resolver = (*StreamwishResolver)(nil)
