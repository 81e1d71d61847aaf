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

// FilemoonResolver extracts streams from Filemoon embed pages.
//
// Filemoon hides its JWPlayer setup inside a P.A.C.K.E.R.-packed script;
// unpacking it exposes a sources list with the HLS manifest URL.
type FilemoonResolver struct {
	*BaseResolver
	log *logging.Logger
}

// NewFilemoonResolver creates a new Filemoon resolver.
func NewFilemoonResolver(client *httpclient.Client, log *logging.Logger) *FilemoonResolver {
	return &FilemoonResolver{
		BaseResolver: NewBaseResolver(client, log),
		log:          log.WithComponent("filemoon-resolver"),
	}
}

// Name returns the provider name.
func (r *FilemoonResolver) Name() string {
	return "filemoon"
}

// CanResolve returns true for Filemoon embed URLs.
func (r *FilemoonResolver) CanResolve(embedURL string) bool {
	lower := strings.ToLower(embedURL)
	return strings.Contains(lower, "filemoon.") ||
		strings.Contains(lower, "moonmov.") ||
		strings.Contains(lower, "kerapoxy.")
}

// Resolve fetches the embed page, unpacks the player script, and pulls
// the manifest URL out of the sources list.
func (r *FilemoonResolver) Resolve(ctx context.Context, embedURL string) (*types.Resolution, error) {
	r.log.Debug("resolving filemoon embed", "url", embedURL)

	headers := embedHeaders(embedURL)
	html, err := r.FetchPage(ctx, embedURL, headers)
	if err != nil {
		return nil, err
	}

	streamURL, err := r.extractStreamURL(html)
	if err != nil {
		return nil, err
	}
	streamURL = urlutil.Normalize(streamURL, embedURL)

	if _, err := url.ParseRequestURI(streamURL); err != nil {
		return nil, fmt.Errorf("%w: extracted value is not a URL", ErrExtractionFailed)
	}

	return types.NewResolution(streamURL, headers), nil
}

var filemoonSourceRe = regexp.MustCompile(`(?:file|src)\s*:\s*["']([^"']+\.(?:m3u8|mp4)[^"']*)["']`)

// extractStreamURL unpacks the player script and matches the sources list.
func (r *FilemoonResolver) extractStreamURL(html string) (string, error) {
	if packed := findPacked(html); packed != "" {
		unpacked, err := unpack(packed)
		if err != nil {
			r.log.Debug("failed to unpack player script", "error", err)
		} else {
			html = unpacked
		}
	}

	if match := filemoonSourceRe.FindStringSubmatch(html); len(match) > 1 {
		return match[1], nil
	}

	return "", fmt.Errorf("%w: no sources entry in player script", ErrExtractionFailed)
}

var _ interfaces.Resolver = (*FilemoonResolver)(nil)
