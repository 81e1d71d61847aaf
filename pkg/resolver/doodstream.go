package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"time"

	"streamgate/pkg/httpclient"
	"streamgate/pkg/interfaces"
	"streamgate/pkg/logging"
	"streamgate/pkg/types"
	"streamgate/pkg/urlutil"
)

// DoodstreamResolver extracts streams from Doodstream embed pages.
//
// Doodstream never puts the media URL in the page. The player script
// holds a one-shot /pass_md5/ path; fetching it (same host, embed page
// as Referer) returns a CDN URL prefix, and the playable URL is that
// prefix plus a random suffix and the token/expiry pair from the page.
type DoodstreamResolver struct {
	*BaseResolver
	log *logging.Logger
}

// NewDoodstreamResolver creates a new Doodstream resolver.
func NewDoodstreamResolver(client *httpclient.Client, log *logging.Logger) *DoodstreamResolver {
	return &DoodstreamResolver{
		BaseResolver: NewBaseResolver(client, log),
		log:          log.WithComponent("doodstream-resolver"),
	}
}

// Name returns the provider name.
func (r *DoodstreamResolver) Name() string {
	return "doodstream"
}

// CanResolve returns true for Doodstream embed URLs.
func (r *DoodstreamResolver) CanResolve(embedURL string) bool {
	lower := strings.ToLower(embedURL)
	return strings.Contains(lower, "doodstream.") ||
		strings.Contains(lower, "dood.") ||
		strings.Contains(lower, "ds2play.") ||
		strings.Contains(lower, "d000d.")
}

var (
	passMD5Re   = regexp.MustCompile(`['"](/pass_md5/[^'"]+)['"]`)
	doodTokenRe = regexp.MustCompile(`makePlay[^}]*token=([a-zA-Z0-9]+)`)
)

// Resolve fetches the embed page, follows the pass_md5 call, and builds
// the final CDN URL.
func (r *DoodstreamResolver) Resolve(ctx context.Context, embedURL string) (*types.Resolution, error) {
	r.log.Debug("resolving doodstream embed", "url", embedURL)

	headers := map[string]string{
		"User-Agent": browserUserAgent,
		"Referer":    embedURL,
	}

	html, err := r.FetchPage(ctx, embedURL, headers)
	if err != nil {
		return nil, err
	}

	passMatch := passMD5Re.FindStringSubmatch(html)
	if len(passMatch) < 2 {
		return nil, fmt.Errorf("%w: no pass_md5 path in player script", ErrExtractionFailed)
	}
	passURL := urlutil.ResolveURL(passMatch[1], embedURL)

	// The pass_md5 endpoint rejects requests without the embed Referer.
	cdnBase, err := r.FetchPage(ctx, passURL, headers)
	if err != nil {
		return nil, err
	}
	cdnBase = strings.TrimSpace(cdnBase)
	if cdnBase == "" {
		return nil, fmt.Errorf("%w: empty pass_md5 response", ErrExtractionFailed)
	}

	streamURL := cdnBase + randomSuffix(10)
	if tokenMatch := doodTokenRe.FindStringSubmatch(html); len(tokenMatch) > 1 {
		streamURL = fmt.Sprintf("%s?token=%s&expiry=%d", streamURL, tokenMatch[1], time.Now().UnixMilli())
	}

	if parsed, err := url.ParseRequestURI(streamURL); err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("%w: pass_md5 response is not a URL", ErrExtractionFailed)
	}

	return types.NewResolution(streamURL, headers), nil
}

const suffixChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomSuffix mirrors the makePlay() suffix the Doodstream player appends.
func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixChars[rand.Intn(len(suffixChars))]
	}
	return string(b)
}

var _ interfaces.Resolver = (*DoodstreamResolver)(nil)
