package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"streamgate/pkg/httpclient"
	"streamgate/pkg/interfaces"
	"streamgate/pkg/logging"
	"streamgate/pkg/types"
)

// VidfastResolver extracts streams from Vidfast embed pages.
//
// Vidfast obfuscates the media URL by reversing it and base64-encoding
// the result into the player element's data attribute. The decode must
// be the exact inverse; the decoded value is only trusted once it parses
// as an absolute URL.
type VidfastResolver struct {
	*BaseResolver
	log *logging.Logger
}

// NewVidfastResolver creates a new Vidfast resolver.
func NewVidfastResolver(client *httpclient.Client, log *logging.Logger) *VidfastResolver {
	return &VidfastResolver{
		BaseResolver: NewBaseResolver(client, log),
		log:          log.WithComponent("vidfast-resolver"),
	}
}

// Name returns the provider name.
func (r *VidfastResolver) Name() string {
	return "vidfast"
}

// CanResolve returns true for Vidfast embed URLs.
func (r *VidfastResolver) CanResolve(embedURL string) bool {
	return strings.Contains(strings.ToLower(embedURL), "vidfast.")
}

var vidfastConfigRe = regexp.MustCompile(`["']?stream["']?\s*:\s*["']([A-Za-z0-9+/=_-]+)["']`)

// Resolve fetches the embed page and decodes the obfuscated stream URL.
func (r *VidfastResolver) Resolve(ctx context.Context, embedURL string) (*types.Resolution, error) {
	r.log.Debug("resolving vidfast embed", "url", embedURL)

	headers := embedHeaders(embedURL)
	html, err := r.FetchPage(ctx, embedURL, headers)
	if err != nil {
		return nil, err
	}

	encoded := r.findEncodedStream(html)
	if encoded == "" {
		return nil, fmt.Errorf("%w: no stream attribute in embed page", ErrExtractionFailed)
	}

	streamURL, err := decodeObfuscated(encoded)
	if err != nil {
		return nil, err
	}

	return types.NewResolution(streamURL, headers), nil
}

// findEncodedStream locates the obfuscated payload, preferring the
// player element's data attribute over the inline config blob.
func (r *VidfastResolver) findEncodedStream(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		if v, ok := doc.Find("#player").Attr("data-stream"); ok && v != "" {
			return v
		}
		var fromScript string
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := vidfastConfigRe.FindStringSubmatch(s.Text()); len(m) > 1 {
				fromScript = m[1]
				return false
			}
			return true
		})
		if fromScript != "" {
			return fromScript
		}
	}

	if m := vidfastConfigRe.FindStringSubmatch(html); len(m) > 1 {
		return m[1]
	}
	return ""
}

// decodeObfuscated reverses Vidfast's encoding: base64 over the
// byte-reversed URL. A wrong decode is caught by the URL parse check.
func decodeObfuscated(encoded string) (string, error) {
	padded := encoded
	switch len(encoded) % 4 {
	case 2:
		padded += "=="
	case 3:
		padded += "="
	}

	raw, err := base64.StdEncoding.DecodeString(padded)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(padded); err != nil {
			return "", fmt.Errorf("%w: stream attribute is not base64", ErrExtractionFailed)
		}
	}

	decoded := reverseString(string(raw))
	parsed, err := url.ParseRequestURI(decoded)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", fmt.Errorf("%w: decoded value is not a URL", ErrExtractionFailed)
	}
	return decoded, nil
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

var _ interfaces.Resolver = (*VidfastResolver)(nil)
