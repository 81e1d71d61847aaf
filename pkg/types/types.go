// Package types defines core domain types shared by the resolver and the edge proxy.
package types

import (
	"strings"
	"time"
)

// MediaType classifies a resolved media URL.
type MediaType string

const (
	MediaTypeHLS     MediaType = "hls"
	MediaTypeMP4     MediaType = "mp4"
	MediaTypeUnknown MediaType = "unknown"
)

// DetectMediaType infers the media type from a URL suffix.
// Query strings are ignored; anything that is neither an HLS manifest
// nor a plain MP4 file is reported as unknown.
func DetectMediaType(urlStr string) MediaType {
	lower := strings.ToLower(urlStr)
	if idx := strings.Index(lower, "?"); idx > 0 {
		lower = lower[:idx]
	}
	switch {
	case strings.HasSuffix(lower, ".m3u8") || strings.Contains(lower, ".m3u8/"):
		return MediaTypeHLS
	case strings.HasSuffix(lower, ".mp4"):
		return MediaTypeMP4
	default:
		return MediaTypeUnknown
	}
}

// Resolution is the result of resolving an embed page URL to a direct
// media URL. A Resolution is immutable once produced; cache layers hand
// out the same value to every caller.
type Resolution struct {
	// URL is the direct playable media URL (absolute).
	URL string `json:"url"`

	// Type is inferred from the URL suffix.
	Type MediaType `json:"type"`

	// Headers are upstream headers (Referer, Origin, ...) the player or
	// proxy must replay for the resolved URL to remain valid. Many
	// providers reject hot-linked requests without them.
	Headers map[string]string `json:"headers,omitempty"`

	// ResolvedAt records when the resolution was produced, for cache
	// expiry bookkeeping.
	ResolvedAt time.Time `json:"resolved_at"`
}

// NewResolution builds a Resolution for a direct media URL, inferring
// the media type and stamping the resolution time.
func NewResolution(mediaURL string, headers map[string]string) *Resolution {
	return &Resolution{
		URL:        mediaURL,
		Type:       DetectMediaType(mediaURL),
		Headers:    headers,
		ResolvedAt: time.Now(),
	}
}

// Segmented reports whether the resolved media is a segmented stream.
func (r *Resolution) Segmented() bool {
	return r.Type == MediaTypeHLS
}
