// Package edge implements the streaming edge proxy.
//
// Every request walks the same ladder: CORS preflight, method check,
// token check, then route classification (liveness probe, subtitle,
// video). Each step is terminal on failure, and every response carries
// the CORS headers regardless of status.
package edge

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"streamgate/pkg/appctx"
	"streamgate/pkg/logging"
	"streamgate/pkg/metrics"
	"streamgate/pkg/subtitle"
)

const (
	subtitleCacheTTL = 24 * time.Hour
	videoFullTTL     = time.Hour
	videoRangedTTL   = 5 * time.Minute
	notFoundTTL      = time.Minute

	// Full responses larger than this stream through uncached.
	maxCacheableBody = 128 << 20
)

var (
	subtitlePathRe = regexp.MustCompile(`^/subtitles/([^/]+\.(?:srt|vtt))$`)
	videoPathRe    = regexp.MustCompile(`^/([^/]+)$`)
)

// cachedResponse is a fully buffered response stored for replay.
type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// Handlers serves the proxy routes. The clock is injectable so expiry
// boundaries can be pinned in tests.
type Handlers struct {
	app *appctx.Context
	log *logging.Logger
	now func() time.Time
}

// New creates the edge proxy handlers.
func New(app *appctx.Context) *Handlers {
	return &Handlers{
		app: app,
		log: app.Log.WithComponent("edge"),
		now: time.Now,
	}
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Range, Content-Type")
	h.Set("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges, Content-Length")
}

func (h *Handlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.authorized(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	path := r.URL.Path
	if path == "/" || path == "/favicon.ico" {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "OK")
		return
	}

	if m := subtitlePathRe.FindStringSubmatch(path); m != nil {
		h.handleSubtitle(w, r, m[1])
		return
	}
	if m := videoPathRe.FindStringSubmatch(path); m != nil {
		h.handleVideo(w, r, m[1])
		return
	}

	http.Error(w, "Bad Request", http.StatusBadRequest)
}

// authorized checks the shared token and its expiry. The expiry second
// itself is inclusive: a request is rejected only once the current time
// passes it.
func (h *Handlers) authorized(r *http.Request) bool {
	q := r.URL.Query()

	if q.Get("token") != h.app.Config.TokenSecret || h.app.Config.TokenSecret == "" {
		return false
	}

	exp, err := strconv.ParseInt(q.Get("exp"), 10, 64)
	if err != nil {
		return false
	}
	return h.now().UnixMilli() <= exp*1000
}

func (h *Handlers) handleSubtitle(w http.ResponseWriter, r *http.Request, name string) {
	cacheKey := "sub:" + r.URL.String()

	if v, ok := h.app.Cache.Get(cacheKey); ok {
		metrics.CacheOpsTotal.WithLabelValues("subtitle", "hit").Inc()
		writeCached(w, v.(*cachedResponse))
		return
	}
	metrics.CacheOpsTotal.WithLabelValues("subtitle", "miss").Inc()

	if missing := h.app.Store.MissingConfig(); missing != "" {
		http.Error(w, fmt.Sprintf("Missing %s configuration", missing), http.StatusInternalServerError)
		return
	}

	fileID := strings.TrimSuffix(strings.TrimSuffix(name, ".srt"), ".vtt")

	resp, err := h.app.Store.Fetch(r.Context(), fileID, "")
	if err != nil {
		h.log.WithError(err).Warn("subtitle fetch failed", "file_id", fileID)
		http.Error(w, "Subtitle not found", http.StatusNotFound)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		http.Error(w, "Subtitle not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.log.WithError(err).Warn("subtitle read failed", "file_id", fileID)
		http.Error(w, "Subtitle not found", http.StatusNotFound)
		return
	}

	text := string(body)
	if subtitle.IsSRT(name) {
		text = subtitle.ToVTT(text)
	}

	entry := &cachedResponse{
		status: http.StatusOK,
		header: http.Header{
			"Content-Type":  {"text/vtt; charset=utf-8"},
			"Cache-Control": {"public, max-age=86400"},
		},
		body: []byte(text),
	}
	writeCached(w, entry)

	h.app.Cache.Put(cacheKey, entry, subtitleCacheTTL)
}

func (h *Handlers) handleVideo(w http.ResponseWriter, r *http.Request, fileID string) {
	if missing := h.app.Store.MissingConfig(); missing != "" {
		http.Error(w, fmt.Sprintf("Missing %s configuration", missing), http.StatusInternalServerError)
		return
	}

	rangeHeader := r.Header.Get("Range")
	cacheKey := videoCacheKey(r, rangeHeader)

	// The range suffix in the key keeps partial bodies away from the
	// full-file entry; a repeat of the identical range is served from
	// its own entry.
	if v, ok := h.app.Cache.Get(cacheKey); ok {
		metrics.CacheOpsTotal.WithLabelValues("video", "hit").Inc()
		writeCached(w, v.(*cachedResponse))
		return
	}
	metrics.CacheOpsTotal.WithLabelValues("video", "miss").Inc()

	resp, err := h.app.Store.Fetch(r.Context(), fileID, rangeHeader)
	if err != nil {
		h.log.WithError(err).Warn("video fetch failed", "file_id", fileID)
		body := "Internal Server Error"
		if h.app.Config.DebugErrors {
			body = fmt.Sprintf("Internal Server Error: %v", err)
		}
		http.Error(w, body, http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		w.Header().Set("Cache-Control", "public, max-age=60")
		http.Error(w, "File not found", http.StatusNotFound)
		return
	case resp.StatusCode >= 500:
		w.Header().Set("Cache-Control", "no-store")
		http.Error(w, fmt.Sprintf("Upstream error %d", resp.StatusCode), resp.StatusCode)
		return
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
		return
	}

	header := rewriteVideoHeaders(resp.Header, rangeHeader)
	for k, vs := range header {
		w.Header()[k] = vs
	}
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}

	// Tee the stream into a bounded buffer; the entry is stored only
	// after the client received the whole body.
	buf := &boundedBuffer{max: maxCacheableBody}
	_, err = io.Copy(w, io.TeeReader(resp.Body, buf))
	if err != nil {
		h.log.Debug("video stream aborted", "file_id", fileID, "error", err)
		return
	}
	if buf.overflowed {
		return
	}

	entry := &cachedResponse{status: resp.StatusCode, header: header, body: buf.Bytes()}
	ttl := videoFullTTL
	if rangeHeader != "" {
		ttl = videoRangedTTL
	}
	h.app.Cache.Put(cacheKey, entry, ttl)
}

// rewriteVideoHeaders builds the client-facing header set from the
// upstream response. Set-Cookie never crosses the proxy boundary.
func rewriteVideoHeaders(upstream http.Header, rangeHeader string) http.Header {
	header := http.Header{}
	for k, vs := range upstream {
		if http.CanonicalHeaderKey(k) == "Set-Cookie" {
			continue
		}
		header[http.CanonicalHeaderKey(k)] = vs
	}

	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "video/mp4")
	}
	header.Set("Content-Disposition", "inline")
	header.Set("Accept-Ranges", "bytes")
	header.Set("X-Content-Type-Options", "nosniff")
	if rangeHeader != "" {
		header.Set("Cache-Control", "public, max-age=300")
	} else {
		header.Set("Cache-Control", "public, max-age=3600")
	}
	return header
}

// videoCacheKey derives the cache key from origin and pathname. Ranged
// responses get their own keys so partial bodies never shadow full ones.
func videoCacheKey(r *http.Request, rangeHeader string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	key := scheme + "://" + r.Host + r.URL.Path
	if rangeHeader != "" {
		key += "|" + rangeHeader
	}
	return key
}

func writeCached(w http.ResponseWriter, entry *cachedResponse) {
	for k, vs := range entry.header {
		w.Header()[k] = vs
	}
	w.WriteHeader(entry.status)
	w.Write(entry.body)
}

// boundedBuffer accumulates writes up to max bytes, then discards
// everything and marks itself overflowed.
type boundedBuffer struct {
	bytes.Buffer
	max        int
	overflowed bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if b.overflowed {
		return len(p), nil
	}
	if b.Len()+len(p) > b.max {
		b.overflowed = true
		b.Reset()
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
