package edge

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"streamgate/pkg/appctx"
	"streamgate/pkg/cache"
	"streamgate/pkg/config"
	"streamgate/pkg/httpclient"
	"streamgate/pkg/logging"
	"streamgate/pkg/upstream"
)

const testToken = "VALIDTOKEN"

type testEnv struct {
	handlers *Handlers
	cache    *cache.Memory
	origin   *httptest.Server
	hits     *atomic.Int64
}

func newTestEnv(t *testing.T, originHandler http.HandlerFunc) *testEnv {
	t.Helper()

	hits := &atomic.Int64{}
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		originHandler(w, r)
	}))
	t.Cleanup(origin.Close)

	cfg := &config.Config{
		TokenSecret:  testToken,
		StoreBaseURL: origin.URL,
		StoreAPIKey:  "test-key",
	}
	log := logging.New("error", false, io.Discard)
	client := httpclient.New(cfg, log)
	store := upstream.New(cfg, client, log)
	mem := cache.NewMemory()

	ctx := appctx.New(cfg, log).WithCache(mem).WithStore(store)

	return &testEnv{
		handlers: New(ctx),
		cache:    mem,
		origin:   origin,
		hits:     hits,
	}
}

func signedURL(path string) string {
	return fmt.Sprintf("http://edge.test%s?token=%s&exp=%d", path, testToken, time.Now().Add(time.Hour).Unix())
}

func doRequest(h *Handlers, method, url string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, nil)
	for k, vs := range header {
		req.Header[k] = vs
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	checks := map[string]string{
		"Access-Control-Allow-Origin":   "*",
		"Access-Control-Allow-Methods":  "GET, HEAD, OPTIONS",
		"Access-Control-Allow-Headers":  "Range, Content-Type",
		"Access-Control-Expose-Headers": "Content-Range, Accept-Ranges, Content-Length",
	}
	for name, want := range checks {
		if got := h.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := doRequest(env.handlers, http.MethodOptions, "http://edge.test/anything", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	assertCORS(t, rec.Header())
	if env.hits.Load() != 0 {
		t.Error("preflight must not reach the upstream store")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := doRequest(env.handlers, method, signedURL("/movie123"), nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d, want 405", method, rec.Code)
		}
		assertCORS(t, rec.Header())
	}
}

func TestAuthRejections(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})
	futureExp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name string
		url  string
	}{
		{"missing token", fmt.Sprintf("http://edge.test/movie?exp=%d", futureExp)},
		{"wrong token", fmt.Sprintf("http://edge.test/movie?token=WRONG&exp=%d", futureExp)},
		{"missing exp", "http://edge.test/movie?token=" + testToken},
		{"unparseable exp", "http://edge.test/movie?token=" + testToken + "&exp=soon"},
		{"expired", fmt.Sprintf("http://edge.test/movie?token=%s&exp=%d", testToken, time.Now().Add(-time.Hour).Unix())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(env.handlers, http.MethodGet, tt.url, nil)
			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
			assertCORS(t, rec.Header())
			if env.hits.Load() != 0 {
				t.Error("rejected request must not reach the upstream store")
			}
		})
	}
}

func TestEmptyTokenSecretRejectsEverything(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})
	env.handlers.app.Config.TokenSecret = ""

	// An unset secret must fail closed, not turn `token=` into a match.
	url := fmt.Sprintf("http://edge.test/?token=&exp=%d", time.Now().Add(time.Hour).Unix())
	rec := doRequest(env.handlers, http.MethodGet, url, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no secret is configured", rec.Code)
	}
}

func TestExpiryBoundary(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})
	exp := int64(1_700_000_000)

	tests := []struct {
		name     string
		nowMilli int64
		want     int
	}{
		{"one ms past expiry second", exp*1000 + 1, http.StatusForbidden},
		{"exactly at expiry second", exp * 1000, http.StatusOK},
		{"one second before expiry", (exp - 1) * 1000, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.handlers.now = func() time.Time {
				return time.UnixMilli(tt.nowMilli)
			}
			url := fmt.Sprintf("http://edge.test/?token=%s&exp=%d", testToken, exp)
			rec := doRequest(env.handlers, http.MethodGet, url, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLivenessProbe(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/", "/favicon.ico"} {
		rec := doRequest(env.handlers, http.MethodGet, signedURL(path), nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
		if got := rec.Body.String(); got != "OK" {
			t.Errorf("%s: body = %q, want %q", path, got, "OK")
		}
	}

	// The probe sits behind the token check like every other route.
	rec := doRequest(env.handlers, http.MethodGet, "http://edge.test/", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unauthenticated probe: status = %d, want 403", rec.Code)
	}
}

func TestUnknownRouteShape(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/a/b/c", "/subtitles/", "/subtitles/abc.txt"} {
		rec := doRequest(env.handlers, http.MethodGet, signedURL(path), nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		assertCORS(t, rec.Header())
	}
}

func TestSubtitleSRTConversion(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("AccessKey"); got != "test-key" {
			t.Errorf("AccessKey = %q, want %q", got, "test-key")
		}
		if r.URL.Path != "/abc" {
			t.Errorf("upstream path = %q, want /abc", r.URL.Path)
		}
		io.WriteString(w, "1\n00:00:01,000 --> 00:00:02,000\r\nHello\r\n\r\n")
	})

	rec := doRequest(env.handlers, http.MethodGet, signedURL("/subtitles/abc.srt"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nHello\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/vtt; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q", got)
	}
	assertCORS(t, rec.Header())
}

func TestSubtitleCacheHit(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "WEBVTT\n\ncue text\n")
	})

	url := signedURL("/subtitles/abc.vtt")
	first := doRequest(env.handlers, http.MethodGet, url, nil)
	second := doRequest(env.handlers, http.MethodGet, url, nil)

	if env.hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", env.hits.Load())
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached body differs from original")
	}
	if second.Code != http.StatusOK {
		t.Errorf("cached status = %d, want 200", second.Code)
	}
}

func TestSubtitleUpstreamMiss(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	rec := doRequest(env.handlers, http.MethodGet, signedURL("/subtitles/gone.srt"), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if env.cache.Len() != 0 {
		t.Error("failed lookups must not be cached")
	}
}

func TestVideoFullLoad(t *testing.T) {
	body := strings.Repeat("MOVIEDATA", 1024)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			t.Errorf("unexpected Range header %q", r.Header.Get("Range"))
		}
		// No Content-Type on purpose.
		w.Header().Set("Set-Cookie", "session=secret")
		io.WriteString(w, body)
	})

	rec := doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != body {
		t.Errorf("body length = %d, want %d", len(got), len(body))
	}

	header := rec.Header()
	wantHeaders := map[string]string{
		"Content-Type":           "video/mp4",
		"Cache-Control":          "public, max-age=3600",
		"Content-Disposition":    "inline",
		"Accept-Ranges":          "bytes",
		"X-Content-Type-Options": "nosniff",
	}
	for name, want := range wantHeaders {
		if got := header.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if header.Get("Set-Cookie") != "" {
		t.Error("Set-Cookie must not cross the proxy boundary")
	}
	assertCORS(t, header)

	if _, ok := env.cache.Get("http://edge.test/movie123"); !ok {
		t.Error("full load should create a cache entry keyed by origin+pathname")
	}
}

func TestVideoUpstreamContentTypeKept(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		io.WriteString(w, "#EXTM3U\n")
	})

	rec := doRequest(env.handlers, http.MethodGet, signedURL("/playlist"), nil)
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type = %q, upstream value must win", got)
	}
}

func TestVideoCacheHit(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "DATA")
	})

	url := signedURL("/movie123")
	doRequest(env.handlers, http.MethodGet, url, nil)
	second := doRequest(env.handlers, http.MethodGet, url, nil)

	if env.hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", env.hits.Load())
	}
	if second.Body.String() != "DATA" {
		t.Errorf("cached body = %q", second.Body.String())
	}
	if got := second.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("cached Content-Type = %q", got)
	}
}

func TestVideoRangedRequest(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=0-3" {
			t.Errorf("Range = %q, want bytes=0-3 forwarded verbatim", got)
		}
		w.Header().Set("Content-Range", "bytes 0-3/100")
		w.WriteHeader(http.StatusPartialContent)
		io.WriteString(w, "MOVI")
	})

	header := http.Header{"Range": {"bytes=0-3"}}
	rec := doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), header)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=300" {
		t.Errorf("Cache-Control = %q, want public, max-age=300", got)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-3/100" {
		t.Errorf("Content-Range = %q", got)
	}

	if _, ok := env.cache.Get("http://edge.test/movie123"); ok {
		t.Error("ranged response must not occupy the rangeless key")
	}
	if _, ok := env.cache.Get("http://edge.test/movie123|bytes=0-3"); !ok {
		t.Error("ranged response should be stored under a range-suffixed key")
	}
}

func TestRangedRequestBypassesFullCache(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusPartialContent)
			io.WriteString(w, "MO")
			return
		}
		io.WriteString(w, "MOVIEDATA")
	})

	doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), nil)
	if env.hits.Load() != 1 {
		t.Fatalf("upstream hits = %d, want 1", env.hits.Load())
	}

	header := http.Header{"Range": {"bytes=0-1"}}
	rec := doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), header)
	if env.hits.Load() != 2 {
		t.Error("ranged request must bypass the cached full response")
	}
	if rec.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", rec.Code)
	}
}

func TestVideoRangedRepeatServedFromCache(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-3/100")
		w.WriteHeader(http.StatusPartialContent)
		io.WriteString(w, "MOVI")
	})

	header := http.Header{"Range": {"bytes=0-3"}}
	doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), header)
	second := doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), header)

	if env.hits.Load() != 1 {
		t.Errorf("upstream hits = %d, identical ranges should share one entry", env.hits.Load())
	}
	if second.Code != http.StatusPartialContent {
		t.Errorf("cached status = %d, want 206", second.Code)
	}
	if second.Body.String() != "MOVI" {
		t.Errorf("cached body = %q", second.Body.String())
	}

	// A different range is a different entry.
	doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), http.Header{"Range": {"bytes=4-7"}})
	if env.hits.Load() != 2 {
		t.Errorf("upstream hits = %d, distinct ranges must not share entries", env.hits.Load())
	}
}

func TestVideoUpstream404(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	rec := doRequest(env.handlers, http.MethodGet, signedURL("/missing"), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Errorf("Cache-Control = %q, want public, max-age=60", got)
	}
}

func TestVideoUpstream5xxPropagated(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", status)
		})

		rec := doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), nil)
		if rec.Code != status {
			t.Errorf("upstream %d: status = %d, want the upstream code propagated", status, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), fmt.Sprint(status)) {
			t.Errorf("upstream %d: body = %q, want the code in the body", status, rec.Body.String())
		}
		if got := rec.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("upstream %d: Cache-Control = %q, want no-store", status, got)
		}
		if env.cache.Len() != 0 {
			t.Errorf("upstream %d: 5xx responses must never be cached", status)
		}
	}
}

func TestMissingStoreConfig(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})
	env.handlers.app.Config.StoreAPIKey = ""
	env.handlers.app.Store = upstream.New(env.handlers.app.Config,
		httpclient.New(env.handlers.app.Config, env.handlers.app.Log),
		env.handlers.app.Log)

	rec := doRequest(env.handlers, http.MethodGet, signedURL("/movie123"), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "Missing STORE_API_KEY configuration" {
		t.Errorf("body = %q", got)
	}
}

func TestHeadVideoOmitsBody(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "MOVIEDATA")
	})

	rec := doRequest(env.handlers, http.MethodHead, signedURL("/movie123"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %d bytes, want 0", rec.Body.Len())
	}
}
