package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"streamgate/pkg/httpclient"
	"streamgate/pkg/logging"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BaseResolver provides common functionality for provider resolvers.
type BaseResolver struct {
	client *httpclient.Client
	log    *logging.Logger
}

// NewBaseResolver creates a new base resolver.
func NewBaseResolver(client *httpclient.Client, log *logging.Logger) *BaseResolver {
	return &BaseResolver{
		client: client,
		log:    log,
	}
}

// DoRequest performs an HTTP request with the given headers.
func (b *BaseResolver) DoRequest(ctx context.Context, method, urlStr string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", browserUserAgent)
	}

	return b.client.Do(req)
}

// FetchPage fetches urlStr and returns the body as a string. Network
// failures and non-2xx statuses both map to ErrFetchFailed; the embed
// page either loads or the resolution is over.
func (b *BaseResolver) FetchPage(ctx context.Context, urlStr string, headers map[string]string) (string, error) {
	resp, err := b.DoRequest(ctx, http.MethodGet, urlStr, headers)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
	}

	return string(body), nil
}

// GetDomain extracts the host from a URL.
func GetDomain(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// embedHeaders builds the Referer/Origin header set most providers
// require on requests for the resolved media URL.
func embedHeaders(embedURL string) map[string]string {
	headers := map[string]string{
		"User-Agent": browserUserAgent,
	}
	if domain := GetDomain(embedURL); domain != "" {
		headers["Referer"] = "https://" + domain + "/"
		headers["Origin"] = "https://" + domain
	}
	return headers
}
