// Package upstream fetches media and subtitle objects from the backing file store.
//
// The store is consumed through a deliberately narrow contract: fetch
// bytes for a file id, honoring a Range header, returning standard HTTP
// status and headers. Any object store with range-read support fits.
package upstream

import (
	"context"
	"fmt"
	"net/http"

	"streamgate/pkg/config"
	"streamgate/pkg/httpclient"
	"streamgate/pkg/logging"
)

// Store is the upstream file store client. The access key travels only
// on server-to-store requests and is never exposed to the browser.
type Store struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	log     *logging.Logger
}

// New creates a store client from configuration.
func New(cfg *config.Config, client *httpclient.Client, log *logging.Logger) *Store {
	return &Store{
		client:  client,
		baseURL: cfg.StoreBaseURL,
		apiKey:  cfg.StoreAPIKey,
		log:     log.WithComponent("upstream"),
	}
}

// MissingConfig returns the name of the first unset required
// configuration key, or "".
func (s *Store) MissingConfig() string {
	if s.baseURL == "" {
		return "STORE_BASE_URL"
	}
	if s.apiKey == "" {
		return "STORE_API_KEY"
	}
	return ""
}

// Fetch retrieves the object for fileID, forwarding rangeHeader verbatim
// when present. The caller owns the response body.
func (s *Store) Fetch(ctx context.Context, fileID, rangeHeader string) (*http.Response, error) {
	url := fmt.Sprintf("%s/%s", s.baseURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building store request: %w", err)
	}

	req.Header.Set("AccessKey", s.apiKey)
	req.Header.Set("Accept", "*/*")
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store fetch for %q: %w", fileID, err)
	}

	s.log.Debug("store fetch", "file_id", fileID, "status", resp.StatusCode, "range", rangeHeader)
	return resp, nil
}
