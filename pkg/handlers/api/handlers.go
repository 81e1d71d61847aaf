// Package api implements the JSON API endpoints.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"streamgate/pkg/appctx"
	"streamgate/pkg/logging"
	"streamgate/pkg/resolver"
)

// Handlers serves the /api routes.
type Handlers struct {
	app *appctx.Context
	log *logging.Logger
}

// New creates the API handlers.
func New(app *appctx.Context) *Handlers {
	return &Handlers{
		app: app,
		log: app.Log.WithComponent("api"),
	}
}

// Register attaches the API routes to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/resolve", h.requireAuth(h.handleResolve))
	mux.HandleFunc("GET /api/info", h.requireAuth(h.handleInfo))
}

// requireAuth gates a handler behind the API password when one is
// configured. An empty password leaves the API open.
func (h *Handlers) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.app.Config.APIPassword != "" {
			got := r.Header.Get("X-API-Password")
			if got == "" {
				got = r.URL.Query().Get("password")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(h.app.Config.APIPassword)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

// handleResolve resolves an embed URL to a direct media URL.
//
// GET /api/resolve?url=<embed-url>
func (h *Handlers) handleResolve(w http.ResponseWriter, r *http.Request) {
	embedURL := r.URL.Query().Get("url")
	if embedURL == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	res, err := h.app.Resolver.Resolve(r.Context(), embedURL)
	if err != nil {
		h.log.WithError(err).Warn("resolution failed", "url", embedURL)
		switch {
		case errors.Is(err, resolver.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid embed url")
		case errors.Is(err, resolver.ErrNoProvider):
			writeError(w, http.StatusNotFound, "no provider for this host")
		case errors.Is(err, resolver.ErrExtractionFailed):
			writeError(w, http.StatusNotFound, "could not extract media url")
		case errors.Is(err, resolver.ErrFetchFailed):
			writeError(w, http.StatusBadGateway, "embed page fetch failed")
		default:
			msg := "internal error"
			if h.app.Config.DebugErrors {
				msg = err.Error()
			}
			writeError(w, http.StatusInternalServerError, msg)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  res,
	})
}

// handleInfo reports service status and registered providers.
func (h *Handlers) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "streamgate",
		"providers": h.providerNames(),
	})
}

func (h *Handlers) providerNames() []string {
	type lister interface{ Providers() []string }
	if l, ok := h.app.Resolver.(lister); ok {
		return l.Providers()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
