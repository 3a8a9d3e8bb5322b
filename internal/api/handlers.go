package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	advisor Advisor
	catalog Catalog
	log     *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(advisor Advisor, catalog Catalog, log *slog.Logger) *Handlers {
	return &Handlers{
		advisor: advisor,
		catalog: catalog,
		log:     log,
	}
}

// Advisory is the response body of both advisory endpoints.
type Advisory struct {
	Location string `json:"location"`
	Text     string `json:"text"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListLocations handles GET /api/v1/locations.
func (h *Handlers) ListLocations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.All())
}

// ListRegions handles GET /api/v1/regions. ?name= narrows the answer to one region.
func (h *Handlers) ListRegions(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusOK, h.catalog.Regions())
		return
	}

	region, ok := h.catalog.Region(name)
	if !ok {
		writeError(w, http.StatusNotFound, "region not found")
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// WeeklyAdvisory handles GET /api/v1/advisories/weekly?location=NAME.
// The advisory text itself carries not-found and outage messages, so any
// non-empty name gets a 200.
func (h *Handlers) WeeklyAdvisory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("location"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "location query parameter is required")
		return
	}

	writeJSON(w, http.StatusOK, Advisory{
		Location: name,
		Text:     h.advisor.WeeklyAdvisory(r.Context(), name),
	})
}

// TonightAdvisory handles GET /api/v1/advisories/tonight/{id}.
func (h *Handlers) TonightAdvisory(w http.ResponseWriter, r *http.Request) {
	id := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "id")))

	loc, ok := h.catalog.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}

	writeJSON(w, http.StatusOK, Advisory{
		Location: loc.Name,
		Text:     h.advisor.ImpromptuAdvisory(r.Context(), loc.ID, loc.Name),
	})
}

// Refresh handles POST /api/v1/refresh.
// Fetches the weekly dataset and rewrites both forecast tables.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.advisor.RefreshWeeklyData(r.Context()); err != nil {
		h.log.Error("weekly refresh failed", "err", err)
		writeError(w, http.StatusBadGateway, "failed to refresh forecast data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// HealthHandlerFunc returns an http.HandlerFunc that checks store and cache connectivity.
// Returns 200 if both are ok, 503 otherwise.
func HealthHandlerFunc(store, cache Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		storeStatus := "ok"
		cacheStatus := "ok"

		if err := store.Ping(ctx); err != nil {
			log.Error("health check: store ping failed", "err", err)
			storeStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := cache.Ping(ctx); err != nil {
			log.Error("health check: cache ping failed", "err", err)
			cacheStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]string{
			"status": overall,
			"store":  storeStatus,
			"cache":  cacheStatus,
		})
	}
}
