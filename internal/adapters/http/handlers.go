package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jobrunner/stacsync/internal/domain"
)

// Limits for list endpoints.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":        boolToStatus(details.Healthy),
		"ready":         details.Ready,
		"state":         details.State,
		"catalog_items": details.CatalogItems,
		"processed":     details.Processed,
		"failed":        details.Failed,
		"components":    details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleCatalog returns the catalog summary without its items.
func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.view.Snapshot()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "Catalog not loaded")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          snap.ID,
		"title":       snap.Title,
		"description": snap.Description,
		"href":        snap.Href,
		"item_count":  snap.ItemCount,
		"taken_at":    snap.TakenAt,
	})
}

// handleListItems returns the catalog items.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, ok := s.view.Snapshot()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "Catalog not loaded")
		return
	}

	items := snap.Items
	if len(items) > limit {
		items = items[:limit]
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
		"total": snap.ItemCount,
	})
}

// handleGetItem returns a specific item.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]

	snap, ok := s.view.Snapshot()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "Catalog not loaded")
		return
	}

	for _, item := range snap.Items {
		if item.ID == itemID {
			s.writeJSON(w, http.StatusOK, item)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "Item not found")
}

// handleEvents returns the newest journal entries.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.view.RecentEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to read events")
		return
	}

	events := make([]map[string]interface{}, len(entries))
	for i, e := range entries {
		events[i] = map[string]interface{}{
			"event_id":     e.EventID,
			"event_name":   e.EventName,
			"bucket":       e.Bucket,
			"key":          e.Key,
			"item_id":      e.ItemID,
			"outcome":      e.Outcome,
			"processed_at": e.ProcessedAt,
		}
		if e.Error != "" {
			events[i]["error"] = e.Error
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// parseLimit reads the optional limit query parameter.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("invalid limit parameter")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", domain.MediaTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
