package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jborden/git-sentinel/internal/model"
	"github.com/jborden/git-sentinel/internal/store"
)

// HTTPAPI exposes the sentinel's observational surface: health, recent
// detections, and Prometheus metrics. It never mutates pipeline state.
type HTTPAPI struct {
	store           *store.MemoryStore
	signatureLabels []string
	watchRoot       string
}

// NewHTTPAPI creates the HTTP API.
func NewHTTPAPI(s *store.MemoryStore, signatureLabels []string, watchRoot string) *HTTPAPI {
	return &HTTPAPI{
		store:           s,
		signatureLabels: signatureLabels,
		watchRoot:       watchRoot,
	}
}

// Router builds the route table.
func (api *HTTPAPI) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", api.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", api.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/detections", api.handleDetections).Methods(http.MethodGet)
	r.HandleFunc("/signatures", api.handleSignatures).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (api *HTTPAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"watch_root": api.watchRoot,
		"timestamp":  time.Now().UTC(),
		"stats":      api.store.Stats(),
	})
}

func (api *HTTPAPI) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}

func (api *HTTPAPI) handleDetections(w http.ResponseWriter, r *http.Request) {
	var detections []*model.Detection

	if label := r.URL.Query().Get("label"); label != "" {
		detections = api.store.ByLabel(label)
	} else {
		detections = api.store.All()
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(detections) {
			// Keep the most recent entries.
			detections = detections[len(detections)-limit:]
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"detections": detections,
		"count":      len(detections),
		"timestamp":  time.Now().UTC(),
	})
}

func (api *HTTPAPI) handleSignatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signatures": api.signatureLabels,
		"count":      len(api.signatureLabels),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
