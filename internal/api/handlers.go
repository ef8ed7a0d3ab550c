// Package api exposes a small status API over the coverage metadata, so
// operators can see how far each symbol has been ingested.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"nseingest/internal/coverage"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	metadataFile string
	logger       zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(metadataFile string, logger zerolog.Logger) *Handler {
	return &Handler{
		metadataFile: metadataFile,
		logger:       logger,
	}
}

// GetCoverage handles GET /coverage. The metadata file is re-read on
// each request so a completed run is visible without a restart.
func (h *Handler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	store := coverage.Load(h.metadataFile, h.logger)
	respondJSON(w, http.StatusOK, store.All())
}

// GetSymbolCoverage handles GET /coverage/{symbol}
func (h *Handler) GetSymbolCoverage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := strings.ToUpper(vars["symbol"])

	store := coverage.Load(h.metadataFile, h.logger)
	rec := store.Get(symbol)
	if rec == nil {
		http.Error(w, "symbol not tracked: "+symbol, http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
