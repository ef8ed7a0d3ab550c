package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Coverage routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/coverage", handler.GetCoverage).Methods("GET")
	api.HandleFunc("/coverage/{symbol}", handler.GetSymbolCoverage).Methods("GET")

	return r
}
