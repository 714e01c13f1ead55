package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/twquant/screener/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 路由設定只在這個函式
func NewRouter(h *Handler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", h.Health).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Strategies and screening
	api.HandleFunc("/strategies", h.ListStrategies).Methods("GET")
	api.HandleFunc("/screen", h.ScreenAll).Methods("POST")
	api.HandleFunc("/screen/{key}", h.ScreenOne).Methods("POST")

	// Stored selections
	api.HandleFunc("/selections/{key}", h.Selections).Methods("GET")
	api.HandleFunc("/selections/{key}/export", h.ExportSelections).Methods("GET")
	api.HandleFunc("/appearances", h.Appearances).Methods("GET")

	// Dashboard
	api.HandleFunc("/dashboard", h.Dashboard).Methods("GET")

	// Watchlist
	api.HandleFunc("/watchlist", h.GetWatchlist).Methods("GET")
	api.HandleFunc("/watchlist", h.AddWatchlist).Methods("POST")
	api.HandleFunc("/watchlist/{stockID}", h.RemoveWatchlist).Methods("DELETE")

	// Batch-run progress stream
	r.HandleFunc("/ws/progress", h.Progress)

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
