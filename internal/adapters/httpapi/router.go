package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kneurasense/kneuraflow/internal/domain"
)

// Source is the read side of the running pipeline.
type Source interface {
	Dashboard() domain.DashboardView
	Rejected() []domain.Rejected
	Connected() bool
}

// HealthResponse is the body for GET /healthz
type HealthResponse struct {
	Status             string          `json:"status"`
	TransportConnected bool            `json:"transport_connected"`
	Device             domain.Liveness `json:"device"`
}

// RejectsResponse is the body for GET /api/rejects
type RejectsResponse struct {
	Items []domain.Rejected `json:"items"`
	Total int               `json:"total"`
}

// NewRouter wires the read API. A nil gatherer serves the default registry.
func NewRouter(src Source, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		view := src.Dashboard()
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:             "ok",
			TransportConnected: src.Connected(),
			Device:             view.Liveness,
		})
	}).Methods("GET")

	if gatherer == nil {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	} else {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.Dashboard())
	}).Methods("GET")
	api.HandleFunc("/rejects", func(w http.ResponseWriter, r *http.Request) {
		handleRejects(src, w, r)
	}).Methods("GET")

	return router
}

// handleRejects returns the newest rejects first (GET /api/rejects?limit=20)
func handleRejects(src Source, w http.ResponseWriter, r *http.Request) {
	all := src.Rejected()
	limit := len(all)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	items := make([]domain.Rejected, 0, limit)
	for i := len(all) - 1; i >= 0 && len(items) < limit; i-- {
		items = append(items, all[i])
	}
	writeJSON(w, http.StatusOK, RejectsResponse{Items: items, Total: len(all)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// the dashboard is served from another origin
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
