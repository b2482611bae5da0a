package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports per-component health; a nil error means healthy.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

// APIHandler serves the operational endpoints of the zone writer.
type APIHandler struct {
	health HealthChecker
}

// NewAPIHandler creates and returns a new APIHandler instance.
func NewAPIHandler(health HealthChecker) *APIHandler {
	return &APIHandler{health: health}
}

// RegisterRoutes registers the API routes with the provided ServeMux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)
}

// Metrics handles Prometheus metrics scraping requests.
func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// lastPasser is implemented by health checkers that can say when they last
// did work.
type lastPasser interface {
	LastPass() (time.Time, bool)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Details  map[string]string `json:"details"`
	LastPass string            `json:"last_pass,omitempty"`
}

// HealthCheck reports UP with 200 when every component is healthy and
// DEGRADED with 503 otherwise.
func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "UP", Details: map[string]string{}}
	for name, checkErr := range h.health.HealthCheck(r.Context()) {
		if checkErr == nil {
			resp.Details[name] = "OK"
			continue
		}
		resp.Status = "DEGRADED"
		resp.Details[name] = checkErr.Error()
	}
	if lp, ok := h.health.(lastPasser); ok {
		if at, ok := lp.LastPass(); ok {
			resp.LastPass = at.UTC().Format(time.RFC3339)
		}
	}

	code := http.StatusOK
	if resp.Status != "UP" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode health check response: %v", err)
	}
}
