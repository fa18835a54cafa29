package handlers

import (
	"net/http"
	"time"

	"github.com/cartloom/storefront/internal/config"
	"github.com/cartloom/storefront/internal/infrastructure"
)

type (
	dependencyStatus struct {
		Status    string `json:"status"`
		LatencyMs int64  `json:"latencyMs"`
	}

	healthReport struct {
		Status    string                      `json:"status"`
		Version   string                      `json:"version,omitempty"`
		Timestamp time.Time                   `json:"timestamp"`
		Checks    map[string]dependencyStatus `json:"checks"`
	}
)

// HealthHandler reports liveness plus a store reachability check. A
// degraded store does not fail the endpoint: the gateway keeps serving
// in fail-open mode, and the report says so.
type HealthHandler struct {
	store *infrastructure.StoreClient
}

func NewHealthHandler(store *infrastructure.StoreClient) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	storeStatus := "up"
	if !h.store.IsHealthy(r.Context()) {
		storeStatus = "down"
	}

	report := healthReport{
		Status:    "ok",
		Version:   config.ServiceVersion,
		Timestamp: time.Now().UTC(),
		Checks: map[string]dependencyStatus{
			"store": {
				Status:    storeStatus,
				LatencyMs: time.Since(start).Milliseconds(),
			},
		},
	}

	if storeStatus != "up" {
		report.Status = "degraded"
	}

	JSON(w, r, http.StatusOK, report)
}
