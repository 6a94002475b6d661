package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}

// Config returns the non-secret server configuration.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.config)
}

// Health reports readiness of backing services.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Redis: "disabled"}
	status := http.StatusOK
	if h.redisPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.redisPing(ctx); err != nil {
			resp.Status, resp.Redis = "degraded", "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Redis = "ok"
		}
	}
	JSON(w, status, resp)
}
