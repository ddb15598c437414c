package handler

import (
	"net/http"
	"tokenq/internal/admin/service"
	httputil "tokenq/pkg/http"
	kafka_middleware "tokenq/pkg/kafka/middleware"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type StatsResponse struct {
	model.Stats
	Events *kafka_middleware.MetricsSnapshot `json:"events,omitempty"`
}

type StatsHandler struct {
	service service.StatsService
	metrics *kafka_middleware.Metrics
	log     *logger.Logger
}

// NewStatsHandler serves the dashboard counters. metrics may be nil when
// events are disabled.
func NewStatsHandler(service service.StatsService, metrics *kafka_middleware.Metrics, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		metrics: metrics,
		log:     log,
	}
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := h.service.Stats(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Stats", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	resp := StatsResponse{Stats: *stats}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		resp.Events = &snap
	}

	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StatsHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/admin/stats", h.Stats)
}
