package handler

import (
	"net/http"
	"strconv"
	"tokenq/internal/schedules/service"
	apperrors "tokenq/pkg/errors"
	httputil "tokenq/pkg/http"
	"tokenq/pkg/logger"
	"tokenq/pkg/middleware"
	"tokenq/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// ScheduleHandler serves the admin calendar and site settings.
type ScheduleHandler struct {
	service service.ScheduleService
	log     *logger.Logger
}

func NewScheduleHandler(service service.ScheduleService, log *logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		log:     log,
	}
}

func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cfg, err := h.service.GetSchedule(r.Context())
	if err != nil {
		h.writeError(w, "GetSchedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, cfg); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSchedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ScheduleHandler) SaveSchedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var update model.ScheduleUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "SaveSchedule", err)
		return
	}

	cfg, err := h.service.SaveSchedule(r.Context(), &update, middleware.AdminActor(r.Context()))
	if err != nil {
		h.writeError(w, "SaveSchedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, cfg); err != nil {
		h.log.Error("failed to write success response", "handler", "SaveSchedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ScheduleHandler) ScheduleDays(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	days := 0
	if s := query.Get("days"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, "ScheduleDays", apperrors.InvalidInput("invalid days parameter: "+s))
			return
		}
		days = v
	}

	view, err := h.service.ScheduleView(r.Context(), query.Get("from"), days)
	if err != nil {
		h.writeError(w, "ScheduleDays", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "ScheduleDays", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ScheduleHandler) GetSiteConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sc, err := h.service.GetSiteConfig(r.Context())
	if err != nil {
		h.writeError(w, "GetSiteConfig", err)
		return
	}

	if err := httputil.WriteSuccess(w, sc); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSiteConfig", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ScheduleHandler) SaveSiteConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var sc model.SiteConfig
	if err := httputil.DecodeJSON(r, &sc); err != nil {
		h.writeError(w, "SaveSiteConfig", err)
		return
	}

	saved, err := h.service.SaveSiteConfig(r.Context(), &sc, middleware.AdminActor(r.Context()))
	if err != nil {
		h.writeError(w, "SaveSiteConfig", err)
		return
	}

	if err := httputil.WriteSuccess(w, saved); err != nil {
		h.log.Error("failed to write success response", "handler", "SaveSiteConfig", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ScheduleHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ScheduleHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/admin/schedule", h.GetSchedule)
	router.PUT("/api/v1/admin/schedule", h.SaveSchedule)
	router.GET("/api/v1/admin/schedule/days", h.ScheduleDays)
	router.GET("/api/v1/admin/site-config", h.GetSiteConfig)
	router.PUT("/api/v1/admin/site-config", h.SaveSiteConfig)
}
