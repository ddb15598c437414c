package handler

import (
	"net/http"
	"tokenq/internal/schedules/policy"
	"tokenq/internal/tokens/service"
	apperrors "tokenq/pkg/errors"
	httputil "tokenq/pkg/http"
	"tokenq/pkg/logger"
	"tokenq/pkg/middleware"
	"tokenq/pkg/model"
	"tokenq/pkg/sealer"

	"github.com/julienschmidt/httprouter"
)

// LiveView is the read model behind the public display endpoints. It may lag
// the store; allocation never consults it.
type LiveView interface {
	EligibleDays() []model.Day
	NextToken(dateCode string) (uint, bool)
	SiteConfig() model.SiteConfig
}

type NextTokenResponse struct {
	DateCode     string `json:"date_code"`
	NextToken    uint   `json:"next_token"`
	TokenDisplay string `json:"token_display"`
}

// TokenHandler serves the public booking surface.
type TokenHandler struct {
	service service.TokenService
	view    LiveView
	sealer  *sealer.Sealer
	log     *logger.Logger
}

func NewTokenHandler(service service.TokenService, view LiveView, sealer *sealer.Sealer, log *logger.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		view:    view,
		sealer:  sealer,
		log:     log,
	}
}

func (h *TokenHandler) Days(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.view.EligibleDays()); err != nil {
		h.log.Error("failed to write success response", "handler", "Days", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TokenHandler) Allocate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.view.SiteConfig().MaintenanceMode {
		writeError(w, h.log, "Allocate", apperrors.Unavailable("Booking"))
		return
	}

	var req model.AllocateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, h.log, "Allocate", err)
		return
	}
	if req.Emergency {
		writeError(w, h.log, "Allocate", apperrors.PermissionDenied("Emergency allocation requires admin access"))
		return
	}

	ownerRef, err := middleware.EnsureGuestSession(w, r, h.sealer)
	if err != nil {
		writeError(w, h.log, "Allocate", apperrors.Internal("Failed to start guest session", err))
		return
	}
	req.OwnerRef = ownerRef
	req.RequestKey = middleware.IdempotencyKeyFrom(r, middleware.HeaderSessionToken)

	alloc, err := h.service.Allocate(r.Context(), &req)
	if err != nil {
		writeError(w, h.log, "Allocate", err)
		return
	}

	if err := httputil.WriteCreated(w, alloc); err != nil {
		h.log.Error("failed to write created response", "handler", "Allocate", "operation", "WriteCreated", "error", err)
	}
}

func (h *TokenHandler) Next(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	dateCode := ps.ByName("date")
	if !policy.IsValidDateCode(dateCode) {
		writeError(w, h.log, "Next", apperrors.InvalidDate(dateCode, "malformed"))
		return
	}

	next, ok := h.view.NextToken(dateCode)
	if !ok {
		var err error
		if next, err = h.service.NextToken(r.Context(), dateCode); err != nil {
			writeError(w, h.log, "Next", err)
			return
		}
	}

	if err := httputil.WriteSuccess(w, NextTokenResponse{
		DateCode:     dateCode,
		NextToken:    next,
		TokenDisplay: model.FormatToken(next),
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Next", "operation", "WriteSuccess", "error", err)
	}
}

// Mine lists the caller's own bookings. A caller without a session simply
// has none.
func (h *TokenHandler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ownerRef, _ := middleware.OwnerRef(r.Context())

	bookings, err := h.service.Mine(r.Context(), ownerRef)
	if err != nil {
		writeError(w, h.log, "Mine", err)
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "Mine", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TokenHandler) SiteConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.view.SiteConfig()); err != nil {
		h.log.Error("failed to write success response", "handler", "SiteConfig", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TokenHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/days", h.Days)
	router.POST("/api/v1/tokens", h.Allocate)
	router.GET("/api/v1/tokens/next/:date", h.Next)
	router.GET("/api/v1/tokens/mine", h.Mine)
	router.GET("/api/v1/site-config", h.SiteConfig)
}

func writeError(w http.ResponseWriter, log *logger.Logger, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
