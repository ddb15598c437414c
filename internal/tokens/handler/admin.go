package handler

import (
	"net/http"
	"tokenq/internal/tokens/service"
	httputil "tokenq/pkg/http"
	"tokenq/pkg/logger"
	"tokenq/pkg/middleware"
	"tokenq/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// AdminTokenHandler serves manual allocation and counter control. Routes are
// expected behind AdminAuth.
type AdminTokenHandler struct {
	service service.TokenService
	log     *logger.Logger
}

func NewAdminTokenHandler(service service.TokenService, log *logger.Logger) *AdminTokenHandler {
	return &AdminTokenHandler{
		service: service,
		log:     log,
	}
}

// Allocate issues a token on the admin's behalf. With emergency set the token
// is for today regardless of the calendar.
func (h *AdminTokenHandler) Allocate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.AllocateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, h.log, "AdminAllocate", err)
		return
	}
	req.OwnerRef = middleware.AdminActor(r.Context())
	req.RequestKey = middleware.IdempotencyKeyFrom(r, middleware.HeaderAuthorization)

	alloc, err := h.service.Allocate(r.Context(), &req)
	if err != nil {
		writeError(w, h.log, "AdminAllocate", err)
		return
	}

	if err := httputil.WriteCreated(w, alloc); err != nil {
		h.log.Error("failed to write created response", "handler", "AdminAllocate", "operation", "WriteCreated", "error", err)
	}
}

func (h *AdminTokenHandler) ResetCounter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	dateCode := ps.ByName("date")
	if err := h.service.ResetCounter(r.Context(), dateCode, middleware.AdminActor(r.Context())); err != nil {
		writeError(w, h.log, "ResetCounter", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AdminTokenHandler) NextToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	dateCode := ps.ByName("date")
	next, err := h.service.NextToken(r.Context(), dateCode)
	if err != nil {
		writeError(w, h.log, "NextToken", err)
		return
	}

	if err := httputil.WriteSuccess(w, NextTokenResponse{
		DateCode:     dateCode,
		NextToken:    next,
		TokenDisplay: model.FormatToken(next),
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "NextToken", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AdminTokenHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/admin/tokens", h.Allocate)
	router.POST("/api/v1/admin/counters/:date/reset", h.ResetCounter)
	router.GET("/api/v1/admin/counters/:date/next", h.NextToken)
}
