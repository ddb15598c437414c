package handler

import (
	"net/http"
	"tokenq/internal/bookings/service"
	httputil "tokenq/pkg/http"
	"tokenq/pkg/logger"
	"tokenq/pkg/middleware"
	"tokenq/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// BookingsPath lists bookings on GET and purges them all on DELETE.
const BookingsPath = "/api/v1/admin/bookings"

// BookingHandler serves booking management. Routes are expected behind
// AdminAuth.
type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()
	filter := model.BookingFilter{
		Query:    query.Get("q"),
		DayLabel: query.Get("day"),
		DateCode: query.Get("date"),
		Tab:      query.Get("tab"),
	}

	bookings, totalCount, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) EditContact(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var update model.ContactUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "EditContact", err)
		return
	}

	booking, err := h.service.EditContact(r.Context(), id, &update, middleware.AdminActor(r.Context()))
	if err != nil {
		h.writeError(w, "EditContact", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "EditContact", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.Delete(r.Context(), id, middleware.AdminActor(r.Context())); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

// DeleteAll purges every booking. ?reset_counter=YYYY-MM-DD also resets that
// date's counter.
func (h *BookingHandler) DeleteAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resetCounter := r.URL.Query().Get("reset_counter")

	result, err := h.service.DeleteAll(r.Context(), resetCounter, middleware.AdminActor(r.Context()))
	if err != nil {
		h.writeError(w, "DeleteAll", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "DeleteAll", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET(BookingsPath, h.List)
	router.DELETE(BookingsPath, h.DeleteAll)
	router.GET("/api/v1/admin/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/admin/bookings/id/:id", h.EditContact)
	router.DELETE("/api/v1/admin/bookings/id/:id", h.Delete)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
