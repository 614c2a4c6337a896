package deliveries

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/distriflow/distriflow/internal/platform/httpx"
	"github.com/distriflow/distriflow/internal/shared"
)

// Handler exposes the delivery endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/deliveries/{id}", h.show)
	r.Post("/deliveries/{id}/status", h.mark)
	r.Get("/ruteros/{id}/deliveries", h.listByRoute)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "delivery id must be numeric")
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get delivery", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) mark(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "delivery id must be numeric")
		return
	}

	var req MarkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	d, err := h.service.Mark(r.Context(), id, req, actor)
	if err != nil {
		h.respondErr(w, "mark delivery", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) listByRoute(w http.ResponseWriter, r *http.Request) {
	ruteroID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "rutero id must be numeric")
		return
	}
	result, err := h.service.ListByRoute(r.Context(), ruteroID)
	if err != nil {
		h.respondErr(w, "list deliveries", err)
		return
	}
	if result == nil {
		result = []Delivery{}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrDeliveryLocked), errors.Is(err, ErrRouteNotActive):
		httpx.Problem(w, http.StatusConflict, "Illegal Transition", err.Error())
	case errors.Is(err, ErrEvidenceRequired), errors.Is(err, ErrReasonRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Missing Field", err.Error())
	default:
		h.logger.Error(op, "error", err)
		httpx.RespondError(w, err)
	}
}
