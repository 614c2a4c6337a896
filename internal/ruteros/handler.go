package ruteros

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/distriflow/distriflow/internal/platform/httpx"
	"github.com/distriflow/distriflow/internal/shared"
)

// Handler exposes the route endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers route endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ruteros", h.list)
	r.Post("/ruteros", h.create)
	r.Get("/ruteros/{id}", h.show)
	r.Put("/ruteros/{id}/stops", h.replaceStops)
	r.Post("/ruteros/{id}/stops", h.addStop)
	r.Delete("/ruteros/{id}/stops/{stopID}", h.removeStop)
	r.Post("/ruteros/{id}/stops/reorder", h.reorder)
	r.Post("/ruteros/{id}/start", h.start)
	r.Post("/ruteros/{id}/complete", h.complete)
	r.Post("/ruteros/{id}/deactivate", h.deactivate)
	r.Get("/ruteros/{id}/evaluation", h.evaluation)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return
	}

	var req CreateRouteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	route, err := h.service.Create(r.Context(), req, actor)
	if err != nil {
		h.respondErr(w, "create rutero", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, route)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.routeID(w, r)
	if !ok {
		return
	}
	route, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get rutero", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) replaceStops(w http.ResponseWriter, r *http.Request) {
	actor, id, req, ok := decodeStopEdit[ReplaceStopsRequest](h, w, r)
	if !ok {
		return
	}
	route, err := h.service.ReplaceStops(r.Context(), id, req, actor)
	if err != nil {
		h.respondErr(w, "replace stops", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) addStop(w http.ResponseWriter, r *http.Request) {
	actor, id, req, ok := decodeStopEdit[CreateStopReq](h, w, r)
	if !ok {
		return
	}
	route, err := h.service.AddStop(r.Context(), id, req, actor)
	if err != nil {
		h.respondErr(w, "add stop", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) removeStop(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return
	}
	id, ok := h.routeID(w, r)
	if !ok {
		return
	}
	stopID, err := strconv.ParseInt(chi.URLParam(r, "stopID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "stop id must be numeric")
		return
	}
	route, err := h.service.RemoveStop(r.Context(), id, stopID, actor)
	if err != nil {
		h.respondErr(w, "remove stop", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	type reorderRequest struct {
		StopIDs []int64 `json:"stop_ids" validate:"required,min=1"`
	}
	actor, id, req, ok := decodeStopEdit[reorderRequest](h, w, r)
	if !ok {
		return
	}
	route, err := h.service.Reorder(r.Context(), id, req.StopIDs, actor)
	if err != nil {
		h.respondErr(w, "reorder stops", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return
	}
	id, ok := h.routeID(w, r)
	if !ok {
		return
	}
	resp, err := h.service.Start(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, "start rutero", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return
	}
	id, ok := h.routeID(w, r)
	if !ok {
		return
	}
	route, err := h.service.Complete(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, "complete rutero", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return
	}
	id, ok := h.routeID(w, r)
	if !ok {
		return
	}
	route, err := h.service.Deactivate(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, "deactivate rutero", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) evaluation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.routeID(w, r)
	if !ok {
		return
	}
	ev, err := h.service.Evaluation(r.Context(), id)
	if err != nil {
		h.respondErr(w, "evaluate rutero", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ev)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListRoutesRequest{Limit: 50}

	if v := q.Get("zone_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.ZoneID = &id
		}
	}
	if v := q.Get("driver_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.DriverID = &id
		}
	}
	if v := q.Get("status"); v != "" {
		s := RouteStatus(v)
		if !s.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Status", "unknown route status "+v)
			return
		}
		req.Status = &s
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	req.Offset = (page - 1) * req.Limit

	routes, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondErr(w, "list ruteros", err)
		return
	}
	if routes == nil {
		routes = []Route{}
	}
	httpx.JSON(w, http.StatusOK, ListRoutesResponse{
		Routes:     routes,
		Pagination: shared.NewPagination(page, req.Limit, total),
	})
}

func (h *Handler) routeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "rutero id must be numeric")
		return 0, false
	}
	return id, true
}

// decodeStopEdit handles the shared actor/id/body plumbing of the stop
// editing endpoints.
func decodeStopEdit[T any](h *Handler, w http.ResponseWriter, r *http.Request) (shared.Actor, int64, T, bool) {
	var zero T
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return shared.Actor{}, 0, zero, false
	}
	id, ok := h.routeID(w, r)
	if !ok {
		return shared.Actor{}, 0, zero, false
	}
	var req T
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return shared.Actor{}, 0, zero, false
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, 0, zero, false
	}
	return actor, id, req, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	var pending *DeliveriesPendingError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &pending):
		httpx.Problem(w, http.StatusConflict, "Deliveries Pending", pending.Error())
	case errors.Is(err, ErrRouteLocked), errors.Is(err, ErrAlreadyStarted),
		errors.Is(err, ErrNotStarted), errors.Is(err, ErrEmptyRoute):
		httpx.Problem(w, http.StatusConflict, "Illegal Transition", err.Error())
	case errors.Is(err, ErrNoDeliveriesGenerated):
		httpx.Problem(w, http.StatusConflict, "Generation Failed", err.Error())
	case errors.Is(err, ErrStopNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Stop", err.Error())
	default:
		h.logger.Error(op, "error", err)
		httpx.RespondError(w, err)
	}
}
