package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/distriflow/distriflow/internal/platform/httpx"
	"github.com/distriflow/distriflow/internal/shared"
)

// IdempotencyStore dedupes create requests by client-supplied key.
// shared.IdempotencyStore satisfies it.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes the order endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyStore
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.list)
	r.Post("/orders", h.create)
	r.Get("/orders/{id}", h.show)
	r.Post("/orders/{id}/status", h.changeStatus)
	r.Get("/orders/{id}/history", h.history)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return
	}

	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	key := r.Header.Get("X-Idempotency-Key")
	insertedKey := false
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "orders"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "order already created for this idempotency key")
				return
			}
			h.respondErr(w, "idempotency check", err)
			return
		}
		insertedKey = true
	}

	order, err := h.service.Create(r.Context(), req, actor)
	if err != nil {
		// Release the key so a retry of the failed request is not mistaken
		// for a duplicate.
		if insertedKey {
			_ = h.idempotency.Delete(r.Context(), key)
		}
		h.respondErr(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewOrderResponse(*order, nil))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get order", err)
		return
	}
	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respondErr(w, "order history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderResponse(*order, history))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-Id and X-Actor-Role headers are required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}

	var req ChangeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	order, err := h.service.ChangeStatus(r.Context(), id, req.Status, actor)
	if err != nil {
		h.respondErr(w, "change order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderResponse(*order, nil))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respondErr(w, "order history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListOrdersRequest{Limit: 50}

	if v := q.Get("client_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.ClientID = &id
		}
	}
	if v := q.Get("status"); v != "" {
		s := OrderStatus(v)
		if !s.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Status", "unknown order status "+v)
			return
		}
		req.Status = &s
	}
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DateFrom = &t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DateTo = &t
		}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	req.Offset = (page - 1) * req.Limit

	result, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondErr(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListOrdersResponse{
		Orders:     result,
		Pagination: shared.NewPagination(page, req.Limit, total),
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrOrderLocked):
		httpx.Problem(w, http.StatusConflict, "Illegal Transition", err.Error())
	default:
		h.logger.Error(op, "error", err)
		httpx.RespondError(w, err)
	}
}
