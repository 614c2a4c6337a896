package clients

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/distriflow/distriflow/internal/platform/httpx"
	"github.com/distriflow/distriflow/internal/shared"
)

// Handler exposes the client reference-data endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients", h.list)
	r.Get("/clients/{id}", h.show)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("search"), Limit: 100}

	if v := q.Get("zone_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.ZoneID = &id
		}
	}
	if v := q.Get("vendor_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.VendorID = &id
		}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	filters.Offset = (page - 1) * filters.Limit

	result, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list clients", "error", err)
		httpx.RespondError(w, err)
		return
	}
	if result == nil {
		result = []Client{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"clients":    result,
		"pagination": shared.NewPagination(page, filters.Limit, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "client id must be numeric")
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get client", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
