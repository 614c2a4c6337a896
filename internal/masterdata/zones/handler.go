package zones

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/distriflow/distriflow/internal/platform/httpx"
)

// Handler exposes the zone reference-data endpoints.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler builds a Handler instance. Zones have no business rules, so
// the handler talks to the repository directly.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers zone routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/zones", h.list)
	r.Get("/zones/{id}", h.show)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	result, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list zones", "error", err)
		httpx.RespondError(w, err)
		return
	}
	if result == nil {
		result = []Zone{}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "zone id must be numeric")
		return
	}
	z, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get zone", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, z)
}
