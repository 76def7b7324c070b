package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lensworks/lensworks/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, id)
		return
	}
	httpx.OK(w, http.StatusOK, c)
}

func (h *Handler) ShowStanding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}
	st, err := h.service.Standing(r.Context(), id)
	if err != nil {
		h.fail(w, err, id)
		return
	}
	httpx.OK(w, http.StatusOK, st)
}

func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid customer id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, err error, id int64) {
	if httpx.IsServerError(err) {
		h.logger.Error("customer lookup failed", "customer_id", id, "error", err)
	}
	httpx.RespondError(w, err)
}
