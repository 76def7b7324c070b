package orders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lensworks/lensworks/internal/platform/httpx"
)

// IdempotencyHeader carries the client key for create retries.
const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload OrderPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	view, err := h.service.Create(r.Context(), payload, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.respondError(w, r, "create sale order failed", err)
		return
	}
	status := http.StatusCreated
	if view.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	httpx.OK(w, status, view)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get sale order failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, view)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var patch OrderPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	view, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.respondError(w, r, "update sale order failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, view)
}

func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req AdvanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	view, err := h.service.AdvanceStatus(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, "advance sale order status failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, view)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, "delete sale order failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, nil)
}

func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	res, err := h.service.CalculatePricing(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "calculate sale order pricing failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *Handler) DraftPricing(w http.ResponseWriter, r *http.Request) {
	var payload OrderPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	res, err := h.service.CalculateDraftPricing(r.Context(), payload)
	if err != nil {
		h.respondError(w, r, "calculate draft pricing failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *Handler) Cost(w http.ResponseWriter, r *http.Request) {
	var req CostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	res, err := h.service.CalculateCost(r.Context(), req)
	if err != nil {
		h.respondError(w, r, "calculate cost failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	} else {
		h.logger.Debug(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}
