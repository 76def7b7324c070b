package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lensworks/lensworks/internal/platform/httpx"
	"github.com/lensworks/lensworks/internal/sales/pricing"
)

// Handler manages master data endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/lens-prices", h.lookupPrice)
	r.Get("/options/{kind}", h.listOptions)
}

func (h *Handler) lookupPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lensID, _ := strconv.ParseInt(q.Get("lensId"), 10, 64)
	coatingID, _ := strconv.ParseInt(q.Get("coatingId"), 10, 64)

	rec, err := pricing.Lookup(r.Context(), h.service, lensID, coatingID)
	if err != nil {
		h.respondError(w, "lookup lens price failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, rec)
}

func (h *Handler) listOptions(w http.ResponseWriter, r *http.Request) {
	kind := OptionKind(chi.URLParam(r, "kind"))
	opts, err := h.service.Options(r.Context(), kind)
	if err != nil {
		h.respondError(w, "list options failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, opts)
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

var _ pricing.PriceSource = (*Service)(nil)
