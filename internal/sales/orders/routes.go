package orders

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Post("/orders/pricing", h.DraftPricing)
	r.Get("/orders/{id}", h.Show)
	r.Put("/orders/{id}", h.Update)
	r.Delete("/orders/{id}", h.Delete)
	r.Patch("/orders/{id}/status", h.AdvanceStatus)
	r.Get("/orders/{id}/pricing", h.Pricing)
	r.Post("/pricing/cost", h.Cost)
}
