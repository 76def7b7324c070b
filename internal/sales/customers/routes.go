package customers

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers/{id}", h.Show)
	r.Get("/customers/{id}/standing", h.ShowStanding)
}
