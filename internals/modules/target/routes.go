package target

import (
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListTargets)
	r.Get("/{targetID}", h.GetTarget)

	return r
}
