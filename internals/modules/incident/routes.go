package incident

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, authMW func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListIncidents)
	r.Get("/{incidentID}", h.GetIncident)
	r.With(authMW).Post("/{incidentID}/close", h.CloseIncident)

	return r
}

/*
- GET: /incidents?status={}&limit={}&offset={}  -> list incidents
- GET: /incidents/{incidentID}                  -> incident detail with attempts
- POST: /incidents/{incidentID}/close           -> operator close (auth required)
*/
