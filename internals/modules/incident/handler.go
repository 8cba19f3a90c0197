package incident

import (
	"net/http"
	"strconv"
	"watchtower/pkg/apperror"
	"watchtower/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// GET /incidents?status=open&limit=50&offset=0
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	status := Status(r.URL.Query().Get("status"))
	switch status {
	case "", StatusOpen, StatusRemediating, StatusEscalated, StatusClosed:
	default:
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "unknown status filter")
		return
	}

	limit := parseQueryInt(r, "limit", 50)
	offset := parseQueryInt(r, "offset", 0)

	incidents, err := h.manager.List(ctx, status, limit, offset)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	resp := ListIncidentsResponse{
		Limit:     limit,
		Offset:    offset,
		Incidents: make([]IncidentResponse, 0, len(incidents)),
	}
	for i := range incidents {
		resp.Incidents = append(resp.Incidents, toIncidentResponse(&incidents[i]))
	}

	utils.WriteJSON(w, http.StatusOK, reqID, "", resp)
}

// GET /incidents/{incidentID}
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "incidentID"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "invalid incident id")
		return
	}

	inc, err := h.manager.Get(ctx, id)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, reqID, "", toIncidentResponse(inc))
}

// POST /incidents/{incidentID}/close
// Operator close for incidents whose target left the configuration while
// failing; those are retained until someone closes them here.
func (h *Handler) CloseIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "incidentID"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "invalid incident id")
		return
	}

	if err := h.manager.Close(ctx, id); err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	utils.WriteJSON[any](w, http.StatusOK, reqID, "incident closed", nil)
}

func parseQueryInt(r *http.Request, key string, def int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v < 0 {
		return def
	}
	return int32(v)
}
