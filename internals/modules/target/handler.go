package target

import (
	"context"
	"net/http"
	"watchtower/pkg/apperror"
	"watchtower/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StatusReader serves the cached latest check state per target. Optional:
// without a cache the listing still works, just without live status.
type StatusReader interface {
	GetStatus(ctx context.Context, targetID string) (map[string]string, error)
}

type Handler struct {
	registry *Registry
	statuses StatusReader
}

func NewHandler(registry *Registry, statuses StatusReader) *Handler {
	return &Handler{
		registry: registry,
		statuses: statuses,
	}
}

// GET /targets
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	resp := ListTargetsResponse{Targets: make([]TargetResponse, 0, h.registry.Len())}
	for _, t := range h.registry.All() {
		resp.Targets = append(resp.Targets, h.toResponse(ctx, t))
	}

	utils.WriteJSON(w, http.StatusOK, reqID, "", resp)
}

// GET /targets/{targetID}
func (h *Handler) GetTarget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	t, ok := h.registry.Get(chi.URLParam(r, "targetID"))
	if !ok {
		utils.WriteError(w, http.StatusNotFound, reqID, apperror.NotFound, "target not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, reqID, "", h.toResponse(ctx, t))
}

func (h *Handler) toResponse(ctx context.Context, t Target) TargetResponse {
	resp := TargetResponse{
		ID:               t.ID,
		Kind:             string(t.Kind),
		Address:          t.Address,
		CheckInterval:    t.CheckInterval.String(),
		FailureThreshold: t.FailureThreshold,
		SuccessThreshold: t.SuccessThreshold,
	}

	if h.statuses != nil {
		status, err := h.statuses.GetStatus(ctx, t.ID)
		if err == nil && len(status) > 0 {
			resp.Status = status
		}
	}

	return resp
}
