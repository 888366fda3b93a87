package handlers

import (
	"context"
	"net/http"

	"github.com/boogle-events/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// DashboardService is the subset of services.DashboardService the handlers use.
type DashboardService interface {
	Stats(ctx context.Context, userID string) (types.DashboardStats, error)
}

type DashboardHandler struct {
	dashboardService DashboardService
}

func NewDashboardHandler(dashboardService DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// DashboardRouter registers the dashboard route behind authMiddleware.
func DashboardRouter(r chi.Router, handler *DashboardHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/", handler.Stats)
}

// Stats returns the caller's organized and attended events.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.dashboardService.Stats(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
