package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/auth"
	"github.com/sakif/devpulse/internal/model"
)

// errNoAccount is returned when a protected handler is mounted without
// RequireAccount in front of it.
var errNoAccount = apperror.Unauthenticated()

// DashboardBuilder is service.DashboardService.
type DashboardBuilder interface {
	Build(ctx context.Context, account *model.Account) (*model.Dashboard, error)
}

// DashboardHandler serves GET /dashboard.
type DashboardHandler struct {
	dashboards DashboardBuilder
	logger     *slog.Logger
}

func NewDashboardHandler(dashboards DashboardBuilder, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, logger: logger}
}

// HandleDashboard returns the activity dashboard of the signed-in account.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		WriteError(w, h.logger, errNoAccount)
		return
	}

	d, err := h.dashboards.Build(r.Context(), account)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// HandleHealth is the liveness probe.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Server is running"})
}
