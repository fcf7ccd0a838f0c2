package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tempora-app/tempora/internal/budget"
	"github.com/tempora-app/tempora/internal/platform/httpx"
	"github.com/tempora-app/tempora/internal/teams"
	"github.com/tempora-app/tempora/internal/timesheet"
	"github.com/tempora-app/tempora/internal/tracking"
	"github.com/tempora-app/tempora/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Authenticator    *users.Authenticator
	TrackingHandler  *tracking.Handler
	TimesheetHandler *timesheet.Handler
	BudgetHandler    *budget.Handler
	UsersHandler     *users.Handler
	TeamsHandler     *teams.Handler
}

// NewRouter builds the chi router with the full middleware chain and all
// module routes mounted under /api/v1.
func NewRouter(params RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: params.Logger, Config: params.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		if params.Authenticator != nil {
			api.Use(params.Authenticator.Middleware)
		}
		if params.TrackingHandler != nil {
			params.TrackingHandler.MountRoutes(api)
		}
		if params.TimesheetHandler != nil {
			params.TimesheetHandler.MountRoutes(api)
		}
		if params.BudgetHandler != nil {
			params.BudgetHandler.MountRoutes(api)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(api)
		}
		if params.TeamsHandler != nil {
			params.TeamsHandler.MountRoutes(api)
		}
	})

	return r
}
