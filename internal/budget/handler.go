package budget

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/tempora-app/tempora/internal/platform/httpx"
	"github.com/tempora-app/tempora/internal/security"
)

// EntityProvider lists the budget-carrying entities visible to an actor.
// Implemented by the tracking service.
type EntityProvider interface {
	VisibleBudgeted(ctx context.Context, actor *security.User, kind security.EntityKind) ([]Budgeted, error)
}

// Handler exposes budget statistics over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	entities EntityProvider
	guard    security.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, entities EntityProvider, guard security.Middleware) *Handler {
	return &Handler{logger: logger, service: service, entities: entities, guard: guard}
}

// MountRoutes registers budget endpoints onto the router. Timeline and day
// views rebuild aggregates per call, so they sit behind a per-user limiter.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/budgets", func(br chi.Router) {
		br.Use(h.guard.RequireActor())
		br.Get("/{kind}", h.handleModels)
		br.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/{kind}/{id}/timeline", h.handleTimeline)
			gr.Get("/{kind}/{id}/months/{year}/{month}", h.handleMonthDays)
		})
	})
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	kind, ok := parseKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown entity kind")
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrBudget, kind) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	asOf := time.Now().UTC()
	snapshot := false
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
			return
		}
		// Snapshot view: lifetime totals are cut off after the given day.
		asOf = parsed.Add(24*time.Hour - time.Second)
		snapshot = true
	}

	entities, err := h.entities.VisibleBudgeted(r.Context(), actor, kind)
	if err != nil {
		h.logger.Error("list budgeted entities", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	build := h.service.Models
	if snapshot {
		build = h.service.ModelsAt
	}
	models, err := build(r.Context(), kind, entities, asOf)
	if err != nil {
		h.logger.Error("build budget models", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, models)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	kind, ok := parseKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown entity kind")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrDetails, kind) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	years, err := h.service.Timeline(r.Context(), kind, id)
	if err != nil {
		h.logger.Error("build timeline", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, years)
}

func (h *Handler) handleMonthDays(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	kind, ok := parseKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown entity kind")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1970 || year > 9999 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid year")
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid month")
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrDetails, kind) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	days, err := h.service.MonthDays(r.Context(), kind, id, year, time.Month(month))
	if err != nil {
		h.logger.Error("build month days", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, days)
}

func parseKind(raw string) (security.EntityKind, bool) {
	switch security.EntityKind(strings.ToLower(raw)) {
	case security.KindCustomer:
		return security.KindCustomer, true
	case security.KindProject:
		return security.KindProject, true
	case security.KindActivity:
		return security.KindActivity, true
	default:
		return "", false
	}
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor := security.ActorFromContext(r.Context()); actor != nil {
		return "user:" + strconv.FormatInt(actor.ID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
