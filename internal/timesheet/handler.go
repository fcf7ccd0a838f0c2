package timesheet

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tempora-app/tempora/internal/platform/httpx"
	"github.com/tempora-app/tempora/internal/security"
)

// Handler exposes timesheet operations over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     security.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard security.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers timesheet routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/timesheets", func(tr chi.Router) {
		tr.Use(h.guard.RequireActor())
		tr.Get("/", h.list)
		tr.With(h.guard.RequireGranted(security.AttrStart, security.KindTimesheet)).Post("/start", h.start)
		tr.With(h.guard.RequireGranted(security.AttrStop, security.KindTimesheet)).Post("/{id}/stop", h.stop)
		tr.With(h.guard.RequireGranted(security.AttrDuplicate, security.KindTimesheet)).Post("/{id}/duplicate", h.duplicate)
		tr.With(h.guard.RequireGranted(security.AttrExport, security.KindTimesheet)).Post("/export", h.export)
		tr.Get("/{id}", h.get)
		tr.With(h.guard.RequireGranted(security.AttrEdit, security.KindTimesheet)).Put("/{id}", h.update)
		tr.With(h.guard.RequireGranted(security.AttrDelete, security.KindTimesheet)).Delete("/{id}", h.delete)
	})
}

type startForm struct {
	ActivityID  int64      `json:"activityId" validate:"required,gt=0"`
	Description string     `json:"description" validate:"max=500"`
	Billable    bool       `json:"billable"`
	Begin       *time.Time `json:"begin"`
	StopRunning bool       `json:"stopRunning"`
}

type updateForm struct {
	Begin       time.Time  `json:"begin" validate:"required"`
	End         *time.Time `json:"end"`
	Duration    int64      `json:"duration" validate:"gte=0"`
	Rate        float64    `json:"rate" validate:"gte=0"`
	Billable    bool       `json:"billable"`
	Description string     `json:"description" validate:"max=500"`
}

type exportForm struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.ListForUser(r.Context(), actor.ID, limit, offset)
	if err != nil {
		h.logger.Error("list timesheets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	var form startForm
	if !h.decode(w, r, &form) {
		return
	}
	entry, err := h.service.Start(r.Context(), StartOptions{
		UserID:      actor.ID,
		ActivityID:  form.ActivityID,
		Description: form.Description,
		Billable:    form.Billable,
		Begin:       form.Begin,
		StopRunning: form.StopRunning,
	})
	if err != nil {
		h.logger.Error("start timesheet", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	stopped, err := h.service.Stop(r.Context(), entry.ID)
	if err != nil {
		h.respondEntryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stopped)
}

func (h *Handler) duplicate(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	copy, err := h.service.Duplicate(r.Context(), entry.ID)
	if err != nil {
		h.respondEntryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, copy)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	var form updateForm
	if !h.decode(w, r, &form) {
		return
	}
	entry.Begin = form.Begin
	entry.End = form.End
	entry.Duration = form.Duration
	entry.Rate = form.Rate
	entry.Billable = form.Billable
	entry.Description = form.Description
	if entry.End != nil && entry.Duration == 0 {
		entry.Duration = int64(entry.End.Sub(entry.Begin).Seconds())
	}
	if err := h.service.Update(r.Context(), *entry); err != nil {
		h.respondEntryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), entry.ID); err != nil {
		h.respondEntryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	var form exportForm
	if !h.decode(w, r, &form) {
		return
	}
	batch, count, err := h.service.MarkExported(r.Context(), form.IDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"batch":  batch,
		"locked": count,
	})
}

// loadOwned fetches the entry and enforces ownership: users act on their own
// entries; viewing or editing other users' records requires the all-data
// capability.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request) (*Entry, bool) {
	actor := security.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return nil, false
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondEntryError(w, err)
		return nil, false
	}
	if entry.UserID != actor.ID && !actor.CanSeeAllData {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return entry, true
}

// respondEntryError maps timesheet sentinels onto problem responses.
func (h *Handler) respondEntryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "entry not found")
	case errors.Is(err, ErrExported):
		httpx.Problem(w, http.StatusConflict, "Conflict", "entry is locked by export")
	case errors.Is(err, ErrAlreadyStopped):
		httpx.Problem(w, http.StatusConflict, "Conflict", "entry already stopped")
	case errors.Is(err, ErrRunning):
		httpx.Problem(w, http.StatusConflict, "Conflict", "entry still running")
	default:
		h.logger.Error("timesheet request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}
