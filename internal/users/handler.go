package users

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

// Handler exposes account management over HTTP.
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

// MountRoutes registers the user routes. List and create are guarded by
// kind-level permissions; everything below an id path segment is decided per
// instance so the own/other profile distinction applies.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/users", func(ur chi.Router) {
		ur.Use(h.guard.RequireActor())
		ur.With(h.guard.RequireGranted(security.AttrView, security.KindUser)).Get("/", h.list)
		ur.With(h.guard.RequireGranted(security.AttrCreate, security.KindUser)).Post("/", h.create)
		ur.Get("/me", h.me)
		ur.Get("/{id}", h.get)
		ur.Put("/{id}", h.update)
		ur.Delete("/{id}", h.delete)
		ur.Put("/{id}/roles", h.setRoles)
		ur.Put("/{id}/password", h.changePassword)
	})
}

type createForm struct {
	Username      string   `json:"username" validate:"required,min=3,max=60"`
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required_if=Internal true,omitempty,min=8"`
	Internal      bool     `json:"internal"`
	CanSeeAllData bool     `json:"canSeeAllData"`
	Roles         []string `json:"roles" validate:"dive,required"`
}

type updateForm struct {
	Username      string `json:"username" validate:"required,min=3,max=60"`
	Email         string `json:"email" validate:"required,email"`
	Enabled       bool   `json:"enabled"`
	CanSeeAllData bool   `json:"canSeeAllData"`
}

type rolesForm struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,required"`
}

type passwordForm struct {
	Password string `json:"password" validate:"required,min=8"`
}

type userView struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Enabled       bool      `json:"enabled"`
	Internal      bool      `json:"internal"`
	CanSeeAllData bool      `json:"canSeeAllData"`
	Roles         []string  `json:"roles"`
	Teams         []int64   `json:"teams"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func viewOf(u *User) userView {
	teams := make([]int64, 0, len(u.Memberships))
	for _, m := range u.Memberships {
		teams = append(teams, m.TeamID)
	}
	return userView{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Enabled:       u.Enabled,
		Internal:      u.Internal,
		CanSeeAllData: u.CanSeeAllData,
		Roles:         u.Roles,
		Teams:         teams,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]userView, 0, len(list))
	for _, u := range list {
		views = append(views, viewOf(u))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	u, err := h.service.Get(r.Context(), actor.ID)
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(u))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrView, u.Snapshot()) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(u))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form createForm
	if !h.decode(w, r, &form) {
		return
	}
	u, err := h.service.Create(r.Context(), CreateInput{
		Username:      form.Username,
		Email:         form.Email,
		Password:      form.Password,
		Internal:      form.Internal,
		CanSeeAllData: form.CanSeeAllData,
		Roles:         form.Roles,
	})
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(u))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrEdit, current.Snapshot()) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var form updateForm
	if !h.decode(w, r, &form) {
		return
	}
	u, err := h.service.Update(r.Context(), id, UpdateInput{
		Username:      form.Username,
		Email:         form.Email,
		Enabled:       form.Enabled,
		CanSeeAllData: form.CanSeeAllData,
	})
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(u))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrDelete, current.Snapshot()) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setRoles(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrRoles, current.Snapshot()) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var form rolesForm
	if !h.decode(w, r, &form) {
		return
	}
	u, err := h.service.SetRoles(r.Context(), id, form.Roles)
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(u))
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondUserError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrPassword, current.Snapshot()) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var form passwordForm
	if !h.decode(w, r, &form) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), id, form.Password); err != nil {
		h.respondUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "User not found", err.Error())
	case errors.Is(err, ErrAlreadyExists):
		httpx.Problem(w, http.StatusConflict, "User already exists", err.Error())
	case errors.Is(err, ErrExternalAccount):
		httpx.Problem(w, http.StatusBadRequest, "External account", err.Error())
	case errors.Is(err, ErrUnknownRole):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown role", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
