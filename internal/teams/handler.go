package teams

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tempora-app/tempora/internal/platform/httpx"
	"github.com/tempora-app/tempora/internal/security"
)

// Handler exposes team management over HTTP.
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

// MountRoutes registers the team routes. Edit and delete on a loaded team go
// through the resolver so a teamlead of that team passes without the admin
// tier.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/teams", func(tr chi.Router) {
		tr.Use(h.guard.RequireActor())
		tr.With(h.guard.RequireGranted(security.AttrView, security.KindTeam)).Get("/", h.list)
		tr.With(h.guard.RequireGranted(security.AttrCreate, security.KindTeam)).Post("/", h.create)
		tr.Get("/{id}", h.get)
		tr.Put("/{id}", h.rename)
		tr.Delete("/{id}", h.delete)
		tr.Put("/{id}/members", h.setMembers)
	})
}

type memberForm struct {
	UserID   int64 `json:"userId" validate:"required,gt=0"`
	Teamlead bool  `json:"teamlead"`
}

type teamForm struct {
	Name    string       `json:"name" validate:"required,max=100"`
	Members []memberForm `json:"members" validate:"dive"`
}

type renameForm struct {
	Name string `json:"name" validate:"required,max=100"`
}

type membersForm struct {
	Members []memberForm `json:"members" validate:"required,min=1,dive"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list teams", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondTeamError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrView, t) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	var form teamForm
	if !h.decode(w, r, &form) {
		return
	}
	t, err := h.service.Create(r.Context(), actor, form.Name, toMemberships(form.Members))
	if err != nil {
		h.respondTeamError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondTeamError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrEdit, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var form renameForm
	if !h.decode(w, r, &form) {
		return
	}
	t, err := h.service.Rename(r.Context(), id, form.Name)
	if err != nil {
		h.respondTeamError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondTeamError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrDelete, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondTeamError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setMembers(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondTeamError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrEdit, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var form membersForm
	if !h.decode(w, r, &form) {
		return
	}
	t, err := h.service.SetMembers(r.Context(), id, toMemberships(form.Members))
	if err != nil {
		h.respondTeamError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func toMemberships(forms []memberForm) []security.Membership {
	out := make([]security.Membership, 0, len(forms))
	for _, f := range forms {
		out = append(out, security.Membership{UserID: f.UserID, Teamlead: f.Teamlead})
	}
	return out
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

func (h *Handler) respondTeamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Team not found", err.Error())
	case errors.Is(err, ErrAlreadyExists):
		httpx.Problem(w, http.StatusConflict, "Team already exists", err.Error())
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
