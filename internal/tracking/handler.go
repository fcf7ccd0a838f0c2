package tracking

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

// Handler exposes the entity hierarchy over HTTP.
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

// MountRoutes registers CRUD routes for customers, projects and activities.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/customers", func(cr chi.Router) {
		cr.Use(h.guard.RequireActor())
		cr.Get("/", h.listCustomers)
		cr.With(h.guard.RequireGranted(security.AttrCreate, security.KindCustomer)).Post("/", h.createCustomer)
		cr.Get("/{id}", h.getCustomer)
		cr.Put("/{id}", h.updateCustomer)
		cr.Delete("/{id}", h.deleteCustomer)
		cr.Put("/{id}/teams", h.setCustomerTeams)
	})
	r.Route("/projects", func(pr chi.Router) {
		pr.Use(h.guard.RequireActor())
		pr.Get("/", h.listProjects)
		pr.With(h.guard.RequireGranted(security.AttrCreate, security.KindProject)).Post("/", h.createProject)
		pr.Get("/{id}", h.getProject)
		pr.Put("/{id}", h.updateProject)
		pr.Delete("/{id}", h.deleteProject)
		pr.Put("/{id}/teams", h.setProjectTeams)
	})
	r.Route("/activities", func(ar chi.Router) {
		ar.Use(h.guard.RequireActor())
		ar.Get("/", h.listActivities)
		ar.With(h.guard.RequireGranted(security.AttrCreate, security.KindActivity)).Post("/", h.createActivity)
		ar.Get("/{id}", h.getActivity)
		ar.Put("/{id}", h.updateActivity)
		ar.Delete("/{id}", h.deleteActivity)
		ar.Put("/{id}/teams", h.setActivityTeams)
	})
}

type customerForm struct {
	Name       string  `json:"name" validate:"required,max=150"`
	Number     string  `json:"number" validate:"max=50"`
	Comment    string  `json:"comment"`
	Visible    bool    `json:"visible"`
	Currency   string  `json:"currency" validate:"omitempty,len=3"`
	Budget     float64 `json:"budget" validate:"gte=0"`
	TimeBudget int64   `json:"timeBudget" validate:"gte=0"`
	BudgetType string  `json:"budgetType" validate:"omitempty,oneof=month"`
}

type projectForm struct {
	CustomerID int64   `json:"customerId" validate:"required,gt=0"`
	Name       string  `json:"name" validate:"required,max=150"`
	Comment    string  `json:"comment"`
	Visible    bool    `json:"visible"`
	Budget     float64 `json:"budget" validate:"gte=0"`
	TimeBudget int64   `json:"timeBudget" validate:"gte=0"`
	BudgetType string  `json:"budgetType" validate:"omitempty,oneof=month"`
}

type activityForm struct {
	ProjectID  *int64  `json:"projectId" validate:"omitempty,gt=0"`
	Name       string  `json:"name" validate:"required,max=150"`
	Comment    string  `json:"comment"`
	Visible    bool    `json:"visible"`
	Budget     float64 `json:"budget" validate:"gte=0"`
	TimeBudget int64   `json:"timeBudget" validate:"gte=0"`
	BudgetType string  `json:"budgetType" validate:"omitempty,oneof=month"`
}

type teamsForm struct {
	TeamIDs []int64 `json:"teamIds" validate:"dive,gt=0"`
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	customers, err := h.service.Customers(r.Context(), actor)
	if err != nil {
		h.logger.Error("list customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.service.GetCustomer(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrView, c) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var form customerForm
	if !h.decode(w, r, &form) {
		return
	}
	id, err := h.service.CreateCustomer(r.Context(), Customer{
		Name:       form.Name,
		Number:     form.Number,
		Comment:    form.Comment,
		Visible:    form.Visible,
		Currency:   form.Currency,
		Budget:     form.Budget,
		TimeBudget: form.TimeBudget,
		BudgetType: BudgetType(form.BudgetType),
	})
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.GetCustomer(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrEdit, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var form customerForm
	if !h.decode(w, r, &form) {
		return
	}
	current.Name = form.Name
	current.Number = form.Number
	current.Comment = form.Comment
	current.Visible = form.Visible
	current.Currency = form.Currency
	current.Budget = form.Budget
	current.TimeBudget = form.TimeBudget
	current.BudgetType = BudgetType(form.BudgetType)
	if err := h.service.UpdateCustomer(r.Context(), *current); err != nil {
		h.respondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, current)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.GetCustomer(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrDelete, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		h.respondEntityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setCustomerTeams(w http.ResponseWriter, r *http.Request) {
	h.setTeams(w, r, security.KindCustomer)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	customerID := optionalQueryID(r, "customer")
	projects, err := h.service.Projects(r.Context(), actor, customerID)
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProject(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrView, p) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var form projectForm
	if !h.decode(w, r, &form) {
		return
	}
	id, err := h.service.CreateProject(r.Context(), Project{
		CustomerID: form.CustomerID,
		Name:       form.Name,
		Comment:    form.Comment,
		Visible:    form.Visible,
		Budget:     form.Budget,
		TimeBudget: form.TimeBudget,
		BudgetType: BudgetType(form.BudgetType),
	})
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.GetProject(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrEdit, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var form projectForm
	if !h.decode(w, r, &form) {
		return
	}
	current.CustomerID = form.CustomerID
	current.Name = form.Name
	current.Comment = form.Comment
	current.Visible = form.Visible
	current.Budget = form.Budget
	current.TimeBudget = form.TimeBudget
	current.BudgetType = BudgetType(form.BudgetType)
	if err := h.service.UpdateProject(r.Context(), *current); err != nil {
		h.respondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, current)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.GetProject(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrDelete, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.DeleteProject(r.Context(), id); err != nil {
		h.respondEntityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setProjectTeams(w http.ResponseWriter, r *http.Request) {
	h.setTeams(w, r, security.KindProject)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	projectID := optionalQueryID(r, "project")
	activities, err := h.service.Activities(r.Context(), actor, projectID)
	if err != nil {
		h.logger.Error("list activities", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, activities)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.service.GetActivity(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrView, a) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var form activityForm
	if !h.decode(w, r, &form) {
		return
	}
	id, err := h.service.CreateActivity(r.Context(), Activity{
		ProjectID:  form.ProjectID,
		Name:       form.Name,
		Comment:    form.Comment,
		Visible:    form.Visible,
		Budget:     form.Budget,
		TimeBudget: form.TimeBudget,
		BudgetType: BudgetType(form.BudgetType),
	})
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.GetActivity(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrEdit, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var form activityForm
	if !h.decode(w, r, &form) {
		return
	}
	current.ProjectID = form.ProjectID
	current.Name = form.Name
	current.Comment = form.Comment
	current.Visible = form.Visible
	current.Budget = form.Budget
	current.TimeBudget = form.TimeBudget
	current.BudgetType = BudgetType(form.BudgetType)
	if err := h.service.UpdateActivity(r.Context(), *current); err != nil {
		h.respondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, current)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.service.GetActivity(r.Context(), actor, id)
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrDelete, current) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.DeleteActivity(r.Context(), id); err != nil {
		h.respondEntityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setActivityTeams(w http.ResponseWriter, r *http.Request) {
	h.setTeams(w, r, security.KindActivity)
}

// setTeams replaces an entity's team restriction set; requires the
// permissions attribute on the concrete entity.
func (h *Handler) setTeams(w http.ResponseWriter, r *http.Request, kind security.EntityKind) {
	actor := security.ActorFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var subject any
	var err error
	switch kind {
	case security.KindCustomer:
		subject, err = h.service.GetCustomer(r.Context(), actor, id)
	case security.KindProject:
		subject, err = h.service.GetProject(r.Context(), actor, id)
	default:
		subject, err = h.service.GetActivity(r.Context(), actor, id)
	}
	if err != nil {
		h.respondEntityError(w, err)
		return
	}
	if !h.guard.Resolver.Decide(actor, security.AttrPermissions, subject) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	var form teamsForm
	if !h.decode(w, r, &form) {
		return
	}
	if err := h.service.SetTeams(r.Context(), kind, id, form.TeamIDs); err != nil {
		h.respondEntityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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

func (h *Handler) respondEntityError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "entity not found")
	case errors.Is(err, ErrAlreadyExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "entity already exists")
	case errors.Is(err, ErrInvalidName):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name must not be empty")
	default:
		h.logger.Error("tracking request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func optionalQueryID(r *http.Request, key string) *int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
