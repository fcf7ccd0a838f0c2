package tracking

import (
	"context"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tempora-app/tempora/internal/budget"
	"github.com/tempora-app/tempora/internal/security"
)

// Store is the persistence surface the service needs; satisfied by
// *Repository and by the in-memory mock in tests.
type Store interface {
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	ListCustomers(ctx context.Context, includeHidden bool) ([]*Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	UpdateCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context, customerID *int64, includeHidden bool) ([]*Project, error)
	CreateProject(ctx context.Context, p Project) (int64, error)
	UpdateProject(ctx context.Context, p Project) error
	DeleteProject(ctx context.Context, id int64) error

	GetActivity(ctx context.Context, id int64) (*Activity, error)
	ListActivities(ctx context.Context, projectID *int64, includeHidden bool) ([]*Activity, error)
	CreateActivity(ctx context.Context, a Activity) (int64, error)
	UpdateActivity(ctx context.Context, a Activity) error
	DeleteActivity(ctx context.Context, id int64) error

	SetTeams(ctx context.Context, kind security.EntityKind, entityID int64, teamIDs []int64) error
}

// Service applies visibility rules over the entity hierarchy. Every listing
// is filtered through the resolver's access check for the acting user; names
// are ordered with a locale-aware collator so mixed-case and accented names
// sort the way people expect.
type Service struct {
	store    Store
	resolver *security.Resolver
	collator *collate.Collator
}

// NewService constructs a Service.
func NewService(store Store, resolver *security.Resolver) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		collator: collate.New(language.Und, collate.IgnoreCase),
	}
}

// Customers lists the customers the actor may access, name-sorted.
func (s *Service) Customers(ctx context.Context, actor *security.User) ([]*Customer, error) {
	all, err := s.store.ListCustomers(ctx, actor.CanSeeAllData)
	if err != nil {
		return nil, err
	}
	visible := all[:0]
	for _, c := range all {
		if s.resolver.Decide(actor, security.AttrAccess, c) {
			visible = append(visible, c)
		}
	}
	s.sortByName(len(visible), func(i int) string { return visible[i].Name }, func(i, j int) {
		visible[i], visible[j] = visible[j], visible[i]
	})
	return visible, nil
}

// Projects lists accessible projects, optionally scoped to one customer.
func (s *Service) Projects(ctx context.Context, actor *security.User, customerID *int64) ([]*Project, error) {
	all, err := s.store.ListProjects(ctx, customerID, actor.CanSeeAllData)
	if err != nil {
		return nil, err
	}
	visible := all[:0]
	for _, p := range all {
		if s.resolver.Decide(actor, security.AttrAccess, p) {
			visible = append(visible, p)
		}
	}
	s.sortByName(len(visible), func(i int) string { return visible[i].Name }, func(i, j int) {
		visible[i], visible[j] = visible[j], visible[i]
	})
	return visible, nil
}

// Activities lists accessible activities, optionally scoped to one project.
func (s *Service) Activities(ctx context.Context, actor *security.User, projectID *int64) ([]*Activity, error) {
	all, err := s.store.ListActivities(ctx, projectID, actor.CanSeeAllData)
	if err != nil {
		return nil, err
	}
	visible := all[:0]
	for _, a := range all {
		if s.resolver.Decide(actor, security.AttrAccess, a) {
			visible = append(visible, a)
		}
	}
	s.sortByName(len(visible), func(i int) string { return visible[i].Name }, func(i, j int) {
		visible[i], visible[j] = visible[j], visible[i]
	})
	return visible, nil
}

// VisibleBudgeted adapts the filtered listings for the budget handler.
func (s *Service) VisibleBudgeted(ctx context.Context, actor *security.User, kind security.EntityKind) ([]budget.Budgeted, error) {
	switch kind {
	case security.KindCustomer:
		customers, err := s.Customers(ctx, actor)
		if err != nil {
			return nil, err
		}
		out := make([]budget.Budgeted, len(customers))
		for i, c := range customers {
			out[i] = c
		}
		return out, nil
	case security.KindProject:
		projects, err := s.Projects(ctx, actor, nil)
		if err != nil {
			return nil, err
		}
		out := make([]budget.Budgeted, len(projects))
		for i, p := range projects {
			out[i] = p
		}
		return out, nil
	case security.KindActivity:
		activities, err := s.Activities(ctx, actor, nil)
		if err != nil {
			return nil, err
		}
		out := make([]budget.Budgeted, len(activities))
		for i, a := range activities {
			out[i] = a
		}
		return out, nil
	default:
		return nil, ErrNotFound
	}
}

// GetCustomer loads one customer; hidden behind the resolver access check.
func (s *Service) GetCustomer(ctx context.Context, actor *security.User, id int64) (*Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.resolver.Decide(actor, security.AttrAccess, c) {
		return nil, ErrNotFound
	}
	return c, nil
}

// GetProject loads one project behind the access check.
func (s *Service) GetProject(ctx context.Context, actor *security.User, id int64) (*Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.resolver.Decide(actor, security.AttrAccess, p) {
		return nil, ErrNotFound
	}
	return p, nil
}

// GetActivity loads one activity behind the access check.
func (s *Service) GetActivity(ctx context.Context, actor *security.User, id int64) (*Activity, error) {
	a, err := s.store.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.resolver.Decide(actor, security.AttrAccess, a) {
		return nil, ErrNotFound
	}
	return a, nil
}

// CreateCustomer inserts a customer after normalizing the name.
func (s *Service) CreateCustomer(ctx context.Context, c Customer) (int64, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return 0, ErrInvalidName
	}
	return s.store.CreateCustomer(ctx, c)
}

// UpdateCustomer persists a customer.
func (s *Service) UpdateCustomer(ctx context.Context, c Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	return s.store.UpdateCustomer(ctx, c)
}

// DeleteCustomer removes a customer.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.store.DeleteCustomer(ctx, id)
}

// CreateProject inserts a project.
func (s *Service) CreateProject(ctx context.Context, p Project) (int64, error) {
	p.Name = strings.TrimSpace(p.Name)
	return s.store.CreateProject(ctx, p)
}

// UpdateProject persists a project.
func (s *Service) UpdateProject(ctx context.Context, p Project) error {
	p.Name = strings.TrimSpace(p.Name)
	return s.store.UpdateProject(ctx, p)
}

// DeleteProject removes a project.
func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	return s.store.DeleteProject(ctx, id)
}

// CreateActivity inserts an activity.
func (s *Service) CreateActivity(ctx context.Context, a Activity) (int64, error) {
	a.Name = strings.TrimSpace(a.Name)
	return s.store.CreateActivity(ctx, a)
}

// UpdateActivity persists an activity.
func (s *Service) UpdateActivity(ctx context.Context, a Activity) error {
	a.Name = strings.TrimSpace(a.Name)
	return s.store.UpdateActivity(ctx, a)
}

// DeleteActivity removes an activity.
func (s *Service) DeleteActivity(ctx context.Context, id int64) error {
	return s.store.DeleteActivity(ctx, id)
}

// SetTeams replaces the team restriction set of an entity.
func (s *Service) SetTeams(ctx context.Context, kind security.EntityKind, entityID int64, teamIDs []int64) error {
	return s.store.SetTeams(ctx, kind, entityID, teamIDs)
}

// sortByName is an insertion sort over the collator; entity lists are small
// and the collator has no sort.Slice-compatible comparator for strings held
// behind an index function.
func (s *Service) sortByName(n int, name func(int) string, swap func(int, int)) {
	for i := 1; i < n; i++ {
		for j := i; j > 0 && s.collator.CompareString(name(j), name(j-1)) < 0; j-- {
			swap(j, j-1)
		}
	}
}
