package tracking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/security"
)

type memoryTrackingStore struct {
	customers  []*Customer
	projects   []*Project
	activities []*Activity
}

func (m *memoryTrackingStore) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryTrackingStore) ListCustomers(ctx context.Context, includeHidden bool) ([]*Customer, error) {
	out := make([]*Customer, 0, len(m.customers))
	for _, c := range m.customers {
		if c.Visible || includeHidden {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryTrackingStore) CreateCustomer(ctx context.Context, c Customer) (int64, error) {
	c.ID = int64(len(m.customers) + 1)
	m.customers = append(m.customers, &c)
	return c.ID, nil
}

func (m *memoryTrackingStore) UpdateCustomer(ctx context.Context, c Customer) error { return nil }
func (m *memoryTrackingStore) DeleteCustomer(ctx context.Context, id int64) error   { return nil }

func (m *memoryTrackingStore) GetProject(ctx context.Context, id int64) (*Project, error) {
	for _, p := range m.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryTrackingStore) ListProjects(ctx context.Context, customerID *int64, includeHidden bool) ([]*Project, error) {
	out := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		if customerID != nil && p.CustomerID != *customerID {
			continue
		}
		if p.Visible || includeHidden {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryTrackingStore) CreateProject(ctx context.Context, p Project) (int64, error) {
	return 0, nil
}
func (m *memoryTrackingStore) UpdateProject(ctx context.Context, p Project) error { return nil }
func (m *memoryTrackingStore) DeleteProject(ctx context.Context, id int64) error  { return nil }

func (m *memoryTrackingStore) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	for _, a := range m.activities {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryTrackingStore) ListActivities(ctx context.Context, projectID *int64, includeHidden bool) ([]*Activity, error) {
	out := make([]*Activity, 0, len(m.activities))
	for _, a := range m.activities {
		if projectID != nil && a.ProjectID != nil && *a.ProjectID != *projectID {
			continue
		}
		if a.Visible || includeHidden {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryTrackingStore) CreateActivity(ctx context.Context, a Activity) (int64, error) {
	return 0, nil
}
func (m *memoryTrackingStore) UpdateActivity(ctx context.Context, a Activity) error { return nil }
func (m *memoryTrackingStore) DeleteActivity(ctx context.Context, id int64) error   { return nil }

func (m *memoryTrackingStore) SetTeams(ctx context.Context, kind security.EntityKind, entityID int64, teamIDs []int64) error {
	return nil
}

func restrictedTeam(id, memberID int64) []*security.Team {
	return []*security.Team{{
		ID:      id,
		Members: []security.Membership{{UserID: memberID, TeamID: id}},
	}}
}

func TestCustomersFilteredByAccess(t *testing.T) {
	store := &memoryTrackingStore{customers: []*Customer{
		{ID: 1, Name: "Open Corp", Visible: true},
		{ID: 2, Name: "Locked Inc", Visible: true, TeamSet: restrictedTeam(10, 77)},
		{ID: 3, Name: "Hidden LLC", Visible: false},
	}}
	svc := NewService(store, security.NewResolver(security.NewRegistry()))

	outsider := &security.User{ID: 5}
	customers, err := svc.Customers(context.Background(), outsider)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	require.Equal(t, "Open Corp", customers[0].Name)

	member := &security.User{ID: 77, Memberships: []security.Membership{{UserID: 77, TeamID: 10}}}
	customers, err = svc.Customers(context.Background(), member)
	require.NoError(t, err)
	require.Len(t, customers, 2)
}

func TestCanSeeAllDataBypassesRestrictions(t *testing.T) {
	store := &memoryTrackingStore{customers: []*Customer{
		{ID: 1, Name: "Open Corp", Visible: true},
		{ID: 2, Name: "Locked Inc", Visible: true, TeamSet: restrictedTeam(10, 77)},
		{ID: 3, Name: "Hidden LLC", Visible: false},
	}}
	svc := NewService(store, security.NewResolver(security.NewRegistry()))

	auditor := &security.User{ID: 9, CanSeeAllData: true}
	customers, err := svc.Customers(context.Background(), auditor)
	require.NoError(t, err)
	require.Len(t, customers, 3, "all-data users also see hidden entities")
}

func TestListingsSortedByCollatedName(t *testing.T) {
	store := &memoryTrackingStore{customers: []*Customer{
		{ID: 1, Name: "zeta", Visible: true},
		{ID: 2, Name: "Alpha", Visible: true},
		{ID: 3, Name: "beta", Visible: true},
	}}
	svc := NewService(store, security.NewResolver(security.NewRegistry()))

	customers, err := svc.Customers(context.Background(), &security.User{ID: 1})
	require.NoError(t, err)
	require.Len(t, customers, 3)
	require.Equal(t, "Alpha", customers[0].Name)
	require.Equal(t, "beta", customers[1].Name)
	require.Equal(t, "zeta", customers[2].Name)
}

func TestGetCustomerDeniedReadsAsNotFound(t *testing.T) {
	store := &memoryTrackingStore{customers: []*Customer{
		{ID: 2, Name: "Locked Inc", Visible: true, TeamSet: restrictedTeam(10, 77)},
	}}
	svc := NewService(store, security.NewResolver(security.NewRegistry()))

	_, err := svc.GetCustomer(context.Background(), &security.User{ID: 5}, 2)
	require.ErrorIs(t, err, ErrNotFound)

	c, err := svc.GetCustomer(context.Background(),
		&security.User{ID: 77, Memberships: []security.Membership{{UserID: 77, TeamID: 10}}}, 2)
	require.NoError(t, err)
	require.Equal(t, "Locked Inc", c.Name)
}

func TestVisibleBudgetedAdaptsKinds(t *testing.T) {
	projectID := int64(4)
	store := &memoryTrackingStore{
		customers:  []*Customer{{ID: 1, Name: "Open Corp", Visible: true, Budget: 100}},
		projects:   []*Project{{ID: 4, CustomerID: 1, Name: "Launch", Visible: true}},
		activities: []*Activity{{ID: 8, ProjectID: &projectID, Name: "Dev", Visible: true}},
	}
	svc := NewService(store, security.NewResolver(security.NewRegistry()))
	actor := &security.User{ID: 1}

	for _, kind := range []security.EntityKind{
		security.KindCustomer, security.KindProject, security.KindActivity,
	} {
		entities, err := svc.VisibleBudgeted(context.Background(), actor, kind)
		require.NoError(t, err)
		require.Len(t, entities, 1)
	}

	_, err := svc.VisibleBudgeted(context.Background(), actor, security.KindTeam)
	require.ErrorIs(t, err, ErrNotFound)
}
