package teams

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/security"
)

type memoryTeamStore struct {
	teams  map[int64]security.Team
	nextID int64
}

func newMemoryTeamStore() *memoryTeamStore {
	return &memoryTeamStore{teams: make(map[int64]security.Team)}
}

func (m *memoryTeamStore) Get(ctx context.Context, id int64) (*security.Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memoryTeamStore) List(ctx context.Context) ([]*security.Team, error) {
	out := make([]*security.Team, 0, len(m.teams))
	for id := range m.teams {
		t := m.teams[id]
		out = append(out, &t)
	}
	return out, nil
}

func (m *memoryTeamStore) Create(ctx context.Context, t security.Team) (int64, error) {
	m.nextID++
	t.ID = m.nextID
	m.teams[t.ID] = t
	return t.ID, nil
}

func (m *memoryTeamStore) Update(ctx context.Context, t security.Team) error {
	if _, ok := m.teams[t.ID]; !ok {
		return ErrNotFound
	}
	m.teams[t.ID] = t
	return nil
}

func (m *memoryTeamStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.teams[id]; !ok {
		return ErrNotFound
	}
	delete(m.teams, id)
	return nil
}

func (m *memoryTeamStore) SetMembers(ctx context.Context, teamID int64, members []security.Membership) error {
	t, ok := m.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	t.Members = members
	m.teams[teamID] = t
	return nil
}

func TestCreatePromotesCreatorToLead(t *testing.T) {
	svc := NewService(newMemoryTeamStore(), slog.Default())
	actor := &security.User{ID: 5}

	team, err := svc.Create(context.Background(), actor, "  Platform  ",
		[]security.Membership{{UserID: 7}})
	require.NoError(t, err)
	require.Equal(t, "Platform", team.Name)
	require.True(t, team.HasTeamlead(5), "creator leads when no lead was named")
	require.True(t, team.HasMember(7))
}

func TestCreateKeepsExplicitLead(t *testing.T) {
	svc := NewService(newMemoryTeamStore(), slog.Default())
	actor := &security.User{ID: 5}

	team, err := svc.Create(context.Background(), actor, "Platform",
		[]security.Membership{{UserID: 7, Teamlead: true}})
	require.NoError(t, err)
	require.True(t, team.HasTeamlead(7))
	require.False(t, team.HasMember(5))
}

func TestSetMembersNormalizesTeamID(t *testing.T) {
	store := newMemoryTeamStore()
	svc := NewService(store, slog.Default())
	actor := &security.User{ID: 5}

	team, err := svc.Create(context.Background(), actor, "Platform", nil)
	require.NoError(t, err)

	updated, err := svc.SetMembers(context.Background(), team.ID, []security.Membership{
		{UserID: 7, TeamID: 999, Teamlead: true},
		{UserID: 7},
		{UserID: 8},
	})
	require.NoError(t, err)
	require.Len(t, updated.Members, 2, "duplicate user rows collapse")
	for _, m := range updated.Members {
		require.Equal(t, team.ID, m.TeamID)
	}
	require.True(t, updated.HasTeamlead(7))
}
