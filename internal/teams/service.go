package teams

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tempora-app/tempora/internal/security"
)

// Store abstracts team persistence.
type Store interface {
	Get(ctx context.Context, id int64) (*security.Team, error)
	List(ctx context.Context) ([]*security.Team, error)
	Create(ctx context.Context, t security.Team) (int64, error)
	Update(ctx context.Context, t security.Team) error
	Delete(ctx context.Context, id int64) error
	SetMembers(ctx context.Context, teamID int64, members []security.Membership) error
}

// Service implements team management. Authorization happens in the handler
// through the resolver; the service only enforces structural rules.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs the team service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Get loads one team.
func (s *Service) Get(ctx context.Context, id int64) (*security.Team, error) {
	return s.store.Get(ctx, id)
}

// List returns all teams.
func (s *Service) List(ctx context.Context) ([]*security.Team, error) {
	return s.store.List(ctx)
}

// Create registers a team. The creating user becomes teamlead unless the
// member list already names one.
func (s *Service) Create(ctx context.Context, actor *security.User, name string, members []security.Membership) (*security.Team, error) {
	t := security.Team{
		Name:    strings.TrimSpace(name),
		Members: dedupe(members),
	}
	if !hasLead(t.Members) {
		t.Members = append(t.Members, security.Membership{UserID: actor.ID, Teamlead: true})
	}
	id, err := s.store.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team_id", id, "name", t.Name)
	return s.store.Get(ctx, id)
}

// Rename updates the team name.
func (s *Service) Rename(ctx context.Context, id int64, name string) (*security.Team, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Name = strings.TrimSpace(name)
	if err := s.store.Update(ctx, *t); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Delete removes a team.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("team deleted", "team_id", id)
	return nil
}

// SetMembers replaces the member rows. Membership rows carry the team id of
// the target team regardless of what the caller supplied.
func (s *Service) SetMembers(ctx context.Context, id int64, members []security.Membership) (*security.Team, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	normalized := dedupe(members)
	for i := range normalized {
		normalized[i].TeamID = id
	}
	if err := s.store.SetMembers(ctx, id, normalized); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func dedupe(members []security.Membership) []security.Membership {
	seen := make(map[int64]struct{}, len(members))
	out := make([]security.Membership, 0, len(members))
	for _, m := range members {
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func hasLead(members []security.Membership) bool {
	for _, m := range members {
		if m.Teamlead {
			return true
		}
	}
	return false
}
