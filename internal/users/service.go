package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tempora-app/tempora/internal/security"
)

// Store abstracts user persistence.
type Store interface {
	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Create(ctx context.Context, u User) (int64, error)
	Update(ctx context.Context, u User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
	SetRoles(ctx context.Context, userID int64, roles []string) error
}

// Service implements account management.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs the user service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.store.Get(ctx, id)
}

// GetByUsername loads one account by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.store.GetByUsername(ctx, strings.TrimSpace(username))
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

// CreateInput carries the fields needed to register an account.
type CreateInput struct {
	Username      string
	Email         string
	Password      string
	Internal      bool
	CanSeeAllData bool
	Roles         []string
}

// Create registers a new account. External accounts carry no local password
// hash; internal accounts get a bcrypt hash of the supplied password.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	roles, err := normalizeRoles(in.Roles)
	if err != nil {
		return nil, err
	}
	u := User{
		Username:      strings.TrimSpace(in.Username),
		Email:         strings.TrimSpace(in.Email),
		Enabled:       true,
		Internal:      in.Internal,
		CanSeeAllData: in.CanSeeAllData,
		Roles:         roles,
	}
	if in.Internal {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	id, err := s.store.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user_id", id, "username", u.Username)
	return s.store.Get(ctx, id)
}

// UpdateInput carries mutable account fields.
type UpdateInput struct {
	Username      string
	Email         string
	Enabled       bool
	CanSeeAllData bool
}

// Update persists account changes.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*User, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	current.Username = strings.TrimSpace(in.Username)
	current.Email = strings.TrimSpace(in.Email)
	current.Enabled = in.Enabled
	current.CanSeeAllData = in.CanSeeAllData
	if err := s.store.Update(ctx, *current); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// SetRoles replaces the role set of an account.
func (s *Service) SetRoles(ctx context.Context, id int64, roles []string) (*User, error) {
	normalized, err := normalizeRoles(roles)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.SetRoles(ctx, id, normalized); err != nil {
		return nil, err
	}
	s.logger.Info("user roles changed", "user_id", id, "roles", normalized)
	return s.store.Get(ctx, id)
}

// ChangePassword rehashes and stores a new password. Accounts authenticated
// externally carry no local credential and are rejected here as well as by
// the permission resolver.
func (s *Service) ChangePassword(ctx context.Context, id int64, password string) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !u.Internal {
		return ErrExternalAccount
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.logger.Info("user password changed", "user_id", id)
	return nil
}

// VerifyPassword compares a candidate password against the stored hash.
func (s *Service) VerifyPassword(u *User, password string) bool {
	if !u.Internal || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func normalizeRoles(roles []string) ([]string, error) {
	known := map[string]struct{}{
		security.RoleUser:       {},
		security.RoleTeamlead:   {},
		security.RoleAdmin:      {},
		security.RoleSuperAdmin: {},
	}
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := known[role]; !ok {
			return nil, fmt.Errorf("%w: unknown role %q", ErrUnknownRole, role)
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	if len(out) == 0 {
		out = append(out, security.RoleUser)
	}
	return out, nil
}
