package users

import (
	"errors"
	"time"

	"github.com/tempora-app/tempora/internal/security"
)

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrAlreadyExists indicates a username or email collision.
	ErrAlreadyExists = errors.New("users: already exists")
	// ErrExternalAccount indicates a password operation on an account that is
	// not locally authenticated.
	ErrExternalAccount = errors.New("users: externally authenticated account")
	// ErrUnknownRole indicates a role assignment outside the known role set.
	ErrUnknownRole = errors.New("users: unknown role")
)

// User is the persisted account record. The security snapshot handed to the
// resolver is derived from it via Snapshot.
type User struct {
	ID            int64
	Username      string
	Email         string
	PasswordHash  string
	Enabled       bool
	Internal      bool
	CanSeeAllData bool
	Roles         []string
	Memberships   []security.Membership
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot builds the read-only principal the resolver consumes, flattening
// role grants into the permission lookup set.
func (u *User) Snapshot() *security.User {
	snapshot := &security.User{
		ID:            u.ID,
		Username:      u.Username,
		Roles:         u.Roles,
		Memberships:   u.Memberships,
		Internal:      u.Internal,
		CanSeeAllData: u.CanSeeAllData,
		Permissions:   security.PermissionsForRoles(u.Roles),
	}
	if !snapshot.CanSeeAllData {
		snapshot.CanSeeAllData = snapshot.HasRole(security.RoleSuperAdmin)
	}
	return snapshot
}
