package security

// Well-known roles. Roles are flat strings granted to a user; every role maps
// to a set of permission names resolved through the Registry.
const (
	RoleUser       = "ROLE_USER"
	RoleTeamlead   = "ROLE_TEAMLEAD"
	RoleAdmin      = "ROLE_ADMIN"
	RoleSuperAdmin = "ROLE_SUPER_ADMIN"
)

// User is the acting principal. It is a read-only snapshot assembled by the
// users package; the resolver never mutates it.
type User struct {
	ID            int64
	Username      string
	Roles         []string
	Memberships   []Membership
	CanSeeAllData bool
	Internal      bool

	// Permissions holds the flattened permission names granted through the
	// user's roles. Populated by the users service from the Registry defaults
	// plus any per-role overrides.
	Permissions map[string]struct{}
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is in the admin tier.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin) || u.HasRole(RoleSuperAdmin)
}

// HasPermission reports whether the user's role set grants the named permission.
func (u *User) HasPermission(name string) bool {
	if u.Permissions == nil {
		return false
	}
	_, ok := u.Permissions[name]
	return ok
}

// InTeam reports whether the user is a member of the team, optionally
// requiring the teamlead flag.
func (u *User) InTeam(teamID int64, leadOnly bool) bool {
	for _, m := range u.Memberships {
		if m.TeamID != teamID {
			continue
		}
		if leadOnly && !m.Teamlead {
			continue
		}
		return true
	}
	return false
}

// Membership ties a user to a team; Teamlead marks elevated standing within
// that team, distinct from any admin role.
type Membership struct {
	UserID   int64
	TeamID   int64
	Teamlead bool
}

// Team is a named group of members carrying access grants to customers,
// projects and activities.
type Team struct {
	ID      int64
	Name    string
	Members []Membership
}

// Teams implements TeamHolder so team management itself goes through the
// same resolver path as the entities teams protect.
func (t *Team) Teams() []*Team {
	return []*Team{t}
}

// HasMember reports whether the given user belongs to the team.
func (t *Team) HasMember(userID int64) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// HasTeamlead reports whether the given user leads the team.
func (t *Team) HasTeamlead(userID int64) bool {
	for _, m := range t.Members {
		if m.UserID == userID && m.Teamlead {
			return true
		}
	}
	return false
}

// TeamHolder is the capability shared by Customer, Project, Activity and Team:
// an entity optionally restricting visibility to a set of teams. An empty team
// set means open visibility, not closed.
type TeamHolder interface {
	Teams() []*Team
}
