package security

import "fmt"

// Attribute is a permission verb checked against a subject.
type Attribute string

// Attributes understood by the resolver.
const (
	AttrView            Attribute = "view"
	AttrEdit            Attribute = "edit"
	AttrDelete          Attribute = "delete"
	AttrCreate          Attribute = "create"
	AttrBudget          Attribute = "budget"
	AttrTime            Attribute = "time"
	AttrPermissions     Attribute = "permissions"
	AttrComments        Attribute = "comments"
	AttrCommentsCreate  Attribute = "comments_create"
	AttrDetails         Attribute = "details"
	AttrAccess          Attribute = "access"
	AttrStart           Attribute = "start"
	AttrStop            Attribute = "stop"
	AttrDuplicate       Attribute = "duplicate"
	AttrExport          Attribute = "export"
	AttrPassword        Attribute = "password"
	AttrRoles           Attribute = "roles"
	AttrTeams           Attribute = "teams"
	AttrPreferences     Attribute = "preferences"
	AttrAPIToken        Attribute = "api-token"
)

// EntityKind names a protected entity type. It doubles as the symbolic
// subject token for creation-time checks where no instance exists yet.
type EntityKind string

// Entity kinds covered by the permission registry.
const (
	KindCustomer  EntityKind = "customer"
	KindProject   EntityKind = "project"
	KindActivity  EntityKind = "activity"
	KindTeam      EntityKind = "team"
	KindUser      EntityKind = "user"
	KindTimesheet EntityKind = "timesheet"
)

// Tier is the scope a permission applies at.
type Tier int

// Permission tiers, in cascade order.
const (
	TierDirect Tier = iota
	TierTeamlead
	TierTeam
)

// Permission is a typed (attribute, kind, tier) triple. The canonical string
// form is what role configuration stores and what User.Permissions holds.
type Permission struct {
	Attribute Attribute
	Kind      EntityKind
	Tier      Tier
}

// Name renders the canonical permission name, e.g. "edit_teamlead_project".
func (p Permission) Name() string {
	switch p.Tier {
	case TierTeamlead:
		return fmt.Sprintf("%s_teamlead_%s", p.Attribute, p.Kind)
	case TierTeam:
		return fmt.Sprintf("%s_team_%s", p.Attribute, p.Kind)
	default:
		return fmt.Sprintf("%s_%s", p.Attribute, p.Kind)
	}
}

// Profile permission suffixes for User subjects: self-service and
// admin-service permissions are distinct keys.
const (
	suffixOwnProfile   = "_own_profile"
	suffixOtherProfile = "_other_profile"
)

func profilePermission(attr Attribute, own bool) string {
	if own {
		return string(attr) + suffixOwnProfile
	}
	return string(attr) + suffixOtherProfile
}

// Registry enumerates every valid permission triple. Lookups against unknown
// triples never grant; building the registry up front keeps the permission
// space closed instead of concatenating free-form strings at check time.
type Registry struct {
	known map[Permission]struct{}
}

// NewRegistry builds the registry covering all supported triples.
func NewRegistry() *Registry {
	r := &Registry{known: make(map[Permission]struct{})}

	teamScoped := []Attribute{
		AttrView, AttrEdit, AttrBudget, AttrTime,
		AttrPermissions, AttrComments, AttrCommentsCreate, AttrDetails,
	}
	directOnly := []Attribute{AttrCreate, AttrDelete}

	for _, kind := range []EntityKind{KindCustomer, KindProject, KindActivity} {
		for _, attr := range teamScoped {
			r.add(Permission{attr, kind, TierDirect})
			r.add(Permission{attr, kind, TierTeamlead})
			r.add(Permission{attr, kind, TierTeam})
		}
		for _, attr := range directOnly {
			r.add(Permission{attr, kind, TierDirect})
		}
	}

	for _, attr := range []Attribute{AttrView, AttrEdit, AttrDelete, AttrCreate} {
		r.add(Permission{attr, KindTeam, TierDirect})
	}

	for _, attr := range []Attribute{AttrView, AttrEdit, AttrDelete, AttrCreate} {
		r.add(Permission{attr, KindUser, TierDirect})
	}

	for _, attr := range []Attribute{
		AttrView, AttrEdit, AttrDelete, AttrCreate,
		AttrStart, AttrStop, AttrDuplicate, AttrExport,
	} {
		r.add(Permission{attr, KindTimesheet, TierDirect})
	}

	return r
}

func (r *Registry) add(p Permission) {
	r.known[p] = struct{}{}
}

// Knows reports whether the triple is part of the permission space.
func (r *Registry) Knows(p Permission) bool {
	_, ok := r.known[p]
	return ok
}

// Names returns the canonical names of every registered permission, for
// exposing the permission space to role-management UIs.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.known))
	for p := range r.known {
		names = append(names, p.Name())
	}
	return names
}
