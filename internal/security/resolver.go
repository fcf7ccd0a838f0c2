package security

// Entity is a protected domain object: it names its kind and exposes its team
// restriction set. Customer, Project and Activity implement it.
type Entity interface {
	TeamHolder
	Kind() EntityKind
}

// Resolver decides grant/deny for (user, attribute, subject) triples by
// combining direct role permission, teamlead-scoped permission and
// team-member-scoped permission, in that order.
//
// The resolver never returns an error: combinations it does not understand
// abstain, and abstention is a deny. The acting user is always passed
// explicitly; there is no ambient principal.
type Resolver struct {
	registry *Registry
}

// NewResolver constructs a Resolver over the given permission registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Decide reports whether user may perform attr on subject. Subject is a
// concrete entity, a *Team, a *User, or an EntityKind token for creation-time
// checks where no instance exists yet.
func (r *Resolver) Decide(user *User, attr Attribute, subject any) bool {
	if user == nil {
		return false
	}
	switch s := subject.(type) {
	case *User:
		return r.decideUser(user, attr, s)
	case *Team:
		return r.decideTeam(user, attr, s)
	case Entity:
		return r.decideEntity(user, attr, s.Kind(), s)
	case EntityKind:
		return r.cascade(user, attr, s, nil)
	default:
		return false
	}
}

func (r *Resolver) decideEntity(user *User, attr Attribute, kind EntityKind, holder TeamHolder) bool {
	if attr == AttrAccess {
		return r.decideAccess(user, holder)
	}
	return r.cascade(user, attr, kind, holder)
}

// decideAccess implements the virtual visibility check: an entity with no team
// restriction is open to everyone; otherwise membership or the all-data
// capability is required.
func (r *Resolver) decideAccess(user *User, holder TeamHolder) bool {
	teams := holder.Teams()
	if len(teams) == 0 {
		return true
	}
	if user.CanSeeAllData {
		return true
	}
	for _, team := range teams {
		if team != nil && team.HasMember(user.ID) {
			return true
		}
	}
	return false
}

// cascade evaluates the three permission tiers in strict order, short
// circuiting on the first grant. Create and delete can never be satisfied by
// a team-scoped permission.
func (r *Resolver) cascade(user *User, attr Attribute, kind EntityKind, holder TeamHolder) bool {
	if r.granted(user, Permission{attr, kind, TierDirect}) {
		return true
	}
	if attr == AttrCreate || attr == AttrDelete {
		return false
	}
	if holder == nil {
		return false
	}
	if r.granted(user, Permission{attr, kind, TierTeamlead}) {
		for _, team := range holder.Teams() {
			if team != nil && team.HasTeamlead(user.ID) {
				return true
			}
		}
	}
	if r.granted(user, Permission{attr, kind, TierTeam}) {
		for _, team := range holder.Teams() {
			if team != nil && team.HasMember(user.ID) {
				return true
			}
		}
	}
	return false
}

func (r *Resolver) granted(user *User, p Permission) bool {
	return r.registry.Knows(p) && user.HasPermission(p.Name())
}

// decideUser handles User subjects, where self-service and admin-service
// permissions are distinct and a few attributes are special-cased.
func (r *Resolver) decideUser(user *User, attr Attribute, subject *User) bool {
	switch attr {
	case AttrCreate:
		return r.granted(user, Permission{AttrCreate, KindUser, TierDirect})
	case AttrDelete:
		// Self-deletion is forbidden for every role configuration.
		if subject.ID == user.ID {
			return false
		}
		return r.granted(user, Permission{AttrDelete, KindUser, TierDirect})
	case AttrPassword:
		// Externally-authenticated accounts cannot have their password
		// changed through this path.
		if !subject.Internal {
			return false
		}
	}
	return user.HasPermission(profilePermission(attr, subject.ID == user.ID))
}

// decideTeam handles Team subjects. Editing or deleting a team additionally
// requires the admin tier or leading that specific team; a generic team-edit
// permission alone is not enough.
func (r *Resolver) decideTeam(user *User, attr Attribute, team *Team) bool {
	switch attr {
	case AttrCreate:
		return r.granted(user, Permission{AttrCreate, KindTeam, TierDirect})
	case AttrEdit, AttrDelete:
		if !r.granted(user, Permission{attr, KindTeam, TierDirect}) {
			return false
		}
		return user.IsAdmin() || team.HasTeamlead(user.ID)
	case AttrView:
		if r.granted(user, Permission{AttrView, KindTeam, TierDirect}) {
			return true
		}
		return team.HasTeamlead(user.ID)
	default:
		return false
	}
}
