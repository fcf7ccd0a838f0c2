package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEntity struct {
	kind  EntityKind
	teams []*Team
}

func (f *fakeEntity) Kind() EntityKind { return f.kind }
func (f *fakeEntity) Teams() []*Team   { return f.teams }

func userWith(id int64, perms ...string) *User {
	lookup := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		lookup[p] = struct{}{}
	}
	return &User{ID: id, Permissions: lookup}
}

func teamOf(id int64, lead int64, members ...int64) *Team {
	t := &Team{ID: id}
	t.Members = append(t.Members, Membership{UserID: lead, TeamID: id, Teamlead: true})
	for _, m := range members {
		t.Members = append(t.Members, Membership{UserID: m, TeamID: id})
	}
	return t
}

func newTestResolver() *Resolver {
	return NewResolver(NewRegistry())
}

func TestDecideDirectPermission(t *testing.T) {
	r := newTestResolver()
	project := &fakeEntity{kind: KindProject, teams: []*Team{teamOf(1, 99)}}

	direct := userWith(5, Permission{AttrEdit, KindProject, TierDirect}.Name())
	require.True(t, r.Decide(direct, AttrEdit, project),
		"direct permission grants regardless of team standing")

	nobody := userWith(5)
	require.False(t, r.Decide(nobody, AttrEdit, project))
}

func TestDecideTeamleadScoped(t *testing.T) {
	r := newTestResolver()
	team := teamOf(1, 5, 7)
	project := &fakeEntity{kind: KindProject, teams: []*Team{team}}

	lead := userWith(5, Permission{AttrEdit, KindProject, TierTeamlead}.Name())
	lead.Memberships = []Membership{{UserID: 5, TeamID: 1, Teamlead: true}}
	require.True(t, r.Decide(lead, AttrEdit, project))

	// Same permission, but only a plain member of the team.
	member := userWith(7, Permission{AttrEdit, KindProject, TierTeamlead}.Name())
	member.Memberships = []Membership{{UserID: 7, TeamID: 1}}
	require.False(t, r.Decide(member, AttrEdit, project))

	// Lead of an unrelated team.
	otherLead := userWith(8, Permission{AttrEdit, KindProject, TierTeamlead}.Name())
	otherLead.Memberships = []Membership{{UserID: 8, TeamID: 2, Teamlead: true}}
	require.False(t, r.Decide(otherLead, AttrEdit, project))
}

func TestDecideTeamScoped(t *testing.T) {
	r := newTestResolver()
	team := teamOf(1, 5, 7)
	project := &fakeEntity{kind: KindProject, teams: []*Team{team}}

	member := userWith(7, Permission{AttrView, KindProject, TierTeam}.Name())
	member.Memberships = []Membership{{UserID: 7, TeamID: 1}}
	require.True(t, r.Decide(member, AttrView, project))

	outsider := userWith(9, Permission{AttrView, KindProject, TierTeam}.Name())
	require.False(t, r.Decide(outsider, AttrView, project))
}

func TestCreateDeleteNeverTeamScoped(t *testing.T) {
	r := newTestResolver()
	team := teamOf(1, 5)
	project := &fakeEntity{kind: KindProject, teams: []*Team{team}}

	// Teamlead standing plus hypothetical scoped names must not grant
	// create or delete; only the direct permission can.
	lead := userWith(5,
		"delete_teamlead_project",
		"delete_team_project",
		"create_teamlead_project",
	)
	lead.Memberships = []Membership{{UserID: 5, TeamID: 1, Teamlead: true}}
	require.False(t, r.Decide(lead, AttrDelete, project))
	require.False(t, r.Decide(lead, AttrCreate, KindProject))

	admin := userWith(6, Permission{AttrDelete, KindProject, TierDirect}.Name())
	require.True(t, r.Decide(admin, AttrDelete, project))
}

func TestDecideKindTokenUsesOnlyDirect(t *testing.T) {
	r := newTestResolver()

	creator := userWith(5, Permission{AttrCreate, KindCustomer, TierDirect}.Name())
	require.True(t, r.Decide(creator, AttrCreate, KindCustomer))
	require.False(t, r.Decide(creator, AttrCreate, KindProject))

	// Without an instance there is no team to scope against.
	scoped := userWith(5, Permission{AttrView, KindCustomer, TierTeam}.Name())
	require.False(t, r.Decide(scoped, AttrView, KindCustomer))
}

func TestDecideAccess(t *testing.T) {
	r := newTestResolver()

	open := &fakeEntity{kind: KindCustomer}
	restricted := &fakeEntity{kind: KindCustomer, teams: []*Team{teamOf(1, 5, 7)}}

	anyone := userWith(42)
	require.True(t, r.Decide(anyone, AttrAccess, open),
		"empty team set means open visibility")
	require.False(t, r.Decide(anyone, AttrAccess, restricted))

	member := userWith(7)
	member.Memberships = []Membership{{UserID: 7, TeamID: 1}}
	require.True(t, r.Decide(member, AttrAccess, restricted))

	allSeeing := userWith(42)
	allSeeing.CanSeeAllData = true
	require.True(t, r.Decide(allSeeing, AttrAccess, restricted))
}

func TestDecideUserProfiles(t *testing.T) {
	r := newTestResolver()

	self := &User{ID: 5, Internal: true}
	other := &User{ID: 9, Internal: true}

	actor := userWith(5, profilePermission(AttrEdit, true))
	actor.Internal = true
	require.True(t, r.Decide(actor, AttrEdit, self))
	require.False(t, r.Decide(actor, AttrEdit, other),
		"own-profile permission does not extend to other accounts")

	admin := userWith(5, profilePermission(AttrEdit, false))
	require.True(t, r.Decide(admin, AttrEdit, other))
	require.False(t, r.Decide(admin, AttrEdit, self))
}

func TestDecideUserSelfDeletionDenied(t *testing.T) {
	r := newTestResolver()

	actor := userWith(5, Permission{AttrDelete, KindUser, TierDirect}.Name())
	self := &User{ID: 5}
	other := &User{ID: 9}

	require.False(t, r.Decide(actor, AttrDelete, self))
	require.True(t, r.Decide(actor, AttrDelete, other))
}

func TestDecidePasswordRequiresInternalAccount(t *testing.T) {
	r := newTestResolver()

	actor := userWith(5,
		profilePermission(AttrPassword, true),
		profilePermission(AttrPassword, false),
	)

	internal := &User{ID: 9, Internal: true}
	external := &User{ID: 9, Internal: false}
	require.True(t, r.Decide(actor, AttrPassword, internal))
	require.False(t, r.Decide(actor, AttrPassword, external))

	selfExternal := &User{ID: 5, Internal: false}
	require.False(t, r.Decide(actor, AttrPassword, selfExternal))
}

func TestDecideTeamEditRequiresStanding(t *testing.T) {
	r := newTestResolver()
	team := teamOf(1, 5)

	// Permission alone is not enough for edit or delete.
	plain := userWith(9, Permission{AttrEdit, KindTeam, TierDirect}.Name())
	require.False(t, r.Decide(plain, AttrEdit, team))

	lead := userWith(5, Permission{AttrEdit, KindTeam, TierDirect}.Name())
	require.True(t, r.Decide(lead, AttrEdit, team))

	admin := userWith(9, Permission{AttrEdit, KindTeam, TierDirect}.Name())
	admin.Roles = []string{RoleAdmin}
	require.True(t, r.Decide(admin, AttrEdit, team))

	// A lead without the permission is denied too.
	bareLead := userWith(5)
	require.False(t, r.Decide(bareLead, AttrEdit, team))
}

func TestDecideTeamView(t *testing.T) {
	r := newTestResolver()
	team := teamOf(1, 5)

	viewer := userWith(9, Permission{AttrView, KindTeam, TierDirect}.Name())
	require.True(t, r.Decide(viewer, AttrView, team))

	lead := userWith(5)
	require.True(t, r.Decide(lead, AttrView, team),
		"leading a team implies seeing it")

	require.False(t, r.Decide(userWith(9), AttrView, team))
}

func TestDecideNilAndUnknownSubjects(t *testing.T) {
	r := newTestResolver()
	require.False(t, r.Decide(nil, AttrView, KindProject))
	require.False(t, r.Decide(userWith(1), AttrView, "project"))
	require.False(t, r.Decide(userWith(1), AttrView, nil))
}
