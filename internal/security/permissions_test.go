package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermissionName(t *testing.T) {
	require.Equal(t, "edit_project", Permission{AttrEdit, KindProject, TierDirect}.Name())
	require.Equal(t, "edit_teamlead_project", Permission{AttrEdit, KindProject, TierTeamlead}.Name())
	require.Equal(t, "edit_team_project", Permission{AttrEdit, KindProject, TierTeam}.Name())
	require.Equal(t, "budget_teamlead_activity", Permission{AttrBudget, KindActivity, TierTeamlead}.Name())
}

func TestProfilePermission(t *testing.T) {
	require.Equal(t, "edit_own_profile", profilePermission(AttrEdit, true))
	require.Equal(t, "password_other_profile", profilePermission(AttrPassword, false))
}

func TestRegistryScoping(t *testing.T) {
	r := NewRegistry()

	require.True(t, r.Knows(Permission{AttrView, KindCustomer, TierTeam}))
	require.True(t, r.Knows(Permission{AttrCreate, KindProject, TierDirect}))

	// Create and delete exist only at the direct tier.
	require.False(t, r.Knows(Permission{AttrCreate, KindProject, TierTeamlead}))
	require.False(t, r.Knows(Permission{AttrDelete, KindCustomer, TierTeam}))

	// Team and user permissions are never team scoped.
	require.False(t, r.Knows(Permission{AttrView, KindTeam, TierTeam}))
	require.False(t, r.Knows(Permission{AttrView, KindUser, TierTeamlead}))
}

func TestRolePermissionDefaults(t *testing.T) {
	perms := PermissionsForRoles([]string{RoleUser})
	_, ok := perms[Permission{AttrStart, KindTimesheet, TierDirect}.Name()]
	require.True(t, ok)
	_, ok = perms["edit_own_profile"]
	require.True(t, ok)
	_, ok = perms[Permission{AttrDelete, KindCustomer, TierDirect}.Name()]
	require.False(t, ok)

	admin := PermissionsForRoles([]string{RoleAdmin})
	_, ok = admin[Permission{AttrDelete, KindCustomer, TierDirect}.Name()]
	require.True(t, ok)
}
