package security

// Default permission grants per role. Role configuration stored elsewhere may
// override these; the users service flattens the result into User.Permissions.

var ownProfilePermissions = []string{
	profilePermission(AttrView, true),
	profilePermission(AttrEdit, true),
	profilePermission(AttrPassword, true),
	profilePermission(AttrPreferences, true),
	profilePermission(AttrAPIToken, true),
}

var otherProfilePermissions = []string{
	profilePermission(AttrView, false),
	profilePermission(AttrEdit, false),
	profilePermission(AttrPassword, false),
	profilePermission(AttrRoles, false),
	profilePermission(AttrTeams, false),
	profilePermission(AttrPreferences, false),
}

func rolePermissions(role string) []string {
	switch role {
	case RoleUser:
		perms := []string{
			Permission{AttrView, KindTimesheet, TierDirect}.Name(),
			Permission{AttrCreate, KindTimesheet, TierDirect}.Name(),
			Permission{AttrEdit, KindTimesheet, TierDirect}.Name(),
			Permission{AttrStart, KindTimesheet, TierDirect}.Name(),
			Permission{AttrStop, KindTimesheet, TierDirect}.Name(),
			Permission{AttrDuplicate, KindTimesheet, TierDirect}.Name(),
		}
		return append(perms, ownProfilePermissions...)
	case RoleTeamlead:
		perms := make([]string, 0, 24)
		for _, kind := range []EntityKind{KindCustomer, KindProject, KindActivity} {
			for _, attr := range []Attribute{AttrView, AttrEdit, AttrBudget, AttrTime, AttrDetails} {
				perms = append(perms, Permission{attr, kind, TierTeamlead}.Name())
			}
		}
		return perms
	case RoleAdmin:
		perms := make([]string, 0, 48)
		for _, kind := range []EntityKind{KindCustomer, KindProject, KindActivity} {
			for _, attr := range []Attribute{
				AttrView, AttrEdit, AttrDelete, AttrCreate,
				AttrBudget, AttrTime, AttrPermissions,
				AttrComments, AttrCommentsCreate, AttrDetails,
			} {
				perms = append(perms, Permission{attr, kind, TierDirect}.Name())
			}
		}
		for _, attr := range []Attribute{AttrView, AttrEdit, AttrDelete, AttrCreate} {
			perms = append(perms, Permission{attr, KindTeam, TierDirect}.Name())
		}
		for _, attr := range []Attribute{AttrView, AttrEdit, AttrDelete, AttrExport} {
			perms = append(perms, Permission{attr, KindTimesheet, TierDirect}.Name())
		}
		return perms
	case RoleSuperAdmin:
		perms := rolePermissions(RoleAdmin)
		for _, attr := range []Attribute{AttrView, AttrEdit, AttrDelete, AttrCreate} {
			perms = append(perms, Permission{attr, KindUser, TierDirect}.Name())
		}
		return append(perms, otherProfilePermissions...)
	default:
		return nil
	}
}

// PermissionsForRoles flattens the default grants of a role set into the
// lookup map carried on User. Roles imply lower roles only through their own
// grant lists; no hierarchy is applied here.
func PermissionsForRoles(roles []string) map[string]struct{} {
	perms := make(map[string]struct{})
	for _, role := range roles {
		for _, name := range rolePermissions(role) {
			perms[name] = struct{}{}
		}
	}
	return perms
}
