package rbac

// PermissionsFor returns the resolved permission set for a role: the role's
// own catalogue entry unioned with the entries of all strictly lower roles.
// An unknown role resolves to the empty set.
func PermissionsFor(role Role) map[Permission]struct{} {
	rank, ok := roleRank[role]
	if !ok {
		return map[Permission]struct{}{}
	}

	resolved := make(map[Permission]struct{})
	for r, perms := range rolePermissions {
		if roleRank[r] <= rank {
			for _, p := range perms {
				resolved[p] = struct{}{}
			}
		}
	}
	return resolved
}

// RoleHasPermission reports whether the resolved permission set for role
// contains perm
func RoleHasPermission(role Role, perm Permission) bool {
	_, ok := PermissionsFor(role)[perm]
	return ok
}

// RoleHasAllPermissions reports whether role holds every permission in perms.
// An empty list is trivially satisfied.
func RoleHasAllPermissions(role Role, perms []Permission) bool {
	resolved := PermissionsFor(role)
	for _, p := range perms {
		if _, ok := resolved[p]; !ok {
			return false
		}
	}
	return true
}

// RoleHasAnyPermission reports whether role holds at least one permission in
// perms. An empty list never matches.
func RoleHasAnyPermission(role Role, perms []Permission) bool {
	resolved := PermissionsFor(role)
	for _, p := range perms {
		if _, ok := resolved[p]; ok {
			return true
		}
	}
	return false
}

// RoleForGroups maps an identity's group memberships to a global role.
// The admin group list is consulted first, then the editor list; the first
// match wins. No match defaults to viewer. Shared by the proxy-header and
// OIDC credential paths so both resolve roles identically.
func RoleForGroups(groups, adminGroups, editorGroups []string) Role {
	member := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		member[g] = struct{}{}
	}

	for _, g := range adminGroups {
		if _, ok := member[g]; ok {
			return RoleAdmin
		}
	}
	for _, g := range editorGroups {
		if _, ok := member[g]; ok {
			return RoleEditor
		}
	}
	return RoleViewer
}
