package rbac

// Role represents the global authority tier of a console identity
type Role string

const (
	RoleViewer Role = "viewer" // Read-only access to the console
	RoleEditor Role = "editor" // Can deploy and manage agents
	RoleAdmin  Role = "admin"  // Full control, including user management
)

// roleRank orders roles for comparisons. Higher rank wins.
var roleRank = map[Role]int{
	RoleViewer: 0,
	RoleEditor: 1,
	RoleAdmin:  2,
}

// Valid reports whether r is one of the defined global roles
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other.
// An unknown role never satisfies any requirement.
func (r Role) AtLeast(other Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	or, ok := roleRank[other]
	if !ok {
		return false
	}
	return rr >= or
}

// ParseRole returns the Role for s, or RoleViewer if s is not a known role
func ParseRole(s string) Role {
	r := Role(s)
	if r.Valid() {
		return r
	}
	return RoleViewer
}

// Permission is an opaque capability tag grouped into the fixed catalogue
type Permission string

const (
	PermissionAgentsView    Permission = "agents:view"
	PermissionAgentsDeploy  Permission = "agents:deploy"
	PermissionAgentsDelete  Permission = "agents:delete"
	PermissionWorkspaceView Permission = "workspaces:view"
	PermissionWorkspaceEdit Permission = "workspaces:manage"
	PermissionAPIKeysManage Permission = "apikeys:manage"
	PermissionUsersManage   Permission = "users:manage"
	PermissionSettingsEdit  Permission = "settings:manage"
)

// rolePermissions lists the permissions each role adds on top of the roles
// below it. Resolution unions a role's list with every lower role's list.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermissionAgentsView,
		PermissionWorkspaceView,
	},
	RoleEditor: {
		PermissionAgentsDeploy,
		PermissionAgentsDelete,
		PermissionAPIKeysManage,
	},
	RoleAdmin: {
		PermissionWorkspaceEdit,
		PermissionUsersManage,
		PermissionSettingsEdit,
	},
}
