package auth

import (
	"github.com/agentfleet/console/pkg/rbac"
)

// Provider tags how an identity was established
type Provider string

const (
	ProviderAnonymous Provider = "anonymous"
	ProviderProxy     Provider = "proxy"
	ProviderOAuth     Provider = "oauth"
	ProviderAPIKey    Provider = "api-key"
	ProviderBuiltin   Provider = "builtin"
)

// AnonymousUsername is the username assigned to unauthenticated identities
const AnonymousUsername = "anonymous"

// User is a resolved request identity. Role is the global RBAC role;
// workspace-level authority is computed separately per workspace.
type User struct {
	ID          string    `json:"id,omitempty"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Groups      []string  `json:"groups,omitempty"`
	Role        rbac.Role `json:"role"`
	Provider    Provider  `json:"provider"`
}

// IsAnonymous reports whether the identity was not authenticated
func (u *User) IsAnonymous() bool {
	return u == nil || u.Provider == ProviderAnonymous
}

// HasPermission reports whether the user's global role carries the permission
func (u *User) HasPermission(p rbac.Permission) bool {
	if u == nil {
		return false
	}
	return rbac.RoleHasPermission(u.Role, p)
}

// HasAllPermissions reports whether the user's global role carries every
// listed permission. An empty list is satisfied.
func (u *User) HasAllPermissions(perms ...rbac.Permission) bool {
	if u == nil {
		return len(perms) == 0
	}
	return rbac.RoleHasAllPermissions(u.Role, perms)
}

// HasAnyPermission reports whether the user's global role carries at least
// one listed permission. An empty list is never satisfied.
func (u *User) HasAnyPermission(perms ...rbac.Permission) bool {
	if u == nil {
		return false
	}
	return rbac.RoleHasAnyPermission(u.Role, perms)
}

// HasRole reports whether the user's global role ranks at or above required
func (u *User) HasRole(required rbac.Role) bool {
	if u == nil {
		return false
	}
	return u.Role.AtLeast(required)
}

// Anonymous creates an unauthenticated identity with the given default role
func Anonymous(role rbac.Role) *User {
	if !role.Valid() {
		role = rbac.RoleViewer
	}
	return &User{
		Username: AnonymousUsername,
		Role:     role,
		Provider: ProviderAnonymous,
	}
}
