package workspace

import "time"

// Role represents an identity's authority tier inside a single workspace.
// It is independent of the global rbac.Role hierarchy; the names overlap
// but the scopes do not.
type Role string

const (
	RoleViewer Role = "viewer" // Read-only access to the workspace
	RoleEditor Role = "editor" // Can modify workspace resources
	RoleOwner  Role = "owner"  // Full control, including membership
)

// roleRank orders workspace roles for comparisons. Higher rank wins.
var roleRank = map[Role]int{
	RoleViewer: 0,
	RoleEditor: 1,
	RoleOwner:  2,
}

// Valid reports whether r is one of the defined workspace roles
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

// higher returns the higher-ranked of two roles. Callers track absence
// separately; both arguments must be valid roles.
func higher(a, b Role) Role {
	if roleRank[b] > roleRank[a] {
		return b
	}
	return a
}

// Permissions is the capability quad derived from a workspace role
type Permissions struct {
	Read          bool `json:"read"`
	Write         bool `json:"write"`
	Delete        bool `json:"delete"`
	ManageMembers bool `json:"manageMembers"`
}

// PermissionsForRole derives the capability quad for a workspace role.
// An invalid role yields no capabilities.
func PermissionsForRole(r Role) Permissions {
	switch r {
	case RoleViewer:
		return Permissions{Read: true}
	case RoleEditor:
		return Permissions{Read: true, Write: true}
	case RoleOwner:
		return Permissions{Read: true, Write: true, Delete: true, ManageMembers: true}
	default:
		return Permissions{}
	}
}

// RoleBinding grants a role to every member of the listed groups
type RoleBinding struct {
	Groups []string `json:"groups" yaml:"groups"`
	Role   Role     `json:"role" yaml:"role"`
}

// DirectGrant grants a role to one individual by email, optionally
// time-bounded. An expired grant is inert and never active again.
type DirectGrant struct {
	User    string     `json:"user" yaml:"user"`
	Role    Role       `json:"role" yaml:"role"`
	Expires *time.Time `json:"expires,omitempty" yaml:"expires,omitempty"`
}

// AnonymousAccess configures the sole exception to the anonymous-denial
// rule: when enabled, unauthenticated callers receive the configured role
// without bindings or grants being consulted.
type AnonymousAccess struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Role    Role `json:"role" yaml:"role"`
}

// Spec is the authorization-relevant portion of a workspace definition
type Spec struct {
	RoleBindings    []RoleBinding    `json:"roleBindings,omitempty" yaml:"roleBindings,omitempty"`
	DirectGrants    []DirectGrant    `json:"directGrants,omitempty" yaml:"directGrants,omitempty"`
	AnonymousAccess *AnonymousAccess `json:"anonymousAccess,omitempty" yaml:"anonymousAccess,omitempty"`
}

// Workspace mirrors the cluster-side workspace object consumed by the
// authorization engine
type Workspace struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Spec        Spec   `json:"spec" yaml:"spec"`
}

// Access is the derived result of a workspace authorization check.
// When a required role was supplied and not met, Granted is false but Role
// and Permissions still describe what the identity actually holds; callers
// must not infer "no role" from a denial.
type Access struct {
	Granted     bool        `json:"granted"`
	Role        *Role       `json:"role,omitempty"`
	Permissions Permissions `json:"permissions"`
}

// Denied is the zero access decision
func Denied() Access {
	return Access{}
}

// AccessibleWorkspace pairs a workspace with the caller's access to it
type AccessibleWorkspace struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName,omitempty"`
	Role        Role        `json:"role"`
	Permissions Permissions `json:"permissions"`
}
