package auth

import (
	"net/http"
	"strings"

	"github.com/agentfleet/console/pkg/rbac"
)

// Default trusted proxy header names. Deployments behind a different
// auth proxy override these per header.
const (
	DefaultUsernameHeader    = "X-Forwarded-User"
	DefaultEmailHeader       = "X-Forwarded-Email"
	DefaultGroupsHeader      = "X-Forwarded-Groups"
	DefaultDisplayNameHeader = "X-Forwarded-Display-Name"
)

// ProxyHeaders names the request headers a trusted auth proxy populates
type ProxyHeaders struct {
	Username    string
	Email       string
	Groups      string
	DisplayName string
}

// DefaultProxyHeaders returns the standard header set
func DefaultProxyHeaders() ProxyHeaders {
	return ProxyHeaders{
		Username:    DefaultUsernameHeader,
		Email:       DefaultEmailHeader,
		Groups:      DefaultGroupsHeader,
		DisplayName: DefaultDisplayNameHeader,
	}
}

// normalize fills unset header names with the defaults
func (h ProxyHeaders) normalize() ProxyHeaders {
	defaults := DefaultProxyHeaders()
	if h.Username == "" {
		h.Username = defaults.Username
	}
	if h.Email == "" {
		h.Email = defaults.Email
	}
	if h.Groups == "" {
		h.Groups = defaults.Groups
	}
	if h.DisplayName == "" {
		h.DisplayName = defaults.DisplayName
	}
	return h
}

// splitGroups parses a comma-separated group header, trimming whitespace
// and dropping empty entries
func splitGroups(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	groups := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			groups = append(groups, trimmed)
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return groups
}

// userFromProxyHeaders builds an identity from trusted proxy headers.
// Returns nil when the username header is absent, which signals the
// resolver to fall through to the session.
func userFromProxyHeaders(r *http.Request, headers ProxyHeaders, adminGroups, editorGroups []string) *User {
	username := strings.TrimSpace(r.Header.Get(headers.Username))
	if username == "" {
		return nil
	}

	groups := splitGroups(r.Header.Get(headers.Groups))
	return &User{
		ID:          username,
		Username:    username,
		Email:       strings.TrimSpace(r.Header.Get(headers.Email)),
		DisplayName: strings.TrimSpace(r.Header.Get(headers.DisplayName)),
		Groups:      groups,
		Role:        rbac.RoleForGroups(groups, adminGroups, editorGroups),
		Provider:    ProviderProxy,
	}
}
