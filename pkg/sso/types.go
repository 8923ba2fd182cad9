package sso

import "fmt"

// Default claim names used when the deployment does not override them
const (
	DefaultUsernameClaim = "preferred_username"
	DefaultEmailClaim    = "email"
	DefaultGroupsClaim   = "groups"
	DefaultNameClaim     = "name"
)

// Config holds the OIDC provider settings. Validation happens when the
// login flow is first exercised, not at process startup, so deployments
// that never enter oauth mode can leave this empty.
type Config struct {
	ClientID     string
	ClientSecret string
	IssuerURL    string
	RedirectURL  string
	Scopes       []string

	// Manual endpoints for providers without discovery support
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// Claim name overrides, each supporting dotted paths such as
	// "resource_access.console.roles"
	UsernameClaim    string
	EmailClaim       string
	GroupsClaim      string
	DisplayNameClaim string
}

// normalize fills unset scope and claim settings with defaults
func (c Config) normalize() Config {
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"openid", "profile", "email"}
	}
	if c.UsernameClaim == "" {
		c.UsernameClaim = DefaultUsernameClaim
	}
	if c.EmailClaim == "" {
		c.EmailClaim = DefaultEmailClaim
	}
	if c.GroupsClaim == "" {
		c.GroupsClaim = DefaultGroupsClaim
	}
	if c.DisplayNameClaim == "" {
		c.DisplayNameClaim = DefaultNameClaim
	}
	return c
}

// ConfigError reports an incomplete or inconsistent provider configuration.
// It is raised at the point the login flow needs the missing setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sso configuration error: %s: %s", e.Field, e.Reason)
}

// Identity is the claim set extracted after a successful code exchange
type Identity struct {
	Username    string
	Email       string
	DisplayName string
	Groups      []string
}
