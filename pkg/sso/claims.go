package sso

import "strings"

// claimValue walks a dotted path through nested claim objects.
// "resource_access.console.roles" descends two objects before reading
// "roles". A missing segment yields (nil, false).
func claimValue(claims map[string]interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var current interface{} = claims
	for _, segment := range segments {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// stringClaim reads a string-valued claim at a dotted path
func stringClaim(claims map[string]interface{}, path string) string {
	value, ok := claimValue(claims, path)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// groupsClaim reads a group list claim. Providers disagree on the shape:
// both JSON arrays and comma-separated strings are accepted.
func groupsClaim(claims map[string]interface{}, path string) []string {
	value, ok := claimValue(claims, path)
	if !ok {
		return nil
	}

	switch v := value.(type) {
	case []interface{}:
		groups := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				groups = append(groups, s)
			}
		}
		if len(groups) == 0 {
			return nil
		}
		return groups
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v
	case string:
		parts := strings.Split(v, ",")
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
	default:
		return nil
	}
}

// identityFromClaims maps a raw claim set to an Identity using the
// configured claim names, falling back from username to email to subject
func identityFromClaims(claims map[string]interface{}, cfg Config) Identity {
	identity := Identity{
		Username:    stringClaim(claims, cfg.UsernameClaim),
		Email:       stringClaim(claims, cfg.EmailClaim),
		DisplayName: stringClaim(claims, cfg.DisplayNameClaim),
		Groups:      groupsClaim(claims, cfg.GroupsClaim),
	}
	if identity.Username == "" {
		identity.Username = identity.Email
	}
	if identity.Username == "" {
		identity.Username = stringClaim(claims, "sub")
	}
	return identity
}
