// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage
// discoverable.
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserKey contains the resolved *auth.User for the request
	// Set by: middleware.Guard (pkg/middleware)
	// Required by: all protected API endpoints
	UserKey Key = "user"

	// AccessKey contains the *workspace.Access computed for a
	// workspace-scoped request
	// Set by: middleware.Guard workspace wrappers
	// Required by: workspace-scoped endpoints
	AccessKey Key = "workspace_access"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: request logging
	RequestIDKey Key = "request_id"
)
