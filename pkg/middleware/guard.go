// Package middleware wires identity resolution and authorization into the
// HTTP handler chain.
package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/contextkeys"
	"github.com/agentfleet/console/pkg/httputil"
	"github.com/agentfleet/console/pkg/observability"
	"github.com/agentfleet/console/pkg/rbac"
	"github.com/agentfleet/console/pkg/workspace"
)

// Guard enforces authentication and authorization requirements on routes.
// Denials follow a fixed contract: 401 for anonymous identities facing any
// requirement, 403 with the required and held role for everything else.
type Guard struct {
	resolver   *auth.Resolver
	authorizer *workspace.Authorizer
	logger     *observability.Logger
}

// NewGuard creates a route guard
func NewGuard(resolver *auth.Resolver, authorizer *workspace.Authorizer, logger *observability.Logger) *Guard {
	return &Guard{
		resolver:   resolver,
		authorizer: authorizer,
		logger:     logger.WithField("component", "guard"),
	}
}

// WithUser resolves the request identity and stashes it in the context.
// It imposes no requirement; every route goes through it.
func (g *Guard) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := g.resolver.Resolve(r)
		g.resolver.PersistSession(w, user)
		ctx := context.WithValue(r.Context(), contextkeys.UserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFrom extracts the resolved user from a request context. Handlers
// behind WithUser always find one.
func UserFrom(ctx context.Context) *auth.User {
	user, _ := ctx.Value(contextkeys.UserKey).(*auth.User)
	return user
}

// AccessFrom extracts the workspace access computed by RequireWorkspaceRole
func AccessFrom(ctx context.Context) *workspace.Access {
	access, _ := ctx.Value(contextkeys.AccessKey).(*workspace.Access)
	return access
}

// RequireAuthenticated rejects anonymous identities with 401
func (g *Guard) RequireAuthenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user.IsAnonymous() {
			httputil.WriteUnauthenticated(w, "authentication required")
			return
		}
		next(w, r)
	}
}

// RequireRole rejects identities whose global role ranks below required
func (g *Guard) RequireRole(required rbac.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user.IsAnonymous() {
			httputil.WriteUnauthenticated(w, "authentication required")
			return
		}
		if !user.HasRole(required) {
			httputil.WriteForbidden(w, "insufficient role", string(required), string(user.Role))
			return
		}
		next(w, r)
	}
}

// RequirePermission rejects identities whose global role lacks the permission
func (g *Guard) RequirePermission(required rbac.Permission, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user.IsAnonymous() {
			httputil.WriteUnauthenticated(w, "authentication required")
			return
		}
		if !user.HasPermission(required) {
			httputil.WriteForbidden(w, "missing permission", string(required), string(user.Role))
			return
		}
		next(w, r)
	}
}

// RequireWorkspaceRole authorizes the user against the workspace named by
// the route variable, requiring at least the given workspace role. On
// success the computed access is stashed in the context for the handler.
//
// Anonymous identities are not rejected outright: a workspace may carry an
// anonymous-access policy, so the authorizer decides.
func (g *Guard) RequireWorkspaceRole(pathVar string, required workspace.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		name := mux.Vars(r)[pathVar]
		if name == "" {
			httputil.WriteBadRequest(w, "workspace name is required")
			return
		}

		access, err := g.authorizer.CheckAccess(r.Context(), user, name, &required)
		if err != nil {
			g.logger.WithError(err).WithFields(map[string]interface{}{
				"workspace":  name,
				"request_id": RequestIDFrom(r.Context()),
			}).Error("workspace access check failed")
			httputil.WriteInternalError(w, err)
			return
		}
		if !access.Granted {
			if user.IsAnonymous() {
				httputil.WriteUnauthenticated(w, "authentication required")
				return
			}
			current := ""
			if access.Role != nil {
				current = string(*access.Role)
			}
			httputil.WriteForbidden(w, "insufficient workspace role", string(required), current)
			return
		}

		ctx := context.WithValue(r.Context(), contextkeys.AccessKey, &access)
		next(w, r.WithContext(ctx))
	}
}
