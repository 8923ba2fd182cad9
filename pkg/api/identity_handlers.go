package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/httputil"
	"github.com/agentfleet/console/pkg/middleware"
	"github.com/agentfleet/console/pkg/rbac"
	"github.com/agentfleet/console/pkg/workspace"
)

// meResponse describes the caller's identity and global capabilities
type meResponse struct {
	User        *auth.User `json:"user"`
	Permissions []string   `json:"permissions"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	perms := rbac.PermissionsFor(user.Role)
	names := make([]string, 0, len(perms))
	for perm := range perms {
		names = append(names, string(perm))
	}

	httputil.WriteSuccess(w, meResponse{User: user, Permissions: names})
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var minRole *workspace.Role
	if raw := r.URL.Query().Get("minRole"); raw != "" {
		role := workspace.Role(raw)
		if !role.Valid() {
			httputil.WriteBadRequest(w, "invalid minRole")
			return
		}
		minRole = &role
	}

	accessible, err := s.authorizer.AccessibleWorkspaces(r.Context(), user, minRole)
	if err != nil {
		s.logger.WithError(err).Error("failed to list accessible workspaces")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"workspaces": accessible})
}

// handleGetWorkspace runs behind RequireWorkspaceRole(viewer): the access
// decision is already in the context
func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	access := middleware.AccessFrom(r.Context())

	httputil.WriteSuccess(w, map[string]interface{}{
		"name":   name,
		"access": access,
	})
}

// handleWorkspaceAccess reports the caller's access without requiring any;
// the UI uses it to decide what to render
func (s *Server) handleWorkspaceAccess(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	name := mux.Vars(r)["name"]

	access, err := s.authorizer.CheckAccess(r.Context(), user, name, nil)
	if err != nil {
		s.logger.WithError(err).WithField("workspace", name).Error("workspace access check failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, access)
}
