package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/httputil"
	"github.com/agentfleet/console/pkg/observability"
	"github.com/agentfleet/console/pkg/rbac"
	"github.com/agentfleet/console/pkg/workspace"
)

type staticClient struct {
	workspaces map[string]*workspace.Workspace
}

func (s *staticClient) GetWorkspace(_ context.Context, name string) (*workspace.Workspace, error) {
	ws, ok := s.workspaces[name]
	if !ok {
		return nil, nil
	}
	return ws, nil
}

func (s *staticClient) ListWorkspaces(context.Context) ([]workspace.Workspace, error) {
	var out []workspace.Workspace
	for _, ws := range s.workspaces {
		out = append(out, *ws)
	}
	return out, nil
}

func testGuard(t *testing.T) *Guard {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	resolver := auth.NewResolver(auth.ResolverConfig{
		Mode:         auth.ModeProxy,
		AdminGroups:  []string{"admins"},
		EditorGroups: []string{"editors"},
	}, nil, nil, logger, nil)

	client := &staticClient{workspaces: map[string]*workspace.Workspace{
		"ml-research": {
			Name: "ml-research",
			Spec: workspace.Spec{
				RoleBindings: []workspace.RoleBinding{
					{Groups: []string{"editors"}, Role: workspace.RoleEditor},
				},
			},
		},
	}}
	authorizer := workspace.NewAuthorizer(client, workspace.NewDecisionCache(10, time.Minute), logger, nil)
	return NewGuard(resolver, authorizer, logger)
}

func doRequest(g *Guard, handler http.HandlerFunc, target string, headers map[string]string) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	router.HandleFunc("/workspaces/{name}", handler)
	router.HandleFunc("/", handler)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	g.WithUser(router).ServeHTTP(rec, req)
	return rec
}

func decodeDenial(t *testing.T, rec *httptest.ResponseRecorder) httputil.DenialResponse {
	t.Helper()
	var denial httputil.DenialResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&denial))
	return denial
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestWithUserInjectsIdentity(t *testing.T) {
	g := testGuard(t)

	var seen *auth.User
	handler := func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}

	doRequest(g, handler, "/", map[string]string{
		auth.DefaultUsernameHeader: "alice",
		auth.DefaultGroupsHeader:   "editors",
	})

	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
	assert.Equal(t, rbac.RoleEditor, seen.Role)
}

func TestRequireAuthenticated(t *testing.T) {
	g := testGuard(t)

	rec := doRequest(g, g.RequireAuthenticated(okHandler), "/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeDenial(t, rec).Error)

	rec = doRequest(g, g.RequireAuthenticated(okHandler), "/", map[string]string{
		auth.DefaultUsernameHeader: "alice",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	g := testGuard(t)
	handler := g.RequireRole(rbac.RoleAdmin, okHandler)

	// Anonymous gets 401, not 403
	rec := doRequest(g, handler, "/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated below the requirement gets 403 with both roles
	rec = doRequest(g, handler, "/", map[string]string{
		auth.DefaultUsernameHeader: "alice",
		auth.DefaultGroupsHeader:   "editors",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	denial := decodeDenial(t, rec)
	assert.Equal(t, "admin", denial.Required)
	assert.Equal(t, "editor", denial.Current)

	rec = doRequest(g, handler, "/", map[string]string{
		auth.DefaultUsernameHeader: "root",
		auth.DefaultGroupsHeader:   "admins",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	g := testGuard(t)
	handler := g.RequirePermission(rbac.PermissionAPIKeysManage, okHandler)

	rec := doRequest(g, handler, "/", map[string]string{
		auth.DefaultUsernameHeader: "viewer-only",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(rbac.PermissionAPIKeysManage), decodeDenial(t, rec).Required)

	rec = doRequest(g, handler, "/", map[string]string{
		auth.DefaultUsernameHeader: "alice",
		auth.DefaultGroupsHeader:   "editors",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireWorkspaceRole(t *testing.T) {
	g := testGuard(t)

	var seen *workspace.Access
	handler := g.RequireWorkspaceRole("name", workspace.RoleViewer, func(w http.ResponseWriter, r *http.Request) {
		seen = AccessFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := doRequest(g, handler, "/workspaces/ml-research", map[string]string{
		auth.DefaultUsernameHeader: "alice",
		auth.DefaultEmailHeader:    "alice@example.com",
		auth.DefaultGroupsHeader:   "editors",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, workspace.RoleEditor, *seen.Role)
}

func TestRequireWorkspaceRoleDenials(t *testing.T) {
	g := testGuard(t)
	handler := g.RequireWorkspaceRole("name", workspace.RoleOwner, okHandler)

	// Anonymous denial maps to 401
	rec := doRequest(g, handler, "/workspaces/ml-research", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Insufficient workspace role maps to 403 and reports the held role
	rec = doRequest(g, handler, "/workspaces/ml-research", map[string]string{
		auth.DefaultUsernameHeader: "alice",
		auth.DefaultEmailHeader:    "alice@example.com",
		auth.DefaultGroupsHeader:   "editors",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	denial := decodeDenial(t, rec)
	assert.Equal(t, "owner", denial.Required)
	assert.Equal(t, "editor", denial.Current)

	// Unknown workspace is an ordinary denial
	viewerHandler := g.RequireWorkspaceRole("name", workspace.RoleViewer, okHandler)
	rec = doRequest(g, viewerHandler, "/workspaces/ghost", map[string]string{
		auth.DefaultUsernameHeader: "alice",
		auth.DefaultEmailHeader:    "alice@example.com",
		auth.DefaultGroupsHeader:   "editors",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
