package workspace

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/observability"
	"github.com/agentfleet/console/pkg/rbac"
)

// fakeClient serves workspaces from a map and counts fetches so tests can
// observe cache behavior
type fakeClient struct {
	workspaces map[string]*Workspace
	gets       int
	err        error
}

func (f *fakeClient) GetWorkspace(_ context.Context, name string) (*Workspace, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	ws, ok := f.workspaces[name]
	if !ok {
		return nil, nil
	}
	copied := *ws
	return &copied, nil
}

func (f *fakeClient) ListWorkspaces(context.Context) ([]Workspace, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Workspace
	for _, ws := range f.workspaces {
		out = append(out, *ws)
	}
	return out, nil
}

func testAuthorizer(t *testing.T, client Client) *Authorizer {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewAuthorizer(client, NewDecisionCache(100, time.Minute), logger, nil)
}

func memberUser(email string, groups ...string) *auth.User {
	return &auth.User{
		Username: email,
		Email:    email,
		Groups:   groups,
		Role:     rbac.RoleViewer,
		Provider: auth.ProviderOAuth,
	}
}

func rolePtr(r Role) *Role {
	return &r
}

func TestCheckAccessRoleBinding(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ml-research": {
			Name: "ml-research",
			Spec: Spec{
				RoleBindings: []RoleBinding{
					{Groups: []string{"ml-team"}, Role: RoleEditor},
					{Groups: []string{"platform-admins"}, Role: RoleOwner},
				},
			},
		},
	}}
	authz := testAuthorizer(t, client)

	access, err := authz.CheckAccess(context.Background(), memberUser("a@example.com", "ml-team"), "ml-research", nil)
	require.NoError(t, err)
	assert.True(t, access.Granted)
	assert.Equal(t, RoleEditor, *access.Role)
	assert.True(t, access.Permissions.Write)
	assert.False(t, access.Permissions.Delete)
}

func TestCheckAccessHighestBindingWins(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws", Spec: Spec{
			RoleBindings: []RoleBinding{
				{Groups: []string{"team"}, Role: RoleViewer},
				{Groups: []string{"leads", "team"}, Role: RoleOwner},
			},
		}},
	}}
	authz := testAuthorizer(t, client)

	access, err := authz.CheckAccess(context.Background(), memberUser("a@example.com", "team"), "ws", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, *access.Role)
}

func TestCheckAccessMaxOfBindingAndGrant(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws", Spec: Spec{
			RoleBindings: []RoleBinding{{Groups: []string{"team"}, Role: RoleOwner}},
			DirectGrants: []DirectGrant{{User: "a@example.com", Role: RoleViewer}},
		}},
	}}
	authz := testAuthorizer(t, client)

	// Grant is lower than binding: binding wins
	access, err := authz.CheckAccess(context.Background(), memberUser("a@example.com", "team"), "ws", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, *access.Role)

	// No groups: the grant alone applies
	access, err = authz.CheckAccess(context.Background(), memberUser("b@example.com"), "ws", nil)
	require.NoError(t, err)
	assert.False(t, access.Granted)
}

func TestCheckAccessDirectGrantCaseInsensitive(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws", Spec: Spec{
			DirectGrants: []DirectGrant{{User: "Alice@Example.com", Role: RoleEditor}},
		}},
	}}
	authz := testAuthorizer(t, client)

	access, err := authz.CheckAccess(context.Background(), memberUser("alice@example.com"), "ws", nil)
	require.NoError(t, err)
	assert.True(t, access.Granted)
	assert.Equal(t, RoleEditor, *access.Role)
}

func TestCheckAccessExpiredGrantIgnored(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws", Spec: Spec{
			DirectGrants: []DirectGrant{
				{User: "a@example.com", Role: RoleOwner, Expires: &past},
				{User: "a@example.com", Role: RoleViewer, Expires: &future},
			},
		}},
	}}
	authz := testAuthorizer(t, client)

	// The expired owner grant is skipped; the live viewer grant applies
	access, err := authz.CheckAccess(context.Background(), memberUser("a@example.com"), "ws", nil)
	require.NoError(t, err)
	assert.True(t, access.Granted)
	assert.Equal(t, RoleViewer, *access.Role)
}

func TestCheckAccessFirstLiveGrantWins(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws", Spec: Spec{
			DirectGrants: []DirectGrant{
				{User: "a@example.com", Role: RoleViewer},
				{User: "a@example.com", Role: RoleOwner},
			},
		}},
	}}
	authz := testAuthorizer(t, client)

	access, err := authz.CheckAccess(context.Background(), memberUser("a@example.com"), "ws", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, *access.Role)
}

func TestCheckAccessRequiredRole(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws", Spec: Spec{
			RoleBindings: []RoleBinding{{Groups: []string{"team"}, Role: RoleEditor}},
		}},
	}}
	authz := testAuthorizer(t, client)
	user := memberUser("a@example.com", "team")

	access, err := authz.CheckAccess(context.Background(), user, "ws", rolePtr(RoleEditor))
	require.NoError(t, err)
	assert.True(t, access.Granted)

	// Insufficient role denies but still reports what the user holds
	access, err = authz.CheckAccess(context.Background(), user, "ws", rolePtr(RoleOwner))
	require.NoError(t, err)
	assert.False(t, access.Granted)
	require.NotNil(t, access.Role)
	assert.Equal(t, RoleEditor, *access.Role)
	assert.True(t, access.Permissions.Write)
}

func TestCheckAccessNonexistentWorkspace(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{}}
	authz := testAuthorizer(t, client)

	access, err := authz.CheckAccess(context.Background(), memberUser("a@example.com"), "nope", nil)
	require.NoError(t, err)
	assert.False(t, access.Granted)
	assert.Nil(t, access.Role)

	// Denials for missing workspaces are not cached
	_, ok := authz.cache.Get("a@example.com", "nope")
	assert.False(t, ok)
}

func TestCheckAccessClusterError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	authz := testAuthorizer(t, client)

	_, err := authz.CheckAccess(context.Background(), memberUser("a@example.com"), "ws", nil)
	assert.Error(t, err)
}

func TestCheckAccessAnonymousDenied(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws", Spec: Spec{
			RoleBindings: []RoleBinding{{Groups: []string{"team"}, Role: RoleOwner}},
		}},
	}}
	authz := testAuthorizer(t, client)

	access, err := authz.CheckAccess(context.Background(), auth.Anonymous(rbac.RoleViewer), "ws", nil)
	require.NoError(t, err)
	assert.False(t, access.Granted)

	// Authenticated but email-less identities are treated the same
	emailless := &auth.User{Username: "svc", Provider: auth.ProviderProxy, Role: rbac.RoleAdmin}
	access, err = authz.CheckAccess(context.Background(), emailless, "ws", nil)
	require.NoError(t, err)
	assert.False(t, access.Granted)
}

func TestCheckAccessAnonymousPolicy(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"public-docs": {Name: "public-docs", Spec: Spec{
			AnonymousAccess: &AnonymousAccess{Enabled: true, Role: RoleViewer},
		}},
	}}
	authz := testAuthorizer(t, client)

	access, err := authz.CheckAccess(context.Background(), auth.Anonymous(rbac.RoleViewer), "public-docs", nil)
	require.NoError(t, err)
	assert.True(t, access.Granted)
	assert.Equal(t, RoleViewer, *access.Role)

	// The policy role is still subject to a required role
	access, err = authz.CheckAccess(context.Background(), auth.Anonymous(rbac.RoleViewer), "public-docs", rolePtr(RoleEditor))
	require.NoError(t, err)
	assert.False(t, access.Granted)
}

func TestCheckAccessUsesCache(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws", Spec: Spec{
			RoleBindings: []RoleBinding{{Groups: []string{"team"}, Role: RoleEditor}},
		}},
	}}
	authz := testAuthorizer(t, client)
	user := memberUser("a@example.com", "team")

	_, err := authz.CheckAccess(context.Background(), user, "ws", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.gets)

	// Second check, even with a different requirement, hits the cache
	access, err := authz.CheckAccess(context.Background(), user, "ws", rolePtr(RoleOwner))
	require.NoError(t, err)
	assert.False(t, access.Granted)
	assert.Equal(t, 1, client.gets)

	// Invalidation forces a fresh read
	authz.InvalidateWorkspace("ws")
	_, err = authz.CheckAccess(context.Background(), user, "ws", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, client.gets)
}

func TestCheckAccessCachesDenials(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"ws": {Name: "ws"},
	}}
	authz := testAuthorizer(t, client)
	user := memberUser("a@example.com", "team")

	access, err := authz.CheckAccess(context.Background(), user, "ws", nil)
	require.NoError(t, err)
	assert.False(t, access.Granted)
	assert.Equal(t, 1, client.gets)

	// Existing-workspace denials are cached like grants
	_, err = authz.CheckAccess(context.Background(), user, "ws", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.gets)
}

func TestAccessibleWorkspaces(t *testing.T) {
	client := &fakeClient{workspaces: map[string]*Workspace{
		"alpha": {Name: "alpha", DisplayName: "Alpha", Spec: Spec{
			RoleBindings: []RoleBinding{{Groups: []string{"team"}, Role: RoleOwner}},
		}},
		"beta": {Name: "beta", Spec: Spec{
			RoleBindings: []RoleBinding{{Groups: []string{"team"}, Role: RoleViewer}},
		}},
		"gamma": {Name: "gamma", Spec: Spec{
			RoleBindings: []RoleBinding{{Groups: []string{"others"}, Role: RoleOwner}},
		}},
	}}
	authz := testAuthorizer(t, client)
	user := memberUser("a@example.com", "team")

	all, err := authz.AccessibleWorkspaces(context.Background(), user, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	editors, err := authz.AccessibleWorkspaces(context.Background(), user, rolePtr(RoleEditor))
	require.NoError(t, err)
	require.Len(t, editors, 1)
	assert.Equal(t, "alpha", editors[0].Name)
	assert.Equal(t, RoleOwner, editors[0].Role)
	assert.Equal(t, "Alpha", editors[0].DisplayName)
}

func TestCheckAccessFullScenario(t *testing.T) {
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{workspaces: map[string]*Workspace{
		"platform": {Name: "platform", Spec: Spec{
			RoleBindings: []RoleBinding{
				{Groups: []string{"owners@x"}, Role: RoleOwner},
				{Groups: []string{"developers@x"}, Role: RoleEditor},
			},
			DirectGrants: []DirectGrant{
				{User: "guest@x", Role: RoleViewer, Expires: &future},
				{User: "expired@x", Role: RoleEditor, Expires: &past},
			},
		}},
	}}
	authz := testAuthorizer(t, client)
	ctx := context.Background()

	// Group member without a direct grant
	access, err := authz.CheckAccess(ctx, memberUser("admin@x", "developers@x"), "platform", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleEditor, *access.Role)

	// Grant holder without any group
	access, err = authz.CheckAccess(ctx, memberUser("guest@x"), "platform", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, *access.Role)

	// Only an expired grant: denied outright
	access, err = authz.CheckAccess(ctx, memberUser("expired@x"), "platform", nil)
	require.NoError(t, err)
	assert.False(t, access.Granted)
	assert.Nil(t, access.Role)

	// Requiring owner from the editor: denied, real role surfaced
	access, err = authz.CheckAccess(ctx, memberUser("admin@x", "developers@x"), "platform", rolePtr(RoleOwner))
	require.NoError(t, err)
	assert.False(t, access.Granted)
	assert.Equal(t, RoleEditor, *access.Role)
}

func TestWorkspaceRoleOrdering(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleEditor))
	assert.True(t, RoleEditor.AtLeast(RoleViewer))
	assert.False(t, RoleViewer.AtLeast(RoleEditor))
	assert.False(t, Role("superuser").AtLeast(RoleViewer))
	assert.False(t, RoleOwner.AtLeast(Role("superuser")))
}

func TestPermissionsForRole(t *testing.T) {
	assert.Equal(t, Permissions{Read: true}, PermissionsForRole(RoleViewer))
	assert.Equal(t, Permissions{Read: true, Write: true}, PermissionsForRole(RoleEditor))
	assert.Equal(t, Permissions{Read: true, Write: true, Delete: true, ManageMembers: true}, PermissionsForRole(RoleOwner))
	assert.Equal(t, Permissions{}, PermissionsForRole(Role("bogus")))
}
