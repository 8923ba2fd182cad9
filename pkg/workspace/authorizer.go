package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/observability"
)

// Authorizer computes workspace access decisions, backed by the cluster
// client and the decision cache.
type Authorizer struct {
	client  Client
	cache   *DecisionCache
	logger  *observability.Logger
	metrics *observability.Metrics

	now func() time.Time
}

// NewAuthorizer creates a workspace authorizer. Metrics may be nil.
func NewAuthorizer(client Client, cache *DecisionCache, logger *observability.Logger, metrics *observability.Metrics) *Authorizer {
	return &Authorizer{
		client:  client,
		cache:   cache,
		logger:  logger.WithField("component", "workspace-authorizer"),
		metrics: metrics,
		now:     time.Now,
	}
}

// CheckAccess decides whether user may act in the named workspace.
//
// The unconstrained decision, the user's actual role and permissions in
// the workspace, is cached by (email, workspace); the required role, when
// non-nil, is applied after the cache so one entry serves every
// requirement level. A denial for an insufficient role still reports the
// role the user does hold.
//
// Infrastructure failures reading the workspace surface as errors; a
// workspace that does not exist is an ordinary denial.
func (a *Authorizer) CheckAccess(ctx context.Context, user *auth.User, workspaceName string, required *Role) (Access, error) {
	start := a.now()
	access, err := a.checkAccess(ctx, user, workspaceName, required)
	if a.metrics != nil {
		a.metrics.AccessCheckLatency.Observe(a.now().Sub(start).Seconds())
		outcome := "denied"
		if err != nil {
			outcome = "error"
		} else if access.Granted {
			outcome = "granted"
		}
		a.metrics.AccessChecksTotal.WithLabelValues(outcome).Inc()
	}
	return access, err
}

func (a *Authorizer) checkAccess(ctx context.Context, user *auth.User, workspaceName string, required *Role) (Access, error) {
	// Anonymous and email-less identities never reach bindings or
	// grants; only an explicit anonymous-access policy admits them.
	if user.IsAnonymous() || user.Email == "" {
		ws, err := a.client.GetWorkspace(ctx, workspaceName)
		if err != nil {
			return Denied(), fmt.Errorf("failed to fetch workspace %q: %w", workspaceName, err)
		}
		if ws == nil || ws.Spec.AnonymousAccess == nil || !ws.Spec.AnonymousAccess.Enabled {
			return Denied(), nil
		}
		role := ws.Spec.AnonymousAccess.Role
		if !role.Valid() {
			role = RoleViewer
		}
		return applyRequired(grantedAccess(role), required), nil
	}

	if cached, ok := a.cache.Get(user.Email, workspaceName); ok {
		a.countCache(true)
		return applyRequired(cached, required), nil
	}
	a.countCache(false)

	ws, err := a.client.GetWorkspace(ctx, workspaceName)
	if err != nil {
		return Denied(), fmt.Errorf("failed to fetch workspace %q: %w", workspaceName, err)
	}
	if ws == nil {
		// Nonexistent workspaces are not cached: creation must be
		// visible immediately.
		return Denied(), nil
	}

	access := a.computeAccess(user, ws)
	a.cache.Set(user.Email, workspaceName, access)
	a.updateCacheSizeGauge()

	return applyRequired(access, required), nil
}

// computeAccess merges the binding and grant paths into the unconstrained
// decision: the higher of the two roles wins.
func (a *Authorizer) computeAccess(user *auth.User, ws *Workspace) Access {
	bindingRole, hasBinding := roleFromBindings(user.Groups, ws.Spec.RoleBindings)
	grantRole, hasGrant := roleFromGrants(user.Email, ws.Spec.DirectGrants, a.now())

	switch {
	case hasBinding && hasGrant:
		return grantedAccess(higher(bindingRole, grantRole))
	case hasBinding:
		return grantedAccess(bindingRole)
	case hasGrant:
		return grantedAccess(grantRole)
	default:
		return Denied()
	}
}

// roleFromBindings returns the highest role granted by any binding whose
// group list intersects the user's groups
func roleFromBindings(groups []string, bindings []RoleBinding) (Role, bool) {
	memberOf := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		memberOf[g] = struct{}{}
	}

	var best Role
	found := false
	for _, binding := range bindings {
		if !binding.Role.Valid() {
			continue
		}
		for _, group := range binding.Groups {
			if _, ok := memberOf[group]; ok {
				if !found || roleRank[binding.Role] > roleRank[best] {
					best = binding.Role
					found = true
				}
				break
			}
		}
	}
	return best, found
}

// roleFromGrants returns the role of the first non-expired grant matching
// the user's email, compared case-insensitively. Later duplicates for the
// same user are ignored.
func roleFromGrants(email string, grants []DirectGrant, now time.Time) (Role, bool) {
	for _, grant := range grants {
		if !strings.EqualFold(grant.User, email) {
			continue
		}
		if grant.Expires != nil && now.After(*grant.Expires) {
			continue
		}
		if !grant.Role.Valid() {
			continue
		}
		return grant.Role, true
	}
	return "", false
}

func grantedAccess(role Role) Access {
	r := role
	return Access{
		Granted:     true,
		Role:        &r,
		Permissions: PermissionsForRole(role),
	}
}

// applyRequired downgrades a granted decision to a denial when the held
// role does not meet the requirement, keeping the actual role visible
func applyRequired(access Access, required *Role) Access {
	if required == nil || !access.Granted {
		return access
	}
	if access.Role == nil || !access.Role.AtLeast(*required) {
		access.Granted = false
	}
	return access
}

// AccessibleWorkspaces lists every workspace the user can enter, filtered
// to those where the user's role meets minRole when non-nil
func (a *Authorizer) AccessibleWorkspaces(ctx context.Context, user *auth.User, minRole *Role) ([]AccessibleWorkspace, error) {
	workspaces, err := a.client.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	out := make([]AccessibleWorkspace, 0, len(workspaces))
	for i := range workspaces {
		ws := &workspaces[i]
		access, err := a.CheckAccess(ctx, user, ws.Name, nil)
		if err != nil {
			return nil, err
		}
		if !access.Granted || access.Role == nil {
			continue
		}
		if minRole != nil && !access.Role.AtLeast(*minRole) {
			continue
		}
		out = append(out, AccessibleWorkspace{
			Name:        ws.Name,
			DisplayName: ws.DisplayName,
			Role:        *access.Role,
			Permissions: access.Permissions,
		})
	}
	return out, nil
}

// InvalidateWorkspace drops cached decisions for one workspace, e.g.
// after its spec changed
func (a *Authorizer) InvalidateWorkspace(name string) int {
	removed := a.cache.InvalidateWorkspace(name)
	if removed > 0 && a.metrics != nil {
		a.metrics.AuthzCacheEvictionsTotal.WithLabelValues("invalidation").Add(float64(removed))
	}
	a.updateCacheSizeGauge()
	return removed
}

// InvalidateUser drops cached decisions for one user, e.g. after group
// membership changed
func (a *Authorizer) InvalidateUser(email string) int {
	removed := a.cache.InvalidateUser(email)
	if removed > 0 && a.metrics != nil {
		a.metrics.AuthzCacheEvictionsTotal.WithLabelValues("invalidation").Add(float64(removed))
	}
	a.updateCacheSizeGauge()
	return removed
}

// PruneExpiredCache removes TTL-expired cache entries; wired to the
// periodic sweep
func (a *Authorizer) PruneExpiredCache() int {
	removed := a.cache.PruneExpired()
	if removed > 0 {
		a.logger.WithField("removed", removed).Debug("pruned expired authorization cache entries")
		if a.metrics != nil {
			a.metrics.AuthzCacheEvictionsTotal.WithLabelValues("ttl").Add(float64(removed))
		}
	}
	a.updateCacheSizeGauge()
	return removed
}

// CacheStats exposes cache counters for diagnostics
func (a *Authorizer) CacheStats() CacheStats {
	return a.cache.Stats()
}

func (a *Authorizer) countCache(hit bool) {
	if a.metrics == nil {
		return
	}
	if hit {
		a.metrics.AuthzCacheHitsTotal.Inc()
	} else {
		a.metrics.AuthzCacheMissesTotal.Inc()
	}
}

func (a *Authorizer) updateCacheSizeGauge() {
	if a.metrics != nil {
		a.metrics.AuthzCacheSize.Set(float64(a.cache.Stats().Size))
	}
}
