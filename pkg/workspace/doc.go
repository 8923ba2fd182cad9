// Package workspace implements per-workspace authorization for the console.
//
// A workspace is the platform's multi-tenancy unit. Its spec carries
// group-based role bindings and individually-expiring direct grants; the
// Authorizer merges both paths into a single access decision:
//
//	role = max(roleFromBindings(groups), roleFromGrants(email))
//
// under the workspace hierarchy viewer < editor < owner, where "no role" is
// the absolute minimum. Anonymous or email-less identities are denied before
// this computation unless the workspace carries an explicit anonymous-access
// policy.
//
// Decisions are cached in a TTL+LRU DecisionCache keyed by
// (email, workspace) so the cluster API is not consulted on every request.
// The cached value is always the unconstrained access; any required role is
// re-applied on each lookup, letting one cached entry answer
// differently-scoped checks.
package workspace
