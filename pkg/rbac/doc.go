// Package rbac defines the console's global role and permission model.
//
// Roles form a total order (viewer < editor < admin) and permissions are
// resolved with full inheritance: a role holds its own permission list plus
// the lists of every strictly lower role. The catalogue is fixed at process
// start; all checks are pure table lookups with no I/O and no failure modes.
//
// The global hierarchy here is independent of the per-workspace hierarchy in
// pkg/workspace. The names overlap (viewer, editor) but the scopes do not:
// a global editor may be a mere viewer inside a given workspace.
package rbac
