// Package plugin implements the run coordinator: a closed catalog of typed
// extension points, the registration protocol plugins use to attach handlers
// to them, and the three dispatch semantics the run driver invokes (void
// notifications, sequential transforms and short-circuiting predicates).
//
// Plugins only ever see a Registrar. The driver holds the *Coordinator and
// calls Emit, Transform, Predicate and Cleanup on it. Keys carry their value
// type and semantics kind, so a transform handler cannot be attached to a
// predicate key and a void key cannot be dispatched as a transform.
package plugin
