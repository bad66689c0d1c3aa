// Package acl implements the Gatewarden authorization engine.
//
// The engine answers one question: which rights does a security identity
// (a user, a role, or a group) hold on a protected domain object (a class,
// an object instance, or a field of either).
//
// # Rights
//
// Rights are bit flags that can be combined:
//
//	acl.View | acl.Edit
//
// The All sentinel occupies its own bit and satisfies any containment
// check without being part of the displayable set.
//
// # Evaluation modes
//
// Stored mode returns exactly the persisted mask for an identity/domain
// pair. Calculated mode re-derives rights live: the identity is expanded
// through the role hierarchy and group membership, stored masks across the
// expansion are unioned, and the configured rule chain decides each right
// in declaration order. Group identities are always evaluated in
// calculated mode because group rights derive from member roles and are
// never persisted directly.
//
// # Rule chain
//
// Rules are consulted in configured priority order; the first non-abstain
// decision wins. When every rule abstains the default rule decides, and
// when that also abstains the engine denies.
package acl
