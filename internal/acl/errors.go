package acl

import "errors"

var (
	// ErrUnknownRight indicates a right name outside the fixed enumeration.
	ErrUnknownRight = errors.New("acl: unknown right")
	// ErrIdentityNotFound indicates the identity could not be resolved.
	ErrIdentityNotFound = errors.New("acl: identity not found")
	// ErrDomainNotFound indicates the domain object could not be resolved.
	ErrDomainNotFound = errors.New("acl: domain not found")
	// ErrCyclicHierarchy indicates a cycle in the configured role hierarchy.
	ErrCyclicHierarchy = errors.New("acl: cyclic role hierarchy")
	// ErrInvalidHostPattern indicates a malformed host pattern in configuration.
	ErrInvalidHostPattern = errors.New("acl: invalid host pattern")
	// ErrInvalidRoleName indicates a role name that cannot be used in a cache key.
	ErrInvalidRoleName = errors.New("acl: invalid role name")
	// ErrDuplicateRule indicates two registered rules share a name.
	ErrDuplicateRule = errors.New("acl: duplicate rule")
	// ErrUnknownRule indicates a chain or default references an unregistered rule.
	ErrUnknownRule = errors.New("acl: unknown rule")
	// ErrDefaultRuleSet indicates a second default rule designation.
	ErrDefaultRuleSet = errors.New("acl: default rule already designated")
)
