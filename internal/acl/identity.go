package acl

import (
	"context"
	"fmt"
	"strings"
)

// IdentityKind discriminates the security identity variants.
type IdentityKind int

const (
	// KindRole is a named role.
	KindRole IdentityKind = iota

	// KindUser is a concrete principal.
	KindUser

	// KindGroup is a named group of principals.
	KindGroup
)

// String returns the lower-case kind label used in configuration and URLs.
func (k IdentityKind) String() string {
	switch k {
	case KindRole:
		return "role"
	case KindUser:
		return "user"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// KindFromString parses a kind label.
func KindFromString(s string) (IdentityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "role":
		return KindRole, nil
	case "user":
		return KindUser, nil
	case "group":
		return KindGroup, nil
	default:
		return 0, fmt.Errorf("acl: unknown identity kind %q", s)
	}
}

// Identity is a security identity: a role, user, or group.
// Identities are immutable values; equality is kind plus name.
type Identity struct {
	Kind IdentityKind
	Name string
}

// RoleIdentity wraps a role name as an identity.
func RoleIdentity(name string) Identity { return Identity{Kind: KindRole, Name: name} }

// UserIdentity wraps a principal name as an identity.
func UserIdentity(name string) Identity { return Identity{Kind: KindUser, Name: name} }

// GroupIdentity wraps a group name as an identity.
func GroupIdentity(name string) Identity { return Identity{Kind: KindGroup, Name: name} }

// String renders the identity as kind:name.
func (i Identity) String() string {
	return i.Kind.String() + ":" + i.Name
}

// ParseIdentity parses a kind:name pair as produced by String.
func ParseIdentity(s string) (Identity, error) {
	kindPart, name, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return Identity{}, fmt.Errorf("acl: malformed identity %q, want kind:name", s)
	}
	kind, err := KindFromString(kindPart)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Kind: kind, Name: name}, nil
}

// Token is the minimal authentication token contract the engine consumes.
type Token interface {
	// Principal returns the authenticated principal name.
	// The second return is false for anonymous tokens.
	Principal() (string, bool)

	// HeldRoles returns the roles directly held by the token.
	HeldRoles() []string

	// IsAnonymous reports whether the caller is unauthenticated.
	IsAnonymous() bool
}

// Subject is a resolved security identity together with its directly held
// roles. For users these are the assigned roles; for groups the member roles.
type Subject struct {
	Identity Identity
	Roles    []string
}

// IdentityResolver resolves an identity name into a Subject.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, kind IdentityKind, name string) (Subject, error)
}

// DomainResolver resolves a class name and object id into an object domain.
type DomainResolver interface {
	ResolveDomain(ctx context.Context, class, id string) (ObjectDomain, error)
}

// FieldLister enumerates the fields of a domain class.
type FieldLister interface {
	ListFields(ctx context.Context, class string) ([]string, error)
}

// MaskStore loads persisted permission masks.
// Implementations return a zero mask when no entry is recorded.
type MaskStore interface {
	LoadMask(ctx context.Context, id Identity, domain Domain) (Mask, error)
}

// GroupDirectory looks up group memberships of a principal.
type GroupDirectory interface {
	GroupsOf(ctx context.Context, principal string) ([]string, error)
}

// IdentityExpander converts a token into the full ordered set of security
// identities to test: held roles expanded through the hierarchy, the
// principal itself, group memberships, and a host-matched anonymous role.
type IdentityExpander struct {
	Hierarchy *Hierarchy
	Groups    GroupDirectory
	Hosts     *HostRoleMatcher
}

// Expand returns the deduplicated identity set for the token in insertion
// order. host carries the caller's host for anonymous role injection; an
// empty host skips host matching.
func (e *IdentityExpander) Expand(ctx context.Context, tok Token, host string) ([]Identity, error) {
	var out []Identity
	seen := make(map[Identity]struct{})
	add := func(id Identity) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, role := range tok.HeldRoles() {
		for _, expanded := range e.Hierarchy.Expand(role) {
			add(RoleIdentity(expanded))
		}
	}

	if principal, ok := tok.Principal(); ok && !tok.IsAnonymous() {
		add(UserIdentity(principal))
		if e.Groups != nil {
			groups, err := e.Groups.GroupsOf(ctx, principal)
			if err != nil {
				return nil, fmt.Errorf("acl: expand groups of %q: %w", principal, err)
			}
			for _, g := range groups {
				add(GroupIdentity(g))
			}
		}
	}

	if tok.IsAnonymous() && host != "" && e.Hosts != nil {
		if role, ok := e.Hosts.Match(host); ok {
			add(RoleIdentity(role))
		}
	}

	return out, nil
}
