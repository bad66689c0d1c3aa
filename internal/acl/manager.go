package acl

import (
	"context"
	"fmt"
)

// Manager orchestrates permission resolution. It exposes class-, object-,
// and field-level queries in stored and calculated modes, composing the
// hierarchy, identity expansion, and rule chain into grant decisions.
//
// All configuration is fixed at construction; a Manager is safe for
// concurrent use.
type Manager struct {
	identities IdentityResolver
	domains    DomainResolver
	fields     FieldLister
	masks      MaskStore
	groups     GroupDirectory
	hierarchy  *Hierarchy
	rules      *Registry
	hosts      *HostRoleMatcher
}

// ManagerConfig collects the collaborators and policy a Manager needs.
type ManagerConfig struct {
	Identities IdentityResolver
	Domains    DomainResolver
	Fields     FieldLister
	Masks      MaskStore
	Groups     GroupDirectory
	Hierarchy  *Hierarchy
	Rules      *Registry
	Hosts      *HostRoleMatcher
}

// NewManager constructs a Manager from its collaborators.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		identities: cfg.Identities,
		domains:    cfg.Domains,
		fields:     cfg.Fields,
		masks:      cfg.Masks,
		groups:     cfg.Groups,
		hierarchy:  cfg.Hierarchy,
		rules:      cfg.Rules,
		hosts:      cfg.Hosts,
	}
}

// Expander returns an identity expander wired to the manager's hierarchy,
// group directory, and host matcher.
func (m *Manager) Expander() *IdentityExpander {
	return &IdentityExpander{Hierarchy: m.hierarchy, Groups: m.groups, Hosts: m.hosts}
}

// Query describes a single permission question.
// An empty ObjectID addresses the class; an empty Field skips field voting.
type Query struct {
	Identity   Identity
	Class      string
	ObjectID   string
	Field      string
	Calculated bool
}

// Resolution is a fully resolved permission answer. Calculated reports the mode
// that actually ran; group identities force it regardless of the request.
// Rights is in right declaration order.
type Resolution struct {
	Identity   Identity
	Calculated bool
	Mask       Mask
	Rights     []string
}

// Resolve answers a permission query in the requested mode. Group
// identities always resolve in calculated mode because group rights derive
// from member roles and are never persisted directly.
func (m *Manager) Resolve(ctx context.Context, q Query) (Resolution, error) {
	calculated := q.Calculated || q.Identity.Kind == KindGroup

	domain, err := m.buildDomain(ctx, q.Class, q.ObjectID, q.Field)
	if err != nil {
		return Resolution{}, err
	}

	if calculated {
		rights, err := m.calculated(ctx, q.Identity, domain, q.Field)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Identity: q.Identity, Calculated: true, Mask: MaskOf(rights...), Rights: rightNamesOf(rights)}, nil
	}

	mask, err := m.stored(ctx, q.Identity, domain)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Identity: q.Identity, Calculated: false, Mask: mask, Rights: mask.Names()}, nil
}

// ClassPermission returns the stored mask for an identity on a class.
func (m *Manager) ClassPermission(ctx context.Context, id Identity, class string) (Mask, error) {
	return m.stored(ctx, id, ClassDomain{Name: class})
}

// ObjectPermission returns the stored mask for an identity on one object.
func (m *Manager) ObjectPermission(ctx context.Context, id Identity, class, objectID string) (Mask, error) {
	domain, err := m.domains.ResolveDomain(ctx, class, objectID)
	if err != nil {
		return 0, err
	}
	return m.stored(ctx, id, domain)
}

// ClassFieldPermission returns the stored mask for one field of a class.
func (m *Manager) ClassFieldPermission(ctx context.Context, id Identity, class, field string) (Mask, error) {
	return m.stored(ctx, id, FieldVote{Domain: ClassDomain{Name: class}, Field: field})
}

// ObjectFieldPermission returns the stored mask for one field of an object.
func (m *Manager) ObjectFieldPermission(ctx context.Context, id Identity, class, objectID, field string) (Mask, error) {
	domain, err := m.domains.ResolveDomain(ctx, class, objectID)
	if err != nil {
		return 0, err
	}
	return m.stored(ctx, id, FieldVote{Domain: domain, Field: field})
}

// CalculatedClassPermission re-derives the rights an identity holds on a
// class using the rule chain.
func (m *Manager) CalculatedClassPermission(ctx context.Context, id Identity, class string) ([]Right, error) {
	return m.calculated(ctx, id, ClassDomain{Name: class}, "")
}

// CalculatedObjectPermission re-derives the rights an identity holds on
// one object.
func (m *Manager) CalculatedObjectPermission(ctx context.Context, id Identity, class, objectID string) ([]Right, error) {
	domain, err := m.domains.ResolveDomain(ctx, class, objectID)
	if err != nil {
		return nil, err
	}
	return m.calculated(ctx, id, domain, "")
}

// CalculatedClassFieldPermission re-derives rights for one class field.
func (m *Manager) CalculatedClassFieldPermission(ctx context.Context, id Identity, class, field string) ([]Right, error) {
	return m.calculated(ctx, id, FieldVote{Domain: ClassDomain{Name: class}, Field: field}, field)
}

// CalculatedObjectFieldPermission re-derives rights for one object field.
func (m *Manager) CalculatedObjectFieldPermission(ctx context.Context, id Identity, class, objectID, field string) ([]Right, error) {
	domain, err := m.domains.ResolveDomain(ctx, class, objectID)
	if err != nil {
		return nil, err
	}
	return m.calculated(ctx, id, FieldVote{Domain: domain, Field: field}, field)
}

// FieldGrant pairs a field name with the rights resolved for it.
type FieldGrant struct {
	Field  string
	Rights []string
}

// FieldPermissions resolves rights for every field of the class, in the
// order the field lister reports them. ObjectID may be empty for
// class-level field votes. Per-field results accumulate by union across
// the right loop.
func (m *Manager) FieldPermissions(ctx context.Context, id Identity, class, objectID string, calculated bool) ([]FieldGrant, error) {
	fields, err := m.fields.ListFields(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("acl: list fields of %q: %w", class, err)
	}
	grants := make([]FieldGrant, 0, len(fields))
	for _, field := range fields {
		res, err := m.Resolve(ctx, Query{
			Identity:   id,
			Class:      class,
			ObjectID:   objectID,
			Field:      field,
			Calculated: calculated,
		})
		if err != nil {
			return nil, err
		}
		grants = append(grants, FieldGrant{Field: field, Rights: res.Rights})
	}
	return grants, nil
}

// IsGranted is the voter-equivalent single decision for a token: the
// token's expanded identities are consulted in expansion order and the
// first non-abstaining chain decision wins. A fully abstaining run denies.
func (m *Manager) IsGranted(ctx context.Context, tok Token, host string, right Right, domain Domain) (bool, error) {
	identities, err := m.Expander().Expand(ctx, tok, host)
	if err != nil {
		return false, err
	}
	field := ""
	if fv, ok := domain.(FieldVote); ok {
		field = fv.Field
	}
	owner, ownerKnown := ownerOf(domain)
	for _, id := range identities {
		mask, err := m.masks.LoadMask(ctx, id, domain)
		if err != nil {
			return false, err
		}
		d := m.rules.Consult(RuleContext{
			Right:   right,
			Mask:    mask,
			IsOwner: ownerKnown && owner == id,
			Field:   field,
		})
		switch d {
		case Grant:
			return true, nil
		case Deny:
			return false, nil
		}
	}
	return false, nil
}

// stored resolves the identity and loads its persisted mask for the
// domain. Group identities are redirected to calculated mode and the
// derived rights folded back into a mask.
func (m *Manager) stored(ctx context.Context, id Identity, domain Domain) (Mask, error) {
	if id.Kind == KindGroup {
		rights, err := m.calculated(ctx, id, domain, fieldOf(domain))
		if err != nil {
			return 0, err
		}
		return MaskOf(rights...), nil
	}
	if _, err := m.identities.ResolveIdentity(ctx, id.Kind, id.Name); err != nil {
		return 0, err
	}
	return m.masks.LoadMask(ctx, id, domain)
}

// calculated re-derives the identity's rights on the domain: the identity
// is resolved to a subject, expanded into its full identity set, stored
// masks across the expansion are unioned, and each displayable right is
// put to the rule chain in declaration order.
func (m *Manager) calculated(ctx context.Context, id Identity, domain Domain, field string) ([]Right, error) {
	sub, err := m.identities.ResolveIdentity(ctx, id.Kind, id.Name)
	if err != nil {
		return nil, err
	}

	identities, err := m.Expander().Expand(ctx, subjectToken{sub}, "")
	if err != nil {
		return nil, err
	}

	var mask Mask
	for _, expanded := range identities {
		// Group masks are never read directly; their rights flow in
		// through the member roles already present in the expansion.
		if expanded.Kind == KindGroup {
			continue
		}
		loaded, err := m.masks.LoadMask(ctx, expanded, domain)
		if err != nil {
			return nil, err
		}
		mask = mask.Union(loaded)
	}

	owner, ownerKnown := ownerOf(domain)
	isOwner := ownerKnown && owner == sub.Identity

	var rights []Right
	for _, right := range DisplayRights {
		d := m.rules.Evaluate(RuleContext{Right: right, Mask: mask, IsOwner: isOwner, Field: field})
		if d == Grant {
			rights = append(rights, right)
		}
	}
	return rights, nil
}

// buildDomain assembles the domain variant for a query, resolving object
// instances through the domain resolver.
func (m *Manager) buildDomain(ctx context.Context, class, objectID, field string) (Domain, error) {
	var domain Domain
	if objectID == "" {
		domain = ClassDomain{Name: class}
	} else {
		resolved, err := m.domains.ResolveDomain(ctx, class, objectID)
		if err != nil {
			return nil, err
		}
		domain = resolved
	}
	if field != "" {
		domain = FieldVote{Domain: domain, Field: field}
	}
	return domain, nil
}

func fieldOf(d Domain) string {
	if fv, ok := d.(FieldVote); ok {
		return fv.Field
	}
	return ""
}

func rightNamesOf(rights []Right) []string {
	names := make([]string, len(rights))
	for i, r := range rights {
		names[i] = r.String()
	}
	return names
}

// subjectToken adapts a resolved subject into the token contract so the
// calculated path can reuse the identity expander.
type subjectToken struct {
	sub Subject
}

func (t subjectToken) Principal() (string, bool) {
	if t.sub.Identity.Kind == KindUser {
		return t.sub.Identity.Name, true
	}
	return "", false
}

func (t subjectToken) HeldRoles() []string {
	if t.sub.Identity.Kind == KindRole {
		return append([]string{t.sub.Identity.Name}, t.sub.Roles...)
	}
	return t.sub.Roles
}

func (t subjectToken) IsAnonymous() bool {
	return t.sub.Identity.Kind != KindUser
}
