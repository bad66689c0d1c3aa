// Package aclstore provides the PostgreSQL and Redis backed collaborators
// consumed by the authorization engine: identity and domain resolution,
// field metadata, stored permission masks, and group membership.
package aclstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/platform/db"
)

// Store provides PostgreSQL backed persistence for ACL data.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store over the provided pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ResolveIdentity loads a subject and its directly held roles.
// For users the roles column carries assigned roles; for groups the
// member roles the group's rights derive from.
func (s *Store) ResolveIdentity(ctx context.Context, kind acl.IdentityKind, name string) (acl.Subject, error) {
	const query = `SELECT roles FROM acl_identities WHERE kind = $1 AND name = $2`
	var roles []string
	if err := s.pool.QueryRow(ctx, query, kind.String(), name).Scan(&roles); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return acl.Subject{}, fmt.Errorf("%w: %s:%s", acl.ErrIdentityNotFound, kind, name)
		}
		return acl.Subject{}, fmt.Errorf("aclstore: resolve identity: %w", err)
	}
	return acl.Subject{Identity: acl.Identity{Kind: kind, Name: name}, Roles: roles}, nil
}

// ResolveDomain loads an object domain, including the recorded owner when
// one exists. The class name passes through best-effort alias resolution.
func (s *Store) ResolveDomain(ctx context.Context, class, id string) (acl.ObjectDomain, error) {
	class = s.resolveAlias(ctx, class)
	const query = `SELECT owner_kind, owner_name FROM acl_domains WHERE class = $1 AND object_id = $2`
	var ownerKind, ownerName *string
	if err := s.pool.QueryRow(ctx, query, class, id).Scan(&ownerKind, &ownerName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return acl.ObjectDomain{}, fmt.Errorf("%w: %s/%s", acl.ErrDomainNotFound, class, id)
		}
		return acl.ObjectDomain{}, fmt.Errorf("aclstore: resolve domain: %w", err)
	}
	domain := acl.ObjectDomain{ClassName: class, ID: id}
	if ownerKind != nil && ownerName != nil {
		kind, err := acl.KindFromString(*ownerKind)
		if err != nil {
			return acl.ObjectDomain{}, fmt.Errorf("aclstore: resolve domain owner: %w", err)
		}
		domain.Owner = acl.Identity{Kind: kind, Name: *ownerName}
		domain.OwnerSet = true
	}
	return domain, nil
}

// ListFields enumerates the registered fields of a class in declared order.
func (s *Store) ListFields(ctx context.Context, class string) ([]string, error) {
	class = s.resolveAlias(ctx, class)
	const query = `SELECT field FROM acl_domain_fields WHERE class = $1 ORDER BY position, field`
	rows, err := s.pool.Query(ctx, query, class)
	if err != nil {
		return nil, fmt.Errorf("aclstore: list fields: %w", err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var field string
		if err := rows.Scan(&field); err != nil {
			return nil, fmt.Errorf("aclstore: list fields: %w", err)
		}
		fields = append(fields, field)
	}
	return fields, rows.Err()
}

// LoadMask unions every stored entry for the identity/domain pair.
// A pair with no entries yields the zero mask.
func (s *Store) LoadMask(ctx context.Context, id acl.Identity, domain acl.Domain) (acl.Mask, error) {
	class, objectID, field := domainParts(domain)
	class = s.resolveAlias(ctx, class)
	const query = `
		SELECT mask FROM acl_entries
		WHERE identity_kind = $1 AND identity_name = $2
		  AND class = $3 AND object_id = $4 AND field = $5`
	rows, err := s.pool.Query(ctx, query, id.Kind.String(), id.Name, class, objectID, field)
	if err != nil {
		return 0, fmt.Errorf("aclstore: load mask: %w", err)
	}
	defer rows.Close()

	var mask acl.Mask
	for rows.Next() {
		var stored int64
		if err := rows.Scan(&stored); err != nil {
			return 0, fmt.Errorf("aclstore: load mask: %w", err)
		}
		mask = mask.Union(acl.Mask(stored))
	}
	return mask, rows.Err()
}

// GroupsOf returns the groups a principal belongs to.
func (s *Store) GroupsOf(ctx context.Context, principal string) ([]string, error) {
	const query = `SELECT group_name FROM acl_group_members WHERE principal = $1 ORDER BY group_name`
	rows, err := s.pool.Query(ctx, query, principal)
	if err != nil {
		return nil, fmt.Errorf("aclstore: groups of: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var group string
		if err := rows.Scan(&group); err != nil {
			return nil, fmt.Errorf("aclstore: groups of: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// Grant unions the mask into the stored entry for the identity/domain
// pair, creating the entry when absent.
func (s *Store) Grant(ctx context.Context, id acl.Identity, class, objectID, field string, mask acl.Mask) error {
	class = s.resolveAlias(ctx, class)
	const query = `
		INSERT INTO acl_entries (id, identity_kind, identity_name, class, object_id, field, mask)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identity_kind, identity_name, class, object_id, field)
		DO UPDATE SET mask = acl_entries.mask | EXCLUDED.mask`
	_, err := s.pool.Exec(ctx, query, uuid.New(), id.Kind.String(), id.Name, class, objectID, field, int64(mask))
	if err != nil {
		return fmt.Errorf("aclstore: grant: %w", err)
	}
	return nil
}

// Revoke removes the stored entry for the identity/domain pair.
func (s *Store) Revoke(ctx context.Context, id acl.Identity, class, objectID, field string) error {
	class = s.resolveAlias(ctx, class)
	const query = `
		DELETE FROM acl_entries
		WHERE identity_kind = $1 AND identity_name = $2
		  AND class = $3 AND object_id = $4 AND field = $5`
	_, err := s.pool.Exec(ctx, query, id.Kind.String(), id.Name, class, objectID, field)
	if err != nil {
		return fmt.Errorf("aclstore: revoke: %w", err)
	}
	return nil
}

// SetFields replaces the registered field list of a class. The delete and
// reinsert run in a single transaction so concurrent readers never observe
// a partial catalog.
func (s *Store) SetFields(ctx context.Context, class string, fields []string) error {
	class = s.resolveAlias(ctx, class)
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM acl_domain_fields WHERE class = $1`, class); err != nil {
			return fmt.Errorf("aclstore: set fields: %w", err)
		}
		for i, field := range fields {
			const insert = `INSERT INTO acl_domain_fields (class, field, position) VALUES ($1, $2, $3)`
			if _, err := tx.Exec(ctx, insert, class, field, i); err != nil {
				return fmt.Errorf("aclstore: set fields: %w", err)
			}
		}
		return nil
	})
}

// resolveAlias maps a class alias to its canonical class name. The lookup
// is best effort: on miss or error the original name is returned unchanged
// and the query proceeds with it.
func (s *Store) resolveAlias(ctx context.Context, class string) string {
	const query = `SELECT class FROM acl_class_aliases WHERE alias = $1`
	var canonical string
	if err := s.pool.QueryRow(ctx, query, class).Scan(&canonical); err != nil {
		return class
	}
	return canonical
}

// domainParts flattens a domain variant into storage coordinates.
// Class-level entries use an empty object id; entries without a field
// vote use an empty field.
func domainParts(d acl.Domain) (class, objectID, field string) {
	switch v := d.(type) {
	case acl.ClassDomain:
		return v.Name, "", ""
	case acl.ObjectDomain:
		return v.ClassName, v.ID, ""
	case acl.FieldVote:
		class, objectID, _ = domainParts(v.Domain)
		return class, objectID, v.Field
	default:
		return "", "", ""
	}
}
