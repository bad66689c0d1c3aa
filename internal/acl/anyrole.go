package acl

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// roleDelimiter joins candidate role names into a cache key. The unit
// separator cannot appear in a valid role name; names containing it are
// rejected rather than escaped.
const roleDelimiter = "\x1f"

// AnyRoleEvaluator answers whether a token's expanded identity set
// intersects a candidate role set. Results are memoized per candidate-set
// signature; the cache lives for the evaluator instance and is only
// invalidated by replacing the instance.
//
// An evaluator is bound to one token and host at construction. The cache
// is mutex-guarded so a single instance may serve concurrent queries.
type AnyRoleEvaluator struct {
	expander *IdentityExpander
	token    Token
	host     string

	mu    sync.RWMutex
	cache map[string]bool
}

// NewAnyRoleEvaluator binds an evaluator to a token and optional host.
func NewAnyRoleEvaluator(expander *IdentityExpander, tok Token, host string) *AnyRoleEvaluator {
	return &AnyRoleEvaluator{
		expander: expander,
		token:    tok,
		host:     host,
		cache:    make(map[string]bool),
	}
}

// HasAnyRole reports whether any of the token's expanded role identities
// is a member of the candidate set. Candidate names containing the cache
// delimiter fail with ErrInvalidRoleName.
func (e *AnyRoleEvaluator) HasAnyRole(ctx context.Context, candidates []string) (bool, error) {
	for _, c := range candidates {
		if strings.Contains(c, roleDelimiter) {
			return false, fmt.Errorf("%w: %q contains reserved delimiter", ErrInvalidRoleName, c)
		}
	}
	key := strings.Join(candidates, roleDelimiter)

	e.mu.RLock()
	cached, ok := e.cache[key]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	identities, err := e.expander.Expand(ctx, e.token, e.host)
	if err != nil {
		return false, err
	}
	candidateSet := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		candidateSet[c] = struct{}{}
	}
	result := false
	for _, id := range identities {
		if id.Kind != KindRole {
			continue
		}
		if _, ok := candidateSet[id.Name]; ok {
			result = true
			break
		}
	}

	e.mu.Lock()
	e.cache[key] = result
	e.mu.Unlock()
	return result, nil
}
