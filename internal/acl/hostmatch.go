package acl

import (
	"fmt"
	"regexp"
)

// HostRule maps a host pattern to the role granted to anonymous callers
// connecting from a matching host.
type HostRule struct {
	Pattern string
	Role    string
}

type compiledHostRule struct {
	re   *regexp.Regexp
	role string
}

// HostRoleMatcher maps an anonymous caller's host to a configured role.
// Rules are tried in declared order and the first match wins, so narrower
// patterns must be configured before broader ones.
type HostRoleMatcher struct {
	rules []compiledHostRule
}

// NewHostRoleMatcher compiles the configured host rules.
// A malformed pattern fails construction with ErrInvalidHostPattern and
// is fatal to process initialization.
func NewHostRoleMatcher(rules []HostRule) (*HostRoleMatcher, error) {
	compiled := make([]compiledHostRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidHostPattern, rule.Pattern, err)
		}
		compiled = append(compiled, compiledHostRule{re: re, role: rule.Role})
	}
	return &HostRoleMatcher{rules: compiled}, nil
}

// Match returns the role of the first rule whose pattern matches the host.
// The second return is false when no rule matches or the host is empty.
func (m *HostRoleMatcher) Match(host string) (string, bool) {
	if m == nil || host == "" {
		return "", false
	}
	for _, rule := range m.rules {
		if rule.re.MatchString(host) {
			return rule.role, true
		}
	}
	return "", false
}
