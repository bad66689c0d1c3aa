package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gatewarden/gatewarden/internal/acl"
)

// PolicyDocument is the on-disk shape of the authorization policy.
type PolicyDocument struct {
	Hierarchy   map[string][]string `json:"hierarchy"`
	RuleChain   []string            `json:"rule_chain"`
	DefaultRule string              `json:"default_rule"`
	HostRules   []PolicyHostRule    `json:"host_rules"`
}

// PolicyHostRule pairs a host regular expression with the role granted
// to anonymous callers from matching hosts.
type PolicyHostRule struct {
	Pattern string `json:"pattern"`
	Role    string `json:"role"`
}

// Policy is the loaded, validated authorization policy.
type Policy struct {
	Hierarchy *acl.Hierarchy
	Rules     *acl.Registry
	Hosts     *acl.HostRoleMatcher
}

// LoadPolicy reads and compiles the policy document at path. Cyclic
// hierarchies, unknown rule names, and invalid host patterns are
// startup errors.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read policy: %w", err)
	}
	var doc PolicyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("app: parse policy: %w", err)
	}
	return CompilePolicy(doc)
}

// CompilePolicy turns a policy document into engine collaborators.
func CompilePolicy(doc PolicyDocument) (*Policy, error) {
	hierarchy, err := acl.NewHierarchy(doc.Hierarchy)
	if err != nil {
		return nil, fmt.Errorf("app: policy hierarchy: %w", err)
	}

	rules := acl.NewRegistry()
	for _, rule := range []acl.Rule{acl.AllowRule{}, acl.DenyRule{}, acl.OwnerRule{}} {
		if err := rules.Register(rule); err != nil {
			return nil, fmt.Errorf("app: policy rules: %w", err)
		}
	}
	chain := doc.RuleChain
	if len(chain) == 0 {
		chain = []string{"allow"}
	}
	if err := rules.SetChain(chain...); err != nil {
		return nil, fmt.Errorf("app: policy rule chain: %w", err)
	}
	if doc.DefaultRule != "" {
		if err := rules.SetDefault(doc.DefaultRule); err != nil {
			return nil, fmt.Errorf("app: policy default rule: %w", err)
		}
	}

	hostRules := make([]acl.HostRule, 0, len(doc.HostRules))
	for _, hr := range doc.HostRules {
		hostRules = append(hostRules, acl.HostRule{Pattern: hr.Pattern, Role: hr.Role})
	}
	hosts, err := acl.NewHostRoleMatcher(hostRules)
	if err != nil {
		return nil, fmt.Errorf("app: policy host rules: %w", err)
	}

	return &Policy{Hierarchy: hierarchy, Rules: rules, Hosts: hosts}, nil
}
