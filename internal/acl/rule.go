package acl

import "fmt"

// Decision is the outcome of a single rule evaluation.
type Decision int

const (
	// Abstain defers the decision to later rules or the default policy.
	Abstain Decision = iota

	// Grant allows the requested right.
	Grant

	// Deny refuses the requested right.
	Deny
)

// String returns a human-readable decision label.
func (d Decision) String() string {
	switch d {
	case Grant:
		return "grant"
	case Deny:
		return "deny"
	case Abstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// RuleContext carries the facts a rule may consult:
// the requested right, the stored mask for the identity/domain pair,
// whether the querying identity owns the domain object, and the field
// under vote when the query is field-scoped.
type RuleContext struct {
	Right   Right
	Mask    Mask
	IsOwner bool
	Field   string
}

// Rule decides grant, deny, or abstain for a requested right.
// Name is the stable identifier used in configuration and diagnostics.
type Rule interface {
	Name() string
	Evaluate(ctx RuleContext) Decision
}

// AllowRule grants a right present in the stored mask and abstains
// otherwise, leaving the final word to later rules or the default policy.
type AllowRule struct{}

// Name returns "allow".
func (AllowRule) Name() string { return "allow" }

// Evaluate grants when the mask contains the right, otherwise abstains.
func (AllowRule) Evaluate(ctx RuleContext) Decision {
	if ctx.Mask.Contains(ctx.Right) {
		return Grant
	}
	return Abstain
}

// DenyRule denies a right present in the stored mask and abstains
// otherwise. It belongs in chains whose stored masks record
// revocations rather than grants; stacked over AllowRule on the same
// mask it would veto every stored grant.
type DenyRule struct{}

// Name returns "deny".
func (DenyRule) Name() string { return "deny" }

// Evaluate denies when the mask contains the right, otherwise abstains.
func (DenyRule) Evaluate(ctx RuleContext) Decision {
	if ctx.Mask.Contains(ctx.Right) {
		return Deny
	}
	return Abstain
}

// OwnerRule grants every right to the recorded owner of the domain object.
type OwnerRule struct{}

// Name returns "owner".
func (OwnerRule) Name() string { return "owner" }

// Evaluate grants when the querying identity owns the object.
func (OwnerRule) Evaluate(ctx RuleContext) Decision {
	if ctx.IsOwner {
		return Grant
	}
	return Abstain
}

// RuleFunc adapts a function into a named custom rule.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx RuleContext) Decision
}

// Name returns the configured rule name.
func (r RuleFunc) Name() string { return r.RuleName }

// Evaluate delegates to the wrapped function.
func (r RuleFunc) Evaluate(ctx RuleContext) Decision { return r.Fn(ctx) }

// Registry holds the named rules, the configured evaluation chain, and the
// optional default rule. It is populated at startup and read-only afterwards,
// so evaluation paths need no synchronization.
type Registry struct {
	rules      map[string]Rule
	chain      []Rule
	defaultSet bool
	def        Rule
}

// NewRegistry returns an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds a rule under its name. Registering two rules with the
// same name is a configuration bug and fails with ErrDuplicateRule.
func (r *Registry) Register(rule Rule) error {
	name := rule.Name()
	if _, exists := r.rules[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRule, name)
	}
	r.rules[name] = rule
	return nil
}

// Rule returns the registered rule with the given name.
func (r *Registry) Rule(name string) (Rule, bool) {
	rule, ok := r.rules[name]
	return rule, ok
}

// SetChain configures the evaluation order. Every name must be registered.
func (r *Registry) SetChain(names ...string) error {
	chain := make([]Rule, 0, len(names))
	for _, name := range names {
		rule, ok := r.rules[name]
		if !ok {
			return fmt.Errorf("%w: %q in chain", ErrUnknownRule, name)
		}
		chain = append(chain, rule)
	}
	r.chain = chain
	return nil
}

// SetDefault designates the default rule consulted when the whole chain
// abstains. At most one default may be designated.
func (r *Registry) SetDefault(name string) error {
	if r.defaultSet {
		return ErrDefaultRuleSet
	}
	rule, ok := r.rules[name]
	if !ok {
		return fmt.Errorf("%w: %q as default", ErrUnknownRule, name)
	}
	r.def = rule
	r.defaultSet = true
	return nil
}

// Consult walks the chain in priority order and returns the first
// non-abstain decision, falling back to the default rule. It returns
// Abstain when every rule abstains, letting callers that iterate multiple
// identities move on to the next one.
func (r *Registry) Consult(ctx RuleContext) Decision {
	for _, rule := range r.chain {
		if d := rule.Evaluate(ctx); d != Abstain {
			return d
		}
	}
	if r.def != nil {
		return r.def.Evaluate(ctx)
	}
	return Abstain
}

// Evaluate is Consult with the fail-closed final word: a fully abstaining
// configuration denies.
func (r *Registry) Evaluate(ctx RuleContext) Decision {
	if d := r.Consult(ctx); d != Abstain {
		return d
	}
	return Deny
}
