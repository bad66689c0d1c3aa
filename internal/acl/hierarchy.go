package acl

import "fmt"

// Hierarchy is an immutable role hierarchy: each role maps to the roles it
// directly implies. Expansion is a pure function of the static map and is
// safe for unsynchronized concurrent use.
type Hierarchy struct {
	implied map[string][]string
}

// NewHierarchy validates and freezes a role hierarchy.
// Cyclic configurations are rejected with ErrCyclicHierarchy.
func NewHierarchy(implied map[string][]string) (*Hierarchy, error) {
	h := &Hierarchy{implied: make(map[string][]string, len(implied))}
	for role, children := range implied {
		h.implied[role] = append([]string(nil), children...)
	}

	state := make(map[string]int, len(h.implied))
	for role := range h.implied {
		if err := h.checkCycle(role, state); err != nil {
			return nil, err
		}
	}
	return h, nil
}

const (
	roleUnvisited = iota
	roleVisiting
	roleDone
)

func (h *Hierarchy) checkCycle(role string, state map[string]int) error {
	switch state[role] {
	case roleDone:
		return nil
	case roleVisiting:
		return fmt.Errorf("%w: role %q implies itself", ErrCyclicHierarchy, role)
	}
	state[role] = roleVisiting
	for _, child := range h.implied[role] {
		if err := h.checkCycle(child, state); err != nil {
			return err
		}
	}
	state[role] = roleDone
	return nil
}

// Expand returns the transitive closure of the role including the role
// itself, deduplicated, in depth-first declaration order. The visited set
// guards expansion so even an externally assembled cyclic map terminates.
func (h *Hierarchy) Expand(role string) []string {
	if h == nil {
		return []string{role}
	}
	var out []string
	visited := make(map[string]struct{})
	h.expand(role, visited, &out)
	return out
}

func (h *Hierarchy) expand(role string, visited map[string]struct{}, out *[]string) {
	if _, ok := visited[role]; ok {
		return
	}
	visited[role] = struct{}{}
	*out = append(*out, role)
	for _, child := range h.implied[role] {
		h.expand(child, visited, out)
	}
}
