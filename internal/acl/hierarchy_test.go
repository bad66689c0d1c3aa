package acl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHierarchyExpandTransitiveClosure(t *testing.T) {
	h, err := NewHierarchy(map[string][]string{
		"ADMIN":  {"EDITOR"},
		"EDITOR": {"VIEWER"},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"ADMIN", "EDITOR", "VIEWER"}, h.Expand("ADMIN"))
	require.Equal(t, []string{"EDITOR", "VIEWER"}, h.Expand("EDITOR"))
	require.Equal(t, []string{"VIEWER"}, h.Expand("VIEWER"))
}

func TestHierarchyExpandUnknownRole(t *testing.T) {
	h, err := NewHierarchy(map[string][]string{"ADMIN": {"EDITOR"}})
	require.NoError(t, err)
	require.Equal(t, []string{"GUEST"}, h.Expand("GUEST"))
}

func TestHierarchyExpandDeduplicatesDiamond(t *testing.T) {
	h, err := NewHierarchy(map[string][]string{
		"ROOT":  {"LEFT", "RIGHT"},
		"LEFT":  {"LEAF"},
		"RIGHT": {"LEAF"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ROOT", "LEFT", "LEAF", "RIGHT"}, h.Expand("ROOT"))
}

func TestNewHierarchyRejectsCycle(t *testing.T) {
	_, err := NewHierarchy(map[string][]string{
		"A": {"B"},
		"B": {"A"},
	})
	require.ErrorIs(t, err, ErrCyclicHierarchy)

	_, err = NewHierarchy(map[string][]string{"SELF": {"SELF"}})
	require.ErrorIs(t, err, ErrCyclicHierarchy)
}

func TestExpandTerminatesOnCyclicMap(t *testing.T) {
	// Construction rejects cycles, but expansion must stay finite even for
	// a hierarchy assembled without validation.
	h := &Hierarchy{implied: map[string][]string{
		"A": {"B"},
		"B": {"A"},
	}}
	expanded := h.Expand("A")
	require.ElementsMatch(t, []string{"A", "B"}, expanded)
}

func TestNilHierarchyExpandsToSelf(t *testing.T) {
	var h *Hierarchy
	require.Equal(t, []string{"ANY"}, h.Expand("ANY"))
}
