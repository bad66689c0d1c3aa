package acl

import (
	"fmt"
	"strings"
)

// Right represents a single authorization right.
// Rights are bit flags that can be combined using bitwise OR.
type Right uint32

const (
	// View allows reading the domain object.
	View Right = 1 << iota

	// Create allows creating new instances of the domain class.
	Create

	// Edit allows modifying the domain object.
	Edit

	// Delete allows removing the domain object.
	Delete

	// Undelete allows restoring a removed domain object.
	Undelete

	// Operator grants day-to-day administrative operations.
	Operator

	// Master grants full administrative control.
	Master

	// Owner marks ownership of the domain object.
	Owner

	// All is a sentinel bit granting every displayable right.
	// It is never part of the display set itself.
	All
)

// DisplayRights lists the displayable rights in declaration order.
// All is deliberately excluded; it satisfies checks but is never reported.
var DisplayRights = []Right{View, Create, Edit, Delete, Undelete, Operator, Master, Owner}

var rightNames = map[Right]string{
	View:     "VIEW",
	Create:   "CREATE",
	Edit:     "EDIT",
	Delete:   "DELETE",
	Undelete: "UNDELETE",
	Operator: "OPERATOR",
	Master:   "MASTER",
	Owner:    "OWNER",
	All:      "ALL",
}

// String returns the canonical upper-case name of the right.
func (r Right) String() string {
	if name, ok := rightNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RIGHT(%d)", uint32(r))
}

// RightFromName resolves a canonical right name, case-insensitively.
func RightFromName(name string) (Right, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for right, n := range rightNames {
		if n == upper {
			return right, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRight, name)
}

// Mask is an integer bitmask over Right bit positions.
// Bit positions are stable for the lifetime of persisted entries.
type Mask uint32

// MaskFromNames builds a mask from right names.
// An unrecognised name fails the whole conversion with ErrUnknownRight.
func MaskFromNames(names []string) (Mask, error) {
	var m Mask
	for _, name := range names {
		right, err := RightFromName(name)
		if err != nil {
			return 0, err
		}
		m |= Mask(right)
	}
	return m, nil
}

// MaskOf combines the given rights into a mask.
func MaskOf(rights ...Right) Mask {
	var m Mask
	for _, r := range rights {
		m |= Mask(r)
	}
	return m
}

// Contains reports whether the mask grants the right,
// either through the right's own bit or through the All sentinel.
func (m Mask) Contains(r Right) bool {
	return m&Mask(r) != 0 || m&Mask(All) != 0
}

// Union returns the bitwise OR of both masks.
func (m Mask) Union(other Mask) Mask {
	return m | other
}

// Rights returns the displayable rights present in the mask in
// declaration order. A mask carrying All yields the full display set.
func (m Mask) Rights() []Right {
	rights := make([]Right, 0, len(DisplayRights))
	for _, r := range DisplayRights {
		if m.Contains(r) {
			rights = append(rights, r)
		}
	}
	return rights
}

// Names returns the names of the displayable rights present in the mask,
// in declaration order.
func (m Mask) Names() []string {
	rights := m.Rights()
	names := make([]string, len(rights))
	for i, r := range rights {
		names[i] = r.String()
	}
	return names
}
