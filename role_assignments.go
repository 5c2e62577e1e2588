package actionkit

import "fmt"

// AssignmentType classifies where a role assignment was discovered.
type AssignmentType string

const (
	// AssignmentSpecial is an assignment made directly on the target.
	AssignmentSpecial AssignmentType = "special"
	// AssignmentInherited is an assignment inherited from the parent hierarchy.
	AssignmentInherited AssignmentType = "inherited"
	// AssignmentLibrary is an assignment inherited from the target's library.
	AssignmentLibrary AssignmentType = "library"
)

// RoleAssignments resolves the active role of one authority on one target from
// the competing assignment sources. The active role is recomputed on every
// AddAssignment and cannot be set directly.
//
// Precedence, first match wins:
//
//  1. the manager role, when held in any slot
//  2. special
//  3. inherited
//  4. library
//
// An empty string means no assignment.
type RoleAssignments struct {
	special     string
	inherited   string
	library     string
	active      string
	activeType  AssignmentType
	managerRole string
}

// NewRoleAssignments creates empty assignments for the given manager role identifier.
func NewRoleAssignments(managerRole string) *RoleAssignments {
	return &RoleAssignments{managerRole: managerRole}
}

// AddAssignment stores role in the slot of the given type and recomputes the active role.
// Unknown assignment types are ignored.
func (ra *RoleAssignments) AddAssignment(role string, assignmentType AssignmentType) {
	switch assignmentType {
	case AssignmentSpecial:
		ra.special = role
	case AssignmentInherited:
		ra.inherited = role
	case AssignmentLibrary:
		ra.library = role
	default:
		return
	}
	ra.recompute()
}

func (ra *RoleAssignments) recompute() {
	slots := []struct {
		role string
		kind AssignmentType
	}{
		{ra.special, AssignmentSpecial},
		{ra.inherited, AssignmentInherited},
		{ra.library, AssignmentLibrary},
	}
	ra.active, ra.activeType = "", ""
	if ra.managerRole != "" {
		for _, slot := range slots {
			if slot.role == ra.managerRole {
				ra.active, ra.activeType = slot.role, slot.kind
				return
			}
		}
	}
	for _, slot := range slots {
		if slot.role != "" {
			ra.active, ra.activeType = slot.role, slot.kind
			return
		}
	}
}

// Special returns the special assignment.
func (ra *RoleAssignments) Special() string { return ra.special }

// Inherited returns the inherited assignment.
func (ra *RoleAssignments) Inherited() string { return ra.inherited }

// Library returns the library assignment.
func (ra *RoleAssignments) Library() string { return ra.library }

// Active returns the resolved role identifier, or "" when nothing is assigned.
func (ra *RoleAssignments) Active() string { return ra.active }

// ActiveType returns the slot the active role was taken from, or "" when
// nothing is assigned. A manager held in several slots reports the first of
// special, inherited and library.
func (ra *RoleAssignments) ActiveType() AssignmentType { return ra.activeType }

// ManagerRole returns the configured manager role identifier.
func (ra *RoleAssignments) ManagerRole() string { return ra.managerRole }

// IsManager reports whether the active role is the manager role.
func (ra *RoleAssignments) IsManager() bool {
	return ra.active != "" && ra.active == ra.managerRole
}

// Equal compares the four assignment slots. The manager role is configuration
// and is not compared.
func (ra *RoleAssignments) Equal(other *RoleAssignments) bool {
	if ra == nil || other == nil {
		return ra == other
	}
	return ra.special == other.special &&
		ra.inherited == other.inherited &&
		ra.library == other.library &&
		ra.active == other.active
}

// Clone returns an independent copy.
func (ra *RoleAssignments) Clone() *RoleAssignments {
	c := *ra
	return &c
}

// String returns a debug representation.
func (ra *RoleAssignments) String() string {
	return fmt.Sprintf("RoleAssignments{special=%q, inherited=%q, library=%q, active=%q}",
		ra.special, ra.inherited, ra.library, ra.active)
}
