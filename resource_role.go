package actionkit

import (
	"time"

	"github.com/google/uuid"
)

// resourceRoleNamespace seeds the deterministic ids of computed assignments.
var resourceRoleNamespace = uuid.MustParse("6f1c3e0a-4a55-4d3c-9f8e-2b6f0d5c7a11")

// ResourceRole binds one authority to one target with one resolved role.
type ResourceRole struct {
	ID              string         `json:"id"`
	Role            RoleIdentifier `json:"role"`
	AuthorityID     string         `json:"authority_id"`
	TargetReference string         `json:"target"`
	// InheritedFromReference is the target the assignment was inherited from.
	// It is informational only; nothing is owned or cascaded through it.
	InheritedFromReference string           `json:"inherited_from,omitempty"`
	Assignments            *RoleAssignments `json:"-"`
	SystemInfo             SystemInfo       `json:"system_info"`

	// origins maps each filled assignment slot to the target it came from.
	origins map[AssignmentType]string
}

// SystemInfo records when and how an assignment was computed.
type SystemInfo struct {
	ComputedAt time.Time `json:"computed_at"`
	Source     string    `json:"source,omitempty"`
}

// NewResourceRole creates an assignment of authority on target with empty
// role assignments for the given manager role.
func NewResourceRole(targetID, authorityID, managerRole string) *ResourceRole {
	return &ResourceRole{
		ID:              ResourceRoleID(targetID, authorityID),
		AuthorityID:     authorityID,
		TargetReference: targetID,
		Assignments:     NewRoleAssignments(managerRole),
		SystemInfo:      SystemInfo{ComputedAt: time.Now().UTC()},
	}
}

// ResourceRoleID returns the stable id of the assignment of authority on target.
func ResourceRoleID(targetID, authorityID string) string {
	return uuid.NewSHA1(resourceRoleNamespace, []byte(targetID+"\x00"+authorityID)).String()
}

// setOrigin records the role held in the slot of assignmentType and the
// target it came from ("" for the target itself).
func (rr *ResourceRole) setOrigin(role string, assignmentType AssignmentType, from string) {
	if rr.origins == nil {
		rr.origins = make(map[AssignmentType]string, 3)
	}
	rr.origins[assignmentType] = from
	rr.Assignments.AddAssignment(role, assignmentType)
	rr.label()
}

// label derives the inheritance marker and the source from the slot holding
// the active role.
func (rr *ResourceRole) label() {
	kind := rr.Assignments.ActiveType()
	rr.SystemInfo.Source = string(kind)
	rr.InheritedFromReference = ""
	if kind != AssignmentSpecial {
		rr.InheritedFromReference = rr.origins[kind]
	}
}

// Inherited reports whether the assignment came from another target.
func (rr *ResourceRole) Inherited() bool {
	return rr.InheritedFromReference != ""
}

// IsManager reports whether the active role is the manager role.
func (rr *ResourceRole) IsManager() bool {
	return rr.Assignments != nil && rr.Assignments.IsManager()
}
