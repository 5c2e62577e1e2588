package actionkit

import (
	"time"

	"github.com/uptrace/bun"
)

// ActionRecord is the persisted form of an Action.
type ActionRecord struct {
	bun.BaseModel `bun:"table:actionkit_actions,alias:aa"`

	ID        string    `bun:"id,pk"`
	Purpose   string    `bun:"purpose"`
	Enabled   bool      `bun:"enabled,notnull"`
	Local     bool      `bun:"local,notnull"`
	Filters   []string  `bun:"filters,array"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// NewActionRecord converts an action for storage.
func NewActionRecord(a Action) *ActionRecord {
	return &ActionRecord{
		ID:      a.ID,
		Purpose: a.Purpose,
		Enabled: a.Enabled,
		Local:   a.Local,
		Filters: a.Filters,
	}
}

// ToAction converts the record back to an action.
func (r *ActionRecord) ToAction() Action {
	return Action{
		ID:      r.ID,
		Purpose: r.Purpose,
		Enabled: r.Enabled,
		Local:   r.Local,
		Filters: r.Filters,
	}
}

// RoleRecord is the persisted form of a role tier.
type RoleRecord struct {
	bun.BaseModel `bun:"table:actionkit_roles,alias:ar"`

	Identifier     string    `bun:"identifier,pk"`
	GlobalPriority int       `bun:"global_priority,notnull"`
	CanRead        bool      `bun:"can_read,notnull"`
	CanWrite       bool      `bun:"can_write,notnull"`
	Internal       bool      `bun:"internal,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// NewRoleRecord converts a role tier for storage.
func NewRoleRecord(id RoleIdentifier) *RoleRecord {
	return &RoleRecord{
		Identifier:     id.Identifier,
		GlobalPriority: id.GlobalPriority,
		CanRead:        id.CanRead,
		CanWrite:       id.CanWrite,
		Internal:       id.Internal,
	}
}

// ToIdentifier converts the record back to a role tier.
func (r *RoleRecord) ToIdentifier() RoleIdentifier {
	return RoleIdentifier{
		Identifier:     r.Identifier,
		GlobalPriority: r.GlobalPriority,
		CanRead:        r.CanRead,
		CanWrite:       r.CanWrite,
		Internal:       r.Internal,
	}
}

// RoleActionRecord grants an action to a role tier.
type RoleActionRecord struct {
	bun.BaseModel `bun:"table:actionkit_role_actions,alias:ara"`

	RoleID   string `bun:"role_id,pk"`
	ActionID string `bun:"action_id,pk"`
	Position int    `bun:"position,notnull"`
}

// RoleIncludeRecord makes a role tier carry the actions of another.
type RoleIncludeRecord struct {
	bun.BaseModel `bun:"table:actionkit_role_includes,alias:ari"`

	RoleID         string `bun:"role_id,pk"`
	IncludedRoleID string `bun:"included_role_id,pk"`
	Position       int    `bun:"position,notnull"`
}

// EntityPermission is the permission model of one target: its place in the
// parent and library hierarchy, its inheritance switches and its special
// assignments.
type EntityPermission struct {
	bun.BaseModel `bun:"table:actionkit_entity_permissions,alias:ep"`

	TargetID           string    `bun:"target_id,pk"`
	ParentID           string    `bun:"parent_id,nullzero"`
	LibraryID          string    `bun:"library_id,nullzero"`
	IsLibrary          bool      `bun:"is_library,notnull"`
	InheritFromParent  bool      `bun:"inherit_from_parent,notnull"`
	InheritFromLibrary bool      `bun:"inherit_from_library,notnull"`
	UpdatedAt          time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	Assignments []*AuthorityRoleAssignment `bun:"rel:has-many,join:target_id=target_id"`
}

// NewEntityPermission creates an empty permission model for target.
func NewEntityPermission(targetID string) *EntityPermission {
	return &EntityPermission{TargetID: targetID}
}

// Assignment returns the special assignment of authority.
func (ep *EntityPermission) Assignment(authorityID string) (*AuthorityRoleAssignment, bool) {
	for _, a := range ep.Assignments {
		if a.AuthorityID == authorityID {
			return a, true
		}
	}
	return nil, false
}

// IsRoot reports whether the target has no parent.
func (ep *EntityPermission) IsRoot() bool {
	return ep.ParentID == ""
}

// Clone returns a deep copy.
func (ep *EntityPermission) Clone() *EntityPermission {
	c := *ep
	c.Assignments = make([]*AuthorityRoleAssignment, len(ep.Assignments))
	for i, a := range ep.Assignments {
		cp := *a
		c.Assignments[i] = &cp
	}
	return &c
}

// AuthorityRoleAssignment is a special role assignment of one authority on one target.
type AuthorityRoleAssignment struct {
	bun.BaseModel `bun:"table:actionkit_authority_roles,alias:arr"`

	ID          string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	TargetID    string    `bun:"target_id,notnull"`
	AuthorityID string    `bun:"authority_id,notnull"`
	Role        string    `bun:"role,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
