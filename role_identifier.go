package actionkit

import (
	"cmp"
	"strings"
)

// Default identifiers of the base role tiers.
const (
	RoleNoPermission  = "NO_PERMISSION"
	RoleConsumer      = "CONSUMER"
	RoleContributor   = "CONTRIBUTOR"
	RoleCollaborator  = "COLLABORATOR"
	RoleManager       = "MANAGER"
	RoleAdministrator = "ADMINISTRATOR"
)

// RoleIdentifier identifies a role tier. A higher GlobalPriority is a more
// privileged tier; identifiers are totally ordered by (GlobalPriority, Identifier).
type RoleIdentifier struct {
	Identifier     string `json:"identifier" validate:"required"`
	GlobalPriority int    `json:"global_priority" validate:"gte=0"`
	CanRead        bool   `json:"can_read"`
	CanWrite       bool   `json:"can_write"`
	Internal       bool   `json:"internal,omitempty"` // excluded from user-facing enumeration
}

// String returns the identifier.
func (r RoleIdentifier) String() string {
	return r.Identifier
}

// IsZero reports whether the identifier is unset.
func (r RoleIdentifier) IsZero() bool {
	return r.Identifier == ""
}

// Is reports whether the identifier names the given role, ignoring case.
func (r RoleIdentifier) Is(identifier string) bool {
	return strings.EqualFold(r.Identifier, identifier)
}

// Compare orders identifiers by priority, then by identifier.
// It returns -1 when r is less privileged than other, +1 when more.
func (r RoleIdentifier) Compare(other RoleIdentifier) int {
	if c := cmp.Compare(r.GlobalPriority, other.GlobalPriority); c != 0 {
		return c
	}
	return cmp.Compare(r.Identifier, other.Identifier)
}

// Less reports whether r is less privileged than other.
func (r RoleIdentifier) Less(other RoleIdentifier) bool {
	return r.Compare(other) < 0
}

// WellKnownRoles carries the role tiers the engine refers to by name. They are
// threaded through configuration so tests can substitute them.
type WellKnownRoles struct {
	Manager       RoleIdentifier
	NoPermission  RoleIdentifier
	Administrator RoleIdentifier
}

// DefaultWellKnownRoles returns the base tiers used when nothing else is configured.
func DefaultWellKnownRoles() WellKnownRoles {
	return WellKnownRoles{
		Manager:       RoleIdentifier{Identifier: RoleManager, GlobalPriority: 50, CanRead: true, CanWrite: true},
		NoPermission:  RoleIdentifier{Identifier: RoleNoPermission, GlobalPriority: 0},
		Administrator: RoleIdentifier{Identifier: RoleAdministrator, GlobalPriority: 100, CanRead: true, CanWrite: true, Internal: true},
	}
}

// DefaultRoleIdentifiers returns the base tier ladder from no permission to administrator.
func DefaultRoleIdentifiers() []RoleIdentifier {
	wk := DefaultWellKnownRoles()
	return []RoleIdentifier{
		wk.NoPermission,
		{Identifier: RoleConsumer, GlobalPriority: 10, CanRead: true},
		{Identifier: RoleContributor, GlobalPriority: 20, CanRead: true, CanWrite: true},
		{Identifier: RoleCollaborator, GlobalPriority: 30, CanRead: true, CanWrite: true},
		wk.Manager,
		wk.Administrator,
	}
}
