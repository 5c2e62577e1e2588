package actionkit

// RuntimeSettings narrows a single evaluation. Role tiers listed as irrelevant
// are skipped while walking an evaluator chain.
type RuntimeSettings struct {
	IrrelevantRoles []RoleIdentifier
}

// NewRuntimeSettings creates settings that ignore the given role tiers.
func NewRuntimeSettings(irrelevant ...RoleIdentifier) *RuntimeSettings {
	return &RuntimeSettings{IrrelevantRoles: irrelevant}
}

// IsIrrelevant reports whether the role tier should be skipped. Nil settings
// consider every tier relevant.
func (s *RuntimeSettings) IsIrrelevant(id RoleIdentifier) bool {
	if s == nil {
		return false
	}
	for _, r := range s.IrrelevantRoles {
		if r.Identifier == id.Identifier {
			return true
		}
	}
	return false
}

// Without returns a copy that also ignores the given tiers.
func (s *RuntimeSettings) Without(ids ...RoleIdentifier) *RuntimeSettings {
	out := &RuntimeSettings{}
	if s != nil {
		out.IrrelevantRoles = append(out.IrrelevantRoles, s.IrrelevantRoles...)
	}
	out.IrrelevantRoles = append(out.IrrelevantRoles, ids...)
	return out
}
