package actionkit

import (
	"context"
	"log/slog"
)

// Role is a sealed, immutable set of actions bound to one role tier. Roles are
// shared between concurrent callers and must never be modified.
//
// Two roles are equal when their identifiers are equal; action content does
// not take part in identity.
type Role struct {
	id      RoleIdentifier
	actions *ActionSet
}

// ID returns the role tier.
func (r *Role) ID() RoleIdentifier {
	return r.id
}

// Identifier returns the role tier identifier string.
func (r *Role) Identifier() string {
	return r.id.Identifier
}

// Equal reports whether both roles are bound to the same tier.
func (r *Role) Equal(other *Role) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.id == other.id
}

// String returns the role identifier.
func (r *Role) String() string {
	return r.id.Identifier
}

// Has reports whether the role grants the action.
func (r *Role) Has(actionID string) bool {
	return r.actions.Contains(actionID)
}

// Len returns the number of actions granted by the role.
func (r *Role) Len() int {
	return r.actions.Len()
}

// AllowedActions returns a fresh copy of every action the role grants.
// Callers may modify the returned set freely.
func (r *Role) AllowedActions() *ActionSet {
	if r == nil {
		return &ActionSet{}
	}
	return r.actions.Clone()
}

// AllowedActionsFor returns the actions that survive the context filter.
// A nil context returns the full set.
func (r *Role) AllowedActionsFor(ctx context.Context, ec *EvaluatorContext) *ActionSet {
	actions := r.AllowedActions()
	if ec == nil {
		return actions
	}
	return ec.Filter(ctx, actions)
}

func (r *Role) roleID() RoleIdentifier { return r.id }
func (r *Role) actionSet() *ActionSet  { return r.actions }

// RoleBuilder accumulates actions for a role tier until sealed.
type RoleBuilder struct {
	id      RoleIdentifier
	actions *ActionSet
	sealed  *Role
}

// NewRoleBuilder starts a role for the given tier.
//
// Example:
//
//	b := actionkit.NewRoleBuilder(consumer)
//	b.AddActions(open, view)
//	role := b.Seal()
func NewRoleBuilder(id RoleIdentifier, actions ...*Action) *RoleBuilder {
	b := &RoleBuilder{id: id, actions: &ActionSet{}}
	b.AddActions(actions...)
	return b
}

// ID returns the role tier being built.
func (b *RoleBuilder) ID() RoleIdentifier {
	return b.id
}

// AddActions inserts actions. It is a no-op once the builder is sealed or when
// no actions are given; duplicates are ignored.
func (b *RoleBuilder) AddActions(actions ...*Action) {
	if b.sealed != nil || len(actions) == 0 {
		return
	}
	b.actions.Add(actions...)
}

// AddActionSet inserts every action of set.
func (b *RoleBuilder) AddActionSet(set *ActionSet) {
	if set == nil {
		return
	}
	b.AddActions(set.Actions()...)
}

// Sealed reports whether Seal has been called.
func (b *RoleBuilder) Sealed() bool {
	return b.sealed != nil
}

// Len returns the number of accumulated actions.
func (b *RoleBuilder) Len() int {
	return b.actions.Len()
}

// Seal freezes the builder and returns the immutable role. Calling Seal again
// returns the same role.
func (b *RoleBuilder) Seal() *Role {
	if b.sealed == nil {
		b.sealed = &Role{id: b.id, actions: b.actions.Clone()}
	}
	return b.sealed
}

func (b *RoleBuilder) roleID() RoleIdentifier { return b.id }
func (b *RoleBuilder) actionSet() *ActionSet  { return b.actions }

// ActionHolder is a role or role builder whose actions can be merged into another role.
type ActionHolder interface {
	roleID() RoleIdentifier
	actionSet() *ActionSet
}

// MergeRoles copies the actions of source into destination. When the two are
// bound to different tiers only non-local actions are copied; the ids of local
// actions left behind are returned.
func MergeRoles(source ActionHolder, destination *RoleBuilder) []string {
	if source == nil || destination == nil {
		return nil
	}
	actions := source.actionSet().Actions()
	if source.roleID() == destination.id {
		destination.AddActions(actions...)
		return nil
	}
	var dropped []string
	copied := make([]*Action, 0, len(actions))
	for _, a := range actions {
		if a.Local {
			dropped = append(dropped, a.ID)
			continue
		}
		copied = append(copied, a)
	}
	destination.AddActions(copied...)
	return dropped
}

// RoleSet is a mapping from role identifier to role builder used to assemble
// tiered role hierarchies from flat role to action definitions.
type RoleSet struct {
	builders map[string]*RoleBuilder
	order    []string
	logger   *slog.Logger
}

// NewRoleSet creates an empty role set.
func NewRoleSet(logger *slog.Logger) *RoleSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleSet{
		builders: make(map[string]*RoleBuilder),
		logger:   logger,
	}
}

// Get returns the builder for the identifier.
func (s *RoleSet) Get(identifier string) (*RoleBuilder, bool) {
	b, ok := s.builders[identifier]
	return b, ok
}

// Install stores source under target when no entry exists yet; otherwise it
// merges source into the existing entry.
func (s *RoleSet) Install(target RoleIdentifier, source *RoleBuilder) {
	if source == nil {
		return
	}
	existing, ok := s.builders[target.Identifier]
	if !ok {
		s.builders[target.Identifier] = source
		s.order = append(s.order, target.Identifier)
		return
	}
	s.merge(source, existing)
}

// Chain merges the content of the role from onto the role to, creating to when
// absent. It is a no-op when from is not present.
//
// Example:
//
//	// a contributor also carries everything a consumer carries
//	set.Chain(consumer, contributor)
func (s *RoleSet) Chain(from, to RoleIdentifier) {
	source, ok := s.builders[from.Identifier]
	if !ok {
		return
	}
	destination, ok := s.builders[to.Identifier]
	if !ok {
		destination = NewRoleBuilder(to)
		s.builders[to.Identifier] = destination
		s.order = append(s.order, to.Identifier)
	}
	s.merge(source, destination)
}

func (s *RoleSet) merge(source ActionHolder, destination *RoleBuilder) {
	dropped := MergeRoles(source, destination)
	if len(dropped) > 0 {
		s.logger.Info("local actions not propagated across role tiers",
			"from", source.roleID().Identifier,
			"to", destination.id.Identifier,
			"actions", dropped)
	}
}

// Seal seals every builder and returns the roles keyed by identifier.
func (s *RoleSet) Seal() map[string]*Role {
	roles := make(map[string]*Role, len(s.builders))
	for _, id := range s.order {
		roles[id] = s.builders[id].Seal()
	}
	return roles
}

// Identifiers returns the identifiers in insertion order.
func (s *RoleSet) Identifiers() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
