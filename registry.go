package actionkit

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Registry holds every action and role definition of the application.
// Definitions are collected with the fluent builder, then Build resolves and
// seals the roles. After Build the registry is read-only and safe for
// concurrent lookups.
type Registry struct {
	mu          sync.RWMutex
	wellKnown   WellKnownRoles
	actions     actionIndex
	actionOrder []string
	defs        map[string]*RoleDefinition
	defOrder    []string
	roles       map[string]*Role
	built       bool
	validate    *validator.Validate
	logger      *slog.Logger
}

// RoleDefinition defines a role tier: the actions it grants directly and
// the roles whose actions it also carries.
type RoleDefinition struct {
	id        RoleIdentifier
	actionIDs []string
	includes  []string
	registry  *Registry
}

// actionIndex is the unlocked action lookup used while building.
type actionIndex map[string]*Action

func (ix actionIndex) LookupAction(id string) (*Action, bool) {
	a, ok := ix[id]
	return a, ok
}

// NewRegistry creates an empty registry for the given well-known roles.
func NewRegistry(wellKnown WellKnownRoles, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		wellKnown: wellKnown,
		actions:   make(actionIndex),
		defs:      make(map[string]*RoleDefinition),
		validate:  validator.New(),
		logger:    logger,
	}
}

// DefineAction adds action definitions. A later definition with the same id
// replaces the earlier one.
//
// Example:
//
//	registry.DefineAction(
//	    actionkit.Action{ID: "open", Purpose: "view", Enabled: true},
//	    actionkit.Action{ID: "delete", Purpose: "edit", Enabled: true, Local: true},
//	)
func (r *Registry) DefineAction(actions ...Action) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		r.logger.Warn("registry already built, action definitions ignored", "count", len(actions))
		return r
	}
	for i := range actions {
		a := actions[i]
		a.Filters = slices.Clone(a.Filters)
		if _, exists := r.actions[a.ID]; !exists {
			r.actionOrder = append(r.actionOrder, a.ID)
		}
		r.actions[a.ID] = &a
	}
	return r
}

// DefineRole starts defining a role tier. Defining the same identifier again
// starts over.
//
// Example:
//
//	registry.DefineRole(consumer).Actions("open", "print").
//	    DefineRole(contributor).Actions("edit").Includes(actionkit.RoleConsumer)
func (r *Registry) DefineRole(id RoleIdentifier) *RoleDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	def := &RoleDefinition{id: id, registry: r}
	if r.built {
		r.logger.Warn("registry already built, role definition ignored", "role", id.Identifier)
		return def
	}
	if _, exists := r.defs[id.Identifier]; !exists {
		r.defOrder = append(r.defOrder, id.Identifier)
	}
	r.defs[id.Identifier] = def
	return def
}

// Actions adds action ids granted directly by the role.
func (d *RoleDefinition) Actions(ids ...string) *RoleDefinition {
	d.registry.mu.Lock()
	defer d.registry.mu.Unlock()
	d.actionIDs = append(d.actionIDs, ids...)
	return d
}

// Includes makes the role carry every non-local action of the given roles.
func (d *RoleDefinition) Includes(roleIDs ...string) *RoleDefinition {
	d.registry.mu.Lock()
	defer d.registry.mu.Unlock()
	d.includes = append(d.includes, roleIDs...)
	return d
}

// DefineRole continues defining roles on the registry.
func (d *RoleDefinition) DefineRole(id RoleIdentifier) *RoleDefinition {
	return d.registry.DefineRole(id)
}

// ID returns the role tier being defined.
func (d *RoleDefinition) ID() RoleIdentifier { return d.id }

// ActionIDs returns the directly granted action ids.
func (d *RoleDefinition) ActionIDs() []string { return slices.Clone(d.actionIDs) }

// IncludedRoles returns the identifiers of included roles.
func (d *RoleDefinition) IncludedRoles() []string { return slices.Clone(d.includes) }

// Build validates the definitions, resolves action ids, merges included roles
// and seals every role. Unknown action ids and unknown included roles are
// skipped with a warning. Cyclic includes and invalid definitions fail with
// ErrInvalidDefinition. Calling Build again is a no-op.
func (r *Registry) Build() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		return nil
	}
	for _, id := range r.actionOrder {
		if err := r.validate.Struct(r.actions[id]); err != nil {
			return fmt.Errorf("%w: action %q: %v", ErrInvalidDefinition, id, err)
		}
	}
	r.ensureWellKnown()
	for _, id := range r.defOrder {
		if err := r.validate.Struct(r.defs[id].id); err != nil {
			return fmt.Errorf("%w: role %q: %v", ErrInvalidDefinition, id, err)
		}
	}

	order, err := r.buildOrder()
	if err != nil {
		return err
	}

	set := NewRoleSet(r.logger)
	for _, identifier := range order {
		def := r.defs[identifier]
		builder := NewRoleBuilder(def.id)
		builder.AddActionSet(NewActionSet(r.actions, r.logger, def.actionIDs...))
		set.Install(def.id, builder)
		for _, included := range def.includes {
			inc, ok := r.defs[included]
			if !ok {
				r.logger.Warn("included role not defined, skipping", "role", identifier, "include", included)
				continue
			}
			set.Chain(inc.id, def.id)
		}
	}

	r.roles = set.Seal()
	r.built = true
	r.logger.Debug("role registry built", "roles", len(r.roles), "actions", len(r.actions))
	return nil
}

// MustBuild is Build that panics on error.
func (r *Registry) MustBuild() *Registry {
	if err := r.Build(); err != nil {
		panic(err)
	}
	return r
}

// ensureWellKnown installs empty manager and no-permission roles when undefined.
func (r *Registry) ensureWellKnown() {
	for _, id := range []RoleIdentifier{r.wellKnown.NoPermission, r.wellKnown.Manager} {
		if id.IsZero() {
			continue
		}
		if _, ok := r.defs[id.Identifier]; ok {
			continue
		}
		r.defs[id.Identifier] = &RoleDefinition{id: id, registry: r}
		r.defOrder = append(r.defOrder, id.Identifier)
	}
}

// buildOrder sorts the definitions so that included roles come first.
func (r *Registry) buildOrder() ([]string, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(r.defs))
	order := make([]string, 0, len(r.defs))

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: cyclic role include %v", ErrInvalidDefinition, append(path, id))
		}
		state[id] = visiting
		for _, inc := range r.defs[id].includes {
			if _, ok := r.defs[inc]; !ok {
				continue
			}
			if err := visit(inc, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = done
		order = append(order, id)
		return nil
	}

	for _, id := range r.defOrder {
		if err := visit(id, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Built reports whether Build completed.
func (r *Registry) Built() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.built
}

// WellKnownRoles returns the configured well-known roles.
func (r *Registry) WellKnownRoles() WellKnownRoles {
	return r.wellKnown
}

// LookupAction implements ActionLookup.
func (r *Registry) LookupAction(id string) (*Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a, ok
}

// RequireActions resolves every id and fails with ErrUnknownAction naming the
// first undefined one. Use it where a missing action is a configuration
// error, such as route guards declared at startup.
func (r *Registry) RequireActions(ids ...string) (*ActionSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := &ActionSet{}
	for _, id := range ids {
		a, ok := r.actions[id]
		if !ok {
			return nil, NewError(ErrUnknownAction, "action is not defined").WithAction(id)
		}
		set.Add(a)
	}
	return set, nil
}

// LookupRole returns the sealed role for the identifier. It reports false
// before Build.
func (r *Registry) LookupRole(identifier string) (*Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[identifier]
	return role, ok
}

// RoleIdentifier returns the tier defined under identifier.
func (r *Registry) RoleIdentifier(identifier string) (RoleIdentifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[identifier]
	if !ok {
		return RoleIdentifier{}, false
	}
	return def.id, true
}

// IsManagerRole reports whether identifier names the manager tier.
func (r *Registry) IsManagerRole(identifier string) bool {
	return identifier != "" && identifier == r.wellKnown.Manager.Identifier
}

// ActiveRoles returns the user-facing tiers, internal ones excluded, from the
// least to the most privileged.
func (r *Registry) ActiveRoles() []RoleIdentifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]RoleIdentifier, 0, len(r.defs))
	for _, def := range r.defs {
		if !def.id.Internal {
			ids = append(ids, def.id)
		}
	}
	slices.SortFunc(ids, RoleIdentifier.Compare)
	return ids
}

// Roles returns every sealed role from the least to the most privileged.
func (r *Registry) Roles() []*Role {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]*Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, role)
	}
	slices.SortFunc(roles, func(a, b *Role) int { return a.ID().Compare(b.ID()) })
	return roles
}

// Actions returns every defined action in definition order.
func (r *Registry) Actions() []*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Action, 0, len(r.actionOrder))
	for _, id := range r.actionOrder {
		out = append(out, r.actions[id])
	}
	return out
}

// RoleDefinitionData is the plain form of a role definition, as persisted.
type RoleDefinitionData struct {
	ID       RoleIdentifier `json:"id"`
	Actions  []string       `json:"actions,omitempty"`
	Includes []string       `json:"includes,omitempty"`
}

// Definitions is the plain form of every definition held by a registry.
type Definitions struct {
	Actions []Action             `json:"actions"`
	Roles   []RoleDefinitionData `json:"roles"`
}

// Definitions exports the collected definitions.
func (r *Registry) Definitions() Definitions {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs Definitions
	for _, id := range r.actionOrder {
		defs.Actions = append(defs.Actions, *r.actions[id])
	}
	for _, id := range r.defOrder {
		d := r.defs[id]
		defs.Roles = append(defs.Roles, RoleDefinitionData{
			ID:       d.id,
			Actions:  slices.Clone(d.actionIDs),
			Includes: slices.Clone(d.includes),
		})
	}
	return defs
}

// NewRegistryFromDefinitions defines and builds a registry in one step.
func NewRegistryFromDefinitions(defs Definitions, wellKnown WellKnownRoles, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(wellKnown, logger)
	r.DefineAction(defs.Actions...)
	for _, d := range defs.Roles {
		r.DefineRole(d.ID).Actions(d.Actions...).Includes(d.Includes...)
	}
	if err := r.Build(); err != nil {
		return nil, err
	}
	return r, nil
}
