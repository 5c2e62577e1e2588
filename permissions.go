package actionkit

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// DefaultAllOtherAuthority is the authority standing for every user without
// a more specific assignment.
const DefaultAllOtherAuthority = "sec:SYSTEM_ALL_OTHER"

// DefaultGroupType is the target type of authority groups. Groups are exempt
// from the root manager requirement.
const DefaultGroupType = "group"

// AssignmentOptions overrides the stored inheritance switches of the
// requested target. Nil keeps the stored value.
type AssignmentOptions struct {
	IncludeParent  *bool
	IncludeLibrary *bool
}

// Bool returns a pointer to v, for AssignmentOptions.
func Bool(v bool) *bool {
	return &v
}

// PermissionModel describes where the assignments of a target come from.
type PermissionModel struct {
	Defined            bool `json:"defined"`
	InheritFromParent  bool `json:"inherit_from_parent"`
	InheritFromLibrary bool `json:"inherit_from_library"`
	Special            bool `json:"special"`
}

// PermissionService resolves the role assignments of targets from their
// library, their parent hierarchy and their special assignments, and applies
// permission changes.
type PermissionService struct {
	store     PermissionStore
	roles     RoleDirectory
	wellKnown WellKnownRoles
	allOther  string
	groupType string
	logger    *slog.Logger
}

// PermissionOption configures a PermissionService.
type PermissionOption func(*PermissionService)

// WithAllOtherAuthority sets the authority standing for every other user.
// An empty id disables the fallback.
func WithAllOtherAuthority(id string) PermissionOption {
	return func(s *PermissionService) {
		s.allOther = id
	}
}

// WithGroupType sets the target type of authority groups.
func WithGroupType(targetType string) PermissionOption {
	return func(s *PermissionService) {
		s.groupType = targetType
	}
}

// WithPermissionLogger sets the logger.
func WithPermissionLogger(logger *slog.Logger) PermissionOption {
	return func(s *PermissionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPermissionService creates a permission service.
//
// Example:
//
//	perms := actionkit.NewPermissionService(store, registry, cfg.WellKnownRoles(),
//	    actionkit.WithAllOtherAuthority(cfg.AllOtherAuthority))
func NewPermissionService(store PermissionStore, roles RoleDirectory, wellKnown WellKnownRoles, opts ...PermissionOption) *PermissionService {
	s := &PermissionService{
		store:     store,
		roles:     roles,
		wellKnown: wellKnown,
		allOther:  DefaultAllOtherAuthority,
		groupType: DefaultGroupType,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// permissionNode is a loaded permission model linked to its parent and library.
type permissionNode struct {
	ep      *EntityPermission
	parent  *permissionNode
	library *permissionNode
}

// loadNode loads the permission model of targetID and, recursively, its parent
// and library. A target already on the current path is treated as absent.
func (s *PermissionService) loadNode(ctx context.Context, targetID string, path map[string]bool) (*permissionNode, error) {
	if targetID == "" {
		return nil, nil
	}
	if path[targetID] {
		s.logger.Warn("permission hierarchy cycle, ignoring", "target", targetID)
		return nil, nil
	}
	ep, err := s.store.LoadEntityPermission(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, nil
	}

	path[targetID] = true
	defer delete(path, targetID)

	node := &permissionNode{ep: ep}
	if node.library, err = s.loadNode(ctx, ep.LibraryID, path); err != nil {
		return nil, err
	}
	if node.parent, err = s.loadNode(ctx, ep.ParentID, path); err != nil {
		return nil, err
	}
	return node, nil
}

// Assignments returns the resolved assignment of every authority on target,
// keyed by authority id. Library assignments are folded first, then parent
// assignments, then the target's own special assignments; RoleAssignments
// decides the active role of each authority. A target with a permission model
// always carries an entry for the "all other users" authority, the
// no-permission role unless one is assigned.
func (s *PermissionService) Assignments(ctx context.Context, targetID string, opts AssignmentOptions) (map[string]*ResourceRole, error) {
	if targetID == "" {
		return map[string]*ResourceRole{}, nil
	}
	node, err := s.loadNode(ctx, targetID, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return map[string]*ResourceRole{}, nil
	}

	assignments := s.collect(node, opts.IncludeParent, opts.IncludeLibrary)
	if _, ok := assignments[s.allOther]; !ok && s.allOther != "" {
		s.addAssignment(assignments, targetID, s.allOther, s.wellKnown.NoPermission.Identifier, AssignmentSpecial, "")
	}
	for _, rr := range assignments {
		s.resolveIdentifier(rr)
	}
	return assignments, nil
}

func (s *PermissionService) collect(node *permissionNode, includeParent, includeLibrary *bool) map[string]*ResourceRole {
	assignments := make(map[string]*ResourceRole)
	targetID := node.ep.TargetID

	libraryEnabled := enabled(node.ep.InheritFromLibrary, includeLibrary)
	s.inherit(assignments, targetID, node.library, !libraryEnabled, AssignmentLibrary)

	parentEnabled := enabled(node.ep.InheritFromParent, includeParent)
	s.inherit(assignments, targetID, node.parent, !parentEnabled, AssignmentInherited)

	for _, a := range node.ep.Assignments {
		s.addAssignment(assignments, targetID, a.AuthorityID, a.Role, AssignmentSpecial, "")
	}
	return assignments
}

// enabled applies an override: nil keeps stored, otherwise the override wins.
func enabled(stored bool, override *bool) bool {
	if override == nil {
		return stored
	}
	return *override
}

func (s *PermissionService) inherit(assignments map[string]*ResourceRole, targetID string, source *permissionNode, managersOnly bool, assignmentType AssignmentType) {
	if source == nil {
		return
	}
	inherited := s.collect(source, nil, nil)
	for _, authority := range slices.Sorted(maps.Keys(inherited)) {
		rr := inherited[authority]
		if managersOnly && !rr.IsManager() {
			continue
		}
		s.addAssignment(assignments, targetID, authority, rr.Assignments.Active(), assignmentType, source.ep.TargetID)
	}
}

func (s *PermissionService) addAssignment(assignments map[string]*ResourceRole, targetID, authority, role string, assignmentType AssignmentType, inheritedFrom string) {
	rr, ok := assignments[authority]
	if !ok {
		rr = NewResourceRole(targetID, authority, s.wellKnown.Manager.Identifier)
		assignments[authority] = rr
	}
	rr.setOrigin(role, assignmentType, inheritedFrom)
}

func (s *PermissionService) resolveIdentifier(rr *ResourceRole) {
	active := rr.Assignments.Active()
	if active == "" {
		rr.Role = s.wellKnown.NoPermission
		return
	}
	if id, ok := s.roles.RoleIdentifier(active); ok {
		rr.Role = id
		return
	}
	s.logger.Warn("assigned role not defined", "role", active, "authority", rr.AuthorityID, "target", rr.TargetReference)
	rr.Role = RoleIdentifier{Identifier: active}
}

// Assignment returns the assignment that applies to authority on target: its
// own, else the most privileged one among its groups, else the one of the
// "all other users" authority. It returns nil when target has no permission
// model.
func (s *PermissionService) Assignment(ctx context.Context, targetID string, authority Authority) (*ResourceRole, error) {
	if targetID == "" || authority.ID == "" {
		return nil, nil
	}
	assignments, err := s.Assignments(ctx, targetID, AssignmentOptions{})
	if err != nil {
		return nil, err
	}
	rr, _ := s.resolveFor(authority, assignments)
	return rr, nil
}

// AssignmentsFor returns, per target id, the assignment that applies to
// authority. Targets without one get a no-permission assignment.
func (s *PermissionService) AssignmentsFor(ctx context.Context, targetIDs []string, authority Authority) (map[string]*ResourceRole, error) {
	out := make(map[string]*ResourceRole, len(targetIDs))
	if authority.ID == "" {
		return out, nil
	}
	for _, id := range targetIDs {
		assignments, err := s.Assignments(ctx, id, AssignmentOptions{})
		if err != nil {
			return nil, err
		}
		rr, ok := s.resolveFor(authority, assignments)
		if !ok {
			rr = NewResourceRole(id, authority.ID, s.wellKnown.Manager.Identifier)
			rr.Role = s.wellKnown.NoPermission
		}
		out[id] = rr
	}
	return out, nil
}

func (s *PermissionService) resolveFor(authority Authority, assignments map[string]*ResourceRole) (*ResourceRole, bool) {
	if len(assignments) == 0 {
		return nil, false
	}
	if rr, ok := assignments[authority.ID]; ok {
		return rr, true
	}

	containing := slices.Clone(authority.Groups)
	if s.allOther != "" {
		containing = append(containing, s.allOther)
		// a group assignment hides the one of every other user
		for id := range assignments {
			if id != s.allOther && slices.Contains(authority.Groups, id) {
				containing = slices.DeleteFunc(containing, func(g string) bool { return g == s.allOther })
				break
			}
		}
	}

	var candidates []*ResourceRole
	for _, id := range slices.Sorted(maps.Keys(assignments)) {
		if slices.Contains(containing, id) {
			candidates = append(candidates, assignments[id])
		}
	}
	rr := s.findMaxRole(candidates)
	return rr, rr != nil
}

// findMaxRole returns the most privileged assignment; a manager wins at once.
// Roles that are not active tiers are never chosen.
func (s *PermissionService) findMaxRole(candidates []*ResourceRole) *ResourceRole {
	active := s.roles.ActiveRoles()
	maxLevel := -1
	var best *ResourceRole
	for _, rr := range candidates {
		if rr.IsManager() {
			return rr
		}
		level := slices.IndexFunc(active, func(id RoleIdentifier) bool {
			return id.Identifier == rr.Role.Identifier
		})
		if level > maxLevel {
			best = rr
			maxLevel = level
		}
	}
	return best
}

// PermissionModel reports where the assignments of target come from.
func (s *PermissionService) PermissionModel(ctx context.Context, targetID string) (PermissionModel, error) {
	if targetID == "" {
		return PermissionModel{}, nil
	}
	ep, err := s.store.LoadEntityPermission(ctx, targetID)
	if err != nil || ep == nil {
		return PermissionModel{}, err
	}
	return PermissionModel{
		Defined:            true,
		InheritFromParent:  ep.InheritFromParent,
		InheritFromLibrary: ep.InheritFromLibrary,
		Special:            len(ep.Assignments) > 0,
	}, nil
}

// ============================================================================
// PERMISSION CHANGES
// ============================================================================

// PermissionChange is one requested change of a permission model.
type PermissionChange interface {
	isPermissionChange()
}

// AddRoleAssignment assigns role to authority on the target, replacing a different one.
type AddRoleAssignment struct {
	Authority string
	Role      string
}

// RemoveRoleAssignment removes the assignment of authority when it holds role.
type RemoveRoleAssignment struct {
	Authority string
	Role      string
}

// ParentChange moves the target under another parent. An empty id makes it a root.
type ParentChange struct {
	ParentID string
}

// InheritFromParentChange toggles parent inheritance.
type InheritFromParentChange struct {
	Inherit bool
}

// LibraryChange binds the target to another library.
type LibraryChange struct {
	LibraryID string
}

// InheritFromLibraryChange toggles library inheritance.
type InheritFromLibraryChange struct {
	Inherit bool
}

// LibraryIndicatorChange marks the target as a library.
type LibraryIndicatorChange struct {
	IsLibrary bool
}

func (AddRoleAssignment) isPermissionChange()        {}
func (RemoveRoleAssignment) isPermissionChange()     {}
func (ParentChange) isPermissionChange()             {}
func (InheritFromParentChange) isPermissionChange()  {}
func (LibraryChange) isPermissionChange()            {}
func (InheritFromLibraryChange) isPermissionChange() {}
func (LibraryIndicatorChange) isPermissionChange()   {}

// ChangeKind classifies an applied change.
type ChangeKind string

const (
	ChangeAssignment         ChangeKind = "assignment"
	ChangeParentInheritance  ChangeKind = "parent_inheritance"
	ChangeLibraryInheritance ChangeKind = "library_inheritance"
)

// AppliedChange describes one effective change. For assignments Before and
// After are roles; for inheritance changes they are parent or library ids.
type AppliedChange struct {
	Kind         ChangeKind `json:"kind"`
	Authority    string     `json:"authority,omitempty"`
	Before       string     `json:"before,omitempty"`
	After        string     `json:"after,omitempty"`
	ManagersOnly bool       `json:"managers_only,omitempty"`
}

// SetPermissions applies changes to the permission model of target and
// returns the effective ones. Assigning an undefined role fails with
// ErrUnknownRole. Removals apply before additions, then parent,
// library and library indicator changes. A root target that is neither a
// library nor a group must keep at least one manager, directly or through
// its library; otherwise nothing is saved and ErrMissingManager is returned.
func (s *PermissionService) SetPermissions(ctx context.Context, target Target, changes ...PermissionChange) ([]AppliedChange, error) {
	if target == nil || target.TargetID() == "" {
		return nil, NewError(ErrInvalidTarget, "no target provided")
	}
	if len(changes) == 0 {
		return nil, nil
	}

	id := target.TargetID()
	ep, err := s.store.LoadEntityPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		ep = NewEntityPermission(id)
	}

	for _, c := range changes {
		if ac, ok := c.(AddRoleAssignment); ok {
			if ac.Authority == "" {
				return nil, NewError(ErrInvalidDefinition, "assignment without authority").WithTarget(id)
			}
			if _, known := s.roles.RoleIdentifier(ac.Role); !known {
				return nil, NewError(ErrUnknownRole, "cannot assign undefined role").
					WithTarget(id).WithRole(ac.Role).WithAuthority(ac.Authority)
			}
		}
	}

	var applied []AppliedChange
	applied = append(applied, removeAssignments(ep, changes)...)
	applied = append(applied, addAssignments(ep, changes)...)

	parentChanged, err := s.applyParentChange(ctx, ep, changes)
	if err != nil {
		return nil, err
	}
	applied = append(applied, parentChanged...)

	libraryChanged, err := s.applyLibraryChange(ctx, ep, changes)
	if err != nil {
		return nil, err
	}
	applied = append(applied, libraryChanged...)

	for _, c := range changes {
		if lc, ok := c.(LibraryIndicatorChange); ok {
			ep.IsLibrary = lc.IsLibrary
		}
	}

	if err := s.ensureManager(ctx, target, ep); err != nil {
		return nil, err
	}
	if err := s.store.SaveEntityPermission(ctx, ep); err != nil {
		return nil, err
	}

	s.logger.Info("permissions changed", "target", id, "changes", len(applied))
	return applied, nil
}

func removeAssignments(ep *EntityPermission, changes []PermissionChange) []AppliedChange {
	var applied []AppliedChange
	for _, c := range changes {
		rc, ok := c.(RemoveRoleAssignment)
		if !ok {
			continue
		}
		existing, found := ep.Assignment(rc.Authority)
		if !found || existing.Role != rc.Role {
			continue
		}
		ep.Assignments = slices.DeleteFunc(ep.Assignments, func(a *AuthorityRoleAssignment) bool {
			return a == existing
		})
		applied = append(applied, AppliedChange{Kind: ChangeAssignment, Authority: rc.Authority, Before: rc.Role})
	}
	return applied
}

func addAssignments(ep *EntityPermission, changes []PermissionChange) []AppliedChange {
	var applied []AppliedChange
	for _, c := range changes {
		ac, ok := c.(AddRoleAssignment)
		if !ok {
			continue
		}
		existing, found := ep.Assignment(ac.Authority)
		switch {
		case !found:
			ep.Assignments = append(ep.Assignments, &AuthorityRoleAssignment{
				TargetID:    ep.TargetID,
				AuthorityID: ac.Authority,
				Role:        ac.Role,
			})
			applied = append(applied, AppliedChange{Kind: ChangeAssignment, Authority: ac.Authority, After: ac.Role})
		case existing.Role != ac.Role:
			applied = append(applied, AppliedChange{Kind: ChangeAssignment, Authority: ac.Authority, Before: existing.Role, After: ac.Role})
			existing.Role = ac.Role
		}
	}
	return applied
}

func (s *PermissionService) applyParentChange(ctx context.Context, ep *EntityPermission, changes []PermissionChange) ([]AppliedChange, error) {
	oldParent := ep.ParentID
	newParent := oldParent
	changed := false

	for _, c := range changes {
		pc, ok := c.(ParentChange)
		if !ok || pc.ParentID == oldParent {
			continue
		}
		parent, err := s.existing(ctx, pc.ParentID)
		if err != nil {
			return nil, err
		}
		newParent = parent
		ep.ParentID = parent
		changed = true
		break
	}
	for _, c := range changes {
		ic, ok := c.(InheritFromParentChange)
		if !ok || ic.Inherit == ep.InheritFromParent {
			continue
		}
		ep.InheritFromParent = ic.Inherit
		changed = true
		break
	}

	if !changed {
		return nil, nil
	}
	return []AppliedChange{{
		Kind:         ChangeParentInheritance,
		Before:       oldParent,
		After:        newParent,
		ManagersOnly: !ep.InheritFromParent,
	}}, nil
}

func (s *PermissionService) applyLibraryChange(ctx context.Context, ep *EntityPermission, changes []PermissionChange) ([]AppliedChange, error) {
	oldLibrary := ep.LibraryID
	newLibrary := oldLibrary
	changed := false

	for _, c := range changes {
		lc, ok := c.(LibraryChange)
		if !ok || lc.LibraryID == oldLibrary {
			continue
		}
		library, err := s.existing(ctx, lc.LibraryID)
		if err != nil {
			return nil, err
		}
		newLibrary = library
		ep.LibraryID = library
		changed = true
		break
	}
	for _, c := range changes {
		ic, ok := c.(InheritFromLibraryChange)
		if !ok || ic.Inherit == ep.InheritFromLibrary {
			continue
		}
		ep.InheritFromLibrary = ic.Inherit
		changed = true
		break
	}

	if !changed {
		return nil, nil
	}
	return []AppliedChange{{
		Kind:         ChangeLibraryInheritance,
		Before:       oldLibrary,
		After:        newLibrary,
		ManagersOnly: !ep.InheritFromLibrary,
	}}, nil
}

// existing returns id when a permission model is stored for it, "" otherwise.
func (s *PermissionService) existing(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	ep, err := s.store.LoadEntityPermission(ctx, id)
	if err != nil {
		return "", err
	}
	if ep == nil {
		s.logger.Warn("referenced target has no permission model, unlinking", "target", id)
		return "", nil
	}
	return id, nil
}

func (s *PermissionService) ensureManager(ctx context.Context, target Target, ep *EntityPermission) error {
	if target.TargetType() == s.groupType || !ep.IsRoot() || ep.IsLibrary {
		return nil
	}
	if s.hasManager(ep) {
		return nil
	}
	if ep.LibraryID != "" {
		library, err := s.store.LoadEntityPermission(ctx, ep.LibraryID)
		if err != nil {
			return err
		}
		if library != nil && s.hasManager(library) {
			return nil
		}
	}
	return NewError(ErrMissingManager, fmt.Sprintf("target %s would have no manager", ep.TargetID)).WithTarget(ep.TargetID)
}

func (s *PermissionService) hasManager(ep *EntityPermission) bool {
	for _, a := range ep.Assignments {
		if a.Role != "" && a.Role == s.wellKnown.Manager.Identifier {
			return true
		}
	}
	return false
}
