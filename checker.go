package actionkit

import (
	"context"
	"sync"
)

// Checker provides action checks for a specific authority.
// It is typically created by the Service and stored in context for use in handlers.
// Allowed actions are computed once per target and reused for the checker's lifetime.
type Checker struct {
	authority Authority
	service   *Service

	mu      sync.Mutex
	allowed map[string]*ActionSet
}

// NewChecker creates a new Checker for an authority.
func NewChecker(authority Authority, service *Service) *Checker {
	return &Checker{
		authority: authority,
		service:   service,
		allowed:   make(map[string]*ActionSet),
	}
}

// Authority returns the authority this checker is for.
func (c *Checker) Authority() Authority {
	return c.authority
}

// Role returns the authority's role on target, or nil when none resolves.
func (c *Checker) Role(ctx context.Context, target Target) *Role {
	res, err := c.service.EvaluateRole(ctx, target, c.authority, nil)
	if err != nil || res == nil {
		return nil
	}
	return res.Role
}

// AllowedActions returns the actions the authority may perform on target.
//
// Example:
//
//	for _, a := range checker.AllowedActions(ctx, project).Actions() {
//	    menu.Add(a.ID)
//	}
func (c *Checker) AllowedActions(ctx context.Context, target Target) *ActionSet {
	if target == nil {
		return &ActionSet{}
	}
	key := target.TargetType() + "\x00" + target.TargetID()

	c.mu.Lock()
	cached, ok := c.allowed[key]
	c.mu.Unlock()
	if ok {
		return cached.Clone()
	}

	actions, err := c.service.AllowedActions(ctx, target, c.authority)
	if err != nil {
		return &ActionSet{}
	}
	c.mu.Lock()
	c.allowed[key] = actions
	c.mu.Unlock()
	return actions.Clone()
}

// Can checks if the authority may perform action on target.
//
// Example:
//
//	if checker.Can(ctx, project, "EDIT_DETAILS") {
//	    // show the edit form
//	}
func (c *Checker) Can(ctx context.Context, target Target, actionID string) bool {
	return c.AllowedActions(ctx, target).Contains(actionID)
}

// CanAny checks if the authority may perform any of the actions on target.
func (c *Checker) CanAny(ctx context.Context, target Target, actionIDs ...string) bool {
	allowed := c.AllowedActions(ctx, target)
	for _, id := range actionIDs {
		if allowed.Contains(id) {
			return true
		}
	}
	return false
}

// CanAll checks if the authority may perform all of the actions on target.
func (c *Checker) CanAll(ctx context.Context, target Target, actionIDs ...string) bool {
	allowed := c.AllowedActions(ctx, target)
	for _, id := range actionIDs {
		if !allowed.Contains(id) {
			return false
		}
	}
	return true
}
