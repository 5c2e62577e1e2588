package actionkit

import (
	"log/slog"
	"slices"
)

// Action is a single unit of permission. Actions are created by a definition
// registry and shared by reference; the engine never mutates them.
type Action struct {
	ID      string   `json:"id" validate:"required"`
	Purpose string   `json:"purpose,omitempty"`
	Enabled bool     `json:"enabled"`
	Local   bool     `json:"local,omitempty"` // must not leak into a different role tier on merge
	Filters []string `json:"filters,omitempty"`
}

// NewAction creates an enabled, non-local action.
func NewAction(id, purpose string) *Action {
	return &Action{ID: id, Purpose: purpose, Enabled: true}
}

// String returns the action id.
func (a *Action) String() string {
	return a.ID
}

// HasFilter reports whether the action carries the given filter tag.
func (a *Action) HasFilter(tag string) bool {
	return slices.Contains(a.Filters, tag)
}

// ActionLookup resolves action definitions by id.
type ActionLookup interface {
	LookupAction(id string) (*Action, bool)
}

// ActionSet is a set of actions keyed by id. Enumeration follows insertion
// order so results are deterministic. The zero value is ready to use.
type ActionSet struct {
	order []string
	byID  map[string]*Action
}

// NewActionSetOf creates a set holding the given actions.
func NewActionSetOf(actions ...*Action) *ActionSet {
	s := &ActionSet{}
	s.Add(actions...)
	return s
}

// NewActionSet resolves each id through lookup and returns the set of found
// actions. Ids that do not resolve are skipped with a warning; a partial set
// is a valid result.
//
// Example:
//
//	set := actionkit.NewActionSet(registry, logger, "open", "edit", "delete")
func NewActionSet(lookup ActionLookup, logger *slog.Logger, ids ...string) *ActionSet {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ActionSet{}
	for _, id := range ids {
		if lookup == nil {
			logger.Warn("no action lookup configured, skipping action", "action", id)
			continue
		}
		action, ok := lookup.LookupAction(id)
		if !ok || action == nil {
			logger.Warn("action not found, skipping", "action", id)
			continue
		}
		s.Add(action)
	}
	return s
}

// Add inserts actions not already present. Nil actions are ignored.
func (s *ActionSet) Add(actions ...*Action) {
	for _, a := range actions {
		if a == nil {
			continue
		}
		if s.byID == nil {
			s.byID = make(map[string]*Action)
		}
		if _, exists := s.byID[a.ID]; exists {
			continue
		}
		s.byID[a.ID] = a
		s.order = append(s.order, a.ID)
	}
}

// AddAll inserts every action of other.
func (s *ActionSet) AddAll(other *ActionSet) {
	if other == nil {
		return
	}
	for _, id := range other.order {
		s.Add(other.byID[id])
	}
}

// Remove deletes the actions with the given ids. Missing ids are ignored.
func (s *ActionSet) Remove(ids ...string) {
	if s == nil || len(s.byID) == 0 {
		return
	}
	removed := false
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			delete(s.byID, id)
			removed = true
		}
	}
	if !removed {
		return
	}
	s.order = slices.DeleteFunc(s.order, func(id string) bool {
		_, ok := s.byID[id]
		return !ok
	})
}

// Retain keeps only the actions for which keep returns true.
func (s *ActionSet) Retain(keep func(*Action) bool) {
	if s == nil {
		return
	}
	var drop []string
	for _, id := range s.order {
		if !keep(s.byID[id]) {
			drop = append(drop, id)
		}
	}
	s.Remove(drop...)
}

// Contains reports whether an action with the id is in the set.
func (s *ActionSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.byID[id]
	return ok
}

// Get returns the action with the id.
func (s *ActionSet) Get(id string) (*Action, bool) {
	if s == nil {
		return nil, false
	}
	a, ok := s.byID[id]
	return a, ok
}

// Len returns the number of actions.
func (s *ActionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// IsEmpty reports whether the set has no actions.
func (s *ActionSet) IsEmpty() bool {
	return s.Len() == 0
}

// Actions returns the actions in insertion order.
func (s *ActionSet) Actions() []*Action {
	if s == nil {
		return []*Action{}
	}
	out := make([]*Action, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// IDs returns the action ids in insertion order.
func (s *ActionSet) IDs() []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s.order)
}

// Clone returns an independent copy of the set. The actions themselves are shared.
func (s *ActionSet) Clone() *ActionSet {
	c := &ActionSet{}
	c.AddAll(s)
	return c
}

// Equal reports whether both sets hold the same action ids, regardless of order.
func (s *ActionSet) Equal(other *ActionSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, id := range s.IDs() {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}
