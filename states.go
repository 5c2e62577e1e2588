package actionkit

import (
	"slices"
	"strings"
	"sync"
)

// Lifecycle state types. Each bound type maps a state type to its own label.
const (
	StateInit       = "INIT"
	StateSubmitted  = "SUBMITTED"
	StateApproved   = "APPROVED"
	StateInProgress = "IN_PROGRESS"
	StateOnHold     = "ON_HOLD"
	StateCompleted  = "COMPLETED"
	StateCanceled   = "STOPPED"
	StateDeleted    = "DELETED"
	StateNotStarted = "NOT_STARTED"
	StateStarted    = "STARTED"
)

// Stateful is a target that knows its current lifecycle label.
type Stateful interface {
	CurrentState() string
}

// CurrentState implements Stateful.
func (i *Instance) CurrentState() string { return i.State }

// StateTable is an in-memory StateService. Labels are registered per bound
// type; the empty bound type holds defaults shared by every type.
type StateTable struct {
	mu     sync.RWMutex
	labels map[string]map[string][]string // bound type -> state type -> labels
}

// NewStateTable creates an empty table.
func NewStateTable() *StateTable {
	return &StateTable{labels: make(map[string]map[string][]string)}
}

// DefaultStateTable returns a table where every state type is labelled by its
// own name and the grouped state types list their members.
func DefaultStateTable() *StateTable {
	t := NewStateTable()
	for _, s := range []string{
		StateInit, StateSubmitted, StateApproved, StateInProgress, StateOnHold,
		StateCompleted, StateCanceled, StateDeleted,
	} {
		t.Define("", s, s)
	}
	t.Define("", StateNotStarted, StateInit, StateSubmitted, StateApproved)
	t.Define("", StateStarted, StateInProgress, StateOnHold, StateCompleted)
	return t
}

// Define sets the labels of stateType for boundType and returns the table for chaining.
func (t *StateTable) Define(boundType, stateType string, labels ...string) *StateTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	byState, ok := t.labels[boundType]
	if !ok {
		byState = make(map[string][]string)
		t.labels[boundType] = byState
	}
	byState[stateType] = slices.Clone(labels)
	return t
}

func (t *StateTable) lookup(boundType, stateType string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if labels, ok := t.labels[boundType][stateType]; ok {
		return labels
	}
	return t.labels[""][stateType]
}

// GetState implements StateService. It returns the primary label, or "" when undefined.
func (t *StateTable) GetState(stateType, boundType string) string {
	labels := t.lookup(boundType, stateType)
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

// IsStateAs implements StateService. Labels compare case-insensitively.
func (t *StateTable) IsStateAs(boundType, current string, stateTypes ...string) bool {
	if current == "" {
		return false
	}
	for _, st := range stateTypes {
		for _, label := range t.lookup(boundType, st) {
			if strings.EqualFold(label, current) {
				return true
			}
		}
	}
	return false
}

// IsInStates implements StateService. Targets that do not report a state are
// in no state.
func (t *StateTable) IsInStates(instance Target, stateTypes ...string) bool {
	s, ok := instance.(Stateful)
	if !ok {
		return false
	}
	return t.IsStateAs(instance.TargetType(), s.CurrentState(), stateTypes...)
}
