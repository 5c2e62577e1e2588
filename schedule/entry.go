package schedule

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/fernandezvara/actionkit"
)

// Loader resolves the structure around an entry.
type Loader interface {
	LoadEntry(ctx context.Context, id string) (*Entry, error)
	LoadChildren(ctx context.Context, id string) ([]*Entry, error)
	LoadContainer(ctx context.Context, id string) (actionkit.Target, error)
}

// Entry is a node of a schedule tree. Its parent, children and container are
// loaded through a Loader the first time they are needed and kept on the
// entry afterwards.
type Entry struct {
	ID string `json:"id"`
	// ParentID and ParentPhantomID reference the parent; the phantom id is
	// used while the parent is not persisted yet.
	ParentID        string `json:"parent_id,omitempty"`
	ParentPhantomID string `json:"parent_phantom_id,omitempty"`
	ContainerID     string `json:"container_id,omitempty"`
	// Index orders siblings.
	Index int `json:"index"`

	// BoundType is the type of business object the entry plans; "" when not chosen yet.
	BoundType string `json:"bound_type,omitempty"`
	// InstanceID is the id of the concrete bound instance once materialized.
	InstanceID string   `json:"instance_id,omitempty"`
	Identifier string   `json:"identifier,omitempty"`
	Assignees  []string `json:"assignees,omitempty"`
	State      string   `json:"state,omitempty"`

	mu             sync.Mutex
	parent         *Entry
	parentLoaded   bool
	children       []*Entry
	childrenLoaded bool
	container      actionkit.Target
}

// TargetID implements actionkit.Target.
func (e *Entry) TargetID() string { return e.ID }

// TargetType implements actionkit.Target.
func (e *Entry) TargetType() string { return TargetType }

// CurrentState implements actionkit.Stateful.
func (e *Entry) CurrentState() string { return e.State }

// NoParent reports whether the entry has neither a parent nor a phantom parent.
func (e *Entry) NoParent() bool {
	return e.ParentID == "" && e.ParentPhantomID == ""
}

// HasActualInstance reports whether the entry is bound to a concrete instance.
func (e *Entry) HasActualInstance() bool {
	return strings.TrimSpace(e.InstanceID) != ""
}

// Instance returns the bound instance as a target, or nil when not materialized.
func (e *Entry) Instance() *actionkit.Instance {
	if !e.HasActualInstance() {
		return nil
	}
	return actionkit.NewInstance(e.BoundType, e.InstanceID)
}

// SetParent links the parent entry, bypassing the loader.
func (e *Entry) SetParent(parent *Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parent = parent
	e.parentLoaded = true
}

// SetChildren links the child entries, bypassing the loader.
func (e *Entry) SetChildren(children []*Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.children = sortByIndex(children)
	e.childrenLoaded = true
}

// SetContainer links the owning container, bypassing the loader.
func (e *Entry) SetContainer(container actionkit.Target) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.container = container
}

// Parent returns the parent entry, or nil for a root entry.
func (e *Entry) Parent(ctx context.Context, loader Loader) (*Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parentLoaded {
		return e.parent, nil
	}
	if e.NoParent() {
		e.parentLoaded = true
		return nil, nil
	}
	if loader == nil {
		return nil, nil
	}
	id := e.ParentID
	if id == "" {
		id = e.ParentPhantomID
	}
	parent, err := loader.LoadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.parent = parent
	e.parentLoaded = true
	return parent, nil
}

// Children returns the child entries ordered by index.
func (e *Entry) Children(ctx context.Context, loader Loader) ([]*Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.childrenLoaded {
		return e.children, nil
	}
	if loader == nil {
		return nil, nil
	}
	children, err := loader.LoadChildren(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.children = sortByIndex(children)
	e.childrenLoaded = true
	return e.children, nil
}

// Container returns the owning top-level container, or nil when unknown.
func (e *Entry) Container(ctx context.Context, loader Loader) (actionkit.Target, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.container != nil {
		return e.container, nil
	}
	if e.ContainerID == "" || loader == nil {
		return nil, nil
	}
	container, err := loader.LoadContainer(ctx, e.ContainerID)
	if err != nil {
		return nil, err
	}
	e.container = container
	return container, nil
}

// detached copies the persistent fields, leaving the loaded links behind.
func (e *Entry) detached() *Entry {
	return &Entry{
		ID:              e.ID,
		ParentID:        e.ParentID,
		ParentPhantomID: e.ParentPhantomID,
		ContainerID:     e.ContainerID,
		Index:           e.Index,
		BoundType:       e.BoundType,
		InstanceID:      e.InstanceID,
		Identifier:      e.Identifier,
		Assignees:       slices.Clone(e.Assignees),
		State:           e.State,
	}
}

func sortByIndex(entries []*Entry) []*Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b *Entry) int { return cmp.Compare(a.Index, b.Index) })
	return out
}

// Tree is an in-memory Loader over a fully loaded schedule.
type Tree struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	containers map[string]actionkit.Target
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		entries:    make(map[string]*Entry),
		containers: make(map[string]actionkit.Target),
	}
}

// Add inserts entries and returns the tree for chaining.
func (t *Tree) Add(entries ...*Entry) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.entries[e.ID] = e
	}
	return t
}

// AddContainer inserts a container and returns the tree for chaining.
func (t *Tree) AddContainer(container actionkit.Target) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.containers[container.TargetID()] = container
	return t
}

// Entry returns a fresh copy of the entry with the id. Copies load their
// parent, children and container again, so they see later changes to the tree.
func (t *Tree) Entry(id string) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	return e.detached(), true
}

// LoadEntry implements Loader.
func (t *Tree) LoadEntry(_ context.Context, id string) (*Entry, error) {
	e, _ := t.Entry(id)
	return e, nil
}

// LoadChildren implements Loader.
func (t *Tree) LoadChildren(_ context.Context, id string) ([]*Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var children []*Entry
	for _, e := range t.entries {
		if e.ParentID == id || (e.ParentID == "" && e.ParentPhantomID == id) {
			children = append(children, e.detached())
		}
	}
	slices.SortFunc(children, func(a, b *Entry) int {
		return cmp.Or(cmp.Compare(a.Index, b.Index), strings.Compare(a.ID, b.ID))
	})
	return children, nil
}

// LoadContainer implements Loader.
func (t *Tree) LoadContainer(_ context.Context, id string) (actionkit.Target, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.containers[id], nil
}
