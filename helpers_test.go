package actionkit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Actions of the test registry.
const (
	actOpen    = "OPEN"
	actEdit    = "EDIT"
	actArchive = "ARCHIVE" // disabled
	actDelete  = "DELETE"  // local to collaborators
	actManage  = "MANAGE_PERMISSIONS"
)

var (
	testWellKnown    = DefaultWellKnownRoles()
	testConsumer     = DefaultRoleIdentifiers()[1]
	testContributor  = DefaultRoleIdentifiers()[2]
	testCollaborator = DefaultRoleIdentifiers()[3]
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// defineTestRoles defines a consumer < contributor < collaborator < manager ladder.
func defineTestRoles(r *Registry) {
	r.DefineAction(
		*NewAction(actOpen, "read"),
		*NewAction(actEdit, "write"),
		Action{ID: actArchive, Purpose: "write", Enabled: false},
		Action{ID: actDelete, Purpose: "manage", Enabled: true, Local: true},
		Action{ID: actManage, Purpose: "manage", Enabled: true, Local: true},
	)
	r.DefineRole(testConsumer).Actions(actOpen)
	r.DefineRole(testContributor).Includes(testConsumer.Identifier).Actions(actEdit, actArchive)
	r.DefineRole(testCollaborator).Includes(testContributor.Identifier).Actions(actDelete)
	r.DefineRole(testWellKnown.Manager).Includes(testCollaborator.Identifier).Actions(actManage)
	r.DefineRole(testWellKnown.Administrator).Includes(testWellKnown.Manager.Identifier)
}

func newTestRegistry(t testing.TB) *Registry {
	t.Helper()
	r := NewRegistry(testWellKnown, discardLogger())
	defineTestRoles(r)
	require.NoError(t, r.Build())
	return r
}

func mustRole(t testing.TB, r RoleLookup, identifier string) *Role {
	t.Helper()
	role, ok := r.LookupRole(identifier)
	require.True(t, ok, "role %s", identifier)
	return role
}

// memoryPermissionStore is an in-memory PermissionStore. Models are copied
// in and out so callers never share state with the store.
type memoryPermissionStore struct {
	mu     sync.Mutex
	models map[string]*EntityPermission
	saves  int
	err    error
}

func newMemoryPermissionStore() *memoryPermissionStore {
	return &memoryPermissionStore{models: make(map[string]*EntityPermission)}
}

func (s *memoryPermissionStore) LoadEntityPermission(_ context.Context, targetID string) (*EntityPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	ep, ok := s.models[targetID]
	if !ok {
		return nil, nil
	}
	return ep.Clone(), nil
}

func (s *memoryPermissionStore) SaveEntityPermission(_ context.Context, ep *EntityPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.models[ep.TargetID] = ep.Clone()
	s.saves++
	return nil
}

func (s *memoryPermissionStore) get(targetID string) *EntityPermission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.models[targetID]
}

var errStoreDown = errors.New("store down")

// permissionFixture builds permission hierarchies for tests.
type permissionFixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memoryPermissionStore
	registry *Registry
	service  *PermissionService
}

func newPermissionFixture(t *testing.T, opts ...PermissionOption) *permissionFixture {
	t.Helper()
	store := newMemoryPermissionStore()
	registry := newTestRegistry(t)
	opts = append([]PermissionOption{WithPermissionLogger(discardLogger())}, opts...)
	return &permissionFixture{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		registry: registry,
		service:  NewPermissionService(store, registry, testWellKnown, opts...),
	}
}

// model stores a permission model with the given special assignments,
// given as authority, role pairs.
func (f *permissionFixture) model(targetID string, configure func(ep *EntityPermission), pairs ...string) {
	f.t.Helper()
	require.Zero(f.t, len(pairs)%2, "assignments come in authority, role pairs")
	ep := NewEntityPermission(targetID)
	if configure != nil {
		configure(ep)
	}
	for i := 0; i < len(pairs); i += 2 {
		ep.Assignments = append(ep.Assignments, &AuthorityRoleAssignment{
			TargetID:    targetID,
			AuthorityID: pairs[i],
			Role:        pairs[i+1],
		})
	}
	f.store.models[targetID] = ep
}

// assertActive checks the role resolved for authority on target.
func (f *permissionFixture) assertActive(targetID string, authority Authority, want string) {
	f.t.Helper()
	rr, err := f.service.Assignment(f.ctx, targetID, authority)
	require.NoError(f.t, err)
	if want == "" {
		assert.Nil(f.t, rr, "authority %s on %s", authority.ID, targetID)
		return
	}
	require.NotNil(f.t, rr, "authority %s on %s", authority.ID, targetID)
	assert.Equal(f.t, want, rr.Role.Identifier, "authority %s on %s", authority.ID, targetID)
}

// funcEvaluator builds an evaluator over instances counting its resolve calls.
type funcEvaluator struct {
	*Evaluator[*Instance]
	calls int
}

func newFuncEvaluator(name string, priority int, types []string, role *Role) *funcEvaluator {
	fe := &funcEvaluator{}
	fe.Evaluator = NewEvaluator(EvaluatorConfig[*Instance]{
		Name:     name,
		Priority: priority,
		Types:    types,
		Logger:   discardLogger(),
		Resolve: func(context.Context, *Instance, Authority, *RuntimeSettings) (*Role, bool) {
			fe.calls++
			return role, role != nil
		},
	})
	return fe
}
