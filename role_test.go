package actionkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	viewAction   = &Action{ID: "view", Enabled: true}
	deleteAction = &Action{ID: "delete", Enabled: true, Local: true}
)

func TestRoleBuilderSeal(t *testing.T) {
	t.Run("add after seal is a no-op", func(t *testing.T) {
		b := NewRoleBuilder(testContributor, viewAction)
		role := b.Seal()
		require.True(t, b.Sealed())

		b.AddActions(deleteAction)
		assert.Equal(t, 1, b.Len())
		assert.Equal(t, 1, role.Len())
		assert.False(t, role.Has("delete"))
	})

	t.Run("seal is idempotent", func(t *testing.T) {
		b := NewRoleBuilder(testContributor, viewAction)
		first := b.Seal()
		second := b.Seal()
		assert.Same(t, first, second)
		assert.Equal(t, []string{"view"}, second.AllowedActions().IDs())
	})

	t.Run("empty and duplicate adds", func(t *testing.T) {
		b := NewRoleBuilder(testContributor)
		b.AddActions()
		b.AddActions(viewAction, viewAction)
		b.AddActionSet(nil)
		assert.Equal(t, 1, b.Len())
	})
}

func TestRoleAllowedActions(t *testing.T) {
	role := NewRoleBuilder(testContributor, viewAction, deleteAction).Seal()

	actions := role.AllowedActions()
	actions.Remove("view")
	assert.True(t, role.Has("view"), "role actions must not change through a returned set")

	var missing *Role
	assert.NotNil(t, missing.AllowedActions())
	assert.True(t, NewRoleBuilder(testConsumer).Seal().AllowedActions().IsEmpty())

	t.Run("context filter", func(t *testing.T) {
		ec := NewEvaluatorContext(nil, Authority{ID: "u"}, role, ActionFilterFunc(
			func(_ context.Context, _ *EvaluatorContext, s *ActionSet) *ActionSet {
				s.Remove("delete")
				return s
			}))
		assert.Equal(t, []string{"view"}, role.AllowedActionsFor(context.Background(), ec).IDs())
		assert.Equal(t, 2, role.AllowedActionsFor(context.Background(), nil).Len())
		assert.Equal(t, 2, role.Len())
	})
}

func TestRoleEquality(t *testing.T) {
	a := NewRoleBuilder(testContributor, viewAction).Seal()
	b := NewRoleBuilder(testContributor, deleteAction).Seal()
	c := NewRoleBuilder(testConsumer, viewAction).Seal()

	assert.True(t, a.Equal(b), "identity is the role tier")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
	assert.Equal(t, testContributor.Identifier, a.String())
}

func TestMergeRoles(t *testing.T) {
	t.Run("same tier copies local actions", func(t *testing.T) {
		source := NewRoleBuilder(testContributor, deleteAction, viewAction)
		destination := NewRoleBuilder(testContributor)

		dropped := MergeRoles(source, destination)
		assert.Empty(t, dropped)
		role := destination.Seal()
		assert.True(t, role.Has("delete"))
		assert.True(t, role.Has("view"))
	})

	t.Run("different tier copies only non-local actions", func(t *testing.T) {
		source := NewRoleBuilder(testConsumer, deleteAction, viewAction)
		destination := NewRoleBuilder(testContributor)

		dropped := MergeRoles(source, destination)
		assert.Equal(t, []string{"delete"}, dropped)
		role := destination.Seal()
		assert.False(t, role.Has("delete"))
		assert.True(t, role.Has("view"))
	})

	t.Run("sealed role as source", func(t *testing.T) {
		source := NewRoleBuilder(testConsumer, deleteAction, viewAction).Seal()
		destination := NewRoleBuilder(testConsumer)
		MergeRoles(source, destination)
		assert.Equal(t, 2, destination.Len())
	})

	t.Run("nil arguments", func(t *testing.T) {
		assert.Nil(t, MergeRoles(nil, NewRoleBuilder(testConsumer)))
		assert.Nil(t, MergeRoles(NewRoleBuilder(testConsumer), nil))
	})
}

func TestRoleSet(t *testing.T) {
	t.Run("install stores the first builder as is", func(t *testing.T) {
		set := NewRoleSet(discardLogger())
		b := NewRoleBuilder(testConsumer, viewAction)
		set.Install(testConsumer, b)

		got, ok := set.Get(testConsumer.Identifier)
		require.True(t, ok)
		assert.Same(t, b, got)
	})

	t.Run("install merges into an existing entry", func(t *testing.T) {
		set := NewRoleSet(discardLogger())
		set.Install(testContributor, NewRoleBuilder(testContributor, viewAction))
		set.Install(testContributor, NewRoleBuilder(testConsumer, deleteAction))

		got, _ := set.Get(testContributor.Identifier)
		assert.Equal(t, 1, got.Len(), "local action of another tier is dropped")
	})

	t.Run("chain creates the destination", func(t *testing.T) {
		set := NewRoleSet(discardLogger())
		set.Install(testConsumer, NewRoleBuilder(testConsumer, viewAction, deleteAction))
		set.Chain(testConsumer, testContributor)

		roles := set.Seal()
		require.Contains(t, roles, testContributor.Identifier)
		assert.Equal(t, []string{"view"}, roles[testContributor.Identifier].AllowedActions().IDs())
		assert.Equal(t, []string{testConsumer.Identifier, testContributor.Identifier}, set.Identifiers())
	})

	t.Run("chain from a missing role is a no-op", func(t *testing.T) {
		set := NewRoleSet(nil)
		set.Chain(testConsumer, testContributor)
		_, ok := set.Get(testContributor.Identifier)
		assert.False(t, ok)
	})
}
