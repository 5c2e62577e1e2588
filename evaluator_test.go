package actionkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type otherTarget struct{ id string }

func (o otherTarget) TargetID() string   { return o.id }
func (o otherTarget) TargetType() string { return "project" }

func TestEvaluatorCanHandle(t *testing.T) {
	ev := newFuncEvaluator("projects", 1, []string{"project"}, nil)
	assert.True(t, ev.CanHandle(NewInstance("project", "p1")))
	assert.False(t, ev.CanHandle(NewInstance("document", "d1")))
	assert.False(t, ev.CanHandle(otherTarget{id: "p1"}), "target must be of the evaluator's family")
	assert.False(t, ev.CanHandle(nil))

	wildcard := newFuncEvaluator("any", 1, []string{AnyType}, nil)
	assert.True(t, wildcard.CanHandle(NewInstance("document", "d1")))
	assert.Equal(t, []string{AnyType}, wildcard.SupportedTypes())
}

func TestChainOrder(t *testing.T) {
	low := newFuncEvaluator("low", 1, []string{AnyType}, nil)
	high := newFuncEvaluator("high", 10, []string{AnyType}, nil)
	mid := newFuncEvaluator("mid", 5, []string{AnyType}, nil)
	midToo := newFuncEvaluator("mid-too", 5, []string{AnyType}, nil)

	chain := NewChain(low, nil, mid, high, midToo)
	assert.Equal(t, []string{"high", "mid", "mid-too", "low"}, chain.Names())
	assert.Equal(t, 4, chain.Len())
	assert.Len(t, chain.Evaluators(), 4)
}

func TestChainShortCircuit(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	target := NewInstance("project", "p1")

	first := newFuncEvaluator("first", 10, []string{"project"}, mustRole(t, r, RoleManager))
	second := newFuncEvaluator("second", 5, []string{"project"}, mustRole(t, r, RoleConsumer))

	res, ok := NewChain(second, first).Evaluate(ctx, target, Authority{ID: "u1"}, nil)
	require.True(t, ok)
	assert.Equal(t, RoleManager, res.Role.Identifier())
	assert.Equal(t, "first", res.Evaluator.Name())
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls, "evaluators after a match are not invoked")
}

func TestChainSkipsIrrelevantAndUnresolved(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	target := NewInstance("project", "p1")

	none := newFuncEvaluator("none", 20, []string{"project"}, nil)
	manager := newFuncEvaluator("manager", 10, []string{"project"}, mustRole(t, r, RoleManager))
	consumer := newFuncEvaluator("consumer", 5, []string{"project"}, mustRole(t, r, RoleConsumer))
	chain := NewChain(none, manager, consumer)

	res, ok := chain.Evaluate(ctx, target, Authority{ID: "u1"}, NewRuntimeSettings(testWellKnown.Manager))
	require.True(t, ok)
	assert.Equal(t, RoleConsumer, res.Role.Identifier())
	assert.Equal(t, 1, none.calls)

	_, ok = chain.Evaluate(ctx, target, Authority{ID: "u1"},
		NewRuntimeSettings(testWellKnown.Manager).Without(testConsumer))
	assert.False(t, ok)

	_, ok = chain.Evaluate(ctx, NewInstance("document", "d1"), Authority{ID: "u1"}, nil)
	assert.False(t, ok)
}

func TestEvaluatorDelegatesToChain(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	target := NewInstance("project", "p1")

	root := newFuncEvaluator("root", 10, []string{"project"}, nil)
	fallback := newFuncEvaluator("fallback", 1, []string{"project"}, mustRole(t, r, RoleContributor))

	chain := root.AddChainInOrder(root, fallback)
	assert.Equal(t, []string{"fallback"}, chain.Names(), "an evaluator never chains to itself")
	assert.Equal(t, []string{"fallback"}, root.Chain().Names())

	res, ok := root.Evaluate(ctx, target, Authority{ID: "u1"}, nil)
	require.True(t, ok)
	assert.Equal(t, "fallback", res.Evaluator.Name())

	_, ok = root.Resolve(ctx, target, Authority{ID: "u1"}, nil)
	assert.False(t, ok, "resolve never walks the chain")
}

func TestEvaluatorRecoversFromPanics(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	target := NewInstance("project", "p1")
	role := mustRole(t, r, RoleContributor)

	ev := NewEvaluator(EvaluatorConfig[*Instance]{
		Name:   "broken",
		Types:  []string{"project"},
		Logger: discardLogger(),
		Resolve: func(context.Context, *Instance, Authority, *RuntimeSettings) (*Role, bool) {
			panic("resolve failed")
		},
		Filter: func(context.Context, *Instance, Authority, *Role) *ActionSet {
			panic("filter failed")
		},
	})

	_, ok := ev.Evaluate(ctx, target, Authority{ID: "u1"}, nil)
	assert.False(t, ok)

	actions := ev.FilterActions(ctx, target, Authority{ID: "u1"}, role)
	assert.True(t, actions.Equal(role.AllowedActions()), "a failing filter returns the role's actions")
}

func TestEvaluatorFilterActions(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	target := NewInstance("project", "p1")
	role := mustRole(t, r, RoleContributor)

	filtering := NewEvaluator(EvaluatorConfig[*Instance]{
		Name:  "filtering",
		Types: []string{"project"},
		Filter: func(_ context.Context, _ *Instance, _ Authority, role *Role) *ActionSet {
			actions := role.AllowedActions()
			actions.Remove(actEdit)
			return actions
		},
	})

	t.Run("filter result is independent of the role", func(t *testing.T) {
		actions := filtering.FilterActions(ctx, target, Authority{ID: "u1"}, role)
		assert.False(t, actions.Contains(actEdit))
		assert.True(t, role.Has(actEdit))
	})

	t.Run("nil role yields no actions", func(t *testing.T) {
		assert.True(t, filtering.FilterActions(ctx, target, Authority{ID: "u1"}, nil).IsEmpty())
	})

	t.Run("other target families pass through", func(t *testing.T) {
		actions := filtering.FilterActions(ctx, otherTarget{id: "p1"}, Authority{ID: "u1"}, role)
		assert.True(t, actions.Contains(actEdit))
	})

	t.Run("nil filter result is empty", func(t *testing.T) {
		ev := NewEvaluator(EvaluatorConfig[*Instance]{
			Name:   "nil",
			Types:  []string{"project"},
			Filter: func(context.Context, *Instance, Authority, *Role) *ActionSet { return nil },
		})
		assert.NotNil(t, ev.FilterActions(ctx, target, Authority{ID: "u1"}, role))
	})

	t.Run("evaluator without filter delegates to its chain", func(t *testing.T) {
		plain := NewEvaluator(EvaluatorConfig[Target]{
			Name:     "plain",
			Priority: 100,
			Types:    []string{AnyType},
		})
		assert.True(t, plain.FilterActions(ctx, target, Authority{ID: "u1"}, role).Contains(actEdit))

		plain.AddChainInOrder(filtering)
		assert.False(t, plain.FilterActions(ctx, target, Authority{ID: "u1"}, role).Contains(actEdit))
		assert.True(t, plain.FilterActions(ctx, NewInstance("document", "d1"), Authority{ID: "u1"}, role).Contains(actEdit))
	})
}
