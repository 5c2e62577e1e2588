package actionkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatorContextFilter(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	role := mustRole(t, r, RoleContributor)
	target := NewInstance("project", "p1")

	t.Run("nil filter keeps everything", func(t *testing.T) {
		ec := NewEvaluatorContext(target, Authority{ID: "u1"}, role, nil)
		assert.Equal(t, role.Len(), ec.Filter(ctx, role.AllowedActions()).Len())
		assert.NotNil(t, ec.Filter(ctx, nil))

		var missing *EvaluatorContext
		assert.Equal(t, role.Len(), missing.Filter(ctx, role.AllowedActions()).Len())
	})

	t.Run("filter receives the bundled evaluation", func(t *testing.T) {
		var seen *EvaluatorContext
		ec := NewEvaluatorContext(target, Authority{ID: "u1"}, role, ActionFilterFunc(
			func(_ context.Context, ec *EvaluatorContext, actions *ActionSet) *ActionSet {
				seen = ec
				return nil
			}))
		out := ec.Filter(ctx, role.AllowedActions())
		assert.True(t, out.IsEmpty())
		assert.Same(t, target, seen.Target)
		assert.Equal(t, "u1", seen.Authority.ID)
		assert.Same(t, role, seen.Role)
	})

	t.Run("enabled only", func(t *testing.T) {
		ec := NewEvaluatorContext(target, Authority{ID: "u1"}, role, EnabledOnly)
		out := ec.Filter(ctx, role.AllowedActions())
		assert.False(t, out.Contains(actArchive))
		assert.True(t, out.Contains(actEdit))
	})
}

func TestTagFilter(t *testing.T) {
	ctx := context.Background()
	owned := &Action{ID: "RENAME", Enabled: true, Filters: []string{"owner"}}
	tagged := &Action{ID: "SHARE", Enabled: true, Filters: []string{"untracked", "owner", "broken"}}
	plain := &Action{ID: "OPEN", Enabled: true}

	filter := NewTagFilter(discardLogger()).
		Register("owner", func(_ context.Context, ec *EvaluatorContext, _ *Action) bool {
			return ec.Target.(*Instance).StringProperty("owner") == ec.Authority.ID
		}).
		Register("broken", func(context.Context, *EvaluatorContext, *Action) bool {
			panic("predicate failed")
		})
	assert.Equal(t, []string{"broken", "owner"}, filter.Tags())

	project := NewInstance("project", "p1")
	project.Properties["owner"] = "alice"

	t.Run("predicate keeps actions for the owner", func(t *testing.T) {
		ec := NewEvaluatorContext(project, Authority{ID: "alice"}, nil, filter)
		out := ec.Filter(ctx, NewActionSetOf(owned, tagged, plain))
		assert.Equal(t, []string{"RENAME", "SHARE", "OPEN"}, out.IDs())
	})

	t.Run("predicate removes actions for others", func(t *testing.T) {
		ec := NewEvaluatorContext(project, Authority{ID: "bob"}, nil, filter)
		out := ec.Filter(ctx, NewActionSetOf(owned, tagged, plain))
		assert.Equal(t, []string{"OPEN"}, out.IDs())
	})
}

func TestChainFilters(t *testing.T) {
	ctx := context.Background()
	drop := func(id string) ActionFilter {
		return ActionFilterFunc(func(_ context.Context, _ *EvaluatorContext, s *ActionSet) *ActionSet {
			s.Remove(id)
			return s
		})
	}
	set := NewActionSetOf(NewAction("A", ""), NewAction("B", ""), NewAction("C", ""))

	out := ChainFilters(drop("A"), nil, drop("C")).Filter(ctx, nil, set.Clone())
	assert.Equal(t, []string{"B"}, out.IDs())

	empty := ActionFilterFunc(func(context.Context, *EvaluatorContext, *ActionSet) *ActionSet { return nil })
	out = ChainFilters(empty, drop("A")).Filter(ctx, nil, set.Clone())
	assert.True(t, out.IsEmpty())
}

func TestRuntimeSettings(t *testing.T) {
	var none *RuntimeSettings
	assert.False(t, none.IsIrrelevant(testConsumer))

	s := NewRuntimeSettings(testConsumer)
	assert.True(t, s.IsIrrelevant(testConsumer))
	assert.False(t, s.IsIrrelevant(testContributor))

	wider := s.Without(testContributor)
	assert.True(t, wider.IsIrrelevant(testContributor))
	assert.False(t, s.IsIrrelevant(testContributor), "Without copies")
	assert.True(t, none.Without(testConsumer).IsIrrelevant(testConsumer))
}
