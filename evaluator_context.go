package actionkit

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// ActionFilter narrows a set of actions for a specific evaluation. Filters
// receive their own copy of the actions and may modify and return it.
type ActionFilter interface {
	Filter(ctx context.Context, ec *EvaluatorContext, actions *ActionSet) *ActionSet
}

// ActionFilterFunc adapts a function to ActionFilter.
type ActionFilterFunc func(ctx context.Context, ec *EvaluatorContext, actions *ActionSet) *ActionSet

// Filter implements ActionFilter.
func (f ActionFilterFunc) Filter(ctx context.Context, ec *EvaluatorContext, actions *ActionSet) *ActionSet {
	return f(ctx, ec, actions)
}

// EvaluatorContext bundles the target, the authority and the role computed
// for them, so a role can apply instance specific filters without knowing
// about any particular target.
type EvaluatorContext struct {
	Target    Target
	Authority Authority
	Role      *Role
	filter    ActionFilter
}

// NewEvaluatorContext creates a context delegating filtering to filter. A nil
// filter keeps every action.
func NewEvaluatorContext(target Target, authority Authority, role *Role, filter ActionFilter) *EvaluatorContext {
	return &EvaluatorContext{Target: target, Authority: authority, Role: role, filter: filter}
}

// Filter delegates to the configured filter. It never returns nil.
func (ec *EvaluatorContext) Filter(ctx context.Context, actions *ActionSet) *ActionSet {
	if actions == nil {
		actions = &ActionSet{}
	}
	if ec == nil || ec.filter == nil {
		return actions
	}
	out := ec.filter.Filter(ctx, ec, actions)
	if out == nil {
		return &ActionSet{}
	}
	return out
}

// TagPredicate decides whether an action carrying a filter tag applies to the
// evaluation.
type TagPredicate func(ctx context.Context, ec *EvaluatorContext, action *Action) bool

// TagFilter is an ActionFilter dispatching on Action.Filters. An action is
// removed when any of its tags has a predicate that returns false. Tags
// without a registered predicate are ignored.
type TagFilter struct {
	predicates map[string]TagPredicate
	logger     *slog.Logger
}

// NewTagFilter creates an empty tag filter.
func NewTagFilter(logger *slog.Logger) *TagFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TagFilter{predicates: make(map[string]TagPredicate), logger: logger}
}

// Register sets the predicate for a tag and returns the filter for chaining.
func (f *TagFilter) Register(tag string, predicate TagPredicate) *TagFilter {
	f.predicates[tag] = predicate
	return f
}

// Tags returns the registered tags, sorted.
func (f *TagFilter) Tags() []string {
	return slices.Sorted(maps.Keys(f.predicates))
}

// Filter implements ActionFilter.
func (f *TagFilter) Filter(ctx context.Context, ec *EvaluatorContext, actions *ActionSet) *ActionSet {
	actions.Retain(func(a *Action) bool {
		for _, tag := range a.Filters {
			predicate, ok := f.predicates[tag]
			if !ok {
				continue
			}
			if !f.apply(ctx, ec, a, tag, predicate) {
				return false
			}
		}
		return true
	})
	return actions
}

// apply runs one predicate; a failing predicate keeps the action.
func (f *TagFilter) apply(ctx context.Context, ec *EvaluatorContext, a *Action, tag string, predicate TagPredicate) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("action filter predicate failed, keeping action",
				"tag", tag, "action", a.ID, "panic", fmt.Sprint(r))
			keep = true
		}
	}()
	return predicate(ctx, ec, a)
}

// ChainFilters applies filters in order.
func ChainFilters(filters ...ActionFilter) ActionFilter {
	return ActionFilterFunc(func(ctx context.Context, ec *EvaluatorContext, actions *ActionSet) *ActionSet {
		for _, f := range filters {
			if f == nil {
				continue
			}
			actions = f.Filter(ctx, ec, actions)
			if actions == nil {
				return &ActionSet{}
			}
		}
		return actions
	})
}

// EnabledOnly removes disabled actions.
var EnabledOnly ActionFilter = ActionFilterFunc(func(_ context.Context, _ *EvaluatorContext, actions *ActionSet) *ActionSet {
	actions.Retain(func(a *Action) bool { return a.Enabled })
	return actions
})
