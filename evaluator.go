package actionkit

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// AnyType is a supported type matching every target.
const AnyType = "*"

// Resolution is a role resolved for a target together with the evaluator that resolved it.
type Resolution struct {
	Role      *Role
	Evaluator RoleEvaluator
}

// RoleEvaluator computes an authority's role on a target and filters the
// actions of that role by the target's current state.
type RoleEvaluator interface {
	// Name identifies the evaluator; names are unique within a registry.
	Name() string
	// Priority orders evaluators in a chain; higher values are tried first.
	Priority() int
	// SupportedTypes returns the target types the evaluator understands.
	SupportedTypes() []string
	// CanHandle reports whether the target can be evaluated.
	CanHandle(target Target) bool
	// AddChainInOrder installs the successor chain tried when this evaluator
	// cannot resolve a role. Call once, at startup.
	AddChainInOrder(evaluators ...RoleEvaluator) Chain
	// Evaluate resolves the role or reports false when neither this
	// evaluator nor its chain can.
	Evaluate(ctx context.Context, target Target, authority Authority, settings *RuntimeSettings) (*Resolution, bool)
	// FilterActions returns a fresh set: the role's actions minus those that
	// do not apply to the target's state. The role is never modified.
	FilterActions(ctx context.Context, target Target, authority Authority, role *Role) *ActionSet
}

// Resolver is implemented by evaluators that can resolve a role on their own,
// without walking their successor chain. A chain walk prefers Resolve so no
// evaluator is visited twice.
type Resolver interface {
	Resolve(ctx context.Context, target Target, authority Authority, settings *RuntimeSettings) (*Resolution, bool)
}

// Chain is an immutable, priority ordered list of evaluators.
type Chain struct {
	evaluators []RoleEvaluator
}

// NewChain orders the evaluators by descending priority. Equal priorities keep
// their given order. Nil evaluators are dropped.
func NewChain(evaluators ...RoleEvaluator) Chain {
	list := make([]RoleEvaluator, 0, len(evaluators))
	for _, e := range evaluators {
		if e != nil {
			list = append(list, e)
		}
	}
	slices.SortStableFunc(list, func(a, b RoleEvaluator) int {
		return cmp.Compare(b.Priority(), a.Priority())
	})
	return Chain{evaluators: list}
}

// Len returns the number of evaluators.
func (c Chain) Len() int {
	return len(c.evaluators)
}

// Evaluators returns the evaluators in walk order.
func (c Chain) Evaluators() []RoleEvaluator {
	return slices.Clone(c.evaluators)
}

// Names returns the evaluator names in walk order.
func (c Chain) Names() []string {
	names := make([]string, len(c.evaluators))
	for i, e := range c.evaluators {
		names[i] = e.Name()
	}
	return names
}

// Evaluate walks the chain and returns the first resolution whose role is
// relevant. Evaluators after the first match are not invoked.
func (c Chain) Evaluate(ctx context.Context, target Target, authority Authority, settings *RuntimeSettings) (*Resolution, bool) {
	for i := range c.evaluators {
		e := c.evaluators[i]
		if !e.CanHandle(target) {
			continue
		}
		var (
			res *Resolution
			ok  bool
		)
		if r, isResolver := e.(Resolver); isResolver {
			res, ok = r.Resolve(ctx, target, authority, settings)
		} else {
			res, ok = e.Evaluate(ctx, target, authority, settings)
		}
		if !ok || res == nil || res.Role == nil {
			continue
		}
		if settings.IsIrrelevant(res.Role.ID()) {
			continue
		}
		return res, true
	}
	return nil, false
}

// EvaluatorConfig describes an evaluator for targets of type T.
type EvaluatorConfig[T Target] struct {
	Name     string
	Priority int
	// Types lists the supported target types; AnyType matches every target.
	Types []string
	// Resolve computes the role. Returning false delegates to the chain.
	Resolve func(ctx context.Context, target T, authority Authority, settings *RuntimeSettings) (*Role, bool)
	// Filter narrows the role's actions for the target. When nil the chain's
	// first handler filters, or the role's full action set is returned.
	Filter func(ctx context.Context, target T, authority Authority, role *Role) *ActionSet
	Logger *slog.Logger
}

// Evaluator is a RoleEvaluator for one target family T.
type Evaluator[T Target] struct {
	cfg    EvaluatorConfig[T]
	chain  Chain
	logger *slog.Logger
}

// NewEvaluator creates an evaluator for targets of type T.
//
// Example:
//
//	ev := actionkit.NewEvaluator(actionkit.EvaluatorConfig[*actionkit.Instance]{
//	    Name:     "project",
//	    Priority: 10,
//	    Types:    []string{"project"},
//	    Resolve:  resolveProjectRole,
//	})
func NewEvaluator[T Target](cfg EvaluatorConfig[T]) *Evaluator[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator[T]{cfg: cfg, logger: logger.With("evaluator", cfg.Name)}
}

// Name implements RoleEvaluator.
func (e *Evaluator[T]) Name() string { return e.cfg.Name }

// Priority implements RoleEvaluator.
func (e *Evaluator[T]) Priority() int { return e.cfg.Priority }

// SupportedTypes implements RoleEvaluator.
func (e *Evaluator[T]) SupportedTypes() []string { return slices.Clone(e.cfg.Types) }

// CanHandle implements RoleEvaluator. The target must be a T and of a supported type.
func (e *Evaluator[T]) CanHandle(target Target) bool {
	if target == nil {
		return false
	}
	if _, ok := target.(T); !ok {
		return false
	}
	return slices.Contains(e.cfg.Types, AnyType) || slices.Contains(e.cfg.Types, target.TargetType())
}

// AddChainInOrder implements RoleEvaluator. An evaluator named like this one is
// left out so the chain cannot recurse into itself.
func (e *Evaluator[T]) AddChainInOrder(evaluators ...RoleEvaluator) Chain {
	successors := make([]RoleEvaluator, 0, len(evaluators))
	for _, s := range evaluators {
		if s != nil && s.Name() != e.cfg.Name {
			successors = append(successors, s)
		}
	}
	e.chain = NewChain(successors...)
	return e.chain
}

// Chain returns the installed successor chain.
func (e *Evaluator[T]) Chain() Chain {
	return e.chain
}

// Evaluate implements RoleEvaluator.
func (e *Evaluator[T]) Evaluate(ctx context.Context, target Target, authority Authority, settings *RuntimeSettings) (*Resolution, bool) {
	if res, ok := e.Resolve(ctx, target, authority, settings); ok {
		return res, true
	}
	if e.chain.Len() == 0 {
		return nil, false
	}
	return e.chain.Evaluate(ctx, target, authority, settings)
}

// Resolve implements Resolver.
func (e *Evaluator[T]) Resolve(ctx context.Context, target Target, authority Authority, settings *RuntimeSettings) (*Resolution, bool) {
	typed, ok := target.(T)
	if !ok || !e.CanHandle(target) || e.cfg.Resolve == nil {
		return nil, false
	}
	role, resolved := e.resolve(ctx, typed, authority, settings)
	if !resolved || role == nil {
		return nil, false
	}
	if settings.IsIrrelevant(role.ID()) {
		e.logger.Debug("resolved role is irrelevant for this evaluation, delegating",
			"role", role.Identifier(), "target", target.TargetID())
		return nil, false
	}
	return &Resolution{Role: role, Evaluator: e}, true
}

func (e *Evaluator[T]) resolve(ctx context.Context, target T, authority Authority, settings *RuntimeSettings) (role *Role, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("role resolution failed", "target", target.TargetID(), "panic", fmt.Sprint(r))
			role, ok = nil, false
		}
	}()
	return e.cfg.Resolve(ctx, target, authority, settings)
}

// FilterActions implements RoleEvaluator. An evaluator without a filter
// defers to the first evaluator of its chain able to handle the target. When
// the filter fails the role's unfiltered actions are returned.
func (e *Evaluator[T]) FilterActions(ctx context.Context, target Target, authority Authority, role *Role) (actions *ActionSet) {
	if role == nil {
		return &ActionSet{}
	}
	typed, ok := target.(T)
	if !ok {
		return role.AllowedActions()
	}
	if e.cfg.Filter == nil {
		for _, next := range e.chain.evaluators {
			if next.CanHandle(target) {
				return next.FilterActions(ctx, target, authority, role)
			}
		}
		return role.AllowedActions()
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("action filter failed, returning unfiltered actions",
				"target", target.TargetID(), "role", role.Identifier(), "panic", fmt.Sprint(r))
			actions = role.AllowedActions()
		}
	}()
	actions = e.cfg.Filter(ctx, typed, authority, role)
	if actions == nil {
		actions = &ActionSet{}
	}
	return actions
}
