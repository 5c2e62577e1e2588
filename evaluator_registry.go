package actionkit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// EvaluatorRegistry maps target types to the evaluators able to handle them.
// Evaluators are registered explicitly at startup; Link then installs every
// evaluator's successor chain. After linking the registry is read-only.
type EvaluatorRegistry struct {
	mu         sync.RWMutex
	evaluators []RoleEvaluator
	byName     map[string]RoleEvaluator
	linked     bool
	logger     *slog.Logger
}

// NewEvaluatorRegistry creates an empty registry.
func NewEvaluatorRegistry(logger *slog.Logger) *EvaluatorRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluatorRegistry{
		byName: make(map[string]RoleEvaluator),
		logger: logger,
	}
}

// Register adds evaluators. Names must be unique and registration must happen
// before Link.
func (r *EvaluatorRegistry) Register(evaluators ...RoleEvaluator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.linked {
		return NewError(ErrInvalidDefinition, "evaluator registry already linked")
	}
	for _, e := range evaluators {
		if e == nil {
			continue
		}
		if e.Name() == "" {
			return NewError(ErrInvalidDefinition, "evaluator name is required")
		}
		if _, exists := r.byName[e.Name()]; exists {
			return NewError(ErrInvalidDefinition, fmt.Sprintf("evaluator %q already registered", e.Name()))
		}
		r.byName[e.Name()] = e
		r.evaluators = append(r.evaluators, e)
	}
	return nil
}

// MustRegister is Register that panics on error.
func (r *EvaluatorRegistry) MustRegister(evaluators ...RoleEvaluator) *EvaluatorRegistry {
	if err := r.Register(evaluators...); err != nil {
		panic(err)
	}
	return r
}

// Link installs, on every evaluator, a chain of the lower priority evaluators
// sharing at least one supported type with it. Calling Link again is a no-op.
func (r *EvaluatorRegistry) Link() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.linked {
		return
	}
	ordered := NewChain(r.evaluators...).Evaluators()
	for i, e := range ordered {
		var successors []RoleEvaluator
		for _, s := range ordered[i+1:] {
			if s.Priority() < e.Priority() && sharesType(e, s) {
				successors = append(successors, s)
			}
		}
		chain := e.AddChainInOrder(successors...)
		r.logger.Debug("evaluator chain linked", "evaluator", e.Name(), "chain", chain.Names())
	}
	r.evaluators = ordered
	r.linked = true
}

func sharesType(a, b RoleEvaluator) bool {
	bt := b.SupportedTypes()
	if slices.Contains(bt, AnyType) {
		return true
	}
	for _, t := range a.SupportedTypes() {
		if t == AnyType || slices.Contains(bt, t) {
			return true
		}
	}
	return false
}

// RootEvaluator returns the highest priority evaluator able to handle target.
func (r *EvaluatorRegistry) RootEvaluator(target Target) (RoleEvaluator, bool) {
	if target == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range NewChain(r.evaluators...).evaluators {
		if e.CanHandle(target) {
			return e, true
		}
	}
	return nil, false
}

// Evaluator returns the evaluator registered under name.
func (r *EvaluatorRegistry) Evaluator(name string) (RoleEvaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// Chain returns every evaluator able to handle target, in walk order.
func (r *EvaluatorRegistry) Chain(target Target) Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handlers []RoleEvaluator
	for _, e := range r.evaluators {
		if e.CanHandle(target) {
			handlers = append(handlers, e)
		}
	}
	return NewChain(handlers...)
}

// Evaluate resolves the role through the root evaluator of target. It reports
// false when no evaluator handles the target or none resolves a role.
func (r *EvaluatorRegistry) Evaluate(ctx context.Context, target Target, authority Authority, settings *RuntimeSettings) (*Resolution, bool) {
	root, ok := r.RootEvaluator(target)
	if !ok {
		r.logger.Debug("no evaluator for target", "type", targetType(target), "target", targetID(target))
		return nil, false
	}
	return root.Evaluate(ctx, target, authority, settings)
}

// Len returns the number of registered evaluators.
func (r *EvaluatorRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.evaluators)
}

func targetType(t Target) string {
	if t == nil {
		return ""
	}
	return t.TargetType()
}

func targetID(t Target) string {
	if t == nil {
		return ""
	}
	return t.TargetID()
}
