package actionkit

import (
	"context"
	"log/slog"
)

// Service evaluates roles and allowed actions through an evaluator registry.
// It is the entry point used by the Checker and the HTTP middleware.
//
// The evaluation itself never fails: a target no evaluator handles, or one
// on which no role resolves, yields no role and no actions. Errors are only
// returned for unusable input.
//
// Example:
//
//	evaluators := actionkit.NewEvaluatorRegistry(logger)
//	evaluators.MustRegister(
//	    actionkit.NewAdminEvaluator(registry, wellKnown, logger),
//	    actionkit.NewInstanceEvaluator(actionkit.InstanceEvaluatorConfig{...}),
//	)
//	evaluators.Link()
//	service := actionkit.NewService(evaluators, actionkit.WithMetrics(metrics))
//	actions, err := service.AllowedActions(ctx, project, authority)
type Service struct {
	evaluators *EvaluatorRegistry
	filter     ActionFilter
	metrics    *Metrics
	logger     *slog.Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithActionFilter sets the filter applied, through an EvaluatorContext, after
// the evaluator's own state filtering.
func WithActionFilter(filter ActionFilter) ServiceOption {
	return func(s *Service) {
		s.filter = filter
	}
}

// WithMetrics records evaluations on m.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a service over a linked evaluator registry.
func NewService(evaluators *EvaluatorRegistry, opts ...ServiceOption) *Service {
	s := &Service{
		evaluators: evaluators,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluators returns the evaluator registry.
func (s *Service) Evaluators() *EvaluatorRegistry {
	return s.evaluators
}

// EvaluateRole resolves the authority's role on target. It returns nil
// without error when no role resolves.
func (s *Service) EvaluateRole(ctx context.Context, target Target, authority Authority, settings *RuntimeSettings) (*Resolution, error) {
	if target == nil || target.TargetID() == "" {
		return nil, NewError(ErrInvalidTarget, "no target provided")
	}
	if authority.IsZero() {
		s.metrics.ObserveMiss(MissNoAuthority)
		return nil, ErrNoAuthority
	}

	if _, ok := s.evaluators.RootEvaluator(target); !ok {
		s.metrics.ObserveMiss(MissNoEvaluator)
		s.logger.Debug("no evaluator for target", "type", target.TargetType(), "target", target.TargetID())
		return nil, nil
	}

	res, ok := s.evaluators.Evaluate(ctx, target, authority, settings)
	if !ok {
		s.metrics.ObserveMiss(MissNoRole)
		s.metrics.ObserveEvaluation("", ResultUnresolved)
		s.logger.Debug("no role resolved",
			"type", target.TargetType(), "target", target.TargetID(), "authority", authority.ID,
			"request_id", GetRequestID(ctx))
		return nil, nil
	}
	s.metrics.ObserveEvaluation(res.Evaluator.Name(), ResultResolved)
	return res, nil
}

// AllowedActions returns the actions the authority may perform on target: the
// resolved role's actions filtered by the resolving evaluator, then by the
// configured ActionFilter. The result is never nil.
func (s *Service) AllowedActions(ctx context.Context, target Target, authority Authority) (*ActionSet, error) {
	res, err := s.EvaluateRole(ctx, target, authority, nil)
	if err != nil {
		return &ActionSet{}, err
	}
	if res == nil {
		return &ActionSet{}, nil
	}

	actions := res.Evaluator.FilterActions(ctx, target, authority, res.Role)
	if s.filter != nil {
		actions = NewEvaluatorContext(target, authority, res.Role, s.filter).Filter(ctx, actions)
	}
	s.metrics.ObserveFiltered(actions.Len())
	return actions, nil
}

// Can reports whether the authority may perform action on target.
func (s *Service) Can(ctx context.Context, target Target, authority Authority, actionID string) bool {
	actions, err := s.AllowedActions(ctx, target, authority)
	if err != nil {
		return false
	}
	return actions.Contains(actionID)
}

// Authorize returns ErrUnauthorized when the authority may not perform action
// on target, and ErrNoEvaluator when no evaluator handles the target.
func (s *Service) Authorize(ctx context.Context, target Target, authority Authority, actionID string) error {
	if target != nil {
		if _, ok := s.evaluators.RootEvaluator(target); !ok {
			return NewError(ErrNoEvaluator, target.TargetType()).WithTarget(target.TargetID())
		}
	}
	actions, err := s.AllowedActions(ctx, target, authority)
	if err != nil {
		return err
	}
	if !actions.Contains(actionID) {
		return NewError(ErrUnauthorized, "action not allowed").
			WithTarget(target.TargetID()).
			WithAuthority(authority.ID).
			WithAction(actionID)
	}
	return nil
}

// GetChecker returns a Checker for the authority.
func (s *Service) GetChecker(authority Authority) *Checker {
	return NewChecker(authority, s)
}
