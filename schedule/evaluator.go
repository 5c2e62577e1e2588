package schedule

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/fernandezvara/actionkit"
)

// EvaluatorName is the registered name of the schedule entry evaluator.
const EvaluatorName = "schedule"

// RoleResolver resolves a role on any target. *actionkit.EvaluatorRegistry
// implements it.
type RoleResolver interface {
	Evaluate(ctx context.Context, target actionkit.Target, authority actionkit.Authority, settings *actionkit.RuntimeSettings) (*actionkit.Resolution, bool)
}

// Config configures the schedule entry evaluator.
type Config struct {
	Priority int
	Loader   Loader
	// Resolver resolves the role on the entry's container.
	Resolver RoleResolver
	States   actionkit.StateService
	// InstanceActions, when UnionInstanceActions is set, contributes the
	// actions the authority has on the entry's bound instance.
	InstanceActions      actionkit.InstanceActionService
	UnionInstanceActions bool
	// Purpose is passed to InstanceActions.
	Purpose string

	FixedTypes        []string
	UnsplittableTypes []string
	TaskTypes         []string
	ContainerTypes    []string

	Logger *slog.Logger
}

// Evaluator is the schedule entry evaluator.
type Evaluator struct {
	*actionkit.Evaluator[*Entry]
	cfg    Config
	logger *slog.Logger
}

// NewEvaluator creates the schedule entry evaluator. Unset type families
// take their defaults.
//
// Example:
//
//	ev := schedule.NewEvaluator(schedule.Config{
//	    Loader:   tree,
//	    Resolver: evaluators,
//	    States:   actionkit.DefaultStateTable(),
//	})
//	evaluators.MustRegister(ev)
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.States == nil {
		cfg.States = actionkit.DefaultStateTable()
	}
	if cfg.FixedTypes == nil {
		cfg.FixedTypes = DefaultFixedTypes
	}
	if cfg.UnsplittableTypes == nil {
		cfg.UnsplittableTypes = DefaultUnsplittableTypes
	}
	if cfg.TaskTypes == nil {
		cfg.TaskTypes = DefaultTaskTypes
	}
	if cfg.ContainerTypes == nil {
		cfg.ContainerTypes = DefaultContainerTypes
	}

	e := &Evaluator{cfg: cfg, logger: cfg.Logger.With("evaluator", EvaluatorName)}
	e.Evaluator = actionkit.NewEvaluator(actionkit.EvaluatorConfig[*Entry]{
		Name:     EvaluatorName,
		Priority: cfg.Priority,
		Types:    []string{TargetType},
		Resolve:  e.resolve,
		Filter:   e.filter,
		Logger:   cfg.Logger,
	})
	return e
}

// resolve returns the authority's role on the entry's container.
func (e *Evaluator) resolve(ctx context.Context, entry *Entry, authority actionkit.Authority, settings *actionkit.RuntimeSettings) (*actionkit.Role, bool) {
	if e.cfg.Resolver == nil {
		return nil, false
	}
	container, err := entry.Container(ctx, e.cfg.Loader)
	if err != nil {
		e.logger.Warn("container lookup failed", "entry", entry.ID, "error", err)
		return nil, false
	}
	if container == nil {
		e.logger.Debug("entry has no container", "entry", entry.ID)
		return nil, false
	}
	res, ok := e.cfg.Resolver.Evaluate(ctx, container, authority, settings)
	if !ok || res == nil {
		return nil, false
	}
	return res.Role, true
}

// filter narrows the role's actions by the entry's structure and state.
func (e *Evaluator) filter(ctx context.Context, entry *Entry, authority actionkit.Authority, role *actionkit.Role) *actionkit.ActionSet {
	actions := role.AllowedActions()
	noParent := entry.NoParent()
	hasInstance := entry.HasActualInstance()

	if noParent {
		actions.Remove(rootRestricted...)
	}
	e.filterMoves(ctx, entry, noParent, actions)

	if !hasInstance {
		actions.Remove(ActionOpen)
		if entry.BoundType == "" || strings.TrimSpace(entry.Identifier) == "" || len(entry.Assignees) == 0 {
			actions.Remove(ActionApprove)
		}
	} else {
		actions.Remove(ActionDelete, ActionApprove)
	}

	e.filterLifecycle(ctx, entry, actions)

	if e.cfg.UnionInstanceActions && hasInstance && e.cfg.InstanceActions != nil {
		extra := e.cfg.InstanceActions.GetAllowedActions(ctx, authority.ID, entry.Instance(), e.cfg.Purpose)
		actions.AddAll(extra)
	}

	container, err := entry.Container(ctx, e.cfg.Loader)
	if err != nil {
		e.logger.Warn("container lookup failed", "entry", entry.ID, "error", err)
	} else if container != nil && e.cfg.States.IsInStates(container, actionkit.StateCanceled, actionkit.StateCompleted) {
		actions.Retain(func(a *actionkit.Action) bool { return a.ID == ActionOpen })
	}
	return actions
}

// filterMoves applies the indent and outdent rules.
func (e *Evaluator) filterMoves(ctx context.Context, entry *Entry, noParent bool, actions *actionkit.ActionSet) {
	if !actions.Contains(ActionIndent) && !actions.Contains(ActionOutdent) {
		return
	}
	if noParent || slices.Contains(e.cfg.FixedTypes, entry.BoundType) {
		actions.Remove(ActionIndent, ActionOutdent)
		return
	}

	parent, err := entry.Parent(ctx, e.cfg.Loader)
	if err != nil {
		e.logger.Warn("parent lookup failed", "entry", entry.ID, "error", err)
		return
	}
	if parent == nil {
		return
	}
	if parent.NoParent() || slices.Contains(e.cfg.UnsplittableTypes, parent.BoundType) {
		actions.Remove(ActionOutdent)
	}

	siblings, err := parent.Children(ctx, e.cfg.Loader)
	if err != nil {
		e.logger.Warn("children lookup failed", "entry", parent.ID, "error", err)
		return
	}
	if len(siblings) <= 1 {
		actions.Remove(ActionIndent)
		return
	}
	pos := slices.IndexFunc(siblings, func(s *Entry) bool { return s.ID == entry.ID })
	if pos <= 0 {
		actions.Remove(ActionIndent)
		return
	}

	// indenting moves the entry under its preceding sibling
	previous := siblings[pos-1]
	startedUnderNotStarted := e.cfg.States.IsStateAs(entry.BoundType, entry.State, actionkit.StateStarted) &&
		e.cfg.States.IsStateAs(previous.BoundType, previous.State, actionkit.StateNotStarted)
	taskUnderContainer := slices.Contains(e.cfg.TaskTypes, entry.BoundType) &&
		slices.Contains(e.cfg.ContainerTypes, previous.BoundType)
	if startedUnderNotStarted || taskUnderContainer {
		actions.Remove(ActionIndent)
	}
}

// filterLifecycle applies the state dependent rules.
func (e *Evaluator) filterLifecycle(ctx context.Context, entry *Entry, actions *actionkit.ActionSet) {
	states := e.cfg.States

	if actions.Contains(ActionDelete) {
		children, err := entry.Children(ctx, e.cfg.Loader)
		if err != nil {
			e.logger.Warn("children lookup failed", "entry", entry.ID, "error", err)
		}
		if len(children) > 0 || !states.IsStateAs(entry.BoundType, entry.State, actionkit.StateSubmitted) {
			actions.Remove(ActionDelete)
		}
	}
	if !states.IsStateAs(entry.BoundType, entry.State, actionkit.StateApproved, actionkit.StateInProgress, actionkit.StateOnHold) {
		actions.Remove(ActionStop)
	}
	if states.IsStateAs(entry.BoundType, entry.State, actionkit.StateCanceled, actionkit.StateCompleted) {
		actions.Remove(ActionAddChild)
	}
}
