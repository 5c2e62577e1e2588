package actionkit

import (
	"context"
	"log/slog"
	"slices"
)

// Standard evaluator names.
const (
	AdminEvaluatorName     = "admin"
	InstanceEvaluatorName  = "instance"
	AdminEvaluatorPriority = 1000
)

// ActionOpen is the read action that survives a deleted instance.
const ActionOpen = "OPEN"

// NewAdminEvaluator returns an evaluator resolving the administrator role for
// authorities flagged Admin, on any target type. Other authorities fall
// through to the chain.
func NewAdminEvaluator(roles RoleLookup, wellKnown WellKnownRoles, logger *slog.Logger) *Evaluator[Target] {
	return NewEvaluator(EvaluatorConfig[Target]{
		Name:     AdminEvaluatorName,
		Priority: AdminEvaluatorPriority,
		Types:    []string{AnyType},
		Logger:   logger,
		Resolve: func(_ context.Context, _ Target, authority Authority, _ *RuntimeSettings) (*Role, bool) {
			if !authority.Admin {
				return nil, false
			}
			return roles.LookupRole(wellKnown.Administrator.Identifier)
		},
	})
}

// InstanceEvaluatorConfig configures NewInstanceEvaluator.
type InstanceEvaluatorConfig struct {
	Permissions *PermissionService
	Roles       RoleLookup
	States      StateService
	// Types lists the instance types handled. Empty means every type.
	Types []string
	// ReadActions are kept on deleted instances. Defaults to OPEN.
	ReadActions []string
	Priority    int
	Logger      *slog.Logger
}

// NewInstanceEvaluator returns the evaluator of generic instances. The role is
// the active role of the authority's assignment on the instance. Disabled
// actions are removed, and a deleted instance keeps only its read actions.
func NewInstanceEvaluator(cfg InstanceEvaluatorConfig) *Evaluator[*Instance] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	types := cfg.Types
	if len(types) == 0 {
		types = []string{AnyType}
	}
	readActions := cfg.ReadActions
	if len(readActions) == 0 {
		readActions = []string{ActionOpen}
	}

	resolve := func(ctx context.Context, instance *Instance, authority Authority, _ *RuntimeSettings) (*Role, bool) {
		if cfg.Permissions == nil || cfg.Roles == nil {
			return nil, false
		}
		rr, err := cfg.Permissions.Assignment(ctx, instance.ID, authority)
		if err != nil {
			logger.Warn("assignment lookup failed", "target", instance.ID, "authority", authority.ID, "error", err)
			return nil, false
		}
		if rr == nil || rr.Role.IsZero() {
			return nil, false
		}
		role, ok := cfg.Roles.LookupRole(rr.Role.Identifier)
		if !ok {
			logger.Warn("assigned role not found", "role", rr.Role.Identifier, "target", instance.ID)
		}
		return role, ok
	}

	filter := func(ctx context.Context, instance *Instance, authority Authority, role *Role) *ActionSet {
		actions := EnabledOnly.Filter(ctx, nil, role.AllowedActions())
		if cfg.States != nil && cfg.States.IsInStates(instance, StateDeleted) {
			actions.Retain(func(a *Action) bool {
				return slices.Contains(readActions, a.ID)
			})
		}
		return actions
	}

	return NewEvaluator(EvaluatorConfig[*Instance]{
		Name:     InstanceEvaluatorName,
		Priority: cfg.Priority,
		Types:    types,
		Resolve:  resolve,
		Filter:   filter,
		Logger:   logger,
	})
}
