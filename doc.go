// Package actionkit resolves which actions an authority may perform on a
// business entity.
//
// An authority (a user or a group) holds a role on a target. Roles are tiers
// ordered by priority, each carrying a set of actions. A chain of evaluators,
// one per target type, decides the role of the authority on the target and
// then narrows the role's actions by the target's structure and lifecycle
// state.
//
// # Core Concepts
//
// Action: a single unit of permission such as "OPEN" or "DELETE". An action
// marked Local is never inherited by a higher tier.
//
// Role: an immutable set of actions identified by a RoleIdentifier. Roles
// are built by a Registry, where each role may include lower tiers.
//
// Assignment: a role granted to an authority on a target, either directly
// (special), through the parent target (inherited) or through a library.
// The PermissionService resolves the effective assignment.
//
// Evaluator: resolves the role on targets of some types. Evaluators sharing
// a type are linked by priority, so a higher-priority evaluator that cannot
// resolve a role falls through to the next.
//
// # Basic Usage
//
//	// 1. Define actions and roles
//	registry := actionkit.NewRegistry(actionkit.DefaultWellKnownRoles(), logger)
//	registry.DefineAction(*actionkit.NewAction("OPEN", "read"), *actionkit.NewAction("EDIT", "write"))
//	registry.DefineRole(consumer).Actions("OPEN")
//	registry.DefineRole(contributor).Includes(consumer.Identifier).Actions("EDIT")
//	registry.MustBuild()
//
//	// 2. Register evaluators
//	permissions := actionkit.NewPermissionService(store, registry, wellKnown)
//	evaluators := actionkit.NewEvaluatorRegistry(logger)
//	evaluators.MustRegister(
//	    actionkit.NewAdminEvaluator(registry, wellKnown, logger),
//	    actionkit.NewInstanceEvaluator(actionkit.InstanceEvaluatorConfig{
//	        Permissions: permissions,
//	        Roles:       registry,
//	    }),
//	)
//	evaluators.Link()
//
//	// 3. Ask what an authority may do
//	service := actionkit.NewService(evaluators)
//	actions, err := service.AllowedActions(ctx, project, actionkit.NewAuthority("user-1"))
//
// # HTTP
//
// Middleware guards routes with RequireAction and RequireAnyAction, and puts
// a per-request Checker into the context:
//
//	mw := actionkit.NewMiddleware(service)
//	r.With(mw.RequireAction("EDIT", actionkit.TargetLoader("id", loadProject))).Put("/projects/{id}", update)
//
// # Persistence
//
// Store persists definitions and permission models through dbkit.
// CachedRegistry keeps the built registry in memory and reloads it when the
// shared definitions version in redis changes.
package actionkit
