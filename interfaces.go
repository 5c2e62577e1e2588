package actionkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// RoleLookup resolves sealed roles by identifier.
type RoleLookup interface {
	LookupRole(identifier string) (*Role, bool)
}

// RoleDirectory resolves roles and their tiers. *Registry and *CachedRegistry
// implement it.
type RoleDirectory interface {
	RoleLookup
	ActionLookup
	RoleIdentifier(identifier string) (RoleIdentifier, bool)
	ActiveRoles() []RoleIdentifier
}

// StateService answers lifecycle questions about bound types and instances.
type StateService interface {
	// GetState returns the label of stateType for the bound type.
	GetState(stateType, boundType string) string
	// IsStateAs reports whether current is the label of any of stateTypes.
	IsStateAs(boundType, current string, stateTypes ...string) bool
	// IsInStates reports whether the instance is in any of stateTypes.
	IsInStates(instance Target, stateTypes ...string) bool
}

// InstanceActionService computes the actions an authority has on a concrete
// business instance, independent of any evaluator chain.
type InstanceActionService interface {
	GetAllowedActions(ctx context.Context, authorityID string, instance Target, purpose string) *ActionSet
}

// PermissionStore persists permission models and special assignments.
type PermissionStore interface {
	// LoadEntityPermission returns the permission model of target with its
	// special assignments, or nil when none is stored.
	LoadEntityPermission(ctx context.Context, targetID string) (*EntityPermission, error)
	// SaveEntityPermission stores the model and replaces its assignments.
	SaveEntityPermission(ctx context.Context, ep *EntityPermission) error
}

// DefinitionSource loads action and role definitions.
type DefinitionSource interface {
	LoadDefinitions(ctx context.Context) (Definitions, error)
}

// TransactionManager defines the store transaction interface.
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context, tx *Store) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error
}

// MigrationManager defines the migration management interface.
type MigrationManager interface {
	Migrations() []dbkit.Migration
	RunMigrations(ctx context.Context) ([]string, error)
}

// HealthMonitor defines the health monitoring interface.
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// PoolManager defines the connection pool management interface.
type PoolManager interface {
	ConfigureConnectionPool(config PoolConfig) error
	GetConnectionPoolConfig() (*PoolConfig, error)
	ResetConnectionPool() error
}

// TransactionMonitor defines the transaction monitoring interface.
type TransactionMonitor interface {
	GetTransactionMetrics() TransactionMetrics
	ResetTransactionMetrics()
	IsTransactionHealthy() bool
}

var (
	_ RoleDirectory    = (*Registry)(nil)
	_ RoleDirectory    = (*CachedRegistry)(nil)
	_ PermissionStore  = (*Store)(nil)
	_ DefinitionSource = (*Store)(nil)
	_ StateService     = (*StateTable)(nil)
)
