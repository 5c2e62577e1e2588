package actionkit

import (
	"context"
	"fmt"

	"github.com/fernandezvara/dbkit"
)

// MigrationService provides migration management functionality as an extension to Store
type MigrationService struct {
	*Store
}

// NewMigrationService creates a new migration service extension
func NewMigrationService(store *Store) *MigrationService {
	return &MigrationService{Store: store}
}

// Migrations returns all database migrations required by the store.
func (ms *MigrationService) Migrations() []dbkit.Migration {
	return Migrations()
}

// RunMigrations applies pending migrations and returns the ids applied.
func (ms *MigrationService) RunMigrations(ctx context.Context) ([]string, error) {
	db, ok := ms.db.(*dbkit.DBKit)
	if !ok {
		return nil, fmt.Errorf("migrations require a dbkit.DBKit instance")
	}
	result, err := db.Migrate(ctx, Migrations())
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	applied := make([]string, 0, len(result.Applied))
	for _, m := range result.Applied {
		applied = append(applied, m.ID)
		ms.logger.Info("migration applied", "id", m.ID)
	}
	return applied, nil
}

// Migrations returns the store schema migrations in order.
func Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "actionkit-001",
			Description: "Create actionkit_actions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS actionkit_actions (
                    id TEXT PRIMARY KEY,
                    purpose TEXT,
                    enabled BOOLEAN NOT NULL DEFAULT true,
                    local BOOLEAN NOT NULL DEFAULT false,
                    filters TEXT[],
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "actionkit-002",
			Description: "Create actionkit_roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS actionkit_roles (
                    identifier TEXT PRIMARY KEY,
                    global_priority INTEGER NOT NULL,
                    can_read BOOLEAN NOT NULL DEFAULT false,
                    can_write BOOLEAN NOT NULL DEFAULT false,
                    internal BOOLEAN NOT NULL DEFAULT false,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "actionkit-003",
			Description: "Create actionkit_role_actions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS actionkit_role_actions (
                    role_id TEXT NOT NULL REFERENCES actionkit_roles(identifier) ON DELETE CASCADE,
                    action_id TEXT NOT NULL,
                    position INTEGER NOT NULL DEFAULT 0,
                    PRIMARY KEY (role_id, action_id)
                )`,
		},
		{
			ID:          "actionkit-004",
			Description: "Create actionkit_role_includes table",
			SQL: `
                CREATE TABLE IF NOT EXISTS actionkit_role_includes (
                    role_id TEXT NOT NULL REFERENCES actionkit_roles(identifier) ON DELETE CASCADE,
                    included_role_id TEXT NOT NULL,
                    position INTEGER NOT NULL DEFAULT 0,
                    PRIMARY KEY (role_id, included_role_id)
                )`,
		},
		{
			ID:          "actionkit-005",
			Description: "Create actionkit_entity_permissions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS actionkit_entity_permissions (
                    target_id TEXT PRIMARY KEY,
                    parent_id TEXT,
                    library_id TEXT,
                    is_library BOOLEAN NOT NULL DEFAULT false,
                    inherit_from_parent BOOLEAN NOT NULL DEFAULT true,
                    inherit_from_library BOOLEAN NOT NULL DEFAULT true,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "actionkit-006",
			Description: "Index entity permissions by parent",
			SQL: `
                CREATE INDEX IF NOT EXISTS idx_actionkit_entity_permissions_parent
                    ON actionkit_entity_permissions (parent_id)`,
		},
		{
			ID:          "actionkit-007",
			Description: "Create actionkit_authority_roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS actionkit_authority_roles (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    target_id TEXT NOT NULL,
                    authority_id TEXT NOT NULL,
                    role TEXT NOT NULL,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (target_id, authority_id)
                )`,
		},
	}
}
