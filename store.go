package actionkit

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// Store persists definitions and permission models through dbkit.
//
// Error Handling:
// All database operations use dbkit's chainable error wrapping, so errors
// carry the failed operation name and keep their original classification.
//
//	ep, err := store.LoadEntityPermission(ctx, targetID)
//	if err != nil {
//	    var dbErr *dbkit.Error
//	    if errors.As(err, &dbErr) {
//	        log.Printf("operation %s failed on %s", dbErr.Operation, dbErr.Table)
//	    }
//	}
type Store struct {
	db        dbkit.IDB
	txMonitor *transactionMonitor
	logger    *slog.Logger
}

// NewStore creates a store on top of a dbkit connection or transaction.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	store := actionkit.NewStore(db, logger)
func NewStore(db dbkit.IDB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:        db,
		txMonitor: newTransactionMonitor(),
		logger:    logger,
	}
}

// withDB returns a store bound to db sharing the monitor and logger.
func (s *Store) withDB(db dbkit.IDB) *Store {
	return &Store{db: db, txMonitor: s.txMonitor, logger: s.logger}
}

// ============================================================================
// DEFINITIONS
// ============================================================================

// SaveDefinitions upserts every action and role and replaces the role
// grants and includes of the saved roles.
func (s *Store) SaveDefinitions(ctx context.Context, defs Definitions) error {
	return s.Transaction(ctx, func(ctx context.Context, tx *Store) error {
		for _, a := range defs.Actions {
			result, err := tx.db.NewInsert().Model(NewActionRecord(a)).
				On("CONFLICT (id) DO UPDATE").
				Set("purpose = EXCLUDED.purpose").
				Set("enabled = EXCLUDED.enabled").
				Set("local = EXCLUDED.local").
				Set("filters = EXCLUDED.filters").
				Set("updated_at = current_timestamp").
				Exec(ctx)
			if err := dbkit.WithErr(result, err, "SaveAction").Err(); err != nil {
				return NewError(ErrDatabaseError, "failed to save action").WithAction(a.ID)
			}
		}

		var grants []*RoleActionRecord
		var includes []*RoleIncludeRecord
		for _, r := range defs.Roles {
			result, err := tx.db.NewInsert().Model(NewRoleRecord(r.ID)).
				On("CONFLICT (identifier) DO UPDATE").
				Set("global_priority = EXCLUDED.global_priority").
				Set("can_read = EXCLUDED.can_read").
				Set("can_write = EXCLUDED.can_write").
				Set("internal = EXCLUDED.internal").
				Set("updated_at = current_timestamp").
				Exec(ctx)
			if err := dbkit.WithErr(result, err, "SaveRole").Err(); err != nil {
				return NewError(ErrDatabaseError, "failed to save role").WithRole(r.ID.Identifier)
			}

			result, err = tx.db.NewDelete().Model((*RoleActionRecord)(nil)).Where("role_id = ?", r.ID.Identifier).Exec(ctx)
			if err := dbkit.WithErr(result, err, "ClearRoleActions").Err(); err != nil {
				return err
			}
			result, err = tx.db.NewDelete().Model((*RoleIncludeRecord)(nil)).Where("role_id = ?", r.ID.Identifier).Exec(ctx)
			if err := dbkit.WithErr(result, err, "ClearRoleIncludes").Err(); err != nil {
				return err
			}

			for i, id := range r.Actions {
				grants = append(grants, &RoleActionRecord{RoleID: r.ID.Identifier, ActionID: id, Position: i})
			}
			for i, id := range r.Includes {
				includes = append(includes, &RoleIncludeRecord{RoleID: r.ID.Identifier, IncludedRoleID: id, Position: i})
			}
		}

		if len(grants) > 0 {
			_, err := dbkit.BatchInsert(ctx, tx.db, grants, dbkit.BatchSize)
			if err := dbkit.WithErr1(err, "SaveRoleActions").Err(); err != nil {
				return err
			}
		}
		if len(includes) > 0 {
			_, err := dbkit.BatchInsert(ctx, tx.db, includes, dbkit.BatchSize)
			if err := dbkit.WithErr1(err, "SaveRoleIncludes").Err(); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadDefinitions implements DefinitionSource. On a top-level connection the
// tables are read in one read-only transaction, so a concurrent
// SaveDefinitions is seen whole or not at all.
func (s *Store) LoadDefinitions(ctx context.Context) (Definitions, error) {
	if _, ok := s.db.(*dbkit.DBKit); !ok {
		return s.loadDefinitions(ctx)
	}
	var defs Definitions
	err := s.ReadOnlyTransaction(ctx, func(ctx context.Context, tx *Store) error {
		var err error
		defs, err = tx.loadDefinitions(ctx)
		return err
	})
	return defs, err
}

func (s *Store) loadDefinitions(ctx context.Context) (Definitions, error) {
	var (
		actions  []ActionRecord
		roles    []RoleRecord
		grants   []RoleActionRecord
		includes []RoleIncludeRecord
		defs     Definitions
	)

	if err := dbkit.WithErr1(s.db.NewSelect().Model(&actions).Order("created_at", "id").Scan(ctx), "LoadActions").Err(); err != nil {
		return defs, err
	}
	if err := dbkit.WithErr1(s.db.NewSelect().Model(&roles).Order("global_priority", "identifier").Scan(ctx), "LoadRoles").Err(); err != nil {
		return defs, err
	}
	if err := dbkit.WithErr1(s.db.NewSelect().Model(&grants).Order("role_id", "position").Scan(ctx), "LoadRoleActions").Err(); err != nil {
		return defs, err
	}
	if err := dbkit.WithErr1(s.db.NewSelect().Model(&includes).Order("role_id", "position").Scan(ctx), "LoadRoleIncludes").Err(); err != nil {
		return defs, err
	}

	for i := range actions {
		defs.Actions = append(defs.Actions, actions[i].ToAction())
	}

	byRole := make(map[string]*RoleDefinitionData, len(roles))
	for i := range roles {
		defs.Roles = append(defs.Roles, RoleDefinitionData{ID: roles[i].ToIdentifier()})
	}
	for i := range defs.Roles {
		byRole[defs.Roles[i].ID.Identifier] = &defs.Roles[i]
	}
	for _, g := range grants {
		if d, ok := byRole[g.RoleID]; ok {
			d.Actions = append(d.Actions, g.ActionID)
		}
	}
	for _, inc := range includes {
		if d, ok := byRole[inc.RoleID]; ok {
			d.Includes = append(d.Includes, inc.IncludedRoleID)
		}
	}
	return defs, nil
}

// ============================================================================
// PERMISSION MODELS
// ============================================================================

// LoadEntityPermission implements PermissionStore.
func (s *Store) LoadEntityPermission(ctx context.Context, targetID string) (*EntityPermission, error) {
	var ep EntityPermission
	err := dbkit.WithErr1(s.db.NewSelect().Model(&ep).
		Relation("Assignments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("arr.created_at", "arr.authority_id")
		}).
		Where("ep.target_id = ?", targetID).
		Limit(1).
		Scan(ctx), "LoadEntityPermission").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &ep, nil
}

// SaveEntityPermission implements PermissionStore. Transient failures are retried.
func (s *Store) SaveEntityPermission(ctx context.Context, ep *EntityPermission) error {
	return s.withRetry(ctx, "SaveEntityPermission", func(ctx context.Context) error {
		return s.Transaction(ctx, func(ctx context.Context, tx *Store) error {
			return tx.saveEntityPermission(ctx, ep)
		})
	})
}

func (s *Store) saveEntityPermission(ctx context.Context, ep *EntityPermission) error {
	result, err := s.db.NewInsert().Model(ep).
		On("CONFLICT (target_id) DO UPDATE").
		Set("parent_id = EXCLUDED.parent_id").
		Set("library_id = EXCLUDED.library_id").
		Set("is_library = EXCLUDED.is_library").
		Set("inherit_from_parent = EXCLUDED.inherit_from_parent").
		Set("inherit_from_library = EXCLUDED.inherit_from_library").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "SaveEntityPermission").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to save permission model").WithTarget(ep.TargetID)
	}

	result, err = s.db.NewDelete().Model((*AuthorityRoleAssignment)(nil)).Where("target_id = ?", ep.TargetID).Exec(ctx)
	if err := dbkit.WithErr(result, err, "ClearAssignments").Err(); err != nil {
		return err
	}
	if len(ep.Assignments) == 0 {
		return nil
	}

	rows := make([]*AuthorityRoleAssignment, 0, len(ep.Assignments))
	for _, a := range ep.Assignments {
		rows = append(rows, &AuthorityRoleAssignment{
			TargetID:    ep.TargetID,
			AuthorityID: a.AuthorityID,
			Role:        a.Role,
		})
	}
	_, err = dbkit.BatchInsert(ctx, s.db, rows, dbkit.BatchSize)
	return dbkit.WithErr1(err, "SaveAssignments").Err()
}

// DeleteEntityPermission removes the permission model of target and its assignments.
func (s *Store) DeleteEntityPermission(ctx context.Context, targetID string) error {
	return s.Transaction(ctx, func(ctx context.Context, tx *Store) error {
		result, err := tx.db.NewDelete().Model((*AuthorityRoleAssignment)(nil)).Where("target_id = ?", targetID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteAssignments").Err(); err != nil {
			return err
		}
		result, err = tx.db.NewDelete().Model((*EntityPermission)(nil)).Where("target_id = ?", targetID).Exec(ctx)
		return dbkit.WithErr(result, err, "DeleteEntityPermission").Err()
	})
}

// Children returns the ids of the targets whose parent is targetID.
func (s *Store) Children(ctx context.Context, targetID string) ([]string, error) {
	var ids []string
	err := dbkit.WithErr1(s.db.NewSelect().Model((*EntityPermission)(nil)).
		Column("target_id").
		Where("parent_id = ?", targetID).
		Order("target_id").
		Scan(ctx, &ids), "GetChildren").Err()
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindAssignments returns the special assignments matching filter.
func (s *Store) FindAssignments(ctx context.Context, filter AssignmentFilter) ([]AuthorityRoleAssignment, error) {
	var assignments []AuthorityRoleAssignment
	q := s.db.NewSelect().Model(&assignments)
	if filter.TargetID != "" {
		q = q.Where("target_id = ?", filter.TargetID)
	}
	if filter.AuthorityID != "" {
		q = q.Where("authority_id = ?", filter.AuthorityID)
	}
	if len(filter.Roles) > 0 {
		q = q.Where("role IN (?)", bun.In(filter.Roles))
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = DefaultAssignmentLimit
	}
	q = q.Limit(limit)
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("created_at DESC")
	if err := dbkit.WithErr1(q.Scan(ctx), "FindAssignments").Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// HasAssignment reports whether authority holds a special assignment on target.
func (s *Store) HasAssignment(ctx context.Context, targetID, authorityID string) (bool, error) {
	return dbkit.Exists[AuthorityRoleAssignment](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("target_id = ? AND authority_id = ?", targetID, authorityID)
	})
}

// CountAssignments returns the number of special assignments on target.
func (s *Store) CountAssignments(ctx context.Context, targetID string) (int, error) {
	return dbkit.Count[AuthorityRoleAssignment](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("target_id = ?", targetID)
	})
}
