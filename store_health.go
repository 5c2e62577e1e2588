package actionkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// HealthService provides health monitoring functionality as an extension to Store
type HealthService struct {
	*Store
}

// NewHealthService creates a new health service extension
func NewHealthService(store *Store) *HealthService {
	return &HealthService{Store: store}
}

// Health performs a comprehensive health check of the database connection.
func (hs *HealthService) Health(ctx context.Context) dbkit.HealthStatus {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.Health(ctx)
	}
	return dbkit.HealthStatus{
		Healthy: hs.IsHealthy(ctx),
		Error:   "limited health check: not a dbkit.DBKit instance",
	}
}

// IsHealthy reports whether the database is reachable.
func (hs *HealthService) IsHealthy(ctx context.Context) bool {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.IsHealthy(ctx)
	}
	return hs.Ping(ctx) == nil
}

// GetPoolStats returns connection pool statistics, or zero values when the
// store is not bound to a dbkit.DBKit.
func (hs *HealthService) GetPoolStats() dbkit.PoolStats {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return dbkit.PoolStatsFromSQL(db.Stats())
	}
	return dbkit.PoolStats{}
}

// Ping runs a trivial query.
func (hs *HealthService) Ping(ctx context.Context) error {
	var result int
	return hs.db.NewSelect().ColumnExpr("1").Scan(ctx, &result)
}
