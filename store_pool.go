package actionkit

import (
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
)

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConnections    int           `json:"max_open_connections"`
	MaxIdleConnections    int           `json:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `json:"connection_max_lifetime"`
	ConnectionMaxIdleTime time.Duration `json:"connection_max_idle_time"`
}

// DefaultPoolConfig returns the pool settings used when nothing is configured.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConnections:    25,
		MaxIdleConnections:    5,
		ConnectionMaxLifetime: 30 * time.Minute,
		ConnectionMaxIdleTime: 5 * time.Minute,
	}
}

// PoolService provides connection pool management functionality as an extension to Store
type PoolService struct {
	*Store
}

// NewPoolService creates a new pool service extension
func NewPoolService(store *Store) *PoolService {
	return &PoolService{Store: store}
}

// ConfigureConnectionPool updates the database connection pool settings.
func (ps *PoolService) ConfigureConnectionPool(config PoolConfig) error {
	db, ok := ps.db.(*dbkit.DBKit)
	if !ok {
		return fmt.Errorf("connection pool configuration requires a dbkit.DBKit instance")
	}
	bunDB := db.Bun()
	if bunDB == nil {
		return fmt.Errorf("database instance not available")
	}

	bunDB.SetMaxOpenConns(config.MaxOpenConnections)
	bunDB.SetMaxIdleConns(config.MaxIdleConnections)
	bunDB.SetConnMaxLifetime(config.ConnectionMaxLifetime)
	bunDB.SetConnMaxIdleTime(config.ConnectionMaxIdleTime)

	ps.logger.Info("connection pool configured",
		"max_open", config.MaxOpenConnections,
		"max_idle", config.MaxIdleConnections,
		"max_lifetime", config.ConnectionMaxLifetime,
		"max_idle_time", config.ConnectionMaxIdleTime)
	return nil
}

// GetConnectionPoolConfig returns the observable part of the pool configuration.
func (ps *PoolService) GetConnectionPoolConfig() (*PoolConfig, error) {
	db, ok := ps.db.(*dbkit.DBKit)
	if !ok {
		return nil, fmt.Errorf("connection pool configuration requires a dbkit.DBKit instance")
	}
	bunDB := db.Bun()
	if bunDB == nil {
		return nil, fmt.Errorf("database instance not available")
	}
	stats := bunDB.Stats()
	return &PoolConfig{
		MaxOpenConnections: stats.MaxOpenConnections,
		MaxIdleConnections: stats.Idle,
	}, nil
}

// ResetConnectionPool resets the connection pool to default settings.
func (ps *PoolService) ResetConnectionPool() error {
	return ps.ConfigureConnectionPool(DefaultPoolConfig())
}
