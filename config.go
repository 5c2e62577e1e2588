package actionkit

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration read from the environment.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	AppAddr   string `envconfig:"APP_ADDR" default:":8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`

	ManagerRole       string `envconfig:"ACTIONKIT_MANAGER_ROLE" default:"MANAGER"`
	NoPermissionRole  string `envconfig:"ACTIONKIT_NO_PERMISSION_ROLE" default:"NO_PERMISSION"`
	AdministratorRole string `envconfig:"ACTIONKIT_ADMINISTRATOR_ROLE" default:"ADMINISTRATOR"`
	AllOtherAuthority string `envconfig:"ACTIONKIT_ALL_OTHER_AUTHORITY" default:"sec:SYSTEM_ALL_OTHER"`
	GroupType         string `envconfig:"ACTIONKIT_GROUP_TYPE" default:"group"`

	// UnionInstanceActions adds the actions of a bound instance to the
	// filtered actions of schedule entries.
	UnionInstanceActions bool   `envconfig:"ACTIONKIT_UNION_INSTANCE_ACTIONS" default:"false"`
	DefinitionsChannel   string `envconfig:"ACTIONKIT_DEFINITIONS_CHANNEL" default:"actionkit.definitions"`

	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	DBConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the role settings.
func (c *Config) Validate() error {
	if c.ManagerRole == "" || c.NoPermissionRole == "" || c.AdministratorRole == "" {
		return errors.New("well-known role identifiers must be provided")
	}
	if c.ManagerRole == c.NoPermissionRole {
		return errors.New("manager and no-permission roles must differ")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// WellKnownRoles returns the default tiers renamed to the configured identifiers.
func (c *Config) WellKnownRoles() WellKnownRoles {
	wk := DefaultWellKnownRoles()
	if c == nil {
		return wk
	}
	wk.Manager.Identifier = c.ManagerRole
	wk.NoPermission.Identifier = c.NoPermissionRole
	wk.Administrator.Identifier = c.AdministratorRole
	return wk
}

// PoolConfig returns the configured connection pool settings.
func (c *Config) PoolConfig() PoolConfig {
	if c == nil {
		return DefaultPoolConfig()
	}
	return PoolConfig{
		MaxOpenConnections:    c.DBMaxOpenConns,
		MaxIdleConnections:    c.DBMaxIdleConns,
		ConnectionMaxLifetime: c.DBConnMaxLifetime,
		ConnectionMaxIdleTime: c.DBConnMaxIdleTime,
	}
}
