package actionkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	// DefinitionsVersionKey holds the shared version of the definitions.
	DefinitionsVersionKey = "actionkit:definitions:version"
	// DefaultDefinitionsChannel carries definitions-changed signals.
	DefaultDefinitionsChannel = "actionkit.definitions"
)

// CachedRegistry serves role and action lookups from a built Registry kept in
// memory indefinitely. The registry is replaced wholesale when the shared
// definitions version in redis moves: Invalidate bumps it and publishes the
// new version, Watch reloads on every published bump. Concurrent reloads are
// collapsed into one.
type CachedRegistry struct {
	source    DefinitionSource
	client    *redis.Client
	wellKnown WellKnownRoles
	channel   string
	metrics   *Metrics
	logger    *slog.Logger

	current atomic.Pointer[Registry]
	version atomic.Int64
	loads   singleflight.Group
}

// CacheOption configures a CachedRegistry.
type CacheOption func(*CachedRegistry)

// WithDefinitionsChannel sets the pub/sub channel of definitions-changed signals.
func WithDefinitionsChannel(channel string) CacheOption {
	return func(c *CachedRegistry) {
		if channel != "" {
			c.channel = channel
		}
	}
}

// WithCacheMetrics records reloads on m.
func WithCacheMetrics(m *Metrics) CacheOption {
	return func(c *CachedRegistry) {
		c.metrics = m
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedRegistry) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedRegistry creates a cache over source. A nil client keeps the cache
// process local: Invalidate reloads in place and Watch returns at once.
func NewCachedRegistry(source DefinitionSource, client *redis.Client, wellKnown WellKnownRoles, opts ...CacheOption) *CachedRegistry {
	c := &CachedRegistry{
		source:    source,
		client:    client,
		wellKnown: wellKnown,
		channel:   DefaultDefinitionsChannel,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry currently served, or nil before the first load.
func (c *CachedRegistry) Registry() *Registry {
	return c.current.Load()
}

// Version returns the definitions version of the served registry.
func (c *CachedRegistry) Version() int64 {
	return c.version.Load()
}

// Refresh reloads the definitions and swaps the served registry.
func (c *CachedRegistry) Refresh(ctx context.Context) error {
	ch := c.loads.DoChan("definitions", func() (any, error) {
		return nil, c.reload(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *CachedRegistry) reload(ctx context.Context) error {
	version, err := c.sharedVersion(ctx)
	if err != nil {
		c.metrics.ObserveReload(ResultError)
		return err
	}
	defs, err := c.source.LoadDefinitions(ctx)
	if err != nil {
		c.metrics.ObserveReload(ResultError)
		return fmt.Errorf("load definitions: %w", err)
	}
	registry, err := NewRegistryFromDefinitions(defs, c.wellKnown, c.logger)
	if err != nil {
		c.metrics.ObserveReload(ResultError)
		return err
	}

	c.current.Store(registry)
	c.version.Store(version)
	c.metrics.ObserveReload(ResultOK)
	c.logger.Info("definitions loaded", "version", version,
		"actions", len(defs.Actions), "roles", len(defs.Roles))
	return nil
}

// sharedVersion returns the version stored in redis, initialising it to 1.
func (c *CachedRegistry) sharedVersion(ctx context.Context) (int64, error) {
	if c.client == nil {
		return c.version.Load() + 1, nil
	}
	ver, err := c.client.Get(ctx, DefinitionsVersionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.Set(ctx, DefinitionsVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read definitions version: %w", err)
	}
	return ver, nil
}

// EnsureFresh reloads when the shared version differs from the served one or
// nothing is loaded yet.
func (c *CachedRegistry) EnsureFresh(ctx context.Context) error {
	if c.current.Load() == nil {
		return c.Refresh(ctx)
	}
	if c.client == nil {
		return nil
	}
	ver, err := c.sharedVersion(ctx)
	if err != nil {
		return err
	}
	if ver != c.version.Load() {
		return c.Refresh(ctx)
	}
	return nil
}

// Invalidate signals that definitions changed. Every watching process reloads.
func (c *CachedRegistry) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return c.Refresh(ctx)
	}
	ver, err := c.client.Incr(ctx, DefinitionsVersionKey).Result()
	if err != nil {
		return fmt.Errorf("bump definitions version: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, strconv.FormatInt(ver, 10)).Err(); err != nil {
		return fmt.Errorf("publish definitions version: %w", err)
	}
	return c.Refresh(ctx)
}

// Watch subscribes to definitions-changed signals and reloads on each newer
// version until ctx is done. It returns once the subscription is active.
func (c *CachedRegistry) Watch(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, c.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", c.channel, err)
	}

	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil && ver == c.version.Load() {
					continue
				}
				if err := c.Refresh(ctx); err != nil {
					c.logger.Error("definitions reload failed", "error", err)
				}
			}
		}
	}()
	return nil
}

// LookupRole implements RoleLookup.
func (c *CachedRegistry) LookupRole(identifier string) (*Role, bool) {
	r := c.current.Load()
	if r == nil {
		return nil, false
	}
	return r.LookupRole(identifier)
}

// LookupAction implements ActionLookup.
func (c *CachedRegistry) LookupAction(id string) (*Action, bool) {
	r := c.current.Load()
	if r == nil {
		return nil, false
	}
	return r.LookupAction(id)
}

// RoleIdentifier returns the identifier of a defined role.
func (c *CachedRegistry) RoleIdentifier(identifier string) (RoleIdentifier, bool) {
	r := c.current.Load()
	if r == nil {
		return RoleIdentifier{}, false
	}
	return r.RoleIdentifier(identifier)
}

// ActiveRoles returns the user-facing role tiers.
func (c *CachedRegistry) ActiveRoles() []RoleIdentifier {
	r := c.current.Load()
	if r == nil {
		return nil
	}
	return r.ActiveRoles()
}
