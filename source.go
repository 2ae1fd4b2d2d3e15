/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

package pgsource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"pgsource/internal/cfg"
)

// Config is the pool configuration. Build one with LoadConfig or
// DefaultConfig.
type Config = cfg.Config

// DefaultConfig returns a Config with defaults set and no endpoint or
// credentials.
func DefaultConfig() *Config {
	return cfg.Default()
}

// LoadConfig reads the configuration from the optional TOML file at path, a
// .env file and PGSOURCE_* environment variables.
func LoadConfig(path string) (*Config, error) {
	return cfg.Load(path)
}

// connectPool is replaced in tests.
var connectPool = pgxpool.ConnectConfig

// Source owns a single connection pool. It is safe for concurrent use.
type Source struct {
	config *cfg.Config
	name   string
	pool   *pgxpool.Pool
	log    *zap.Logger
	stats  *statsReporter

	closed    atomic.Bool
	closeOnce sync.Once
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used by the Source. The default discards
// everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// New validates config and constructs the pool. Unless config.LazyConnect is
// set, one connection is established before New returns so that unreachable
// servers and rejected credentials surface here.
func New(ctx context.Context, config *Config, opts ...Option) (*Source, error) {
	if config == nil {
		return nil, &ConfigurationError{Msg: "config is nil"}
	}
	c := config.Copy()

	connString, err := c.ConnString()
	if err != nil {
		return nil, err
	}
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, &ConfigurationError{Field: "endpoint", Value: c.Endpoint, Msg: "rejected by driver", Err: err}
	}

	s := &Source{
		config: c,
		name:   c.PoolName,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.name == "" {
		s.name, err = generatePoolName()
		if err != nil {
			return nil, fmt.Errorf("pgsource: generate pool name: %w", err)
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = s.name
	}
	s.log = s.log.With(zap.String("pool", s.name))

	poolConfig.MaxConns = c.MaxConns
	poolConfig.MinConns = c.MinConns
	if c.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = c.MaxConnLifetime.Std()
	}
	if c.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = c.MaxConnIdleTime.Std()
	}
	if c.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = c.HealthCheckPeriod.Std()
	}
	poolConfig.LazyConnect = c.LazyConnect
	poolConfig.ConnConfig.BuildStatementCache = buildStatementCache(c.PreparedStatementCache)
	poolConfig.AfterConnect = s.afterConnect

	pool, err := connectPool(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgsource: create pool for %s: %w", c.Endpoint, err)
	}
	s.pool = pool

	if c.StatsInterval > 0 {
		s.stats = startStatsReporter(c.StatsInterval.Std(), func() []zap.Field {
			return statFields(pool.Stat())
		}, s.log)
	}

	s.log.Info("pool created",
		zap.String("endpoint", c.Endpoint),
		zap.String("user", c.Username),
		zap.Int32("max_conns", c.MaxConns),
		zap.Bool("stmt_cache", c.PreparedStatementCache.Enabled),
		zap.Int("stmt_cache_size", c.PreparedStatementCache.Size),
		zap.Int("stmt_cache_sql_limit", c.PreparedStatementCache.SQLLimit),
	)

	return s, nil
}

// Conn leases a connection from the pool. It waits up to the configured
// acquire timeout, or until ctx is done if that comes first. The caller owns
// the returned Conn and must Release it.
//
// Errors are ErrPoolClosed after Close and *AcquisitionError otherwise.
func (s *Source) Conn(ctx context.Context) (*Conn, error) {
	if s.closed.Load() {
		return nil, ErrPoolClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.AcquireTimeout.Std())
	defer cancel()

	c, err := s.pool.Acquire(ctx)
	if err != nil {
		err = wrapAcquireError(err)
		s.log.Debug("acquire failed", zap.Error(err))
		return nil, err
	}
	return &Conn{conn: c}, nil
}

// WithConn leases a connection for the duration of fn and releases it on every
// path out, panics included.
func (s *Source) WithConn(ctx context.Context, fn func(*Conn) error) error {
	c, err := s.Conn(ctx)
	if err != nil {
		return err
	}
	defer c.Release()

	return fn(c)
}

// Pool returns the underlying pool for code that manages its own acquisition
// and release. The Source keeps ownership; do not Close it directly.
func (s *Source) Pool() *pgxpool.Pool {
	return s.pool
}

// Stat returns a snapshot of pool statistics.
func (s *Source) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}

// Name is the application_name the pool's sessions report.
func (s *Source) Name() string {
	return s.name
}

// Ping leases a connection and checks that the server responds.
func (s *Source) Ping(ctx context.Context) error {
	return s.WithConn(ctx, func(c *Conn) error {
		return c.Conn().Ping(ctx)
	})
}

// Close shuts the pool down. It blocks until every leased connection has been
// released. Calling it more than once is harmless.
func (s *Source) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.stats != nil {
			s.stats.stop()
		}
		s.pool.Close()
		s.log.Info("pool closed")
	})
}
