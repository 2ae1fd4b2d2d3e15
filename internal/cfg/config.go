/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

package cfg

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Default settings. The statement cache values follow the usual JDBC pool tuning.
const (
	DefaultStatementCacheSize     = 250
	DefaultStatementCacheSQLLimit = 2048
	DefaultMaxConns               = 10
	DefaultAcquireTimeout         = 30 * time.Second
	DefaultConnectTimeout         = 10 * time.Second
	DefaultMaxConnLifetime        = 30 * time.Minute
	DefaultMaxConnIdleTime        = 10 * time.Minute
	DefaultHealthCheckPeriod      = time.Minute
	DefaultSSLMode                = "prefer"
)

var sslModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// StatementCacheConfig controls the per-connection prepared statement cache.
type StatementCacheConfig struct {
	Enabled bool `toml:"enabled"`
	// Size is the number of statements kept per connection.
	Size int `toml:"size"`
	// SQLLimit is the longest SQL text, in bytes, that is cached. Zero means
	// no limit.
	SQLLimit int `toml:"sql_limit"`
}

// Config is the settings the connection pool is built from. It is not
// modified once the pool exists.
type Config struct {
	// Endpoint is host[:port]/database.
	Endpoint string `toml:"endpoint"`
	Username string `toml:"username"`
	Password string `toml:"password"`

	// Passfile is consulted when Password is empty.
	Passfile string `toml:"passfile"`
	// Service names an entry in ServiceFile consulted when Endpoint is empty.
	Service     string `toml:"service"`
	ServiceFile string `toml:"service_file"`

	SSLMode string `toml:"sslmode"`
	// Schema, when set, becomes the search_path of every connection.
	Schema string `toml:"schema"`
	// PoolName is sent as application_name.
	PoolName string `toml:"pool_name"`

	PreparedStatementCache StatementCacheConfig `toml:"prepared_statement_cache"`

	MaxConns          int32    `toml:"max_conns"`
	MinConns          int32    `toml:"min_conns"`
	AcquireTimeout    Duration `toml:"acquire_timeout"`
	ConnectTimeout    Duration `toml:"connect_timeout"`
	MaxConnLifetime   Duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime   Duration `toml:"max_conn_idle_time"`
	HealthCheckPeriod Duration `toml:"health_check_period"`
	// StatsInterval enables periodic pool statistics logging when positive.
	StatsInterval Duration `toml:"stats_interval"`
	// LazyConnect defers the first connection until one is requested.
	LazyConnect bool `toml:"lazy_connect"`
}

// Default returns a Config holding every default except the endpoint and the
// credentials, which have none.
func Default() *Config {
	return &Config{
		SSLMode: DefaultSSLMode,
		PreparedStatementCache: StatementCacheConfig{
			Enabled:  true,
			Size:     DefaultStatementCacheSize,
			SQLLimit: DefaultStatementCacheSQLLimit,
		},
		MaxConns:          DefaultMaxConns,
		AcquireTimeout:    Duration(DefaultAcquireTimeout),
		ConnectTimeout:    Duration(DefaultConnectTimeout),
		MaxConnLifetime:   Duration(DefaultMaxConnLifetime),
		MaxConnIdleTime:   Duration(DefaultMaxConnIdleTime),
		HealthCheckPeriod: Duration(DefaultHealthCheckPeriod),
	}
}

// Copy returns a copy of the config that is safe to modify.
func (c *Config) Copy() *Config {
	newConf := new(Config)
	*newConf = *c
	return newConf
}

// Validate checks the configuration and returns a *ConfigError describing the
// first problem found.
func (c *Config) Validate() error {
	if _, err := ParseEndpoint(c.Endpoint); err != nil {
		return err
	}
	if c.Username == "" {
		return &ConfigError{Field: "username", Msg: "is required"}
	}
	if c.Password == "" {
		return &ConfigError{Field: "password", Msg: "is required"}
	}
	if _, ok := sslModes[c.SSLMode]; !ok {
		return &ConfigError{Field: "sslmode", Value: c.SSLMode, Msg: "unknown mode"}
	}

	psc := c.PreparedStatementCache
	if psc.Enabled && psc.Size < 1 {
		return &ConfigError{Field: "prepared_statement_cache.size", Value: strconv.Itoa(psc.Size), Msg: "must be at least 1 when the cache is enabled"}
	}
	if psc.SQLLimit < 0 {
		return &ConfigError{Field: "prepared_statement_cache.sql_limit", Value: strconv.Itoa(psc.SQLLimit), Msg: "must not be negative"}
	}

	if c.MaxConns < 1 {
		return &ConfigError{Field: "max_conns", Value: strconv.Itoa(int(c.MaxConns)), Msg: "must be at least 1"}
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return &ConfigError{Field: "min_conns", Value: strconv.Itoa(int(c.MinConns)), Msg: "must be between 0 and max_conns"}
	}
	if c.AcquireTimeout <= 0 {
		return &ConfigError{Field: "acquire_timeout", Value: c.AcquireTimeout.String(), Msg: "must be positive"}
	}
	for _, d := range []struct {
		field string
		value Duration
	}{
		{"connect_timeout", c.ConnectTimeout},
		{"max_conn_lifetime", c.MaxConnLifetime},
		{"max_conn_idle_time", c.MaxConnIdleTime},
		{"health_check_period", c.HealthCheckPeriod},
		{"stats_interval", c.StatsInterval},
	} {
		if d.value < 0 {
			return &ConfigError{Field: d.field, Value: d.value.String(), Msg: "must not be negative"}
		}
	}

	return nil
}

// ConnString renders the config as a keyword/value connection string suitable
// for pgxpool.ParseConfig. Pool sizing is applied on the parsed config instead.
func (c *Config) ConnString() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	ep, _ := ParseEndpoint(c.Endpoint)

	settings := map[string]string{
		"host":     ep.Host,
		"port":     strconv.Itoa(int(ep.Port)),
		"dbname":   ep.Database,
		"user":     c.Username,
		"password": c.Password,
		"sslmode":  c.SSLMode,
	}
	if c.ConnectTimeout > 0 {
		// connect_timeout has whole second granularity, so round up.
		secs := int64((c.ConnectTimeout.Std() + time.Second - 1) / time.Second)
		settings["connect_timeout"] = strconv.FormatInt(secs, 10)
	}
	if c.PoolName != "" {
		settings["application_name"] = c.PoolName
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, quoteDSNValue(settings[k])))
	}
	return strings.Join(parts, " "), nil
}

func quoteDSNValue(v string) string {
	v = strings.Replace(v, `\`, `\\`, -1)
	v = strings.Replace(v, `'`, `\'`, -1)
	return "'" + v + "'"
}
