package cfg

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := Default()
	c.Endpoint = "db:5432/test"
	c.Username = "u"
	c.Password = "p"
	return c
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.True(t, c.PreparedStatementCache.Enabled)
	assert.Equal(t, 250, c.PreparedStatementCache.Size)
	assert.Equal(t, 2048, c.PreparedStatementCache.SQLLimit)
	assert.Equal(t, int32(DefaultMaxConns), c.MaxConns)
	assert.Equal(t, DefaultAcquireTimeout, c.AcquireTimeout.Std())
	assert.Equal(t, "prefer", c.SSLMode)
	assert.Empty(t, c.Endpoint)
	assert.Empty(t, c.Username)
	assert.Empty(t, c.Password)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{
			name:   "valid",
			modify: func(c *Config) {},
		},
		{
			name:      "empty endpoint",
			modify:    func(c *Config) { c.Endpoint = "" },
			wantField: "endpoint",
		},
		{
			name:      "malformed endpoint",
			modify:    func(c *Config) { c.Endpoint = "db:port/test" },
			wantField: "endpoint",
		},
		{
			name:      "missing username",
			modify:    func(c *Config) { c.Username = "" },
			wantField: "username",
		},
		{
			name:      "missing password",
			modify:    func(c *Config) { c.Password = "" },
			wantField: "password",
		},
		{
			name:      "unknown sslmode",
			modify:    func(c *Config) { c.SSLMode = "sometimes" },
			wantField: "sslmode",
		},
		{
			name:      "zero cache size while enabled",
			modify:    func(c *Config) { c.PreparedStatementCache.Size = 0 },
			wantField: "prepared_statement_cache.size",
		},
		{
			name: "zero cache size while disabled",
			modify: func(c *Config) {
				c.PreparedStatementCache.Enabled = false
				c.PreparedStatementCache.Size = 0
			},
		},
		{
			name:      "negative sql limit",
			modify:    func(c *Config) { c.PreparedStatementCache.SQLLimit = -1 },
			wantField: "prepared_statement_cache.sql_limit",
		},
		{
			name:      "zero max conns",
			modify:    func(c *Config) { c.MaxConns = 0 },
			wantField: "max_conns",
		},
		{
			name: "min above max",
			modify: func(c *Config) {
				c.MaxConns = 2
				c.MinConns = 3
			},
			wantField: "min_conns",
		},
		{
			name:      "zero acquire timeout",
			modify:    func(c *Config) { c.AcquireTimeout = 0 },
			wantField: "acquire_timeout",
		},
		{
			name:      "negative idle time",
			modify:    func(c *Config) { c.MaxConnIdleTime = Duration(-time.Second) },
			wantField: "max_conn_idle_time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var cErr *ConfigError
			require.True(t, errors.As(err, &cErr), "got %v", err)
			assert.Equal(t, tt.wantField, cErr.Field)
		})
	}
}

func TestConfig_ValidateIsDeterministic(t *testing.T) {
	c := validConfig()
	c.Endpoint = ""
	first := c.Validate()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.Error(), c.Validate().Error())
	}
}

func TestConfig_ConnString(t *testing.T) {
	c := validConfig()
	c.Password = `it's\secret`
	c.PoolName = "reports"
	c.ConnectTimeout = Duration(1500 * time.Millisecond)

	s, err := c.ConnString()
	require.NoError(t, err)
	assert.Equal(t,
		`application_name='reports' connect_timeout='2' dbname='test' host='db' password='it\'s\\secret' port='5432' sslmode='prefer' user='u'`,
		s,
	)
}

func TestConfig_ConnStringRoundsConnectTimeoutUp(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    string
	}{
		{time.Millisecond, "connect_timeout='1'"},
		{time.Second, "connect_timeout='1'"},
		{1500 * time.Millisecond, "connect_timeout='2'"},
		{10 * time.Second, "connect_timeout='10'"},
	}

	for _, tt := range tests {
		t.Run(tt.timeout.String(), func(t *testing.T) {
			c := validConfig()
			c.ConnectTimeout = Duration(tt.timeout)
			s, err := c.ConnString()
			require.NoError(t, err)
			assert.Contains(t, s, tt.want)
		})
	}
}

func TestConfig_ConnStringValidates(t *testing.T) {
	c := validConfig()
	c.Username = ""
	_, err := c.ConnString()
	require.Error(t, err)
}

func TestConfig_Copy(t *testing.T) {
	c := validConfig()
	cp := c.Copy()
	cp.PreparedStatementCache.Size = 1
	cp.Endpoint = "other/db"

	assert.Equal(t, 250, c.PreparedStatementCache.Size)
	assert.Equal(t, "db:5432/test", c.Endpoint)
}

func TestConfigError_Redacts(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"url", "postgres://u:hunter2@db:5432/test"},
		{"dsn", "host=db password=hunter2 user=u"},
		{"quoted dsn", "host=db password='hunter2' user=u"},
		{"broken url", "u:hunter2@db:5432/test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ConfigError{Field: "endpoint", Value: tt.value, Msg: "bad"}
			assert.NotContains(t, err.Error(), "hunter2")
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &ConfigError{Field: "file", Msg: "cannot read", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "invalid configuration: file: cannot read (inner)", err.Error())
}
