package cfg

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/jackc/pgpassfile"
	"github.com/jackc/pgservicefile"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "PGSOURCE_"

// Load builds a Config from, in increasing precedence: defaults, the TOML
// file at path (skipped when path is empty), a .env file in the working
// directory, and PGSOURCE_* environment variables. A service entry and the
// passfile then fill in whatever is still missing. The result is validated.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "file", Value: path, Msg: "cannot read", Err: err}
		}
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, &ConfigError{Field: "file", Value: path, Msg: "cannot parse", Err: err}
		}
	}

	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{Field: "file", Value: ".env", Msg: "cannot parse", Err: err}
	}

	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.ResolveService(); err != nil {
		return nil, err
	}
	if err := c.ResolvePassword(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// ApplyEnv overrides fields with the PGSOURCE_* variables returned by lookup.
// Values that do not parse are reported as *ConfigError.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	psc := &c.PreparedStatementCache
	setters := map[string]func(string) error{
		"ENDPOINT":             setString(&c.Endpoint),
		"USERNAME":             setString(&c.Username),
		"PASSWORD":             setString(&c.Password),
		"PASSFILE":             setString(&c.Passfile),
		"SERVICE":              setString(&c.Service),
		"SERVICEFILE":          setString(&c.ServiceFile),
		"SSLMODE":              setString(&c.SSLMode),
		"SCHEMA":               setString(&c.Schema),
		"POOL_NAME":            setString(&c.PoolName),
		"STMT_CACHE_ENABLED":   setBool(&psc.Enabled),
		"STMT_CACHE_SIZE":      setInt(&psc.Size),
		"STMT_CACHE_SQL_LIMIT": setInt(&psc.SQLLimit),
		"MAX_CONNS":            setInt32(&c.MaxConns),
		"MIN_CONNS":            setInt32(&c.MinConns),
		"ACQUIRE_TIMEOUT":      setDuration(&c.AcquireTimeout),
		"CONNECT_TIMEOUT":      setDuration(&c.ConnectTimeout),
		"MAX_CONN_LIFETIME":    setDuration(&c.MaxConnLifetime),
		"MAX_CONN_IDLE_TIME":   setDuration(&c.MaxConnIdleTime),
		"HEALTH_CHECK_PERIOD":  setDuration(&c.HealthCheckPeriod),
		"STATS_INTERVAL":       setDuration(&c.StatsInterval),
		"LAZY_CONNECT":         setBool(&c.LazyConnect),
	}

	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, ok := lookup(EnvPrefix + name)
		if !ok || value == "" {
			continue
		}
		if err := setters[name](value); err != nil {
			shown := value
			if name == "PASSWORD" {
				shown = ""
			}
			return &ConfigError{Field: EnvPrefix + name, Value: shown, Msg: "cannot parse", Err: err}
		}
	}

	return nil
}

// ResolveService fills Endpoint, and any empty credentials, from the named
// entry of the pg service file. It does nothing when Service is unset or an
// Endpoint is already configured.
func (c *Config) ResolveService() error {
	if c.Service == "" || c.Endpoint != "" {
		return nil
	}

	path := c.ServiceFile
	if path == "" {
		path = defaultPGFile("PGSERVICEFILE", ".pg_service.conf")
	}
	servicefile, err := pgservicefile.ReadServicefile(path)
	if err != nil {
		return &ConfigError{Field: "service_file", Value: path, Msg: "cannot read", Err: err}
	}
	service, err := servicefile.GetService(c.Service)
	if err != nil {
		return &ConfigError{Field: "service", Value: c.Service, Msg: "not found", Err: err}
	}

	s := service.Settings
	host := s["host"]
	if host == "" {
		return &ConfigError{Field: "service", Value: c.Service, Msg: "has no host"}
	}
	if port := s["port"]; port != "" {
		host = net.JoinHostPort(host, port)
	}
	c.Endpoint = host + "/" + s["dbname"]

	if c.Username == "" {
		c.Username = s["user"]
	}
	if c.Password == "" {
		c.Password = s["password"]
	}
	if mode, ok := s["sslmode"]; ok && (c.SSLMode == "" || c.SSLMode == DefaultSSLMode) {
		c.SSLMode = mode
	}

	return nil
}

// ResolvePassword looks the password up in the passfile when none is set.
// A missing default passfile is not an error; a missing explicit one is.
func (c *Config) ResolvePassword() error {
	if c.Password != "" {
		return nil
	}
	ep, err := ParseEndpoint(c.Endpoint)
	if err != nil {
		// Validate reports it.
		return nil
	}

	path := c.Passfile
	if path == "" {
		path = defaultPGFile("PGPASSFILE", ".pgpass")
	}
	passfile, err := pgpassfile.ReadPassfile(path)
	if err != nil {
		if c.Passfile != "" {
			return &ConfigError{Field: "passfile", Value: path, Msg: "cannot read", Err: err}
		}
		return nil
	}

	c.Password = passfile.FindPassword(ep.Host, strconv.Itoa(int(ep.Port)), ep.Database, c.Username)
	return nil
}

func defaultPGFile(envName, name string) string {
	if path := os.Getenv(envName); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, name)
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = i
		return nil
	}
}

func setInt32(dst *int32) func(string) error {
	return func(v string) error {
		i, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return err
		}
		*dst = int32(i)
		return nil
	}
}

func setDuration(dst *Duration) func(string) error {
	return func(v string) error {
		return dst.UnmarshalText([]byte(v))
	}
}
