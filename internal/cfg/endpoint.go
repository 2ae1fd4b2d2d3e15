package cfg

import (
	"errors"
	"math"
	"net"
	"strconv"
	"strings"
)

const DefaultPort uint16 = 5432

// Endpoint is the parsed form of host[:port]/database.
type Endpoint struct {
	Host     string
	Port     uint16
	Database string
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port))) + "/" + e.Database
}

// ParseEndpoint parses the canonical endpoint form host[:port]/database.
// Credentials, URL schemes and query parameters are rejected: user and
// password only ever come from their own fields.
func ParseEndpoint(s string) (Endpoint, error) {
	var ep Endpoint
	fail := func(msg string, err error) (Endpoint, error) {
		return Endpoint{}, &ConfigError{Field: "endpoint", Value: s, Msg: msg, Err: err}
	}

	if s == "" {
		return fail("is empty", nil)
	}
	if strings.Contains(s, "://") {
		return fail("must be host[:port]/database without a scheme", nil)
	}
	if strings.Contains(s, "@") {
		return fail("must not carry credentials, use username and password", nil)
	}
	if strings.ContainsAny(s, "?# \t") {
		return fail("must not contain query parameters or whitespace", nil)
	}

	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return fail("missing /database", nil)
	}
	hostPort, database := s[:slash], s[slash+1:]
	if database == "" || strings.Contains(database, "/") {
		return fail("invalid database name", nil)
	}
	ep.Database = database

	if isHostOnly(hostPort) {
		ep.Host = strings.Trim(hostPort, "[]")
		ep.Port = DefaultPort
	} else {
		h, p, err := net.SplitHostPort(hostPort)
		if err != nil {
			return fail("failed to split host:port", err)
		}
		port, err := parsePort(p)
		if err != nil {
			return fail("invalid port", err)
		}
		ep.Host = h
		ep.Port = port
	}
	if ep.Host == "" {
		return fail("missing host", nil)
	}

	return ep, nil
}

func isHostOnly(host string) bool {
	return net.ParseIP(strings.Trim(host, "[]")) != nil || !strings.Contains(host, ":")
}

func parsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > math.MaxUint16 {
		return 0, errors.New("outside range")
	}
	return uint16(port), nil
}
