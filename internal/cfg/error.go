package cfg

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ConfigError reports a malformed or missing connection parameter. It is fatal
// at initialization.
type ConfigError struct {
	Field string
	Value string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	sb := &strings.Builder{}
	sb.WriteString("invalid configuration")
	if e.Field != "" {
		fmt.Fprintf(sb, ": %s", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(sb, " `%s`", redactPW(e.Value))
	}
	fmt.Fprintf(sb, ": %s", e.Msg)
	if e.Err != nil {
		fmt.Fprintf(sb, " (%s)", e.Err.Error())
	}
	return sb.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	quotedDSN = regexp.MustCompile(`password='[^']*'`)
	plainDSN  = regexp.MustCompile(`password=[^ ]*`)
	// Everything up to the last @ of a scheme-less URL is user info.
	brokenURL = regexp.MustCompile(`^.*@`)
)

func redactPW(s string) string {
	if strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://") {
		if u, err := url.Parse(s); err == nil {
			return redactURL(u)
		}
	}
	s = quotedDSN.ReplaceAllLiteralString(s, "password=xxxxx")
	s = plainDSN.ReplaceAllLiteralString(s, "password=xxxxx")
	s = brokenURL.ReplaceAllLiteralString(s, "xxxxx@")
	return s
}

func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if _, pwSet := u.User.Password(); pwSet {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
