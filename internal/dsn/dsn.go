// Package dsn parses and classifies database connection strings.
package dsn

import (
	"net/url"
	"strings"

	"github.com/fgeck/dbbackup/internal/models"
)

// Parse splits a connection URL into its parts. It never fails: an
// unparseable URL yields an empty ConnectionInfo.
func Parse(raw string) models.ConnectionInfo {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return models.ConnectionInfo{}
	}

	info := models.ConnectionInfo{
		Protocol: u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if u.Opaque != "" {
		info.Database = u.Opaque
	}
	if u.User != nil {
		info.User = u.User.Username()
		if pwd, ok := u.User.Password(); ok {
			info.Password = pwd
		}
	}

	return info
}

// Classify returns the provider implied by the connection string's scheme.
func Classify(raw string) models.Provider {
	scheme, _, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return models.ProviderUnknown
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return models.ProviderPostgreSQL
	case "file", "sqlite":
		return models.ProviderSQLite
	default:
		return models.ProviderUnknown
	}
}

// SQLitePath extracts the file path from a "file:" or "sqlite:" URL,
// dropping any query parameters.
func SQLitePath(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)

	var rest string
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		rest = s[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		rest = s[len("sqlite:"):]
	case strings.HasPrefix(lower, "file:"):
		rest = s[len("file:"):]
	default:
		return "", false
	}

	if idx := strings.Index(rest, "?"); idx >= 0 {
		rest = rest[:idx]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Redact hides the password of a connection URL for display.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	return u.Redacted()
}
