// Package models contains the data structures used throughout dbbackup.
package models

import "strings"

// Provider identifies the database engine backing the application.
type Provider string

// Supported providers.
const (
	ProviderSQLite     Provider = "sqlite"
	ProviderPostgreSQL Provider = "postgresql"
	ProviderUnknown    Provider = "unknown"
)

// ParseProvider maps a declared provider name to a Provider.
func ParseProvider(name string) Provider {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return ProviderSQLite
	case "postgresql", "postgres":
		return ProviderPostgreSQL
	default:
		return ProviderUnknown
	}
}

// Extension returns the artifact file extension for the provider.
func (p Provider) Extension() string {
	switch p {
	case ProviderSQLite:
		return ".db"
	case ProviderPostgreSQL:
		return ".sql"
	default:
		return ".bak"
	}
}

// Known reports whether a backup strategy exists for the provider.
func (p Provider) Known() bool {
	return p == ProviderSQLite || p == ProviderPostgreSQL
}

func (p Provider) String() string {
	if p == "" {
		return string(ProviderUnknown)
	}
	return string(p)
}
