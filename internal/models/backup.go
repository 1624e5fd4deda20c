package models

import "time"

// ConnectionInfo holds the parts of a server connection string.
// Any field may be empty when the URL is partial or malformed.
type ConnectionInfo struct {
	Protocol string
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// BackupRequest holds the invocation options for a single run.
type BackupRequest struct {
	OutputDirectory string
	BaseName        string // optional override, defaults to the provider name
	GZip            bool
	DryRun          bool
}

// Detection is what the detector found about the application's database.
type Detection struct {
	Provider         Provider
	SQLitePath       string          // absolute path, sqlite only
	ConnectionString string          // postgresql only
	Connection       *ConnectionInfo // parsed ConnectionString, nil otherwise
	Source           string          // "schema", "env" or "" when nothing matched
}

// ResolvedPlan is the fully resolved backup plan. Dry-run prints it as JSON.
type ResolvedPlan struct {
	Provider         Provider `json:"provider"`
	SQLitePath       string   `json:"sqlitePath,omitempty"`
	ConnectionString string   `json:"connectionString,omitempty"`
	OutputPath       string   `json:"outputPath"`
	GZip             bool     `json:"gzip"`
}

// BackupResult holds the result of a completed backup.
type BackupResult struct {
	OutputPath string
	SizeBytes  int64
	Duration   time.Duration
}
