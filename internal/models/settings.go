package models

import "time"

// Settings is the tool configuration, resolved once per run and passed by value.
type Settings struct {
	SchemaPath      string            // schema file declaring the datasource
	DatabaseURL     string            // value of the connection-string variable
	DatabaseURLEnv  string            // name of the connection-string variable
	Env             map[string]string // environment snapshot for env("...") lookups
	OutputDirectory string
	DumpBinary      string
	DumpTimeout     time.Duration // 0 disables the watchdog
}

// LookupEnv returns a value from the environment snapshot.
func (s Settings) LookupEnv(name string) (string, bool) {
	if name == s.DatabaseURLEnv && s.DatabaseURL != "" {
		return s.DatabaseURL, true
	}
	v, ok := s.Env[name]
	return v, ok
}
