// Package config loads the tool settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fgeck/dbbackup/internal/models"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Setting keys. Each can also be set as DBBACKUP_<KEY> in the environment.
const (
	KeySchema         = "schema"
	KeyDatabaseURLEnv = "database_url_env"
	KeyOutput         = "output"
	KeyPGDump         = "pg_dump"
	KeyDumpTimeout    = "dump_timeout"
)

// Defaults.
const (
	DefaultSchemaPath     = "prisma/schema.prisma"
	DefaultDatabaseURLEnv = "DATABASE_URL"
	DefaultOutput         = "./backups"
	DefaultPGDump         = "pg_dump"
	DefaultDumpTimeout    = time.Hour
)

// Parser handles settings from defaults, an optional config file, the
// environment and command-line flags, in increasing precedence.
type Parser struct {
	v       *viper.Viper
	environ func() []string
}

// NewParser creates a new configuration parser reading the process environment.
func NewParser() *Parser {
	return NewParserWithEnviron(os.Environ)
}

// NewParserWithEnviron creates a parser with a custom environment source (for testing).
func NewParserWithEnviron(environ func() []string) *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DBBACKUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeySchema, DefaultSchemaPath)
	v.SetDefault(KeyDatabaseURLEnv, DefaultDatabaseURLEnv)
	v.SetDefault(KeyOutput, DefaultOutput)
	v.SetDefault(KeyPGDump, DefaultPGDump)
	v.SetDefault(KeyDumpTimeout, DefaultDumpTimeout)

	return &Parser{v: v, environ: environ}
}

// BindFlag lets a command-line flag override key when it was set.
func (p *Parser) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag to bind for %s", key)
	}
	if err := p.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("binding flag %s: %w", flag.Name, err)
	}
	return nil
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.Settings, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Settings, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

// Load resolves configuration without a config file.
func (p *Parser) Load() (*models.Settings, error) {
	return p.parse()
}

func (p *Parser) parse() (*models.Settings, error) {
	env := environMap(p.environ())

	timeout, err := cast.ToDurationE(p.v.Get(KeyDumpTimeout))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyDumpTimeout, err)
	}

	cfg := &models.Settings{
		SchemaPath:      p.expandEnv(p.v.GetString(KeySchema), env),
		DatabaseURLEnv:  p.v.GetString(KeyDatabaseURLEnv),
		Env:             env,
		OutputDirectory: p.expandEnv(p.v.GetString(KeyOutput), env),
		DumpBinary:      p.expandEnv(p.v.GetString(KeyPGDump), env),
		DumpTimeout:     timeout,
	}
	cfg.DatabaseURL = env[cfg.DatabaseURLEnv]

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string, env map[string]string) string {
	return os.Expand(s, func(name string) string { return env[name] })
}

func environMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.Settings) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.DatabaseURLEnv == "" {
		return fmt.Errorf("%s must not be empty", KeyDatabaseURLEnv)
	}

	if cfg.OutputDirectory == "" {
		return fmt.Errorf("%s must not be empty", KeyOutput)
	}

	if cfg.DumpBinary == "" {
		return fmt.Errorf("%s must not be empty", KeyPGDump)
	}

	if cfg.DumpTimeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyDumpTimeout)
	}

	return nil
}
