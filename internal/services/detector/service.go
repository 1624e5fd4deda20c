// Package detector works out which database engine backs the application.
package detector

import (
	"errors"
	"path/filepath"

	"github.com/fgeck/dbbackup/internal/dsn"
	"github.com/fgeck/dbbackup/internal/models"
	"github.com/fgeck/dbbackup/internal/schema"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultSQLiteURL is used when the schema declares sqlite without a url.
const DefaultSQLiteURL = "file:./dev.db"

// Service defines the interface for provider detection.
type Service interface {
	Detect(cfg models.Settings) models.Detection
}

// Impl implements the detector Service interface.
type Impl struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// New creates a new detector reading from the OS filesystem.
func New(logger zerolog.Logger) *Impl {
	return NewWithFs(logger, afero.NewOsFs())
}

// NewWithFs creates a new detector with a custom filesystem (for testing).
func NewWithFs(logger zerolog.Logger, fs afero.Fs) *Impl {
	return &Impl{
		fs:     fs,
		logger: logger,
	}
}

// Detect never fails. The schema file outranks the connection-string
// variable; when neither yields a provider the result is ProviderUnknown.
func (s *Impl) Detect(cfg models.Settings) models.Detection {
	if det, ok := s.fromSchema(cfg); ok {
		return det
	}

	if det, ok := s.fromEnv(cfg); ok {
		return det
	}

	s.logger.Debug().
		Str("schema", cfg.SchemaPath).
		Str("env", cfg.DatabaseURLEnv).
		Msg("no database provider detected")

	return models.Detection{Provider: models.ProviderUnknown}
}

func (s *Impl) fromSchema(cfg models.Settings) (models.Detection, bool) {
	if cfg.SchemaPath == "" {
		return models.Detection{}, false
	}

	schemaPath, err := filepath.Abs(cfg.SchemaPath)
	if err != nil {
		schemaPath = cfg.SchemaPath
	}

	f, err := s.fs.Open(schemaPath)
	if err != nil {
		s.logger.Debug().Str("schema", schemaPath).Err(err).Msg("schema file not readable")
		return models.Detection{}, false
	}
	defer func() { _ = f.Close() }()

	parsed, err := schema.Parse(f)
	if err != nil {
		s.logger.Warn().Str("schema", schemaPath).Err(err).Msg("failed to parse schema file")
		return models.Detection{}, false
	}

	ds, err := parsed.Datasource()
	if err != nil {
		return models.Detection{}, false
	}

	providerVal, err := ds.Get("provider")
	if err != nil {
		return models.Detection{}, false
	}
	declared, err := providerVal.Resolve(cfg.LookupEnv)
	if err != nil {
		return models.Detection{}, false
	}

	provider := models.ParseProvider(declared)
	url := s.schemaURL(ds, cfg)

	switch provider {
	case models.ProviderSQLite:
		if url == "" {
			url = DefaultSQLiteURL
		}
		return models.Detection{
			Provider:   provider,
			SQLitePath: resolveSQLitePath(url, filepath.Dir(schemaPath)),
			Source:     "schema",
		}, true
	case models.ProviderPostgreSQL:
		if url == "" {
			url = cfg.DatabaseURL
		}
		return postgresDetection(url, "schema"), true
	default:
		s.logger.Warn().
			Str("schema", schemaPath).
			Str("provider", declared).
			Msg("unsupported provider declared in schema")
		return models.Detection{}, false
	}
}

// schemaURL resolves the datasource url, or "" when it is absent.
func (s *Impl) schemaURL(ds *schema.Block, cfg models.Settings) string {
	v, err := ds.Get("url")
	if err != nil {
		return ""
	}
	url, err := v.Resolve(cfg.LookupEnv)
	if err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			s.logger.Debug().Str("env", v.Text).Msg("datasource url variable is not set")
		}
		return ""
	}
	return url
}

func (s *Impl) fromEnv(cfg models.Settings) (models.Detection, bool) {
	if cfg.DatabaseURL == "" {
		return models.Detection{}, false
	}

	switch dsn.Classify(cfg.DatabaseURL) {
	case models.ProviderPostgreSQL:
		return postgresDetection(cfg.DatabaseURL, "env"), true
	case models.ProviderSQLite:
		cwd, err := filepath.Abs(".")
		if err != nil {
			cwd = "."
		}
		return models.Detection{
			Provider:   models.ProviderSQLite,
			SQLitePath: resolveSQLitePath(cfg.DatabaseURL, cwd),
			Source:     "env",
		}, true
	default:
		return models.Detection{}, false
	}
}

func postgresDetection(url, source string) models.Detection {
	det := models.Detection{
		Provider:         models.ProviderPostgreSQL,
		ConnectionString: url,
		Source:           source,
	}
	if url != "" {
		info := dsn.Parse(url)
		det.Connection = &info
	}
	return det
}

// resolveSQLitePath turns a sqlite url or bare path into an absolute path,
// relative paths being taken from baseDir.
func resolveSQLitePath(url, baseDir string) string {
	path, ok := dsn.SQLitePath(url)
	if !ok {
		path = url
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}
