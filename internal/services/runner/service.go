// Package runner orchestrates a backup run.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	apperr "github.com/fgeck/dbbackup/internal/errors"
	"github.com/fgeck/dbbackup/internal/models"
	"github.com/fgeck/dbbackup/internal/services/detector"
	"github.com/fgeck/dbbackup/internal/services/pathbuilder"
	"github.com/fgeck/dbbackup/internal/services/postgres"
	"github.com/fgeck/dbbackup/internal/services/sqlite"
	"github.com/rs/zerolog"
)

// DefaultBaseName is used when no provider was detected and no name was given.
const DefaultBaseName = "db"

// Service defines the interface for the backup runner.
type Service interface {
	Run(ctx context.Context, req models.BackupRequest) (*Outcome, error)
}

// Outcome is what a run produced. Result is nil for a dry run.
type Outcome struct {
	Plan   models.ResolvedPlan
	Result *models.BackupResult
}

// Impl implements the runner Service interface.
type Impl struct {
	cfg         models.Settings
	detectorSvc detector.Service
	pathSvc     pathbuilder.Service
	sqliteSvc   sqlite.Service
	postgresSvc postgres.Service
	logger      zerolog.Logger
}

// New creates a new runner service.
func New(logger zerolog.Logger, cfg models.Settings) *Impl {
	return &Impl{
		cfg:         cfg,
		detectorSvc: detector.New(logger),
		pathSvc:     pathbuilder.New(),
		sqliteSvc:   sqlite.New(logger),
		postgresSvc: postgres.New(logger, cfg),
		logger:      logger,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	cfg models.Settings,
	detectorSvc detector.Service,
	pathSvc pathbuilder.Service,
	sqliteSvc sqlite.Service,
	postgresSvc postgres.Service,
) *Impl {
	return &Impl{
		cfg:         cfg,
		detectorSvc: detectorSvc,
		pathSvc:     pathSvc,
		sqliteSvc:   sqliteSvc,
		postgresSvc: postgresSvc,
		logger:      logger,
	}
}

// Run detects the provider, resolves the plan and, unless req.DryRun is set,
// executes the matching strategy. A dry run touches neither the output
// directory nor the database and succeeds even when nothing was detected.
func (s *Impl) Run(ctx context.Context, req models.BackupRequest) (*Outcome, error) {
	det := s.detectorSvc.Detect(s.cfg)

	s.logger.Debug().
		Str("provider", det.Provider.String()).
		Str("source", det.Source).
		Str("sqlite_path", det.SQLitePath).
		Msg("provider detection finished")

	base := baseName(req, det.Provider)

	if req.DryRun {
		path, err := s.pathSvc.Resolve(req.OutputDirectory, base, req.GZip, det.Provider)
		if err != nil {
			return nil, err
		}
		return &Outcome{Plan: newPlan(det, path, req.GZip)}, nil
	}

	if !det.Provider.Known() {
		return nil, fmt.Errorf("%w: no datasource in %s and $%s is not a sqlite or postgres url",
			apperr.ErrDetectionAmbiguous, s.cfg.SchemaPath, s.cfg.DatabaseURLEnv)
	}

	path, err := s.pathSvc.Build(req.OutputDirectory, base, req.GZip, det.Provider)
	if err != nil {
		return nil, err
	}
	plan := newPlan(det, path, req.GZip)

	s.logger.Info().
		Str("provider", plan.Provider.String()).
		Str("output", plan.OutputPath).
		Bool("gzip", plan.GZip).
		Msg("starting backup")

	result, err := s.execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("output", result.OutputPath).
		Str("size", humanize.Bytes(uint64(result.SizeBytes))). //nolint:gosec // file sizes are never negative
		Dur("duration", result.Duration).
		Msg("backup completed")

	return &Outcome{Plan: plan, Result: result}, nil
}

func (s *Impl) execute(ctx context.Context, plan models.ResolvedPlan) (*models.BackupResult, error) {
	start := time.Now()

	var (
		result *models.BackupResult
		err    error
	)
	switch plan.Provider {
	case models.ProviderSQLite:
		result, err = s.sqliteSvc.Backup(ctx, plan.SQLitePath, plan.OutputPath, plan.GZip)
	case models.ProviderPostgreSQL:
		result, err = s.postgresSvc.Backup(ctx, plan.ConnectionString, plan.OutputPath, plan.GZip)
	default:
		return nil, fmt.Errorf("%w: %s", apperr.ErrDetectionAmbiguous, plan.Provider)
	}
	if err != nil {
		return nil, err
	}

	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result, nil
}

func baseName(req models.BackupRequest, provider models.Provider) string {
	if req.BaseName != "" {
		return req.BaseName
	}
	if provider.Known() {
		return provider.String()
	}
	return DefaultBaseName
}

func newPlan(det models.Detection, outputPath string, gzip bool) models.ResolvedPlan {
	return models.ResolvedPlan{
		Provider:         det.Provider,
		SQLitePath:       det.SQLitePath,
		ConnectionString: det.ConnectionString,
		OutputPath:       outputPath,
		GZip:             gzip,
	}
}
