// Package sqlite backs up an embedded SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fgeck/dbbackup/internal/artifact"
	apperr "github.com/fgeck/dbbackup/internal/errors"
	"github.com/fgeck/dbbackup/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	_ "modernc.org/sqlite" // SQLite driver
)

// Service defines the interface for SQLite backups.
type Service interface {
	Backup(ctx context.Context, src, dst string, gzip bool) (*models.BackupResult, error)
}

// Checkpointer flushes the write-ahead log into the main database file.
type Checkpointer interface {
	Checkpoint(ctx context.Context, dbPath string) error
}

// DefaultCheckpointer runs a TRUNCATE checkpoint through the sqlite driver.
type DefaultCheckpointer struct{}

// Checkpoint opens the database, checkpoints the WAL and closes the connection.
func (DefaultCheckpointer) Checkpoint(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Impl implements the SQLite Service interface.
type Impl struct {
	fs           afero.Fs
	checkpointer Checkpointer
	logger       zerolog.Logger
}

// New creates a new SQLite backup service.
func New(logger zerolog.Logger) *Impl {
	return NewWithDeps(logger, afero.NewOsFs(), DefaultCheckpointer{})
}

// NewWithDeps creates a new SQLite backup service with custom dependencies (for testing).
func NewWithDeps(logger zerolog.Logger, fs afero.Fs, checkpointer Checkpointer) *Impl {
	return &Impl{
		fs:           fs,
		checkpointer: checkpointer,
		logger:       logger,
	}
}

// Backup streams src into dst, gzip-compressed when requested.
func (s *Impl) Backup(ctx context.Context, src, dst string, gzip bool) (*models.BackupResult, error) {
	start := time.Now()

	info, err := s.fs.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrSourceNotFound, src)
		}
		return nil, apperr.NewStreamError("stat", src, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", apperr.ErrSourceNotFound, src)
	}

	s.logger.Info().
		Str("source", src).
		Str("output", dst).
		Bool("gzip", gzip).
		Msg("starting SQLite backup")

	if err := s.checkpoint(ctx, src); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(src)
	if err != nil {
		return nil, apperr.NewStreamError("open", src, err)
	}
	defer func() { _ = f.Close() }()

	size, err := artifact.Copy(ctx, s.fs, dst, f, gzip)
	if err != nil {
		return nil, err
	}

	result := &models.BackupResult{
		OutputPath: dst,
		SizeBytes:  size,
		Duration:   time.Since(start),
	}

	s.logger.Debug().
		Str("output", dst).
		Int64("size_bytes", size).
		Dur("duration", result.Duration).
		Msg("SQLite backup completed")

	return result, nil
}

// checkpoint only runs when a WAL sidecar exists, so a database without
// pending WAL pages is never opened.
func (s *Impl) checkpoint(ctx context.Context, src string) error {
	if s.checkpointer == nil {
		return nil
	}
	walExists, err := afero.Exists(s.fs, src+"-wal")
	if err != nil || !walExists {
		return nil
	}

	s.logger.Debug().Str("source", src).Msg("checkpointing write-ahead log")
	if err := s.checkpointer.Checkpoint(ctx, src); err != nil {
		return fmt.Errorf("WAL checkpoint failed: %w", err)
	}
	return nil
}
