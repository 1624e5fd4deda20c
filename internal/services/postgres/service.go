// Package postgres provides PostgreSQL dump operations.
package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fgeck/dbbackup/internal/artifact"
	"github.com/fgeck/dbbackup/internal/dsn"
	apperr "github.com/fgeck/dbbackup/internal/errors"
	"github.com/fgeck/dbbackup/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultBinary is the dump tool used when none is configured.
const DefaultBinary = "pg_dump"

// Service defines the interface for PostgreSQL dump operations.
type Service interface {
	Backup(ctx context.Context, connString, dst string, gzip bool) (*models.BackupResult, error)
}

// Process is a started dump process. Stdout and Stderr must be read to EOF
// before Wait is called.
type Process struct {
	Stdout io.Reader
	Stderr io.Reader
	Wait   func() (exitCode int, err error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Start(ctx context.Context, env []string, name string, args ...string) (*Process, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Start spawns name with env appended to the current environment. The
// process and everything it spawned are killed when ctx is done.
func (e *DefaultExecutor) Start(ctx context.Context, env []string, name string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	killProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", apperr.ErrSubprocessSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", apperr.ErrSubprocessSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperr.ErrSubprocessSpawn, name, err)
	}

	return &Process{
		Stdout: stdout,
		Stderr: stderr,
		Wait: func() (int, error) {
			err := cmd.Wait()
			if err == nil {
				return 0, nil
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), nil
			}
			return -1, err
		},
	}, nil
}

// Impl implements the PostgreSQL Service interface.
type Impl struct {
	executor CommandExecutor
	fs       afero.Fs
	binary   string
	timeout  time.Duration
	logger   zerolog.Logger
}

// New creates a new PostgreSQL service.
func New(logger zerolog.Logger, cfg models.Settings) *Impl {
	return NewWithExecutor(logger, cfg, &DefaultExecutor{})
}

// NewWithExecutor creates a new PostgreSQL service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, cfg models.Settings, executor CommandExecutor) *Impl {
	binary := cfg.DumpBinary
	if binary == "" {
		binary = DefaultBinary
	}
	return &Impl{
		executor: executor,
		fs:       afero.NewOsFs(),
		binary:   binary,
		timeout:  cfg.DumpTimeout,
		logger:   logger,
	}
}

// Backup runs the dump tool against connString and streams its output to dst.
// The artifact only appears at dst once the output is fully written and the
// dump tool exited with code 0.
//
//nolint:gocognit,gocyclo // failure surfaces of the subprocess and the stream are checked in order
func (s *Impl) Backup(ctx context.Context, connString, dst string, gzip bool) (*models.BackupResult, error) {
	start := time.Now()
	info := dsn.Parse(connString)
	command := filepath.Base(s.binary)

	s.logger.Info().
		Str("host", info.Host).
		Str("port", info.Port).
		Str("database", info.Database).
		Str("output", dst).
		Bool("gzip", gzip).
		Msg("starting PostgreSQL dump")

	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	w, err := artifact.Create(s.fs, dst, gzip)
	if err != nil {
		return nil, err
	}
	defer func() { _ = w.Abort() }()

	proc, err := s.executor.Start(runCtx, BuildEnv(info), s.binary, BuildArgs(info)...)
	if err != nil {
		if !errors.Is(err, apperr.ErrSubprocessSpawn) {
			err = fmt.Errorf("%w: %s: %w", apperr.ErrSubprocessSpawn, command, err)
		}
		return nil, err
	}

	var stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		if _, err := io.Copy(w, proc.Stdout); err != nil {
			// Stop the dump so its stderr closes and Wait returns.
			cancel()
			return err
		}
		return nil
	})
	g.Go(func() error {
		if _, err := io.Copy(&stderr, proc.Stderr); err != nil {
			return apperr.NewStreamError("read stderr", command, err)
		}
		return nil
	})

	copyErr := g.Wait()
	exitCode, waitErr := proc.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: %s did not finish within %s", apperr.ErrDumpTimeout, command, s.timeout)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if copyErr != nil {
		var streamErr *apperr.StreamError
		if !errors.As(copyErr, &streamErr) {
			copyErr = apperr.NewStreamError("read stdout", command, copyErr)
		}
		return nil, copyErr
	}
	if waitErr != nil {
		return nil, fmt.Errorf("waiting for %s: %w", command, waitErr)
	}
	if exitCode != 0 {
		s.logger.Debug().
			Int("exit_code", exitCode).
			Str("stderr", stderr.String()).
			Msg("dump process failed")
		return nil, apperr.NewSubprocessError(command, exitCode, stderr.String())
	}

	size, err := w.Commit()
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
		Msg("PostgreSQL dump completed")

	return result, nil
}

func (s *Impl) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// BuildArgs returns the dump tool arguments. Empty fields are left out so the
// tool falls back to its own defaults.
func BuildArgs(info models.ConnectionInfo) []string {
	var args []string
	if info.Host != "" {
		args = append(args, "-h", info.Host)
	}
	if info.Port != "" {
		args = append(args, "-p", info.Port)
	}
	if info.User != "" {
		args = append(args, "-U", info.User)
	}
	if info.Database != "" {
		args = append(args, "-d", info.Database)
	}
	return args
}

// BuildEnv returns the extra environment for the dump process. The password
// never appears in the argument list.
func BuildEnv(info models.ConnectionInfo) []string {
	env := []string{}
	if info.Password != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", info.Password))
	}
	return env
}
