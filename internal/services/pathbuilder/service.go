// Package pathbuilder computes artifact paths.
package pathbuilder

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fgeck/dbbackup/internal/models"
	"github.com/spf13/afero"
)

// TimestampLayout renders local time to second precision.
const TimestampLayout = "2006-01-02_15-04-05"

// Service defines the interface for artifact path construction.
type Service interface {
	Resolve(dir, base string, gzip bool, provider models.Provider) (string, error)
	Build(dir, base string, gzip bool, provider models.Provider) (string, error)
}

// Impl implements the pathbuilder Service interface.
type Impl struct {
	fs  afero.Fs
	now func() time.Time
}

// New creates a path builder on the OS filesystem and wall clock.
func New() *Impl {
	return NewWithFs(afero.NewOsFs(), time.Now)
}

// NewWithFs creates a path builder with a custom filesystem and clock (for testing).
func NewWithFs(fs afero.Fs, now func() time.Time) *Impl {
	return &Impl{
		fs:  fs,
		now: now,
	}
}

// Resolve returns the absolute artifact path without touching the filesystem.
func (s *Impl) Resolve(dir, base string, gzip bool, provider models.Provider) (string, error) {
	path, err := filepath.Abs(filepath.Join(dir, FileName(base, provider, gzip, s.now())))
	if err != nil {
		return "", fmt.Errorf("resolving output path: %w", err)
	}
	return path, nil
}

// Build creates dir if needed and returns the absolute artifact path.
// Two runs within the same second into the same dir get the same path.
func (s *Impl) Build(dir, base string, gzip bool, provider models.Provider) (string, error) {
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return s.Resolve(dir, base, gzip, provider)
}

// FileName returns "<base>-<timestamp><ext>[.gz]".
func FileName(base string, provider models.Provider, gzip bool, now time.Time) string {
	name := fmt.Sprintf("%s-%s%s", base, now.Local().Format(TimestampLayout), provider.Extension())
	if gzip {
		name += ".gz"
	}
	return name
}
