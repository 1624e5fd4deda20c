package pathbuilder

import (
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/fgeck/dbbackup/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 7, 8, 9, 500, time.Local)
}

func TestFileName(t *testing.T) {
	now := fixedClock()

	tests := []struct {
		name     string
		base     string
		provider models.Provider
		gzip     bool
		expected string
	}{
		{"sqlite", "sqlite", models.ProviderSQLite, false, "sqlite-2024-03-05_07-08-09.db"},
		{"sqlite gzip", "sqlite", models.ProviderSQLite, true, "sqlite-2024-03-05_07-08-09.db.gz"},
		{"postgres", "postgresql", models.ProviderPostgreSQL, false, "postgresql-2024-03-05_07-08-09.sql"},
		{"postgres gzip custom base", "nightly", models.ProviderPostgreSQL, true, "nightly-2024-03-05_07-08-09.sql.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FileName(tt.base, tt.provider, tt.gzip, now))
		})
	}
}

func TestFileName_MatchesPattern(t *testing.T) {
	pattern := regexp.MustCompile(`^app-\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.(db|sql)(\.gz)?$`)

	for _, provider := range []models.Provider{models.ProviderSQLite, models.ProviderPostgreSQL} {
		for _, gz := range []bool{false, true} {
			name := FileName("app", provider, gz, time.Now())
			assert.Regexp(t, pattern, name)
		}
	}
}

func TestBuild_CreatesDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := NewWithFs(fs, fixedClock)

	path, err := b.Build("/srv/backups/nested", "sqlite", true, models.ProviderSQLite)

	require.NoError(t, err)
	assert.Equal(t, "/srv/backups/nested/sqlite-2024-03-05_07-08-09.db.gz", path)

	isDir, err := afero.IsDir(fs, "/srv/backups/nested")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestBuild_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := NewWithFs(fs, fixedClock)

	first, err := b.Build("/backups", "db", false, models.ProviderPostgreSQL)
	require.NoError(t, err)
	second, err := b.Build("/backups", "db", false, models.ProviderPostgreSQL)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuild_MkdirFails(t *testing.T) {
	b := NewWithFs(afero.NewReadOnlyFs(afero.NewMemMapFs()), fixedClock)

	_, err := b.Build("/backups", "db", false, models.ProviderSQLite)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output directory")
}

func TestResolve_NoSideEffects(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := NewWithFs(fs, fixedClock)

	path, err := b.Resolve("backups", "sqlite", false, models.ProviderSQLite)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "backups", filepath.Base(filepath.Dir(path)))

	exists, err := afero.Exists(fs, "backups")
	require.NoError(t, err)
	assert.False(t, exists)
}
