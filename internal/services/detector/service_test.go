package detector

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/fgeck/dbbackup/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaPath = "/app/prisma/schema.prisma"

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newDetector(t *testing.T, schemaContent string) *Impl {
	t.Helper()
	fs := afero.NewMemMapFs()
	if schemaContent != "" {
		require.NoError(t, afero.WriteFile(fs, schemaPath, []byte(schemaContent), 0o600))
	}
	return NewWithFs(testLogger(), fs)
}

func TestDetect_SchemaSQLite(t *testing.T) {
	d := newDetector(t, `
datasource db {
  provider = "sqlite"
  url      = "file:./dev.db"
}
`)

	det := d.Detect(models.Settings{SchemaPath: schemaPath})

	assert.Equal(t, models.ProviderSQLite, det.Provider)
	assert.Equal(t, "/app/prisma/dev.db", det.SQLitePath)
	assert.Equal(t, "schema", det.Source)
	assert.Empty(t, det.ConnectionString)
}

func TestDetect_SchemaSQLiteDefaultPath(t *testing.T) {
	d := newDetector(t, "datasource db {\n  provider = \"sqlite\"\n}\n")

	det := d.Detect(models.Settings{SchemaPath: schemaPath})

	assert.Equal(t, models.ProviderSQLite, det.Provider)
	assert.Equal(t, "/app/prisma/dev.db", det.SQLitePath)
}

func TestDetect_SchemaSQLiteAbsolutePath(t *testing.T) {
	d := newDetector(t, "datasource db {\n  provider = \"sqlite\"\n  url = \"file:/var/lib/app/data.db\"\n}\n")

	det := d.Detect(models.Settings{SchemaPath: schemaPath})

	assert.Equal(t, "/var/lib/app/data.db", det.SQLitePath)
}

func TestDetect_SchemaWinsOverEnv(t *testing.T) {
	d := newDetector(t, `
datasource db {
  provider = "postgresql"
  url      = "postgres://app:secret@db:5432/app"
}
`)

	det := d.Detect(models.Settings{
		SchemaPath:     schemaPath,
		DatabaseURLEnv: "DATABASE_URL",
		DatabaseURL:    "file:./dev.db",
	})

	assert.Equal(t, models.ProviderPostgreSQL, det.Provider)
	assert.Equal(t, "postgres://app:secret@db:5432/app", det.ConnectionString)
	assert.Empty(t, det.SQLitePath)
	require.NotNil(t, det.Connection)
	assert.Equal(t, "db", det.Connection.Host)
}

func TestDetect_SchemaPostgresEnvURL(t *testing.T) {
	d := newDetector(t, `
datasource db {
  provider = "postgresql"
  url      = env("PRIMARY_DB")
}
`)

	det := d.Detect(models.Settings{
		SchemaPath: schemaPath,
		Env:        map[string]string{"PRIMARY_DB": "postgresql://u@h/d"},
	})

	assert.Equal(t, models.ProviderPostgreSQL, det.Provider)
	assert.Equal(t, "postgresql://u@h/d", det.ConnectionString)
}

func TestDetect_SchemaPostgresFallsBackToDatabaseURL(t *testing.T) {
	d := newDetector(t, `
datasource db {
  provider = "postgresql"
  url      = env("DATABASE_URL")
}
`)

	det := d.Detect(models.Settings{
		SchemaPath:     schemaPath,
		DatabaseURLEnv: "DATABASE_URL",
		DatabaseURL:    "postgres://u:p@h:5432/d",
	})

	assert.Equal(t, models.ProviderPostgreSQL, det.Provider)
	assert.Equal(t, "postgres://u:p@h:5432/d", det.ConnectionString)
	assert.Equal(t, "schema", det.Source)
}

func TestDetect_SchemaPostgresWithoutURL(t *testing.T) {
	d := newDetector(t, "datasource db {\n  provider = \"postgresql\"\n}\n")

	det := d.Detect(models.Settings{SchemaPath: schemaPath})

	assert.Equal(t, models.ProviderPostgreSQL, det.Provider)
	assert.Empty(t, det.ConnectionString)
	assert.Nil(t, det.Connection)
}

func TestDetect_EnvFallbackPostgres(t *testing.T) {
	d := newDetector(t, "")

	det := d.Detect(models.Settings{
		SchemaPath:     schemaPath,
		DatabaseURLEnv: "DATABASE_URL",
		DatabaseURL:    "postgres://u:p@h:5432/d",
	})

	assert.Equal(t, models.ProviderPostgreSQL, det.Provider)
	assert.Equal(t, "env", det.Source)
	require.NotNil(t, det.Connection)
	assert.Equal(t, "h", det.Connection.Host)
	assert.Equal(t, "5432", det.Connection.Port)
	assert.Equal(t, "u", det.Connection.User)
	assert.Equal(t, "p", det.Connection.Password)
	assert.Equal(t, "d", det.Connection.Database)
}

func TestDetect_EnvFallbackSQLite(t *testing.T) {
	d := newDetector(t, "")

	det := d.Detect(models.Settings{DatabaseURL: "file:./data/app.db"})

	cwd, err := filepath.Abs(".")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderSQLite, det.Provider)
	assert.Equal(t, filepath.Join(cwd, "data", "app.db"), det.SQLitePath)
}

func TestDetect_UnsupportedSchemaProviderFallsThrough(t *testing.T) {
	d := newDetector(t, "datasource db {\n  provider = \"mysql\"\n}\n")

	det := d.Detect(models.Settings{
		SchemaPath:  schemaPath,
		DatabaseURL: "postgres://h/d",
	})

	assert.Equal(t, models.ProviderPostgreSQL, det.Provider)
	assert.Equal(t, "env", det.Source)
}

func TestDetect_MalformedSchemaFallsThrough(t *testing.T) {
	d := newDetector(t, "datasource db {\n  provider = \"sqlite\"\n")

	det := d.Detect(models.Settings{
		SchemaPath:  schemaPath,
		DatabaseURL: "postgres://h/d",
	})

	assert.Equal(t, models.ProviderPostgreSQL, det.Provider)
}

func TestDetect_Unknown(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		settings models.Settings
	}{
		{"nothing configured", "", models.Settings{}},
		{"schema missing", "", models.Settings{SchemaPath: schemaPath}},
		{"unrecognised env", "", models.Settings{DatabaseURL: "mysql://h/d"}},
		{"generator only", "generator client {\n  provider = \"prisma-client-js\"\n}\n", models.Settings{SchemaPath: schemaPath}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := newDetector(t, tt.schema).Detect(tt.settings)
			assert.Equal(t, models.ProviderUnknown, det.Provider)
			assert.Empty(t, det.SQLitePath)
			assert.Empty(t, det.ConnectionString)
		})
	}
}
