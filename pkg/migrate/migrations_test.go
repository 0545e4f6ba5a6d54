package migrate_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/config"
	"github.com/wavelength-fm/station-backend/pkg/migrate"
)

func TestDonationsMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_donations_table.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS donations",
		"amount_minor BIGINT NOT NULL CHECK (amount_minor > 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_donations_payment_reference",
		"CHECK (payment_status IN ('pending', 'success', 'failed'))",
	} {
		assert.Containsf(t, content, sub, "missing expected statement %q", sub)
	}
}

func TestValidateDir(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))

	empty := t.TempDir()
	require.Error(t, migrate.ValidateDir(empty))

	bad := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bad, "1_x.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, migrate.ValidateDir(bad))
}

func TestValidateDirRejectsPostgresOnlySyntax(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nCREATE TABLE t (id BIGSERIAL, at TIMESTAMPTZ DEFAULT NOW());\n-- +goose Down\nDROP TABLE t;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_t.sql"), []byte(body), 0o644))

	err := migrate.ValidateDir(dir)
	require.Error(t, err)
	for _, want := range []string{"BIGSERIAL", "TIMESTAMPTZ", "NOW()"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateDirIgnoresComments(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- NOW() would break sqlite\nCREATE TABLE t (id UUID);\n-- +goose Down\nDROP TABLE t;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_t.sql"), []byte(body), 0o644))
	assert.NoError(t, migrate.ValidateDir(dir))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Donor Notes!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_donor_notes.sql"), path)
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestUpEmbeddedOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_up?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.UpEmbedded(context.Background(), sqlDB, goose.DialectSQLite3))

	for _, table := range []string{"donations", "webhook_deliveries", "outbox_events", "outbox_dlq"} {
		assert.Truef(t, conn.Migrator().HasTable(table), "expected table %s", table)
	}

	// applying twice is a no-op
	require.NoError(t, migrate.UpEmbedded(context.Background(), sqlDB, goose.DialectSQLite3))
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, goose.DialectSQLite3, migrate.DialectFor(config.DriverSQLite))
	assert.Equal(t, goose.DialectPostgres, migrate.DialectFor(config.DriverPostgres))
	assert.Equal(t, goose.DialectPostgres, migrate.DialectFor(""))
}

func TestMigratorMovesBetweenVersions(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_versions?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migrate.NewMigrator(sqlDB, goose.DialectSQLite3, nil)
	require.NoError(t, err)
	ctx := context.Background()

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, m.To(ctx, "20260301090000"))
	assert.True(t, conn.Migrator().HasTable("donations"))
	assert.False(t, conn.Migrator().HasTable("webhook_deliveries"))

	require.NoError(t, m.To(ctx, "20260301090200"))
	assert.True(t, conn.Migrator().HasTable("outbox_events"))

	require.NoError(t, m.Down(ctx))
	assert.False(t, conn.Migrator().HasTable("outbox_events"))
	assert.True(t, conn.Migrator().HasTable("webhook_deliveries"))

	var out bytes.Buffer
	require.NoError(t, m.Status(ctx, &out))
	assert.Contains(t, out.String(), "20260301090200")
	assert.Contains(t, out.String(), "pending")

	assert.Error(t, m.To(ctx, "latest"))
}

func TestNewMigratorRequiresDB(t *testing.T) {
	_, err := migrate.NewMigrator(nil, goose.DialectSQLite3, nil)
	assert.Error(t, err)
}
