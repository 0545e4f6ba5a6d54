package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wavelength-fm/station-backend/pkg/logger"
)

func TestQueryLogReportsFailuresWithoutValues(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	conn, err := gorm.Open(sqlite.Open("file:querylog_failures?mode=memory&cache=shared"), &gorm.Config{
		Logger: newQueryLog(logg, 0),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = conn.Exec("INSERT INTO missing_table (donor_email) VALUES (?)", "ada@example.com").Error
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "db.query_failed")
	assert.Contains(t, out, "missing_table")
	assert.NotContains(t, out, "ada@example.com")
}

func TestQueryLogStaysQuietForExpectedOutcomes(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLog(logger.New(logger.Options{ServiceName: "test", Output: buf}), time.Hour)
	fc := func() (string, int64) { return "SELECT 1", 0 }

	q.Trace(context.Background(), time.Now(), fc, nil)
	q.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	q.Trace(context.Background(), time.Now(), fc, context.Canceled)
	assert.Empty(t, buf.String())

	q.Trace(context.Background(), time.Now().Add(-2*time.Hour), fc, nil)
	assert.Contains(t, buf.String(), "db.slow_query")

	buf.Reset()
	q.Trace(context.Background(), time.Now(), fc, errors.New("connection reset"))
	assert.Contains(t, buf.String(), "connection reset")
}

func TestSQLiteDSNAddsMissingPragmas(t *testing.T) {
	assert.Equal(t, "station.db?_foreign_keys=on&_busy_timeout=5000", sqliteDSN("station.db"))
	assert.Equal(t,
		"file:x?mode=memory&_foreign_keys=off&_busy_timeout=5000",
		sqliteDSN("file:x?mode=memory&_foreign_keys=off"))
}
