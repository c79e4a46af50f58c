package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/EmpoweredVote/geofence-backend/internal/db"
)

func TestOpenMemory(t *testing.T) {
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	var one int
	require.NoError(t, conn.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestOpenRejectsBadOptions(t *testing.T) {
	_, err := db.Open(db.Options{Driver: "sqlite"})
	assert.Error(t, err)

	_, err = db.Open(db.Options{Driver: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, db.ParseLogLevel("debug"))
	assert.Equal(t, logger.Error, db.ParseLogLevel("error"))
	assert.Equal(t, logger.Warn, db.ParseLogLevel(""))
}
