// Package dbtest opens throwaway databases for tests.
package dbtest

import (
	"testing"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/geofence-backend/internal/db"
)

// Open returns an in-memory sqlite database closed with the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
