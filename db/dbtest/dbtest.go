// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/KAsare1/Gigstage-server/db"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated SQLite database in the test's temp dir.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gigstage.db")
	conn, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection serialises writers; SQLite would otherwise report
	// busy errors to concurrent tests.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return conn
}

// MustCreate inserts each record or fails the test.
func MustCreate(t *testing.T, conn *gorm.DB, records ...interface{}) {
	t.Helper()
	for _, r := range records {
		if err := conn.Create(r).Error; err != nil {
			t.Fatalf("create %T: %v", r, err)
		}
	}
}
