// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"io"
	"testing"

	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/database"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// New returns a fresh, migrated sqlite database private to t.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := database.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"}, logger)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
