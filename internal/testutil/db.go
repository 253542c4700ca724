// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"courtbook/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// NewTestDB returns a migrated in-memory SQLite database private to the test.
// Every pooled connection shares the same database through the shared cache.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on",
		nameReplacer.Replace(t.Name()), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}
