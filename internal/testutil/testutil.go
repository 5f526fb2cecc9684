// Package testutil provides store fixtures shared by package tests.
package testutil

import (
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wishlist-bot/internal/database"
	"wishlist-bot/internal/models"
)

// NewDB opens a private in-memory SQLite database with the application schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Logger discards output so test runs stay quiet.
func Logger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// CreateUser inserts a user with the given telegram id.
func CreateUser(t *testing.T, db *gorm.DB, telegramID int64) models.User {
	t.Helper()

	user := models.User{
		TelegramID: telegramID,
		FirstName:  fmt.Sprintf("user%d", telegramID),
		Language:   models.DefaultLanguage,
		ThemeColor: models.DefaultThemeColor,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// Reload re-reads a user row, picking up counter changes.
func Reload(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return user
}
