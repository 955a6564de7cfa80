// Package testutil provides an in-memory database with the notification schema.
package testutil

import (
	"testing"

	"opsdash/services/notification/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every table the notification service owns or reads.
var Models = []interface{}{
	&model.UserModel{},
	&model.NotificationModel{},
	&model.TemplateModel{},
	&model.PushSubscriptionModel{},
}

// NewDB opens a private in-memory SQLite database and migrates Models into it.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// every new connection to :memory: would see an empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(Models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts a row into the users table.
func SeedUser(t testing.TB, db *gorm.DB, id, username, role string) {
	t.Helper()
	if err := db.Create(&model.UserModel{ID: id, Username: username, Role: role}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}
