// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"gorm.io/gorm"

	"csesa-backend/internal/core/database"
	"csesa-backend/internal/repo"
	"csesa-backend/pkg/utils"
)

// NewDB 每个测试一个独立的内存 sqlite，已建表
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", utils.NewID()),
		MaxIdleConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db, repo.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
