package main

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenDB opens postgres for postgres:// URLs and a sqlite file otherwise.
func OpenDB(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Quiz{},
		&Coin{},
		&CoinQuestion{},
		&UserProgress{},
		&QuizAttempt{},
		&WalletTransaction{},
		&ClaimedReward{},
		&Notification{},
		&GameSession{},
	)
}

func IsQuizTableEmpty(db *gorm.DB) (bool, error) {
	var count int64
	if err := db.Model(&Quiz{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}
