package models

import (
	"log"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// InitializeTestDb swaps the package db for a fresh in-memory sqlite instance
func InitializeTestDb() {
	var err error

	db, err = gorm.Open(sqliteEncrypt.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		log.Panicf("failed to open test database: %v", err)
	}

	db.Migrator().DropTable(&StorageRecord{})
	db.AutoMigrate(&StorageRecord{})
}
