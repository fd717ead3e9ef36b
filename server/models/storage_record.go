package models

import (
	"errors"

	"gorm.io/gorm"
)

var ErrRecordNotFound = gorm.ErrRecordNotFound

// StorageRecord is a whole JSON document persisted under a versioned storage
// key e.g. the user settings or the login session. Records are always written
// wholesale, never patched.
type StorageRecord struct {
	BaseModel
	Key     string `json:"key" gorm:"not null;unique"`
	Payload string `json:"payload"`
}

func FindRecord(key string) (*StorageRecord, error) {
	record := StorageRecord{}
	err := db.First(&record, "key = ?", key).Error
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func UpsertRecord(key, payload string) error {
	record := StorageRecord{}

	err := db.First(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(&StorageRecord{Key: key, Payload: payload}).Error
	}

	if err != nil {
		return err
	}

	return db.Model(&record).Update("payload", payload).Error
}

func DeleteRecord(key string) error {
	return db.Where("key = ?", key).Delete(&StorageRecord{}).Error
}
