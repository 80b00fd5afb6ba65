package model

import (
	"gorm.io/gorm"
)

// helper: create tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ServiceConfig{}, &Vault{}, &TokenAccount{}, &LockEvent{})
}
