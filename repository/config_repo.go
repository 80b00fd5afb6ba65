package repository

import (
	"github.com/token_locker/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) Find(address string) (*model.ServiceConfig, error) {
	var cfg model.ServiceConfig
	if err := r.db.Where("address = ?", address).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindForUpdate row-locks the singleton so fee-affecting operations serialize on it.
func (r *ConfigRepository) FindForUpdate(address string) (*model.ServiceConfig, error) {
	var cfg model.ServiceConfig
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("address = ?", address).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *ConfigRepository) Create(cfg *model.ServiceConfig) error {
	return r.db.Create(cfg).Error
}

func (r *ConfigRepository) UpdateCollectedFees(address string, fees uint64) error {
	return r.db.Model(&model.ServiceConfig{}).Where("address = ?", address).Update("collected_fees", fees).Error
}

func (r *ConfigRepository) UpdateFeeAsset(address string, asset string) error {
	return r.db.Model(&model.ServiceConfig{}).Where("address = ?", address).Update("fee_asset", asset).Error
}
