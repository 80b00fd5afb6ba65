package repository

import (
	"context"

	"github.com/token_locker/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VaultRepository struct {
	db *gorm.DB
}

func NewVaultRepository(db *gorm.DB) *VaultRepository {
	return &VaultRepository{db: db}
}

func (r *VaultRepository) FindByAddress(address string) (*model.Vault, error) {
	var v model.Vault
	if err := r.db.Where("address = ?", address).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VaultRepository) FindForUpdate(address string) (*model.Vault, error) {
	var v model.Vault
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("address = ?", address).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VaultRepository) Exists(address string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Vault{}).Where("address = ?", address).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *VaultRepository) Create(v *model.Vault) error {
	return r.db.Create(v).Error
}

func (r *VaultRepository) UpdateLockedAmount(address string, amount uint64) error {
	return r.db.Model(&model.Vault{}).Where("address = ?", address).Update("locked_amount", amount).Error
}

func (r *VaultRepository) UpdateUnlockTime(address string, unlockTime uint64) error {
	return r.db.Model(&model.Vault{}).Where("address = ?", address).Update("unlock_time", unlockTime).Error
}

func (r *VaultRepository) ListByOwner(ctx context.Context, owner string, page, size int) ([]*model.Vault, int64, error) {
	var list []*model.Vault
	var total int64
	offset, limit := normalizePage(page, size)
	if err := r.db.WithContext(ctx).Model(&model.Vault{}).Where("owner = ?", owner).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("creation_time desc, address asc").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *VaultRepository) List(ctx context.Context, page, size int) ([]*model.Vault, int64, error) {
	var list []*model.Vault
	var total int64
	offset, limit := normalizePage(page, size)
	if err := r.db.WithContext(ctx).Model(&model.Vault{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).Order("creation_time desc, address asc").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *VaultRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Vault{}).Count(&count).Error
	return count, err
}

// CountActive counts vaults that still escrow a balance.
func (r *VaultRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Vault{}).Where("locked_amount > 0").Count(&count).Error
	return count, err
}
