package repository

import (
	"context"

	"github.com/token_locker/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Find(address string) (*model.TokenAccount, error) {
	var acct model.TokenAccount
	if err := r.db.Where("address = ?", address).First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *AccountRepository) FindForUpdate(address string) (*model.TokenAccount, error) {
	var acct model.TokenAccount
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("address = ?", address).First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *AccountRepository) Create(acct *model.TokenAccount) error {
	return r.db.Create(acct).Error
}

func (r *AccountRepository) UpdateAmount(address string, amount uint64) error {
	return r.db.Model(&model.TokenAccount{}).Where("address = ?", address).Update("amount", amount).Error
}

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ev *model.LockEvent) error {
	return r.db.Create(ev).Error
}

func (r *EventRepository) ListByVault(ctx context.Context, vault string) ([]*model.LockEvent, error) {
	var list []*model.LockEvent
	if err := r.db.WithContext(ctx).Where("vault = ?", vault).Order("id asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
