package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/token_locker/model"
	"github.com/token_locker/repository"
	"gorm.io/gorm"
)

// AccountService exposes ledger balances and, in development, direct funding.
type AccountService struct {
	db     *gorm.DB
	ledger Ledger
	logger log.Logger
}

func NewAccountService(db *gorm.DB, ledger Ledger) *AccountService {
	return &AccountService{
		db:     db,
		ledger: ledger,
		logger: log.New("service", "accounts"),
	}
}

// 查询账户余额
func (s *AccountService) GetBalance(ctx context.Context, owner, asset common.Address) (common.Address, uint64, error) {
	address := DeriveAssociatedAccount(owner, asset)
	balance, err := s.ledger.Balance(s.db.WithContext(ctx), address)
	return address, balance, err
}

func (s *AccountService) GetAccount(ctx context.Context, address common.Address) (*model.TokenAccount, error) {
	return s.ledger.Account(s.db.WithContext(ctx), address)
}

// Deposit credits owner's associated account with amount of asset, opening it
// if needed. It stands in for an external deposit and is only routed in
// development.
func (s *AccountService) Deposit(ctx context.Context, owner, asset common.Address, amount uint64) (*model.TokenAccount, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > MaxStorable {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, amount, MaxStorable)
	}
	var acct *model.TokenAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		address, err := s.ledger.OpenAccount(tx, owner, asset)
		if err != nil {
			return err
		}
		acct, err = s.ledger.Account(tx, address)
		if err != nil {
			return err
		}
		next, err := checkedAdd(acct.Amount, amount)
		if err != nil {
			return err
		}
		acct.Amount = next
		return repository.NewAccountRepository(tx).UpdateAmount(acct.Address, next)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Development deposit", "account", acct.Address, "asset", acct.Asset, "amount", amount)
	return acct, nil
}
