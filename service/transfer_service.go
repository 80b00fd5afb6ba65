package service

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/token_locker/model"
	"github.com/token_locker/repository"
	"gorm.io/gorm"
)

// TransferRequest moves Amount of Asset from one ledger account to another,
// authorized by the owner of From.
type TransferRequest struct {
	From      common.Address
	To        common.Address
	Asset     common.Address
	Amount    uint64
	Authority Authority
}

// AssetTransfer moves balances between accounts. Every call runs on the
// transaction handle of the operation that issues it, so a failed operation
// leaves no transfer behind.
type AssetTransfer interface {
	Transfer(tx *gorm.DB, req TransferRequest) error
	// OpenAccount returns the associated account of (owner, asset), creating an
	// empty one when missing.
	OpenAccount(tx *gorm.DB, owner, asset common.Address) (common.Address, error)
	// CreateAccount is OpenAccount that fails with ErrAccountExists.
	CreateAccount(tx *gorm.DB, owner, asset common.Address) (common.Address, error)
	Account(tx *gorm.DB, address common.Address) (*model.TokenAccount, error)
}

// NativeBalances mutates native balances directly, for records that hold
// their balance at their own address.
type NativeBalances interface {
	Balance(tx *gorm.DB, address common.Address) (uint64, error)
	Credit(tx *gorm.DB, address common.Address, amount uint64) error
	Debit(tx *gorm.DB, address common.Address, amount uint64, authority Authority) error
}

// Ledger is the full account surface the lock and fee services depend on.
type Ledger interface {
	AssetTransfer
	NativeBalances
}

// LedgerTransfer keeps balances in the token_accounts table.
type LedgerTransfer struct {
	logger log.Logger
}

func NewLedgerTransfer() *LedgerTransfer {
	return &LedgerTransfer{logger: log.New("service", "ledger")}
}

func (l *LedgerTransfer) Transfer(tx *gorm.DB, req TransferRequest) error {
	if req.Amount == 0 {
		return ErrInvalidAmount
	}
	accounts := repository.NewAccountRepository(tx)
	from, err := findAccount(accounts, req.From)
	if err != nil {
		return err
	}
	if err := checkAuthority(from, req.Authority); err != nil {
		return err
	}
	to, err := findAccount(accounts, req.To)
	if err != nil {
		return err
	}
	for _, acct := range []*model.TokenAccount{from, to} {
		if common.HexToAddress(acct.Asset) != req.Asset {
			return fmt.Errorf("%w: account %s holds %s, transfer is %s", ErrAssetMismatch, acct.Address, acct.Asset, req.Asset.Hex())
		}
	}
	if req.From == req.To {
		if from.Amount < req.Amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, from.Amount, req.Amount)
		}
		return nil
	}

	fromAmount, err := checkedSub(from.Amount, req.Amount)
	if err != nil {
		return err
	}
	toAmount, err := checkedAdd(to.Amount, req.Amount)
	if err != nil {
		return err
	}
	if err := accounts.UpdateAmount(from.Address, fromAmount); err != nil {
		return err
	}
	if err := accounts.UpdateAmount(to.Address, toAmount); err != nil {
		return err
	}
	l.logger.Debug("Ledger transfer", "from", from.Address, "to", to.Address, "asset", req.Asset, "amount", req.Amount, "authority", req.Authority.Kind())
	return nil
}

func (l *LedgerTransfer) OpenAccount(tx *gorm.DB, owner, asset common.Address) (common.Address, error) {
	address := DeriveAssociatedAccount(owner, asset)
	accounts := repository.NewAccountRepository(tx)
	if _, err := accounts.Find(address.Hex()); err == nil {
		return address, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return common.Address{}, err
	}
	return l.create(accounts, address, owner, asset)
}

func (l *LedgerTransfer) CreateAccount(tx *gorm.DB, owner, asset common.Address) (common.Address, error) {
	address := DeriveAssociatedAccount(owner, asset)
	accounts := repository.NewAccountRepository(tx)
	if _, err := accounts.Find(address.Hex()); err == nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrAccountExists, address.Hex())
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return common.Address{}, err
	}
	return l.create(accounts, address, owner, asset)
}

func (l *LedgerTransfer) create(accounts *repository.AccountRepository, address, owner, asset common.Address) (common.Address, error) {
	acct := &model.TokenAccount{
		Address: address.Hex(),
		Owner:   owner.Hex(),
		Asset:   asset.Hex(),
	}
	if err := accounts.Create(acct); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.Address{}, fmt.Errorf("%w: %s", ErrAccountExists, address.Hex())
		}
		return common.Address{}, err
	}
	l.logger.Debug("Opened ledger account", "account", acct.Address, "owner", acct.Owner, "asset", acct.Asset)
	return address, nil
}

func (l *LedgerTransfer) Account(tx *gorm.DB, address common.Address) (*model.TokenAccount, error) {
	return findAccount(repository.NewAccountRepository(tx), address)
}

func (l *LedgerTransfer) Balance(tx *gorm.DB, address common.Address) (uint64, error) {
	acct, err := findAccount(repository.NewAccountRepository(tx), address)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return acct.Amount, nil
}

func (l *LedgerTransfer) Credit(tx *gorm.DB, address common.Address, amount uint64) error {
	accounts := repository.NewAccountRepository(tx)
	acct, err := findAccount(accounts, address)
	if err != nil {
		return err
	}
	if !IsNative(common.HexToAddress(acct.Asset)) {
		return fmt.Errorf("%w: account %s is not a native balance", ErrAssetMismatch, acct.Address)
	}
	next, err := checkedAdd(acct.Amount, amount)
	if err != nil {
		return err
	}
	return accounts.UpdateAmount(acct.Address, next)
}

func (l *LedgerTransfer) Debit(tx *gorm.DB, address common.Address, amount uint64, authority Authority) error {
	accounts := repository.NewAccountRepository(tx)
	acct, err := findAccount(accounts, address)
	if err != nil {
		return err
	}
	if err := checkAuthority(acct, authority); err != nil {
		return err
	}
	if !IsNative(common.HexToAddress(acct.Asset)) {
		return fmt.Errorf("%w: account %s is not a native balance", ErrAssetMismatch, acct.Address)
	}
	next, err := checkedSub(acct.Amount, amount)
	if err != nil {
		return err
	}
	return accounts.UpdateAmount(acct.Address, next)
}

func findAccount(accounts *repository.AccountRepository, address common.Address) (*model.TokenAccount, error) {
	acct, err := accounts.FindForUpdate(address.Hex())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address.Hex())
		}
		return nil, err
	}
	return acct, nil
}

func checkAuthority(acct *model.TokenAccount, authority Authority) error {
	if authority == nil || common.HexToAddress(acct.Owner) != authority.Address() {
		return fmt.Errorf("%w: account %s", ErrUnauthorizedAuthority, acct.Address)
	}
	return nil
}
