package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/token_locker/model"
	"github.com/token_locker/repository"
	"gorm.io/gorm"
)

// LockRequest describes a new lock. TokenAccount is the source of the
// principal for fungible locks and decides the locked asset; native locks
// draw from the owner's native balance and ignore it. FeeAccount defaults to
// the owner's associated account for the reference asset.
type LockRequest struct {
	Owner        common.Address
	TokenAccount common.Address
	FeeAccount   *common.Address
	Amount       uint64
	UnlockTime   uint64
	Seed         uint64
}

// LockService runs the vault lifecycle: create, extend, withdraw.
type LockService struct {
	db     *gorm.DB
	ledger Ledger
	fees   *FeeService
	clock  Clock
	logger log.Logger
}

func NewLockService(db *gorm.DB, ledger Ledger, fees *FeeService, clock Clock) *LockService {
	return &LockService{
		db:     db,
		ledger: ledger,
		fees:   fees,
		clock:  clock,
		logger: log.New("service", "locks"),
	}
}

// LockTokens escrows a fungible asset taken from req.TokenAccount.
func (s *LockService) LockTokens(ctx context.Context, req LockRequest) (*model.Vault, error) {
	return s.createLock(ctx, req, false)
}

// LockNativeTokens escrows native balance directly at the vault's address.
func (s *LockService) LockNativeTokens(ctx context.Context, req LockRequest) (*model.Vault, error) {
	return s.createLock(ctx, req, true)
}

func (s *LockService) createLock(ctx context.Context, req LockRequest, native bool) (*model.Vault, error) {
	now := unixNow(s.clock)
	if req.UnlockTime <= now {
		return nil, fmt.Errorf("%w: unlock %d, now %d", ErrInvalidUnlockTime, req.UnlockTime, now)
	}
	if req.UnlockTime > MaxStorable {
		return nil, fmt.Errorf("%w: unlock %d exceeds %d", ErrInvalidUnlockTime, req.UnlockTime, MaxStorable)
	}
	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if req.Amount > MaxStorable {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, req.Amount, MaxStorable)
	}
	if req.Seed > MaxStorable {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidSeed, req.Seed, MaxStorable)
	}
	owner := SignerAuthority(req.Owner)

	var vault *model.Vault
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		asset, source := NativeAsset, req.Owner
		if !native {
			acct, err := s.ledger.Account(tx, req.TokenAccount)
			if err != nil {
				return err
			}
			asset, source = common.HexToAddress(acct.Asset), req.TokenAccount
			if IsNative(asset) {
				return fmt.Errorf("%w: %s holds the native asset", ErrWrongAssetKind, acct.Address)
			}
		}
		address := DeriveVaultAddress(req.Owner, asset, req.Seed)
		vaults := repository.NewVaultRepository(tx)
		exists, err := vaults.Exists(address.Hex())
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrVaultExists, address.Hex())
		}

		// fee, then principal, then the record
		if err := s.fees.chargeFee(tx, owner, req.FeeAccount); err != nil {
			return err
		}
		if err := s.legFor(asset).deposit(tx, owner, source, address, asset, req.Amount); err != nil {
			return fmt.Errorf("principal transfer: %w", err)
		}
		vault = &model.Vault{
			Address:      address.Hex(),
			Owner:        req.Owner.Hex(),
			Asset:        asset.Hex(),
			LockedAmount: req.Amount,
			UnlockTime:   req.UnlockTime,
			CreationTime: now,
			Seed:         req.Seed,
		}
		if err := vaults.Create(vault); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrVaultExists, address.Hex())
			}
			return err
		}
		kind := model.EventLock
		if native {
			kind = model.EventLockNative
		}
		return recordEvent(tx, &model.LockEvent{
			Kind:       kind,
			Vault:      &vault.Address,
			Caller:     vault.Owner,
			Asset:      vault.Asset,
			Amount:     vault.LockedAmount,
			UnlockTime: vault.UnlockTime,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Vault locked", "vault", vault.Address, "owner", vault.Owner, "asset", vault.Asset, "amount", vault.LockedAmount, "unlock", vault.UnlockTime)
	return vault, nil
}

// WithdrawTokens releases a fungible vault to its owner once unlocked.
func (s *LockService) WithdrawTokens(ctx context.Context, caller, vault common.Address) (*model.Vault, uint64, error) {
	return s.withdraw(ctx, caller, vault, false)
}

// WithdrawNativeTokens releases a native vault to its owner once unlocked.
func (s *LockService) WithdrawNativeTokens(ctx context.Context, caller, vault common.Address) (*model.Vault, uint64, error) {
	return s.withdraw(ctx, caller, vault, true)
}

func (s *LockService) withdraw(ctx context.Context, caller, address common.Address, native bool) (*model.Vault, uint64, error) {
	now := unixNow(s.clock)
	var (
		vault  *model.Vault
		amount uint64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		vault, err = findVault(tx, address, true)
		if err != nil {
			return err
		}
		if err := requireVaultOwner(caller, vault, ErrUnauthorizedLocker); err != nil {
			return err
		}
		authority, err := vaultAuthorityFor(vault)
		if err != nil {
			return err
		}
		asset := common.HexToAddress(vault.Asset)
		if IsNative(asset) != native {
			return fmt.Errorf("%w: vault %s holds %s", ErrWrongAssetKind, vault.Address, vault.Asset)
		}
		if now < vault.UnlockTime {
			return fmt.Errorf("%w: unlocks at %d, now %d", ErrLockNotExpired, vault.UnlockTime, now)
		}
		if vault.LockedAmount == 0 {
			return ErrNoTokensToWithdraw
		}

		amount = vault.LockedAmount
		if err := repository.NewVaultRepository(tx).UpdateLockedAmount(vault.Address, 0); err != nil {
			return err
		}
		vault.LockedAmount = 0
		if err := s.legFor(asset).release(tx, authority, caller, asset, amount); err != nil {
			return fmt.Errorf("principal release: %w", err)
		}
		kind := model.EventWithdraw
		if native {
			kind = model.EventWithdrawNative
		}
		return recordEvent(tx, &model.LockEvent{
			Kind:       kind,
			Vault:      &vault.Address,
			Caller:     caller.Hex(),
			Asset:      vault.Asset,
			Amount:     amount,
			UnlockTime: vault.UnlockTime,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, 0, err
	}
	s.logger.Info("Vault withdrawn", "vault", vault.Address, "owner", vault.Owner, "amount", amount)
	return vault, amount, nil
}

// ExtendLockTime moves the unlock time later. It never moves it earlier.
func (s *LockService) ExtendLockTime(ctx context.Context, caller, address common.Address, newUnlockTime uint64) (*model.Vault, error) {
	now := unixNow(s.clock)
	var vault *model.Vault
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		vault, err = findVault(tx, address, true)
		if err != nil {
			return err
		}
		if err := requireVaultOwner(caller, vault, ErrOnlyLockerCanExtend); err != nil {
			return err
		}
		if _, err := vaultAuthorityFor(vault); err != nil {
			return err
		}
		if newUnlockTime <= vault.UnlockTime {
			return fmt.Errorf("%w: current %d, requested %d", ErrNewUnlockTimeMustBeGreater, vault.UnlockTime, newUnlockTime)
		}
		if newUnlockTime <= now {
			return fmt.Errorf("%w: requested %d, now %d", ErrNewUnlockTimeMustBeInFuture, newUnlockTime, now)
		}
		if newUnlockTime > MaxStorable {
			return fmt.Errorf("%w: requested %d exceeds %d", ErrInvalidUnlockTime, newUnlockTime, MaxStorable)
		}
		if err := repository.NewVaultRepository(tx).UpdateUnlockTime(vault.Address, newUnlockTime); err != nil {
			return err
		}
		vault.UnlockTime = newUnlockTime
		return recordEvent(tx, &model.LockEvent{
			Kind:       model.EventExtend,
			Vault:      &vault.Address,
			Caller:     caller.Hex(),
			Asset:      vault.Asset,
			UnlockTime: newUnlockTime,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Vault lock extended", "vault", vault.Address, "unlock", vault.UnlockTime)
	return vault, nil
}

func (s *LockService) GetVault(ctx context.Context, address common.Address) (*model.Vault, error) {
	return findVault(s.db.WithContext(ctx), address, false)
}

// LocateVault finds the vault for (owner, asset, seed) by derivation alone.
func (s *LockService) LocateVault(ctx context.Context, owner, asset common.Address, seed uint64) (*model.Vault, error) {
	return s.GetVault(ctx, DeriveVaultAddress(owner, asset, seed))
}

func (s *LockService) ListVaultsByOwner(ctx context.Context, owner common.Address, page, size int) ([]*model.Vault, int64, error) {
	return repository.NewVaultRepository(s.db).ListByOwner(ctx, owner.Hex(), page, size)
}

func (s *LockService) ListVaults(ctx context.Context, page, size int) ([]*model.Vault, int64, error) {
	return repository.NewVaultRepository(s.db).List(ctx, page, size)
}

func (s *LockService) VaultEvents(ctx context.Context, address common.Address) ([]*model.LockEvent, error) {
	if _, err := s.GetVault(ctx, address); err != nil {
		return nil, err
	}
	return repository.NewEventRepository(s.db).ListByVault(ctx, address.Hex())
}

func findVault(tx *gorm.DB, address common.Address, forUpdate bool) (*model.Vault, error) {
	vaults := repository.NewVaultRepository(tx)
	var (
		v   *model.Vault
		err error
	)
	if forUpdate {
		v, err = vaults.FindForUpdate(address.Hex())
	} else {
		v, err = vaults.FindByAddress(address.Hex())
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, address.Hex())
		}
		return nil, err
	}
	return v, nil
}

// principalLeg moves escrowed principal into and out of a vault. The lock
// state machine is the same for every asset; only this leg differs.
type principalLeg interface {
	deposit(tx *gorm.DB, owner Authority, source, vault, asset common.Address, amount uint64) error
	release(tx *gorm.DB, vault Authority, owner, asset common.Address, amount uint64) error
}

func (s *LockService) legFor(asset common.Address) principalLeg {
	if IsNative(asset) {
		return nativeLeg{ledger: s.ledger}
	}
	return fungibleLeg{ledger: s.ledger}
}

// fungibleLeg keeps principal in the vault's associated account and moves it
// through the transfer adapter.
type fungibleLeg struct {
	ledger AssetTransfer
}

func (l fungibleLeg) deposit(tx *gorm.DB, owner Authority, source, vault, asset common.Address, amount uint64) error {
	escrow, err := l.ledger.OpenAccount(tx, vault, asset)
	if err != nil {
		return err
	}
	return l.ledger.Transfer(tx, TransferRequest{
		From:      source,
		To:        escrow,
		Asset:     asset,
		Amount:    amount,
		Authority: owner,
	})
}

func (l fungibleLeg) release(tx *gorm.DB, vault Authority, owner, asset common.Address, amount uint64) error {
	dest, err := l.ledger.OpenAccount(tx, owner, asset)
	if err != nil {
		return err
	}
	return l.ledger.Transfer(tx, TransferRequest{
		From:      DeriveAssociatedAccount(vault.Address(), asset),
		To:        dest,
		Asset:     asset,
		Amount:    amount,
		Authority: vault,
	})
}

// nativeLeg credits and debits the vault's own native balance directly.
type nativeLeg struct {
	ledger Ledger
}

func (l nativeLeg) deposit(tx *gorm.DB, owner Authority, source, vault, _ common.Address, amount uint64) error {
	if err := l.ledger.Debit(tx, source, amount, owner); err != nil {
		return err
	}
	if _, err := l.ledger.OpenAccount(tx, vault, NativeAsset); err != nil {
		return err
	}
	return l.ledger.Credit(tx, vault, amount)
}

func (l nativeLeg) release(tx *gorm.DB, vault Authority, owner, _ common.Address, amount uint64) error {
	balance, err := l.ledger.Balance(tx, vault.Address())
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: vault holds %d, owes %d", ErrInsufficientFunds, balance, amount)
	}
	if err := l.ledger.Debit(tx, vault.Address(), amount, vault); err != nil {
		return err
	}
	if _, err := l.ledger.OpenAccount(tx, owner, NativeAsset); err != nil {
		return err
	}
	return l.ledger.Credit(tx, owner, amount)
}
