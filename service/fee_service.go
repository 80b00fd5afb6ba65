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

// FeeService owns the singleton ServiceConfig: initialization, fee charging,
// fee collection and the reference-asset setting.
type FeeService struct {
	db     *gorm.DB
	ledger Ledger
	clock  Clock
	logger log.Logger
}

func NewFeeService(db *gorm.DB, ledger Ledger, clock Clock) *FeeService {
	return &FeeService{
		db:     db,
		ledger: ledger,
		clock:  clock,
		logger: log.New("service", "fees"),
	}
}

// Dashboard is the operator's view of the service.
type Dashboard struct {
	Config            *model.ServiceConfig `json:"config"`
	FeeAccount        string               `json:"fee_account"`
	FeeAccountAmount  uint64               `json:"fee_account_amount"`
	CollectedDisplay  string               `json:"collected_fees_display"`
	FeeAccountDisplay string               `json:"fee_account_display"`
	FeePerLock        string               `json:"fee_per_lock"`
	TotalVaults       int64                `json:"total_vaults"`
	ActiveVaults      int64                `json:"active_vaults"`
}

// InitializeConfig creates the singleton config with operator as its immutable
// operator. A second call fails with ErrAlreadyInitialized.
func (s *FeeService) InitializeConfig(ctx context.Context, operator, feeAsset common.Address) (*model.ServiceConfig, error) {
	if IsNative(feeAsset) {
		return nil, ErrInvalidFeeAsset
	}
	now := unixNow(s.clock)
	address := DeriveConfigAddress()
	cfg := &model.ServiceConfig{
		Address:  address.Hex(),
		Operator: operator.Hex(),
		FeeAsset: feeAsset.Hex(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		configs := repository.NewConfigRepository(tx)
		if _, err := configs.Find(address.Hex()); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := configs.Create(cfg); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyInitialized
			}
			return err
		}
		return recordEvent(tx, &model.LockEvent{
			Kind:       model.EventInitializeConfig,
			Caller:     operator.Hex(),
			Asset:      feeAsset.Hex(),
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Service config initialized", "config", cfg.Address, "operator", cfg.Operator, "fee_asset", cfg.FeeAsset)
	return cfg, nil
}

// InitializeFeeAccount provisions the service's account for the current fee asset.
func (s *FeeService) InitializeFeeAccount(ctx context.Context, caller common.Address) (common.Address, error) {
	now := unixNow(s.clock)
	var account common.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, false)
		if err != nil {
			return err
		}
		if err := requireOperator(caller, cfg, ErrOnlyOperatorCanUpdate); err != nil {
			return err
		}
		account, err = s.ledger.CreateAccount(tx, DeriveConfigAddress(), common.HexToAddress(cfg.FeeAsset))
		if err != nil {
			return err
		}
		return recordEvent(tx, &model.LockEvent{
			Kind:       model.EventInitializeFeeAccount,
			Caller:     caller.Hex(),
			Asset:      cfg.FeeAsset,
			OccurredAt: now,
		})
	})
	if err != nil {
		return common.Address{}, err
	}
	s.logger.Info("Fee account initialized", "account", account)
	return account, nil
}

// chargeFee moves FeeAmount of the reference asset from the payer into the
// service fee account and books it. It runs on the caller's transaction.
func (s *FeeService) chargeFee(tx *gorm.DB, payer Authority, feeAccount *common.Address) error {
	cfg, err := loadConfig(tx, true)
	if err != nil {
		return err
	}
	feeAsset := common.HexToAddress(cfg.FeeAsset)
	collected, err := checkedAdd(cfg.CollectedFees, FeeAmount)
	if err != nil {
		return err
	}
	to := DeriveAssociatedAccount(DeriveConfigAddress(), feeAsset)
	if _, err := s.ledger.Account(tx, to); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fmt.Errorf("%w: %s", ErrFeeAccountNotInitialized, to.Hex())
		}
		return err
	}
	from := DeriveAssociatedAccount(payer.Address(), feeAsset)
	if feeAccount != nil {
		from = *feeAccount
	}
	if err := s.ledger.Transfer(tx, TransferRequest{
		From:      from,
		To:        to,
		Asset:     feeAsset,
		Amount:    FeeAmount,
		Authority: payer,
	}); err != nil {
		return fmt.Errorf("fee transfer: %w", err)
	}
	return repository.NewConfigRepository(tx).UpdateCollectedFees(cfg.Address, collected)
}

// WithdrawFees sends every collected fee to the operator and resets the counter.
func (s *FeeService) WithdrawFees(ctx context.Context, caller common.Address) (uint64, error) {
	now := unixNow(s.clock)
	var amount uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, true)
		if err != nil {
			return err
		}
		if err := requireOperator(caller, cfg, ErrUnauthorizedOperator); err != nil {
			return err
		}
		if cfg.CollectedFees == 0 {
			return ErrNoFeesToWithdraw
		}
		amount = cfg.CollectedFees
		if err := repository.NewConfigRepository(tx).UpdateCollectedFees(cfg.Address, 0); err != nil {
			return err
		}

		feeAsset := common.HexToAddress(cfg.FeeAsset)
		dest, err := s.ledger.OpenAccount(tx, caller, feeAsset)
		if err != nil {
			return err
		}
		if err := s.ledger.Transfer(tx, TransferRequest{
			From:      DeriveAssociatedAccount(DeriveConfigAddress(), feeAsset),
			To:        dest,
			Asset:     feeAsset,
			Amount:    amount,
			Authority: configAuthority{},
		}); err != nil {
			return fmt.Errorf("fee withdrawal transfer: %w", err)
		}
		return recordEvent(tx, &model.LockEvent{
			Kind:       model.EventWithdrawFees,
			Caller:     caller.Hex(),
			Asset:      cfg.FeeAsset,
			Amount:     amount,
			OccurredAt: now,
		})
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("Fees withdrawn", "operator", caller, "amount", amount)
	return amount, nil
}

// UpdateFeeAsset replaces the reference asset. It does not move existing fees.
func (s *FeeService) UpdateFeeAsset(ctx context.Context, caller, asset common.Address) (*model.ServiceConfig, error) {
	now := unixNow(s.clock)
	var cfg *model.ServiceConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cfg, err = loadConfig(tx, true)
		if err != nil {
			return err
		}
		if err := requireOperator(caller, cfg, ErrOnlyOperatorCanUpdate); err != nil {
			return err
		}
		if IsNative(asset) {
			return ErrInvalidFeeAsset
		}
		if err := repository.NewConfigRepository(tx).UpdateFeeAsset(cfg.Address, asset.Hex()); err != nil {
			return err
		}
		cfg.FeeAsset = asset.Hex()
		return recordEvent(tx, &model.LockEvent{
			Kind:       model.EventUpdateFeeAsset,
			Caller:     caller.Hex(),
			Asset:      asset.Hex(),
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Fee asset updated", "fee_asset", cfg.FeeAsset)
	return cfg, nil
}

func (s *FeeService) GetConfig(ctx context.Context) (*model.ServiceConfig, error) {
	return loadConfig(s.db.WithContext(ctx), false)
}

// RequireOperator fails unless caller is the configured operator.
func (s *FeeService) RequireOperator(ctx context.Context, caller common.Address) error {
	cfg, err := loadConfig(s.db.WithContext(ctx), false)
	if err != nil {
		return err
	}
	return requireOperator(caller, cfg, ErrNotOperator)
}

func (s *FeeService) Dashboard(ctx context.Context, caller common.Address) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	cfg, err := loadConfig(db, false)
	if err != nil {
		return nil, err
	}
	if err := requireOperator(caller, cfg, ErrNotOperator); err != nil {
		return nil, err
	}
	feeAccount := DeriveAssociatedAccount(DeriveConfigAddress(), common.HexToAddress(cfg.FeeAsset))
	balance, err := s.ledger.Balance(db, feeAccount)
	if err != nil {
		return nil, err
	}
	vaults := repository.NewVaultRepository(db)
	total, err := vaults.Count(ctx)
	if err != nil {
		return nil, err
	}
	active, err := vaults.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Config:            cfg,
		FeeAccount:        feeAccount.Hex(),
		FeeAccountAmount:  balance,
		CollectedDisplay:  FormatUnits(cfg.CollectedFees, FeeDecimals),
		FeeAccountDisplay: FormatUnits(balance, FeeDecimals),
		FeePerLock:        FormatUnits(FeeAmount, FeeDecimals),
		TotalVaults:       total,
		ActiveVaults:      active,
	}, nil
}

func loadConfig(tx *gorm.DB, forUpdate bool) (*model.ServiceConfig, error) {
	configs := repository.NewConfigRepository(tx)
	var (
		cfg *model.ServiceConfig
		err error
	)
	if forUpdate {
		cfg, err = configs.FindForUpdate(DeriveConfigAddress().Hex())
	} else {
		cfg, err = configs.Find(DeriveConfigAddress().Hex())
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return cfg, nil
}

func recordEvent(tx *gorm.DB, ev *model.LockEvent) error {
	return repository.NewEventRepository(tx).Create(ev)
}
