package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/token_locker/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) set(unix uint64) { c.now = time.Unix(int64(unix), 0) }

const t0 uint64 = 1_700_000_000

var (
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokA  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	usdt  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	opr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bob   = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:locker_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	ctx      context.Context
	db       *gorm.DB
	clock    *fakeClock
	ledger   *LedgerTransfer
	fees     *FeeService
	locks    *LockService
	accounts *AccountService
}

// newBareEnv wires the services over an empty database.
func newBareEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	clock := &fakeClock{}
	clock.set(t0)
	ledger := NewLedgerTransfer()
	fees := NewFeeService(db, ledger, clock)
	return &testEnv{
		ctx:      context.Background(),
		db:       db,
		clock:    clock,
		ledger:   ledger,
		fees:     fees,
		locks:    NewLockService(db, ledger, fees, clock),
		accounts: NewAccountService(db, ledger),
	}
}

// newTestEnv initializes the config with usdc as fee asset, opens the fee
// account and funds alice with usdc and tokA.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newBareEnv(t)
	if _, err := env.fees.InitializeConfig(env.ctx, opr, usdc); err != nil {
		t.Fatalf("InitializeConfig: %v", err)
	}
	if _, err := env.fees.InitializeFeeAccount(env.ctx, opr); err != nil {
		t.Fatalf("InitializeFeeAccount: %v", err)
	}
	env.fund(t, alice, usdc, 10*FeeAmount)
	env.fund(t, alice, tokA, 5_000)
	return env
}

func (e *testEnv) fund(t *testing.T, owner, asset common.Address, amount uint64) {
	t.Helper()
	if _, err := e.accounts.Deposit(e.ctx, owner, asset, amount); err != nil {
		t.Fatalf("Deposit(%s, %s, %d): %v", owner.Hex(), asset.Hex(), amount, err)
	}
}

func (e *testEnv) balance(t *testing.T, owner, asset common.Address) uint64 {
	t.Helper()
	_, amount, err := e.accounts.GetBalance(e.ctx, owner, asset)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	return amount
}

func (e *testEnv) collected(t *testing.T) uint64 {
	t.Helper()
	cfg, err := e.fees.GetConfig(e.ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	return cfg.CollectedFees
}

func (e *testEnv) vault(t *testing.T, address common.Address) *model.Vault {
	t.Helper()
	v, err := e.locks.GetVault(e.ctx, address)
	if err != nil {
		t.Fatalf("GetVault: %v", err)
	}
	return v
}

func (e *testEnv) lock(t *testing.T, owner, asset common.Address, amount, unlock, seed uint64) *model.Vault {
	t.Helper()
	v, err := e.locks.LockTokens(e.ctx, LockRequest{
		Owner:        owner,
		TokenAccount: DeriveAssociatedAccount(owner, asset),
		Amount:       amount,
		UnlockTime:   unlock,
		Seed:         seed,
	})
	if err != nil {
		t.Fatalf("LockTokens: %v", err)
	}
	return v
}
