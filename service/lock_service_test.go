package service

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/token_locker/model"
)

func TestLockWithdrawScenario(t *testing.T) {
	env := newTestEnv(t)
	v := env.lock(t, alice, tokA, 1_000, t0+3600, 1)

	if v.Address != DeriveVaultAddress(alice, tokA, 1).Hex() {
		t.Fatalf("vault address %s is not the derived address", v.Address)
	}
	if v.CreationTime != t0 || v.LockedAmount != 1_000 || !v.Active() {
		t.Fatalf("unexpected vault %+v", v)
	}
	if got := env.balance(t, alice, tokA); got != 4_000 {
		t.Fatalf("alice tokA after lock = %d, want 4000", got)
	}

	env.clock.set(t0 + 10)
	_, _, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 1))
	if !errors.Is(err, ErrLockNotExpired) {
		t.Fatalf("early withdraw: %v", err)
	}
	if got := env.vault(t, DeriveVaultAddress(alice, tokA, 1)); got.LockedAmount != 1_000 {
		t.Fatalf("early withdraw changed locked amount to %d", got.LockedAmount)
	}

	env.clock.set(t0 + 3601)
	out, amount, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 1))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 1_000 || out.LockedAmount != 0 || out.Active() {
		t.Fatalf("withdraw returned %d, vault %+v", amount, out)
	}
	if got := env.balance(t, alice, tokA); got != 5_000 {
		t.Fatalf("alice tokA after withdraw = %d, want 5000", got)
	}

	// the record stays as a zero-balance tombstone
	if got := env.vault(t, DeriveVaultAddress(alice, tokA, 1)); got.LockedAmount != 0 {
		t.Fatalf("tombstone locked amount %d", got.LockedAmount)
	}
	if _, _, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 1)); !errors.Is(err, ErrNoTokensToWithdraw) {
		t.Fatalf("second withdraw: %v", err)
	}
}

func TestWithdrawAtExactUnlockTime(t *testing.T) {
	env := newTestEnv(t)
	v := env.lock(t, alice, tokA, 10, t0+100, 7)
	env.clock.set(t0 + 100)
	if _, _, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 7)); err != nil {
		t.Fatalf("withdraw at unlock time %d: %v", v.UnlockTime, err)
	}
}

func TestLockValidation(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, NativeAsset, 100)
	env.fund(t, bob, usdc, FeeAmount)
	base := LockRequest{
		Owner:        alice,
		TokenAccount: DeriveAssociatedAccount(alice, tokA),
		Amount:       10,
		UnlockTime:   t0 + 60,
		Seed:         1,
	}
	cases := []struct {
		name   string
		mutate func(r *LockRequest)
		want   error
	}{
		{"unlock in past", func(r *LockRequest) { r.UnlockTime = t0 - 1 }, ErrInvalidUnlockTime},
		{"unlock now", func(r *LockRequest) { r.UnlockTime = t0 }, ErrInvalidUnlockTime},
		{"zero amount", func(r *LockRequest) { r.Amount = 0 }, ErrInvalidAmount},
		{"unknown account", func(r *LockRequest) { r.TokenAccount = DeriveAssociatedAccount(alice, usdt) }, ErrAccountNotFound},
		{"someone else's account", func(r *LockRequest) { r.Owner = bob }, ErrUnauthorizedAuthority},
		{"insufficient principal", func(r *LockRequest) { r.Amount = 5_001 }, ErrInsufficientFunds},
		{"native account", func(r *LockRequest) { r.TokenAccount = alice }, ErrWrongAssetKind},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := base
			c.mutate(&req)
			if _, err := env.locks.LockTokens(env.ctx, req); !errors.Is(err, c.want) {
				t.Fatalf("got %v, want %v", err, c.want)
			}
		})
	}
	if got := env.collected(t); got != 0 {
		t.Fatalf("failed locks collected %d in fees", got)
	}
	if got := env.balance(t, alice, usdc); got != 10*FeeAmount {
		t.Fatalf("failed locks charged fees: usdc %d", got)
	}
	if got := env.balance(t, bob, usdc); got != FeeAmount {
		t.Fatalf("failed lock charged bob: usdc %d", got)
	}
}

func TestLockDuplicateSeed(t *testing.T) {
	env := newTestEnv(t)
	env.lock(t, alice, tokA, 10, t0+60, 1)
	_, err := env.locks.LockTokens(env.ctx, LockRequest{
		Owner:        alice,
		TokenAccount: DeriveAssociatedAccount(alice, tokA),
		Amount:       10,
		UnlockTime:   t0 + 60,
		Seed:         1,
	})
	if !errors.Is(err, ErrVaultExists) {
		t.Fatalf("duplicate lock: %v", err)
	}
	if got := env.collected(t); got != FeeAmount {
		t.Fatalf("collected %d, want one fee", got)
	}
}

func TestTwoSeedsAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	v1 := env.lock(t, alice, tokA, 100, t0+100, 1)
	v2 := env.lock(t, alice, tokA, 200, t0+200, 2)
	if v1.Address == v2.Address {
		t.Fatal("seeds 1 and 2 share a vault")
	}

	env.clock.set(t0 + 150)
	if _, amount, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 1)); err != nil || amount != 100 {
		t.Fatalf("withdraw seed 1: %d, %v", amount, err)
	}
	if _, _, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 2)); !errors.Is(err, ErrLockNotExpired) {
		t.Fatalf("seed 2 before unlock: %v", err)
	}
	env.clock.set(t0 + 200)
	if _, amount, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 2)); err != nil || amount != 200 {
		t.Fatalf("withdraw seed 2: %d, %v", amount, err)
	}
}

func TestExtendScenario(t *testing.T) {
	env := newTestEnv(t)
	env.lock(t, alice, tokA, 10, t0+3600, 1)
	addr := DeriveVaultAddress(alice, tokA, 1)

	v, err := env.locks.ExtendLockTime(env.ctx, alice, addr, t0+7200)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if v.UnlockTime != t0+7200 {
		t.Fatalf("unlock time %d", v.UnlockTime)
	}
	if _, err := env.locks.ExtendLockTime(env.ctx, alice, addr, t0+3700); !errors.Is(err, ErrNewUnlockTimeMustBeGreater) {
		t.Fatalf("shortening: %v", err)
	}
	if _, err := env.locks.ExtendLockTime(env.ctx, alice, addr, t0+7200); !errors.Is(err, ErrNewUnlockTimeMustBeGreater) {
		t.Fatalf("equal time: %v", err)
	}
	if got := env.vault(t, addr).UnlockTime; got != t0+7200 {
		t.Fatalf("failed extensions moved unlock time to %d", got)
	}
}

func TestExtendMustBeInFuture(t *testing.T) {
	env := newTestEnv(t)
	env.lock(t, alice, tokA, 10, t0+100, 1)
	addr := DeriveVaultAddress(alice, tokA, 1)

	env.clock.set(t0 + 1_000)
	if _, err := env.locks.ExtendLockTime(env.ctx, alice, addr, t0+500); !errors.Is(err, ErrNewUnlockTimeMustBeInFuture) {
		t.Fatalf("extension into the past: %v", err)
	}
	if _, err := env.locks.ExtendLockTime(env.ctx, alice, addr, t0+1_001); err != nil {
		t.Fatalf("extension past now: %v", err)
	}
}

func TestNonOwnerAlwaysRejected(t *testing.T) {
	env := newTestEnv(t)
	env.lock(t, alice, tokA, 10, t0+100, 1)
	addr := DeriveVaultAddress(alice, tokA, 1)

	for _, now := range []uint64{t0, t0 + 100, t0 + 10_000} {
		env.clock.set(now)
		if _, _, err := env.locks.WithdrawTokens(env.ctx, bob, addr); !errors.Is(err, ErrUnauthorizedLocker) {
			t.Fatalf("bob withdraw at %d: %v", now, err)
		}
		if _, err := env.locks.ExtendLockTime(env.ctx, bob, addr, now+1_000_000); !errors.Is(err, ErrOnlyLockerCanExtend) {
			t.Fatalf("bob extend at %d: %v", now, err)
		}
	}
	if v := env.vault(t, addr); v.LockedAmount != 10 || v.UnlockTime != t0+100 {
		t.Fatalf("vault changed by non-owner: %+v", v)
	}
}

func TestTamperedVaultRecordRejected(t *testing.T) {
	env := newTestEnv(t)
	env.lock(t, alice, tokA, 10, t0+100, 1)
	addr := DeriveVaultAddress(alice, tokA, 1)

	// a record whose fields no longer derive its address cannot authorize a release
	if err := env.db.Model(&model.Vault{}).Where("address = ?", addr.Hex()).Update("seed", 99).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}
	env.clock.set(t0 + 100)
	if _, _, err := env.locks.WithdrawTokens(env.ctx, alice, addr); !errors.Is(err, ErrVaultAddressMismatch) {
		t.Fatalf("withdraw from tampered vault: %v", err)
	}
}

func TestWithdrawUnknownVault(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 42)); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("unknown vault: %v", err)
	}
}

func TestWithdrawRollsBackWhenReleaseFails(t *testing.T) {
	env := newTestEnv(t)
	env.lock(t, alice, tokA, 300, t0+100, 1)
	addr := DeriveVaultAddress(alice, tokA, 1)

	// drain the escrow behind the service's back so the release leg fails
	escrow := DeriveAssociatedAccount(addr, tokA)
	if err := env.db.Model(&model.TokenAccount{}).Where("address = ?", escrow.Hex()).Update("amount", 0).Error; err != nil {
		t.Fatalf("drain: %v", err)
	}
	env.clock.set(t0 + 100)
	if _, _, err := env.locks.WithdrawTokens(env.ctx, alice, addr); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("withdraw from drained escrow: %v", err)
	}
	if got := env.vault(t, addr).LockedAmount; got != 300 {
		t.Fatalf("locked amount %d after rolled back withdraw, want 300", got)
	}
}

func TestWrongAssetKind(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, NativeAsset, 1_000)
	env.lock(t, alice, tokA, 10, t0+10, 1)
	if _, err := env.locks.LockNativeTokens(env.ctx, LockRequest{Owner: alice, Amount: 10, UnlockTime: t0 + 10, Seed: 1}); err != nil {
		t.Fatalf("native lock: %v", err)
	}
	env.clock.set(t0 + 10)
	if _, _, err := env.locks.WithdrawNativeTokens(env.ctx, alice, DeriveVaultAddress(alice, tokA, 1)); !errors.Is(err, ErrWrongAssetKind) {
		t.Fatalf("native withdraw on fungible vault: %v", err)
	}
	if _, _, err := env.locks.WithdrawTokens(env.ctx, alice, DeriveVaultAddress(alice, NativeAsset, 1)); !errors.Is(err, ErrWrongAssetKind) {
		t.Fatalf("fungible withdraw on native vault: %v", err)
	}
}

func TestNativeLockAndWithdraw(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, NativeAsset, 1_000)

	v, err := env.locks.LockNativeTokens(env.ctx, LockRequest{Owner: alice, Amount: 400, UnlockTime: t0 + 60, Seed: 3})
	if err != nil {
		t.Fatalf("LockNativeTokens: %v", err)
	}
	addr := DeriveVaultAddress(alice, NativeAsset, 3)
	if v.Address != addr.Hex() || v.Asset != NativeAsset.Hex() {
		t.Fatalf("unexpected native vault %+v", v)
	}
	if got := env.balance(t, addr, NativeAsset); got != 400 {
		t.Fatalf("vault native balance %d, want 400", got)
	}
	if got := env.balance(t, alice, NativeAsset); got != 600 {
		t.Fatalf("alice native balance %d, want 600", got)
	}
	if got := env.collected(t); got != FeeAmount {
		t.Fatalf("native lock collected %d", got)
	}

	env.clock.set(t0 + 60)
	if _, amount, err := env.locks.WithdrawNativeTokens(env.ctx, alice, addr); err != nil || amount != 400 {
		t.Fatalf("WithdrawNativeTokens: %d, %v", amount, err)
	}
	if a, vb := env.balance(t, alice, NativeAsset), env.balance(t, addr, NativeAsset); a != 1_000 || vb != 0 {
		t.Fatalf("after withdraw alice=%d vault=%d", a, vb)
	}
}

func TestNativeWithdrawChecksVaultBalance(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, NativeAsset, 1_000)
	if _, err := env.locks.LockNativeTokens(env.ctx, LockRequest{Owner: alice, Amount: 400, UnlockTime: t0 + 60, Seed: 3}); err != nil {
		t.Fatalf("LockNativeTokens: %v", err)
	}
	addr := DeriveVaultAddress(alice, NativeAsset, 3)
	if err := env.db.Model(&model.TokenAccount{}).Where("address = ?", addr.Hex()).Update("amount", 399).Error; err != nil {
		t.Fatalf("drain: %v", err)
	}
	env.clock.set(t0 + 60)
	if _, _, err := env.locks.WithdrawNativeTokens(env.ctx, alice, addr); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("short vault: %v", err)
	}
	if got := env.vault(t, addr).LockedAmount; got != 400 {
		t.Fatalf("locked amount %d after failed native withdraw", got)
	}
}

func TestNativeLockInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, NativeAsset, 10)
	_, err := env.locks.LockNativeTokens(env.ctx, LockRequest{Owner: alice, Amount: 11, UnlockTime: t0 + 60, Seed: 1})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("over-lock: %v", err)
	}
	if got := env.collected(t); got != 0 {
		t.Fatalf("fee kept after failed principal: %d", got)
	}
	if got := env.balance(t, alice, usdc); got != 10*FeeAmount {
		t.Fatalf("fee debited after failed principal: %d", got)
	}
}

func TestVaultQueries(t *testing.T) {
	env := newTestEnv(t)
	env.lock(t, alice, tokA, 10, t0+60, 1)
	env.clock.set(t0 + 5)
	env.lock(t, alice, tokA, 20, t0+60, 2)

	list, total, err := env.locks.ListVaultsByOwner(env.ctx, alice, 1, 10)
	if err != nil {
		t.Fatalf("ListVaultsByOwner: %v", err)
	}
	if total != 2 || len(list) != 2 || list[0].Seed != 2 {
		t.Fatalf("list = %d records (total %d), first seed %d", len(list), total, list[0].Seed)
	}
	if _, total, _ := env.locks.ListVaultsByOwner(env.ctx, bob, 1, 10); total != 0 {
		t.Fatalf("bob has %d vaults", total)
	}
	v, err := env.locks.LocateVault(env.ctx, alice, tokA, 1)
	if err != nil || v.LockedAmount != 10 {
		t.Fatalf("LocateVault: %+v, %v", v, err)
	}

	if _, err := env.locks.ExtendLockTime(env.ctx, alice, DeriveVaultAddress(alice, tokA, 1), t0+120); err != nil {
		t.Fatalf("extend: %v", err)
	}
	events, err := env.locks.VaultEvents(env.ctx, DeriveVaultAddress(alice, tokA, 1))
	if err != nil {
		t.Fatalf("VaultEvents: %v", err)
	}
	if len(events) != 2 || events[0].Kind != model.EventLock || events[1].Kind != model.EventExtend {
		t.Fatalf("unexpected journal %+v", events)
	}
	if _, err := env.locks.VaultEvents(env.ctx, DeriveVaultAddress(bob, tokA, 1)); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("events for unknown vault: %v", err)
	}
}

func TestLockRejectsUnstorableValues(t *testing.T) {
	env := newTestEnv(t)
	base := LockRequest{
		Owner:        alice,
		TokenAccount: DeriveAssociatedAccount(alice, tokA),
		Amount:       10,
		UnlockTime:   t0 + 60,
		Seed:         1,
	}
	cases := []struct {
		name   string
		mutate func(r *LockRequest)
		want   error
	}{
		{"unlock max uint64", func(r *LockRequest) { r.UnlockTime = math.MaxUint64 }, ErrInvalidUnlockTime},
		{"unlock high bit", func(r *LockRequest) { r.UnlockTime = 1 << 63 }, ErrInvalidUnlockTime},
		{"amount high bit", func(r *LockRequest) { r.Amount = 1 << 63 }, ErrInvalidAmount},
		{"seed high bit", func(r *LockRequest) { r.Seed = math.MaxUint64 }, ErrInvalidSeed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := base
			c.mutate(&req)
			_, err := env.locks.LockTokens(env.ctx, req)
			if !errors.Is(err, c.want) {
				t.Fatalf("got %v, want %v", err, c.want)
			}
			if KindOf(err) != KindValidation {
				t.Fatalf("kind %d, want validation", KindOf(err))
			}
		})
	}
	if got := env.collected(t); got != 0 {
		t.Fatalf("rejected locks collected %d", got)
	}

	// the largest storable unlock time is a valid "lock forever"
	forever := base
	forever.UnlockTime = MaxStorable
	v, err := env.locks.LockTokens(env.ctx, forever)
	if err != nil {
		t.Fatalf("lock until %d: %v", MaxStorable, err)
	}
	if got := env.vault(t, common.HexToAddress(v.Address)); got.UnlockTime != MaxStorable {
		t.Fatalf("stored unlock time %d", got.UnlockTime)
	}
}

func TestExtendRejectsUnstorableTime(t *testing.T) {
	env := newTestEnv(t)
	env.lock(t, alice, tokA, 10, t0+60, 1)
	addr := DeriveVaultAddress(alice, tokA, 1)

	for _, ts := range []uint64{1 << 63, math.MaxUint64} {
		_, err := env.locks.ExtendLockTime(env.ctx, alice, addr, ts)
		if !errors.Is(err, ErrInvalidUnlockTime) || KindOf(err) != KindValidation {
			t.Fatalf("extend to %d: %v", ts, err)
		}
	}
	if got := env.vault(t, addr).UnlockTime; got != t0+60 {
		t.Fatalf("unlock time moved to %d", got)
	}
	if _, err := env.locks.ExtendLockTime(env.ctx, alice, addr, MaxStorable); err != nil {
		t.Fatalf("extend to %d: %v", MaxStorable, err)
	}
}

func TestDepositBounds(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.accounts.Deposit(env.ctx, alice, tokA, 1<<63)
	if !errors.Is(err, ErrInvalidAmount) || KindOf(err) != KindValidation {
		t.Fatalf("deposit of 2^63: %v", err)
	}
	// alice already holds 5000 tokA, so this would pass the column limit
	_, err = env.accounts.Deposit(env.ctx, alice, tokA, MaxStorable)
	if !errors.Is(err, ErrOverflow) || KindOf(err) != KindArithmetic {
		t.Fatalf("deposit past the ceiling: %v", err)
	}
	if got := env.balance(t, alice, tokA); got != 5_000 {
		t.Fatalf("balance %d after rejected deposits", got)
	}
}
