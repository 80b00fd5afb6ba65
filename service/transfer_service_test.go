package service

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestLedgerTransfer(t *testing.T) {
	env := newBareEnv(t)
	env.fund(t, alice, tokA, 100)
	from := DeriveAssociatedAccount(alice, tokA)

	cases := []struct {
		name string
		req  func(tx *gorm.DB) TransferRequest
		want error
	}{
		{
			name: "non-owner authority",
			req: func(tx *gorm.DB) TransferRequest {
				to, _ := env.ledger.OpenAccount(tx, bob, tokA)
				return TransferRequest{From: from, To: to, Asset: tokA, Amount: 10, Authority: SignerAuthority(bob)}
			},
			want: ErrUnauthorizedAuthority,
		},
		{
			name: "asset mismatch",
			req: func(tx *gorm.DB) TransferRequest {
				to, _ := env.ledger.OpenAccount(tx, bob, usdc)
				return TransferRequest{From: from, To: to, Asset: tokA, Amount: 10, Authority: SignerAuthority(alice)}
			},
			want: ErrAssetMismatch,
		},
		{
			name: "insufficient funds",
			req: func(tx *gorm.DB) TransferRequest {
				to, _ := env.ledger.OpenAccount(tx, bob, tokA)
				return TransferRequest{From: from, To: to, Asset: tokA, Amount: 101, Authority: SignerAuthority(alice)}
			},
			want: ErrInsufficientFunds,
		},
		{
			name: "missing destination",
			req: func(tx *gorm.DB) TransferRequest {
				return TransferRequest{From: from, To: DeriveAssociatedAccount(bob, usdt), Asset: tokA, Amount: 1, Authority: SignerAuthority(alice)}
			},
			want: ErrAccountNotFound,
		},
		{
			name: "zero amount",
			req: func(tx *gorm.DB) TransferRequest {
				return TransferRequest{From: from, To: from, Asset: tokA, Amount: 0, Authority: SignerAuthority(alice)}
			},
			want: ErrInvalidAmount,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := env.db.Transaction(func(tx *gorm.DB) error {
				return env.ledger.Transfer(tx, c.req(tx))
			})
			if !errors.Is(err, c.want) {
				t.Fatalf("got %v, want %v", err, c.want)
			}
			if got := env.balance(t, alice, tokA); got != 100 {
				t.Fatalf("alice balance %d after failed transfer", got)
			}
		})
	}

	err := env.db.Transaction(func(tx *gorm.DB) error {
		to, err := env.ledger.OpenAccount(tx, bob, tokA)
		if err != nil {
			return err
		}
		return env.ledger.Transfer(tx, TransferRequest{From: from, To: to, Asset: tokA, Amount: 40, Authority: SignerAuthority(alice)})
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if a, b := env.balance(t, alice, tokA), env.balance(t, bob, tokA); a != 60 || b != 40 {
		t.Fatalf("balances alice=%d bob=%d, want 60/40", a, b)
	}
}

func TestLedgerNativeDebitCredit(t *testing.T) {
	env := newBareEnv(t)
	env.fund(t, alice, NativeAsset, 50)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.ledger.Debit(tx, alice, 10, SignerAuthority(bob))
	})
	if !errors.Is(err, ErrUnauthorizedAuthority) {
		t.Fatalf("debit by non-owner: %v", err)
	}
	err = env.db.Transaction(func(tx *gorm.DB) error {
		return env.ledger.Debit(tx, alice, 51, SignerAuthority(alice))
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: %v", err)
	}
	env.fund(t, alice, tokA, 5)
	err = env.db.Transaction(func(tx *gorm.DB) error {
		return env.ledger.Credit(tx, DeriveAssociatedAccount(alice, tokA), 1)
	})
	if !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("native credit on fungible account: %v", err)
	}
	if got := env.balance(t, alice, NativeAsset); got != 50 {
		t.Fatalf("native balance %d, want 50", got)
	}
}

func TestOpenAndCreateAccount(t *testing.T) {
	env := newBareEnv(t)
	err := env.db.Transaction(func(tx *gorm.DB) error {
		a, err := env.ledger.OpenAccount(tx, alice, tokA)
		if err != nil {
			return err
		}
		b, err := env.ledger.OpenAccount(tx, alice, tokA)
		if err != nil {
			return err
		}
		if a != b {
			t.Errorf("OpenAccount not idempotent: %s vs %s", a.Hex(), b.Hex())
		}
		_, err = env.ledger.CreateAccount(tx, alice, tokA)
		return err
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("CreateAccount on existing account: %v", err)
	}
}
