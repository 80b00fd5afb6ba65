package service

import (
	"errors"
)

// ErrorKind groups service errors for callers that map them onto a transport.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUnauthenticated
	KindAuthorization
	KindState
	KindArithmetic
	KindNotFound
	KindConflict
)

var (
	ErrInvalidUnlockTime           = errors.New("unlock time must be in the future")
	ErrInvalidAmount               = errors.New("amount must be greater than zero")
	ErrInvalidSeed                 = errors.New("seed out of range")
	ErrInvalidFeeAsset             = errors.New("invalid fee asset")
	ErrAssetMismatch               = errors.New("account asset does not match")
	ErrWrongAssetKind              = errors.New("vault asset kind does not match operation")
	ErrNewUnlockTimeMustBeInFuture = errors.New("new unlock time must be in future")

	ErrMissingSignature = errors.New("missing request signature")
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrSignatureExpired = errors.New("request signature expired")

	ErrUnauthorizedLocker    = errors.New("only locker can withdraw")
	ErrOnlyLockerCanExtend   = errors.New("only locker can extend")
	ErrUnauthorizedOperator  = errors.New("only operator can withdraw fees")
	ErrOnlyOperatorCanUpdate = errors.New("only operator can update")
	ErrNotOperator           = errors.New("caller is not the operator")
	ErrUnauthorizedAuthority = errors.New("authority does not own account")
	ErrVaultAddressMismatch  = errors.New("vault address does not match its derivation")

	ErrLockNotExpired             = errors.New("lock period not yet ended")
	ErrNoTokensToWithdraw         = errors.New("no tokens to withdraw")
	ErrNoFeesToWithdraw           = errors.New("no fees to withdraw")
	ErrNewUnlockTimeMustBeGreater = errors.New("new unlock time must be greater")
	ErrFeeAccountNotInitialized   = errors.New("fee account not initialized")
	ErrDevelopmentOnly            = errors.New("operation only available in development")

	ErrOverflow          = errors.New("arithmetic overflow")
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrNotInitialized  = errors.New("config not initialized")
	ErrVaultNotFound   = errors.New("vault not found")
	ErrAccountNotFound = errors.New("account not found")

	ErrAlreadyInitialized = errors.New("config already initialized")
	ErrVaultExists        = errors.New("vault already exists")
	ErrAccountExists      = errors.New("account already exists")
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidUnlockTime, KindValidation},
	{ErrInvalidAmount, KindValidation},
	{ErrInvalidSeed, KindValidation},
	{ErrInvalidFeeAsset, KindValidation},
	{ErrAssetMismatch, KindValidation},
	{ErrWrongAssetKind, KindValidation},
	{ErrNewUnlockTimeMustBeInFuture, KindValidation},

	{ErrMissingSignature, KindUnauthenticated},
	{ErrInvalidSignature, KindUnauthenticated},
	{ErrSignatureExpired, KindUnauthenticated},

	{ErrUnauthorizedLocker, KindAuthorization},
	{ErrOnlyLockerCanExtend, KindAuthorization},
	{ErrUnauthorizedOperator, KindAuthorization},
	{ErrOnlyOperatorCanUpdate, KindAuthorization},
	{ErrNotOperator, KindAuthorization},
	{ErrUnauthorizedAuthority, KindAuthorization},
	{ErrVaultAddressMismatch, KindAuthorization},
	{ErrDevelopmentOnly, KindAuthorization},

	{ErrLockNotExpired, KindState},
	{ErrNoTokensToWithdraw, KindState},
	{ErrNoFeesToWithdraw, KindState},
	{ErrNewUnlockTimeMustBeGreater, KindState},
	{ErrFeeAccountNotInitialized, KindState},

	{ErrOverflow, KindArithmetic},
	{ErrInsufficientFunds, KindArithmetic},

	{ErrNotInitialized, KindNotFound},
	{ErrVaultNotFound, KindNotFound},
	{ErrAccountNotFound, KindNotFound},

	{ErrAlreadyInitialized, KindConflict},
	{ErrVaultExists, KindConflict},
	{ErrAccountExists, KindConflict},
}

// KindOf classifies err by the first sentinel it wraps. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindInternal
}
