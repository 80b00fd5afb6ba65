package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/token_locker/model"
	"github.com/token_locker/service"
)

type LockHandler struct {
	locks    *service.LockService
	accounts *service.AccountService
}

func NewLockHandler(locks *service.LockService, accounts *service.AccountService) *LockHandler {
	return &LockHandler{locks: locks, accounts: accounts}
}

type lockBody struct {
	// TokenAccount is the source account. When empty, the caller's associated
	// account for Asset is used.
	TokenAccount string `json:"token_account"`
	Asset        string `json:"asset"`
	FeeAccount   string `json:"fee_account"`
	Amount       uint64 `json:"amount"`
	UnlockTime   uint64 `json:"unlock_time"`
	Seed         uint64 `json:"seed"`
}

func (b *lockBody) toRequest(owner common.Address, native bool) (service.LockRequest, error) {
	req := service.LockRequest{
		Owner:      owner,
		Amount:     b.Amount,
		UnlockTime: b.UnlockTime,
		Seed:       b.Seed,
	}
	if b.FeeAccount != "" {
		fee, err := ParseAddress("fee_account", b.FeeAccount)
		if err != nil {
			return req, err
		}
		req.FeeAccount = &fee
	}
	if native {
		return req, nil
	}
	switch {
	case b.TokenAccount != "":
		acct, err := ParseAddress("token_account", b.TokenAccount)
		if err != nil {
			return req, err
		}
		req.TokenAccount = acct
	case b.Asset != "":
		asset, err := ParseAddress("asset", b.Asset)
		if err != nil {
			return req, err
		}
		req.TokenAccount = service.DeriveAssociatedAccount(owner, asset)
	default:
		return req, errors.New("token_account or asset is required")
	}
	return req, nil
}

// POST /api/locks
func (h *LockHandler) LockTokens(c *gin.Context) {
	h.lock(c, false)
}

// POST /api/native-locks
func (h *LockHandler) LockNativeTokens(c *gin.Context) {
	h.lock(c, true)
}

func (h *LockHandler) lock(c *gin.Context, native bool) {
	caller, ok := MustCaller(c)
	if !ok {
		return
	}
	var body lockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	req, err := body.toRequest(caller, native)
	if err != nil {
		badRequest(c, err)
		return
	}
	lock := h.locks.LockTokens
	if native {
		lock = h.locks.LockNativeTokens
	}
	vault, err := lock(c, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vault)
}

// POST /api/locks/:vault/withdraw
func (h *LockHandler) WithdrawTokens(c *gin.Context) {
	h.withdraw(c, h.locks.WithdrawTokens)
}

// POST /api/locks/:vault/withdraw-native
func (h *LockHandler) WithdrawNativeTokens(c *gin.Context) {
	h.withdraw(c, h.locks.WithdrawNativeTokens)
}

type withdrawFunc func(ctx context.Context, caller, vault common.Address) (*model.Vault, uint64, error)

func (h *LockHandler) withdraw(c *gin.Context, withdraw withdrawFunc) {
	caller, ok := MustCaller(c)
	if !ok {
		return
	}
	vault, err := ParseAddress("vault", c.Param("vault"))
	if err != nil {
		badRequest(c, err)
		return
	}
	v, amount, err := withdraw(c, caller, vault)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vault": v, "amount": amount})
}

// POST /api/locks/:vault/extend
func (h *LockHandler) ExtendLockTime(c *gin.Context) {
	caller, ok := MustCaller(c)
	if !ok {
		return
	}
	vault, err := ParseAddress("vault", c.Param("vault"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var body struct {
		NewUnlockTime uint64 `json:"new_unlock_time"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.locks.ExtendLockTime(c, caller, vault, body.NewUnlockTime)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// GET /api/locks/:vault
func (h *LockHandler) GetVault(c *gin.Context) {
	vault, err := ParseAddress("vault", c.Param("vault"))
	if err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.locks.GetVault(c, vault)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// GET /api/locks/:vault/events
func (h *LockHandler) GetVaultEvents(c *gin.Context) {
	vault, err := ParseAddress("vault", c.Param("vault"))
	if err != nil {
		badRequest(c, err)
		return
	}
	events, err := h.locks.VaultEvents(c, vault)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GET /api/locks?owner=&page=&size=
func (h *LockHandler) ListVaults(c *gin.Context) {
	owner, err := ParseAddress("owner", c.Query("owner"))
	if err != nil {
		badRequest(c, err)
		return
	}
	list, total, err := h.locks.ListVaultsByOwner(c, owner, queryInt(c, "page"), queryInt(c, "size"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "records": list})
}

// GET /api/address/vault?owner=&asset=&seed=
func (h *LockHandler) DeriveVaultAddress(c *gin.Context) {
	owner, err := ParseAddress("owner", c.Query("owner"))
	if err != nil {
		badRequest(c, err)
		return
	}
	asset := service.NativeAsset
	if s := c.Query("asset"); s != "" {
		if asset, err = ParseAddress("asset", s); err != nil {
			badRequest(c, err)
			return
		}
	}
	seed, err := strconv.ParseUint(c.Query("seed"), 10, 64)
	if err != nil {
		badRequest(c, errors.New("invalid seed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": service.DeriveVaultAddress(owner, asset, seed).Hex()})
}

// GET /api/balance?owner=&asset=
func (h *LockHandler) GetBalance(c *gin.Context) {
	owner, err := ParseAddress("owner", c.Query("owner"))
	if err != nil {
		badRequest(c, err)
		return
	}
	asset := service.NativeAsset
	if s := c.Query("asset"); s != "" {
		if asset, err = ParseAddress("asset", s); err != nil {
			badRequest(c, err)
			return
		}
	}
	account, balance, err := h.accounts.GetBalance(c, owner, asset)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account.Hex(), "asset": asset.Hex(), "amount": balance})
}

// POST /api/dev/deposit
func (h *LockHandler) Deposit(c *gin.Context) {
	if _, ok := MustCaller(c); !ok {
		return
	}
	var body struct {
		Owner  string `json:"owner"`
		Asset  string `json:"asset"`
		Amount uint64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	owner, err := ParseAddress("owner", body.Owner)
	if err != nil {
		badRequest(c, err)
		return
	}
	asset := service.NativeAsset
	if body.Asset != "" {
		if asset, err = ParseAddress("asset", body.Asset); err != nil {
			badRequest(c, err)
			return
		}
	}
	acct, err := h.accounts.Deposit(c, owner, asset, body.Amount)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}
