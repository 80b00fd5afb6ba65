// Package client calls the locker HTTP API, signing each request with the
// caller's key.
package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/token_locker/model"
	"github.com/token_locker/service"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("locker api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	key     *ecdsa.PrivateKey
	address common.Address
	http    *http.Client
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides the time used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, key *ecdsa.PrivateKey, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    http.DefaultClient,
		now:     time.Now,
	}
	if key != nil {
		c.address = crypto.PubkeyToAddress(key.PublicKey)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromHex builds a client from a hex private key, with or without 0x.
func NewFromHex(baseURL, privHex string, opts ...Option) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return New(baseURL, key, opts...), nil
}

// Address is the caller identity requests are signed as.
func (c *Client) Address() common.Address { return c.address }

// LockParams mirrors the lock request body. Leave TokenAccount zero to lock
// from the caller's associated account for Asset.
type LockParams struct {
	TokenAccount common.Address
	Asset        common.Address
	FeeAccount   *common.Address
	Amount       uint64
	UnlockTime   uint64
	Seed         uint64
}

func (p LockParams) body() map[string]any {
	b := map[string]any{
		"amount":      p.Amount,
		"unlock_time": p.UnlockTime,
		"seed":        p.Seed,
	}
	if p.TokenAccount != (common.Address{}) {
		b["token_account"] = p.TokenAccount.Hex()
	}
	if p.Asset != (common.Address{}) {
		b["asset"] = p.Asset.Hex()
	}
	if p.FeeAccount != nil {
		b["fee_account"] = p.FeeAccount.Hex()
	}
	return b
}

type WithdrawResult struct {
	Vault  *model.Vault `json:"vault"`
	Amount uint64       `json:"amount"`
}

type VaultPage struct {
	Total   int64          `json:"total"`
	Records []*model.Vault `json:"records"`
}

type Balance struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  uint64 `json:"amount"`
}

func (c *Client) InitializeConfig(ctx context.Context, feeAsset common.Address) (*model.ServiceConfig, error) {
	var out model.ServiceConfig
	err := c.do(ctx, http.MethodPost, "/api/config/initialize", map[string]string{"fee_asset": feeAsset.Hex()}, true, &out)
	return &out, err
}

func (c *Client) InitializeFeeAccount(ctx context.Context) (common.Address, error) {
	var out struct {
		FeeAccount common.Address `json:"fee_account"`
	}
	err := c.do(ctx, http.MethodPost, "/api/config/fee-account", nil, true, &out)
	return out.FeeAccount, err
}

func (c *Client) UpdateFeeAsset(ctx context.Context, feeAsset common.Address) (*model.ServiceConfig, error) {
	var out model.ServiceConfig
	err := c.do(ctx, http.MethodPut, "/api/config/fee-asset", map[string]string{"fee_asset": feeAsset.Hex()}, true, &out)
	return &out, err
}

func (c *Client) GetConfig(ctx context.Context) (*model.ServiceConfig, error) {
	var out model.ServiceConfig
	err := c.do(ctx, http.MethodGet, "/api/config", nil, false, &out)
	return &out, err
}

func (c *Client) WithdrawFees(ctx context.Context) (uint64, error) {
	var out struct {
		Amount uint64 `json:"amount"`
	}
	err := c.do(ctx, http.MethodPost, "/api/fees/withdraw", nil, true, &out)
	return out.Amount, err
}

func (c *Client) Dashboard(ctx context.Context) (*service.Dashboard, error) {
	var out service.Dashboard
	err := c.do(ctx, http.MethodGet, "/api/admin/dashboard", nil, true, &out)
	return &out, err
}

func (c *Client) ListAllVaults(ctx context.Context, page, size int) (*VaultPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	var out VaultPage
	err := c.do(ctx, http.MethodGet, "/api/admin/vaults?"+q.Encode(), nil, true, &out)
	return &out, err
}

func (c *Client) LockTokens(ctx context.Context, p LockParams) (*model.Vault, error) {
	var out model.Vault
	err := c.do(ctx, http.MethodPost, "/api/locks", p.body(), true, &out)
	return &out, err
}

func (c *Client) LockNativeTokens(ctx context.Context, p LockParams) (*model.Vault, error) {
	var out model.Vault
	err := c.do(ctx, http.MethodPost, "/api/native-locks", p.body(), true, &out)
	return &out, err
}

func (c *Client) WithdrawTokens(ctx context.Context, vault common.Address) (*WithdrawResult, error) {
	var out WithdrawResult
	err := c.do(ctx, http.MethodPost, "/api/locks/"+vault.Hex()+"/withdraw", nil, true, &out)
	return &out, err
}

func (c *Client) WithdrawNativeTokens(ctx context.Context, vault common.Address) (*WithdrawResult, error) {
	var out WithdrawResult
	err := c.do(ctx, http.MethodPost, "/api/locks/"+vault.Hex()+"/withdraw-native", nil, true, &out)
	return &out, err
}

func (c *Client) ExtendLockTime(ctx context.Context, vault common.Address, newUnlockTime uint64) (*model.Vault, error) {
	var out model.Vault
	err := c.do(ctx, http.MethodPost, "/api/locks/"+vault.Hex()+"/extend", map[string]uint64{"new_unlock_time": newUnlockTime}, true, &out)
	return &out, err
}

func (c *Client) GetVault(ctx context.Context, vault common.Address) (*model.Vault, error) {
	var out model.Vault
	err := c.do(ctx, http.MethodGet, "/api/locks/"+vault.Hex(), nil, false, &out)
	return &out, err
}

func (c *Client) VaultEvents(ctx context.Context, vault common.Address) ([]*model.LockEvent, error) {
	var out struct {
		Events []*model.LockEvent `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, "/api/locks/"+vault.Hex()+"/events", nil, false, &out)
	return out.Events, err
}

func (c *Client) ListVaults(ctx context.Context, owner common.Address, page, size int) (*VaultPage, error) {
	q := url.Values{}
	q.Set("owner", owner.Hex())
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	var out VaultPage
	err := c.do(ctx, http.MethodGet, "/api/locks?"+q.Encode(), nil, false, &out)
	return &out, err
}

func (c *Client) VaultAddress(ctx context.Context, owner, asset common.Address, seed uint64) (common.Address, error) {
	q := url.Values{}
	q.Set("owner", owner.Hex())
	q.Set("asset", asset.Hex())
	q.Set("seed", strconv.FormatUint(seed, 10))
	var out struct {
		Address common.Address `json:"address"`
	}
	err := c.do(ctx, http.MethodGet, "/api/address/vault?"+q.Encode(), nil, false, &out)
	return out.Address, err
}

func (c *Client) Balance(ctx context.Context, owner, asset common.Address) (*Balance, error) {
	q := url.Values{}
	q.Set("owner", owner.Hex())
	q.Set("asset", asset.Hex())
	var out Balance
	err := c.do(ctx, http.MethodGet, "/api/balance?"+q.Encode(), nil, false, &out)
	return &out, err
}

// Deposit funds a ledger account. Only served in development.
func (c *Client) Deposit(ctx context.Context, owner, asset common.Address, amount uint64) (*model.TokenAccount, error) {
	body := map[string]any{"owner": owner.Hex(), "asset": asset.Hex(), "amount": amount}
	var out model.TokenAccount
	err := c.do(ctx, http.MethodPost, "/api/dev/deposit", body, true, &out)
	return &out, err
}

func (c *Client) do(ctx context.Context, method, path string, in any, sign bool, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sign {
		if c.key == nil {
			return service.ErrMissingSignature
		}
		ts := c.now().Unix()
		sig, err := service.SignRequest(c.key, method, req.URL.RequestURI(), ts, body)
		if err != nil {
			return err
		}
		req.Header.Set(service.HeaderAddress, c.address.Hex())
		req.Header.Set(service.HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(service.HeaderSignature, hexutil.Encode(sig))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
