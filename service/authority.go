package service

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/token_locker/model"
)

type AuthorityKind string

const (
	AuthoritySigner AuthorityKind = "signer"
	AuthorityVault  AuthorityKind = "vault"
	AuthorityConfig AuthorityKind = "config"
)

// Authority authorizes debits from ledger accounts it owns. Signer authorities
// come from a verified caller; vault and config authorities are derived by the
// service itself and never handed to callers.
type Authority interface {
	Address() common.Address
	Kind() AuthorityKind
}

type signerAuthority struct {
	addr common.Address
}

// SignerAuthority wraps a caller identity whose request signature was verified.
func SignerAuthority(addr common.Address) Authority {
	return signerAuthority{addr: addr}
}

func (a signerAuthority) Address() common.Address { return a.addr }
func (a signerAuthority) Kind() AuthorityKind     { return AuthoritySigner }

type vaultAuthority struct {
	addr common.Address
}

func (a vaultAuthority) Address() common.Address { return a.addr }
func (a vaultAuthority) Kind() AuthorityKind     { return AuthorityVault }

// vaultAuthorityFor grants the vault's own authority only if the record sits at
// the address its (owner, asset, seed) derive to.
func vaultAuthorityFor(v *model.Vault) (Authority, error) {
	derived := DeriveVaultAddress(common.HexToAddress(v.Owner), common.HexToAddress(v.Asset), v.Seed)
	if derived != common.HexToAddress(v.Address) {
		return nil, fmt.Errorf("%w: record %s, derived %s", ErrVaultAddressMismatch, v.Address, derived.Hex())
	}
	return vaultAuthority{addr: derived}, nil
}

type configAuthority struct{}

func (configAuthority) Address() common.Address { return DeriveConfigAddress() }
func (configAuthority) Kind() AuthorityKind     { return AuthorityConfig }
