package service

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	vaultPrefix   = []byte("TokenLockInfo")
	configPrefix  = []byte("OwnerConfig")
	accountPrefix = []byte("AssociatedAccount")
)

// NativeAsset is the asset id of the base-currency balance held directly by an address.
var NativeAsset = common.Address{}

// IsNative reports whether asset is the native sentinel.
func IsNative(asset common.Address) bool {
	return asset == NativeAsset
}

// DeriveVaultAddress returns the vault address for (owner, asset, seed). It needs
// no lookup: the same triple always yields the same vault.
func DeriveVaultAddress(owner, asset common.Address, seed uint64) common.Address {
	var seedBytes [8]byte
	binary.LittleEndian.PutUint64(seedBytes[:], seed)
	return deriveAddress(vaultPrefix, owner.Bytes(), asset.Bytes(), seedBytes[:])
}

// DeriveConfigAddress returns the well-known address of the singleton service config.
func DeriveConfigAddress() common.Address {
	return deriveAddress(configPrefix)
}

// DeriveAssociatedAccount returns the ledger account holding asset on behalf of
// authority. Native balances are held at the authority's own address.
func DeriveAssociatedAccount(authority, asset common.Address) common.Address {
	if IsNative(asset) {
		return authority
	}
	return deriveAddress(accountPrefix, authority.Bytes(), asset.Bytes())
}

func deriveAddress(parts ...[]byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(parts...)[12:])
}
