package service

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/token_locker/model"
)

// requireVaultOwner rejects any caller other than the vault's recorded owner.
// It runs before any timing or balance check.
func requireVaultOwner(caller common.Address, v *model.Vault, denied error) error {
	if common.HexToAddress(v.Owner) != caller {
		return fmt.Errorf("%w: caller %s, vault %s", denied, caller.Hex(), v.Address)
	}
	return nil
}

func requireOperator(caller common.Address, cfg *model.ServiceConfig, denied error) error {
	if common.HexToAddress(cfg.Operator) != caller {
		return fmt.Errorf("%w: caller %s", denied, caller.Hex())
	}
	return nil
}
