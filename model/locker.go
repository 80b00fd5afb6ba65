package model

import (
	"time"
)

// 服务全局配置：整个系统只有一行，地址由固定种子派生
type ServiceConfig struct {
	Address       string    `gorm:"primaryKey;size:42" json:"address"`
	Operator      string    `gorm:"size:42;not null" json:"operator"`         // 运营方，初始化后不可变
	FeeAsset      string    `gorm:"size:42;not null" json:"fee_asset"`        // 手续费资产（USDC 之类）
	CollectedFees uint64    `gorm:"not null;default:0" json:"collected_fees"` // 未提取的手续费累计（最小单位）
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (ServiceConfig) TableName() string {
	return "service_config"
}

// 锁仓记录：地址由 (owner, asset, seed) 派生，提现后保留为零余额记录
type Vault struct {
	Address      string    `gorm:"primaryKey;size:42" json:"address"`
	Owner        string    `gorm:"size:42;not null;index:idx_vault_owner_asset,priority:1" json:"owner"`
	Asset        string    `gorm:"size:42;not null;index:idx_vault_owner_asset,priority:2" json:"asset"` // 零地址表示原生币
	LockedAmount uint64    `gorm:"not null" json:"locked_amount"`
	UnlockTime   uint64    `gorm:"not null" json:"unlock_time"`   // unix 秒
	CreationTime uint64    `gorm:"not null" json:"creation_time"` // unix 秒，创建后不变
	Seed         uint64    `gorm:"not null" json:"seed"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Vault) TableName() string {
	return "vaults"
}

// Active reports whether the vault still escrows a balance.
func (v *Vault) Active() bool {
	return v.LockedAmount > 0
}
