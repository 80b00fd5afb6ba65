package model

import (
	"time"
)

// 事件类型
const (
	EventInitializeConfig     = "initialize_config"
	EventInitializeFeeAccount = "initialize_fee_account"
	EventLock                 = "lock"
	EventLockNative           = "lock_native"
	EventWithdraw             = "withdraw"
	EventWithdrawNative       = "withdraw_native"
	EventExtend               = "extend"
	EventWithdrawFees         = "withdraw_fees"
	EventUpdateFeeAsset       = "update_fee_asset"
)

// 操作流水表：每次成功的状态变更写一行，与变更在同一事务内
type LockEvent struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind       string    `gorm:"size:32;not null;index" json:"kind"`
	Vault      *string   `gorm:"size:42;index" json:"vault,omitempty"` // 配置类事件为空
	Caller     string    `gorm:"size:42;not null" json:"caller"`
	Asset      string    `gorm:"size:42" json:"asset"`
	Amount     uint64    `json:"amount"`
	UnlockTime uint64    `json:"unlock_time"`
	OccurredAt uint64    `gorm:"not null" json:"occurred_at"` // unix 秒
	CreatedAt  time.Time `json:"-"`
}

func (LockEvent) TableName() string {
	return "lock_events"
}
