package model

import (
	"time"
)

// 账本账户表：转账适配器在此记账
// 同质化资产放在 (owner, asset) 派生的关联账户里；原生币余额放在身份地址本身
type TokenAccount struct {
	Address   string    `gorm:"primaryKey;size:42" json:"address"`
	Owner     string    `gorm:"size:42;not null;index" json:"owner"` // 可以扣款的权限地址
	Asset     string    `gorm:"size:42;not null;index" json:"asset"`
	Amount    uint64    `gorm:"not null;default:0" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TokenAccount) TableName() string {
	return "token_accounts"
}
