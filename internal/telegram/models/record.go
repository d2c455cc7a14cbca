package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 货币类型常量
const (
	CurrencyTHB = "THB" // 泰铢
	CurrencyUSD = "USD" // 美元
)

// 记录状态常量
// 状态只能由 active 单向流转到 reversed/deleted/settled
const (
	RecordStatusActive   = "active"   // 有效记录
	RecordStatusReversed = "reversed" // 已撤销
	RecordStatusDeleted  = "deleted"  // 已删除
	RecordStatusSettled  = "settled"  // 已结算
)

// 记录方向常量
const (
	RecordTypeDeposit  = "deposit"  // 入款
	RecordTypeWithdraw = "withdraw" // 下发
)

// LedgerRecord 群组账本记录
type LedgerRecord struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	ChatID          int64              `bson:"chat_id"`                     // 群组 Chat ID
	UserID          int64              `bson:"user_id"`                     // 操作用户 ID
	Username        string             `bson:"username,omitempty"`          // 操作用户名
	Type            string             `bson:"type"`                        // deposit/withdraw
	Amount          float64            `bson:"amount"`                      // 金额（恒为正数）
	Currency        string             `bson:"currency"`                    // THB/USD
	Status          string             `bson:"status"`                      // active/reversed/deleted/settled
	SourceMessageID int                `bson:"source_message_id,omitempty"` // 触发记录的消息 ID
	RecordedAt      time.Time          `bson:"recorded_at"`                 // 记账时间
	CreatedAt       time.Time          `bson:"created_at"`                  // 数据库创建时间
}

// IsDeposit 是否为入款记录
func (r *LedgerRecord) IsDeposit() bool {
	return r.Type == RecordTypeDeposit
}

// IsWithdraw 是否为下发记录
func (r *LedgerRecord) IsWithdraw() bool {
	return r.Type == RecordTypeWithdraw
}

// IsActive 是否为有效记录
func (r *LedgerRecord) IsActive() bool {
	return r.Status == RecordStatusActive
}

// CanTransitionTo 校验状态流转是否合法（仅允许 active 向前流转）
func CanTransitionTo(from, to string) bool {
	if from != RecordStatusActive {
		return false
	}
	switch to {
	case RecordStatusReversed, RecordStatusDeleted, RecordStatusSettled:
		return true
	default:
		return false
	}
}
