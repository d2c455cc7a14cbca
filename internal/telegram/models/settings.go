package models

import (
	"time"
)

// 账单语言常量
const (
	LanguageZH = "zh" // 中文
	LanguageTH = "th" // 泰文
)

// CutoffDisabled 表示群组不做自动切账
const CutoffDisabled = -1

// GroupSettings 群组记账配置
// 每个群组首次写入时以 DefaultGroupSettings 为基础创建
type GroupSettings struct {
	ChatID             int64     `bson:"chat_id"`                   // 群组 Chat ID（唯一）
	ExchangeRate       float64   `bson:"exchange_rate"`             // 汇率（THB 兑 USDT）
	IncomeFeeRatePct   float64   `bson:"income_fee_rate_pct"`       // 入款费率（百分比，允许负数）
	OutgoingFeeRatePct float64   `bson:"outgoing_fee_rate_pct"`     // 下发费率（百分比，允许负数）
	CutoffHour         int       `bson:"cutoff_hour"`               // 切账小时（0-23，-1 表示不自动切账）
	AllUsersMode       bool      `bson:"all_users_mode"`            // 是否全员可记账
	Language           string    `bson:"language"`                  // 账单语言：zh/th
	LastRefreshAt      time.Time `bson:"last_refresh_at,omitempty"` // 上次切账时间（零值表示从未切账）
	CreatedAt          time.Time `bson:"created_at"`                // 创建时间
	UpdatedAt          time.Time `bson:"updated_at"`                // 更新时间
}

// DefaultGroupSettings 返回群组的默认配置
// 所有调用方共用这一份默认值，避免各处散落不一致的字面量
func DefaultGroupSettings(chatID int64) *GroupSettings {
	return &GroupSettings{
		ChatID:             chatID,
		ExchangeRate:       35,
		IncomeFeeRatePct:   5,
		OutgoingFeeRatePct: 0,
		CutoffHour:         CutoffDisabled,
		AllUsersMode:       false,
		Language:           LanguageZH,
	}
}

// HasCutoff 是否启用自动切账
func (s *GroupSettings) HasCutoff() bool {
	return s.CutoffHour >= 0 && s.CutoffHour <= 23
}

// IsValidFeeRate 费率是否在允许区间 [-100, 100]
func IsValidFeeRate(pct float64) bool {
	return pct >= -100 && pct <= 100
}

// IsValidCutoffHour 切账小时是否合法（-1 或 0-23）
func IsValidCutoffHour(hour int) bool {
	return hour == CutoffDisabled || (hour >= 0 && hour <= 23)
}
