package service

import (
	"context"
	"time"

	"ledger_bot/internal/telegram/models"
)

// LedgerService 记账业务逻辑接口
type LedgerService interface {
	// AddRecord 追加一笔入款/下发记录
	AddRecord(ctx context.Context, entry *RecordEntry) error

	// ReverseLatest 撤销群组最近一笔有效记录，返回被撤销的记录
	ReverseLatest(ctx context.Context, chatID int64) (*models.LedgerRecord, error)

	// BuildReport 生成账单文本
	// full 为 false 时只统计上次切账之后的有效记录；
	// 为 true 时统计全部记录（含已结算）
	// 查询发生在当日切账时刻之后时，会先把切账时间推进到当日切账时刻
	BuildReport(ctx context.Context, chatID int64, full bool) (string, error)

	// DailySettle 对 asOf 所在日切账窗口内的记录做日结算：
	// 生成报告并把窗口内记录标记为已结算，返回报告文本与结算条数
	// 手动指令传当前时刻；定时任务传前一日时刻，结算刚结束的一天
	DailySettle(ctx context.Context, chatID int64, asOf time.Time) (string, int64, error)

	// DeleteAll 将群组全部有效记录标记为已删除，返回条数
	DeleteAll(ctx context.Context, chatID int64) (int64, error)

	// GetOrCreateSettings 读取群组配置，不存在时以默认值创建
	GetOrCreateSettings(ctx context.Context, chatID int64) (*models.GroupSettings, error)

	// UpdateIncomeFeeRate 更新入款费率
	UpdateIncomeFeeRate(ctx context.Context, chatID int64, pct float64) error

	// UpdateOutgoingFeeRate 更新下发费率
	UpdateOutgoingFeeRate(ctx context.Context, chatID int64, pct float64) error

	// UpdateExchangeRate 更新汇率
	UpdateExchangeRate(ctx context.Context, chatID int64, rate float64) error

	// UpdateCutoffHour 更新切账小时
	UpdateCutoffHour(ctx context.Context, chatID int64, hour int) error

	// UpdateLanguage 更新账单语言
	UpdateLanguage(ctx context.Context, chatID int64, language string) error
}

// RecordEntry 待记账的一笔记录
type RecordEntry struct {
	ChatID          int64
	UserID          int64
	Username        string
	Type            string // deposit/withdraw
	Amount          float64
	Currency        string // THB/USD
	SourceMessageID int
}

// OperatorService 操作人业务逻辑接口
type OperatorService interface {
	// AddOperator 添加（或恢复）群组操作人
	AddOperator(ctx context.Context, chatID, userID int64, username string) error

	// RemoveOperator 移除群组操作人
	RemoveOperator(ctx context.Context, chatID, userID int64) error

	// ListOperators 列出群组有效操作人
	ListOperators(ctx context.Context, chatID int64) ([]*models.Operator, error)
}
