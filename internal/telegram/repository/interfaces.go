package repository

import (
	"context"
	"time"

	"ledger_bot/internal/telegram/models"
)

// RecordRepository 账本记录数据访问接口
type RecordRepository interface {
	// Append 追加一条账本记录
	Append(ctx context.Context, record *models.LedgerRecord) error

	// ListByChatID 按状态列出群组记录（recorded_at 升序）
	// statuses 为空时返回全部状态
	ListByChatID(ctx context.Context, chatID int64, statuses []string) ([]*models.LedgerRecord, error)

	// LatestActive 返回群组最近一条有效记录，不存在时返回 (nil, nil)
	LatestActive(ctx context.Context, chatID int64) (*models.LedgerRecord, error)

	// MarkStatus 将单条记录由 from 状态标记为 to 状态
	// 记录不处于 from 状态时不产生任何改动并返回 false
	MarkStatus(ctx context.Context, recordID string, from, to string) (bool, error)

	// MarkAllByChatID 将群组所有 from 状态的记录标记为 to 状态，返回改动条数
	MarkAllByChatID(ctx context.Context, chatID int64, from, to string) (int64, error)

	// MarkManyByID 将指定记录由 from 状态标记为 to 状态，返回改动条数
	MarkManyByID(ctx context.Context, recordIDs []string, from, to string) (int64, error)

	// DeleteOlderThan 物理删除指定状态中早于 cutoff 的记录（清理任务用）
	DeleteOlderThan(ctx context.Context, cutoff time.Time, statuses []string) (int64, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// SettingsRepository 群组配置数据访问接口
type SettingsRepository interface {
	// Get 读取群组配置，不存在时返回 (nil, nil)
	Get(ctx context.Context, chatID int64) (*models.GroupSettings, error)

	// Upsert 写入群组配置（不存在则创建）
	Upsert(ctx context.Context, settings *models.GroupSettings) error

	// AdvanceLastRefresh 将 last_refresh_at 推进到 instant
	// 仅当存量值早于 instant 时生效，保证每日至多推进一次
	AdvanceLastRefresh(ctx context.Context, chatID int64, instant time.Time) (bool, error)

	// ListChatIDs 枚举所有已知群组
	ListChatIDs(ctx context.Context) ([]int64, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// OperatorRepository 操作人数据访问接口
type OperatorRepository interface {
	// Upsert 添加或恢复群组操作人
	Upsert(ctx context.Context, operator *models.Operator) error

	// SetStatus 更新操作人状态
	SetStatus(ctx context.Context, chatID, userID int64, status string) (bool, error)

	// ListActive 列出群组有效操作人
	ListActive(ctx context.Context, chatID int64) ([]*models.Operator, error)

	// IsActiveOperator 判断用户是否为群组有效操作人
	IsActiveOperator(ctx context.Context, chatID, userID int64) (bool, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// SeenUpdateRepository 已处理 update 去重接口
// 实现为带 TTL 索引的集合，多实例共享
type SeenUpdateRepository interface {
	// MarkSeen 标记 update 已处理，返回是否为首次出现
	MarkSeen(ctx context.Context, updateID int64) (bool, error)

	// EnsureIndexes 确保唯一索引与 TTL 索引存在
	EnsureIndexes(ctx context.Context, ttl time.Duration) error
}
