package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SeenUpdate 已处理的 Telegram update 标记
// 多个进程实例共享这张集合实现 webhook 去重，过期由 TTL 索引清理
type SeenUpdate struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	UpdateID int64              `bson:"update_id"` // Telegram update_id（唯一）
	SeenAt   time.Time          `bson:"seen_at"`   // 首次处理时间（TTL 索引字段）
}
