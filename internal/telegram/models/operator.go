package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 操作人状态常量
const (
	OperatorStatusActive  = "active"  // 有效操作人
	OperatorStatusRemoved = "removed" // 已移除
)

// Operator 群组操作人
// 操作人是被显式授权记账的非管理员用户
type Operator struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ChatID    int64              `bson:"chat_id"`            // 群组 Chat ID
	UserID    int64              `bson:"user_id"`            // 用户 ID
	Username  string             `bson:"username,omitempty"` // 展示用名称
	Status    string             `bson:"status"`             // active/removed
	CreatedAt time.Time          `bson:"created_at"`         // 创建时间
	UpdatedAt time.Time          `bson:"updated_at"`         // 更新时间
}

// IsActive 是否为有效操作人
func (o *Operator) IsActive() bool {
	return o.Status == OperatorStatusActive
}
