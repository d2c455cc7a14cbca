package repository

import (
	"context"
	"fmt"
	"time"

	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSeenUpdateRepository 已处理 update 去重（MongoDB 实现）
// 去重状态放在共享集合里，多个进程实例看到同一份数据；
// 过期条目由 seen_at 上的 TTL 索引自动清理
type MongoSeenUpdateRepository struct {
	collection *mongo.Collection
}

// NewMongoSeenUpdateRepository 创建去重 Repository
func NewMongoSeenUpdateRepository(db *mongo.Database) SeenUpdateRepository {
	return &MongoSeenUpdateRepository{
		collection: db.Collection("seen_updates"),
	}
}

// MarkSeen 标记 update 已处理，返回是否为首次出现
// 用 upsert + $setOnInsert 实现：UpsertedCount 为 1 表示首次
func (r *MongoSeenUpdateRepository) MarkSeen(ctx context.Context, updateID int64) (bool, error) {
	filter := bson.M{"update_id": updateID}
	update := bson.M{"$setOnInsert": models.SeenUpdate{
		UpdateID: updateID,
		SeenAt:   time.Now(),
	}}

	opts := options.Update().SetUpsert(true)
	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return false, fmt.Errorf("failed to mark update seen: %w", err)
	}

	return result.UpsertedCount > 0, nil
}

// EnsureIndexes 确保唯一索引与 TTL 索引存在
func (r *MongoSeenUpdateRepository) EnsureIndexes(ctx context.Context, ttl time.Duration) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "update_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "seen_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl / time.Second)),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create seen update indexes: %w", err)
	}

	return nil
}
