package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSettingsRepository 群组配置数据访问层（MongoDB 实现）
type MongoSettingsRepository struct {
	collection *mongo.Collection
}

// NewMongoSettingsRepository 创建群组配置 Repository
func NewMongoSettingsRepository(db *mongo.Database) SettingsRepository {
	return &MongoSettingsRepository{
		collection: db.Collection("group_settings"),
	}
}

// Get 读取群组配置，不存在时返回 (nil, nil)
func (r *MongoSettingsRepository) Get(ctx context.Context, chatID int64) (*models.GroupSettings, error) {
	filter := bson.M{"chat_id": chatID}

	var settings models.GroupSettings
	err := r.collection.FindOne(ctx, filter).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group settings: %w", err)
	}

	return &settings, nil
}

// Upsert 写入群组配置（不存在则创建）
func (r *MongoSettingsRepository) Upsert(ctx context.Context, settings *models.GroupSettings) error {
	now := time.Now()
	settings.UpdatedAt = now

	filter := bson.M{"chat_id": settings.ChatID}

	setFields := bson.M{
		"exchange_rate":         settings.ExchangeRate,
		"income_fee_rate_pct":   settings.IncomeFeeRatePct,
		"outgoing_fee_rate_pct": settings.OutgoingFeeRatePct,
		"cutoff_hour":           settings.CutoffHour,
		"all_users_mode":        settings.AllUsersMode,
		"language":              settings.Language,
		"updated_at":            settings.UpdatedAt,
	}

	if !settings.LastRefreshAt.IsZero() {
		setFields["last_refresh_at"] = settings.LastRefreshAt
	}

	update := bson.M{
		"$set":         setFields,
		"$setOnInsert": bson.M{"created_at": now},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert group settings: %w", err)
	}

	return nil
}

// AdvanceLastRefresh 将 last_refresh_at 推进到 instant
// 过滤条件要求存量值缺失或早于 instant，天然幂等
func (r *MongoSettingsRepository) AdvanceLastRefresh(ctx context.Context, chatID int64, instant time.Time) (bool, error) {
	filter := bson.M{
		"chat_id": chatID,
		"$or": bson.A{
			bson.M{"last_refresh_at": bson.M{"$exists": false}},
			bson.M{"last_refresh_at": bson.M{"$lt": instant}},
		},
	}
	update := bson.M{"$set": bson.M{
		"last_refresh_at": instant,
		"updated_at":      time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to advance last refresh: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

// ListChatIDs 枚举所有已知群组
func (r *MongoSettingsRepository) ListChatIDs(ctx context.Context) ([]int64, error) {
	opts := options.Find().SetProjection(bson.M{"chat_id": 1})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list group chat IDs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ChatID int64 `bson:"chat_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode group chat IDs: %w", err)
	}

	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ChatID)
	}

	return ids, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoSettingsRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create group settings indexes: %w", err)
	}

	return nil
}
