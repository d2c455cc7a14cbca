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

// MongoOperatorRepository 操作人数据访问层（MongoDB 实现）
type MongoOperatorRepository struct {
	collection *mongo.Collection
}

// NewMongoOperatorRepository 创建操作人 Repository
func NewMongoOperatorRepository(db *mongo.Database) OperatorRepository {
	return &MongoOperatorRepository{
		collection: db.Collection("operators"),
	}
}

// Upsert 添加或恢复群组操作人
// 已被移除的操作人再次添加时恢复为有效状态
func (r *MongoOperatorRepository) Upsert(ctx context.Context, operator *models.Operator) error {
	now := time.Now()

	filter := bson.M{
		"chat_id": operator.ChatID,
		"user_id": operator.UserID,
	}

	update := bson.M{
		"$set": bson.M{
			"username":   operator.Username,
			"status":     models.OperatorStatusActive,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert operator: %w", err)
	}

	return nil
}

// SetStatus 更新操作人状态，返回是否存在该操作人
func (r *MongoOperatorRepository) SetStatus(ctx context.Context, chatID, userID int64, status string) (bool, error) {
	filter := bson.M{
		"chat_id": chatID,
		"user_id": userID,
	}
	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update operator status: %w", err)
	}

	return result.MatchedCount > 0, nil
}

// ListActive 列出群组有效操作人
func (r *MongoOperatorRepository) ListActive(ctx context.Context, chatID int64) ([]*models.Operator, error) {
	filter := bson.M{
		"chat_id": chatID,
		"status":  models.OperatorStatusActive,
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query operators: %w", err)
	}
	defer cursor.Close(ctx)

	var operators []*models.Operator
	if err = cursor.All(ctx, &operators); err != nil {
		return nil, fmt.Errorf("failed to decode operators: %w", err)
	}

	return operators, nil
}

// IsActiveOperator 判断用户是否为群组有效操作人
func (r *MongoOperatorRepository) IsActiveOperator(ctx context.Context, chatID, userID int64) (bool, error) {
	filter := bson.M{
		"chat_id": chatID,
		"user_id": userID,
		"status":  models.OperatorStatusActive,
	}

	err := r.collection.FindOne(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query operator: %w", err)
	}

	return true, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoOperatorRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "status", Value: 1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create operator indexes: %w", err)
	}

	return nil
}
