package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecordRepository 账本记录数据访问层（MongoDB 实现）
type MongoRecordRepository struct {
	collection *mongo.Collection
}

// NewMongoRecordRepository 创建账本记录 Repository
func NewMongoRecordRepository(db *mongo.Database) RecordRepository {
	return &MongoRecordRepository{
		collection: db.Collection("ledger_records"),
	}
}

// Append 追加一条账本记录
func (r *MongoRecordRepository) Append(ctx context.Context, record *models.LedgerRecord) error {
	now := time.Now()
	record.CreatedAt = now

	if record.RecordedAt.IsZero() {
		record.RecordedAt = now
	}
	if record.Status == "" {
		record.Status = models.RecordStatusActive
	}

	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to append ledger record: %w", err)
	}

	return nil
}

// ListByChatID 按状态列出群组记录（recorded_at 升序）
func (r *MongoRecordRepository) ListByChatID(ctx context.Context, chatID int64, statuses []string) ([]*models.LedgerRecord, error) {
	filter := bson.M{"chat_id": chatID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.LedgerRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode ledger records: %w", err)
	}

	return records, nil
}

// LatestActive 返回群组最近一条有效记录
func (r *MongoRecordRepository) LatestActive(ctx context.Context, chatID int64) (*models.LedgerRecord, error) {
	filter := bson.M{
		"chat_id": chatID,
		"status":  models.RecordStatusActive,
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "recorded_at", Value: -1}})

	var record models.LedgerRecord
	err := r.collection.FindOne(ctx, filter, opts).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest active record: %w", err)
	}

	return &record, nil
}

// MarkStatus 将单条记录由 from 状态标记为 to 状态
func (r *MongoRecordRepository) MarkStatus(ctx context.Context, recordID string, from, to string) (bool, error) {
	if !models.CanTransitionTo(from, to) {
		return false, fmt.Errorf("invalid status transition: %s -> %s", from, to)
	}

	objID, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return false, fmt.Errorf("invalid record ID: %w", err)
	}

	// 过滤条件带上 from 状态，保证状态只能单向流转
	filter := bson.M{"_id": objID, "status": from}
	update := bson.M{"$set": bson.M{"status": to}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark record status: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

// MarkAllByChatID 将群组所有 from 状态的记录标记为 to 状态
func (r *MongoRecordRepository) MarkAllByChatID(ctx context.Context, chatID int64, from, to string) (int64, error) {
	if !models.CanTransitionTo(from, to) {
		return 0, fmt.Errorf("invalid status transition: %s -> %s", from, to)
	}

	filter := bson.M{"chat_id": chatID, "status": from}
	update := bson.M{"$set": bson.M{"status": to}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark records status: %w", err)
	}

	return result.ModifiedCount, nil
}

// MarkManyByID 将指定记录由 from 状态标记为 to 状态
func (r *MongoRecordRepository) MarkManyByID(ctx context.Context, recordIDs []string, from, to string) (int64, error) {
	if !models.CanTransitionTo(from, to) {
		return 0, fmt.Errorf("invalid status transition: %s -> %s", from, to)
	}
	if len(recordIDs) == 0 {
		return 0, nil
	}

	objIDs := make([]primitive.ObjectID, 0, len(recordIDs))
	for _, id := range recordIDs {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, fmt.Errorf("invalid record ID %q: %w", id, err)
		}
		objIDs = append(objIDs, objID)
	}

	filter := bson.M{
		"_id":    bson.M{"$in": objIDs},
		"status": from,
	}
	update := bson.M{"$set": bson.M{"status": to}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark records status: %w", err)
	}

	return result.ModifiedCount, nil
}

// DeleteOlderThan 物理删除指定状态中早于 cutoff 的记录
func (r *MongoRecordRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, statuses []string) (int64, error) {
	filter := bson.M{
		"status":      bson.M{"$in": statuses},
		"recorded_at": bson.M{"$lt": cutoff},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old ledger records: %w", err)
	}

	return result.DeletedCount, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoRecordRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// 复合索引：chat_id + status + recorded_at（账单查询、最近记录、窗口过滤）
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "recorded_at", Value: -1},
			},
		},
		// 清理任务按状态和时间扫描
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "recorded_at", Value: 1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create ledger record indexes: %w", err)
	}

	return nil
}
