package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoSettingsRepositoryGet(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		now := time.Now().UTC().Truncate(time.Second)
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			settingsNamespace(mt),
			mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "chat_id", Value: int64(-100)},
				{Key: "exchange_rate", Value: 35.0},
				{Key: "income_fee_rate_pct", Value: 6.0},
				{Key: "outgoing_fee_rate_pct", Value: 0.0},
				{Key: "cutoff_hour", Value: 6},
				{Key: "all_users_mode", Value: true},
				{Key: "language", Value: models.LanguageZH},
				{Key: "created_at", Value: now},
				{Key: "updated_at", Value: now},
			},
		))

		settings, err := repo.Get(context.Background(), -100)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if settings == nil {
			t.Fatalf("expected settings, got nil")
		}
		if settings.IncomeFeeRatePct != 6 {
			t.Fatalf("unexpected income fee rate: %v", settings.IncomeFeeRatePct)
		}
		if !settings.AllUsersMode {
			t.Fatalf("expected all users mode enabled")
		}
	})

	mt.Run("missing returns nil", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, settingsNamespace(mt), mtest.FirstBatch))

		settings, err := repo.Get(context.Background(), -999)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if settings != nil {
			t.Fatalf("expected nil settings, got %+v", settings)
		}
	})

	mt.Run("find error", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "mock find error",
		}))

		_, err := repo.Get(context.Background(), -100)
		if err == nil {
			t.Fatalf("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "failed to query group settings") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestMongoSettingsRepositoryUpsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success sets updated_at", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		settings := models.DefaultGroupSettings(-100)
		if err := repo.Upsert(context.Background(), settings); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if settings.UpdatedAt.IsZero() {
			t.Fatalf("expected updated_at to be set")
		}
	})

	mt.Run("upsert error", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    112,
			Name:    "WriteConflict",
			Message: "mock write conflict",
		}))

		err := repo.Upsert(context.Background(), models.DefaultGroupSettings(-100))
		if err == nil {
			t.Fatalf("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "failed to upsert group settings") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestMongoSettingsRepositoryAdvanceLastRefresh(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("advances when behind", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		advanced, err := repo.AdvanceLastRefresh(context.Background(), -100, time.Now())
		if err != nil {
			t.Fatalf("AdvanceLastRefresh failed: %v", err)
		}
		if !advanced {
			t.Fatalf("expected advance to take effect")
		}
	})

	mt.Run("no-op when already current", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		advanced, err := repo.AdvanceLastRefresh(context.Background(), -100, time.Now())
		if err != nil {
			t.Fatalf("AdvanceLastRefresh failed: %v", err)
		}
		if advanced {
			t.Fatalf("expected no advance")
		}
	})

	mt.Run("update error", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    91,
			Name:    "ShutdownInProgress",
			Message: "mock update failure",
		}))

		_, err := repo.AdvanceLastRefresh(context.Background(), -100, time.Now())
		if err == nil {
			t.Fatalf("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "failed to advance last refresh") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestMongoSettingsRepositoryListChatIDs(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			settingsNamespace(mt),
			mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "chat_id", Value: int64(-100)},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "chat_id", Value: int64(-200)},
			},
		))

		ids, err := repo.ListChatIDs(context.Background())
		if err != nil {
			t.Fatalf("ListChatIDs failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != -100 || ids[1] != -200 {
			t.Fatalf("unexpected chat IDs: %v", ids)
		}
	})

	mt.Run("find error", func(mt *mtest.T) {
		repo := &MongoSettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "mock find error",
		}))

		_, err := repo.ListChatIDs(context.Background())
		if err == nil {
			t.Fatalf("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "failed to list group chat IDs") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func settingsNamespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}
