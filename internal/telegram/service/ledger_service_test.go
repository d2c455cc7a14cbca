package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ledger_bot/internal/telegram/ledger"
	"ledger_bot/internal/telegram/models"
	"ledger_bot/internal/telegram/repository"
)

type stubRecordRepository struct {
	records []*models.LedgerRecord
}

func (s *stubRecordRepository) Append(ctx context.Context, record *models.LedgerRecord) error {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	record.CreatedAt = time.Now()
	clone := *record
	s.records = append(s.records, &clone)
	return nil
}

func (s *stubRecordRepository) ListByChatID(ctx context.Context, chatID int64, statuses []string) ([]*models.LedgerRecord, error) {
	var result []*models.LedgerRecord
	for _, record := range s.records {
		if record.ChatID != chatID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, record.Status) {
			continue
		}
		result = append(result, record)
	}
	return result, nil
}

func (s *stubRecordRepository) LatestActive(ctx context.Context, chatID int64) (*models.LedgerRecord, error) {
	var latest *models.LedgerRecord
	for _, record := range s.records {
		if record.ChatID != chatID || record.Status != models.RecordStatusActive {
			continue
		}
		if latest == nil || record.RecordedAt.After(latest.RecordedAt) {
			latest = record
		}
	}
	return latest, nil
}

func (s *stubRecordRepository) MarkStatus(ctx context.Context, recordID string, from, to string) (bool, error) {
	for _, record := range s.records {
		if record.ID.Hex() == recordID && record.Status == from {
			record.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRecordRepository) MarkAllByChatID(ctx context.Context, chatID int64, from, to string) (int64, error) {
	var count int64
	for _, record := range s.records {
		if record.ChatID == chatID && record.Status == from {
			record.Status = to
			count++
		}
	}
	return count, nil
}

func (s *stubRecordRepository) MarkManyByID(ctx context.Context, recordIDs []string, from, to string) (int64, error) {
	var count int64
	for _, recordID := range recordIDs {
		marked, _ := s.MarkStatus(ctx, recordID, from, to)
		if marked {
			count++
		}
	}
	return count, nil
}

func (s *stubRecordRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, statuses []string) (int64, error) {
	var kept []*models.LedgerRecord
	var count int64
	for _, record := range s.records {
		if containsStatus(statuses, record.Status) && record.RecordedAt.Before(cutoff) {
			count++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return count, nil
}

func (s *stubRecordRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func containsStatus(statuses []string, status string) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

type stubSettingsRepository struct {
	settings *models.GroupSettings
	advanced []time.Time
}

func (s *stubSettingsRepository) Get(ctx context.Context, chatID int64) (*models.GroupSettings, error) {
	if s.settings == nil || s.settings.ChatID != chatID {
		return nil, nil
	}
	clone := *s.settings
	return &clone, nil
}

func (s *stubSettingsRepository) Upsert(ctx context.Context, settings *models.GroupSettings) error {
	clone := *settings
	s.settings = &clone
	return nil
}

func (s *stubSettingsRepository) AdvanceLastRefresh(ctx context.Context, chatID int64, instant time.Time) (bool, error) {
	if s.settings == nil || s.settings.ChatID != chatID {
		return false, nil
	}
	if !s.settings.LastRefreshAt.Before(instant) {
		return false, nil
	}
	s.settings.LastRefreshAt = instant
	s.advanced = append(s.advanced, instant)
	return true, nil
}

func (s *stubSettingsRepository) ListChatIDs(ctx context.Context) ([]int64, error) {
	if s.settings == nil {
		return nil, nil
	}
	return []int64{s.settings.ChatID}, nil
}

func (s *stubSettingsRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func newTestLedgerService(recordRepo *stubRecordRepository, settingsRepo *stubSettingsRepository, now time.Time) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		recordRepo:   recordRepo,
		settingsRepo: settingsRepo,
		location:     time.UTC,
		now:          func() time.Time { return now },
	}
}

func TestAddRecordRejectsNonPositiveAmount(t *testing.T) {
	service := newTestLedgerService(&stubRecordRepository{}, &stubSettingsRepository{}, time.Now())

	err := service.AddRecord(context.Background(), &RecordEntry{
		ChatID:   -100,
		UserID:   1,
		Type:     models.RecordTypeDeposit,
		Amount:   0,
		Currency: models.CurrencyTHB,
	})
	if !ledger.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddRecordCreatesDefaultSettings(t *testing.T) {
	recordRepo := &stubRecordRepository{}
	settingsRepo := &stubSettingsRepository{}
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	service := newTestLedgerService(recordRepo, settingsRepo, now)

	err := service.AddRecord(context.Background(), &RecordEntry{
		ChatID:   -100,
		UserID:   1,
		Username: "alice",
		Type:     models.RecordTypeDeposit,
		Amount:   150,
		Currency: models.CurrencyTHB,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if settingsRepo.settings == nil {
		t.Fatalf("expected default settings to be created")
	}
	if settingsRepo.settings.ExchangeRate != 35 {
		t.Fatalf("expected default exchange rate 35, got %v", settingsRepo.settings.ExchangeRate)
	}

	if len(recordRepo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recordRepo.records))
	}
	record := recordRepo.records[0]
	if record.Status != models.RecordStatusActive {
		t.Fatalf("expected active status, got %s", record.Status)
	}
	if !record.RecordedAt.Equal(now) {
		t.Fatalf("expected recorded_at %v, got %v", now, record.RecordedAt)
	}
}

func TestReverseLatestWithoutRecords(t *testing.T) {
	service := newTestLedgerService(&stubRecordRepository{}, &stubSettingsRepository{}, time.Now())

	_, err := service.ReverseLatest(context.Background(), -100)
	if !ledger.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestReverseLatestMarksNewestRecord(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	recordRepo := &stubRecordRepository{
		records: []*models.LedgerRecord{
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     100,
				Status:     models.RecordStatusActive,
				RecordedAt: now.Add(-2 * time.Hour),
			},
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     200,
				Status:     models.RecordStatusActive,
				RecordedAt: now.Add(-time.Hour),
			},
		},
	}
	service := newTestLedgerService(recordRepo, &stubSettingsRepository{}, now)

	record, err := service.ReverseLatest(context.Background(), -100)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.Amount != 200 {
		t.Fatalf("expected newest record to be reversed, got amount %v", record.Amount)
	}
	if recordRepo.records[1].Status != models.RecordStatusReversed {
		t.Fatalf("expected record to be marked reversed, got %s", recordRepo.records[1].Status)
	}
	if recordRepo.records[0].Status != models.RecordStatusActive {
		t.Fatalf("expected older record to stay active")
	}
}

func TestBuildReportAdvancesCutoffAndExcludesOldRecords(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	settings := models.DefaultGroupSettings(-100)
	settings.CutoffHour = 6

	recordRepo := &stubRecordRepository{
		records: []*models.LedgerRecord{
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     1000,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusActive,
				RecordedAt: now.Add(-10 * time.Hour), // 当天 04:00，切账前
			},
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     500,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusActive,
				RecordedAt: now.Add(-time.Hour),
			},
		},
	}
	settingsRepo := &stubSettingsRepository{settings: settings}
	service := newTestLedgerService(recordRepo, settingsRepo, now)

	text, err := service.BuildReport(context.Background(), -100, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(settingsRepo.advanced) != 1 {
		t.Fatalf("expected cutoff to advance once, got %d", len(settingsRepo.advanced))
	}
	expected := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	if !settingsRepo.advanced[0].Equal(expected) {
		t.Fatalf("expected cutoff instant %v, got %v", expected, settingsRepo.advanced[0])
	}

	// 切账前的 1000 不计入，账单只含切账后的 500
	if strings.Contains(text, "1000") {
		t.Fatalf("expected pre-cutoff record to be excluded, got:\n%s", text)
	}
	if !strings.Contains(text, "500") {
		t.Fatalf("expected post-cutoff record in report, got:\n%s", text)
	}
}

func TestBuildReportFullIncludesSettled(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	recordRepo := &stubRecordRepository{
		records: []*models.LedgerRecord{
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     777,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusSettled,
				RecordedAt: now.Add(-48 * time.Hour),
			},
		},
	}
	service := newTestLedgerService(recordRepo, &stubSettingsRepository{}, now)

	text, err := service.BuildReport(context.Background(), -100, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(text, "777") {
		t.Fatalf("expected settled record hidden from normal report")
	}

	text, err = service.BuildReport(context.Background(), -100, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(text, "777") {
		t.Fatalf("expected settled record in full report, got:\n%s", text)
	}
}

func TestDailySettleIsIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	recordRepo := &stubRecordRepository{
		records: []*models.LedgerRecord{
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     1000,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusActive,
				RecordedAt: now.Add(-time.Hour),
			},
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeWithdraw,
				Amount:     300,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusActive,
				RecordedAt: now.Add(-30 * time.Minute),
			},
		},
	}
	service := newTestLedgerService(recordRepo, &stubSettingsRepository{}, now)

	_, settled, err := service.DailySettle(context.Background(), -100, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settled != 2 {
		t.Fatalf("expected 2 settled records, got %d", settled)
	}

	// 连续两次结算，第二次没有可结算的记录
	_, settled, err = service.DailySettle(context.Background(), -100, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settled != 0 {
		t.Fatalf("expected second settle to settle 0 records, got %d", settled)
	}
}

func TestDailySettleSkipsRecordsFromPreviousDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	recordRepo := &stubRecordRepository{
		records: []*models.LedgerRecord{
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     1000,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusActive,
				RecordedAt: now.Add(-24 * time.Hour),
			},
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     500,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusActive,
				RecordedAt: now.Add(-time.Hour),
			},
		},
	}
	service := newTestLedgerService(recordRepo, &stubSettingsRepository{}, now)

	_, settled, err := service.DailySettle(context.Background(), -100, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settled != 1 {
		t.Fatalf("expected only today's record to settle, got %d", settled)
	}
	if recordRepo.records[0].Status != models.RecordStatusActive {
		t.Fatalf("expected yesterday's record to stay active, got %s", recordRepo.records[0].Status)
	}
}

// 定时任务在 00:00:05 触发，传入前一日时刻，结算的是刚结束的一天
func TestDailySettleAtMidnightSettlesPreviousDay(t *testing.T) {
	now := time.Date(2025, 3, 11, 0, 0, 5, 0, time.UTC)
	recordRepo := &stubRecordRepository{
		records: []*models.LedgerRecord{
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     1000,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusActive,
				RecordedAt: time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC),
			},
			{
				ID:         primitive.NewObjectID(),
				ChatID:     -100,
				Type:       models.RecordTypeDeposit,
				Amount:     500,
				Currency:   models.CurrencyTHB,
				Status:     models.RecordStatusActive,
				RecordedAt: time.Date(2025, 3, 11, 0, 0, 1, 0, time.UTC),
			},
		},
	}
	service := newTestLedgerService(recordRepo, &stubSettingsRepository{}, now)

	report, settled, err := service.DailySettle(context.Background(), -100, now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settled != 1 {
		t.Fatalf("expected previous day's record to settle, got %d", settled)
	}
	if !strings.Contains(report, "1000") {
		t.Fatalf("expected previous day's record in report, got:\n%s", report)
	}
	if recordRepo.records[0].Status != models.RecordStatusSettled {
		t.Fatalf("expected previous day's record settled, got %s", recordRepo.records[0].Status)
	}
	if recordRepo.records[1].Status != models.RecordStatusActive {
		t.Fatalf("expected new day's record to stay active, got %s", recordRepo.records[1].Status)
	}
}

func TestDeleteAllMarksRecordsDeleted(t *testing.T) {
	now := time.Now()
	recordRepo := &stubRecordRepository{
		records: []*models.LedgerRecord{
			{ID: primitive.NewObjectID(), ChatID: -100, Status: models.RecordStatusActive, RecordedAt: now},
			{ID: primitive.NewObjectID(), ChatID: -100, Status: models.RecordStatusActive, RecordedAt: now},
			{ID: primitive.NewObjectID(), ChatID: -200, Status: models.RecordStatusActive, RecordedAt: now},
		},
	}
	service := newTestLedgerService(recordRepo, &stubSettingsRepository{}, now)

	deleted, err := service.DeleteAll(context.Background(), -100)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted records, got %d", deleted)
	}
	if recordRepo.records[2].Status != models.RecordStatusActive {
		t.Fatalf("expected other group's record untouched")
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	service := newTestLedgerService(&stubRecordRepository{}, &stubSettingsRepository{}, time.Now())
	ctx := context.Background()

	if err := service.UpdateIncomeFeeRate(ctx, -100, 150); !ledger.IsValidationError(err) {
		t.Fatalf("expected validation error for fee rate 150, got %v", err)
	}
	if err := service.UpdateExchangeRate(ctx, -100, 0); !ledger.IsValidationError(err) {
		t.Fatalf("expected validation error for exchange rate 0, got %v", err)
	}
	if err := service.UpdateCutoffHour(ctx, -100, 24); !ledger.IsValidationError(err) {
		t.Fatalf("expected validation error for cutoff hour 24, got %v", err)
	}
	if err := service.UpdateLanguage(ctx, -100, "en"); !ledger.IsValidationError(err) {
		t.Fatalf("expected validation error for unsupported language, got %v", err)
	}
}

func TestUpdateSettingsPersistsChanges(t *testing.T) {
	settingsRepo := &stubSettingsRepository{}
	service := newTestLedgerService(&stubRecordRepository{}, settingsRepo, time.Now())
	ctx := context.Background()

	if err := service.UpdateIncomeFeeRate(ctx, -100, 6); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settingsRepo.settings.IncomeFeeRatePct != 6 {
		t.Fatalf("expected income fee rate 6, got %v", settingsRepo.settings.IncomeFeeRatePct)
	}

	if err := service.UpdateLanguage(ctx, -100, models.LanguageTH); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settingsRepo.settings.Language != models.LanguageTH {
		t.Fatalf("expected language th, got %s", settingsRepo.settings.Language)
	}
}

var _ repository.RecordRepository = (*stubRecordRepository)(nil)
var _ repository.SettingsRepository = (*stubSettingsRepository)(nil)
