package service

import (
	"context"
	"fmt"
	"time"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/ledger"
	"ledger_bot/internal/telegram/models"
	"ledger_bot/internal/telegram/repository"
)

// LedgerServiceImpl 记账服务实现
type LedgerServiceImpl struct {
	recordRepo   repository.RecordRepository
	settingsRepo repository.SettingsRepository
	location     *time.Location
	now          func() time.Time
}

// NewLedgerService 创建记账服务
func NewLedgerService(recordRepo repository.RecordRepository, settingsRepo repository.SettingsRepository, location *time.Location) LedgerService {
	return &LedgerServiceImpl{
		recordRepo:   recordRepo,
		settingsRepo: settingsRepo,
		location:     location,
		now:          time.Now,
	}
}

// AddRecord 追加一笔入款/下发记录
func (s *LedgerServiceImpl) AddRecord(ctx context.Context, entry *RecordEntry) error {
	if entry.Amount <= 0 {
		return ledger.NewValidationError("金额必须大于 0")
	}

	// 确保群组配置存在，首次记账时落库默认配置
	if _, err := s.GetOrCreateSettings(ctx, entry.ChatID); err != nil {
		return err
	}

	record := &models.LedgerRecord{
		ChatID:          entry.ChatID,
		UserID:          entry.UserID,
		Username:        entry.Username,
		Type:            entry.Type,
		Amount:          entry.Amount,
		Currency:        entry.Currency,
		Status:          models.RecordStatusActive,
		SourceMessageID: entry.SourceMessageID,
		RecordedAt:      s.now().In(s.location),
	}

	if err := s.recordRepo.Append(ctx, record); err != nil {
		logger.L().Errorf("Failed to append ledger record: chat_id=%d err=%v", entry.ChatID, err)
		return fmt.Errorf("记录保存失败")
	}

	logger.L().Infof("Ledger record created: chat_id=%d user_id=%d type=%s amount=%.2f currency=%s",
		entry.ChatID, entry.UserID, entry.Type, entry.Amount, entry.Currency)
	return nil
}

// ReverseLatest 撤销群组最近一笔有效记录
func (s *LedgerServiceImpl) ReverseLatest(ctx context.Context, chatID int64) (*models.LedgerRecord, error) {
	record, err := s.recordRepo.LatestActive(ctx, chatID)
	if err != nil {
		logger.L().Errorf("Failed to query latest active record: chat_id=%d err=%v", chatID, err)
		return nil, fmt.Errorf("查询失败")
	}
	if record == nil {
		return nil, &ledger.NotFoundError{Reason: "没有可撤销的记录"}
	}

	marked, err := s.recordRepo.MarkStatus(ctx, record.ID.Hex(), models.RecordStatusActive, models.RecordStatusReversed)
	if err != nil {
		logger.L().Errorf("Failed to reverse record: chat_id=%d record_id=%s err=%v", chatID, record.ID.Hex(), err)
		return nil, fmt.Errorf("撤销失败")
	}
	if !marked {
		// 记录在查询和标记之间被并发改动
		return nil, &ledger.NotFoundError{Reason: "没有可撤销的记录"}
	}

	logger.L().Infof("Ledger record reversed: chat_id=%d record_id=%s amount=%.2f", chatID, record.ID.Hex(), record.Amount)
	return record, nil
}

// BuildReport 生成账单文本
func (s *LedgerServiceImpl) BuildReport(ctx context.Context, chatID int64, full bool) (string, error) {
	settings, err := s.GetOrCreateSettings(ctx, chatID)
	if err != nil {
		return "", err
	}

	now := s.now().In(s.location)
	s.refreshCutoff(ctx, settings, now)

	statuses := []string{models.RecordStatusActive}
	window := ledger.WindowSinceCutoff
	if full {
		statuses = append(statuses, models.RecordStatusSettled)
		window = ledger.WindowAll
	}

	records, err := s.recordRepo.ListByChatID(ctx, chatID, statuses)
	if err != nil {
		logger.L().Errorf("Failed to list ledger records: chat_id=%d err=%v", chatID, err)
		return "", fmt.Errorf("查询失败")
	}

	report, err := ledger.Compute(records, settings, window, full, now)
	if err != nil {
		return "", err
	}

	return ledger.Format(report), nil
}

// refreshCutoff 查询发生在当日切账时刻之后时，把切账时间推进到当日切账时刻
// 推进条件由存储层过滤保证幂等，每天至多生效一次
func (s *LedgerServiceImpl) refreshCutoff(ctx context.Context, settings *models.GroupSettings, now time.Time) {
	instant, ok := ledger.NextRefresh(settings, now)
	if !ok {
		return
	}

	advanced, err := s.settingsRepo.AdvanceLastRefresh(ctx, settings.ChatID, instant)
	if err != nil {
		logger.L().Errorf("Failed to advance cutoff: chat_id=%d err=%v", settings.ChatID, err)
		return
	}
	if advanced {
		logger.L().Infof("Cutoff advanced: chat_id=%d instant=%s", settings.ChatID, instant.Format(time.RFC3339))
	}

	settings.LastRefreshAt = instant
}

// DailySettle 对 asOf 所在日切账窗口内的记录做日结算
// 手动「日结算」指令传当前时刻；定时任务传前一日时刻，结算刚结束的一天
func (s *LedgerServiceImpl) DailySettle(ctx context.Context, chatID int64, asOf time.Time) (string, int64, error) {
	settings, err := s.GetOrCreateSettings(ctx, chatID)
	if err != nil {
		return "", 0, err
	}

	asOf = asOf.In(s.location)
	s.refreshCutoff(ctx, settings, asOf)

	records, err := s.recordRepo.ListByChatID(ctx, chatID, []string{models.RecordStatusActive})
	if err != nil {
		logger.L().Errorf("Failed to list ledger records: chat_id=%d err=%v", chatID, err)
		return "", 0, fmt.Errorf("查询失败")
	}

	// 窗口限定为 asOf 所在日，且不早于上次切账时刻
	// 上界排除结算日之后的记录，定时结算前一日时不能带走新一天的账
	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, s.location)
	dayEnd := dayStart.Add(24 * time.Hour)
	included := make([]*models.LedgerRecord, 0, len(records))
	for _, record := range records {
		if record.RecordedAt.Before(dayStart) || !record.RecordedAt.Before(dayEnd) {
			continue
		}
		if !settings.LastRefreshAt.IsZero() && record.RecordedAt.Before(settings.LastRefreshAt) {
			continue
		}
		included = append(included, record)
	}

	report, err := ledger.Compute(included, settings, ledger.WindowSinceCutoff, false, asOf)
	if err != nil {
		return "", 0, err
	}

	recordIDs := make([]string, 0, len(included))
	for _, record := range included {
		recordIDs = append(recordIDs, record.ID.Hex())
	}

	settled, err := s.recordRepo.MarkManyByID(ctx, recordIDs, models.RecordStatusActive, models.RecordStatusSettled)
	if err != nil {
		logger.L().Errorf("Failed to settle records: chat_id=%d err=%v", chatID, err)
		return "", 0, fmt.Errorf("结算失败")
	}

	logger.L().Infof("Daily settle completed: chat_id=%d settled=%d", chatID, settled)
	return ledger.Format(report), settled, nil
}

// DeleteAll 将群组全部有效记录标记为已删除
func (s *LedgerServiceImpl) DeleteAll(ctx context.Context, chatID int64) (int64, error) {
	deleted, err := s.recordRepo.MarkAllByChatID(ctx, chatID, models.RecordStatusActive, models.RecordStatusDeleted)
	if err != nil {
		logger.L().Errorf("Failed to delete all records: chat_id=%d err=%v", chatID, err)
		return 0, fmt.Errorf("删除失败")
	}

	logger.L().Infof("All active records deleted: chat_id=%d count=%d", chatID, deleted)
	return deleted, nil
}

// GetOrCreateSettings 读取群组配置，不存在时以默认值创建
func (s *LedgerServiceImpl) GetOrCreateSettings(ctx context.Context, chatID int64) (*models.GroupSettings, error) {
	settings, err := s.settingsRepo.Get(ctx, chatID)
	if err != nil {
		logger.L().Errorf("Failed to query group settings: chat_id=%d err=%v", chatID, err)
		return nil, fmt.Errorf("查询群组配置失败")
	}
	if settings != nil {
		return settings, nil
	}

	settings = models.DefaultGroupSettings(chatID)
	if err := s.settingsRepo.Upsert(ctx, settings); err != nil {
		logger.L().Errorf("Failed to create default settings: chat_id=%d err=%v", chatID, err)
		return nil, fmt.Errorf("创建群组配置失败")
	}

	return settings, nil
}

// UpdateIncomeFeeRate 更新入款费率
func (s *LedgerServiceImpl) UpdateIncomeFeeRate(ctx context.Context, chatID int64, pct float64) error {
	if !models.IsValidFeeRate(pct) {
		return ledger.NewValidationError("入款费率必须在 -100 到 100 之间")
	}
	return s.updateSettings(ctx, chatID, func(settings *models.GroupSettings) {
		settings.IncomeFeeRatePct = pct
	})
}

// UpdateOutgoingFeeRate 更新下发费率
func (s *LedgerServiceImpl) UpdateOutgoingFeeRate(ctx context.Context, chatID int64, pct float64) error {
	if !models.IsValidFeeRate(pct) {
		return ledger.NewValidationError("下发费率必须在 -100 到 100 之间")
	}
	return s.updateSettings(ctx, chatID, func(settings *models.GroupSettings) {
		settings.OutgoingFeeRatePct = pct
	})
}

// UpdateExchangeRate 更新汇率
func (s *LedgerServiceImpl) UpdateExchangeRate(ctx context.Context, chatID int64, rate float64) error {
	if rate <= 0 {
		return ledger.NewValidationError("汇率必须大于 0")
	}
	return s.updateSettings(ctx, chatID, func(settings *models.GroupSettings) {
		settings.ExchangeRate = rate
	})
}

// UpdateCutoffHour 更新切账小时
func (s *LedgerServiceImpl) UpdateCutoffHour(ctx context.Context, chatID int64, hour int) error {
	if !models.IsValidCutoffHour(hour) {
		return ledger.NewValidationError("切账小时必须在 0 到 23 之间，-1 表示关闭自动切账")
	}
	return s.updateSettings(ctx, chatID, func(settings *models.GroupSettings) {
		settings.CutoffHour = hour
	})
}

// UpdateLanguage 更新账单语言
func (s *LedgerServiceImpl) UpdateLanguage(ctx context.Context, chatID int64, language string) error {
	if language != models.LanguageZH && language != models.LanguageTH {
		return ledger.NewValidationError("不支持的语言")
	}
	return s.updateSettings(ctx, chatID, func(settings *models.GroupSettings) {
		settings.Language = language
	})
}

// updateSettings 读取-修改-写回群组配置
func (s *LedgerServiceImpl) updateSettings(ctx context.Context, chatID int64, mutate func(*models.GroupSettings)) error {
	settings, err := s.GetOrCreateSettings(ctx, chatID)
	if err != nil {
		return err
	}

	mutate(settings)

	if err := s.settingsRepo.Upsert(ctx, settings); err != nil {
		logger.L().Errorf("Failed to update group settings: chat_id=%d err=%v", chatID, err)
		return fmt.Errorf("配置保存失败")
	}

	return nil
}
