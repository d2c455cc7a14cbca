package ledger

import (
	"time"

	"ledger_bot/internal/telegram/models"
)

// Window 统计窗口
type Window string

const (
	WindowAll         Window = "all"          // 全部记录
	WindowSinceCutoff Window = "since_cutoff" // 上次切账之后的记录
)

// ReportLine 账单明细行
type ReportLine struct {
	RecordedAt    time.Time
	Type          string // deposit/withdraw
	Amount        float64
	Currency      string
	FeeMultiplier float64
	Adjusted      float64
	Username      string
}

// Report 结算报告
type Report struct {
	ChatID            int64
	Window            Window
	Language          string
	Lines             []ReportLine
	DepositCount      int
	WithdrawCount     int
	GrossDeposits     float64
	GrossWithdrawals  float64
	FeeMultiplierIn   float64
	FeeMultiplierOut  float64
	ActualDeposits    float64
	ActualWithdrawals float64
	NetBalance        float64
	ExchangeRate      float64
	GeneratedAt       time.Time
}

// Compute 根据记录与群组配置计算结算报告
// 纯函数：只读取传入的记录，不触发任何存储写入
//
// 金额汇总不做跨币种换算：各记录按原币种金额直接求和，
// 汇率仅用于报告中的 USDT 等值展示行
func Compute(records []*models.LedgerRecord, settings *models.GroupSettings, window Window, includeSettled bool, now time.Time) (*Report, error) {
	if settings == nil {
		return nil, NewValidationError("群组配置缺失")
	}
	if settings.ExchangeRate <= 0 {
		return nil, NewValidationError("汇率无效，请先通过「设置汇率」指令配置")
	}

	report := &Report{
		ChatID:           settings.ChatID,
		Window:           window,
		Language:         settings.Language,
		FeeMultiplierIn:  (100 - settings.IncomeFeeRatePct) / 100,
		FeeMultiplierOut: (100 + settings.OutgoingFeeRatePct) / 100,
		ExchangeRate:     settings.ExchangeRate,
		GeneratedAt:      now,
	}

	for _, record := range records {
		if record.ChatID != settings.ChatID {
			continue
		}
		if !includeRecordStatus(record.Status, includeSettled) {
			continue
		}
		if window == WindowSinceCutoff && !settings.LastRefreshAt.IsZero() &&
			record.RecordedAt.Before(settings.LastRefreshAt) {
			continue
		}

		line := ReportLine{
			RecordedAt: record.RecordedAt,
			Type:       record.Type,
			Amount:     record.Amount,
			Currency:   record.Currency,
			Username:   record.Username,
		}

		switch record.Type {
		case models.RecordTypeDeposit:
			line.FeeMultiplier = report.FeeMultiplierIn
			line.Adjusted = record.Amount * report.FeeMultiplierIn
			report.DepositCount++
			report.GrossDeposits += record.Amount
		case models.RecordTypeWithdraw:
			line.FeeMultiplier = report.FeeMultiplierOut
			line.Adjusted = record.Amount * report.FeeMultiplierOut
			report.WithdrawCount++
			report.GrossWithdrawals += record.Amount
		default:
			continue
		}

		report.Lines = append(report.Lines, line)
	}

	report.ActualDeposits = report.GrossDeposits * report.FeeMultiplierIn
	report.ActualWithdrawals = report.GrossWithdrawals * report.FeeMultiplierOut
	report.NetBalance = report.ActualDeposits - report.ActualWithdrawals

	return report, nil
}

// includeRecordStatus 报告只统计有效记录，回顾历史时额外包含已结算记录
func includeRecordStatus(status string, includeSettled bool) bool {
	if status == models.RecordStatusActive {
		return true
	}
	return includeSettled && status == models.RecordStatusSettled
}

// CutoffInstant 返回 now 当天的切账时刻（所在时区取自 now）
func CutoffInstant(settings *models.GroupSettings, now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), settings.CutoffHour, 0, 0, 0, now.Location())
}

// NextRefresh 判断是否应把 LastRefreshAt 推进到今天的切账时刻
// 返回切账时刻与是否需要推进；每天至多推进一次（幂等）
func NextRefresh(settings *models.GroupSettings, now time.Time) (time.Time, bool) {
	if settings == nil || !settings.HasCutoff() {
		return time.Time{}, false
	}

	instant := CutoffInstant(settings, now)
	if now.Before(instant) {
		return time.Time{}, false
	}
	if !settings.LastRefreshAt.Before(instant) {
		return time.Time{}, false
	}

	return instant, true
}
