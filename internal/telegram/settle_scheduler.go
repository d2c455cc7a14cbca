package telegram

import (
	"context"
	"time"

	"ledger_bot/internal/logger"
)

// settleScheduler 每日自动结算任务
// 每天 00:00:05（Bot 时区）对所有已知群组执行日结算并推送报告
type settleScheduler struct {
	bot    *Bot
	cancel context.CancelFunc
	done   chan struct{}
}

// groupResult 单个群组的处理结果
type groupResult struct {
	chatID  int64
	settled int64
	err     error
}

func newSettleScheduler(bot *Bot) *settleScheduler {
	return &settleScheduler{bot: bot}
}

func (s *settleScheduler) start() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	logger.L().Info("Daily settle scheduler started")
}

func (s *settleScheduler) stop() {
	if s == nil {
		return
	}
	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	logger.L().Info("Daily settle scheduler stopped")
}

func (s *settleScheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		now := time.Now().In(s.bot.location)
		next := nextDailyRun(now, s.bot.location)
		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}

		timer := time.NewTimer(wait)
		logger.L().Debugf("Daily settle waiting %s until %s", wait.String(), next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.dispatch(ctx)
		}
	}
}

// dispatch 遍历所有群组执行日结算
// 单个群组失败只记录结果，不中断后续群组
func (s *settleScheduler) dispatch(parent context.Context) {
	if parent.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(parent, 5*time.Minute)
	defer cancel()

	chatIDs, err := s.bot.settingsRepo.ListChatIDs(runCtx)
	if err != nil {
		logger.L().Errorf("Daily settle failed to list groups: %v", err)
		return
	}

	if len(chatIDs) == 0 {
		logger.L().Info("Daily settle skipped: no known groups")
		return
	}

	logger.L().Infof("Daily settle started for %d groups", len(chatIDs))

	// 触发时刻是新一天的 00:00:05，要结算的是刚结束的前一日
	asOf := time.Now().In(s.bot.location).AddDate(0, 0, -1)

	results := make([]groupResult, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		if runCtx.Err() != nil {
			logger.L().Warn("Daily settle aborted: context canceled")
			return
		}

		results = append(results, s.settleGroup(runCtx, chatID, asOf))
	}

	succeeded, failed := 0, 0
	for _, result := range results {
		if result.err != nil {
			failed++
			logger.L().Errorf("Daily settle failed: chat_id=%d err=%v", result.chatID, result.err)
			continue
		}
		succeeded++
	}

	logger.L().Infof("Daily settle completed: groups=%d ok=%d failed=%d", len(results), succeeded, failed)
}

// settleGroup 对单个群组执行日结算并推送报告
func (s *settleScheduler) settleGroup(parent context.Context, chatID int64, asOf time.Time) groupResult {
	groupCtx, cancel := context.WithTimeout(parent, 15*time.Second)
	defer cancel()

	report, settled, err := s.bot.ledgerService.DailySettle(groupCtx, chatID, asOf)
	if err != nil {
		return groupResult{chatID: chatID, err: err}
	}

	if settled == 0 {
		logger.L().Debugf("Daily settle: no records to settle, chat_id=%d", chatID)
		return groupResult{chatID: chatID}
	}

	// 推送失败不影响已完成的结算
	s.bot.sendMessage(groupCtx, chatID, report)
	logger.L().Infof("Daily settle sent: chat_id=%d settled=%d", chatID, settled)
	return groupResult{chatID: chatID, settled: settled}
}

// nextDailyRun 下一次结算时刻：次日 00:00:05
func nextDailyRun(now time.Time, location *time.Location) time.Time {
	local := now.In(location)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 5, 0, location)
	if !next.After(local) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
