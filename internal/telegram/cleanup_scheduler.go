package telegram

import (
	"context"
	"time"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/models"
)

// cleanupScheduler 周期清理任务
// 物理删除保留期之外的已删除/已撤销记录；
// 去重集合的过期条目由 TTL 索引自行清理，不在这里处理
type cleanupScheduler struct {
	bot           *Bot
	interval      time.Duration
	retentionDays int
	cancel        context.CancelFunc
	done          chan struct{}
}

func newCleanupScheduler(bot *Bot, interval time.Duration, retentionDays int) *cleanupScheduler {
	return &cleanupScheduler{
		bot:           bot,
		interval:      interval,
		retentionDays: retentionDays,
	}
}

func (s *cleanupScheduler) start() {
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
	logger.L().Infof("Cleanup scheduler started: interval=%s retention_days=%d", s.interval, s.retentionDays)
}

func (s *cleanupScheduler) stop() {
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
	logger.L().Info("Cleanup scheduler stopped")
}

func (s *cleanupScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep 执行一轮清理
func (s *cleanupScheduler) sweep(parent context.Context) {
	runCtx, cancel := context.WithTimeout(parent, 2*time.Minute)
	defer cancel()

	cutoff := time.Now().In(s.bot.location).AddDate(0, 0, -s.retentionDays)
	statuses := []string{models.RecordStatusDeleted, models.RecordStatusReversed}

	deleted, err := s.bot.recordRepo.DeleteOlderThan(runCtx, cutoff, statuses)
	if err != nil {
		logger.L().Errorf("Cleanup sweep failed: %v", err)
		return
	}

	if deleted > 0 {
		logger.L().Infof("Cleanup sweep removed %d records older than %s", deleted, cutoff.Format("2006-01-02"))
	}
}
