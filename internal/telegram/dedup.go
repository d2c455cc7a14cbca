package telegram

import (
	"context"

	"ledger_bot/internal/logger"
)

// isDuplicateUpdate 判断 update 是否在去重窗口内出现过
// 去重集合存储在共享的 MongoDB 集合中，多实例间一致；
// 存储故障时按首次处理继续，宁可重复也不吞掉用户指令
func (b *Bot) isDuplicateUpdate(ctx context.Context, updateID int64) bool {
	first, err := b.seenRepo.MarkSeen(ctx, updateID)
	if err != nil {
		logger.L().Warnf("Dedup check failed, processing anyway: update_id=%d err=%v", updateID, err)
		return false
	}
	return !first
}
