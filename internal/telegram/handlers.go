package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ledger_bot/internal/expr"
	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/ledger"
	"ledger_bot/internal/telegram/models"
	"ledger_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// handleUpdate 所有消息的入口
// 去重后解析为指令并提交到工作池异步执行
func (b *Bot) handleUpdate(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if update.Message.Text == "" {
		return
	}

	// 同一 updateId 在去重窗口内只处理一次
	if b.isDuplicateUpdate(ctx, update.ID) {
		logger.L().Debugf("Duplicate update ignored: update_id=%d", update.ID)
		return
	}

	b.pool.Submit(HandlerTask{
		Ctx:         ctx,
		BotInstance: botInstance,
		Update:      update,
		Handler:     b.handleMessage,
	})
}

// handleMessage 解析并执行指令
func (b *Bot) handleMessage(ctx context.Context, _ *bot.Bot, update *botModels.Update) {
	msg := update.Message
	cmd := ledger.Parse(buildParseInput(msg))

	// 未识别的消息静默忽略
	if cmd.Kind == ledger.KindUnrecognized {
		return
	}

	// 自助查询类指令不做权限判定
	switch cmd.Kind {
	case ledger.KindWhoAmI:
		b.handleWhoAmI(ctx, msg)
		return
	case ledger.KindListOperators:
		b.handleListOperators(ctx, msg)
		return
	case ledger.KindCalc:
		b.handleCalc(ctx, msg, cmd)
		return
	}

	// 账本相关指令仅在群组中可用
	if !isGroupChat(msg) {
		return
	}

	// 先过权限，再报参数校验错误
	settings, err := b.ledgerService.GetOrCreateSettings(ctx, msg.Chat.ID)
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}

	decision := b.resolver.Authorize(ctx, msg.Chat.ID, msg.From.ID, settings)
	if !decision.Allowed {
		b.sendErrorMessage(ctx, msg.Chat.ID, fmt.Sprintf("权限不足：%s", decision.Reason))
		return
	}

	if cmd.Err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, cmd.Err.Error())
		return
	}

	switch cmd.Kind {
	case ledger.KindDeposit, ledger.KindWithdraw:
		b.handleRecord(ctx, msg, cmd)
	case ledger.KindReverseLast:
		b.handleReverse(ctx, msg)
	case ledger.KindShowLedger:
		b.handleShowLedger(ctx, msg, cmd.Full)
	case ledger.KindDailySettle:
		b.handleDailySettle(ctx, msg)
	case ledger.KindDeleteAll:
		b.handleDeleteAll(ctx, msg)
	case ledger.KindAddOperator:
		b.handleAddOperator(ctx, msg, cmd)
	case ledger.KindRemoveOperator:
		b.handleRemoveOperator(ctx, msg, cmd)
	case ledger.KindSetIncomeFeeRate:
		b.handleSettingChange(ctx, msg, b.ledgerService.UpdateIncomeFeeRate(ctx, msg.Chat.ID, cmd.Pct),
			fmt.Sprintf("入款费率已设置为 %s%%", formatNumber(cmd.Pct)))
	case ledger.KindSetOutgoingFeeRate:
		b.handleSettingChange(ctx, msg, b.ledgerService.UpdateOutgoingFeeRate(ctx, msg.Chat.ID, cmd.Pct),
			fmt.Sprintf("下发费率已设置为 %s%%", formatNumber(cmd.Pct)))
	case ledger.KindSetExchangeRate:
		b.handleSettingChange(ctx, msg, b.ledgerService.UpdateExchangeRate(ctx, msg.Chat.ID, cmd.Rate),
			fmt.Sprintf("汇率已设置为 %s", formatNumber(cmd.Rate)))
	case ledger.KindSetCutoffHour:
		b.handleSettingChange(ctx, msg, b.ledgerService.UpdateCutoffHour(ctx, msg.Chat.ID, cmd.Hour),
			formatCutoffNotice(cmd.Hour))
	case ledger.KindSetLanguage:
		b.handleSettingChange(ctx, msg, b.ledgerService.UpdateLanguage(ctx, msg.Chat.ID, cmd.Language),
			"账单语言已更新")
	}
}

// buildParseInput 从 Telegram 消息提取解析所需的上下文
func buildParseInput(msg *botModels.Message) ledger.Input {
	in := ledger.Input{Text: msg.Text}

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		in.ReplyFrom = &ledger.Target{
			UserID: msg.ReplyToMessage.From.ID,
			Name:   displayName(msg.ReplyToMessage.From),
		}
	}

	for _, entity := range msg.Entities {
		if entity.Type == botModels.MessageEntityTypeTextMention && entity.User != nil {
			in.Mention = &ledger.Target{
				UserID: entity.User.ID,
				Name:   displayName(entity.User),
			}
			break
		}
	}

	return in
}

// handleWhoAmI 回复用户自己的 ID
func (b *Bot) handleWhoAmI(ctx context.Context, msg *botModels.Message) {
	text := fmt.Sprintf("👤 %s\nID: <code>%d</code>", displayName(msg.From), msg.From.ID)
	b.sendMessage(ctx, msg.Chat.ID, text, msg.ID)
}

// handleCalc 计算算术表达式
func (b *Bot) handleCalc(ctx context.Context, msg *botModels.Message, cmd ledger.Command) {
	result, err := expr.Evaluate(cmd.Expr)
	if err != nil {
		logger.L().Debugf("Expression evaluation failed: chat_id=%d text=%q err=%v", msg.Chat.ID, cmd.Expr, err)
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("🧮 %s = %g", cmd.Expr, result), msg.ID)
}

// handleRecord 处理入款/下发
func (b *Bot) handleRecord(ctx context.Context, msg *botModels.Message, cmd ledger.Command) {
	recordType := models.RecordTypeDeposit
	if cmd.Kind == ledger.KindWithdraw {
		recordType = models.RecordTypeWithdraw
	}

	entry := &service.RecordEntry{
		ChatID:          msg.Chat.ID,
		UserID:          msg.From.ID,
		Username:        displayName(msg.From),
		Type:            recordType,
		Amount:          cmd.Amount,
		Currency:        cmd.Currency,
		SourceMessageID: msg.ID,
	}

	if err := b.ledgerService.AddRecord(ctx, entry); err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}

	// 记账成功后回以当前账单
	report, err := b.ledgerService.BuildReport(ctx, msg.Chat.ID, false)
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, report)
}

// handleReverse 撤销最近一笔记录
func (b *Bot) handleReverse(ctx context.Context, msg *botModels.Message) {
	record, err := b.ledgerService.ReverseLatest(ctx, msg.Chat.ID)
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}

	b.sendSuccessMessage(ctx, msg.Chat.ID,
		fmt.Sprintf("已撤销：%s %s %s", record.RecordedAt.Format("15:04"), formatNumber(record.Amount), record.Currency))
}

// handleShowLedger 查询账单
func (b *Bot) handleShowLedger(ctx context.Context, msg *botModels.Message, full bool) {
	report, err := b.ledgerService.BuildReport(ctx, msg.Chat.ID, full)
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, report)
}

// handleDailySettle 手动日结算，结算当日
func (b *Bot) handleDailySettle(ctx context.Context, msg *botModels.Message) {
	report, settled, err := b.ledgerService.DailySettle(ctx, msg.Chat.ID, time.Now().In(b.location))
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, report)
	if settled > 0 {
		b.sendSuccessMessage(ctx, msg.Chat.ID, fmt.Sprintf("已结算 %d 笔记录", settled))
	}
}

// handleDeleteAll 删除群组全部有效记录（不出报告）
func (b *Bot) handleDeleteAll(ctx context.Context, msg *botModels.Message) {
	deleted, err := b.ledgerService.DeleteAll(ctx, msg.Chat.ID)
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}
	b.sendSuccessMessage(ctx, msg.Chat.ID, fmt.Sprintf("已删除 %d 条记录", deleted))
}

// handleAddOperator 添加操作人
func (b *Bot) handleAddOperator(ctx context.Context, msg *botModels.Message, cmd ledger.Command) {
	if err := b.operatorService.AddOperator(ctx, msg.Chat.ID, cmd.Target.UserID, cmd.Target.Name); err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}
	b.sendSuccessMessage(ctx, msg.Chat.ID, fmt.Sprintf("已添加操作人：%s", cmd.Target.Name))
}

// handleRemoveOperator 移除操作人
func (b *Bot) handleRemoveOperator(ctx context.Context, msg *botModels.Message, cmd ledger.Command) {
	if err := b.operatorService.RemoveOperator(ctx, msg.Chat.ID, cmd.Target.UserID); err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}
	b.sendSuccessMessage(ctx, msg.Chat.ID, fmt.Sprintf("已移除操作人：%s", cmd.Target.Name))
}

// handleListOperators 查看操作人列表
func (b *Bot) handleListOperators(ctx context.Context, msg *botModels.Message) {
	operators, err := b.operatorService.ListOperators(ctx, msg.Chat.ID)
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}

	if len(operators) == 0 {
		b.sendMessage(ctx, msg.Chat.ID, "📝 暂无操作人")
		return
	}

	var text strings.Builder
	text.WriteString("👥 操作人列表:\n\n")
	for i, operator := range operators {
		text.WriteString(fmt.Sprintf("%d. %s - ID: %d\n", i+1, operator.Username, operator.UserID))
	}

	b.sendMessage(ctx, msg.Chat.ID, text.String())
}

// handleSettingChange 配置类指令的统一回复
func (b *Bot) handleSettingChange(ctx context.Context, msg *botModels.Message, err error, successText string) {
	if err != nil {
		b.sendErrorMessage(ctx, msg.Chat.ID, err.Error())
		return
	}
	b.sendSuccessMessage(ctx, msg.Chat.ID, successText)
}

// isGroupChat 是否为群组消息
func isGroupChat(msg *botModels.Message) bool {
	return msg.Chat.Type == "group" || msg.Chat.Type == "supergroup"
}

// displayName 用户展示名：优先 username，退回姓名
func displayName(user *botModels.User) string {
	if user.Username != "" {
		return "@" + user.Username
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = fmt.Sprintf("user_%d", user.ID)
	}
	return name
}

// formatNumber 格式化数字（整数省略小数位）
func formatNumber(value float64) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d", int64(value))
	}
	return fmt.Sprintf("%.2f", value)
}

// formatCutoffNotice 切账设置的回执文案
func formatCutoffNotice(hour int) string {
	if hour == models.CutoffDisabled {
		return "已关闭自动切账"
	}
	return fmt.Sprintf("切账时间已设置为每日 %02d:00", hour)
}
