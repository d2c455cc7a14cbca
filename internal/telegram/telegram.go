package telegram

import (
	"context"
	"fmt"
	"time"

	"ledger_bot/internal/config"
	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/ledger"
	"ledger_bot/internal/telegram/repository"
	"ledger_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// Config Telegram Bot 配置
type Config struct {
	Token              string         // Bot Token
	OwnerIDs           []int64        // Owner 用户 IDs
	Location           *time.Location // 记账时区
	DedupTTL           time.Duration  // update 去重窗口
	DailySettleEnabled bool           // 是否启用每日自动结算
	CleanupInterval    time.Duration  // 清理任务执行间隔
	RetentionDays      int            // 已删除/已撤销记录保留天数
	Debug              bool           // 是否开启调试模式
}

// Bot Telegram 记账 Bot 服务
type Bot struct {
	bot      *bot.Bot
	db       *mongo.Database
	ownerIDs []int64
	location *time.Location
	dedupTTL time.Duration

	recordRepo   repository.RecordRepository
	settingsRepo repository.SettingsRepository
	operatorRepo repository.OperatorRepository
	seenRepo     repository.SeenUpdateRepository

	ledgerService   service.LedgerService
	operatorService service.OperatorService
	resolver        *ledger.Resolver

	pool             *WorkerPool
	settleScheduler  *settleScheduler
	cleanupScheduler *cleanupScheduler
}

// New 创建 Telegram Bot 实例
func New(cfg Config, db *mongo.Database) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}
	if cfg.Location == nil {
		cfg.Location = time.FixedZone("ICT", 7*3600)
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = time.Hour
	}

	telegramBot := &Bot{
		db:       db,
		ownerIDs: cfg.OwnerIDs,
		location: cfg.Location,
		dedupTTL: cfg.DedupTTL,
	}

	// 创建 repositories
	telegramBot.recordRepo = repository.NewMongoRecordRepository(db)
	telegramBot.settingsRepo = repository.NewMongoSettingsRepository(db)
	telegramBot.operatorRepo = repository.NewMongoOperatorRepository(db)
	telegramBot.seenRepo = repository.NewMongoSeenUpdateRepository(db)

	// 创建 services
	telegramBot.ledgerService = service.NewLedgerService(telegramBot.recordRepo, telegramBot.settingsRepo, cfg.Location)
	telegramBot.operatorService = service.NewOperatorService(telegramBot.operatorRepo)

	// 创建 bot 实例，所有文本消息走默认 handler 做指令分发
	opts := []bot.Option{
		bot.WithDefaultHandler(telegramBot.handleUpdate),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	telegramBot.bot = b

	// 权限判定：管理员查询走 Telegram API，操作人名单走存储
	// Bot Owner 在任何群都按管理员对待
	telegramBot.resolver = ledger.NewResolver(
		&chatAdminChecker{bot: b, owners: cfg.OwnerIDs},
		telegramBot.operatorRepo,
	)

	// handler 在工作池中异步执行
	telegramBot.pool = NewWorkerPool(8, 256)

	// 定时任务
	if cfg.DailySettleEnabled {
		telegramBot.settleScheduler = newSettleScheduler(telegramBot)
	}
	if cfg.CleanupInterval > 0 {
		telegramBot.cleanupScheduler = newCleanupScheduler(telegramBot, cfg.CleanupInterval, cfg.RetentionDays)
	}

	// 初始化数据库索引
	if err := telegramBot.ensureIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	logger.L().Info("Telegram bot initialized successfully")
	return telegramBot, nil
}

// InitFromConfig 从应用配置初始化 Telegram Bot
func InitFromConfig(cfg *config.Config, db *mongo.Database) (*Bot, error) {
	telegramCfg := Config{
		Token:              cfg.TelegramToken,
		OwnerIDs:           cfg.BotOwnerIDs,
		Location:           cfg.Location(),
		DedupTTL:           cfg.DedupTTL,
		DailySettleEnabled: cfg.DailySettleEnabled,
		CleanupInterval:    cfg.CleanupInterval,
		RetentionDays:      cfg.RecordRetentionDays,
	}
	return New(telegramCfg, db)
}

// Start 启动 Bot（阻塞式，应在 goroutine 中运行）
func (b *Bot) Start(ctx context.Context) error {
	b.settleScheduler.start()
	b.cleanupScheduler.start()

	logger.L().Info("Starting Telegram bot...")
	b.bot.Start(ctx)
	logger.L().Info("Telegram bot stopped")
	return nil
}

// Stop 停止 Bot 及其后台任务
func (b *Bot) Stop(ctx context.Context) error {
	logger.L().Info("Stopping Telegram bot...")
	b.settleScheduler.stop()
	b.cleanupScheduler.stop()
	b.pool.Shutdown()
	return nil
}

// ensureIndexes 确保所有数据库索引存在
func (b *Bot) ensureIndexes(ctx context.Context) error {
	if err := b.recordRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure record indexes: %w", err)
	}
	if err := b.settingsRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure settings indexes: %w", err)
	}
	if err := b.operatorRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure operator indexes: %w", err)
	}
	if err := b.seenRepo.EnsureIndexes(ctx, b.dedupTTL); err != nil {
		return fmt.Errorf("failed to ensure seen update indexes: %w", err)
	}

	logger.L().Debug("All indexes ensured")
	return nil
}

// chatAdminChecker 通过 Telegram API 查询群管理员身份
// 每次调用都是一次网络请求，不做缓存；失败由调用方按非管理员处理
type chatAdminChecker struct {
	bot    *bot.Bot
	owners []int64
}

func (c *chatAdminChecker) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	for _, ownerID := range c.owners {
		if ownerID == userID {
			return true, nil
		}
	}

	member, err := c.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	})
	if err != nil {
		return false, err
	}

	return isAdminMember(member), nil
}

// isAdminMember 群主或管理员视为管理员
func isAdminMember(member *botModels.ChatMember) bool {
	if member == nil {
		return false
	}
	return member.Owner != nil || member.Administrator != nil
}
