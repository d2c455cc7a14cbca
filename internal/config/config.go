package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用程序配置
type Config struct {
	TelegramToken        string        // Telegram Bot API Token
	BotOwnerIDs          []int64       // Bot管理员ID列表
	MongoURI             string        // MongoDB连接URI
	MongoDBName          string        // MongoDB数据库名称
	Timezone             string        // 记账时区（默认 Asia/Bangkok）
	DedupTTL             time.Duration // 重复 update 去重窗口
	DailySettleEnabled   bool          // 是否启用每日自动结算
	CleanupInterval      time.Duration // 清理任务执行间隔
	RecordRetentionDays  int           // 已删除/已撤销记录保留天数
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "ledger_bot"
	}

	timezone := strings.TrimSpace(os.Getenv("BOT_TIMEZONE"))
	if timezone == "" {
		timezone = "Asia/Bangkok"
	}

	cfg := &Config{
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDBName:         mongoDBName,
		Timezone:            timezone,
		DedupTTL:            time.Hour,
		DailySettleEnabled:  true,
		CleanupInterval:     24 * time.Hour,
		RecordRetentionDays: 30,
	}

	if enabled := strings.TrimSpace(os.Getenv("DAILY_SETTLE_ENABLED")); enabled != "" {
		value, err := strconv.ParseBool(enabled)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DAILY_SETTLE_ENABLED: %w", err)
		}
		cfg.DailySettleEnabled = value
	}

	// 解析BOT_OWNER_IDS
	ownerIDsStr := os.Getenv("BOT_OWNER_IDS")
	if ownerIDsStr != "" {
		var err error
		cfg.BotOwnerIDs, err = parseOwnerIDs(ownerIDsStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse BOT_OWNER_IDS: %w", err)
		}
	}

	// 解析DEDUP_TTL_SECONDS（默认3600秒）
	if ttlStr := strings.TrimSpace(os.Getenv("DEDUP_TTL_SECONDS")); ttlStr != "" {
		seconds, err := strconv.Atoi(ttlStr)
		if err != nil || seconds < 60 {
			return nil, fmt.Errorf("invalid DEDUP_TTL_SECONDS: %s", ttlStr)
		}
		cfg.DedupTTL = time.Duration(seconds) * time.Second
	}

	// 解析CLEANUP_INTERVAL_HOURS（默认24小时）
	if intervalStr := strings.TrimSpace(os.Getenv("CLEANUP_INTERVAL_HOURS")); intervalStr != "" {
		hours, err := strconv.Atoi(intervalStr)
		if err != nil || hours < 1 {
			return nil, fmt.Errorf("invalid CLEANUP_INTERVAL_HOURS: %s", intervalStr)
		}
		cfg.CleanupInterval = time.Duration(hours) * time.Hour
	}

	// 解析RECORD_RETENTION_DAYS（默认30天）
	if retentionStr := strings.TrimSpace(os.Getenv("RECORD_RETENTION_DAYS")); retentionStr != "" {
		days, err := strconv.Atoi(retentionStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RECORD_RETENTION_DAYS: %w", err)
		}
		if days < 1 {
			return nil, fmt.Errorf("RECORD_RETENTION_DAYS must be >= 1, got %d", days)
		}
		cfg.RecordRetentionDays = days
	}

	return cfg, nil
}

// parseOwnerIDs 解析逗号分隔的用户ID字符串
// 支持格式: "123456789" 或 "123456789,987654321"
func parseOwnerIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// Location 返回配置的时区，加载失败时回退到固定 UTC+7
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("ICT", 7*3600)
	}
	return loc
}
