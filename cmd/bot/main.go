package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"ledger_bot/internal/app"
	"ledger_bot/internal/config"
	"ledger_bot/internal/logger"
)

func main() {
	// 初始化logger
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("配置加载失败: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		logger.L().Fatalf("应用初始化失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.L().Errorf("应用运行失败: %v", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Close(closeCtx); err != nil {
		logger.L().Errorf("应用关闭失败: %v", err)
	}
}
