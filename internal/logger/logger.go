package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Init 根据环境变量初始化全局 logrus 日志器
// LOG_LEVEL 控制日志级别（默认 info），LOG_FORMAT=json 切换为 JSON 输出
// 可重复调用
func Init() {
	log.SetOutput(os.Stdout)

	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	if lvl, err := log.ParseLevel(levelStr); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// L 返回全局日志器
func L() *log.Logger { return log.StandardLogger() }
