package telegram

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"ledger_bot/internal/logger"
)

// HandlerTask Handler 任务
type HandlerTask struct {
	Ctx         context.Context
	BotInstance *bot.Bot
	Update      *botModels.Update
	Handler     bot.HandlerFunc
}

// WorkerPool Handler 工作池
// 消息处理在固定数量的 worker 协程中执行，避免每条消息起一个 goroutine
type WorkerPool struct {
	taskQueue chan HandlerTask
	wg        sync.WaitGroup
	workers   int
}

// NewWorkerPool 创建工作池
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	pool := &WorkerPool{
		taskQueue: make(chan HandlerTask, queueSize),
		workers:   workers,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	logger.L().Infof("Worker pool started with %d workers, queue size %d", workers, queueSize)
	return pool
}

// worker 工作协程，带 panic recovery
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for task := range p.taskQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.L().Errorf("Worker %d: handler panic recovered: %v", id, r)
					if task.Update.Message != nil {
						_, _ = task.BotInstance.SendMessage(task.Ctx, &bot.SendMessageParams{
							ChatID: task.Update.Message.Chat.ID,
							Text:   "❌ 服务器内部错误，请稍后重试",
						})
					}
				}
			}()

			task.Handler(task.Ctx, task.BotInstance, task.Update)
		}()
	}

	logger.L().Debugf("Worker %d stopped", id)
}

// Submit 提交任务到工作池
// 队列已满时丢弃任务并记告警
func (p *WorkerPool) Submit(task HandlerTask) {
	select {
	case p.taskQueue <- task:
	default:
		logger.L().Warnf("Worker pool queue is full, task dropped")
	}
}

// Shutdown 优雅关闭工作池，等待在途任务完成
func (p *WorkerPool) Shutdown() {
	logger.L().Info("Shutting down worker pool...")
	close(p.taskQueue)
	p.wg.Wait()
	logger.L().Info("Worker pool shut down successfully")
}
