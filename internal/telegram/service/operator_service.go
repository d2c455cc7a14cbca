package service

import (
	"context"
	"fmt"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/ledger"
	"ledger_bot/internal/telegram/models"
	"ledger_bot/internal/telegram/repository"
)

// OperatorServiceImpl 操作人服务实现
type OperatorServiceImpl struct {
	operatorRepo repository.OperatorRepository
}

// NewOperatorService 创建操作人服务
func NewOperatorService(operatorRepo repository.OperatorRepository) OperatorService {
	return &OperatorServiceImpl{operatorRepo: operatorRepo}
}

// AddOperator 添加（或恢复）群组操作人
func (s *OperatorServiceImpl) AddOperator(ctx context.Context, chatID, userID int64, username string) error {
	if userID == 0 {
		return ledger.NewValidationError("无效的目标用户")
	}

	operator := &models.Operator{
		ChatID:   chatID,
		UserID:   userID,
		Username: username,
	}

	if err := s.operatorRepo.Upsert(ctx, operator); err != nil {
		logger.L().Errorf("Failed to add operator: chat_id=%d user_id=%d err=%v", chatID, userID, err)
		return fmt.Errorf("添加操作人失败")
	}

	logger.L().Infof("Operator added: chat_id=%d user_id=%d username=%s", chatID, userID, username)
	return nil
}

// RemoveOperator 移除群组操作人
func (s *OperatorServiceImpl) RemoveOperator(ctx context.Context, chatID, userID int64) error {
	matched, err := s.operatorRepo.SetStatus(ctx, chatID, userID, models.OperatorStatusRemoved)
	if err != nil {
		logger.L().Errorf("Failed to remove operator: chat_id=%d user_id=%d err=%v", chatID, userID, err)
		return fmt.Errorf("移除操作人失败")
	}
	if !matched {
		return &ledger.NotFoundError{Reason: "该用户不在操作人列表中"}
	}

	logger.L().Infof("Operator removed: chat_id=%d user_id=%d", chatID, userID)
	return nil
}

// ListOperators 列出群组有效操作人
func (s *OperatorServiceImpl) ListOperators(ctx context.Context, chatID int64) ([]*models.Operator, error) {
	operators, err := s.operatorRepo.ListActive(ctx, chatID)
	if err != nil {
		logger.L().Errorf("Failed to list operators: chat_id=%d err=%v", chatID, err)
		return nil, fmt.Errorf("查询操作人失败")
	}
	return operators, nil
}
