package ledger

import (
	"context"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/models"
)

// 授权理由常量
const (
	ReasonAdmin        = "admin"          // 群管理员/群主
	ReasonAllUsersMode = "all-users-mode" // 群组开启了全员记账
	ReasonOperator     = "operator"       // 名单内有效操作人
)

// Decision 授权结果
type Decision struct {
	Allowed bool
	Reason  string
}

// AdminChecker 查询用户是否为群管理员或群主
// 每次授权都触发一次外部调用，不做缓存；调用失败按非管理员处理（fail-closed）
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// OperatorLookup 查询用户是否在群组操作人名单中且状态有效
type OperatorLookup interface {
	IsActiveOperator(ctx context.Context, chatID, userID int64) (bool, error)
}

// Resolver 记账权限判定
type Resolver struct {
	admins    AdminChecker
	operators OperatorLookup
}

// NewResolver 创建权限判定器
func NewResolver(admins AdminChecker, operators OperatorLookup) *Resolver {
	return &Resolver{admins: admins, operators: operators}
}

// Authorize 判定用户是否可以改动群组账本
// 判定顺序：群管理员 → 全员记账模式 → 操作人名单
// 只有改动账本的指令需要过这一关，我的ID/操作人列表始终放行
func (r *Resolver) Authorize(ctx context.Context, chatID, userID int64, settings *models.GroupSettings) Decision {
	isAdmin, err := r.admins.IsChatAdmin(ctx, chatID, userID)
	if err != nil {
		// 管理员查询失败时按非管理员继续后续判定，绝不放行
		logger.L().Warnf("Admin check failed, treating as non-admin: chat_id=%d user_id=%d err=%v", chatID, userID, err)
		isAdmin = false
	}
	if isAdmin {
		return Decision{Allowed: true, Reason: ReasonAdmin}
	}

	if settings != nil && settings.AllUsersMode {
		return Decision{Allowed: true, Reason: ReasonAllUsersMode}
	}

	isOperator, err := r.operators.IsActiveOperator(ctx, chatID, userID)
	if err != nil {
		logger.L().Warnf("Operator lookup failed: chat_id=%d user_id=%d err=%v", chatID, userID, err)
		isOperator = false
	}
	if isOperator {
		return Decision{Allowed: true, Reason: ReasonOperator}
	}

	return Decision{Allowed: false, Reason: "不是操作人，且未开启全员记账模式"}
}
