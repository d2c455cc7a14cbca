package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ledger_bot/internal/telegram/models"
)

type stubAdminChecker struct {
	admins map[int64]bool
	err    error
}

func (s *stubAdminChecker) IsChatAdmin(_ context.Context, _, userID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.admins[userID], nil
}

type stubOperatorLookup struct {
	operators map[int64]bool
	err       error
}

func (s *stubOperatorLookup) IsActiveOperator(_ context.Context, _, userID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.operators[userID], nil
}

func TestAuthorizeAdminAlwaysAllowed(t *testing.T) {
	resolver := NewResolver(
		&stubAdminChecker{admins: map[int64]bool{1001: true}},
		&stubOperatorLookup{},
	)
	settings := models.DefaultGroupSettings(-100)

	// 管理员无需在操作人名单中
	decision := resolver.Authorize(context.Background(), -100, 1001, settings)
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonAdmin, decision.Reason)
}

func TestAuthorizeOperator(t *testing.T) {
	resolver := NewResolver(
		&stubAdminChecker{},
		&stubOperatorLookup{operators: map[int64]bool{2002: true}},
	)
	settings := models.DefaultGroupSettings(-100)

	decision := resolver.Authorize(context.Background(), -100, 2002, settings)
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonOperator, decision.Reason)

	// 非管理员、非操作人、未开全员模式：拒绝
	decision = resolver.Authorize(context.Background(), -100, 3003, settings)
	assert.False(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)
}

func TestAuthorizeAllUsersMode(t *testing.T) {
	resolver := NewResolver(&stubAdminChecker{}, &stubOperatorLookup{})
	settings := models.DefaultGroupSettings(-100)

	decision := resolver.Authorize(context.Background(), -100, 3003, settings)
	assert.False(t, decision.Allowed)

	// 同一个用户在开启全员模式后放行
	settings.AllUsersMode = true
	decision = resolver.Authorize(context.Background(), -100, 3003, settings)
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonAllUsersMode, decision.Reason)
}

// 管理员查询失败按非管理员处理，绝不放行
func TestAuthorizeAdminCheckFailureIsFailClosed(t *testing.T) {
	resolver := NewResolver(
		&stubAdminChecker{err: errors.New("telegram api unreachable")},
		&stubOperatorLookup{},
	)
	settings := models.DefaultGroupSettings(-100)

	decision := resolver.Authorize(context.Background(), -100, 1001, settings)
	assert.False(t, decision.Allowed)

	// 查询失败不影响操作人名单兜底
	resolver = NewResolver(
		&stubAdminChecker{err: errors.New("telegram api unreachable")},
		&stubOperatorLookup{operators: map[int64]bool{1001: true}},
	)
	decision = resolver.Authorize(context.Background(), -100, 1001, settings)
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonOperator, decision.Reason)
}
