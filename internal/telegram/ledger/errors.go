package ledger

import "errors"

// ValidationError 输入校验失败
// 直接作为用户可见的提示文案返回，不会触发任何写入
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError 创建校验错误
func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidationError 判断是否为校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError 目标记录不存在（例如撤销时没有可撤销的记录）
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string { return e.Reason }

// IsNotFoundError 判断是否为未找到错误
func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
