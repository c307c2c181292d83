package service

import (
	"fmt"

	"github.com/dushixiang/apiping/internal/repo"
	"github.com/go-errors/errors"
)

// 错误类型，调用方通过 errors.Is 判断
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// ValidationError 参数校验失败，Fields 为字段名到提示信息的映射
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Fields)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func notFound(format string, args ...interface{}) error {
	return errors.WrapPrefix(ErrNotFound, fmt.Sprintf(format, args...), 1)
}

func conflict(format string, args ...interface{}) error {
	return errors.WrapPrefix(ErrConflict, fmt.Sprintf(format, args...), 1)
}

func invalidInput(format string, args ...interface{}) error {
	return errors.WrapPrefix(ErrInvalidInput, fmt.Sprintf(format, args...), 1)
}

func internal(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.WrapPrefix(ErrInternal, fmt.Sprintf("%s: %v", message, err), 1)
}

// mapRepoError 将仓库层错误转换为服务层错误类型
func mapRepoError(err error, what string, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return notFound("%s %s", what, id)
	case errors.Is(err, repo.ErrDuplicateKey):
		return conflict("%s %s already exists", what, id)
	default:
		return internal(err, what)
	}
}
