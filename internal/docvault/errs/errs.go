// Package errs 定义核心的错误分类：调用方错误（参数校验）、
// 认证/授权错误与资源不存在错误。核心只抛出类型化错误，
// 由 handler 层映射到传输层响应。
package errs

import (
	"errors"
	"fmt"
)

// ValidationError 参数校验错误（HTTP 400）
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthenticationError 认证错误（HTTP 401）
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// AuthorizationError 授权错误（HTTP 403）
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// NotFoundError 资源不存在错误（HTTP 404）
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// Validation 构造参数校验错误
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Authorization 构造授权错误
func Authorization(format string, args ...interface{}) error {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

// NotFound 构造资源不存在错误
func NotFound(format string, args ...interface{}) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation 判断错误链中是否包含参数校验错误
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsAuthorization 判断错误链中是否包含授权错误
func IsAuthorization(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

// IsNotFound 判断错误链中是否包含资源不存在错误
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}
