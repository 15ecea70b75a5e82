// Package errors 排考引擎与服务共用的错误码
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeTimeout      Code = "TIMEOUT"
	CodeRateLimited  Code = "RATE_LIMITED"

	// 求解
	CodeInvalidConfig    Code = "INVALID_CONFIG"
	CodeInvalidTimeRange Code = "INVALID_TIME_RANGE"
	CodeSolverAborted    Code = "SOLVER_ABORTED"
	CodeRunNotActive     Code = "RUN_NOT_ACTIVE"

	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

var statusByCode = map[Code]int{
	CodeInvalidInput:     http.StatusBadRequest,
	CodeValidationFail:   http.StatusBadRequest,
	CodeInvalidConfig:    http.StatusBadRequest,
	CodeInvalidTimeRange: http.StatusBadRequest,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeRunNotActive:     http.StatusConflict,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeTimeout:          http.StatusGatewayTimeout,
}

// HTTPStatus 错误码对应的 HTTP 状态，未登记的按 500 处理
func (c Code) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError 带错误码的错误，Fields 随响应一并返回
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithField 附加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建错误
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: code.HTTPStatus()}
}

// Wrap 以 err 为原因创建错误
func Wrap(err error, code Code, message string) *AppError {
	e := New(code, message)
	e.Cause = err
	return e
}

// Is 判断错误链上是否有指定错误码
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode 取错误链上第一个 AppError 的错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// InvalidInput 输入字段无效
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// InvalidConfig 求解配置项无效
func InvalidConfig(key, reason string) *AppError {
	return New(CodeInvalidConfig, fmt.Sprintf("配置项 '%s' 无效: %s", key, reason))
}

// NotFound 资源不存在
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// SolverAborted 求解过程异常中止
func SolverAborted(algorithm string, cause error) *AppError {
	return Wrap(cause, CodeSolverAborted, fmt.Sprintf("%s 求解异常中止", algorithm))
}

// RunNotActive 求解任务已结束，无法再停止
func RunNotActive(id, status string) *AppError {
	return New(CodeRunNotActive, fmt.Sprintf("求解任务 '%s' 当前状态为 %s", id, status))
}

// ValidationErrors 收集多个字段的校验问题，最后用 ToAppError 一次返回
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个字段的问题
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 汇总为 VALIDATION_FAILED，消息取第一个问题，Fields 按字段列出全部
func (ve *ValidationErrors) ToAppError() *AppError {
	message := "验证失败"
	if len(ve.Errors) > 0 {
		first := ve.Errors[0]
		message = fmt.Sprintf("验证失败: %s - %s", first.Field, first.Message)
		if len(ve.Errors) > 1 {
			message += fmt.Sprintf(" 等 %d 项", len(ve.Errors))
		}
	}
	err := New(CodeValidationFail, message)
	err.Fields = make(map[string]interface{}, len(ve.Errors))
	for _, e := range ve.Errors {
		err.Fields[e.Field] = e.Message
	}
	return err
}
