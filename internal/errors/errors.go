package errors

import (
	"fmt"
	"time"
)

// ErrorCode 定义错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 通用错误
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"

	// 市场数据错误
	ErrCodeMarketDataUnavailable ErrorCode = "MARKET_DATA_UNAVAILABLE"
	ErrCodeMarketDataInvalid     ErrorCode = "MARKET_DATA_INVALID"
	ErrCodeMarketDataTimeout     ErrorCode = "MARKET_DATA_TIMEOUT"
	ErrCodeExchangeConnection    ErrorCode = "EXCHANGE_CONNECTION_ERROR"
	ErrCodeExchangeAPI           ErrorCode = "EXCHANGE_API_ERROR"

	// 缓存错误
	ErrCodeCacheIncomplete ErrorCode = "CACHE_INCOMPLETE"
	ErrCodeCacheMisaligned ErrorCode = "CACHE_MISALIGNED"
	ErrCodeCacheCorrupted  ErrorCode = "CACHE_CORRUPTED"

	// 策略/回测错误
	ErrCodeParameterInvalid ErrorCode = "PARAMETER_INVALID"
	ErrCodeFillUnresolved   ErrorCode = "FILL_UNRESOLVED"
	ErrCodeSimulation       ErrorCode = "SIMULATION_ERROR"
)

// ErrorSeverity 定义错误严重程度
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError 应用错误结构
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError 创建新的应用错误
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  getSeverityByCode(code),
		Timestamp: time.Now(),
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// NewAppErrorWithDetails 创建带详细信息的应用错误
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	err := NewAppError(code, message, cause)
	err.Details = details
	return err
}

// WithContext 添加上下文信息
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// getSeverityByCode 根据错误代码确定严重程度
func getSeverityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInternal, ErrCodeExchangeConnection:
		return SeverityCritical
	case ErrCodeSimulation, ErrCodeCacheCorrupted:
		return SeverityHigh
	case ErrCodeMarketDataUnavailable, ErrCodeCacheIncomplete, ErrCodeCacheMisaligned:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsRetryable 判断错误是否可重试
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeExchangeConnection, ErrCodeMarketDataTimeout,
		ErrCodeMarketDataUnavailable, ErrCodeCacheIncomplete, ErrCodeCacheMisaligned:
		return true
	default:
		return false
	}
}

// WrapError 包装标准错误为应用错误
func WrapError(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，直接返回
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewAppError(code, message, err)
}

// IsAppError 检查是否为应用错误
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return nil
}
