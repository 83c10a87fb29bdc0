package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrorType is the broad category of a failure. HTTP status mapping and
// log fields key off it.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeUpstream   ErrorType = "upstream"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Stable error codes carried to API clients and logs.
const (
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable  = "FILE_NOT_READABLE"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodePDFInvalid       = "PDF_INVALID"
	ErrCodePDFNoText        = "PDF_NO_TEXT"
	ErrCodePDFTooLarge      = "PDF_TOO_LARGE"
	ErrCodeMissingAPIKey    = "MISSING_API_KEY"
	ErrCodeAPIKeyRejected   = "API_KEY_REJECTED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUpstreamFailed   = "UPSTREAM_FAILED"
	ErrCodeUpstreamTimeout  = "UPSTREAM_TIMEOUT"
	ErrCodeResponseNoFields = "RESPONSE_NO_FIELDS"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
)

// AppError is a classified error with a stable code and optional
// structured context.
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair that LogError will emit and API
// error responses may surface.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{Type: typ, Code: code, Message: message, Cause: cause}
}

func NewValidationError(code, message string, cause error) *AppError {
	return newError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newError(ErrorTypeIO, code, message, cause)
}

// NewExtractionError reports a resume document that could not be turned into text
func NewExtractionError(code, message string, cause error) *AppError {
	return newError(ErrorTypeExtraction, code, message, cause)
}

// NewAuthError reports a missing or rejected credential
func NewAuthError(code, message string, cause error) *AppError {
	return newError(ErrorTypeAuth, code, message, cause)
}

// NewRateLimitError reports throttling, ours or the provider's
func NewRateLimitError(code, message string, cause error) *AppError {
	return newError(ErrorTypeRateLimit, code, message, cause)
}

// NewUpstreamError reports any other provider or transport failure
func NewUpstreamError(code, message string, cause error) *AppError {
	return newError(ErrorTypeUpstream, code, message, cause)
}

// NewParseError reports a model response with no usable fields
func NewParseError(code, message string, cause error) *AppError {
	return newError(ErrorTypeParse, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newError(ErrorTypeInternal, code, message, cause)
}

// TypeOf returns the ErrorType of err when it is (or wraps) an AppError,
// ErrorTypeInternal otherwise.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err is (or wraps) an AppError of the given type
func IsType(err error, typ ErrorType) bool {
	return TypeOf(err) == typ
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a structured JSON logger writing to stdout.
func NewLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

// Discard returns a Logger that drops everything. Callers that accept an
// optional *Logger can substitute it for nil and skip per-call guards.
func Discard() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return &Logger{logger: slog.New(handler)}
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New builds a Logger from a textual level name.
func New(level string) (*Logger, error) {
	slogLevel, ok := logLevels[level]
	if !ok {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	return NewLogger(slogLevel), nil
}

// LogError emits err at error level. Classified errors contribute their
// type, code and context as structured fields; wrapping is followed so a
// wrapped AppError still logs structured.
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		l.logger.Error(message, append([]any{"error", err.Error()}, args...)...)
		return
	}

	attrs := []any{
		"error_type", appErr.Type,
		"error_code", appErr.Code,
		"error_message", appErr.Message,
	}
	for key, value := range appErr.Context {
		attrs = append(attrs, key, value)
	}
	l.logger.Error(message, append(attrs, args...)...)
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}
