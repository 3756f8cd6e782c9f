package async

import (
	"context"
	"strings"

	"github.com/teranos/dirjobs/errors"
)

// ErrorCode represents the classification of an error
type ErrorCode string

const (
	ErrorCodeConnection     ErrorCode = "connection_error"
	ErrorCodeAuthentication ErrorCode = "authentication_error"
	ErrorCodeNoSuchEntry    ErrorCode = "no_such_entry"
	ErrorCodeDatabaseError  ErrorCode = "database_error"
	ErrorCodeValidation     ErrorCode = "validation_error"
	ErrorCodeTimeout        ErrorCode = "timeout"
	ErrorCodeCancelled      ErrorCode = "cancelled"
	ErrorCodePanic          ErrorCode = "panic"
	ErrorCodeUnknown        ErrorCode = "unknown"
)

// Error stages
const (
	StageConnect      = "connect"
	StagePayload      = "payload"
	StageNotification = "notification"
	StageHistory      = "history"
)

// ErrorContext provides structured error information for job failures
type ErrorContext struct {
	Stage     string    // Where the error occurred
	Code      ErrorCode // Error classification
	Message   string    // Human-readable message
	Retryable bool      // Would resubmitting the job plausibly succeed?
}

// Fields returns the context as zap key/value pairs
func (c ErrorContext) Fields() []interface{} {
	return []interface{}{
		"stage", c.Stage,
		"error_code", string(c.Code),
		"error", c.Message,
		"retryable", c.Retryable,
	}
}

// ClassifyError categorizes an error based on its marks and message
func ClassifyError(stage string, err error) ErrorContext {
	if err == nil {
		return ErrorContext{
			Stage:   stage,
			Code:    ErrorCodeUnknown,
			Message: "unknown error",
		}
	}

	errMsg := err.Error()
	errLower := strings.ToLower(errMsg)

	ctx := ErrorContext{
		Stage:   stage,
		Message: errMsg,
	}

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, errors.ErrCancelled):
		ctx.Code = ErrorCodeCancelled
		ctx.Retryable = true

	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errLower, "deadline exceeded") || strings.Contains(errLower, "timed out") ||
		strings.Contains(errLower, "timeout"):
		ctx.Code = ErrorCodeTimeout
		ctx.Retryable = true

	case errors.IsInvalidRequestError(err):
		ctx.Code = ErrorCodeValidation

	case strings.HasPrefix(errLower, "panic"):
		ctx.Code = ErrorCodePanic

	case strings.Contains(errLower, "bind") || strings.Contains(errLower, "credentials") ||
		strings.Contains(errLower, "authentication"):
		ctx.Code = ErrorCodeAuthentication

	case errors.Is(err, errors.ErrConnectionSetup) || strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") || strings.Contains(errLower, "refused"):
		ctx.Code = ErrorCodeConnection
		ctx.Retryable = true

	case strings.Contains(errLower, "no such entry") || strings.Contains(errLower, "no such object"):
		ctx.Code = ErrorCodeNoSuchEntry

	case strings.Contains(errLower, "database") || strings.Contains(errLower, "sql"):
		ctx.Code = ErrorCodeDatabaseError
		ctx.Retryable = true

	case strings.Contains(errLower, "validation") || strings.Contains(errLower, "invalid"):
		ctx.Code = ErrorCodeValidation

	default:
		ctx.Code = ErrorCodeUnknown
	}

	return ctx
}

// stageOf picks the stage label for an error recorded on a job monitor
func stageOf(err error) string {
	switch {
	case errors.Is(err, errors.ErrConnectionSetup):
		return StageConnect
	case strings.HasPrefix(err.Error(), notificationPrefix):
		return StageNotification
	default:
		return StagePayload
	}
}
