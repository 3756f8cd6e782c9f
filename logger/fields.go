package logger

import "go.uber.org/zap"

// Standard field names for consistent structured logging across dirjobs.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldJobID   = "job_id"
	FieldJobName = "job_name"
	FieldJobType = "job_type"
	FieldScopeID = "scope_id"

	// Directory
	FieldConnection = "connection"
	FieldLockIDs    = "lock_ids"

	// Operations
	FieldStage     = "stage"
	FieldComponent = "component"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError     = "error"
	FieldErrorCode = "error_code"

	// Counts and status
	FieldCount  = "count"
	FieldStatus = "status"
)

// ForJob returns a child logger with the job identity fields pre-configured
func ForJob(base *zap.SugaredLogger, id, name, jobType string) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	return base.With(FieldJobID, id, FieldJobName, name, FieldJobType, jobType)
}
