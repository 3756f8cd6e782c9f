package pulse

import "fmt"

// ResultKind tags the variant held by a Result
type ResultKind int

const (
	ResultOk ResultKind = iota
	ResultCancelled
	ResultError
)

func (k ResultKind) String() string {
	switch k {
	case ResultOk:
		return "ok"
	case ResultCancelled:
		return "cancelled"
	case ResultError:
		return "error"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the outcome of one job execution: Ok, Cancelled, or
// Error(message, cause). The zero value is Ok.
type Result struct {
	Kind    ResultKind
	Message string // human-readable message, set for ResultError only
	Cause   error  // first recorded error, may be nil for ResultError
}

// Ok returns the success result
func Ok() Result { return Result{Kind: ResultOk} }

// Cancelled returns the cancellation result
func Cancelled() Result { return Result{Kind: ResultCancelled} }

// Error returns an error result with the given message and cause
func Error(message string, cause error) Result {
	return Result{Kind: ResultError, Message: message, Cause: cause}
}

func (r Result) IsOk() bool        { return r.Kind == ResultOk }
func (r Result) IsCancelled() bool { return r.Kind == ResultCancelled }
func (r Result) IsError() bool     { return r.Kind == ResultError }

// Err returns the result as a Go error, or nil for Ok.
// Cancelled maps to an error so callers using plain error checks do not
// mistake a cancelled job for a successful one.
func (r Result) Err() error {
	if r.Kind == ResultOk {
		return nil
	}
	return resultError{r}
}

func (r Result) String() string {
	if r.Kind == ResultError {
		return fmt.Sprintf("error(%s)", r.Message)
	}
	return r.Kind.String()
}

type resultError struct{ r Result }

func (e resultError) Error() string {
	if e.r.Kind == ResultCancelled {
		return "job cancelled"
	}
	return e.r.Message
}

func (e resultError) Unwrap() error { return e.r.Cause }
