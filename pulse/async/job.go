// Package async schedules and runs directory jobs.
//
// A job is admitted only when no running job of the same type holds a
// conflicting lock identifier. Admitted jobs open their required
// connections, run their payload (bulk payloads with event dispatch
// suspended), and finish with a reconciled pulse.Result.
package async

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/dirjobs/directory"
	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse"
	"github.com/teranos/dirjobs/pulse/lock"
	"github.com/teranos/dirjobs/pulse/monitor"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusRunning,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the job has finished
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// statusFor maps a job's own result onto its lifecycle status
func statusFor(r pulse.Result) JobStatus {
	switch r.Kind {
	case pulse.ResultCancelled:
		return JobStatusCancelled
	case pulse.ResultError:
		return JobStatusFailed
	default:
		return JobStatusCompleted
	}
}

// Runnable is the mutation logic of a plain job.
// Errors may be returned or reported to mon; both end up on the monitor.
type Runnable interface {
	Run(ctx context.Context, mon monitor.Monitor) error
}

// BulkRunnable is a two-phase payload. Run executes with event dispatch
// suspended for ctx's scope; RunNotification fires the consolidated events
// once afterwards, even when Run failed or was cancelled.
type BulkRunnable interface {
	Runnable
	RunNotification(ctx context.Context)
}

// RunFunc adapts a function to Runnable
type RunFunc func(ctx context.Context, mon monitor.Monitor) error

func (f RunFunc) Run(ctx context.Context, mon monitor.Monitor) error { return f(ctx, mon) }

// BulkFuncs adapts a pair of functions to BulkRunnable
type BulkFuncs struct {
	RunFn          func(ctx context.Context, mon monitor.Monitor) error
	NotificationFn func(ctx context.Context)
}

func (b BulkFuncs) Run(ctx context.Context, mon monitor.Monitor) error {
	if b.RunFn == nil {
		return nil
	}
	return b.RunFn(ctx, mon)
}

func (b BulkFuncs) RunNotification(ctx context.Context) {
	if b.NotificationFn != nil {
		b.NotificationFn(ctx)
	}
}

// PayloadKind tags the variant held by a Payload
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadPlain
	PayloadBulk
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadPlain:
		return "plain"
	case PayloadBulk:
		return "bulk"
	default:
		return "none"
	}
}

// Payload holds exactly one of a plain or a bulk runnable.
// Build it with Plain or Bulk; the zero value is empty and fails validation.
type Payload struct {
	kind  PayloadKind
	plain Runnable
	bulk  BulkRunnable
}

// Plain wraps r as a payload that runs with event dispatch enabled
func Plain(r Runnable) Payload {
	if r == nil {
		return Payload{}
	}
	return Payload{kind: PayloadPlain, plain: r}
}

// Bulk wraps b as a payload executed by the bulk wrapper
func Bulk(b BulkRunnable) Payload {
	if b == nil {
		return Payload{}
	}
	return Payload{kind: PayloadBulk, bulk: b}
}

// Kind returns which variant the payload holds
func (p Payload) Kind() PayloadKind { return p.kind }

// Runnable returns the payload's mutation phase regardless of variant
func (p Payload) Runnable() Runnable {
	switch p.kind {
	case PayloadPlain:
		return p.plain
	case PayloadBulk:
		return p.bulk
	default:
		return nil
	}
}

// Descriptor is the caller's description of one job. It must not be
// modified after Submit.
type Descriptor struct {
	Name string

	// Type identifies which jobs are compared by the admission gate.
	// Empty means the Go type of the payload's runnable.
	Type string

	// ErrorMessage is the default message when the job fails without a
	// usable error message.
	ErrorMessage string

	// LockedObjects are resolved to lock identifiers once, at submission.
	LockedObjects []interface{}

	// RequiredConnections are opened before the payload runs. Nil entries are skipped.
	RequiredConnections []directory.Connection

	Payload Payload
}

// Validate checks the descriptor can be submitted
func (d Descriptor) Validate() error {
	if d.Payload.Kind() == PayloadNone {
		return errors.NewInvalidRequestError("job %q has no payload", d.Name)
	}
	return nil
}

// JobType returns the admission type of the descriptor
func (d Descriptor) JobType() string {
	if d.Type != "" {
		return d.Type
	}
	return fmt.Sprintf("%T", d.Payload.Runnable())
}

// errorMessage returns the default error message, falling back to one built from the name
func (d Descriptor) errorMessage() string {
	if d.ErrorMessage != "" {
		return d.ErrorMessage
	}
	if d.Name != "" {
		return fmt.Sprintf("Error while executing job %q", d.Name)
	}
	return "Error while executing job"
}

// Job is the scheduler's record of one submitted descriptor
type Job struct {
	ID      string
	Name    string
	Type    string
	LockIDs []string

	desc     Descriptor
	external pulse.ProgressSink
	monitor  monitor.Monitor
	handle   *Handle

	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// newJob resolves the descriptor's locks and selects the monitor variant
func newJob(desc Descriptor, external pulse.ProgressSink, mon monitor.Monitor) *Job {
	j := &Job{
		ID:          uuid.NewString(),
		Name:        desc.Name,
		Type:        desc.JobType(),
		LockIDs:     lock.ResolveAll(desc.LockedObjects),
		desc:        desc,
		external:    external,
		monitor:     mon,
		SubmittedAt: time.Now(),
	}
	j.handle = newHandle(j)
	return j
}

// Descriptor returns the descriptor the job was submitted with
func (j *Job) Descriptor() Descriptor { return j.desc }

// HasExternalMonitor reports whether the caller supplied a progress sink
func (j *Job) HasExternalMonitor() bool { return j.external != nil }
