// Package pulse holds the capabilities shared by the job coordinator:
// the progress sink a caller may hand to a job, and the result a job
// execution produces.
package pulse

// ProgressSink is the progress reporting capability a caller may supply
// when submitting a job, typically backed by a progress bar or dialog.
//
// Implementations must be safe to call from the job's worker goroutine.
type ProgressSink interface {
	// BeginTask announces the main task and its total units of work.
	// totalWork <= 0 means the amount of work is unknown.
	BeginTask(name string, totalWork int)

	// Worked reports that n more units of work are complete.
	Worked(n int)

	// SetTaskName replaces the label of the main task.
	SetTaskName(name string)

	// SubTask shows a transient message beneath the main task.
	SubTask(message string)

	// IsCanceled reports whether the user asked to stop the job.
	IsCanceled() bool

	// Done marks the task finished.
	Done()
}

// ErrorReporter is an optional interface for sinks that surface job errors
// through their own UI. When an external sink implements it, the job's
// errors are delivered here instead of being duplicated by the scheduler.
type ErrorReporter interface {
	ReportError(message string, cause error)
}

// NopSink discards all progress and is never cancelled.
type NopSink struct{}

func (NopSink) BeginTask(string, int) {}
func (NopSink) Worked(int)            {}
func (NopSink) SetTaskName(string)    {}
func (NopSink) SubTask(string)        {}
func (NopSink) IsCanceled() bool      { return false }
func (NopSink) Done()                 {}
