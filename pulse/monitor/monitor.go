// Package monitor adapts progress sinks for job execution. A Monitor
// forwards progress to whichever sink is active while accumulating the
// errors and cancellation the job reports, so the scheduler can reconcile
// a final result afterwards.
package monitor

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse"
)

// Monitor is the progress capability handed to job payloads.
// Payloads must poll IsCanceled between directory operations.
type Monitor interface {
	BeginTask(name string, totalWork int)
	Worked(n int)
	SetTaskName(name string)
	ReportProgress(message string)

	// ReportError records err. It never panics and nil errors are ignored.
	ReportError(err error)
	// ReportErrorMessage records an error built from message.
	ReportErrorMessage(message string)

	ErrorsReported() bool
	Errors() []error
	IsCanceled() bool
	// Cancel requests cooperative cancellation.
	Cancel()

	// ErrorStatus builds the error result from the first recorded error's
	// message, or defaultMessage when no recorded error carries one.
	ErrorStatus(defaultMessage string) pulse.Result

	// Progress returns units worked and the announced total.
	Progress() (worked, total int)
	Done()
}

// state is the accumulation shared by both monitor variants
type state struct {
	mu       sync.Mutex
	errs     []error
	canceled bool
	worked   int
	total    int
	task     string
	done     bool
}

func (s *state) begin(name string, totalWork int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.task = name
	s.total = totalWork
}

func (s *state) addWork(n int) {
	s.mu.Lock()
	s.worked += n
	s.mu.Unlock()
}

func (s *state) rename(name string) {
	s.mu.Lock()
	s.task = name
	s.mu.Unlock()
}

func (s *state) record(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *state) hasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs) > 0
}

func (s *state) allErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *state) cancel() {
	s.mu.Lock()
	s.canceled = true
	s.mu.Unlock()
}

func (s *state) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

func (s *state) progress() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worked, s.total
}

// markDone reports whether this call is the first Done
func (s *state) markDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := !s.done
	s.done = true
	return first
}

func (s *state) errorStatus(defaultMessage string) pulse.Result {
	errs := s.allErrors()
	for _, err := range errs {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return pulse.Error(msg, err)
		}
	}
	var cause error
	if len(errs) > 0 {
		cause = errs[0]
	}
	return pulse.Error(defaultMessage, cause)
}

// Owned is the monitor used when the caller supplied no sink. Progress is
// kept in memory and logged at debug level.
type Owned struct {
	state
	log *zap.SugaredLogger
}

// NewOwned creates a monitor with no external delegate
func NewOwned(log *zap.SugaredLogger) *Owned {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Owned{log: log}
}

func (m *Owned) BeginTask(name string, totalWork int) {
	m.begin(name, totalWork)
	m.log.Debugw("Task started", "task", name, "total_work", totalWork)
}

func (m *Owned) Worked(n int)                      { m.addWork(n) }
func (m *Owned) SetTaskName(name string)           { m.rename(name) }
func (m *Owned) ReportProgress(message string)     { m.log.Debugw("Progress", "message", message) }
func (m *Owned) ReportError(err error)             { m.record(err) }
func (m *Owned) ReportErrorMessage(message string) { m.record(errors.New(message)) }
func (m *Owned) ErrorsReported() bool              { return m.hasErrors() }
func (m *Owned) Errors() []error                   { return m.allErrors() }
func (m *Owned) IsCanceled() bool                  { return m.isCanceled() }
func (m *Owned) Cancel()                           { m.cancel() }
func (m *Owned) Progress() (int, int)              { return m.progress() }

func (m *Owned) ErrorStatus(defaultMessage string) pulse.Result {
	return m.errorStatus(defaultMessage)
}

func (m *Owned) Done() {
	if m.markDone() {
		m.log.Debugw("Task done")
	}
}

// Delegating forwards progress to a caller-supplied sink while keeping its
// own error and cancellation accumulation. Cancellation is latched: once the
// sink reports cancelled at any checkpoint, the monitor stays cancelled.
type Delegating struct {
	state
	sink pulse.ProgressSink
}

// NewDelegating creates a monitor forwarding to sink
func NewDelegating(sink pulse.ProgressSink) *Delegating {
	return &Delegating{sink: sink}
}

// Sink returns the external sink
func (m *Delegating) Sink() pulse.ProgressSink { return m.sink }

func (m *Delegating) BeginTask(name string, totalWork int) {
	m.begin(name, totalWork)
	m.sink.BeginTask(name, totalWork)
}

func (m *Delegating) Worked(n int) {
	m.addWork(n)
	m.sink.Worked(n)
}

func (m *Delegating) SetTaskName(name string) {
	m.rename(name)
	m.sink.SetTaskName(name)
}

func (m *Delegating) ReportProgress(message string)     { m.sink.SubTask(message) }
func (m *Delegating) ReportError(err error)             { m.record(err) }
func (m *Delegating) ReportErrorMessage(message string) { m.record(errors.New(message)) }
func (m *Delegating) ErrorsReported() bool              { return m.hasErrors() }
func (m *Delegating) Errors() []error                   { return m.allErrors() }
func (m *Delegating) Cancel()                           { m.cancel() }
func (m *Delegating) Progress() (int, int)              { return m.progress() }

func (m *Delegating) IsCanceled() bool {
	if m.isCanceled() {
		return true
	}
	if m.sink.IsCanceled() {
		m.cancel()
		return true
	}
	return false
}

func (m *Delegating) ErrorStatus(defaultMessage string) pulse.Result {
	return m.errorStatus(defaultMessage)
}

func (m *Delegating) Done() {
	if m.markDone() {
		m.sink.Done()
	}
}

// For selects the monitor variant: Delegating when sink is non-nil,
// Owned otherwise.
func For(sink pulse.ProgressSink, log *zap.SugaredLogger) Monitor {
	if sink != nil {
		return NewDelegating(sink)
	}
	return NewOwned(log)
}
