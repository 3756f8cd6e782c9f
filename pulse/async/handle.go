package async

import (
	"context"
	"sync"

	"github.com/teranos/dirjobs/pulse"
)

// Handle lets the submitter poll, wait for, and cancel one job
type Handle struct {
	job  *Job
	done chan struct{}

	mu       sync.Mutex
	status   JobStatus
	returned pulse.Result
	stored   pulse.Result
	cancelFn context.CancelFunc

	// wake prompts the scheduler to re-run admission, set at submission
	wake func()
}

func newHandle(job *Job) *Handle {
	return &Handle{
		job:    job,
		done:   make(chan struct{}),
		status: JobStatusPending,
	}
}

// ID returns the job's unique identifier
func (h *Handle) ID() string { return h.job.ID }

// Name returns the job's descriptor name
func (h *Handle) Name() string { return h.job.Name }

// LockIDs returns the lock identifiers resolved at submission
func (h *Handle) LockIDs() []string { return append([]string(nil), h.job.LockIDs...) }

// Status returns the job's lifecycle status
func (h *Handle) Status() JobStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// IsDone reports whether the job has finished
func (h *Handle) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result returns the result the scheduler saw. ok is false until the job is done.
// With an external monitor an error is absorbed here as Ok; see ExternalResult.
func (h *Handle) Result() (result pulse.Result, ok bool) {
	if !h.IsDone() {
		return pulse.Result{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.returned, true
}

// ExternalResult returns the job's real outcome, including errors absorbed
// for an external monitor. ok is false until the job is done.
func (h *Handle) ExternalResult() (result pulse.Result, ok bool) {
	if !h.IsDone() {
		return pulse.Result{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stored, true
}

// Join blocks until the job finishes and returns its scheduler result
func (h *Handle) Join() pulse.Result {
	<-h.done
	result, _ := h.Result()
	return result
}

// Wait blocks until the job finishes or ctx is done
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the job finishes
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel requests cooperative cancellation. A pending job finishes as
// Cancelled without running; a running job sees IsCanceled and a done context.
func (h *Handle) Cancel() {
	h.job.monitor.Cancel()
	h.mu.Lock()
	cancel := h.cancelFn
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if h.wake != nil {
		h.wake()
	}
}

// Progress returns units worked and the announced total
func (h *Handle) Progress() (worked, total int) {
	return h.job.monitor.Progress()
}

func (h *Handle) start(cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = JobStatusRunning
	h.cancelFn = cancel
}

func (h *Handle) complete(returned, stored pulse.Result) {
	h.mu.Lock()
	h.status = statusFor(stored)
	h.returned = returned
	h.stored = stored
	h.cancelFn = nil
	h.mu.Unlock()
	close(h.done)
}
