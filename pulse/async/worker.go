package async

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/dirjobs/am"
	"github.com/teranos/dirjobs/directory"
	"github.com/teranos/dirjobs/directory/events"
	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/logger"
	"github.com/teranos/dirjobs/pulse"
	"github.com/teranos/dirjobs/pulse/monitor"
	"github.com/teranos/dirjobs/pulse/suspend"
	"github.com/teranos/dirjobs/sym"
)

// pulseLogger wraps zap.SugaredLogger with special methods for Pulse operations
// Uses different log levels to create visual distinction:
// - DEBUG level → STARTING (✿ job admitted)
// - WARN level → CLOSING (❀ shutdown)
// - INFO level → PULSE (general scheduler operations)
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an Opening (✿) event - uses DEBUG level for "STARTING" appearance
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw(sym.PulseOpen+" "+msg, keysAndValues...)
}

// Closing logs a Closing (❀) event - uses WARN level for "CLOSING" appearance
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Warnw(sym.PulseClose+" "+msg, keysAndValues...)
}

// Pulse logs general scheduler operations - uses INFO level
func (l pulseLogger) Pulse(msg string, keysAndValues ...interface{}) {
	l.Infow(sym.Pulse+" "+msg, keysAndValues...)
}

// SchedulerConfig contains configuration for the scheduler
type SchedulerConfig struct {
	Workers             int           `json:"workers"`               // Maximum concurrently running jobs
	PollInterval        time.Duration `json:"poll_interval"`         // How often pending jobs are re-evaluated
	AdmissionsPerSecond float64       `json:"admissions_per_second"` // 0 = unlimited
	AdmissionBurst      int           `json:"admission_burst"`
	StrictInvariants    bool          `json:"strict_invariants"` // Panic on suspend/resume imbalance
	StopTimeout         time.Duration `json:"stop_timeout"`      // 0 = wait indefinitely
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:        4,
		PollInterval:   250 * time.Millisecond,
		AdmissionBurst: 1,
		StopTimeout:    30 * time.Second,
	}
}

// ConfigFromAm builds a scheduler config from the loaded configuration
func ConfigFromAm(cfg *am.Config) SchedulerConfig {
	if cfg == nil {
		return DefaultSchedulerConfig()
	}
	return SchedulerConfig{
		Workers:             cfg.Pulse.Workers,
		PollInterval:        cfg.Pulse.PollInterval(),
		AdmissionsPerSecond: cfg.Pulse.AdmissionsPerSecond,
		AdmissionBurst:      cfg.Pulse.AdmissionBurst,
		StrictInvariants:    cfg.Pulse.StrictInvariants,
		StopTimeout:         cfg.Pulse.StopTimeout(),
	}
}

// Options injects the collaborators a scheduler works with.
// Nil fields are created with defaults. Events, when supplied, must be
// gated by the same registry passed as Suspension.
type Options struct {
	Suspension *suspend.Registry
	Events     *events.Registry
	Listeners  *directory.ListenerRegistry
	History    HistoryRecorder // nil = no history
	Policy     AdmissionPolicy // nil = DefaultPolicy from the config
}

// SubmitOption customizes one submission
type SubmitOption func(*submitOptions)

type submitOptions struct {
	sink pulse.ProgressSink
}

// WithMonitor supplies an external progress sink. Errors of the job are then
// left to the sink to surface and the scheduler result absorbs them as Ok.
func WithMonitor(sink pulse.ProgressSink) SubmitOption {
	return func(o *submitOptions) { o.sink = sink }
}

// Scheduler admits submitted jobs and runs each on its own goroutine.
// Pending jobs are evaluated in submission order whenever a job is
// submitted or finishes, and on every poll tick.
type Scheduler struct {
	cfg       SchedulerConfig
	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	logger    pulseLogger

	suspension *suspend.Registry
	events     *events.Registry
	listeners  *directory.ListenerRegistry
	history    HistoryRecorder
	opener     *connectionOpener

	gate    *Gate
	policy  *DefaultPolicy // nil when a custom policy was supplied
	running *JobRegistry

	mu       sync.Mutex
	pending  []*Job
	started  bool
	stopped  bool
	wake     chan struct{}
	loopDone chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. Call Start to begin admitting jobs.
// Cancelling ctx cancels every running job's context.
func NewScheduler(ctx context.Context, cfg SchedulerConfig, log *zap.SugaredLogger, opts Options) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultSchedulerConfig().PollInterval
	}

	suspension := opts.Suspension
	if suspension == nil {
		suspension = suspend.NewRegistry(cfg.StrictInvariants, log.Named("suspend"))
	}
	ev := opts.Events
	if ev == nil {
		ev = events.NewRegistry(suspension, log.Named("events"))
	}
	listeners := opts.Listeners
	if listeners == nil {
		listeners = directory.NewListenerRegistry()
	}

	var defaultPolicy *DefaultPolicy
	policy := opts.Policy
	if policy == nil {
		defaultPolicy = NewDefaultPolicy(cfg.Workers, cfg.AdmissionsPerSecond, cfg.AdmissionBurst)
		policy = defaultPolicy
	}

	pLogger := pulseLogger{log.Named("pulse")}
	schedulerCtx, cancel := context.WithCancel(ctx)

	return &Scheduler{
		cfg:        cfg,
		parentCtx:  ctx,
		ctx:        schedulerCtx,
		cancel:     cancel,
		logger:     pLogger,
		suspension: suspension,
		events:     ev,
		listeners:  listeners,
		history:    opts.History,
		opener: &connectionOpener{
			listeners: listeners,
			events:    ev,
			log:       pLogger.SugaredLogger,
		},
		gate:     NewGate(policy, pLogger.SugaredLogger),
		policy:   defaultPolicy,
		running:  NewJobRegistry(),
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
}

// Suspension returns the suspension registry jobs execute under
func (s *Scheduler) Suspension() *suspend.Registry { return s.suspension }

// Events returns the event registry gated by Suspension
func (s *Scheduler) Events() *events.Registry { return s.events }

// Listeners returns the connection listener registry
func (s *Scheduler) Listeners() *directory.ListenerRegistry { return s.listeners }

// Start begins the admission loop. Calling Start twice, or after Stop, does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Starting("Scheduler started",
		"workers", s.cfg.Workers,
		"poll_interval", s.cfg.PollInterval,
		"admissions_per_second", s.cfg.AdmissionsPerSecond,
	)

	if warning := s.checkMemoryPressure(); warning != "" {
		s.logger.Warnw("Memory pressure warning", "warning", warning, "workers", s.cfg.Workers)
	}

	go s.dispatchLoop()
	s.signal()
}

// Submit enqueues a job described by desc. Lock identifiers are resolved
// now and never again.
func (s *Scheduler) Submit(desc Descriptor, opts ...SubmitOption) (*Handle, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrSchedulerStopped, "cannot submit job %q", desc.Name)
	}

	job := newJob(desc, o.sink, nil)
	job.monitor = monitor.For(o.sink, s.jobLogger(job))
	job.handle.wake = s.signal
	s.pending = append(s.pending, job)
	s.mu.Unlock()

	s.jobLogger(job).Debugw("Job submitted",
		logger.FieldLockIDs, job.LockIDs,
		"payload", job.desc.Payload.Kind().String(),
		"external_monitor", job.HasExternalMonitor(),
	)
	s.signal()
	return job.handle, nil
}

// Running returns the descriptors of currently running jobs
func (s *Scheduler) Running() []Descriptor {
	jobs := s.running.Snapshot()
	descs := make([]Descriptor, len(jobs))
	for i, job := range jobs {
		descs[i] = job.desc
	}
	return descs
}

// Pending returns the number of jobs waiting for admission
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// SetAdmissionRate replaces the admission throttle of the default policy.
// It has no effect when a custom policy was supplied.
func (s *Scheduler) SetAdmissionRate(perSecond float64, burst int) {
	if s.policy == nil {
		s.logger.Warnw("Admission rate ignored: custom admission policy in use")
		return
	}
	s.policy.SetRate(perSecond, burst)
	s.logger.Pulse("Admission rate updated", "admissions_per_second", perSecond, "admission_burst", burst)
	s.signal()
}

// ApplyConfig applies the reloadable parts of cfg: worker capacity and admission rate
func (s *Scheduler) ApplyConfig(cfg *am.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.policy != nil {
		s.policy.SetCapacity(cfg.Pulse.Workers)
	}
	s.SetAdmissionRate(cfg.Pulse.AdmissionsPerSecond, cfg.Pulse.AdmissionBurst)
	return nil
}

// Stop cancels pending jobs, signals running jobs to cancel, and waits for
// them to finish up to the configured stop timeout.
// ❀ Closing: running jobs still unwind through resume and notification.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.logger.Closing("Scheduler stopping",
		"pending", len(pending),
		"running", s.running.Len(),
	)

	for _, job := range pending {
		job.monitor.Cancel()
		s.finish(job, pulse.Cancelled(), pulse.Cancelled())
	}

	s.cancel()
	if started {
		<-s.loopDone
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if s.cfg.StopTimeout <= 0 {
		<-done
	} else {
		timer := time.NewTimer(s.cfg.StopTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			err := errors.Newf("timed out after %s waiting for %d running jobs", s.cfg.StopTimeout, s.running.Len())
			s.logger.Errorw("Scheduler stop incomplete", "error", err)
			return err
		}
	}

	s.logger.Closing("Scheduler stopped")
	return nil
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatchLoop() {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.admitPending()
		case <-s.wake:
			s.admitPending()
		}
	}
}

// admitPending runs one FIFO admission pass. An admitted job joins the
// running registry immediately, so later candidates in the same pass see it.
func (s *Scheduler) admitPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || len(s.pending) == 0 {
		return
	}

	remaining := make([]*Job, 0, len(s.pending))
	for _, job := range s.pending {
		if job.monitor.IsCanceled() {
			s.jobLogger(job).Debugw("Pending job cancelled before admission")
			s.wg.Add(1)
			go func(job *Job) {
				defer s.wg.Done()
				s.finish(job, pulse.Cancelled(), pulse.Cancelled())
			}(job)
			continue
		}
		if !s.gate.ShouldAdmit(job, s.running.Snapshot()) {
			remaining = append(remaining, job)
			continue
		}
		s.running.Add(job)
		s.launch(job)
	}
	s.pending = remaining
}

func (s *Scheduler) launch(job *Job) {
	jobCtx, cancel := context.WithCancel(s.ctx)
	job.StartedAt = time.Now()
	job.handle.start(cancel)

	s.logger.Starting("Job admitted",
		logger.FieldJobID, job.ID,
		logger.FieldJobName, job.Name,
		logger.FieldJobType, job.Type,
		"running", s.running.Len(),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.execute(jobCtx, job)
	}()
}

// execute runs one admitted job to completion on the calling goroutine.
// Nothing raised by the payload escapes.
func (s *Scheduler) execute(ctx context.Context, job *Job) {
	mon := job.monitor
	stopCancelLink := context.AfterFunc(ctx, mon.Cancel)

	ctx, scope := s.suspension.Enter(ctx)
	log := s.jobLogger(job).With(logger.FieldScopeID, scope.ID())

	s.opener.open(ctx, job.desc.RequiredConnections, mon)

	if mon.ErrorsReported() {
		log.Debugw("Payload skipped: connection setup failed")
	} else if mon.IsCanceled() {
		log.Debugw("Payload skipped: job cancelled")
	} else {
		runPayload(ctx, job.desc.Payload, s.suspension, mon)
	}
	stopCancelLink()
	if ctx.Err() != nil {
		mon.Cancel()
	}

	if depth := scope.Depth(); depth != 0 {
		log.Errorw("Job finished with event dispatch still suspended", "depth", depth)
	}

	returned, stored := Reconcile(outcomeOf(mon, job.desc.errorMessage()), job.HasExternalMonitor())
	mon.Done()
	s.reportErrors(log, job, mon, stored)
	s.finish(job, returned, stored)
}

// reportErrors surfaces a failed job exactly once: through the external sink
// when there is one, otherwise through the scheduler's log.
func (s *Scheduler) reportErrors(log *zap.SugaredLogger, job *Job, mon monitor.Monitor, stored pulse.Result) {
	if !stored.IsError() {
		return
	}
	if job.HasExternalMonitor() {
		if reporter, ok := job.external.(pulse.ErrorReporter); ok {
			reporter.ReportError(stored.Message, stored.Cause)
		}
		log.Debugw("Job error left to external monitor", "message", stored.Message)
		return
	}
	for _, err := range mon.Errors() {
		ec := ClassifyError(stageOf(err), err)
		log.Errorw("Job error", ec.Fields()...)
	}
}

// finish records history, releases the job's admission slot, and completes
// the handle. Safe to call without holding s.mu.
func (s *Scheduler) finish(job *Job, returned, stored pulse.Result) {
	job.FinishedAt = time.Now()
	s.running.Remove(job.ID)

	s.logger.Pulse("Job finished",
		logger.FieldJobID, job.ID,
		logger.FieldJobName, job.Name,
		logger.FieldStatus, string(statusFor(stored)),
		"result", returned.String(),
		"external_result", stored.String(),
		logger.FieldDurationMS, job.FinishedAt.Sub(job.SubmittedAt).Milliseconds(),
	)

	if s.history != nil {
		// The scheduler context may already be cancelled during Stop
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.parentCtx), 5*time.Second)
		if err := s.history.Record(ctx, historyRecordFor(job, returned, stored)); err != nil {
			ec := ClassifyError(StageHistory, err)
			s.jobLogger(job).Warnw("Failed to record job history", ec.Fields()...)
		}
		cancel()
	}

	job.handle.complete(returned, stored)
	s.signal()
}

func (s *Scheduler) jobLogger(job *Job) *zap.SugaredLogger {
	return logger.ForJob(s.logger.SugaredLogger, job.ID, job.Name, job.Type)
}
