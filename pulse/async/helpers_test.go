package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/dirjobs/pulse/monitor"
)

const testTimeout = 5 * time.Second

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func testConfig() SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.StopTimeout = testTimeout
	return cfg
}

// newTestScheduler starts a scheduler that is stopped when the test ends
func newTestScheduler(t *testing.T, cfg SchedulerConfig, opts Options) *Scheduler {
	t.Helper()
	s := NewScheduler(context.Background(), cfg, testLogger(), opts)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// blocker runs until released or its context is cancelled
type blocker struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlocker() *blocker {
	return &blocker{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blocker) Run(ctx context.Context, mon monitor.Monitor) error {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func (b *blocker) Release() { close(b.release) }

// noop is a second payload type, distinct from blocker
type noop struct{}

func (noop) Run(context.Context, monitor.Monitor) error { return nil }

// recordingSink is an external progress sink that also surfaces errors
type recordingSink struct {
	mu       sync.Mutex
	canceled bool
	tasks    []string
	subTasks []string
	worked   int
	done     int
	errors   []string
}

func (s *recordingSink) BeginTask(name string, totalWork int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, name)
}

func (s *recordingSink) Worked(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worked += n
}

func (s *recordingSink) SetTaskName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, name)
}

func (s *recordingSink) SubTask(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subTasks = append(s.subTasks, message)
}

func (s *recordingSink) IsCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

func (s *recordingSink) SetCanceled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = true
}

func (s *recordingSink) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done++
}

func (s *recordingSink) ReportError(message string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
}

func (s *recordingSink) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}

func (s *recordingSink) DoneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
