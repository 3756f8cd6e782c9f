package commands

import (
	"fmt"
	"sync"

	"github.com/pterm/pterm"
)

// CLISink prints job progress to the terminal using pterm. It is handed to
// jobs as their external progress sink, so job errors are printed here
// rather than logged by the scheduler.
type CLISink struct {
	label     string
	verbosity int

	mu       sync.Mutex
	total    int
	worked   int
	canceled bool
}

// NewCLISink creates a sink whose lines are prefixed with label
func NewCLISink(label string, verbosity int) *CLISink {
	return &CLISink{label: label, verbosity: verbosity}
}

func (s *CLISink) BeginTask(name string, totalWork int) {
	s.mu.Lock()
	s.total = totalWork
	s.worked = 0
	s.mu.Unlock()
	pterm.Printf("🔄 %s: %s\n", pterm.LightCyan(s.label), name)
}

func (s *CLISink) Worked(n int) {
	s.mu.Lock()
	s.worked += n
	worked, total := s.worked, s.total
	s.mu.Unlock()
	if s.verbosity >= 1 && total > 0 {
		pterm.Printf("   %s %d/%d\n", pterm.Gray(s.label), worked, total)
	}
}

func (s *CLISink) SetTaskName(name string) {
	pterm.Printf("🔄 %s: %s\n", pterm.LightCyan(s.label), name)
}

func (s *CLISink) SubTask(message string) {
	if s.verbosity >= 1 {
		pterm.Printf("   %s %s\n", pterm.Gray(s.label), message)
	}
}

func (s *CLISink) IsCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// Cancel makes the job observe cancellation at its next checkpoint
func (s *CLISink) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = true
}

func (s *CLISink) Done() {
	s.mu.Lock()
	worked := s.worked
	s.mu.Unlock()
	pterm.Printf("✅ %s done (%s units)\n", pterm.LightCyan(s.label), pterm.Green(fmt.Sprintf("%d", worked)))
}

// ReportError prints an error the job reported
func (s *CLISink) ReportError(message string, cause error) {
	pterm.Error.Printf("%s: %s\n", s.label, message)
	if s.verbosity >= 2 && cause != nil {
		pterm.Printf("   %+v\n", cause)
	}
}
