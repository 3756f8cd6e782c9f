package async

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/dirjobs/errors"
)

// SchedulerMetrics is a point-in-time view of scheduler load
type SchedulerMetrics struct {
	WorkersTotal     int     `json:"workers_total"`     // Configured capacity, -1 with a custom policy
	JobsRunning      int     `json:"jobs_running"`      // Admitted jobs still executing
	JobsPending      int     `json:"jobs_pending"`      // Jobs waiting for admission
	SuspendedScopes  int     `json:"suspended_scopes"`  // Executions with event dispatch suspended
	EventsDispatched int64   `json:"events_dispatched"` // Events delivered to listeners
	EventsDropped    int64   `json:"events_dropped"`    // Events skipped while suspended
	MemoryUsedGB     float64 `json:"memory_used_gb"`
	MemoryTotalGB    float64 `json:"memory_total_gb"`
	MemoryPercent    float64 `json:"memory_percent"`
}

// Metrics returns current scheduler and system resource usage
func (s *Scheduler) Metrics() SchedulerMetrics {
	workers := -1
	if s.policy != nil {
		workers = s.policy.Capacity()
	}
	dispatched, dropped := s.events.Stats()

	m := SchedulerMetrics{
		WorkersTotal:     workers,
		JobsRunning:      s.running.Len(),
		JobsPending:      s.Pending(),
		SuspendedScopes:  s.suspension.SuspendedScopes(),
		EventsDispatched: dispatched,
		EventsDropped:    dropped,
	}

	// Memory figures stay zero when the platform cannot report them
	if total, available, err := getMemoryStats(); err == nil && total > 0 {
		m.MemoryTotalGB = bytesToGB(total)
		m.MemoryUsedGB = bytesToGB(total - available)
		m.MemoryPercent = m.MemoryUsedGB / m.MemoryTotalGB * 100
	}
	return m
}

// getMemoryStats returns total and available memory in bytes
func getMemoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Total, v.Available, nil
}

// calculateSafeWorkerCount recommends a worker count for the available memory.
// Each running job holds result pages and entry buffers for its connection.
func calculateSafeWorkerCount(availableGB float64) int {
	const memoryPerWorker = 0.25 // GB per concurrently running directory job
	const memoryBuffer = 1.0     // GB reserved for the client UI

	if availableGB < memoryBuffer {
		return 1
	}
	recommended := int((availableGB - memoryBuffer) / memoryPerWorker)
	if recommended < 1 {
		return 1
	}
	if recommended > 64 {
		return 64
	}
	return recommended
}

// checkMemoryPressure returns a warning when the worker count may be too
// high for available memory, or "" when it is fine or cannot be checked.
func (s *Scheduler) checkMemoryPressure() string {
	total, available, err := getMemoryStats()
	if err != nil {
		return ""
	}
	availableGB := bytesToGB(available)
	recommended := calculateSafeWorkerCount(availableGB)
	if s.cfg.Workers > recommended {
		return fmt.Sprintf(
			"Worker count (%d) exceeds recommended (%d) for available memory (%.1f/%.1fGB). "+
				"Consider reducing pulse.workers.",
			s.cfg.Workers, recommended, bytesToGB(total)-availableGB, bytesToGB(total))
	}
	return ""
}

func bytesToGB(b uint64) float64 {
	return float64(b) / 1024 / 1024 / 1024
}
