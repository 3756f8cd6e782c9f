package async

import "sync"

// JobRegistry is the set of admitted, executing jobs.
// Jobs are added when admitted and removed when they finish; the admission
// gate only ever reads a snapshot.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs []*Job
}

// NewJobRegistry creates an empty registry
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{}
}

// Add records job as running. Adding a job twice is a no-op.
func (r *JobRegistry) Add(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.ID == job.ID {
			return
		}
	}
	r.jobs = append(r.jobs, job)
}

// Remove drops the job with id. Unknown ids are ignored.
func (r *JobRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.jobs {
		if existing.ID == id {
			r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
			return
		}
	}
}

// Snapshot returns the running jobs in admission order.
// The slice is a copy and may be stale by the time it is read.
func (r *JobRegistry) Snapshot() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Job(nil), r.jobs...)
}

// Len returns the number of running jobs
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
