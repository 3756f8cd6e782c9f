package async

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse/lock"
)

// AdmissionPolicy is consulted once a candidate has no lock conflict.
// It may apply global throttling unrelated to locks.
type AdmissionPolicy interface {
	Admit(candidate *Job, running []*Job) bool
}

// AdmitAll is a policy that never refuses
type AdmitAll struct{}

func (AdmitAll) Admit(*Job, []*Job) bool { return true }

// Gate decides whether a pending job may start.
type Gate struct {
	policy AdmissionPolicy
	log    *zap.SugaredLogger
}

// NewGate creates a gate delegating non-conflicting candidates to policy.
// A nil policy admits everything.
func NewGate(policy AdmissionPolicy, log *zap.SugaredLogger) *Gate {
	if policy == nil {
		policy = AdmitAll{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gate{policy: policy, log: log}
}

// ShouldAdmit refuses candidate when any running job of the same type holds
// a lock identifier that is a prefix of, or prefixed by, one of the
// candidate's. Jobs of other types are never compared. Otherwise the
// decision is the policy's.
func (g *Gate) ShouldAdmit(candidate *Job, running []*Job) bool {
	if conflict := g.Conflict(candidate, running); conflict != nil {
		g.log.Debugw("Job held back",
			"job_id", candidate.ID,
			"job_name", candidate.Name,
			"reason", conflict.Error(),
		)
		return false
	}
	return g.policy.Admit(candidate, running)
}

// Conflict returns an ErrAdmissionConflict describing the first conflicting
// running job, or nil.
func (g *Gate) Conflict(candidate *Job, running []*Job) error {
	for _, other := range running {
		if other == candidate || other.ID == candidate.ID || other.Type != candidate.Type {
			continue
		}
		if mine, theirs, found := lock.FirstConflict(candidate.LockIDs, other.LockIDs); found {
			return errors.Wrapf(errors.ErrAdmissionConflict,
				"lock %q overlaps %q held by job %s (%s)", mine, theirs, other.ID, other.Name)
		}
	}
	return nil
}

// DefaultPolicy limits the number of running jobs to a worker capacity and
// optionally throttles admissions with a token bucket.
type DefaultPolicy struct {
	mu       sync.Mutex
	capacity int
	limiter  *rate.Limiter // nil = unlimited
}

// NewDefaultPolicy creates the default policy. perSecond <= 0 disables throttling.
func NewDefaultPolicy(capacity int, perSecond float64, burst int) *DefaultPolicy {
	p := &DefaultPolicy{capacity: capacity}
	p.SetRate(perSecond, burst)
	return p
}

// Admit refuses when capacity is exhausted or no admission token is available.
// A token is consumed only when capacity allows the job.
func (p *DefaultPolicy) Admit(_ *Job, running []*Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(running) >= p.capacity {
		return false
	}
	if p.limiter != nil && !p.limiter.Allow() {
		return false
	}
	return true
}

// SetRate replaces the throttle. perSecond <= 0 removes it.
func (p *DefaultPolicy) SetRate(perSecond float64, burst int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if perSecond <= 0 {
		p.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	if p.limiter == nil {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return
	}
	p.limiter.SetLimit(rate.Limit(perSecond))
	p.limiter.SetBurst(burst)
}

// SetCapacity changes the maximum number of running jobs
func (p *DefaultPolicy) SetCapacity(capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capacity = capacity
}

// Capacity returns the maximum number of running jobs
func (p *DefaultPolicy) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}
