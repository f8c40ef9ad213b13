package cron

import "context"

// Job is one unit of sweep work run by the reconcile worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a sweep cycle executes, in registration order.
// Order matters here: gateway imports must land before reconciliation
// promotes them in the same cycle.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs. Nil
// jobs are dropped so callers can pass conditionally-built entries.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register appends a job to the end of the cycle.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
