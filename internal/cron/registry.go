package cron

import "context"

// Job is one unit of periodic maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order; nil jobs are ignored.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job != nil {
		r.jobs = append(r.jobs, job)
	}
}

// Jobs returns a copy so callers cannot reorder the registry.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
