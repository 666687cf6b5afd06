// Package jobs provides the registry of background maintenance jobs.
package jobs

import (
	"context"
	"sync"
)

// Job is a registered background job. ID is filled in once the job is added
// to a scheduler.
type Job struct {
	ID     int
	Runner Runner
}

// Runner is a job runner. Spec returns the cron spec to run the job on and
// Func returns the closure to run; both may read configuration and services
// from the context.
type Runner interface {
	Spec(context.Context) string
	Func(context.Context) func()
}

var (
	mtx  sync.Mutex
	jobs = make(map[string]*Job)
)

// Register registers a job under the given name. Jobs register themselves
// from init so importing this package is enough to wire them.
func Register(name string, runner Runner) {
	mtx.Lock()
	defer mtx.Unlock()
	jobs[name] = &Job{Runner: runner}
}

// List returns the registered jobs by name.
func List() map[string]*Job {
	mtx.Lock()
	defer mtx.Unlock()
	return jobs
}
