// Package base provides base implementation for scheduler jobs.
package base

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single job run when Timeout is unset
const DefaultTimeout = 2 * time.Minute

// JobBase gives embedding jobs a bounded context for each run.
// Jobs run from cron without a caller context, so each run derives its own.
type JobBase struct {
	Timeout time.Duration
}

// RunContext returns a context that expires after the job's timeout
func (j *JobBase) RunContext() (context.Context, context.CancelFunc) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}
