package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// defaultJobTimeout bounds a single job execution
const defaultJobTimeout = 30 * time.Minute

// JobBase carries the logger and timeout shared by every job.
// Jobs embed it to get SetLogger and SetTimeout.
type JobBase struct {
	log     zerolog.Logger
	timeout time.Duration
}

func newJobBase() JobBase {
	return JobBase{log: zerolog.Nop(), timeout: defaultJobTimeout}
}

// SetLogger sets the logger for the job
func (j *JobBase) SetLogger(log zerolog.Logger) {
	j.log = log
}

// SetTimeout replaces the per-run timeout. Zero or negative means no timeout.
func (j *JobBase) SetTimeout(d time.Duration) {
	j.timeout = d
}

func (j *JobBase) context() (context.Context, context.CancelFunc) {
	if j.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), j.timeout)
}
