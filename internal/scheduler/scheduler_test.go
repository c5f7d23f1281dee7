package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs int
	err  error
}

func (c *countingJob) Name() string { return "counting" }

func (c *countingJob) Run() error {
	c.runs++
	return c.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("0 30 22 * * 1-5", &countingJob{}))
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	assert.Len(t, s.cron.Entries(), 2)

	// five-field expressions are rejected because seconds are required
	assert.Error(t, s.AddJob("30 22 * * 1-5", &countingJob{}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
}

func TestScheduler_EmptyScheduleDisablesJob(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("", &countingJob{}))
	assert.Empty(t, s.cron.Entries())
}

func TestScheduler_RunNowAndRun(t *testing.T) {
	s := New(zerolog.Nop())

	job := &countingJob{}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	failing := &countingJob{err: errors.New("boom")}
	assert.Error(t, s.RunNow(failing))
	s.run(failing) // errors are logged, not propagated
	assert.Equal(t, 2, failing.runs)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@daily", &countingJob{}))
	s.Start()
	s.Stop()
}
