package scheduler

import (
	"context"
	"fmt"

	"github.com/aristath/portfin/internal/modules/backtest"
)

// BacktestRunner executes one backtest request
type BacktestRunner interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Run, error)
}

// RunBacktestJob runs the configured backtest on a schedule
type RunBacktestJob struct {
	JobBase
	runner  BacktestRunner
	request backtest.Request
}

// NewRunBacktestJob creates a new RunBacktestJob
func NewRunBacktestJob(runner BacktestRunner, req backtest.Request) *RunBacktestJob {
	return &RunBacktestJob{
		JobBase: newJobBase(),
		runner:  runner,
		request: req,
	}
}

// Name returns the job name
func (j *RunBacktestJob) Name() string {
	return "run_backtest"
}

// Run executes the backtest. Each run gets its own copy of the request.
func (j *RunBacktestJob) Run() error {
	ctx, cancel := j.context()
	defer cancel()

	req := j.request
	req.Universe = append([]string(nil), j.request.Universe...)

	run, err := j.runner.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("scheduled backtest %s: %w", req.Name, err)
	}
	j.log.Info().
		Str("run_id", run.ID).
		Float64("final_capital", run.Summary.FinalCapital).
		Msg("Scheduled backtest completed")
	return nil
}
