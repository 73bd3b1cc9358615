package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Worker a long-running background task
type Worker interface {
	Run(ctx context.Context) error
}

// TickWorker drives a work func on a fixed interval until the context
// is done.
type TickWorker struct {
	Delay    time.Duration
	ErrDelay time.Duration
}

// StartTick run tick worker
func (w *TickWorker) StartTick(ctx context.Context, onWork func(ctx context.Context) error) error {
	delay := w.Delay
	if delay <= 0 {
		delay = time.Second
	}

	errDelay := w.ErrDelay
	if errDelay <= 0 {
		errDelay = 3 * time.Second
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			next := delay
			if err := onWork(ctx); err != nil {
				next = errDelay
			}
			timer.Reset(next)
		}
	}
}

// OnWork job work func
type OnWork func() error

// BaseJob cron scheduled job
type BaseJob struct {
	Cron      *cron.Cron
	IsRunning bool
	OnWork    OnWork
}

// Start start the cron schedule
func (job *BaseJob) Start() error {
	job.Cron.Start()
	return nil
}

// Stop stop the cron schedule
func (job *BaseJob) Stop() error {
	job.Cron.Stop()
	return nil
}

// Run run one round, skipped while the previous round is still going
func (job *BaseJob) Run() {
	if job.IsRunning {
		return
	}

	job.IsRunning = true

	if err := job.OnWork(); err != nil {
		logrus.WithError(err).Errorln("job work failed")
	}

	job.IsRunning = false
}
