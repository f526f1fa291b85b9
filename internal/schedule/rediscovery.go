package schedule

import (
	"context"
	"time"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const rediscoveryJobName = "sensorist-rediscovery"

// Rediscovery fires a callback at a fixed interval on a quartz scheduler.
// A zero interval disables it.
type Rediscovery struct {
	interval  time.Duration
	tick      func()
	scheduler quartz.Scheduler
	logger    *zap.Logger
}

func NewRediscovery(interval time.Duration, tick func(), logger *zap.Logger) *Rediscovery {
	return &Rediscovery{
		interval: interval,
		tick:     tick,
		logger:   logger.With(zap.String("component", "rediscovery")),
	}
}

func (r *Rediscovery) Enabled() bool {
	return r.interval > 0
}

func (r *Rediscovery) Start(ctx context.Context) error {
	if !r.Enabled() {
		r.logger.Info("rediscovery disabled")
		return nil
	}

	r.scheduler = quartz.NewStdScheduler()
	r.scheduler.Start(ctx)

	tickJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		r.logger.Debug("rediscovery tick")
		r.tick()
		return true, nil
	})
	err := r.scheduler.ScheduleJob(
		quartz.NewJobDetail(tickJob, quartz.NewJobKey(rediscoveryJobName)),
		quartz.NewSimpleTrigger(r.interval),
	)
	if err != nil {
		r.scheduler.Stop()
		return err
	}
	r.logger.Info("rediscovery scheduled", zap.Duration("interval", r.interval))
	return nil
}

func (r *Rediscovery) Stop(ctx context.Context) {
	if r.scheduler == nil {
		return
	}
	r.scheduler.Stop()
	r.scheduler.Wait(ctx)
}
