package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	CLOCK_SYNC_JOB = "station-clock-sync"
)

type syncClockTick struct {
}

// ClockSync periodically tells an actor to set the station clock.
type ClockSync struct {
	scheduler quartz.Scheduler
	cancel    context.CancelFunc
	interval  time.Duration
	logger    *zap.Logger
}

func NewClockSync(interval time.Duration, logger *zap.Logger) (*ClockSync, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid clock sync interval %s", interval)
	}
	return &ClockSync{
		scheduler: quartz.NewStdScheduler(),
		interval:  interval,
		logger:    logger,
	}, nil
}

// Start runs the job right away and then every interval, each run sends a
// syncClockTick to target.
func (c *ClockSync) Start(system *actor.ActorSystem, target *actor.PID) error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.scheduler.Start(ctx)

	send := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		system.Root.Send(target, syncClockTick{})
		return true, nil
	})
	detail := quartz.NewJobDetail(send, quartz.NewJobKey(CLOCK_SYNC_JOB))
	if err := c.scheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(c.interval)); err != nil {
		c.Stop()
		return err
	}
	system.Root.Send(target, syncClockTick{})
	c.logger.Info("station clock sync scheduled", zap.Duration("interval", c.interval))
	return nil
}

func (c *ClockSync) Stop() {
	if c.cancel == nil {
		return
	}
	c.scheduler.Stop()
	c.cancel()
	c.cancel = nil
}
