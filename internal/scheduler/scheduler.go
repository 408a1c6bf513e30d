package scheduler

import (
	"context"
	"time"

	"paperledger/internal/logger"
)

// AlignedScheduler runs a task at Offset past every Interval boundary.
// Boundaries up to one day long are counted from local midnight in Location,
// so Interval=24h with Offset=15h30m fires every day at 15:30.
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	Location       *time.Location
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewAlignedScheduler(ctx context.Context, interval, offset time.Duration) *AlignedScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		Location: time.UTC,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// NewDailyScheduler fires once a day at the given offset from midnight in loc.
func NewDailyScheduler(ctx context.Context, at time.Duration, loc *time.Location) *AlignedScheduler {
	s := NewAlignedScheduler(ctx, 24*time.Hour, at)
	if loc != nil {
		s.Location = loc
	}
	return s
}

// Start blocks, running task on schedule until the context is done.
func (s *AlignedScheduler) Start(task func()) {
	if s == nil {
		return
	}
	name := s.Name
	if name == "" {
		name = "scheduler"
	}
	if task == nil {
		logger.Warnf("[%s] task is nil, exit", name)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("[%s] invalid interval=%s, exit", name, s.Interval)
		return
	}
	if s.Offset < 0 {
		logger.Warnf("[%s] negative offset=%s, clamp to 0", name, s.Offset)
		s.Offset = 0
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.Location == nil {
		s.Location = time.UTC
	}

	startAt := s.nowFn()
	logger.Infof("[%s] started interval=%s offset=%s tz=%s run_immediately=%v",
		name, s.Interval, s.Offset, s.Location, s.RunImmediately)

	if s.RunImmediately {
		task()
	}

	for {
		now := s.nowFn()
		wakeAt, wait := s.nextTimes(now)
		logger.Debugf("[%s] next run at %s (in %s) | uptime=%s",
			name,
			wakeAt.In(s.Location).Format(time.RFC3339),
			wait.Truncate(time.Second),
			now.Sub(startAt).Truncate(time.Second),
		)

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("[%s] ctx done, exit", name)
			return
		case <-timer.C:
		}
		task()
	}
}

// nextTimes returns the first run strictly after now and how long to wait.
func (s *AlignedScheduler) nextTimes(now time.Time) (wakeAt time.Time, wait time.Duration) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	var base time.Time
	if s.Interval <= 24*time.Hour {
		local := now.In(loc)
		y, m, d := local.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
		base = midnight.Add(now.Sub(midnight) / s.Interval * s.Interval)
	} else {
		base = now.Truncate(s.Interval)
	}
	wakeAt = base.Add(s.Offset % s.Interval)
	for !wakeAt.After(now) {
		wakeAt = wakeAt.Add(s.Interval)
	}
	return wakeAt, wakeAt.Sub(now)
}
