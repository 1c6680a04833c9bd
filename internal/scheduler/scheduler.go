// Package scheduler repeats a job on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"rcsync/internal/logger"
)

// Job is one scheduled unit of work. Its error is logged and the loop continues.
type Job func(ctx context.Context) error

type Scheduler struct {
	expr     string
	schedule cron.Schedule
	loc      *time.Location
	log      logger.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse accepts a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 9 * * 1-5".
func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty cron expression")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

func New(expr string, loc *time.Location, log logger.Logger) (*Scheduler, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		expr:     strings.TrimSpace(expr),
		schedule: sched,
		loc:      loc,
		log:      log,
		now:      time.Now,
		after:    time.After,
	}, nil
}

func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.loc))
}

// Run sleeps until each fire time and runs job, until ctx is done.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	s.log.Info("Scheduler started", logger.String("cron", s.expr), logger.String("timezone", s.loc.String()))
	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("Scheduler stopped")
			return err
		}
		now := s.now().In(s.loc)
		next := s.schedule.Next(now)
		wait := next.Sub(now)
		s.log.Info("Next run scheduled",
			logger.String("at", next.Format("Mon Jan 2 15:04")),
			logger.Duration("in", wait.Round(time.Second)),
		)

		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return ctx.Err()
		case <-s.after(wait):
		}

		if err := job(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("Scheduled run failed", logger.Error(err))
		}
	}
}
