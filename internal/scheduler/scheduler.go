// Package scheduler runs periodic maintenance jobs, one instance at a
// time across the fleet via the redis lock.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/ratelimit"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler ticks each job on its own interval.
type Scheduler struct {
	jobs   []Job
	locker *ratelimit.Locker
	clock  clock.Clock
	log    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a scheduler over the given jobs.
func New(jobs []Job, locker *ratelimit.Locker, clk clock.Clock, log *zap.Logger) *Scheduler {
	return &Scheduler{jobs: jobs, locker: locker, clock: clk, log: log}
}

// Start launches one loop per job.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, job := range s.jobs {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runJob(ctx, job)
				}
			}
		}()
	}
}

// Stop signals the job loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// RunJobNow executes a job immediately under its lock. Used by tests
// and manual triggers.
func (s *Scheduler) RunJobNow(ctx context.Context, name string) {
	for _, job := range s.jobs {
		if job.Name == name {
			s.runJob(ctx, job)
			return
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	acquired, release := s.locker.TryLock(ctx, "job:"+job.Name, job.Interval)
	if !acquired {
		return
	}
	defer release()

	start := s.clock.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error("scheduled job failed",
			zap.String("job", job.Name),
			zap.Error(err))
		return
	}
	s.log.Info("scheduled job finished",
		zap.String("job", job.Name),
		zap.Duration("took", s.clock.Now().Sub(start)))
}
