// Package jobs runs the work that happens outside inbound traffic: the
// stale order sweep and merchant broadcasts.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	apperrors "chatstore/internal/errors"
	"chatstore/internal/locker"
)

// ErrJobRunning is returned by RunNow while a run holds the job's lock.
var ErrJobRunning = apperrors.Validation("JOB_RUNNING", "That job is already running. Try again when it has finished.")

func jobKey(name string) string { return "job:" + name }

// Sleep waits for d or until ctx is done.
type Sleep func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Scheduler runs named jobs on a fixed interval. A run is skipped when
// the job's lock is still held, by this process or another replica.
type Scheduler struct {
	locker locker.Locker
	wg     sync.WaitGroup
}

func NewScheduler(lk locker.Locker) *Scheduler {
	return &Scheduler{locker: lk}
}

// Every starts fn in the background until ctx is cancelled.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx, name, fn)
			}
		}
	}()
}

// run reports whether fn was started.
func (s *Scheduler) run(ctx context.Context, name string, fn func(context.Context) error) bool {
	unlock, ok, err := s.locker.TryLock(ctx, jobKey(name))
	if err != nil {
		log.Printf("scheduler: lock %s: %v", name, err)
		return false
	}
	if !ok {
		log.Printf("scheduler: %s still running, skipping tick", name)
		return false
	}
	defer unlock()
	if err := fn(ctx); err != nil {
		log.Printf("scheduler: %s: %v", name, err)
	}
	return true
}

// RunNow runs fn once under the same lock as the scheduled runs of name.
func (s *Scheduler) RunNow(ctx context.Context, name string, fn func(context.Context) error) error {
	unlock, ok, err := s.locker.TryLock(ctx, jobKey(name))
	if err != nil {
		return apperrors.Dependency("lock job", err)
	}
	if !ok {
		return ErrJobRunning
	}
	defer unlock()
	return fn(ctx)
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
