package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs housekeeping tasks on a fixed interval: expiring idle
// browser state and pruning stale stored sessions.
type Scheduler struct {
	Interval time.Duration
	Log      zerolog.Logger

	mu    sync.Mutex
	tasks []task
	wg    sync.WaitGroup
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

func (s *Scheduler) Add(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task{name: name, fn: fn})
	s.mu.Unlock()
}

// Run ticks until ctx is done and waits for running tasks before
// returning.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]task(nil), s.tasks...)
	s.mu.Unlock()

	for _, tk := range tasks {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := tk.fn(ctx); err != nil {
				s.Log.Warn().Err(err).Str("task", tk.name).Msg("scheduled task failed")
			}
		}()
	}
	s.wg.Wait()
}
