package serve

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// scheduler drives the optional periodic full rebuild. A scheduled tick only
// sets the change latch, so the coordinator's coalescing rules apply to
// scheduled and filesystem-triggered builds alike.
type scheduler struct {
	inner gocron.Scheduler
}

func newScheduler(every time.Duration, change *Latch) (*scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			slog.Debug("scheduled rebuild tick")
			change.Set()
		}),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule periodic rebuild: %w", err)
	}
	return &scheduler{inner: s}, nil
}

func (s *scheduler) start() {
	slog.Info("periodic rebuild scheduled")
	s.inner.Start()
}

func (s *scheduler) stop() {
	if err := s.inner.Shutdown(); err != nil {
		slog.Warn("scheduler shutdown", "error", err)
	}
}
