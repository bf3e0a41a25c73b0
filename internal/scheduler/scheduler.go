package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"

	"github.com/askweather/askweather/internal/logger"
)

// Sweeper is the slice of the cache the scheduler drives.
type Sweeper interface {
	Sweep() int
}

// Scheduler periodically sweeps expired entries out of the weather cache.
// The cache expires entries lazily on read; the sweep only bounds memory
// for keys that are never read again.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	interval  time.Duration
	log       logger.Logger
}

// New creates a Scheduler sweeping sweeper every interval.
func New(sweeper Sweeper, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sweeper:   sweeper,
		interval:  interval,
		log:       log.WithField("component", "scheduler"),
	}
}

// Start schedules the sweep job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		if removed := s.sweeper.Sweep(); removed > 0 {
			s.log.Debugf("swept %d expired cache entries", removed)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
