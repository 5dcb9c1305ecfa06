// Package jobs runs the facility's periodic background work.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"parking-facility/internal/logging"
)

// Expirer is satisfied by parking.Facility and parking.InstrumentedFacility.
type Expirer interface {
	ExpireReservations(ctx context.Context) []string
}

// Sweeper clears lapsed reservations on a fixed interval.
type Sweeper struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	interval  time.Duration
}

func NewSweeper(ctx context.Context, facility Expirer, interval time.Duration) (*Sweeper, error) {
	if facility == nil {
		return nil, errors.New("sweeper needs a facility")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	log := logging.Component("sweeper")
	job, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			expired := facility.ExpireReservations(ctx)
			if len(expired) > 0 {
				log.Info().Strs("spots", expired).Msg("released expired reservations")
			}
		}),
		gocron.WithName("expire-reservations"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule reservation sweep: %w", err)
	}

	return &Sweeper{scheduler: sched, job: job, interval: interval}, nil
}

func (s *Sweeper) Start() {
	log := logging.Component("sweeper")
	log.Info().
		Str("job", s.job.ID().String()).
		Dur("interval", s.interval).
		Msg("reservation sweep started")
	s.scheduler.Start()
}

// RunNow triggers an immediate sweep outside the schedule.
func (s *Sweeper) RunNow() error {
	return s.job.RunNow()
}

func (s *Sweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}
