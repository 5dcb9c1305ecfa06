package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"parking-facility/internal/config"
	"parking-facility/internal/eventbus"
	"parking-facility/internal/jobs"
	"parking-facility/internal/logging"
	"parking-facility/internal/metrics"
	"parking-facility/internal/notify"
	"parking-facility/internal/parking"
	"parking-facility/internal/server"
)

const eventBuffer = 64

// app owns every long-lived component of one facility process.
type app struct {
	cfg       *config.Config
	telemetry *parking.TelemetryProvider
	events    *eventbus.Bus[parking.Event]
	facility  *parking.Facility
	service   parking.Service
	registry  *prometheus.Registry
	counter   *metrics.EventCounter
	sweeper   *jobs.Sweeper
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	telemetry, err := parking.NewTelemetryProvider(ctx, parking.TelemetryConfig{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		SetGlobal:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a := &app{cfg: cfg, telemetry: telemetry, events: eventbus.New[parking.Event](eventBuffer)}
	if err := a.build(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	layout, err := a.cfg.Facility.Layout()
	if err != nil {
		return err
	}
	loc, err := a.cfg.Facility.Location()
	if err != nil {
		return err
	}

	a.facility, err = parking.NewFacility(parking.FacilityConfig{
		ID:             a.cfg.Facility.ID,
		Floors:         a.cfg.Facility.Floors,
		SpotsPerSize:   layout,
		Tariff:         parking.DefaultTariff(loc),
		Events:         a.events,
		MaxReservation: a.cfg.Reservations.MaxDuration,
	})
	if err != nil {
		return fmt.Errorf("create facility: %w", err)
	}

	a.service, err = parking.NewInstrumentedFacility(a.facility, a.telemetry)
	if err != nil {
		return fmt.Errorf("instrument facility: %w", err)
	}

	a.counter = metrics.NewEventCounter()
	a.registry, err = metrics.NewRegistry(
		metrics.NewOccupancyCollector(a.facility, a.facility.ID()),
		a.counter.Collector(),
	)
	if err != nil {
		return fmt.Errorf("metrics registry: %w", err)
	}

	a.sweeper, err = jobs.NewSweeper(ctx, a.service, a.cfg.Reservations.SweepInterval)
	if err != nil {
		return err
	}

	logging.Logger().Info().
		Str("facility", a.facility.ID()).
		Int("floors", a.cfg.Facility.Floors).
		Int("spots", a.facility.Capacity()).
		Str("timezone", loc.String()).
		Msg("facility ready")
	return nil
}

// start launches the background consumers and the reservation sweep. They
// stop when ctx is done or the event bus closes.
func (a *app) start(ctx context.Context) {
	go a.counter.Run(ctx, a.facility.Subscribe())
	go notify.NewNotifier(notify.NewLogSender()).Run(ctx, a.facility.Subscribe())
	a.sweeper.Start()
}

func (a *app) httpServer() *server.Server {
	handler := server.NewHandler(a.service, server.HandlerConfig{
		ServiceName: a.cfg.Telemetry.ServiceName,
	})
	return server.NewServer(a.cfg.Server, handler, a.registry)
}

func (a *app) close() {
	var errs []error
	if a.sweeper != nil {
		if err := a.sweeper.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("sweeper: %w", err))
		}
	}
	a.events.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		logging.Logger().Error().Err(err).Msg("shutdown incomplete")
	}
	if dropped := a.events.Dropped(); dropped > 0 {
		logging.Logger().Warn().Uint64("events", dropped).Msg("slow event consumers missed events")
	}
}
