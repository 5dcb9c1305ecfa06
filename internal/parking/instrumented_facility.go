package parking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedFacility wraps a Facility with spans and OpenTelemetry metrics.
type InstrumentedFacility struct {
	*Facility
	telemetry *TelemetryProvider

	// Metrics
	parkOperations    metric.Int64Counter
	exitOperations    metric.Int64Counter
	paymentOperations metric.Int64Counter
	occupancyGauge    metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
	revenue           metric.Float64Counter
	totalSpotsGauge   metric.Int64UpDownCounter
}

func NewInstrumentedFacility(facility *Facility, telemetry *TelemetryProvider) (*InstrumentedFacility, error) {
	meter := telemetry.Meter()

	parkOperations, err := meter.Int64Counter("parking_operations_total",
		metric.WithDescription("Total number of park attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("exit_operations_total",
		metric.WithDescription("Total number of exit attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	paymentOperations, err := meter.Int64Counter("payment_operations_total",
		metric.WithDescription("Total number of payment attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("parking_facility_occupancy",
		metric.WithDescription("Current number of occupied spots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of facility operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	revenue, err := meter.Float64Counter("parking_revenue_total",
		metric.WithDescription("Charged amount of closed sessions"),
		metric.WithUnit("{USD}"))
	if err != nil {
		return nil, err
	}

	totalSpotsGauge, err := meter.Int64UpDownCounter("parking_facility_total_spots",
		metric.WithDescription("Total number of spots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	inf := &InstrumentedFacility{
		Facility:          facility,
		telemetry:         telemetry,
		parkOperations:    parkOperations,
		exitOperations:    exitOperations,
		paymentOperations: paymentOperations,
		occupancyGauge:    occupancyGauge,
		operationDuration: operationDuration,
		revenue:           revenue,
		totalSpotsGauge:   totalSpotsGauge,
	}

	totalSpotsGauge.Add(context.Background(), int64(facility.Capacity()))

	return inf, nil
}

// finish records the outcome of an operation on its span and in the duration histogram.
func (inf *InstrumentedFacility) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) []attribute.KeyValue {
	labels := []attribute.KeyValue{
		attribute.String("operation", op),
		attribute.String("status", outcome(err)),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	inf.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))
	return labels
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoSpotAvailable):
		return "no_spot"
	case errors.Is(err, ErrInvalidVehicle), errors.Is(err, ErrInvalidPaymentMethod), errors.Is(err, ErrInvalidReservation):
		return "invalid"
	case errors.Is(err, ErrTicketNotFound), errors.Is(err, ErrSpotNotFound):
		return "not_found"
	}
	return "failed"
}

func (inf *InstrumentedFacility) Park(ctx context.Context, v Vehicle) (Ticket, error) {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.park",
		trace.WithAttributes(
			attribute.String("vehicle.license", NormalizeLicense(v.License)),
			attribute.String("vehicle.kind", string(v.Kind())),
			attribute.String("vehicle.color", v.Color),
		))
	defer span.End()

	start := time.Now()
	span.AddEvent("finding_eligible_spot")

	ticket, err := inf.Facility.Park(ctx, v)

	labels := inf.finish(ctx, span, "park", start, err)
	labels = append(labels, attribute.String("vehicle_kind", string(v.Kind())))
	inf.parkOperations.Add(ctx, 1, metric.WithAttributes(labels...))

	if err == nil {
		span.SetAttributes(
			attribute.String("ticket.number", ticket.Number),
			attribute.String("spot.id", ticket.SpotID),
		)
		span.AddEvent("spot_allocated", trace.WithAttributes(attribute.String("spot.id", ticket.SpotID)))
		inf.occupancyGauge.Add(ctx, 1)
	}

	return ticket, err
}

func (inf *InstrumentedFacility) Unpark(ctx context.Context, number string) (Charge, error) {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.unpark",
		trace.WithAttributes(attribute.String("ticket.number", number)))
	defer span.End()

	start := time.Now()
	span.AddEvent("closing_session")

	charge, err := inf.Facility.Unpark(ctx, number)
	inf.recordExit(ctx, span, start, charge, err)

	return charge, err
}

func (inf *InstrumentedFacility) Checkout(ctx context.Context, number string, method PaymentMethod) (Receipt, error) {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.checkout",
		trace.WithAttributes(
			attribute.String("ticket.number", number),
			attribute.String("payment.method", string(method)),
		))
	defer span.End()

	start := time.Now()

	receipt, err := inf.Facility.Checkout(ctx, number, method)

	// A bad method is rejected before the session is touched.
	if errors.Is(err, ErrInvalidPaymentMethod) {
		inf.finish(ctx, span, "checkout", start, err)
		return receipt, err
	}

	inf.recordExit(ctx, span, start, receipt.Charge, err)
	if err == nil {
		inf.recordPayment(ctx, span, receipt.Payment)
	}

	return receipt, err
}

func (inf *InstrumentedFacility) Pay(ctx context.Context, number string, method PaymentMethod) (Receipt, error) {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.pay",
		trace.WithAttributes(
			attribute.String("ticket.number", number),
			attribute.String("payment.method", string(method)),
		))
	defer span.End()

	start := time.Now()

	receipt, err := inf.Facility.Pay(ctx, number, method)

	inf.finish(ctx, span, "pay", start, err)
	if err == nil {
		inf.recordPayment(ctx, span, receipt.Payment)
	}

	return receipt, err
}

func (inf *InstrumentedFacility) recordExit(ctx context.Context, span trace.Span, start time.Time, charge Charge, err error) {
	labels := inf.finish(ctx, span, "exit", start, err)
	inf.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	if err != nil {
		return
	}

	amount := charge.Amount.InexactFloat64()
	span.SetAttributes(
		attribute.Int64("charge.hours", charge.Hours),
		attribute.String("charge.amount", charge.Amount.StringFixed(2)),
	)
	span.AddEvent("spot_released")
	inf.occupancyGauge.Add(ctx, -1)
	inf.revenue.Add(ctx, amount, metric.WithAttributes(attribute.String("vehicle_kind", string(charge.Kind))))
}

func (inf *InstrumentedFacility) recordPayment(ctx context.Context, span trace.Span, p Payment) {
	span.SetAttributes(
		attribute.String("payment.transaction_id", p.TransactionID),
		attribute.String("payment.status", string(p.Status)),
	)
	if !p.Succeeded() {
		span.AddEvent("payment_declined", trace.WithAttributes(attribute.String("payment.reason", p.Reason)))
	}
	inf.paymentOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(p.Method)),
		attribute.String("status", string(p.Status)),
	))
}

func (inf *InstrumentedFacility) Quote(ctx context.Context, number string) (Charge, error) {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.quote",
		trace.WithAttributes(attribute.String("ticket.number", number)))
	defer span.End()

	start := time.Now()
	charge, err := inf.Facility.Quote(ctx, number)
	inf.finish(ctx, span, "quote", start, err)

	return charge, err
}

func (inf *InstrumentedFacility) Reserve(ctx context.Context, spotID string, d time.Duration) (Spot, error) {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.reserve",
		trace.WithAttributes(
			attribute.String("spot.id", spotID),
			attribute.String("reservation.duration", d.String()),
		))
	defer span.End()

	start := time.Now()
	spot, err := inf.Facility.Reserve(ctx, spotID, d)
	inf.finish(ctx, span, "reserve", start, err)

	return spot, err
}

func (inf *InstrumentedFacility) ExpireReservations(ctx context.Context) []string {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.expire_reservations")
	defer span.End()

	start := time.Now()
	expired := inf.Facility.ExpireReservations(ctx)
	span.SetAttributes(attribute.Int("reservations.expired", len(expired)))
	inf.finish(ctx, span, "expire_reservations", start, nil)

	return expired
}

func (inf *InstrumentedFacility) Status(ctx context.Context) Status {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.status")
	defer span.End()

	start := time.Now()
	span.AddEvent("retrieving_status")

	status := inf.Facility.Status(ctx)

	span.SetAttributes(
		attribute.Int("spots.occupied", status.Occupied),
		attribute.Int("spots.total", status.TotalSpots),
	)
	inf.finish(ctx, span, "status", start, nil)

	return status
}

func (inf *InstrumentedFacility) FindByLicense(ctx context.Context, license string) (Ticket, error) {
	ctx, span := inf.telemetry.Tracer().Start(ctx, "facility.find_by_license",
		trace.WithAttributes(attribute.String("vehicle.license", NormalizeLicense(license))))
	defer span.End()

	start := time.Now()
	span.AddEvent("searching_by_license")

	ticket, err := inf.Facility.FindByLicense(ctx, license)
	if err != nil {
		span.AddEvent("vehicle_not_found")
	} else {
		span.AddEvent("vehicle_found", trace.WithAttributes(attribute.String("spot.id", ticket.SpotID)))
	}

	labels := []attribute.KeyValue{
		attribute.String("operation", "find_by_license"),
		attribute.String("status", outcome(err)),
	}
	inf.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return ticket, err
}
