package parking

import (
	"context"
	"time"
)

// Service is the set of facility operations exposed to the shell and the
// HTTP API. Both Facility and InstrumentedFacility implement it.
type Service interface {
	ID() string
	Tariff() Tariff

	Park(ctx context.Context, v Vehicle) (Ticket, error)
	Unpark(ctx context.Context, number string) (Charge, error)
	Checkout(ctx context.Context, number string, method PaymentMethod) (Receipt, error)
	Pay(ctx context.Context, number string, method PaymentMethod) (Receipt, error)
	Quote(ctx context.Context, number string) (Charge, error)

	Reserve(ctx context.Context, spotID string, d time.Duration) (Spot, error)
	ExpireReservations(ctx context.Context) []string

	Status(ctx context.Context) Status
	ActiveTickets(ctx context.Context) []Ticket
	History(ctx context.Context) []Ticket
	Ticket(ctx context.Context, number string) (Ticket, error)
	FindByLicense(ctx context.Context, license string) (Ticket, error)
	Spots(ctx context.Context) []Spot
	AvailableSpots(ctx context.Context, need SpotSize) []Spot
}

var (
	_ Service = (*Facility)(nil)
	_ Service = (*InstrumentedFacility)(nil)
)
