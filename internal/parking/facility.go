package parking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"parking-facility/internal/eventbus"
	"parking-facility/internal/logging"
)

// FacilityConfig describes the fixed layout and collaborators of a facility.
type FacilityConfig struct {
	ID           string
	Floors       int
	SpotsPerSize map[SpotSize]int
	// Tariff defaults to DefaultTariff in UTC when it has no rates.
	Tariff Tariff
	Clock  Clock
	// Events defaults to a new bus owned by the facility.
	Events *eventbus.Bus[Event]
	// MaxReservation caps Reserve; zero means no cap.
	MaxReservation time.Duration
}

// Receipt is the result of settling a closed ticket.
type Receipt struct {
	Ticket  Ticket
	Charge  Charge
	Payment Payment
}

// Status is an occupancy summary of the whole facility.
type Status struct {
	FacilityID      string
	Floors          int
	TotalSpots      int
	Occupied        int
	Reserved        int
	Available       int
	AvailableBySize map[SpotSize]int
	TotalBySize     map[SpotSize]int
	OccupancyRate   float64
	ActiveTickets   int
}

// Facility allocates spots to vehicles and tracks their sessions.
// allocMu spans find, occupy and open so a park is never half applied.
type Facility struct {
	id        string
	floors    int
	inventory *Inventory
	ledger    *Ledger
	tariff    Tariff
	now       Clock
	events    *eventbus.Bus[Event]
	maxHold   time.Duration

	allocMu sync.Mutex

	// beforeOccupy runs between finding a spot and occupying it.
	beforeOccupy func(Spot)
}

func NewFacility(cfg FacilityConfig) (*Facility, error) {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	inventory, err := NewInventory(cfg.Floors, cfg.SpotsPerSize, now)
	if err != nil {
		return nil, err
	}

	id := cfg.ID
	if id == "" {
		id = "PLT_" + uuid.NewString()[:8]
	}

	tariff := cfg.Tariff
	if len(tariff.Rates) == 0 {
		tariff = DefaultTariff(time.UTC)
	}

	events := cfg.Events
	if events == nil {
		events = eventbus.New[Event](0)
	}

	return &Facility{
		id:        id,
		floors:    cfg.Floors,
		inventory: inventory,
		ledger:    NewLedger(id),
		tariff:    tariff,
		now:       now,
		events:    events,
		maxHold:   cfg.MaxReservation,
	}, nil
}

func (f *Facility) ID() string { return f.id }

func (f *Facility) Tariff() Tariff { return f.tariff }

func (f *Facility) Capacity() int { return f.inventory.Capacity() }

// Park assigns the vehicle the first eligible free spot and opens a session.
func (f *Facility) Park(ctx context.Context, v Vehicle) (Ticket, error) {
	v.License = NormalizeLicense(v.License)
	if err := v.Validate(); err != nil {
		return Ticket{}, err
	}
	need, err := RequiredSpotSize(v)
	if err != nil {
		return Ticket{}, err
	}

	f.allocMu.Lock()
	ticket, err := f.allocate(v, need)
	f.allocMu.Unlock()

	if err != nil {
		if errors.Is(err, ErrNoSpotAvailable) {
			f.publish(Event{Kind: EventLotFull, License: v.License, Message: fmt.Sprintf("no free %s spot", need)})
		}
		logging.Debug(ctx).Err(err).Str("license", v.License).Msg("park rejected")
		return Ticket{}, err
	}

	logging.Debug(ctx).
		Str("ticket", ticket.Number).
		Str("spot", ticket.SpotID).
		Str("license", v.License).
		Msg("vehicle parked")

	f.publish(Event{
		Kind:         EventVehicleEntry,
		Time:         ticket.EntryTime,
		TicketNumber: ticket.Number,
		SpotID:       ticket.SpotID,
		License:      v.License,
	})
	return ticket, nil
}

// allocate must be called with allocMu held. A spot lost between find and
// occupy is retried once before reporting no availability.
func (f *Facility) allocate(v Vehicle, need SpotSize) (Ticket, error) {
	if existing, ok := f.ledger.FindActiveByLicense(v.License); ok {
		return Ticket{}, fmt.Errorf("%w: %s holds %s", ErrVehicleAlreadyParked, v.License, existing.Number)
	}

	for attempt := 0; attempt < 2; attempt++ {
		spot, ok := f.inventory.FindEligibleFreeSpot(need)
		if !ok {
			break
		}
		if f.beforeOccupy != nil {
			f.beforeOccupy(spot)
		}
		// allocMu keeps the ledger counter still between NextNumber and Open.
		number := f.ledger.NextNumber()
		if f.inventory.Occupy(spot.ID, number) {
			return f.ledger.Open(v, spot.ID, f.now()), nil
		}
	}
	return Ticket{}, fmt.Errorf("%w: no free %s spot for %s", ErrNoSpotAvailable, need, v.License)
}

// Unpark closes the session, prices it and frees the spot. A ticket that is
// unknown or already closed yields ErrTicketNotFound.
func (f *Facility) Unpark(ctx context.Context, number string) (Charge, error) {
	ticket, err := f.unpark(ctx, number)
	if err != nil {
		return Charge{}, err
	}
	return *ticket.Charge, nil
}

func (f *Facility) unpark(ctx context.Context, number string) (Ticket, error) {
	f.allocMu.Lock()
	ticket, err := f.ledger.Close(number, f.now())
	if err != nil {
		f.allocMu.Unlock()
		if errors.Is(err, ErrAlreadyClosed) {
			return Ticket{}, fmt.Errorf("%w: %w", ErrTicketNotFound, err)
		}
		return Ticket{}, err
	}

	charge, chargeErr := f.tariff.Charge(ticket)
	if !f.inventory.Release(ticket.SpotID) {
		logging.Warn(ctx).Str("spot", ticket.SpotID).Str("ticket", number).Msg("spot was not occupied at exit")
	}
	if chargeErr == nil {
		ticket, err = f.ledger.SetCharge(number, charge)
	}
	f.allocMu.Unlock()

	if chargeErr != nil {
		return Ticket{}, chargeErr
	}
	if err != nil {
		return Ticket{}, err
	}

	logging.Debug(ctx).
		Str("ticket", number).
		Str("spot", ticket.SpotID).
		Str("amount", charge.Amount.StringFixed(2)).
		Msg("vehicle left")

	amount := charge.Amount
	f.publish(Event{
		Kind:         EventVehicleExit,
		Time:         *ticket.ExitTime,
		TicketNumber: number,
		SpotID:       ticket.SpotID,
		License:      ticket.Vehicle.License,
		Amount:       &amount,
	})
	return ticket, nil
}

// Checkout unparks and settles in one step. A declined payment still closes
// the session; the ticket stays unpaid and can be settled with Pay.
func (f *Facility) Checkout(ctx context.Context, number string, method PaymentMethod) (Receipt, error) {
	method, err := ParsePaymentMethod(string(method))
	if err != nil {
		return Receipt{}, err
	}

	ticket, err := f.unpark(ctx, number)
	if err != nil {
		return Receipt{}, err
	}
	return f.settle(ctx, ticket, method)
}

// Pay settles a closed, unpaid ticket.
func (f *Facility) Pay(ctx context.Context, number string, method PaymentMethod) (Receipt, error) {
	method, err := ParsePaymentMethod(string(method))
	if err != nil {
		return Receipt{}, err
	}

	ticket, ok := f.ledger.Get(number)
	switch {
	case !ok:
		return Receipt{}, fmt.Errorf("%w: %s", ErrTicketNotFound, number)
	case ticket.Status == TicketOpen || ticket.Charge == nil:
		return Receipt{}, fmt.Errorf("%w: %s", ErrTicketOpen, number)
	case ticket.Paid:
		return Receipt{}, fmt.Errorf("%w: %s", ErrAlreadyPaid, number)
	}
	return f.settle(ctx, ticket, method)
}

func (f *Facility) settle(ctx context.Context, ticket Ticket, method PaymentMethod) (Receipt, error) {
	charge := *ticket.Charge

	payment, err := Settle(ticket.Number, method, charge.Amount, f.now())
	if err != nil {
		return Receipt{}, err
	}

	ticket, err = f.ledger.RecordPayment(ticket.Number, payment)
	if err != nil {
		return Receipt{}, err
	}

	kind := EventPaymentCompleted
	if !payment.Succeeded() {
		kind = EventPaymentFailed
		logging.Warn(ctx).
			Str("ticket", ticket.Number).
			Str("method", string(method)).
			Str("reason", payment.Reason).
			Msg("payment declined")
	}

	total := payment.Total
	f.publish(Event{
		Kind:         kind,
		Time:         payment.ProcessedAt,
		TicketNumber: ticket.Number,
		SpotID:       ticket.SpotID,
		License:      ticket.Vehicle.License,
		Amount:       &total,
		Message:      payment.Reason,
	})

	return Receipt{Ticket: ticket, Charge: charge, Payment: payment}, nil
}

// Quote prices an open ticket as of now. Closed tickets return their final charge.
func (f *Facility) Quote(ctx context.Context, number string) (Charge, error) {
	ticket, err := f.Ticket(ctx, number)
	if err != nil {
		return Charge{}, err
	}
	if ticket.Charge != nil {
		return *ticket.Charge, nil
	}
	return f.tariff.Quote(ticket, f.now())
}

// Reserve blocks a free spot for d.
func (f *Facility) Reserve(ctx context.Context, spotID string, d time.Duration) (Spot, error) {
	if _, ok := f.inventory.Spot(spotID); !ok {
		return Spot{}, fmt.Errorf("%w: %s", ErrSpotNotFound, spotID)
	}
	if d <= 0 {
		return Spot{}, fmt.Errorf("%w: reservation length must be positive, got %s", ErrInvalidReservation, d)
	}
	if f.maxHold > 0 && d > f.maxHold {
		return Spot{}, fmt.Errorf("%w: reservation of %s exceeds the %s limit", ErrInvalidReservation, d, f.maxHold)
	}
	if !f.inventory.Reserve(spotID, d) {
		return Spot{}, fmt.Errorf("%w: %s is not free", ErrSpotUnavailable, spotID)
	}

	spot, _ := f.inventory.Spot(spotID)
	logging.Debug(ctx).Str("spot", spotID).Time("until", spot.ReservedUntil).Msg("spot reserved")
	f.publish(Event{
		Kind:    EventSpotReserved,
		SpotID:  spotID,
		Message: "reserved until " + spot.ReservedUntil.Format(time.RFC3339),
	})
	return spot, nil
}

// ExpireReservations clears lapsed reservations and returns their spot IDs.
func (f *Facility) ExpireReservations(ctx context.Context) []string {
	now := f.now()
	expired := f.inventory.ExpireReservations(now)
	for _, id := range expired {
		f.publish(Event{Kind: EventReservationExpired, Time: now, SpotID: id})
	}
	if len(expired) > 0 {
		logging.Debug(ctx).Strs("spots", expired).Msg("reservations expired")
	}
	return expired
}

func (f *Facility) Status(ctx context.Context) Status {
	f.allocMu.Lock()
	counts := f.inventory.Counts()
	active := f.ledger.ActiveCount()
	f.allocMu.Unlock()

	available := 0
	for _, n := range counts.FreeBySize {
		available += n
	}

	rate := 0.0
	if counts.Total > 0 {
		rate = float64(counts.Occupied) / float64(counts.Total) * 100
	}

	return Status{
		FacilityID:      f.id,
		Floors:          f.floors,
		TotalSpots:      counts.Total,
		Occupied:        counts.Occupied,
		Reserved:        counts.Reserved,
		Available:       available,
		AvailableBySize: counts.FreeBySize,
		TotalBySize:     counts.TotalBySize,
		OccupancyRate:   rate,
		ActiveTickets:   active,
	}
}

func (f *Facility) ActiveTickets(ctx context.Context) []Ticket {
	return f.ledger.Active()
}

func (f *Facility) History(ctx context.Context) []Ticket {
	return f.ledger.History()
}

func (f *Facility) Ticket(ctx context.Context, number string) (Ticket, error) {
	ticket, ok := f.ledger.Get(number)
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, number)
	}
	return ticket, nil
}

// FindByLicense returns the open ticket of a parked vehicle.
func (f *Facility) FindByLicense(ctx context.Context, license string) (Ticket, error) {
	ticket, ok := f.ledger.FindActiveByLicense(license)
	if !ok {
		return Ticket{}, fmt.Errorf("%w: no active ticket for %s", ErrTicketNotFound, NormalizeLicense(license))
	}
	return ticket, nil
}

func (f *Facility) Spots(ctx context.Context) []Spot {
	return f.inventory.Snapshot()
}

// AvailableSpots lists free spots that fit need, in allocation order.
// A zero need lists every free spot.
func (f *Facility) AvailableSpots(ctx context.Context, need SpotSize) []Spot {
	now := f.now()
	var free []Spot
	for _, spot := range f.inventory.Snapshot() {
		if !spot.IsFree(now) {
			continue
		}
		if need != 0 && !Accommodates(spot.Size, need) {
			continue
		}
		free = append(free, spot)
	}
	return free
}

// Subscribe returns a channel of facility events. Slow readers miss events.
func (f *Facility) Subscribe() <-chan Event {
	return f.events.Subscribe()
}

func (f *Facility) Unsubscribe(ch <-chan Event) {
	f.events.Unsubscribe(ch)
}

func (f *Facility) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = f.now()
	}
	e.FacilityID = f.id
	f.events.Publish(e)
}
