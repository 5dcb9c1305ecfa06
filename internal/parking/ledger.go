package parking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

const eventClose = "close"

// Ticket is a snapshot of one parking session.
type Ticket struct {
	Number    string
	Vehicle   Vehicle
	SpotID    string
	EntryTime time.Time
	ExitTime  *time.Time
	Charge    *Charge
	Payment   *Payment
	Paid      bool
	Status    TicketStatus
}

// Duration is the time parked so far, measured to now for open tickets.
func (t Ticket) Duration(now time.Time) time.Duration {
	end := now
	if t.ExitTime != nil {
		end = *t.ExitTime
	}
	if end.Before(t.EntryTime) {
		return 0
	}
	return end.Sub(t.EntryTime)
}

type session struct {
	seq     uint64
	ticket  Ticket
	machine *fsm.FSM
}

// snapshot copies the ticket so callers never share its pointers.
func (s *session) snapshot() Ticket {
	t := s.ticket
	t.Status = TicketStatus(s.machine.Current())
	if t.ExitTime != nil {
		exit := *t.ExitTime
		t.ExitTime = &exit
	}
	if t.Charge != nil {
		c := t.Charge.clone()
		t.Charge = &c
	}
	if t.Payment != nil {
		p := *t.Payment
		t.Payment = &p
	}
	return t
}

// Ledger tracks open sessions and keeps closed ones as payment records.
type Ledger struct {
	mu      sync.RWMutex
	prefix  string
	counter uint64
	active  map[string]*session
	history map[string]*session
}

func NewLedger(facilityID string) *Ledger {
	return &Ledger{
		prefix:  facilityID,
		active:  make(map[string]*session),
		history: make(map[string]*session),
	}
}

// NextNumber is the number the next Open will issue. Callers that act on it
// must serialize with Open.
func (l *Ledger) NextNumber() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.format(l.counter + 1)
}

func (l *Ledger) format(seq uint64) string {
	return fmt.Sprintf("TKT-%s-%06d", l.prefix, seq)
}

// Open starts a session. Ticket numbers are strictly increasing for the
// life of the ledger.
func (l *Ledger) Open(vehicle Vehicle, spotID string, at time.Time) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counter++
	number := l.format(l.counter)

	s := &session{
		seq: l.counter,
		ticket: Ticket{
			Number:    number,
			Vehicle:   vehicle,
			SpotID:    spotID,
			EntryTime: at,
		},
		machine: fsm.NewFSM(
			string(TicketOpen),
			fsm.Events{
				{Name: eventClose, Src: []string{string(TicketOpen)}, Dst: string(TicketClosed)},
			},
			fsm.Callbacks{},
		),
	}

	l.active[number] = s
	l.history[number] = s
	return s.snapshot()
}

// Close ends an open session. The exit time of a closed ticket never changes.
func (l *Ledger) Close(number string, exit time.Time) (Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.history[number]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, number)
	}

	if err := s.machine.Event(context.Background(), eventClose); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			return s.snapshot(), fmt.Errorf("%w: %s", ErrAlreadyClosed, number)
		}
		return Ticket{}, err
	}

	s.ticket.ExitTime = &exit
	delete(l.active, number)
	return s.snapshot(), nil
}

func (l *Ledger) SetCharge(number string, charge Charge) (Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.history[number]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, number)
	}

	s.ticket.Charge = &charge
	return s.snapshot(), nil
}

// RecordPayment attaches a payment to a closed ticket and marks it paid when
// the payment succeeded.
func (l *Ledger) RecordPayment(number string, payment Payment) (Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.history[number]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrTicketNotFound, number)
	}
	if s.machine.Is(string(TicketOpen)) {
		return s.snapshot(), fmt.Errorf("%w: %s", ErrTicketOpen, number)
	}
	if s.ticket.Paid {
		return s.snapshot(), fmt.Errorf("%w: %s", ErrAlreadyPaid, number)
	}

	s.ticket.Payment = &payment
	s.ticket.Paid = payment.Succeeded()
	return s.snapshot(), nil
}

func (l *Ledger) Get(number string) (Ticket, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.history[number]
	if !ok {
		return Ticket{}, false
	}
	return s.snapshot(), true
}

func (l *Ledger) FindActiveByLicense(license string) (Ticket, bool) {
	license = NormalizeLicense(license)

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, s := range l.active {
		if s.ticket.Vehicle.License == license {
			return s.snapshot(), true
		}
	}
	return Ticket{}, false
}

// Active returns the open sessions ordered by ticket number.
func (l *Ledger) Active() []Ticket {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return collect(l.active)
}

// History returns every ticket ever opened, ordered by ticket number.
func (l *Ledger) History() []Ticket {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return collect(l.history)
}

func (l *Ledger) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.active)
}

func collect(sessions map[string]*session) []Ticket {
	ordered := make([]*session, 0, len(sessions))
	for _, s := range sessions {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seq < ordered[j].seq
	})

	tickets := make([]Ticket, len(ordered))
	for i, s := range ordered {
		tickets[i] = s.snapshot()
	}
	return tickets
}
