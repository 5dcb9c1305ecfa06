// Package notify turns facility events into customer and operator
// notifications.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Priority 1 is the most urgent.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

type Notification struct {
	Channel  Channel
	Priority Priority
	Subject  string
	Body     string
	Event    parking.Event
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// PriorityOf ranks an event kind.
func PriorityOf(kind parking.EventKind) Priority {
	switch kind {
	case parking.EventPaymentFailed:
		return PriorityHigh
	case parking.EventLotFull, parking.EventVehicleExit:
		return PriorityMedium
	}
	return PriorityLow
}

// Route returns the notifications an event produces. Entries, payments and a
// full lot go out by SMS. Payment confirmations and expired reservations also
// go out by email.
func Route(e parking.Event) []Notification {
	var out []Notification
	prio := PriorityOf(e.Kind)

	switch e.Kind {
	case parking.EventVehicleEntry, parking.EventPaymentCompleted, parking.EventPaymentFailed, parking.EventLotFull:
		out = append(out, Notification{Channel: ChannelSMS, Priority: prio, Body: smsBody(e), Event: e})
	}

	switch e.Kind {
	case parking.EventPaymentCompleted, parking.EventReservationExpired:
		out = append(out, Notification{
			Channel:  ChannelEmail,
			Priority: prio,
			Subject:  emailSubject(e),
			Body:     emailBody(e),
			Event:    e,
		})
	}
	return out
}

func smsBody(e parking.Event) string {
	switch e.Kind {
	case parking.EventVehicleEntry:
		return fmt.Sprintf("Vehicle %s parked at %s. Ticket %s.", e.License, e.SpotID, e.TicketNumber)
	case parking.EventPaymentCompleted:
		return "Payment successful. Thank you for parking with us."
	case parking.EventPaymentFailed:
		return "Payment failed. Please try again or contact support."
	case parking.EventLotFull:
		return "Parking is full. Please try an alternative location."
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func emailSubject(e parking.Event) string {
	switch e.Kind {
	case parking.EventPaymentCompleted:
		return "Parking Payment Confirmation"
	case parking.EventReservationExpired:
		return "Parking Reservation Expired"
	}
	return "Parking Notification: " + string(e.Kind)
}

func emailBody(e parking.Event) string {
	switch e.Kind {
	case parking.EventPaymentCompleted:
		amount := "-"
		if e.Amount != nil {
			amount = e.Amount.StringFixed(2)
		}
		return fmt.Sprintf("Your parking payment has been processed.\n\nTicket: %s\nAmount: %s\nTime: %s\n",
			e.TicketNumber, amount, e.Time.Format("2006-01-02 15:04"))
	case parking.EventReservationExpired:
		return fmt.Sprintf("Your reservation for spot %s expired at %s and the spot has been released.\n",
			e.SpotID, e.Time.Format("2006-01-02 15:04"))
	}
	return e.Message
}

// LogSender writes notifications to the structured log instead of a gateway.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{log: logging.Component("notify")}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.log.Info().
		Str("channel", string(n.Channel)).
		Int("priority", int(n.Priority)).
		Str("event", string(n.Event.Kind)).
		Str("ticket", n.Event.TicketNumber).
		Str("subject", n.Subject).
		Msg(n.Body)
	return nil
}

// Notifier delivers routed notifications through a Sender.
type Notifier struct {
	sender Sender
	log    zerolog.Logger
}

func NewNotifier(sender Sender) *Notifier {
	if sender == nil {
		sender = NewLogSender()
	}
	return &Notifier{sender: sender, log: logging.Component("notify")}
}

// Handle routes one event. Send failures are logged and do not stop the
// remaining notifications.
func (n *Notifier) Handle(ctx context.Context, e parking.Event) {
	for _, note := range Route(e) {
		if err := n.sender.Send(ctx, note); err != nil {
			n.log.Warn().Err(err).
				Str("channel", string(note.Channel)).
				Str("event", string(e.Kind)).
				Msg("notification not delivered")
		}
	}
}

// Run handles events until ch is closed or ctx is done.
func (n *Notifier) Run(ctx context.Context, ch <-chan parking.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			n.Handle(ctx, e)
		}
	}
}
