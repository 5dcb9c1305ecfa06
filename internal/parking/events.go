package parking

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventVehicleEntry       EventKind = "vehicle_entry"
	EventVehicleExit        EventKind = "vehicle_exit"
	EventLotFull            EventKind = "lot_full"
	EventSpotReserved       EventKind = "spot_reserved"
	EventReservationExpired EventKind = "reservation_expired"
	EventPaymentCompleted   EventKind = "payment_completed"
	EventPaymentFailed      EventKind = "payment_failed"
)

// Event is published by the facility after a state change has been applied.
type Event struct {
	Kind         EventKind        `json:"kind"`
	Time         time.Time        `json:"time"`
	FacilityID   string           `json:"facility_id"`
	TicketNumber string           `json:"ticket_number,omitempty"`
	SpotID       string           `json:"spot_id,omitempty"`
	License      string           `json:"license,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Message      string           `json:"message,omitempty"`
}
