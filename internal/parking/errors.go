package parking

import "errors"

var (
	// ErrInvalidVehicle is returned for a malformed license or a vehicle without a known variant.
	ErrInvalidVehicle = errors.New("invalid vehicle")
	// ErrNoSpotAvailable means no eligible free spot exists right now. Callers may retry later.
	ErrNoSpotAvailable = errors.New("no spot available")
	// ErrSpotUnavailable means a spot was taken between the eligibility check and occupy.
	ErrSpotUnavailable = errors.New("spot unavailable")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrAlreadyClosed   = errors.New("ticket already closed")
	ErrAlreadyPaid     = errors.New("ticket already paid")
	ErrTicketOpen      = errors.New("ticket still open")
	ErrSpotNotFound    = errors.New("spot not found")

	ErrVehicleAlreadyParked = errors.New("vehicle already parked")
	ErrInvalidReservation   = errors.New("invalid reservation")

	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidConfig        = errors.New("invalid facility configuration")
)
