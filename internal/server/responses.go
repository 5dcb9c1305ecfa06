package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Facility string `json:"facility"`
	Meta     *Meta  `json:"meta,omitempty"`
}

type EnterRequest struct {
	License   string  `json:"license" validate:"required,min=6,max=12"`
	Type      string  `json:"type" validate:"required,oneof=motorcycle car truck"`
	Color     string  `json:"color" validate:"max=32"`
	Model     string  `json:"model" validate:"max=64"`
	Sidecar   bool    `json:"sidecar"`
	Doors     int     `json:"doors" validate:"gte=0,lte=8"`
	Electric  bool    `json:"electric"`
	CargoTons float64 `json:"cargo_tons" validate:"gte=0,lte=100"`
	Axles     int     `json:"axles" validate:"gte=0,lte=12"`
}

type ExitRequest struct {
	Ticket        string `json:"ticket" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=cash credit_card debit_card digital_wallet upi"`
}

type PayRequest struct {
	Method string `json:"method" validate:"required,oneof=cash credit_card debit_card digital_wallet upi"`
}

type ReserveRequest struct {
	SpotID  string `json:"spot_id" validate:"required"`
	Minutes int    `json:"minutes" validate:"required,gt=0"`
}

type VehicleResponse struct {
	License string              `json:"license"`
	Type    parking.VehicleKind `json:"type"`
	Color   string              `json:"color,omitempty"`
	Model   string              `json:"model,omitempty"`
}

type TicketResponse struct {
	Number    string           `json:"ticket"`
	Status    string           `json:"status"`
	SpotID    string           `json:"spot_id"`
	Vehicle   VehicleResponse  `json:"vehicle"`
	EntryTime time.Time        `json:"entry_time"`
	ExitTime  *time.Time       `json:"exit_time,omitempty"`
	Charge    *ChargeResponse  `json:"charge,omitempty"`
	Paid      bool             `json:"paid"`
	Payment   *PaymentResponse `json:"payment,omitempty"`
}

type DiscountResponse struct {
	Name    string `json:"name"`
	Percent string `json:"percent"`
	Amount  string `json:"amount"`
}

type ChargeResponse struct {
	Hours      int64              `json:"hours"`
	HourlyRate string             `json:"hourly_rate"`
	Base       string             `json:"base"`
	Discounts  []DiscountResponse `json:"discounts,omitempty"`
	Minimum    string             `json:"minimum"`
	Amount     string             `json:"amount"`
}

type PaymentResponse struct {
	TransactionID string    `json:"transaction_id"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
	Fee           string    `json:"fee"`
	Total         string    `json:"total"`
	Reason        string    `json:"reason,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type ReceiptResponse struct {
	Ticket  TicketResponse  `json:"ticket"`
	Charge  ChargeResponse  `json:"charge"`
	Payment PaymentResponse `json:"payment"`
}

type SpotResponse struct {
	ID            string     `json:"id"`
	Size          string     `json:"size"`
	Floor         int        `json:"floor"`
	Zone          string     `json:"zone"`
	Status        string     `json:"status"`
	Occupant      string     `json:"occupant,omitempty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
}

type StatusResponse struct {
	Facility        string         `json:"facility"`
	Floors          int            `json:"floors"`
	TotalSpots      int            `json:"total_spots"`
	Occupied        int            `json:"occupied"`
	Reserved        int            `json:"reserved"`
	Available       int            `json:"available"`
	AvailableBySize map[string]int `json:"available_by_size"`
	OccupancyRate   float64        `json:"occupancy_rate"`
	ActiveTickets   int            `json:"active_tickets"`
}

type RateResponse struct {
	Hourly  string `json:"hourly"`
	Minimum string `json:"minimum"`
}

type PricingResponse struct {
	Rates     map[parking.VehicleKind]RateResponse `json:"rates"`
	Discounts []DiscountResponse                   `json:"discounts"`
	Timezone  string                               `json:"timezone"`
}

func toTicketResponse(t parking.Ticket) TicketResponse {
	resp := TicketResponse{
		Number: t.Number,
		Status: string(t.Status),
		SpotID: t.SpotID,
		Vehicle: VehicleResponse{
			License: t.Vehicle.License,
			Type:    t.Vehicle.Kind(),
			Color:   t.Vehicle.Color,
			Model:   t.Vehicle.Model,
		},
		EntryTime: t.EntryTime,
		ExitTime:  t.ExitTime,
		Paid:      t.Paid,
	}
	if t.Charge != nil {
		c := toChargeResponse(*t.Charge)
		resp.Charge = &c
	}
	if t.Payment != nil {
		p := toPaymentResponse(*t.Payment)
		resp.Payment = &p
	}
	return resp
}

func toChargeResponse(c parking.Charge) ChargeResponse {
	resp := ChargeResponse{
		Hours:      c.Hours,
		HourlyRate: c.HourlyRate.StringFixed(2),
		Base:       c.Base.StringFixed(2),
		Minimum:    c.Minimum.StringFixed(2),
		Amount:     c.Amount.StringFixed(2),
	}
	for _, d := range c.Discounts {
		resp.Discounts = append(resp.Discounts, DiscountResponse{
			Name:    d.Name,
			Percent: d.Percent.String(),
			Amount:  d.Amount.StringFixed(2),
		})
	}
	return resp
}

func toPaymentResponse(p parking.Payment) PaymentResponse {
	return PaymentResponse{
		TransactionID: p.TransactionID,
		Method:        string(p.Method),
		Status:        string(p.Status),
		Amount:        p.Amount.StringFixed(2),
		Fee:           p.Fee.StringFixed(2),
		Total:         p.Total.StringFixed(2),
		Reason:        p.Reason,
		ProcessedAt:   p.ProcessedAt,
	}
}

func toReceiptResponse(r parking.Receipt) ReceiptResponse {
	return ReceiptResponse{
		Ticket:  toTicketResponse(r.Ticket),
		Charge:  toChargeResponse(r.Charge),
		Payment: toPaymentResponse(r.Payment),
	}
}

func toSpotResponse(s parking.Spot, now time.Time) SpotResponse {
	resp := SpotResponse{
		ID:       s.ID,
		Size:     s.Size.String(),
		Floor:    s.Floor,
		Zone:     s.Zone,
		Status:   s.Status(now),
		Occupant: s.Occupant,
	}
	if s.IsReserved(now) {
		until := s.ReservedUntil
		resp.ReservedUntil = &until
	}
	return resp
}

func toStatusResponse(st parking.Status) StatusResponse {
	bySize := make(map[string]int, len(st.AvailableBySize))
	for size, n := range st.AvailableBySize {
		bySize[size.String()] = n
	}
	return StatusResponse{
		Facility:        st.FacilityID,
		Floors:          st.Floors,
		TotalSpots:      st.TotalSpots,
		Occupied:        st.Occupied,
		Reserved:        st.Reserved,
		Available:       st.Available,
		AvailableBySize: bySize,
		OccupancyRate:   st.OccupancyRate,
		ActiveTickets:   st.ActiveTickets,
	}
}

func toPricingResponse(t parking.Tariff) PricingResponse {
	resp := PricingResponse{
		Rates:    make(map[parking.VehicleKind]RateResponse, len(t.Rates)),
		Timezone: "UTC",
	}
	if t.Location != nil {
		resp.Timezone = t.Location.String()
	}
	for kind, r := range t.Rates {
		resp.Rates[kind] = RateResponse{Hourly: r.Hourly.StringFixed(2), Minimum: r.Minimum.StringFixed(2)}
	}
	for _, d := range t.Discounts {
		resp.Discounts = append(resp.Discounts, DiscountResponse{Name: d.Name, Percent: d.Percent.String()})
	}
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Logger().Error().Err(err).Msg("encode response")
	}
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
