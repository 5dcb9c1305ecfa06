package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

type HandlerConfig struct {
	ServiceName string
	Clock       parking.Clock
}

type Handler struct {
	facility parking.Service
	validate *validator.Validate
	cfg      HandlerConfig
}

func NewHandler(facility parking.Service, cfg HandlerConfig) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Handler{
		facility: facility,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
	}
}

// statusFor maps facility errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, parking.ErrInvalidVehicle),
		errors.Is(err, parking.ErrInvalidPaymentMethod),
		errors.Is(err, parking.ErrInvalidReservation):
		return http.StatusBadRequest
	case errors.Is(err, parking.ErrAlreadyClosed),
		errors.Is(err, parking.ErrNoSpotAvailable),
		errors.Is(err, parking.ErrSpotUnavailable),
		errors.Is(err, parking.ErrAlreadyPaid),
		errors.Is(err, parking.ErrTicketOpen),
		errors.Is(err, parking.ErrVehicleAlreadyParked):
		return http.StatusConflict
	case errors.Is(err, parking.ErrTicketNotFound),
		errors.Is(err, parking.ErrSpotNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeFacilityError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error(r.Context()).Err(err).Str("path", r.URL.Path).Msg("facility operation failed")
		WriteError(r.Context(), w, status, "Internal server error")
		return
	}
	WriteError(r.Context(), w, status, err.Error())
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(r.Context(), w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		WriteError(r.Context(), w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(msgs, ", ")
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Service:  h.cfg.ServiceName,
		Facility: h.facility.ID(),
		Meta:     extractMeta(r.Context()),
	})
}

func (h *Handler) Enter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EnterRequest
	if !h.decode(w, r, &req) {
		return
	}

	kind, err := parking.ParseVehicleKind(req.Type)
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}

	details, err := parking.VehicleSpec{
		Kind:      kind,
		Sidecar:   req.Sidecar,
		Doors:     req.Doors,
		Electric:  req.Electric,
		CargoTons: req.CargoTons,
		Axles:     req.Axles,
	}.Details()
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}

	ticket, err := h.facility.Park(ctx, parking.NewVehicle(req.License, req.Color, req.Model, details))
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, http.StatusCreated, "Vehicle parked successfully", toTicketResponse(ticket))
}

// Exit closes a ticket. With a payment method it also settles the charge.
func (h *Handler) Exit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ExitRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.PaymentMethod == "" {
		charge, err := h.facility.Unpark(ctx, req.Ticket)
		if err != nil {
			h.writeFacilityError(w, r, err)
			return
		}
		WriteSuccess(ctx, w, http.StatusOK, "Vehicle exited", toChargeResponse(charge))
		return
	}

	method, err := parking.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}

	receipt, err := h.facility.Checkout(ctx, req.Ticket, method)
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}
	h.writeReceipt(w, r, "Vehicle exited and paid", receipt)
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PayRequest
	if !h.decode(w, r, &req) {
		return
	}

	method, err := parking.ParsePaymentMethod(req.Method)
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}

	receipt, err := h.facility.Pay(ctx, chi.URLParam(r, "ticket"), method)
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}
	h.writeReceipt(w, r, "Payment completed", receipt)
}

// writeReceipt answers 402 when the payment was declined; the session is
// closed either way.
func (h *Handler) writeReceipt(w http.ResponseWriter, r *http.Request, message string, receipt parking.Receipt) {
	if !receipt.Payment.Succeeded() {
		WriteJSON(w, http.StatusPaymentRequired, Response{
			Success: false,
			Error:   "Payment declined: " + receipt.Payment.Reason,
			Data:    toReceiptResponse(receipt),
			Meta:    extractMeta(r.Context()),
		})
		return
	}
	WriteSuccess(r.Context(), w, http.StatusOK, message, toReceiptResponse(receipt))
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	WriteSuccess(ctx, w, http.StatusOK, "Status retrieved successfully", toStatusResponse(h.facility.Status(ctx)))
}

func (h *Handler) Spots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.cfg.Clock()

	spots := h.facility.Spots(ctx)
	resp := make([]SpotResponse, 0, len(spots))
	for _, s := range spots {
		resp = append(resp, toSpotResponse(s, now))
	}
	WriteSuccess(ctx, w, http.StatusOK, "Spots retrieved successfully", resp)
}

// AvailableSpots filters by ?size= or by the size a ?type= vehicle needs.
func (h *Handler) AvailableSpots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var need parking.SpotSize
	if v := r.URL.Query().Get("size"); v != "" {
		size, err := parking.ParseSpotSize(v)
		if err != nil {
			WriteError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		need = size
	} else if v := r.URL.Query().Get("type"); v != "" {
		kind, err := parking.ParseVehicleKind(v)
		if err != nil {
			h.writeFacilityError(w, r, err)
			return
		}
		details, _ := parking.VehicleSpec{Kind: kind, Doors: 4}.Details()
		need, _ = parking.RequiredSpotSize(parking.Vehicle{Details: details})
	}

	now := h.cfg.Clock()
	spots := h.facility.AvailableSpots(ctx, need)
	resp := make([]SpotResponse, 0, len(spots))
	for _, s := range spots {
		resp = append(resp, toSpotResponse(s, now))
	}
	WriteSuccess(ctx, w, http.StatusOK, "Available spots retrieved successfully", resp)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ReserveRequest
	if !h.decode(w, r, &req) {
		return
	}

	d := time.Duration(req.Minutes) * time.Minute
	spot, err := h.facility.Reserve(ctx, strings.ToUpper(strings.TrimSpace(req.SpotID)), d)
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}
	WriteSuccess(ctx, w, http.StatusOK, "Spot reserved", toSpotResponse(spot, h.cfg.Clock()))
}

// Tickets lists open tickets, or every ticket with ?state=all.
func (h *Handler) Tickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tickets []parking.Ticket
	switch state := r.URL.Query().Get("state"); state {
	case "", "active", "open":
		tickets = h.facility.ActiveTickets(ctx)
	case "all":
		tickets = h.facility.History(ctx)
	default:
		WriteError(ctx, w, http.StatusBadRequest, fmt.Sprintf("Unknown state %q", state))
		return
	}

	resp := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp = append(resp, toTicketResponse(t))
	}
	WriteSuccess(ctx, w, http.StatusOK, "Tickets retrieved successfully", resp)
}

func (h *Handler) Ticket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ticket, err := h.facility.Ticket(ctx, chi.URLParam(r, "ticket"))
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}
	WriteSuccess(ctx, w, http.StatusOK, "Ticket found", toTicketResponse(ticket))
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	charge, err := h.facility.Quote(ctx, chi.URLParam(r, "ticket"))
	if err != nil {
		h.writeFacilityError(w, r, err)
		return
	}
	WriteSuccess(ctx, w, http.StatusOK, "Quote calculated", toChargeResponse(charge))
}

func (h *Handler) FindByLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	license := chi.URLParam(r, "license")
	if license == "" {
		WriteError(ctx, w, http.StatusBadRequest, "License is required")
		return
	}

	ticket, err := h.facility.FindByLicense(ctx, license)
	if err != nil {
		WriteError(ctx, w, http.StatusNotFound, "Vehicle not found")
		return
	}
	WriteSuccess(ctx, w, http.StatusOK, "Vehicle found", toTicketResponse(ticket))
}

func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, http.StatusOK, "Pricing retrieved successfully", toPricingResponse(h.facility.Tariff()))
}
