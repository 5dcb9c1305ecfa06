package parking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const shellUsage = `Commands:
  park <license> <motorcycle|car|truck> [color] [sidecar=true] [doors=N] [electric=true] [cargo=T] [axles=N]
  leave <ticket>
  checkout <ticket> <method>
  pay <ticket> <method>
  quote <ticket>
  reserve <spot> <minutes>
  status
  tickets
  spots [compact|standard|oversized]
  ticket_for_license <license>
  pricing
  help`

// Shell is a line-oriented operator console over a facility.
type Shell struct {
	facility Service
	tracer   trace.Tracer
	scanner  *bufio.Scanner
	out      io.Writer
}

// NewShell reads commands from in and writes replies to out. A nil telemetry
// provider disables command spans.
func NewShell(facility Service, telemetry *TelemetryProvider, in io.Reader, out io.Writer) *Shell {
	var tracer trace.Tracer = noop.NewTracerProvider().Tracer("")
	if telemetry != nil {
		tracer = telemetry.Tracer()
	}
	return &Shell{
		facility: facility,
		tracer:   tracer,
		scanner:  bufio.NewScanner(in),
		out:      out,
	}
}

// Run processes commands until input ends or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for s.scanner.Scan() {
		if ctx.Err() != nil {
			break
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := s.tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.processCommand(cmdCtx, cmdSpan, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
	return s.scanner.Err()
}

func (s *Shell) processCommand(ctx context.Context, span trace.Span, input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	command := strings.ToLower(parts[0])
	span.SetAttributes(attribute.String("command.name", command))

	var err error
	switch command {
	case "park":
		err = s.handlePark(ctx, parts)
	case "leave", "exit":
		err = s.handleLeave(ctx, parts)
	case "checkout":
		err = s.handleCheckout(ctx, parts)
	case "pay":
		err = s.handlePay(ctx, parts)
	case "quote":
		err = s.handleQuote(ctx, parts)
	case "reserve":
		err = s.handleReserve(ctx, parts)
	case "status":
		s.handleStatus(ctx)
	case "tickets":
		s.handleTickets(ctx)
	case "spots":
		err = s.handleSpots(ctx, parts)
	case "ticket_for_license":
		err = s.handleTicketForLicense(ctx, parts)
	case "pricing":
		fmt.Fprint(s.out, s.facility.Tariff().Describe())
	case "help":
		fmt.Fprintln(s.out, shellUsage)
	default:
		span.AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		fmt.Fprintf(s.out, "Unknown command: %s\n", command)
		return
	}

	if err != nil {
		span.RecordError(err)
		fmt.Fprintf(s.out, "Error: %s\n", err.Error())
	}
}

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

func (s *Shell) handlePark(ctx context.Context, parts []string) error {
	if len(parts) < 3 {
		return usageError("park <license> <motorcycle|car|truck> [color] [key=value...]")
	}

	kind, err := ParseVehicleKind(parts[2])
	if err != nil {
		return err
	}

	spec := VehicleSpec{Kind: kind}
	color := ""
	for _, arg := range parts[3:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			color = arg
			continue
		}
		if err := applyVehicleOption(&spec, key, value); err != nil {
			return err
		}
	}

	details, err := spec.Details()
	if err != nil {
		return err
	}

	ticket, err := s.facility.Park(ctx, NewVehicle(parts[1], color, "", details))
	if errors.Is(err, ErrNoSpotAvailable) {
		fmt.Fprintln(s.out, "Sorry, no spot available")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Allocated spot %s, ticket %s\n", ticket.SpotID, ticket.Number)
	return nil
}

func applyVehicleOption(spec *VehicleSpec, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "sidecar":
		spec.Sidecar, err = strconv.ParseBool(value)
	case "doors":
		spec.Doors, err = strconv.Atoi(value)
	case "electric":
		spec.Electric, err = strconv.ParseBool(value)
	case "cargo":
		spec.CargoTons, err = strconv.ParseFloat(value, 64)
	case "axles":
		spec.Axles, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("%w: unknown option %q", ErrInvalidVehicle, key)
	}
	if err != nil {
		return fmt.Errorf("%w: bad value for %s: %q", ErrInvalidVehicle, key, value)
	}
	return nil
}

func (s *Shell) handleLeave(ctx context.Context, parts []string) error {
	if len(parts) != 2 {
		return usageError("leave <ticket>")
	}

	charge, err := s.facility.Unpark(ctx, parts[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Ticket %s closed: %s\n", parts[1], formatCharge(charge))
	return nil
}

func (s *Shell) handleCheckout(ctx context.Context, parts []string) error {
	if len(parts) != 3 {
		return usageError("checkout <ticket> <method>")
	}

	method, err := ParsePaymentMethod(parts[2])
	if err != nil {
		return err
	}

	receipt, err := s.facility.Checkout(ctx, parts[1], method)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Ticket %s closed: %s\n", parts[1], formatCharge(receipt.Charge))
	s.printPayment(receipt.Payment)
	return nil
}

func (s *Shell) handlePay(ctx context.Context, parts []string) error {
	if len(parts) != 3 {
		return usageError("pay <ticket> <method>")
	}

	method, err := ParsePaymentMethod(parts[2])
	if err != nil {
		return err
	}

	receipt, err := s.facility.Pay(ctx, parts[1], method)
	if err != nil {
		return err
	}

	s.printPayment(receipt.Payment)
	return nil
}

func (s *Shell) printPayment(p Payment) {
	if p.Succeeded() {
		fmt.Fprintf(s.out, "Paid $%s by %s (fee $%s), transaction %s\n",
			p.Total.StringFixed(2), p.Method, p.Fee.StringFixed(2), p.TransactionID)
		return
	}
	fmt.Fprintf(s.out, "Payment declined: %s\n", p.Reason)
}

func formatCharge(c Charge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d h x $%s = $%s", c.Hours, c.HourlyRate.StringFixed(2), c.Base.StringFixed(2))
	for _, d := range c.Discounts {
		fmt.Fprintf(&b, ", %s -$%s", d.Name, d.Amount.StringFixed(2))
	}
	fmt.Fprintf(&b, ", due $%s", c.Amount.StringFixed(2))
	return b.String()
}

func (s *Shell) handleQuote(ctx context.Context, parts []string) error {
	if len(parts) != 2 {
		return usageError("quote <ticket>")
	}

	charge, err := s.facility.Quote(ctx, parts[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Ticket %s so far: %s\n", parts[1], formatCharge(charge))
	return nil
}

func (s *Shell) handleReserve(ctx context.Context, parts []string) error {
	if len(parts) != 3 {
		return usageError("reserve <spot> <minutes>")
	}

	minutes, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("%w: minutes must be a whole number", ErrInvalidReservation)
	}

	spot, err := s.facility.Reserve(ctx, strings.ToUpper(parts[1]), time.Duration(minutes)*time.Minute)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Spot %s reserved until %s\n", spot.ID, spot.ReservedUntil.Format(time.Kitchen))
	return nil
}

func (s *Shell) handleStatus(ctx context.Context) {
	st := s.facility.Status(ctx)

	fmt.Fprintf(s.out, "Facility %s: %d/%d occupied (%.1f%%), %d reserved, %d active tickets\n",
		st.FacilityID, st.Occupied, st.TotalSpots, st.OccupancyRate, st.Reserved, st.ActiveTickets)
	for _, size := range SpotSizes {
		fmt.Fprintf(s.out, "  %-10s %d free of %d\n", size, st.AvailableBySize[size], st.TotalBySize[size])
	}
}

func (s *Shell) handleTickets(ctx context.Context) {
	tickets := s.facility.ActiveTickets(ctx)
	if len(tickets) == 0 {
		fmt.Fprintln(s.out, "Facility is empty")
		return
	}

	fmt.Fprintln(s.out, "Ticket\t\t\tSpot\tLicense\t\tVehicle\tSince")
	for _, t := range tickets {
		fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\t%s\n",
			t.Number, t.SpotID, t.Vehicle.License, t.Vehicle.Kind(), t.EntryTime.Format(time.RFC3339))
	}
}

func (s *Shell) handleSpots(ctx context.Context, parts []string) error {
	var need SpotSize
	if len(parts) > 1 {
		size, err := ParseSpotSize(parts[1])
		if err != nil {
			return err
		}
		need = size
	}

	spots := s.facility.AvailableSpots(ctx, need)
	if len(spots) == 0 {
		fmt.Fprintln(s.out, "No free spots")
		return nil
	}
	for _, spot := range spots {
		fmt.Fprintf(s.out, "%s\t%s\t%s\n", spot.ID, spot.Size, spot.Zone)
	}
	return nil
}

func (s *Shell) handleTicketForLicense(ctx context.Context, parts []string) error {
	if len(parts) != 2 {
		return usageError("ticket_for_license <license>")
	}

	ticket, err := s.facility.FindByLicense(ctx, parts[1])
	if errors.Is(err, ErrTicketNotFound) {
		fmt.Fprintln(s.out, "Not found")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "%s %s\n", ticket.Number, ticket.SpotID)
	return nil
}
