package parking

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the hourly price and minimum charge for one vehicle kind.
type Rate struct {
	Hourly  decimal.Decimal
	Minimum decimal.Decimal
}

// DiscountRule takes Percent of the base charge when Applies holds for the
// session's local entry time and billed hours.
type DiscountRule struct {
	Name    string
	Percent decimal.Decimal
	Applies func(entry time.Time, hours int64) bool
}

// AppliedDiscount is one discount that contributed to a charge.
type AppliedDiscount struct {
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// Charge is the priced result for one session.
type Charge struct {
	Kind       VehicleKind       `json:"vehicle_kind"`
	Hours      int64             `json:"hours"`
	HourlyRate decimal.Decimal   `json:"hourly_rate"`
	Base       decimal.Decimal   `json:"base"`
	Discounts  []AppliedDiscount `json:"discounts,omitempty"`
	Discount   decimal.Decimal   `json:"discount"`
	Minimum    decimal.Decimal   `json:"minimum"`
	Amount     decimal.Decimal   `json:"amount"`
}

func (c Charge) clone() Charge {
	if c.Discounts != nil {
		c.Discounts = append([]AppliedDiscount(nil), c.Discounts...)
	}
	return c
}

// Tariff prices sessions. Rates are keyed by vehicle kind; discount rules are
// summed against the base charge and the result is floored at the minimum.
type Tariff struct {
	Rates     map[VehicleKind]Rate
	Discounts []DiscountRule
	Location  *time.Location
}

const (
	earlyEntryStartHour = 6
	earlyEntryEndHour   = 10
	longStayHours       = 24
)

func DefaultRates() map[VehicleKind]Rate {
	return map[VehicleKind]Rate{
		KindMotorcycle: {Hourly: decimal.NewFromInt(2), Minimum: decimal.NewFromInt(1)},
		KindCar:        {Hourly: decimal.NewFromInt(5), Minimum: decimal.NewFromInt(2)},
		KindTruck:      {Hourly: decimal.NewFromInt(10), Minimum: decimal.NewFromInt(5)},
	}
}

func EarlyEntryDiscount() DiscountRule {
	return DiscountRule{
		Name:    "early_entry",
		Percent: decimal.NewFromInt(20),
		Applies: func(entry time.Time, _ int64) bool {
			h := entry.Hour()
			return h >= earlyEntryStartHour && h < earlyEntryEndHour
		},
	}
}

func LongStayDiscount() DiscountRule {
	return DiscountRule{
		Name:    "long_stay",
		Percent: decimal.NewFromInt(15),
		Applies: func(_ time.Time, hours int64) bool {
			return hours >= longStayHours
		},
	}
}

func WeekendDiscount() DiscountRule {
	return DiscountRule{
		Name:    "weekend",
		Percent: decimal.NewFromInt(10),
		Applies: func(entry time.Time, _ int64) bool {
			d := entry.Weekday()
			return d == time.Saturday || d == time.Sunday
		},
	}
}

func DefaultTariff(loc *time.Location) Tariff {
	return Tariff{
		Rates:     DefaultRates(),
		Discounts: []DiscountRule{EarlyEntryDiscount(), LongStayDiscount(), WeekendDiscount()},
		Location:  loc,
	}
}

// BilledHours rounds whole minutes up to hours, with a one hour minimum.
func BilledHours(d time.Duration) int64 {
	minutes := int64(d / time.Minute)
	hours := (minutes + 59) / 60
	if hours < 1 {
		return 1
	}
	return hours
}

// Charge prices a ticket up to its exit time. Open tickets should go through Quote.
func (t Tariff) Charge(ticket Ticket) (Charge, error) {
	if ticket.ExitTime == nil {
		return Charge{}, fmt.Errorf("%w: %s has no exit time", ErrTicketOpen, ticket.Number)
	}
	return t.Quote(ticket, *ticket.ExitTime)
}

// Quote prices a ticket as if it ended at now.
func (t Tariff) Quote(ticket Ticket, now time.Time) (Charge, error) {
	kind := ticket.Vehicle.Kind()
	rate, ok := t.Rates[kind]
	if !ok {
		return Charge{}, fmt.Errorf("%w: no rate for %q", ErrInvalidVehicle, kind)
	}

	hours := BilledHours(ticket.Duration(now))
	base := rate.Hourly.Mul(decimal.NewFromInt(hours))

	entry := ticket.EntryTime
	if t.Location != nil {
		entry = entry.In(t.Location)
	}

	hundred := decimal.NewFromInt(100)
	total := decimal.Zero
	var applied []AppliedDiscount
	for _, rule := range t.Discounts {
		if rule.Applies == nil || !rule.Applies(entry, hours) {
			continue
		}
		amount := base.Mul(rule.Percent).Div(hundred).Round(2)
		total = total.Add(amount)
		applied = append(applied, AppliedDiscount{Name: rule.Name, Percent: rule.Percent, Amount: amount})
	}

	amount := decimal.Max(base.Sub(total), rate.Minimum).Round(2)

	return Charge{
		Kind:       kind,
		Hours:      hours,
		HourlyRate: rate.Hourly,
		Base:       base,
		Discounts:  applied,
		Discount:   total,
		Minimum:    rate.Minimum,
		Amount:     amount,
	}, nil
}

// Describe renders the tariff for display.
func (t Tariff) Describe() string {
	var b strings.Builder
	for _, kind := range []VehicleKind{KindMotorcycle, KindCar, KindTruck} {
		if r, ok := t.Rates[kind]; ok {
			fmt.Fprintf(&b, "%-10s $%s/hour (minimum $%s)\n", kind, r.Hourly.StringFixed(2), r.Minimum.StringFixed(2))
		}
	}
	for _, rule := range t.Discounts {
		fmt.Fprintf(&b, "discount %-12s %s%%\n", rule.Name, rule.Percent.String())
	}
	return b.String()
}
