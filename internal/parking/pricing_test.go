package parking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedTicket(details VehicleDetails, entry time.Time, stay time.Duration) Ticket {
	exit := entry.Add(stay)
	return Ticket{
		Number:    "TKT-TEST-000001",
		Vehicle:   NewVehicle("ABC123", "Blue", "", details),
		EntryTime: entry,
		ExitTime:  &exit,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBilledHours(t *testing.T) {
	cases := []struct {
		stay time.Duration
		want int64
	}{
		{0, 1},
		{30 * time.Second, 1},
		{59 * time.Minute, 1},
		{60 * time.Minute, 1},
		{61 * time.Minute, 2},
		{60*time.Minute + 59*time.Second, 1},
		{24 * time.Hour, 24},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, BilledHours(c.stay), "stay %s", c.stay)
	}
}

func TestTariffCarRoundsUpHours(t *testing.T) {
	tariff := DefaultTariff(time.UTC)

	charge, err := tariff.Charge(closedTicket(Car{}, monday, time.Hour))
	require.NoError(t, err)
	assert.True(t, dec("5.00").Equal(charge.Amount), "got %s", charge.Amount)

	charge, err = tariff.Charge(closedTicket(Car{}, monday, 61*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), charge.Hours)
	assert.True(t, dec("10.00").Equal(charge.Amount), "got %s", charge.Amount)
	assert.Empty(t, charge.Discounts)
}

func TestTariffDiscountsAddThenFloor(t *testing.T) {
	tariff := DefaultTariff(time.UTC)
	saturdayMorning := time.Date(2026, 3, 7, 6, 0, 0, 0, time.UTC)

	// 2.00 base, 20% early plus 10% weekend gives 1.40, above the 1.00 minimum.
	charge, err := tariff.Charge(closedTicket(Motorcycle{}, saturdayMorning, 30*time.Minute))
	require.NoError(t, err)
	assert.True(t, dec("1.40").Equal(charge.Amount), "got %s", charge.Amount)
	assert.Len(t, charge.Discounts, 2)
	assert.True(t, dec("0.60").Equal(charge.Discount), "got %s", charge.Discount)
}

func TestTariffMinimumFloor(t *testing.T) {
	tariff := DefaultTariff(time.UTC)
	tariff.Discounts = append(tariff.Discounts, DiscountRule{
		Name:    "promo",
		Percent: decimal.NewFromInt(90),
		Applies: func(time.Time, int64) bool { return true },
	})

	charge, err := tariff.Charge(closedTicket(Motorcycle{}, monday, time.Hour))
	require.NoError(t, err)
	assert.True(t, dec("1.00").Equal(charge.Amount), "got %s", charge.Amount)
}

func TestTariffLongStay(t *testing.T) {
	tariff := DefaultTariff(time.UTC)

	charge, err := tariff.Charge(closedTicket(Truck{CargoTons: 10, Axles: 3}, monday, 24*time.Hour))
	require.NoError(t, err)
	// 240.00 less 15%.
	assert.True(t, dec("204.00").Equal(charge.Amount), "got %s", charge.Amount)
	require.Len(t, charge.Discounts, 1)
	assert.Equal(t, "long_stay", charge.Discounts[0].Name)
}

func TestTariffUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	// 23:00 UTC on Monday is 07:00 on Tuesday at UTC+8.
	entry := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)

	utc, err := DefaultTariff(time.UTC).Charge(closedTicket(Car{}, entry, time.Hour))
	require.NoError(t, err)
	local, err := DefaultTariff(loc).Charge(closedTicket(Car{}, entry, time.Hour))
	require.NoError(t, err)

	assert.True(t, dec("5.00").Equal(utc.Amount), "got %s", utc.Amount)
	assert.True(t, dec("4.00").Equal(local.Amount), "got %s", local.Amount)
}

func TestTariffChargeNeedsExit(t *testing.T) {
	_, err := DefaultTariff(time.UTC).Charge(Ticket{Vehicle: NewVehicle("ABC123", "", "", Car{}), EntryTime: monday})
	assert.ErrorIs(t, err, ErrTicketOpen)
}

func TestTariffQuoteOpenTicket(t *testing.T) {
	ticket := Ticket{Vehicle: NewVehicle("ABC123", "", "", Car{}), EntryTime: monday}

	charge, err := DefaultTariff(time.UTC).Quote(ticket, monday.Add(150*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), charge.Hours)
	assert.True(t, dec("15.00").Equal(charge.Amount), "got %s", charge.Amount)
}
