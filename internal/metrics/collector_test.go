package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"parking-facility/internal/parking"
)

type staticStatus parking.Status

func (s staticStatus) Status(context.Context) parking.Status { return parking.Status(s) }

func TestOccupancyCollector(t *testing.T) {
	source := staticStatus{
		TotalSpots:      4,
		Occupied:        1,
		Reserved:        1,
		ActiveTickets:   1,
		OccupancyRate:   25,
		AvailableBySize: map[parking.SpotSize]int{parking.SizeCompact: 2, parking.SizeStandard: 0, parking.SizeOversized: 0},
		TotalBySize:     map[parking.SpotSize]int{parking.SizeCompact: 2, parking.SizeStandard: 2},
	}
	c := NewOccupancyCollector(source, "PLT_TEST")

	expected := `
# HELP parking_occupancy_ratio Occupied spots over total spots
# TYPE parking_occupancy_ratio gauge
parking_occupancy_ratio{facility="PLT_TEST"} 0.25
# HELP parking_spots_free Free spots by size
# TYPE parking_spots_free gauge
parking_spots_free{facility="PLT_TEST",size="compact"} 2
parking_spots_free{facility="PLT_TEST",size="oversized"} 0
parking_spots_free{facility="PLT_TEST",size="standard"} 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"parking_occupancy_ratio", "parking_spots_free"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	if n := testutil.CollectAndCount(c); n != 10 {
		t.Errorf("expected 10 series, got %d", n)
	}
}

func TestOccupancyCollectorWithFacility(t *testing.T) {
	f, err := parking.NewFacility(parking.FacilityConfig{
		ID:           "PLT_LIVE",
		Floors:       1,
		SpotsPerSize: map[parking.SpotSize]int{parking.SizeStandard: 2},
	})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	if _, err := f.Park(context.Background(), parking.NewVehicle("ABC123", "", "", parking.Car{})); err != nil {
		t.Fatalf("park: %v", err)
	}

	reg, err := NewRegistry(NewOccupancyCollector(f, f.ID()))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	expected := `
# HELP parking_spots_occupied Occupied spots
# TYPE parking_spots_occupied gauge
parking_spots_occupied{facility="PLT_LIVE"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "parking_spots_occupied"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestEventCounter(t *testing.T) {
	counter := NewEventCounter()
	ch := make(chan parking.Event, 3)
	ch <- parking.Event{Kind: parking.EventVehicleEntry}
	ch <- parking.Event{Kind: parking.EventVehicleEntry}
	ch <- parking.Event{Kind: parking.EventLotFull}
	close(ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	counter.Run(ctx, ch)

	expected := `
# HELP parking_events_total Facility events by kind
# TYPE parking_events_total counter
parking_events_total{kind="lot_full"} 1
parking_events_total{kind="vehicle_entry"} 2
`
	if err := testutil.CollectAndCompare(counter.Collector(), strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}
