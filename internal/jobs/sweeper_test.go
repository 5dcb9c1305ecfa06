package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-facility/internal/parking"
)

type countingExpirer struct {
	calls atomic.Int32
}

func (c *countingExpirer) ExpireReservations(context.Context) []string {
	c.calls.Add(1)
	return nil
}

func TestNewSweeperRejectsBadInput(t *testing.T) {
	_, err := NewSweeper(context.Background(), nil, time.Second)
	assert.Error(t, err)

	_, err = NewSweeper(context.Background(), &countingExpirer{}, 0)
	assert.Error(t, err)
}

func TestSweeperRunsOnInterval(t *testing.T) {
	exp := &countingExpirer{}
	s, err := NewSweeper(context.Background(), exp, 20*time.Millisecond)
	require.NoError(t, err)

	s.Start()
	defer func() { _ = s.Shutdown() }()

	assert.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperReleasesLapsedReservation(t *testing.T) {
	var now atomic.Int64
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now.Store(start.UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()).UTC() }

	f, err := parking.NewFacility(parking.FacilityConfig{
		ID:           "PLT_SWEEP",
		Floors:       1,
		SpotsPerSize: map[parking.SpotSize]int{parking.SizeStandard: 1},
		Clock:        clock,
	})
	require.NoError(t, err)

	_, err = f.Reserve(context.Background(), "S-1-001", 15*time.Minute)
	require.NoError(t, err)

	s, err := NewSweeper(context.Background(), f, time.Hour)
	require.NoError(t, err)
	s.Start()
	defer func() { _ = s.Shutdown() }()

	now.Store(start.Add(16 * time.Minute).UnixNano())
	require.NoError(t, s.RunNow())

	assert.Eventually(t, func() bool {
		return f.Spots(context.Background())[0].ReservedUntil.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
}
