package parking

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Inventory owns the fixed set of spots. Every method is atomic with respect
// to the others.
type Inventory struct {
	mu    sync.RWMutex
	spots []*Spot
	index map[string]*Spot
	now   Clock
}

// InventoryCounts is a point-in-time occupancy summary.
type InventoryCounts struct {
	Total       int
	Occupied    int
	Reserved    int
	FreeBySize  map[SpotSize]int
	TotalBySize map[SpotSize]int
}

// NewInventory generates floors × perSize spots. IDs look like S-2-007 and
// are ordered by floor, then ID.
func NewInventory(floors int, perSize map[SpotSize]int, now Clock) (*Inventory, error) {
	if floors <= 0 {
		return nil, fmt.Errorf("%w: floor count must be positive, got %d", ErrInvalidConfig, floors)
	}
	if len(perSize) == 0 {
		return nil, fmt.Errorf("%w: no spot sizes configured", ErrInvalidConfig)
	}

	width := 3
	for size, count := range perSize {
		if !size.valid() {
			return nil, fmt.Errorf("%w: unknown spot size %d", ErrInvalidConfig, int(size))
		}
		if count <= 0 {
			return nil, fmt.Errorf("%w: %s spots per floor must be positive, got %d", ErrInvalidConfig, size, count)
		}
		if w := len(strconv.Itoa(count)); w > width {
			width = w
		}
	}

	if now == nil {
		now = time.Now
	}

	inv := &Inventory{
		index: make(map[string]*Spot),
		now:   now,
	}

	for floor := 1; floor <= floors; floor++ {
		for _, size := range SpotSizes {
			for n := 1; n <= perSize[size]; n++ {
				id := fmt.Sprintf("%s-%d-%0*d", size.code(), floor, width, n)
				spot := NewSpot(id, size, floor)
				inv.spots = append(inv.spots, spot)
				inv.index[id] = spot
			}
		}
	}

	sort.Slice(inv.spots, func(i, j int) bool {
		return spotLess(inv.spots[i], inv.spots[j])
	})

	return inv, nil
}

func spotLess(a, b *Spot) bool {
	if a.Floor != b.Floor {
		return a.Floor < b.Floor
	}
	return a.ID < b.ID
}

// FindEligibleFreeSpot returns the free spot on the lowest floor with the
// smallest ID that accommodates need.
func (inv *Inventory) FindEligibleFreeSpot(need SpotSize) (Spot, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	now := inv.now()
	for _, spot := range inv.spots {
		if spot.IsFree(now) && Accommodates(spot.Size, need) {
			return *spot, true
		}
	}
	return Spot{}, false
}

// Occupy marks spotID as held by ticket. It fails if the spot is unknown,
// occupied or holds an unexpired reservation.
func (inv *Inventory) Occupy(spotID, ticket string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	spot, ok := inv.index[spotID]
	if !ok {
		return false
	}

	now := inv.now()
	if !spot.IsFree(now) {
		return false
	}

	spot.Park(ticket, now)
	return true
}

func (inv *Inventory) Release(spotID string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	spot, ok := inv.index[spotID]
	if !ok || !spot.IsOccupied() {
		return false
	}

	spot.Leave()
	return true
}

// Reserve blocks a free spot until now+d.
func (inv *Inventory) Reserve(spotID string, d time.Duration) bool {
	if d <= 0 {
		return false
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	spot, ok := inv.index[spotID]
	if !ok {
		return false
	}

	now := inv.now()
	if !spot.IsFree(now) {
		return false
	}

	spot.ReservedUntil = now.Add(d)
	return true
}

// ExpireReservations clears every reservation that has expired at now and
// returns the IDs it cleared.
func (inv *Inventory) ExpireReservations(now time.Time) []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	var expired []string
	for _, spot := range inv.spots {
		if !spot.ReservedUntil.IsZero() && !spot.IsReserved(now) {
			spot.ReservedUntil = time.Time{}
			expired = append(expired, spot.ID)
		}
	}
	return expired
}

func (inv *Inventory) Spot(id string) (Spot, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	spot, ok := inv.index[id]
	if !ok {
		return Spot{}, false
	}
	return *spot, true
}

// Snapshot returns a copy of every spot in allocation order.
func (inv *Inventory) Snapshot() []Spot {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]Spot, len(inv.spots))
	for i, spot := range inv.spots {
		out[i] = *spot
	}
	return out
}

func (inv *Inventory) Capacity() int {
	return len(inv.spots)
}

func (inv *Inventory) Counts() InventoryCounts {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	now := inv.now()
	counts := InventoryCounts{
		Total:       len(inv.spots),
		FreeBySize:  make(map[SpotSize]int, len(SpotSizes)),
		TotalBySize: make(map[SpotSize]int, len(SpotSizes)),
	}
	for _, size := range SpotSizes {
		counts.FreeBySize[size] = 0
	}

	for _, spot := range inv.spots {
		counts.TotalBySize[spot.Size]++
		switch {
		case spot.IsOccupied():
			counts.Occupied++
		case spot.IsReserved(now):
			counts.Reserved++
		default:
			counts.FreeBySize[spot.Size]++
		}
	}
	return counts
}
