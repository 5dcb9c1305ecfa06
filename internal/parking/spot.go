package parking

import (
	"fmt"
	"strings"
	"time"
)

// SpotSize is ordered: a larger size accommodates every smaller one.
type SpotSize int

const (
	SizeCompact SpotSize = iota + 1
	SizeStandard
	SizeOversized
)

// SpotSizes lists every size, smallest first.
var SpotSizes = []SpotSize{SizeCompact, SizeStandard, SizeOversized}

func (s SpotSize) String() string {
	switch s {
	case SizeCompact:
		return "compact"
	case SizeStandard:
		return "standard"
	case SizeOversized:
		return "oversized"
	}
	return fmt.Sprintf("SpotSize(%d)", int(s))
}

// code prefixes spot IDs; the letters sort in size order.
func (s SpotSize) code() string {
	switch s {
	case SizeCompact:
		return "C"
	case SizeStandard:
		return "S"
	case SizeOversized:
		return "X"
	}
	return "?"
}

func (s SpotSize) valid() bool {
	return s >= SizeCompact && s <= SizeOversized
}

func ParseSpotSize(v string) (SpotSize, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "compact":
		return SizeCompact, nil
	case "standard":
		return SizeStandard, nil
	case "oversized":
		return SizeOversized, nil
	}
	return 0, fmt.Errorf("unknown spot size %q", v)
}

func (s SpotSize) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SpotSize) UnmarshalText(b []byte) error {
	v, err := ParseSpotSize(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Accommodates reports whether a spot of size spot can take a vehicle needing size need.
func Accommodates(spot, need SpotSize) bool {
	return spot.valid() && need.valid() && spot >= need
}

// Spot is a physical parking space. A spot is free, occupied by one session,
// or reserved until ReservedUntil; never more than one of these. Occupant
// holds the number of the ticket parked there.
type Spot struct {
	ID            string
	Size          SpotSize
	Floor         int
	Zone          string
	Occupant      string
	OccupiedSince time.Time
	ReservedUntil time.Time
}

func NewSpot(id string, size SpotSize, floor int) *Spot {
	return &Spot{
		ID:    id,
		Size:  size,
		Floor: floor,
		Zone:  fmt.Sprintf("Level %d", floor),
	}
}

func (s *Spot) IsOccupied() bool {
	return s.Occupant != ""
}

// IsReserved reports an unexpired reservation at now.
func (s *Spot) IsReserved(now time.Time) bool {
	return !s.ReservedUntil.IsZero() && now.Before(s.ReservedUntil)
}

func (s *Spot) IsFree(now time.Time) bool {
	return !s.IsOccupied() && !s.IsReserved(now)
}

func (s *Spot) Park(ticket string, at time.Time) {
	s.Occupant = ticket
	s.OccupiedSince = at
	s.ReservedUntil = time.Time{}
}

func (s *Spot) Leave() string {
	ticket := s.Occupant
	s.Occupant = ""
	s.OccupiedSince = time.Time{}
	return ticket
}

func (s *Spot) Status(now time.Time) string {
	switch {
	case s.IsOccupied():
		return "occupied"
	case s.IsReserved(now):
		return "reserved"
	}
	return "available"
}
