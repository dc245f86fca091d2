package queue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/coreman2200/themeparkwaits/internal/model"
)

type SortMode string

const (
	Alphabetical SortMode = "alphabetical"
	MaxWait      SortMode = "max_wait"
	MinWait      SortMode = "min_wait"
)

// ParseSortMode maps a settings value to a mode; anything unknown sorts
// alphabetically.
func ParseSortMode(s string) SortMode {
	switch m := SortMode(s); m {
	case Alphabetical, MaxWait, MinWait:
		return m
	}
	return Alphabetical
}

// RideWithPark keeps a ride's park alongside it once rides from several
// parks are merged.
type RideWithPark struct {
	Ride model.Ride
	Park *model.Park
}

// EffectiveWait is the wait used for ordering. It follows the raw open flag,
// so an open walk-on ride and a closed ride both count as 0.
func EffectiveWait(r model.Ride) int {
	if r.OpenFlag {
		return r.WaitTime
	}
	return 0
}

// SortRides returns a stably sorted copy of rides.
func SortRides(rides []RideWithPark, mode SortMode) []RideWithPark {
	out := slices.Clone(rides)
	var less func(a, b RideWithPark) int
	switch ParseSortMode(string(mode)) {
	case MaxWait:
		less = func(a, b RideWithPark) int { return cmp.Compare(EffectiveWait(b.Ride), EffectiveWait(a.Ride)) }
	case MinWait:
		less = func(a, b RideWithPark) int { return cmp.Compare(EffectiveWait(a.Ride), EffectiveWait(b.Ride)) }
	default:
		less = func(a, b RideWithPark) int {
			return strings.Compare(strings.ToLower(a.Ride.Name), strings.ToLower(b.Ride.Name))
		}
	}
	slices.SortStableFunc(out, less)
	return out
}

// FilterRides drops meet-and-greets and rides that are not open, as asked.
func FilterRides(rides []RideWithPark, skipMeet, skipClosed bool) []RideWithPark {
	out := make([]RideWithPark, 0, len(rides))
	for _, r := range rides {
		if skipMeet && strings.Contains(r.Ride.Name, "Meet") {
			continue
		}
		if skipClosed && !r.Ride.IsOpen() {
			continue
		}
		out = append(out, r)
	}
	return out
}

func withPark(p *model.Park) []RideWithPark {
	out := make([]RideWithPark, len(p.Rides))
	for i, r := range p.Rides {
		out[i] = RideWithPark{Ride: r, Park: p}
	}
	return out
}
