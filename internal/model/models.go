package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const MaxSelectedParks = 4

var ErrNoParks = errors.New("no such park")

type Ride struct {
	Name     string
	ID       int
	WaitTime int
	OpenFlag bool
}

func NewRide(name string, id int, waitTime int, openFlag bool) Ride {
	return Ride{
		Name:     name,
		ID:       id,
		WaitTime: waitTime,
		OpenFlag: openFlag,
	}
}

// IsOpen reports whether the ride is flagged open and has a wait posted.
// A walk-on ride (open, 0 minutes) is not open by this definition.
func (r *Ride) IsOpen() bool {
	return r.OpenFlag && r.WaitTime > 0
}

func (r *Ride) Update(waitTime int, openFlag bool) {
	r.WaitTime = waitTime
	r.OpenFlag = openFlag
}

type Park struct {
	Name      string
	ID        int
	Latitude  float64
	Longitude float64
	Rides     []Ride
}

func NewPark(name string, id int, rides []Ride) *Park {
	return &Park{
		Name:  name,
		ID:    id,
		Rides: rides,
	}
}

// IsOpen is true when any ride is open.
func (p *Park) IsOpen() bool {
	for i := range p.Rides {
		if p.Rides[i].IsOpen() {
			return true
		}
	}
	return false
}

func (p *Park) IsValid() bool {
	return p != nil && p.ID > 0
}

func (p *Park) SetRides(rides []Ride) {
	p.Rides = rides
}

func (p *Park) Ride(name string) (Ride, bool) {
	for _, r := range p.Rides {
		if r.Name == name {
			return r, true
		}
	}
	return Ride{}, false
}

// ParkList is every known park plus the current selection.
type ParkList struct {
	Parks      []*Park
	Selected   []*Park
	SkipMeet   bool
	SkipClosed bool
}

func NewParkList(parks []*Park) *ParkList {
	return &ParkList{Parks: parks}
}

func (l *ParkList) ByID(id int) (*Park, error) {
	for _, p := range l.Parks {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("park %d: %w", id, ErrNoParks)
}

// Select replaces the selection, keeping at most MaxSelectedParks known ids.
// Unknown ids are skipped and reported in the returned error.
func (l *ParkList) Select(ids ...int) error {
	l.Selected = nil
	var errs []error
	for _, id := range ids {
		if len(l.Selected) >= MaxSelectedParks {
			break
		}
		p, err := l.ByID(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		l.Selected = append(l.Selected, p)
	}
	return errors.Join(errs...)
}

func (l *ParkList) SelectedParks() []*Park {
	return l.Selected
}

func (l *ParkList) SelectedIDs() []int {
	ids := make([]int, 0, len(l.Selected))
	for _, p := range l.Selected {
		ids = append(ids, p.ID)
	}
	return ids
}

// Current is the first selected park, or nil.
func (l *ParkList) Current() *Park {
	if len(l.Selected) == 0 {
		return nil
	}
	return l.Selected[0]
}

type Vacation struct {
	Name  string
	Year  int
	Month int
	Day   int
}

func (v Vacation) IsSet() bool {
	return len(v.Name) > 0 && v.Year > 1999 && v.Month > 0 && v.Day > 0
}

// DaysUntil counts whole days from now to the start of the vacation day,
// plus one, so the day itself is 0 and the day before is 1.
func (v Vacation) DaysUntil(now time.Time) int {
	future := time.Date(v.Year, time.Month(v.Month), v.Day, 0, 0, 0, 0, now.Location())
	days := math.Floor(future.Sub(now).Hours() / 24)
	return int(days) + 1
}
