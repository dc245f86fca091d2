// Package queue builds the cycle of operations shown on the matrix and plays
// it one operation at a time.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/coreman2200/themeparkwaits/internal/display"
	"github.com/coreman2200/themeparkwaits/internal/model"
	"github.com/rs/zerolog"
)

const (
	DefaultDelay    = 4 * time.Second
	RequiredMessage = "queue-times.com"
	ClosedMarker    = "Closed"
	NoParksMessage  = "No parks selected"
)

type Action int

const (
	ScrollMessage Action = iota
	Splash
	RideWaitTime
	RideClosed
	RideName
)

func (a Action) String() string {
	switch a {
	case ScrollMessage:
		return "scroll_message"
	case Splash:
		return "splash"
	case RideWaitTime:
		return "ride_wait_time"
	case RideClosed:
		return "ride_closed"
	case RideName:
		return "ride_name"
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}

// Operation is one step of the cycle. Duration is only used by Splash.
type Operation struct {
	Action   Action
	Text     string
	Duration time.Duration
	Delay    time.Duration
}

func (o Operation) String() string {
	if o.Action == Splash {
		return fmt.Sprintf("%s(%s) +%s", o.Action, o.Duration, o.Delay)
	}
	return fmt.Sprintf("%s(%q) +%s", o.Action, o.Text, o.Delay)
}

// RideOptions is the content policy for AddRides.
type RideOptions struct {
	SkipMeet    bool
	SkipClosed  bool
	Sort        SortMode
	GroupByPark bool
}

type Queue struct {
	// Delay follows headers, ride names and the attribution.
	Delay time.Duration
	Now   func() time.Time

	display display.Display
	logger  zerolog.Logger

	mu                sync.Mutex
	ops               []Operation
	cursor            int
	hasCompletedCycle bool
	gen               uint64
	cancel            context.CancelFunc
}

func New(d display.Display, logger zerolog.Logger) *Queue {
	return &Queue{
		Delay:   DefaultDelay,
		Now:     time.Now,
		display: d,
		logger:  logger.With().Str("component", "queue").Logger(),
	}
}

// Init empties the queue and cancels whatever Show is running. Safe to call
// repeatedly and from any goroutine.
func (q *Queue) Init() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = nil
	q.cursor = 0
	q.hasCompletedCycle = false
	q.gen++
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
}

func (q *Queue) add(ops ...Operation) {
	q.mu.Lock()
	q.ops = append(q.ops, ops...)
	q.mu.Unlock()
}

func (q *Queue) AddSplash(d time.Duration) {
	q.add(Operation{Action: Splash, Duration: d})
}

func (q *Queue) AddScrollMessage(text string, delay time.Duration) {
	q.add(Operation{Action: ScrollMessage, Text: text, Delay: delay})
}

// AddVacationCountdown adds nothing for an unset or past vacation.
func (q *Queue) AddVacationCountdown(v model.Vacation) {
	if !v.IsSet() {
		return
	}
	var msg string
	switch days := v.DaysUntil(q.Now()); {
	case days > 1:
		msg = fmt.Sprintf("Vacation to %s in: %d days", v.Name, days)
	case days == 1:
		msg = fmt.Sprintf("Your vacation to %s is tomorrow!!!", v.Name)
	case days == 0:
		msg = fmt.Sprintf("Your vacation to %s is TODAY!!!!!!!!!!!!!", v.Name)
	default:
		return
	}
	q.AddScrollMessage(msg, 0)
}

func (q *Queue) AddRequiredAttribution(parkName string) {
	q.AddScrollMessage(fmt.Sprintf("Wait times for %s provided by %s", parkName, RequiredMessage), q.Delay)
}

// AddRides adds the ride cycle for the selected parks.
//
// Grouped, each park gets a "<park> wait times..." header followed by its own
// filtered and sorted rides. Ungrouped, the rides of every open park are
// merged before filtering and sorting and no headers are added. Either way a
// closed park is announced as "<park> is closed", in selection order, ahead
// of any merged rides.
func (q *Queue) AddRides(parks []*model.Park, o RideOptions) {
	if len(parks) == 0 {
		q.AddScrollMessage(NoParksMessage, q.Delay)
		return
	}

	var merged []RideWithPark
	for _, p := range parks {
		if !p.IsOpen() {
			q.AddScrollMessage(p.Name+" is closed", q.Delay)
			continue
		}
		if !o.GroupByPark {
			merged = append(merged, withPark(p)...)
			continue
		}
		q.AddScrollMessage(p.Name+" wait times...", q.Delay)
		q.addRideOps(SortRides(FilterRides(withPark(p), o.SkipMeet, o.SkipClosed), o.Sort))
	}
	if !o.GroupByPark {
		q.addRideOps(SortRides(FilterRides(merged, o.SkipMeet, o.SkipClosed), o.Sort))
	}
}

// addRideOps adds exactly two operations per ride.
func (q *Queue) addRideOps(rides []RideWithPark) {
	ops := make([]Operation, 0, 2*len(rides))
	for _, r := range rides {
		if r.Ride.OpenFlag {
			ops = append(ops, Operation{Action: RideWaitTime, Text: strconv.Itoa(r.Ride.WaitTime)})
		} else {
			ops = append(ops, Operation{Action: RideClosed, Text: ClosedMarker})
		}
		ops = append(ops, Operation{Action: RideName, Text: r.Ride.Name, Delay: q.Delay})
	}
	q.add(ops...)
}

// Show runs the operation under the cursor, waits out its delay and moves
// on. An empty queue is a no-op. If Init runs meanwhile the cancelled
// operation is dropped and Show returns nil; display.ErrStopped and errors
// from ctx are returned as is.
func (q *Queue) Show(ctx context.Context) error {
	q.mu.Lock()
	if len(q.ops) == 0 {
		q.mu.Unlock()
		return nil
	}
	op, cursor, gen := q.ops[q.cursor], q.cursor, q.gen
	showCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.mu.Unlock()
	defer cancel()

	q.logger.Debug().Str("action", op.Action.String()).Str("text", op.Text).Int("cursor", cursor).Msg("Show")
	err := q.run(showCtx, op)
	if err == nil {
		err = display.Sleep(showCtx, op.Delay)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		if errors.Is(err, display.ErrStopped) {
			return err
		}
		return nil
	}
	q.cancel = nil
	if err != nil {
		return err
	}
	q.cursor++
	if q.cursor >= len(q.ops) {
		q.cursor = 0
		q.hasCompletedCycle = true
	}
	return nil
}

func (q *Queue) run(ctx context.Context, op Operation) error {
	switch op.Action {
	case ScrollMessage:
		return q.display.ShowScrollMessage(ctx, op.Text)
	case Splash:
		return q.display.ShowSplash(ctx, op.Duration, false)
	case RideWaitTime:
		return q.display.ShowRideWaitTime(ctx, op.Text)
	case RideClosed:
		return q.display.ShowRideClosed(ctx, op.Text)
	case RideName:
		return q.display.ShowRideName(ctx, op.Text)
	}
	return fmt.Errorf("unknown action %s", op.Action)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

func (q *Queue) Cursor() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cursor
}

// HasCompletedCycle is true once every operation has been shown since the
// last Init.
func (q *Queue) HasCompletedCycle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasCompletedCycle
}

func (q *Queue) Operations() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Operation(nil), q.ops...)
}
