package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coreman2200/themeparkwaits/internal/display"
	"github.com/coreman2200/themeparkwaits/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Action Action
	Text   string
}

// recorder is a Display that logs calls. block makes every call wait for
// cancellation; err is returned from every call.
type recorder struct {
	mu      sync.Mutex
	calls   []call
	block   bool
	started chan struct{}
	err     error
}

func (r *recorder) record(ctx context.Context, a Action, text string) error {
	r.mu.Lock()
	r.calls = append(r.calls, call{a, text})
	block, started, err := r.block, r.started, r.err
	r.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (r *recorder) ShowSplash(ctx context.Context, d time.Duration, reveal bool) error {
	return r.record(ctx, Splash, d.String())
}
func (r *recorder) ShowScrollMessage(ctx context.Context, text string) error {
	return r.record(ctx, ScrollMessage, text)
}
func (r *recorder) ShowRideName(ctx context.Context, name string) error {
	return r.record(ctx, RideName, name)
}
func (r *recorder) ShowRideWaitTime(ctx context.Context, text string) error {
	return r.record(ctx, RideWaitTime, text)
}
func (r *recorder) ShowRideClosed(ctx context.Context, marker string) error {
	return r.record(ctx, RideClosed, marker)
}
func (r *recorder) SetColors(display.Settings) {}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func newQueue(d display.Display) *Queue {
	q := New(d, zerolog.Nop())
	q.Delay = 0
	return q
}

func ops(q *Queue) []call {
	var out []call
	for _, o := range q.Operations() {
		out = append(out, call{o.Action, o.Text})
	}
	return out
}

func rideNames(q *Queue) []string {
	var out []string
	for _, o := range q.Operations() {
		if o.Action == RideName {
			out = append(out, o.Text)
		}
	}
	return out
}

func testRides() []model.Ride {
	return []model.Ride{
		model.NewRide("Space Mountain", 1, 60, true),
		model.NewRide("Big Thunder Mountain", 2, 30, true),
		model.NewRide("Pirates of the Caribbean", 3, 15, true),
		model.NewRide("Haunted Mansion", 4, 45, true),
		model.NewRide("Matterhorn", 5, 0, false),
		model.NewRide("Meet Mickey", 6, 20, true),
	}
}

func TestEndToEndSingleOpenPark(t *testing.T) {
	park := model.NewPark("Magic Kingdom", 6, []model.Ride{
		model.NewRide("Haunted Mansion", 1, 15, true),
		model.NewRide("Riverboat", 2, 0, false),
	})
	q := newQueue(&recorder{})
	q.AddRides([]*model.Park{park}, RideOptions{Sort: Alphabetical})

	assert.Equal(t, []call{
		{RideWaitTime, "15"},
		{RideName, "Haunted Mansion"},
		{RideClosed, "Closed"},
		{RideName, "Riverboat"},
	}, ops(q))
}

func TestAddRidesNoParks(t *testing.T) {
	q := New(&recorder{}, zerolog.Nop())
	q.AddRides(nil, RideOptions{})
	got := q.Operations()
	require.Len(t, got, 1)
	assert.Equal(t, Operation{Action: ScrollMessage, Text: "No parks selected", Delay: DefaultDelay}, got[0])
}

func TestAddRidesClosedPark(t *testing.T) {
	closed := model.NewPark("Epcot", 5, []model.Ride{model.NewRide("Soarin", 1, 0, false)})
	open := model.NewPark("Magic Kingdom", 6, []model.Ride{model.NewRide("Haunted Mansion", 1, 15, true)})

	for _, group := range []bool{false, true} {
		t.Run(fmt.Sprint("group=", group), func(t *testing.T) {
			q := newQueue(&recorder{})
			q.AddRides([]*model.Park{closed, open}, RideOptions{GroupByPark: group})
			got := ops(q)
			require.NotEmpty(t, got)
			assert.Equal(t, call{ScrollMessage, "Epcot is closed"}, got[0])
			assert.Equal(t, []string{"Haunted Mansion"}, rideNames(q))
		})
	}
}

func TestAddRidesGroupByPark(t *testing.T) {
	rides := testRides()
	p1 := model.NewPark("Park 1", 1, rides[:3])
	p2 := model.NewPark("Park 2", 2, rides[3:])

	q := newQueue(&recorder{})
	q.AddRides([]*model.Park{p1, p2}, RideOptions{Sort: Alphabetical, GroupByPark: true})

	assert.Equal(t, []call{
		{ScrollMessage, "Park 1 wait times..."},
		{RideWaitTime, "30"}, {RideName, "Big Thunder Mountain"},
		{RideWaitTime, "15"}, {RideName, "Pirates of the Caribbean"},
		{RideWaitTime, "60"}, {RideName, "Space Mountain"},
		{ScrollMessage, "Park 2 wait times..."},
		{RideWaitTime, "45"}, {RideName, "Haunted Mansion"},
		{RideClosed, "Closed"}, {RideName, "Matterhorn"},
		{RideWaitTime, "20"}, {RideName, "Meet Mickey"},
	}, ops(q))
}

func TestAddRidesCombinedSorting(t *testing.T) {
	rides := testRides()
	p1 := model.NewPark("Park 1", 1, []model.Ride{rides[0], rides[2]})
	p2 := model.NewPark("Park 2", 2, []model.Ride{rides[1], rides[3]})

	q := newQueue(&recorder{})
	q.AddRides([]*model.Park{p1, p2}, RideOptions{Sort: MaxWait})

	assert.Equal(t, []string{"Space Mountain", "Haunted Mansion", "Big Thunder Mountain", "Pirates of the Caribbean"}, rideNames(q))
	for _, o := range q.Operations() {
		assert.NotEqual(t, ScrollMessage, o.Action, "no headers when merged")
	}
}

func TestAddRidesFilters(t *testing.T) {
	park := model.NewPark("Test Park", 1, testRides())
	q := newQueue(&recorder{})
	q.AddRides([]*model.Park{park}, RideOptions{SkipMeet: true, SkipClosed: true, Sort: Alphabetical})
	assert.Equal(t, []string{"Big Thunder Mountain", "Haunted Mansion", "Pirates of the Caribbean", "Space Mountain"}, rideNames(q))

	// skip_closed uses IsOpen, so an open walk-on ride goes too.
	park = model.NewPark("Walk On", 2, []model.Ride{
		model.NewRide("Carousel", 1, 0, true),
		model.NewRide("Coaster", 2, 10, true),
	})
	q = newQueue(&recorder{})
	q.AddRides([]*model.Park{park}, RideOptions{SkipClosed: true})
	assert.Equal(t, []string{"Coaster"}, rideNames(q))
}

func TestAddRidesDelays(t *testing.T) {
	park := model.NewPark("Magic Kingdom", 6, []model.Ride{model.NewRide("Haunted Mansion", 1, 15, true)})
	q := New(&recorder{}, zerolog.Nop())
	q.AddRides([]*model.Park{park}, RideOptions{GroupByPark: true})
	assert.Equal(t, []Operation{
		{Action: ScrollMessage, Text: "Magic Kingdom wait times...", Delay: DefaultDelay},
		{Action: RideWaitTime, Text: "15"},
		{Action: RideName, Text: "Haunted Mansion", Delay: DefaultDelay},
	}, q.Operations())
}

func TestAddVacationCountdown(t *testing.T) {
	now := time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		vac  model.Vacation
		want string
	}{
		{"days away", model.Vacation{Name: "Disney", Year: 2026, Month: 10, Day: 20}, "Vacation to Disney in: 3 days"},
		{"tomorrow", model.Vacation{Name: "Disney", Year: 2026, Month: 10, Day: 18}, "Your vacation to Disney is tomorrow!!!"},
		{"today", model.Vacation{Name: "Disney", Year: 2026, Month: 10, Day: 17}, "Your vacation to Disney is TODAY!!!!!!!!!!!!!"},
		{"past", model.Vacation{Name: "Disney", Year: 2026, Month: 10, Day: 1}, ""},
		{"unset", model.Vacation{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(&recorder{}, zerolog.Nop())
			q.Now = func() time.Time { return now }
			q.AddVacationCountdown(tt.vac)
			if tt.want == "" {
				assert.Zero(t, q.Len())
				return
			}
			assert.Equal(t, []Operation{{Action: ScrollMessage, Text: tt.want}}, q.Operations())
		})
	}
}

func TestAddSplashAndAttribution(t *testing.T) {
	q := New(&recorder{}, zerolog.Nop())
	q.AddSplash(4 * time.Second)
	q.AddRequiredAttribution("Epcot")
	assert.Equal(t, []Operation{
		{Action: Splash, Duration: 4 * time.Second},
		{Action: ScrollMessage, Text: "Wait times for Epcot provided by queue-times.com", Delay: DefaultDelay},
	}, q.Operations())
}

func TestShowCycles(t *testing.T) {
	rec := &recorder{}
	q := newQueue(rec)
	ctx := context.Background()

	require.NoError(t, q.Show(ctx), "empty queue is a no-op")
	assert.Empty(t, rec.Calls())

	q.AddSplash(time.Millisecond)
	q.AddScrollMessage("hello", 0)
	q.AddRides([]*model.Park{model.NewPark("P", 1, []model.Ride{model.NewRide("R", 1, 5, true)})}, RideOptions{})
	n := q.Len()
	require.Equal(t, 4, n)

	for i := 0; i < n-1; i++ {
		require.NoError(t, q.Show(ctx))
	}
	assert.False(t, q.HasCompletedCycle())
	assert.Equal(t, n-1, q.Cursor())

	require.NoError(t, q.Show(ctx))
	assert.True(t, q.HasCompletedCycle())
	assert.Equal(t, 0, q.Cursor())

	require.NoError(t, q.Show(ctx))
	assert.True(t, q.HasCompletedCycle(), "stays set after wrapping")
	assert.Equal(t, []call{
		{Splash, "1ms"}, {ScrollMessage, "hello"}, {RideWaitTime, "5"}, {RideName, "R"}, {Splash, "1ms"},
	}, rec.Calls())

	q.Init()
	assert.Zero(t, q.Len())
	assert.Zero(t, q.Cursor())
	assert.False(t, q.HasCompletedCycle())
}

func TestShowReturnsStopUnchanged(t *testing.T) {
	rec := &recorder{err: fmt.Errorf("%w: unplugged", display.ErrStopped)}
	q := newQueue(rec)
	q.AddScrollMessage("hello", 0)

	err := q.Show(context.Background())
	assert.ErrorIs(t, err, display.ErrStopped)
	assert.Equal(t, 0, q.Cursor(), "cursor does not move on failure")
}

func TestShowHonoursParentCancel(t *testing.T) {
	q := newQueue(&recorder{block: true})
	q.AddScrollMessage("hello", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Show(ctx), context.Canceled)
}

func TestInitCancelsInFlightShow(t *testing.T) {
	rec := &recorder{block: true, started: make(chan struct{}, 1)}
	q := newQueue(rec)
	q.AddScrollMessage("first", 0)
	q.AddScrollMessage("second", 0)

	done := make(chan error, 1)
	go func() { done <- q.Show(context.Background()) }()

	<-rec.started
	q.Init()
	q.Init()
	q.AddScrollMessage("rebuilt", 0)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Show was not cancelled")
	}
	assert.Equal(t, 0, q.Cursor())
	assert.False(t, q.HasCompletedCycle())
	assert.Equal(t, []Operation{{Action: ScrollMessage, Text: "rebuilt"}}, q.Operations())
}
