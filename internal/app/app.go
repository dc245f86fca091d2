// Package app runs the wait-times display: it fetches park data, keeps the
// message queue built from the current settings and plays it.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/coreman2200/themeparkwaits/internal/config"
	diag "github.com/coreman2200/themeparkwaits/internal/diagnostics"
	"github.com/coreman2200/themeparkwaits/internal/display"
	"github.com/coreman2200/themeparkwaits/internal/model"
	"github.com/coreman2200/themeparkwaits/internal/queue"
	"github.com/coreman2200/themeparkwaits/internal/queuetimes"
	"github.com/coreman2200/themeparkwaits/internal/tests"
)

const (
	RefreshInterval = 300 * time.Second
	// StaleInterval forces a refresh even if the cycle has not finished.
	StaleInterval  = 600 * time.Second
	SplashDuration = 4 * time.Second
	LoopPause      = 100 * time.Millisecond
	ErrorBackoff   = time.Second
)

// Display is the matrix as the app uses it: the queue's contract plus the
// status screens.
type Display interface {
	display.Display
	ShowUpdate(ctx context.Context, on bool) error
	ShowCentered(ctx context.Context, line1, line2 string, hold time.Duration) error
	RunPattern(ctx context.Context, r *tests.Runner) error
}

type App struct {
	Settings     *config.Settings
	// SettingsPath, when set, is where ApplySettings persists changes.
	SettingsPath string
	Source       queuetimes.Source
	Display      Display
	Queue        *queue.Queue
	Diag         diag.Sink
	Now          func() time.Time

	logger zerolog.Logger
	fetch  singleflight.Group

	// rebuildMu keeps two rebuilds from interleaving their operations.
	rebuildMu sync.Mutex

	mu          sync.Mutex
	parks       *model.ParkList
	lastFetch   time.Time
	forced      bool
	pendingTest tests.Kind
}

func New(s *config.Settings, src queuetimes.Source, d Display, logger zerolog.Logger) *App {
	return &App{
		Settings: s,
		Source:   src,
		Display:  d,
		Queue:    queue.New(d, logger),
		Diag:     diag.Discard{},
		Now:      time.Now,
		logger:   logger.With().Str("component", "app").Logger(),
		parks:    model.NewParkList(nil),
	}
}

// Initialize applies the colors and plays the opening reveal.
func (a *App) Initialize(ctx context.Context) error {
	a.logger.Info().Msg("Initializing Theme Park Waits")
	a.Display.SetColors(a.Settings)
	return a.Display.ShowSplash(ctx, SplashDuration, true)
}

// Fetch loads the park list and the rides of every selected park.
// Concurrent callers share one fetch.
func (a *App) Fetch(ctx context.Context) (*model.ParkList, error) {
	v, err, shared := a.fetch.Do("parks", func() (any, error) {
		return a.fetchParks(ctx)
	})
	if shared {
		a.logger.Debug().Msg("Joined in-flight fetch")
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.ParkList), nil
}

func (a *App) fetchParks(ctx context.Context) (*model.ParkList, error) {
	parks, err := a.Source.Parks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch parks: %w", err)
	}
	list := model.NewParkList(parks)
	list.SkipMeet = a.Settings.SkipMeet()
	list.SkipClosed = a.Settings.SkipClosed()
	if err := list.Select(a.Settings.SelectedParkIDs()...); err != nil {
		a.logger.Warn().Err(err).Msg("Selected park not found")
	}

	for _, p := range list.SelectedParks() {
		rides, err := a.Source.Rides(ctx, p.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// a park that failed keeps no rides and shows as closed
			a.logger.Error().Err(err).Int("park", p.ID).Str("name", p.Name).Msg("Fetching rides")
			a.Diag.Push(diag.FromError(diag.FetchFailed, "Fetching rides", err).With("park", p.ID))
			continue
		}
		p.SetRides(rides)
		a.logger.Debug().Str("park", p.Name).Int("rides", len(rides)).Msg("Updated park")
	}

	a.mu.Lock()
	a.parks = list
	a.lastFetch = a.Now()
	a.mu.Unlock()
	return list, nil
}

// Parks is the last fetched park list.
func (a *App) Parks() *model.ParkList {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parks
}

// Rebuild empties the queue and fills it from the current parks and
// settings: splash, vacation countdown, rides, attribution.
func (a *App) Rebuild() {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()

	parks := a.Parks()
	q := a.Queue
	q.Init()
	q.AddSplash(SplashDuration)
	q.AddVacationCountdown(a.Settings.Vacation())
	q.AddRides(parks.SelectedParks(), a.rideOptions())
	if cur := parks.Current(); cur.IsValid() {
		q.AddRequiredAttribution(cur.Name)
	}
	a.logger.Info().Int("operations", q.Len()).Int("parks", len(parks.SelectedParks())).Msg("Rebuilt queue")
	a.Diag.Push(diag.New(diag.Info, diag.QueueRebuilt, "Queue rebuilt").With("operations", q.Len()))
}

func (a *App) rideOptions() queue.RideOptions {
	return queue.RideOptions{
		SkipMeet:    a.Settings.SkipMeet(),
		SkipClosed:  a.Settings.SkipClosed(),
		Sort:        queue.ParseSortMode(a.Settings.SortMode()),
		GroupByPark: a.Settings.GroupByPark(),
	}
}

// refreshDue reports whether park data should be fetched again: never
// fetched, asked for, or stale. Ordinary refreshes wait for the cycle to
// finish.
func (a *App) refreshDue() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.forced || a.lastFetch.IsZero() {
		return true
	}
	age := a.Now().Sub(a.lastFetch)
	return age >= StaleInterval || (age >= RefreshInterval && a.Queue.HasCompletedCycle())
}

// Update announces the refresh, fetches and rebuilds. A failed fetch keeps
// the previous park data.
func (a *App) Update(ctx context.Context) error {
	a.mu.Lock()
	a.forced = false
	cur := a.parks.Current()
	a.mu.Unlock()

	a.logger.Info().Msg("Updating theme park data")
	msg := "Updating wait times from queue-times.com..."
	if cur.IsValid() {
		msg = fmt.Sprintf("Updating %s wait times from queue-times.com...", cur.Name)
	}
	if err := a.Display.ShowScrollMessage(ctx, msg); err != nil {
		return err
	}
	if err := a.Display.ShowUpdate(ctx, true); err != nil {
		return err
	}

	a.Diag.Push(diag.New(diag.Info, diag.FetchStarted, "Fetching wait times"))
	list, err := a.Fetch(ctx)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		a.logger.Error().Err(err).Msg("Updating theme park data")
		a.Diag.Push(diag.FromError(diag.FetchFailed, "Fetching wait times", err))
		a.mu.Lock()
		// try again on the next regular interval
		a.lastFetch = a.Now()
		a.mu.Unlock()
	default:
		a.Diag.Push(diag.New(diag.Info, diag.FetchDone, "Wait times updated").With("parks", len(list.SelectedParks())))
	}

	if err := a.Display.ShowUpdate(ctx, false); err != nil {
		return err
	}
	a.Rebuild()
	return nil
}

// Run plays the queue until ctx is done or the display stops, refreshing
// park data as it goes. Other display errors are logged and retried.
func (a *App) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := a.step(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, display.ErrStopped):
			a.logger.Error().Err(err).Msg("Display stopped")
			a.Diag.Push(diag.FromError(diag.DisplayFailed, "Display stopped", err))
			return err
		case err != nil:
			a.logger.Error().Err(err).Msg("Error in main loop")
			if err := display.Sleep(ctx, ErrorBackoff); err != nil {
				return nil
			}
			continue
		}
		if err := display.Sleep(ctx, LoopPause); err != nil {
			return nil
		}
	}
}

func (a *App) step(ctx context.Context) error {
	if a.refreshDue() {
		if err := a.Update(ctx); err != nil {
			return err
		}
	}
	if k := a.takeTest(); k != tests.None {
		a.Diag.Push(diag.New(diag.Info, diag.TestRunning, "Running test").With("name", string(k)))
		if err := a.Display.RunPattern(ctx, tests.NewRunner(tests.Plan{Kind: k})); err != nil {
			return err
		}
		a.Diag.Push(diag.New(diag.Info, diag.TestDone, "Test complete"))
	}
	return a.Queue.Show(ctx)
}

func (a *App) takeTest() tests.Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := a.pendingTest
	a.pendingTest = tests.None
	return k
}

// RequestRefresh fetches park data before the next operation. The
// operation on screen is cut short.
func (a *App) RequestRefresh() {
	a.mu.Lock()
	a.forced = true
	a.mu.Unlock()
	a.Queue.Init()
}

// RunTest plays pattern k after the current operation.
func (a *App) RunTest(k tests.Kind) error {
	if !slices.Contains(tests.Kinds, k) {
		return fmt.Errorf("unknown test pattern %q", k)
	}
	a.mu.Lock()
	a.pendingTest = k
	a.mu.Unlock()
	return nil
}

// ApplySettings checks and merges values into the settings, persists them
// when SettingsPath is set, then applies them.
func (a *App) ApplySettings(values map[string]any) error {
	merged := a.Settings.Snapshot()
	maps.Copy(merged, values)
	if err := validate(config.New(merged)); err != nil {
		return err
	}
	a.Settings.Update(values)
	if a.SettingsPath != "" {
		if err := config.Save(a.SettingsPath, a.Settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	a.apply()
	return nil
}

// Reload takes settings read back from disk in place of the current ones.
// Unchanged settings are ignored, so saving from ApplySettings does not
// rebuild twice. The hardware section is stored for the next start only.
func (a *App) Reload(s *config.Settings) {
	if a.Settings.Equal(s) {
		return
	}
	if err := validate(s); err != nil {
		a.logger.Warn().Err(err).Msg("Ignoring settings file")
		a.Diag.Push(diag.FromError(diag.ConfigInvalid, "Settings file rejected", err))
		return
	}
	if hw := a.Settings.HardwareSettings(); hw != s.Hardware {
		a.logger.Warn().Str("driver", s.Hardware.Driver).Int("width", s.Hardware.Width).
			Int("height", s.Hardware.Height).Msg("Hardware settings changed; they take effect on restart")
	}
	a.logger.Info().Msg("Settings changed")
	a.Settings.Replace(s.Snapshot(), s.Hardware)
	a.apply()
}

// apply recolors and rebuilds, or refreshes when the park selection changed.
func (a *App) apply() {
	a.Display.SetColors(a.Settings)
	a.Diag.Push(diag.New(diag.Info, diag.ConfigApplied, "Settings applied"))
	if !slices.Equal(a.Settings.SelectedParkIDs(), a.Parks().SelectedIDs()) {
		a.RequestRefresh()
		return
	}
	a.Rebuild()
}

func validate(s *config.Settings) error {
	var errs []error
	if _, err := config.ParseScrollSpeed(s.String("scroll_speed", "Medium")); err != nil {
		errs = append(errs, err)
	}
	if _, err := display.ReadPalette(s); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HandleParks answers with the settings, every known park and the current
// park.
func (a *App) HandleParks(w http.ResponseWriter, r *http.Request) {
	type park struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		RideCount int    `json:"ride_count,omitempty"`
	}
	list := a.Parks()
	resp := map[string]any{
		"success":  true,
		"settings": a.Settings.Snapshot(),
	}
	parks := make([]park, 0, len(list.Parks))
	for _, p := range list.Parks {
		parks = append(parks, park{ID: p.ID, Name: p.Name})
	}
	resp["parks"] = parks
	if cur := list.Current(); cur.IsValid() {
		resp["current_park"] = park{ID: cur.ID, Name: cur.Name, RideCount: len(cur.Rides)}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
