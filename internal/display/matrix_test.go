package display

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/coreman2200/themeparkwaits/internal/driver/fake"
	"github.com/coreman2200/themeparkwaits/internal/layout"
	"github.com/coreman2200/themeparkwaits/internal/render"
	"github.com/coreman2200/themeparkwaits/internal/reveal"
	"github.com/coreman2200/themeparkwaits/internal/tests"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSettings map[string]any

func (s mapSettings) Get(key string, def any) any {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

func (s mapSettings) ScrollSpeed() time.Duration { return 0 }

type brokenDriver struct{}

func (brokenDriver) Write([]byte) error { return errors.New("unplugged") }

func fastTiming() Timing {
	return Timing{RevealTick: time.Microsecond}
}

func newTestMatrix(t *testing.T, s Settings) (*Matrix, *fake.Driver) {
	t.Helper()
	drv := fake.New(zerolog.Nop())
	eng, err := render.NewEngine(render.Dimensions{W: 64, H: 32}, drv)
	require.NoError(t, err)
	m := NewMatrix(eng, s, zerolog.Nop())
	m.Timing = fastTiming()
	return m, drv
}

func litCount(rgb []byte) int {
	n := 0
	for i := 0; i+2 < len(rgb); i += 3 {
		if rgb[i]|rgb[i+1]|rgb[i+2] != 0 {
			n++
		}
	}
	return n
}

func TestScrollMessageRunsToCompletion(t *testing.T) {
	m, drv := newTestMatrix(t, mapSettings{})
	text := "Magic Kingdom wait times..."
	width := render.TextWidth(text)

	require.NoError(t, m.ShowScrollMessage(context.Background(), text))

	// initial frame, one per continuing step, final clear
	assert.Equal(t, 1+64+width+1, drv.Frames())
	assert.Equal(t, 0, litCount(drv.Last()))
	assert.True(t, m.scroll.Hidden)
	assert.Equal(t, 64, m.scroll.X)
}

func TestRideSequenceLabels(t *testing.T) {
	m, drv := newTestMatrix(t, mapSettings{})
	ctx := context.Background()

	require.NoError(t, m.ShowRideWaitTime(ctx, "15"))
	assert.False(t, m.wait.Hidden)
	assert.Equal(t, (64-2*render.TextWidth("15"))/2, m.wait.X)
	assert.Greater(t, litCount(drv.Last()), 0)

	require.NoError(t, m.ShowRideClosed(ctx, "Closed"))
	assert.True(t, m.wait.Hidden)
	assert.Equal(t, (64-render.TextWidth("Closed"))/2, m.closed.X)

	require.NoError(t, m.ShowRideName(ctx, "Haunted Mansion"))
	for _, l := range []*render.Label{m.name, m.wait, m.closed} {
		assert.True(t, l.Hidden)
		assert.Empty(t, l.Text)
	}
	assert.Equal(t, 0, litCount(drv.Last()))
}

// litRows draws l alone and returns the first and last rows it touches.
func litRows(l *render.Label) (first, last int) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	l.Draw(img)
	first, last = -1, -1
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{}) {
				if first < 0 {
					first = y
				}
				last = y
				break
			}
		}
	}
	return first, last
}

func TestRideNameClearsWaitTime(t *testing.T) {
	m, _ := newTestMatrix(t, mapSettings{"brightness_scale": "1"})
	m.name.Text, m.name.X, m.name.Hidden = "Soarin gypsy", 0, false
	m.wait.Text, m.wait.Hidden = "45", false
	m.wait.X = render.CenterX(m.wait.Width(), 64, m.wait.Scale)
	m.closed.Text, m.closed.Hidden = "Closed", false

	nameTop, nameBottom := litRows(m.name)
	waitTop, waitBottom := litRows(m.wait)
	closedTop, closedBottom := litRows(m.closed)
	require.GreaterOrEqual(t, nameTop, 0)
	require.GreaterOrEqual(t, waitTop, 0)
	require.GreaterOrEqual(t, closedTop, 0)

	assert.Less(t, nameBottom, waitTop, "name rows %d-%d, wait rows %d-%d", nameTop, nameBottom, waitTop, waitBottom)
	assert.Less(t, nameBottom, closedTop, "name rows %d-%d, closed rows %d-%d", nameTop, nameBottom, closedTop, closedBottom)
	assert.Less(t, waitBottom, 32)
}

// slowSettings scrolls one pixel per millisecond.
type slowSettings struct{ mapSettings }

func (slowSettings) ScrollSpeed() time.Duration { return time.Millisecond }

// litFrames keeps the first and last frames that had anything lit.
type litFrames struct {
	*fake.Driver
	first, last *[]byte
}

func (r litFrames) Write(rgb []byte) error {
	if litCount(rgb) > 0 {
		if len(*r.first) == 0 {
			*r.first = append([]byte(nil), rgb...)
		}
		*r.last = append((*r.last)[:0], rgb...)
	}
	return r.Driver.Write(rgb)
}

func TestSetColorsDuringScroll(t *testing.T) {
	m, drv := newTestMatrix(t, slowSettings{mapSettings{
		"brightness_scale": "1",
		"default_color":    "0xff0000",
	}})
	var first, last []byte
	m.eng.Drv = litFrames{drv, &first, &last}

	done := make(chan error, 1)
	go func() {
		done <- m.ShowScrollMessage(context.Background(), "Welcome to Magic Kingdom wait times")
	}()
	require.Eventually(t, func() bool { return drv.Frames() > 10 }, 5*time.Second, time.Millisecond)
	m.SetColors(slowSettings{mapSettings{
		"brightness_scale": "1",
		"default_color":    "0x00ff00",
	}})
	recolored := drv.Frames()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("scroll did not finish")
	}
	require.Greater(t, drv.Frames(), recolored, "scroll kept going after the change")

	only := func(frame []byte, want color.RGBA) {
		t.Helper()
		for i := 0; i+2 < len(frame); i += 3 {
			if frame[i]|frame[i+1]|frame[i+2] != 0 {
				require.Equal(t, []byte{want.R, want.G, want.B}, frame[i:i+3])
			}
		}
	}
	only(first, color.RGBA{255, 0, 0, 255})
	only(last, color.RGBA{0, 255, 0, 255})
	assert.Equal(t, 0, litCount(drv.Last()))
}

func TestSetColorsScalesByBrightness(t *testing.T) {
	m, _ := newTestMatrix(t, mapSettings{
		"brightness_scale":     "1.0",
		"default_color":        "0xff0000",
		"ride_name_color":      0x00ff00,
		"ride_wait_time_color": "Old Lace",
	})
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, m.scroll.Color)
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, m.name.Color)
	assert.Equal(t, color.RGBA{0xfd, 0xf5, 0xe6, 255}, m.closed.Color)

	m.SetColors(mapSettings{"default_color": "bogus"})
	assert.Equal(t, color.RGBA{0x7f, 0x7f, 0, 255}, m.scroll.Color, "bad color falls back to default at 0.5")
	assert.Equal(t, color.RGBA{0, 0, 0x7f, 255}, m.name.Color)
}

func TestStaticSplashDrawsArtwork(t *testing.T) {
	m, drv := newTestMatrix(t, mapSettings{"brightness_scale": "1"})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for drv.Frames() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	err := m.ShowSplash(ctx, time.Minute, false)
	assert.ErrorIs(t, err, context.Canceled)

	frame := drv.Last()
	assert.Equal(t, len(reveal.ThemeParkWaits()), litCount(frame))
	// T crossbar in yellow, W stroke in orange
	i := (3*64 + 4) * 3
	assert.Equal(t, []byte{255, 255, 0}, frame[i:i+3])
	i = (20*64 + 5) * 3
	assert.Equal(t, []byte{255, 165, 0}, frame[i:i+3])
}

func TestRevealSplashEndsOnArtwork(t *testing.T) {
	m, drv := newTestMatrix(t, mapSettings{})
	var lastArt []byte
	m.eng.Drv = recordBeforeClear{drv, &lastArt}

	require.NoError(t, m.ShowSplash(context.Background(), 2*time.Second, true))
	assert.Equal(t, len(reveal.ThemeParkWaits()), litCount(lastArt))
	assert.Equal(t, 0, litCount(drv.Last()), "splash is cleared afterwards")
}

// recordBeforeClear keeps the last non-empty frame.
type recordBeforeClear struct {
	*fake.Driver
	keep *[]byte
}

func (r recordBeforeClear) Write(rgb []byte) error {
	if litCount(rgb) > 0 {
		*r.keep = append((*r.keep)[:0], rgb...)
	}
	return r.Driver.Write(rgb)
}

func TestCancelledScrollStopsEarly(t *testing.T) {
	m, drv := newTestMatrix(t, mapSettings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.ShowScrollMessage(ctx, "never shown")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, drv.Frames())
}

func TestDriverFailureIsStopped(t *testing.T) {
	eng, err := render.NewEngine(render.Dimensions{W: 64, H: 32}, brokenDriver{})
	require.NoError(t, err)
	m := NewMatrix(eng, nil, zerolog.Nop())
	m.Timing = fastTiming()

	err = m.ShowRideWaitTime(context.Background(), "5")
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorContains(t, err, "unplugged")
}

func TestShowCenteredScrollsLongLine(t *testing.T) {
	m, drv := newTestMatrix(t, mapSettings{})
	long := "queue-times.com"
	require.NoError(t, m.ShowCentered(context.Background(), "Powered", long, time.Microsecond))

	over := render.TextWidth(long) - 64
	assert.Equal(t, -over, m.line2.X)
	assert.Equal(t, (64-render.TextWidth("Powered"))/2, m.line1.X)
	assert.Equal(t, 1+over+1, drv.Frames())
	assert.True(t, m.line1.Hidden)
}

func TestRunPattern(t *testing.T) {
	m, drv := newTestMatrix(t, mapSettings{})
	m.Layout = layout.Layout{Dim: layout.Dim{X: 64, Y: 32}}
	require.NoError(t, m.RunPattern(context.Background(), tests.NewRunner(tests.Plan{Kind: tests.RowSweep})))
	assert.Equal(t, 32+1, drv.Frames())
	assert.Equal(t, 0, litCount(drv.Last()))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
