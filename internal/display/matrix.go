package display

import (
	"context"
	"image/color"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coreman2200/themeparkwaits/internal/layout"
	"github.com/coreman2200/themeparkwaits/internal/model"
	"github.com/coreman2200/themeparkwaits/internal/render"
	"github.com/coreman2200/themeparkwaits/internal/reveal"
	"github.com/coreman2200/themeparkwaits/internal/tests"
	"github.com/rs/zerolog"
)

// Label rows, as the top of the 7x13 glyph cell. The name sits in rows 0-10
// and the doubled wait digits in 13-30 so both can be up at once.
const (
	rowScroll = 9
	rowName   = -2
	rowWait   = 9 // scale 2
	rowClosed = 16
	rowLine1  = 3
	rowLine2  = 17
)

var (
	splashUpper = model.NewColor(0xffff00)
	splashLower = model.NewColor(0xffa500)
)

// Matrix implements Display over a render engine. Both the hardware strip
// and the preview socket sit behind the engine's driver.
type Matrix struct {
	Timing Timing
	Layout layout.Layout
	Rand   *rand.Rand

	eng      *render.Engine
	settings Settings
	logger   zerolog.Logger
	w        int

	mu      sync.Mutex // guards colors against SetColors during an animation
	scroll  *render.Label
	name    *render.Label
	wait    *render.Label
	closed  *render.Label
	line1   *render.Label
	line2   *render.Label
	splash  reveal.Layer
	art     *reveal.Bitmap
	showArt bool
}

var _ Display = (*Matrix)(nil)

func NewMatrix(eng *render.Engine, s Settings, logger zerolog.Logger) *Matrix {
	w := eng.Dim.W
	m := &Matrix{
		Timing: DefaultTiming(),
		Layout: layout.Layout{Dim: layout.Dim{X: eng.Dim.W, Y: eng.Dim.H}},
		Rand:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x7468656d65)),

		eng:      eng,
		settings: s,
		logger:   logger.With().Str("component", "display").Logger(),
		w:        w,

		scroll: render.NewLabel(w, rowScroll, 1),
		name:   render.NewLabel(w, rowName, 1),
		wait:   render.NewLabel(0, rowWait, 2),
		closed: render.NewLabel(0, rowClosed, 1),
		line1:  render.NewLabel(0, rowLine1, 1),
		line2:  render.NewLabel(0, rowLine2, 1),
		art:    reveal.Target(reveal.ThemeParkWaits(), eng.Dim.W, eng.Dim.H),
	}
	m.SetColors(s)
	return m
}

func (m *Matrix) layers() []render.Layer {
	ls := []render.Layer{m.scroll, m.name, m.wait, m.closed, m.line1, m.line2}
	if m.showArt {
		ls = append(ls, m.splash)
	}
	return ls
}

// render pushes one frame. It checks ctx first so a cancelled caller never
// draws again.
func (m *Matrix) render(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stopped(m.eng.RenderOnce(m.layers()...))
}

func (m *Matrix) hideAll() {
	for _, l := range []*render.Label{m.scroll, m.name, m.wait, m.closed, m.line1, m.line2} {
		l.Hidden = true
	}
	m.showArt = false
}

// SetColors rescales every label color by brightness_scale. Safe to call
// while an animation is running.
func (m *Matrix) SetColors(s Settings) {
	p, err := ReadPalette(s)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Using default colors")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s != nil {
		m.settings = s
	}
	b := p.Brightness
	m.scroll.Color = p.Default.Scale(b).ToRGBA()
	m.line1.Color = m.scroll.Color
	m.line2.Color = m.scroll.Color
	m.name.Color = p.RideName.Scale(b).ToRGBA()
	m.wait.Color = p.WaitTime.Scale(b).ToRGBA()
	m.closed.Color = m.wait.Color
	m.splash.Color = splashUpper.Scale(b).ToRGBA()
	m.splash.Lower = splashLower.Scale(b).ToRGBA()
}

func (m *Matrix) scrollSpeed() time.Duration {
	m.mu.Lock()
	s := m.settings
	m.mu.Unlock()
	if s == nil {
		return 40 * time.Millisecond
	}
	return s.ScrollSpeed()
}

// ShowSplash shows the artwork for d. When animate is set it is assembled
// from noise first, inside the same budget.
func (m *Matrix) ShowSplash(ctx context.Context, d time.Duration, animate bool) error {
	m.logger.Debug().Dur("duration", d).Bool("reveal", animate).Msg("Showing splash")
	m.hideAll()
	var err error
	if animate {
		err = m.revealSplash(ctx, d)
	} else {
		m.splash.Bitmap, m.splash.Split = m.art, reveal.TopRows
		m.showArt = true
		if err = m.render(ctx); err == nil {
			err = Sleep(ctx, d)
		}
	}
	m.showArt = false
	if err != nil {
		return err
	}
	return m.render(ctx)
}

func (m *Matrix) revealSplash(ctx context.Context, d time.Duration) error {
	start := time.Now()
	st := reveal.New(reveal.ThemeParkWaits(), m.eng.Dim.W, m.eng.Dim.H, m.Rand)
	m.splash.Bitmap, m.splash.Split = st.Bitmap, 0
	m.showArt = true
	if err := m.render(ctx); err != nil {
		return err
	}
	ticks := 0
	for time.Since(start) < d {
		if err := Sleep(ctx, m.Timing.RevealTick); err != nil {
			return err
		}
		more := st.Step()
		ticks++
		if err := m.render(ctx); err != nil {
			return err
		}
		if !more {
			break
		}
	}
	off, on := st.Remaining()
	m.logger.Debug().Int("ticks", ticks).Int("off", off).Int("on", on).
		Dur("elapsed", time.Since(start)).Msg("Reveal finished")
	return Sleep(ctx, d-time.Since(start))
}

// scrollOff moves l from the right edge until it has left the screen,
// re-rendering each step.
func (m *Matrix) scrollOff(ctx context.Context, l *render.Label) error {
	l.X = m.w
	l.Hidden = false
	if err := m.render(ctx); err != nil {
		return err
	}
	if err := Sleep(ctx, m.Timing.Settle); err != nil {
		return err
	}
	speed := m.scrollSpeed()
	for {
		x, more := render.ScrollStep(l.X, l.ScaledWidth(), m.w)
		l.X = x
		if !more {
			return nil
		}
		if err := m.render(ctx); err != nil {
			return err
		}
		if err := Sleep(ctx, speed); err != nil {
			return err
		}
	}
}

func (m *Matrix) ShowScrollMessage(ctx context.Context, text string) error {
	m.logger.Debug().Str("text", text).Msg("Scrolling message")
	m.hideAll()
	m.scroll.Text = text
	err := m.scrollOff(ctx, m.scroll)
	m.scroll.Hidden = true
	if err != nil {
		return err
	}
	return m.render(ctx)
}

// ShowRideName scrolls the name above whatever wait time or closed marker is
// showing, then clears all three.
func (m *Matrix) ShowRideName(ctx context.Context, name string) error {
	m.scroll.Hidden, m.line1.Hidden, m.line2.Hidden, m.showArt = true, true, true, false
	m.name.Text = name
	err := m.scrollOff(ctx, m.name)
	if err == nil {
		err = Sleep(ctx, m.Timing.NameHold)
	}
	for _, l := range []*render.Label{m.name, m.wait, m.closed} {
		l.Text, l.Hidden = "", true
	}
	if err != nil {
		return err
	}
	return m.render(ctx)
}

func (m *Matrix) ShowRideWaitTime(ctx context.Context, text string) error {
	m.wait.Text = text
	m.wait.X = render.CenterX(m.wait.Width(), m.w, m.wait.Scale)
	m.wait.Hidden = false
	m.closed.Hidden = true
	return m.render(ctx)
}

func (m *Matrix) ShowRideClosed(ctx context.Context, marker string) error {
	m.closed.Text = marker
	m.closed.X = render.CenterX(m.closed.Width(), m.w, m.closed.Scale)
	m.closed.Hidden = false
	m.wait.Hidden = true
	return m.render(ctx)
}

// ShowCentered shows two centered lines. A line too wide for the matrix is
// scrolled left until its end is visible. A positive hold keeps the lines up
// that long and then clears them; otherwise they stay.
func (m *Matrix) ShowCentered(ctx context.Context, line1, line2 string, hold time.Duration) error {
	m.hideAll()
	m.line1.Text, m.line2.Text = line1, line2
	for _, l := range []*render.Label{m.line1, m.line2} {
		l.X = render.CenterX(l.Width(), m.w, l.Scale)
		l.Hidden = false
	}
	if err := m.render(ctx); err != nil {
		return err
	}
	if err := Sleep(ctx, m.Timing.NameHold); err != nil {
		return err
	}
	for _, l := range []*render.Label{m.line1, m.line2} {
		for over := l.ScaledWidth() - m.w; over > 0; over-- {
			if err := Sleep(ctx, m.Timing.LineStep); err != nil {
				return err
			}
			l.X--
			if err := m.render(ctx); err != nil {
				return err
			}
		}
	}
	if hold <= 0 {
		return nil
	}
	if err := Sleep(ctx, hold); err != nil {
		return err
	}
	m.line1.Hidden, m.line2.Hidden = true, true
	return m.render(ctx)
}

// ShowUpdate puts up, or takes down, the "updating" screen shown while park
// data is fetched.
func (m *Matrix) ShowUpdate(ctx context.Context, on bool) error {
	m.hideAll()
	if on {
		m.line1.Text, m.line2.Text = "Updating", "Waits"
		for _, l := range []*render.Label{m.line1, m.line2} {
			l.X = render.CenterX(l.Width(), m.w, l.Scale)
			l.Hidden = false
		}
	}
	return m.render(ctx)
}

// Clear blanks the matrix.
func (m *Matrix) Clear(ctx context.Context) error {
	m.hideAll()
	return m.render(ctx)
}

// RunPattern plays a test pattern until it completes, bypassing the labels.
func (m *Matrix) RunPattern(ctx context.Context, r *tests.Runner) error {
	buf := make([]byte, m.Layout.Count()*3)
	frames := 0
	for r.Step(m.Layout, buf) {
		frames++
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := Stopped(m.eng.WriteRaw(buf)); err != nil {
			return err
		}
		if err := Sleep(ctx, m.Timing.Pattern); err != nil {
			return err
		}
	}
	m.logger.Info().Str("pattern", string(r.Kind())).Int("frames", frames).Msg("Test pattern done")
	return m.Clear(ctx)
}

// Pixel reads back the color last composited at x,y.
func (m *Matrix) Pixel(x, y int) color.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eng.Frame.RGBAAt(x, y)
}
