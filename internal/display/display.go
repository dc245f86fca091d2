// Package display defines what the scheduler can ask of the LED surface and
// implements it for a pixel matrix.
package display

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/coreman2200/themeparkwaits/internal/model"
)

// ErrStopped is returned once the render surface is gone. Callers end the
// session on it.
var ErrStopped = errors.New("display stopped")

// Settings is the read side of the configuration the display needs.
type Settings interface {
	Get(key string, def any) any
	ScrollSpeed() time.Duration
}

// Display is everything the message queue drives. Each call blocks until its
// animation is finished and returns ctx.Err() when cancelled.
type Display interface {
	ShowSplash(ctx context.Context, d time.Duration, reveal bool) error
	ShowScrollMessage(ctx context.Context, text string) error
	ShowRideName(ctx context.Context, name string) error
	ShowRideWaitTime(ctx context.Context, text string) error
	ShowRideClosed(ctx context.Context, marker string) error
	SetColors(s Settings)
}

// Timing holds the fixed pauses of each animation.
type Timing struct {
	Settle     time.Duration // before a scroll starts moving
	NameHold   time.Duration // after a ride name has scrolled off
	RevealTick time.Duration
	LineStep   time.Duration // centered lines scrolling to their end
	Pattern    time.Duration // test pattern frames
}

func DefaultTiming() Timing {
	return Timing{
		Settle:     500 * time.Millisecond,
		NameHold:   time.Second,
		RevealTick: 50 * time.Millisecond,
		LineStep:   50 * time.Millisecond,
		Pattern:    100 * time.Millisecond,
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stopped wraps a driver failure so callers can match ErrStopped.
func Stopped(err error) error {
	if err == nil || errors.Is(err, ErrStopped) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStopped, err)
}

// Palette is the set of base colors and brightness read from settings.
type Palette struct {
	Brightness float64
	Default    model.ColorVal
	RideName   model.ColorVal
	WaitTime   model.ColorVal
}

const DefaultBrightness = 0.5

// ReadPalette pulls colors out of settings, falling back to the defaults for
// anything missing or malformed. The returned error lists what was ignored.
func ReadPalette(s Settings) (Palette, error) {
	var errs []error
	p := Palette{
		Brightness: DefaultBrightness,
		Default:    model.NewColor(0xffff00),
		RideName:   model.NewColor(0x0000ff),
		WaitTime:   model.NewColor(0xfdf5e6),
	}
	if s == nil {
		return p, nil
	}
	if b, err := toFloat(s.Get("brightness_scale", "0.5")); err != nil {
		errs = append(errs, fmt.Errorf("brightness_scale: %w", err))
	} else {
		p.Brightness = b
	}
	for key, dst := range map[string]*model.ColorVal{
		"default_color":        &p.Default,
		"ride_name_color":      &p.RideName,
		"ride_wait_time_color": &p.WaitTime,
	} {
		v := s.Get(key, nil)
		if v == nil {
			continue
		}
		c, err := toColor(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst = c
	}
	return p, errors.Join(errs...)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

// yaml decodes an unquoted 0xffff00 as an int, JSON as a float64.
func toColor(v any) (model.ColorVal, error) {
	switch t := v.(type) {
	case string:
		return model.ParseColor(t)
	case int:
		if t < 0 || int64(t) > int64(model.MAX_COLOR) {
			return model.ColorVal{}, fmt.Errorf("color %#x out of range", t)
		}
		return model.NewColor(uint32(t)), nil
	case uint32:
		return model.NewColor(t), nil
	case float64:
		// JSON numbers from the control socket
		if t != float64(int64(t)) {
			return model.ColorVal{}, fmt.Errorf("color %v is not an integer", t)
		}
		return toColor(int(t))
	}
	return model.ColorVal{}, fmt.Errorf("unexpected %T", v)
}
