package fake

import (
	"sync"

	"github.com/rs/zerolog"
)

// Driver keeps the last frame and logs a compact summary of each one, useful
// for headless runs and tests.
type Driver struct {
	mu     sync.Mutex
	Count  int
	last   []byte
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Driver {
	return &Driver{logger: logger}
}

func (d *Driver) Write(rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Count++
	d.last = append(d.last[:0], rgb...)

	var r, g, b float64
	lit := 0
	for i := 0; i+2 < len(rgb); i += 3 {
		r += float64(rgb[i])
		g += float64(rgb[i+1])
		b += float64(rgb[i+2])
		if rgb[i]|rgb[i+1]|rgb[i+2] != 0 {
			lit++
		}
	}
	n := float64(len(rgb) / 3)
	if n == 0 {
		n = 1
	}
	d.logger.Debug().
		Int("frame", d.Count).
		Int("lit", lit).
		Floats64("avg", []float64{r / n, g / n, b / n}).
		Msg("frame")
	return nil
}

func (d *Driver) Close() error { return nil }

// Last returns a copy of the most recent frame.
func (d *Driver) Last() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.last...)
}

func (d *Driver) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Count
}
