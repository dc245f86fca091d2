package led

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"sync"

	"github.com/coreman2200/themeparkwaits/internal/layout"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"
)

// DefaultSpeed suits WS2812 NRZ encoding over SPI.
const DefaultSpeed = 2500 * physic.KiloHertz

// Periph drives a periph display.Drawer strip wired as a matrix. Frames are
// remapped from row-major into chain order with the layout.
type Periph struct {
	mu     sync.Mutex
	drawer display.Drawer
	port   spi.PortCloser
	lay    layout.Layout
	strip  *image.NRGBA
}

// NewPeriph wraps an nrzled strip on an already opened port.
func NewPeriph(port spi.PortCloser, lay layout.Layout, freq physic.Frequency) (*Periph, error) {
	if freq == 0 {
		freq = DefaultSpeed
	}
	d, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: lay.Count(),
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	if err := d.Halt(); err != nil {
		return nil, fmt.Errorf("nrzled halt: %w", err)
	}
	return &Periph{
		drawer: d,
		port:   port,
		lay:    lay,
		strip:  image.NewNRGBA(image.Rect(0, 0, lay.Count(), 1)),
	}, nil
}

// OpenPeriph initializes the host and opens the named SPI port ("" for the
// first available).
func OpenPeriph(name string, lay layout.Layout, freq physic.Frequency) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	d, err := NewPeriph(p, lay, freq)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return d, nil
}

func (p *Periph) Write(rgb []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawer == nil {
		return errors.New("periph: closed")
	}
	n := p.lay.Count()
	if len(rgb) != n*3 {
		return fmt.Errorf("rgb length %d does not match count %d", len(rgb), n)
	}
	for i := 0; i < n; i++ {
		x, y := p.lay.Point(i)
		src := (y*p.lay.Dim.X + x) * 3
		o := i * 4
		p.strip.Pix[o+0] = rgb[src+0]
		p.strip.Pix[o+1] = rgb[src+1]
		p.strip.Pix[o+2] = rgb[src+2]
		p.strip.Pix[o+3] = 0xff
	}
	return p.drawer.Draw(p.drawer.Bounds(), p.strip, image.Point{})
}

func (p *Periph) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawer == nil {
		return nil
	}
	err := p.drawer.Halt()
	p.drawer = nil
	if p.port != nil {
		err = errors.Join(err, p.port.Close())
	}
	return err
}

// Console prints frames as ANSI blocks, one screen row per matrix row.
type Console struct {
	mu     sync.Mutex
	drawer display.Drawer
	out    io.Writer
	w, h   int
	row    *image.NRGBA
}

func NewConsole(w, h int) *Console {
	return &Console{
		drawer: screen.New(w),
		out:    os.Stdout,
		w:      w,
		h:      h,
		row:    image.NewNRGBA(image.Rect(0, 0, w, 1)),
	}
}

func (c *Console) Write(rgb []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(rgb) != c.w*c.h*3 {
		return fmt.Errorf("rgb length %d does not match %dx%d", len(rgb), c.w, c.h)
	}
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			i := (y*c.w + x) * 3
			c.row.SetNRGBA(x, 0, color.NRGBA{rgb[i], rgb[i+1], rgb[i+2], 0xff})
		}
		if err := c.drawer.Draw(c.drawer.Bounds(), c.row, image.Point{}); err != nil {
			return err
		}
		fmt.Fprint(c.out, "\n")
	}
	return nil
}

func (c *Console) Close() error {
	return c.drawer.Halt()
}

// Open returns the SPI strip, or the console when no SPI port can be opened.
func Open(name string, lay layout.Layout, freq physic.Frequency, logger zerolog.Logger) Driver {
	d, err := OpenPeriph(name, lay, freq)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to find a SPI port, printing at the console")
		return NewConsole(lay.Dim.X, lay.Dim.Y)
	}
	return d
}
