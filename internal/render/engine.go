package render

import (
	"errors"
	"image"
	"image/draw"
	"sync"
	"time"
)

// Driver abstracts the LED transport (SPI, console, preview socket).
// rgb is row-major, 3 bytes per pixel.
type Driver interface {
	Write(rgb []byte) error
}

type Dimensions struct{ W, H int }

// Engine composites layers into a frame and writes it to the driver.
type Engine struct {
	mu  sync.Mutex
	Dim Dimensions
	Drv Driver

	Frame *image.RGBA
	rgb   []byte

	post PostPipeline

	frameID uint64

	// metrics (last durations in ms)
	Last struct {
		RenderMS float64
		PostMS   float64
	}
}

// PostPipeline groups post stages; all are optional.
type PostPipeline struct {
	Limiter func(rgb []byte)
}

// NewEngine allocates buffers and returns an Engine with no post stages.
func NewEngine(dim Dimensions, drv Driver) (*Engine, error) {
	if dim.W*dim.H <= 0 {
		return nil, errors.New("invalid dimensions")
	}
	e := &Engine{
		Dim:   dim,
		Drv:   drv,
		Frame: image.NewRGBA(image.Rect(0, 0, dim.W, dim.H)),
		rgb:   make([]byte, dim.W*dim.H*3),
	}
	return e, nil
}

func (e *Engine) SetPost(p PostPipeline) {
	e.mu.Lock()
	e.post = p
	e.mu.Unlock()
}

func (e *Engine) FrameID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameID
}

// RenderOnce clears the frame, draws the layers in order and writes the result.
func (e *Engine) RenderOnce(layers ...Layer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	draw.Draw(e.Frame, e.Frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
	for _, l := range layers {
		if l != nil {
			l.Draw(e.Frame)
		}
	}

	w, h := e.Dim.W, e.Dim.H
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := e.Frame.PixOffset(x, y)
			i := (y*w + x) * 3
			e.rgb[i+0] = e.Frame.Pix[o+0]
			e.rgb[i+1] = e.Frame.Pix[o+1]
			e.rgb[i+2] = e.Frame.Pix[o+2]
		}
	}
	e.Last.RenderMS = float64(time.Since(start).Microseconds()) / 1000.0

	return e.write(e.rgb)
}

// WriteRaw sends a caller-filled row-major frame through post and the driver.
func (e *Engine) WriteRaw(rgb []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(rgb) != len(e.rgb) {
		return errors.New("frame size mismatch")
	}
	copy(e.rgb, rgb)
	return e.write(e.rgb)
}

func (e *Engine) write(rgb []byte) error {
	postStart := time.Now()
	if e.post.Limiter != nil {
		e.post.Limiter(rgb)
	}
	e.Last.PostMS = float64(time.Since(postStart).Microseconds()) / 1000.0

	e.frameID++
	if e.Drv != nil {
		if err := e.Drv.Write(rgb); err != nil {
			return err
		}
	}
	return nil
}
