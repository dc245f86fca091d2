// Package reveal turns a random bitmap into target artwork a few pixels at
// a time.
package reveal

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"time"
)

const (
	OffPerTick = 5
	OnPerTick  = 3
	Interval   = 50 * time.Millisecond
)

// Bitmap is a 1-bit frame.
type Bitmap struct {
	W, H int
	px   []bool
}

func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{W: w, H: h, px: make([]bool, w*h)}
}

func (b *Bitmap) in(x, y int) bool { return x >= 0 && y >= 0 && x < b.W && y < b.H }

func (b *Bitmap) Get(x, y int) bool {
	return b.in(x, y) && b.px[y*b.W+x]
}

func (b *Bitmap) Set(x, y int, on bool) {
	if b.in(x, y) {
		b.px[y*b.W+x] = on
	}
}

// Lit counts pixels that are on.
func (b *Bitmap) Lit() int {
	n := 0
	for _, on := range b.px {
		if on {
			n++
		}
	}
	return n
}

// Layer draws a bitmap in one color; rows at or below Split use Lower when
// it is set.
type Layer struct {
	Bitmap *Bitmap
	Color  color.RGBA
	Lower  color.RGBA
	Split  int
}

func (l Layer) Draw(dst draw.Image) {
	if l.Bitmap == nil {
		return
	}
	b := dst.Bounds()
	for y := 0; y < l.Bitmap.H; y++ {
		c := l.Color
		if l.Split > 0 && y >= l.Split {
			c = l.Lower
		}
		for x := 0; x < l.Bitmap.W; x++ {
			if l.Bitmap.Get(x, y) && image.Pt(x, y).In(b) {
				dst.Set(x, y, c)
			}
		}
	}
}

// State tracks the pixels still wrong: lit but not in the target, and
// target pixels still dark.
type State struct {
	Bitmap      *Bitmap
	incorrectOn []image.Point
	missingText []image.Point
}

// New seeds a w*h bitmap with each pixel on at p=0.5.
func New(target []image.Point, w, h int, rng *rand.Rand) *State {
	bm := NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bm.Set(x, y, rng.IntN(2) == 1)
		}
	}
	return NewFrom(bm, target, rng)
}

// NewFrom starts from an existing bitmap, which it takes ownership of.
func NewFrom(bm *Bitmap, target []image.Point, rng *rand.Rand) *State {
	want := NewBitmap(bm.W, bm.H)
	for _, p := range target {
		want.Set(p.X, p.Y, true)
	}
	s := &State{Bitmap: bm}
	for y := 0; y < bm.H; y++ {
		for x := 0; x < bm.W; x++ {
			on, text := bm.Get(x, y), want.Get(x, y)
			switch {
			case on && !text:
				s.incorrectOn = append(s.incorrectOn, image.Pt(x, y))
			case !on && text:
				s.missingText = append(s.missingText, image.Pt(x, y))
			}
		}
	}
	rng.Shuffle(len(s.incorrectOn), func(i, j int) {
		s.incorrectOn[i], s.incorrectOn[j] = s.incorrectOn[j], s.incorrectOn[i]
	})
	rng.Shuffle(len(s.missingText), func(i, j int) {
		s.missingText[i], s.missingText[j] = s.missingText[j], s.missingText[i]
	})
	return s
}

// Remaining returns how many pixels are still to be turned off and on.
func (s *State) Remaining() (off, on int) {
	return len(s.incorrectOn), len(s.missingText)
}

func (s *State) Done() bool {
	return len(s.incorrectOn) == 0 && len(s.missingText) == 0
}

// Ticks is the number of Step calls needed to converge.
func (s *State) Ticks() int {
	off, on := s.Remaining()
	return max(ceilDiv(off, OffPerTick), ceilDiv(on, OnPerTick))
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Step applies one tick; returns false when complete.
func (s *State) Step() bool {
	for i := 0; i < OffPerTick && len(s.incorrectOn) > 0; i++ {
		p := s.incorrectOn[len(s.incorrectOn)-1]
		s.incorrectOn = s.incorrectOn[:len(s.incorrectOn)-1]
		s.Bitmap.Set(p.X, p.Y, false)
	}
	for i := 0; i < OnPerTick && len(s.missingText) > 0; i++ {
		p := s.missingText[len(s.missingText)-1]
		s.missingText = s.missingText[:len(s.missingText)-1]
		s.Bitmap.Set(p.X, p.Y, true)
	}
	return !s.Done()
}

// Target renders the artwork directly into a bitmap.
func Target(target []image.Point, w, h int) *Bitmap {
	bm := NewBitmap(w, h)
	for _, p := range target {
		bm.Set(p.X, p.Y, true)
	}
	return bm
}
