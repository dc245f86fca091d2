package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Face is the bitmap font used for every label on the matrix.
var Face = basicfont.Face7x13

// Layer is anything the engine can composite onto a frame.
type Layer interface {
	Draw(dst draw.Image)
}

// Label is a single line of text. X,Y is the top-left of the glyph cell
// before scaling; Scale>1 is a nearest-neighbour enlargement.
type Label struct {
	Text   string
	X, Y   int
	Scale  int
	Color  color.RGBA
	Hidden bool
}

func NewLabel(x, y, scale int) *Label {
	if scale < 1 {
		scale = 1
	}
	return &Label{X: x, Y: y, Scale: scale, Hidden: true}
}

// Width is the unscaled pixel width of the text.
func (l *Label) Width() int {
	return TextWidth(l.Text)
}

// ScaledWidth is the on-screen width.
func (l *Label) ScaledWidth() int {
	return l.Width() * l.scale()
}

func (l *Label) Height() int {
	return Face.Height * l.scale()
}

func (l *Label) scale() int {
	if l.Scale < 1 {
		return 1
	}
	return l.Scale
}

func TextWidth(s string) int {
	return font.MeasureString(Face, s).Ceil()
}

func (l *Label) Draw(dst draw.Image) {
	if l.Hidden || l.Text == "" {
		return
	}
	src := image.NewUniform(l.Color)
	if l.scale() == 1 {
		d := font.Drawer{
			Dst:  dst,
			Src:  src,
			Face: Face,
			Dot:  fixed.P(l.X, l.Y+Face.Ascent),
		}
		d.DrawString(l.Text)
		return
	}

	// Rasterize at 1x then blow up onto the frame.
	w := l.Width()
	glyphs := image.NewRGBA(image.Rect(0, 0, w, Face.Height))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  src,
		Face: Face,
		Dot:  fixed.P(0, Face.Ascent),
	}
	d.DrawString(l.Text)
	s := l.scale()
	dr := image.Rect(l.X, l.Y, l.X+w*s, l.Y+Face.Height*s)
	xdraw.NearestNeighbor.Scale(dst, dr, glyphs, glyphs.Bounds(), xdraw.Over, nil)
}
