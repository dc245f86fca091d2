package model

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

const (
	RED_OFFSET   uint8 = 0x10
	GREEN_OFFSET uint8 = 0x08
	BLUE_OFFSET  uint8 = 0x0
)

const MAX_COLOR uint32 = 0xFFFFFF

// Colors are the named colors offered by the settings page.
var Colors = map[string]string{
	"Red":      "0xff0000",
	"Green":    "0x00ff00",
	"Blue":     "0x0000ff",
	"White":    "0xffffff",
	"Black":    "0x000000",
	"Purple":   "0x800080",
	"Yellow":   "0xffff00",
	"Orange":   "0xffa500",
	"Pink":     "0xffc0cb",
	"Old Lace": "0xfdf5e6",
}

// ColorVal is a packed 0xRRGGBB value.
type ColorVal struct {
	val uint32
}

func NewColor(c uint32) ColorVal {
	return ColorVal{val: c & MAX_COLOR}
}

// ParseColor accepts "0xRRGGBB", "#RRGGBB", bare hex or a name from Colors.
func ParseColor(s string) (ColorVal, error) {
	s = strings.TrimSpace(s)
	if named, ok := Colors[s]; ok {
		s = named
	}
	h := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "0x"), "#")
	if h == "" {
		return ColorVal{}, fmt.Errorf("parse color %q: empty", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return ColorVal{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	if uint32(v) > MAX_COLOR {
		return ColorVal{}, fmt.Errorf("parse color %q: out of range", s)
	}
	return NewColor(uint32(v)), nil
}

// MustColor is ParseColor for package level tables.
func MustColor(s string) ColorVal {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ColorVal) Color() uint32 {
	return c.val
}

func (c ColorVal) String() string {
	return fmt.Sprintf("0x%06x", c.val)
}

func (c ColorVal) ToRGBA() color.RGBA {
	return color.RGBA{c.GetR(), c.GetG(), c.GetB(), 255}
}

func setcolor(c uint32, n uint8, off uint8) uint32 {
	var val uint32 = uint32(n) << off
	var mask uint32 = 0xFF << off
	return (c & (^mask)) | val
}

func getcolor(c uint32, off uint8) uint8 {
	var mask uint32 = 0xFF << off
	return uint8((c & (mask)) >> off)
}

func (c *ColorVal) SetR(r uint8) {
	c.val = setcolor(c.val, r, RED_OFFSET)
}
func (c *ColorVal) SetG(g uint8) {
	c.val = setcolor(c.val, g, GREEN_OFFSET)
}
func (c *ColorVal) SetB(b uint8) {
	c.val = setcolor(c.val, b, BLUE_OFFSET)
}

func (c ColorVal) GetR() uint8 {
	return getcolor(c.val, RED_OFFSET)
}
func (c ColorVal) GetG() uint8 {
	return getcolor(c.val, GREEN_OFFSET)
}
func (c ColorVal) GetB() uint8 {
	return getcolor(c.val, BLUE_OFFSET)
}

// Scale multiplies each channel by s, truncating and clamping to 0..255.
// Black is returned untouched.
func (c ColorVal) Scale(s float64) ColorVal {
	if c.val == 0 {
		return c
	}
	out := NewColor(0)
	out.SetR(scaleChannel(c.GetR(), s))
	out.SetG(scaleChannel(c.GetG(), s))
	out.SetB(scaleChannel(c.GetB(), s))
	return out
}

func scaleChannel(v uint8, s float64) uint8 {
	n := int(float64(v) * s)
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}

// ScaleColor scales a color string and returns it in 0xrrggbb form. Black,
// or a scale of exactly 1, returns the input as given in any spelling
// ParseColor accepts.
func ScaleColor(hex string, s float64) (string, error) {
	c, err := ParseColor(hex)
	if err != nil {
		return "", err
	}
	if c.Color() == 0 || s == 1 {
		return hex, nil
	}
	return c.Scale(s).String(), nil
}
