package reveal

import "image"

// art is built from strokes so the glyphs stay readable here.
type stroke struct {
	x0, x1, y0, y1 int // inclusive
}

func (s stroke) points(dst []image.Point) []image.Point {
	for x := s.x0; x <= s.x1; x++ {
		for y := s.y0; y <= s.y1; y++ {
			dst = append(dst, image.Pt(x, y))
		}
	}
	return dst
}

func hline(x0, x1, y int) stroke { return stroke{x0, x1, y, y} }
func vline(x, y0, y1 int) stroke { return stroke{x, x, y0, y1} }
func dot(x, y int) stroke        { return stroke{x, x, y, y} }

// TopRows is the height of the "THEME PARK" line; the splash colors rows
// below it differently.
const TopRows = 13

var themeParkWaits = []stroke{
	// T
	hline(4, 8, 3), vline(6, 4, 10),
	// H
	vline(10, 3, 10), vline(14, 3, 10), hline(11, 13, 6),
	// E
	vline(16, 3, 10), hline(16, 19, 3), hline(16, 18, 6), hline(16, 19, 10),
	// M
	vline(22, 3, 10), vline(27, 3, 10), dot(23, 4), dot(24, 5), dot(25, 5), dot(26, 4),
	// E
	vline(29, 3, 10), hline(29, 32, 3), hline(29, 31, 6), hline(29, 32, 10),
	// P
	vline(36, 3, 10), hline(36, 39, 3), hline(36, 39, 6), dot(39, 4), dot(39, 5),
	// A
	vline(42, 4, 10), vline(46, 4, 10), hline(43, 45, 3), hline(42, 46, 6),
	// R
	vline(48, 3, 10), hline(48, 51, 3), hline(48, 51, 6), dot(51, 4), dot(51, 5),
	dot(50, 7), dot(51, 8), dot(52, 9), dot(53, 10),
	// K
	vline(54, 3, 10), dot(57, 3), dot(56, 4), dot(55, 5), dot(55, 6),
	dot(56, 7), dot(57, 8), dot(58, 9), dot(59, 10),

	// W
	{5, 6, 15, 30}, {13, 14, 15, 30}, {7, 8, 27, 28}, {11, 12, 27, 28}, {9, 10, 23, 26},
	// A
	{16, 17, 17, 30}, {24, 25, 17, 30}, {18, 23, 15, 16}, {16, 25, 22, 23},
	// I
	{27, 36, 15, 16}, {27, 36, 29, 30}, {31, 32, 15, 30},
	// T
	{38, 47, 15, 16}, {42, 43, 15, 30},
	// S
	{49, 58, 15, 16}, {49, 50, 17, 21}, {49, 58, 22, 23}, {57, 58, 24, 28}, {49, 58, 29, 30},
}

// ThemeParkWaits returns the splash artwork pixels for a 64x32 matrix,
// one entry per lit pixel.
func ThemeParkWaits() []image.Point {
	var pts []image.Point
	for _, s := range themeParkWaits {
		pts = s.points(pts)
	}
	seen := make(map[image.Point]struct{}, len(pts))
	out := pts[:0]
	for _, p := range pts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
