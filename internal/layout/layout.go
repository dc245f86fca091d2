package layout

// Dim is the matrix size in pixels.
type Dim struct{ X, Y int }

type Serpentine struct {
	XFlipEveryRow bool
}

type Layout struct {
	Dim   Dim
	Order Serpentine
}

// Index maps x,y -> linear LED index (0..N-1) along the chain.
func (l Layout) Index(x, y int) int {
	xx := x
	if (y%2 == 1) && l.Order.XFlipEveryRow {
		xx = l.Dim.X - 1 - x
	}
	return y*l.Dim.X + xx
}

// Point is the inverse of Index.
func (l Layout) Point(i int) (x, y int) {
	y = i / l.Dim.X
	x = i % l.Dim.X
	if (y%2 == 1) && l.Order.XFlipEveryRow {
		x = l.Dim.X - 1 - x
	}
	return x, y
}

func (l Layout) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.Dim.X && y < l.Dim.Y
}

func (l Layout) Count() int {
	return l.Dim.X * l.Dim.Y
}
