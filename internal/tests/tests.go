// Package tests holds the wiring test patterns played on the matrix.
package tests

import (
	"fmt"

	"github.com/coreman2200/themeparkwaits/internal/layout"
)

type Kind string

const (
	None       Kind = ""
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	RowSweep   Kind = "row_sweep"
)

var Kinds = []Kind{IndexSweep, RGBTest, RowSweep}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown test pattern %q", s)
}

type Plan struct{ Kind Kind }

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }
func (r *Runner) Kind() Kind      { return r.plan.Kind }

// Step fills rgb, a row-major frame, with the next pattern frame; returns
// false when complete. The index sweep walks the LED chain, so a wiring
// fault shows up as a jump.
func (r *Runner) Step(l layout.Layout, rgb []byte) bool {
	n := l.Count()
	for i := 0; i < n*3; i++ {
		rgb[i] = 0
	}

	switch r.plan.Kind {
	case IndexSweep:
		if r.step >= n {
			return false
		}
		x, y := l.Point(r.step)
		i := (y*l.Dim.X + x) * 3
		rgb[i+0], rgb[i+1], rgb[i+2] = 255, 255, 255
	case RGBTest:
		if r.step >= 3 {
			return false
		}
		for i := 0; i < n; i++ {
			rgb[i*3+r.step] = 255
		}
	case RowSweep:
		if r.step >= l.Dim.Y {
			return false
		}
		for x := 0; x < l.Dim.X; x++ {
			i := (r.step*l.Dim.X + x) * 3
			rgb[i+1], rgb[i+2] = 255, 255 // cyan
		}
	default:
		return false
	}
	r.step++
	return true
}
