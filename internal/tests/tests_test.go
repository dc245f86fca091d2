package tests

import (
	"testing"

	"github.com/coreman2200/themeparkwaits/internal/layout"
)

func lit(rgb []byte) []int {
	var out []int
	for i := 0; i < len(rgb)/3; i++ {
		if rgb[i*3]|rgb[i*3+1]|rgb[i*3+2] != 0 {
			out = append(out, i)
		}
	}
	return out
}

func TestIndexSweepFollowsChain(t *testing.T) {
	l := layout.Layout{Dim: layout.Dim{X: 3, Y: 2}, Order: layout.Serpentine{XFlipEveryRow: true}}
	rgb := make([]byte, l.Count()*3)
	r := NewRunner(Plan{Kind: IndexSweep})

	want := []int{0, 1, 2, 5, 4, 3}
	for step, px := range want {
		if !r.Step(l, rgb) {
			t.Fatalf("sweep ended early at %d", step)
		}
		got := lit(rgb)
		if len(got) != 1 || got[0] != px {
			t.Fatalf("step %d: expected pixel %d, got %v", step, px, got)
		}
	}
	if r.Step(l, rgb) {
		t.Fatalf("expected sweep to finish")
	}
	if len(lit(rgb)) != 0 {
		t.Fatalf("expected dark frame after finish")
	}
}

func TestRGBAndRowSweepFinish(t *testing.T) {
	l := layout.Layout{Dim: layout.Dim{X: 4, Y: 3}}
	rgb := make([]byte, l.Count()*3)

	for _, tc := range []struct {
		kind  Kind
		steps int
	}{{RGBTest, 3}, {RowSweep, 3}, {None, 0}} {
		r := NewRunner(Plan{Kind: tc.kind})
		n := 0
		for r.Step(l, rgb) {
			n++
		}
		if n != tc.steps {
			t.Fatalf("%q: expected %d frames, got %d", tc.kind, tc.steps, n)
		}
	}

	r := NewRunner(Plan{Kind: RowSweep})
	r.Step(l, rgb)
	r.Step(l, rgb)
	if got := lit(rgb); len(got) != 4 || got[0] != 4 {
		t.Fatalf("expected second row lit, got %v", got)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("rgb_channels"); err != nil || k != RGBTest {
		t.Fatalf("got %q, %v", k, err)
	}
	if _, err := ParseKind("plane_z"); err == nil {
		t.Fatalf("expected error")
	}
}
