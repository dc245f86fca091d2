package render

import "math"

// Limiter caps LED current for a frame of 8-bit RGB triples:
//  1. per-LED white cap: scales (R,G,B) so R+G+B <= WhiteCap*3*255
//  2. global budget: estimates current and scales the whole frame to stay under BudgetmA
//
// A zero WhiteCap or BudgetmA disables that stage.
type Limiter struct {
	WhiteCap float64 // 0..1 of full white
	ChanmA   float64 // mA per color channel at full scale; WS2812 ~ 20
	BudgetmA float64
	Knee     float64 // fraction of budget where soft limiting begins
}

func DefaultLimiter(budgetmA float64) Limiter {
	return Limiter{WhiteCap: 0.85, ChanmA: 20, BudgetmA: budgetmA, Knee: 0.9}
}

// EstimateCurrent returns the frame draw in mA.
func (l Limiter) EstimateCurrent(rgb []byte) float64 {
	chanmA := l.ChanmA
	if chanmA <= 0 {
		chanmA = 20
	}
	var sum float64
	for i := 0; i+2 < len(rgb); i += 3 {
		sum += float64(rgb[i]) + float64(rgb[i+1]) + float64(rgb[i+2])
	}
	return sum / 255.0 * chanmA
}

func (l Limiter) Apply(rgb []byte) {
	if l.WhiteCap > 0 && l.WhiteCap < 1 {
		limit := l.WhiteCap * 3.0 * 255.0
		for i := 0; i+2 < len(rgb); i += 3 {
			s := float64(rgb[i]) + float64(rgb[i+1]) + float64(rgb[i+2])
			if s > limit {
				scaleTriple(rgb[i:i+3], limit/s)
			}
		}
	}

	if l.BudgetmA <= 0 {
		return
	}
	total := l.EstimateCurrent(rgb)
	if total <= 0 {
		return
	}
	knee := l.Knee
	if knee <= 0 || knee >= 1 {
		knee = 0.9
	}
	ratio := total / l.BudgetmA
	if ratio <= knee {
		return
	}
	s := l.BudgetmA / total
	if ratio <= 1.0 {
		// map ratio in [knee,1] to scale in [1, budget/total]
		t := (ratio - knee) / (1.0 - knee)
		s = 1.0 - t*(1.0-s)
	}
	for i := 0; i+2 < len(rgb); i += 3 {
		scaleTriple(rgb[i:i+3], s)
	}
}

func scaleTriple(px []byte, s float64) {
	if s >= 1.0 {
		return
	}
	for i := range px {
		px[i] = byte(math.Round(float64(px[i]) * s))
	}
}
