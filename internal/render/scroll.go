package render

// ScrollStep moves a line one pixel left. Once the line has fully left the
// display it wraps to the right edge and reports that the pass is complete.
func ScrollStep(x, lineWidth, displayWidth int) (int, bool) {
	x--
	if x < -lineWidth {
		return displayWidth, false
	}
	return x, true
}

// CenterX returns the left edge that centers a label, never negative.
func CenterX(labelWidth, displayWidth, scale int) int {
	if scale < 1 {
		scale = 1
	}
	pad := (displayWidth - labelWidth*scale) / 2
	if pad < 0 {
		return 0
	}
	return pad
}
