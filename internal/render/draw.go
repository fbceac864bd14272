package render

import (
	"image"
	"image/color"
	"math"
)

// drawSegment rasterizes a line of the given width between two points by
// stamping a filled square along the segment. Precise enough for link
// rendering; anti-aliasing is not worth the dependency.
func drawSegment(canvas *image.RGBA, x0, y0, x1, y1, width int, c color.RGBA) {
	dx := float64(x1 - x0)
	dy := float64(y1 - y0)
	length := math.Hypot(dx, dy)
	if length == 0 {
		stamp(canvas, x0, y0, width, c)
		return
	}
	steps := int(length) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(float64(x0) + dx*t))
		y := int(math.Round(float64(y0) + dy*t))
		stamp(canvas, x, y, width, c)
	}
}

func stamp(canvas *image.RGBA, cx, cy, width int, c color.RGBA) {
	r := width / 2
	bounds := canvas.Bounds()
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if image.Pt(x, y).In(bounds) {
				canvas.SetRGBA(x, y, c)
			}
		}
	}
}
