package features

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Overlay colors.
var (
	DecodedColor  = color.RGBA{0, 255, 0, 255} // Green
	RejectedColor = color.RGBA{255, 0, 0, 255} // Red
	SurfaceColor  = color.RGBA{0, 128, 255, 255}
)

// goldenAngle spreads consecutive IDs around the hue wheel.
var goldenAngle = 180 * (3 - math.Sqrt(5))

// ColorForID returns a saturated label color that is stable per marker ID.
func ColorForID(id int) color.RGBA {
	hue := math.Mod(float64(id)*goldenAngle, 360)
	r, g, b := colorful.Hsv(hue, 0.85, 1).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
