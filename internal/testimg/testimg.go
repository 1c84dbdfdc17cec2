// Package testimg builds synthetic frames for detector tests.
package testimg

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Gray returns a single-channel width x height Mat filled with v.
func Gray(width, height int, v uint8) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(v), 0, 0, 0), height, width, gocv.MatTypeCV8UC1)
}

// BGR returns a 3-channel width x height Mat filled with the gray level v.
func BGR(width, height int, v uint8) gocv.Mat {
	f := float64(v)
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(f, f, f, 0), height, width, gocv.MatTypeCV8UC3)
}

// FillRect paints r with the gray level v.
func FillRect(m *gocv.Mat, r image.Rectangle, v uint8) {
	gocv.Rectangle(m, r, color.RGBA{R: v, G: v, B: v, A: 255}, -1)
}

// FillQuad paints the polygon pts with the gray level v.
func FillQuad(m *gocv.Mat, pts []image.Point, v uint8) {
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.FillPoly(m, pv, color.RGBA{R: v, G: v, B: v, A: 255})
}

// Paste copies src into dst with its top-left corner at at. src must have the
// same type as dst and fit inside it.
func Paste(dst *gocv.Mat, src gocv.Mat, at image.Point) {
	roi := dst.Region(image.Rect(at.X, at.Y, at.X+src.Cols(), at.Y+src.Rows()))
	defer roi.Close()
	src.CopyTo(&roi)
}
