// Package rectify maps a quadrilateral image region onto an axis-aligned
// rectangle through a projective transform.
package rectify

import (
	"fmt"
	"image"

	"gaze-markers/internal/vision"
	"gaze-markers/pkg/geometry"

	"gocv.io/x/gocv"
)

// Rectifier warps quads using a set of vision primitives.
type Rectifier struct {
	prims vision.Primitives
}

// New returns a Rectifier. A nil prims uses the OpenCV primitives.
func New(prims vision.Primitives) *Rectifier {
	if prims == nil {
		prims = vision.Default()
	}
	return &Rectifier{prims: prims}
}

// Transform returns the homography mapping q onto a size.X x size.Y
// rectangle.
func (r *Rectifier) Transform(q geometry.Quad, size image.Point) (geometry.Homography, error) {
	if size.X <= 0 || size.Y <= 0 {
		return geometry.Homography{}, fmt.Errorf("invalid output size %dx%d", size.X, size.Y)
	}
	h, err := r.prims.PerspectiveTransform(q, geometry.RectangleQuad(float64(size.X), float64(size.Y)))
	if err != nil {
		return geometry.Homography{}, fmt.Errorf("rectify: %w", err)
	}
	return h, nil
}

// Rectify returns a new size.X x size.Y Mat holding the region of src bounded
// by q, mapped TL->(0,0), TR->(W,0), BL->(0,H), BR->(W,H), together with the
// transform used. src is not modified. Degenerate corners fail with
// geometry.ErrTransformSingular.
func (r *Rectifier) Rectify(src gocv.Mat, size image.Point, q geometry.Quad) (gocv.Mat, geometry.Homography, error) {
	h, err := r.Transform(q, size)
	if err != nil {
		return gocv.Mat{}, geometry.Homography{}, err
	}
	return r.prims.Warp(src, h, size), h, nil
}

// Downsample area-resamples a rectified patch to a cells x cells grid.
func (r *Rectifier) Downsample(patch gocv.Mat, cells int) gocv.Mat {
	return r.prims.Resize(patch, image.Point{X: cells, Y: cells})
}

// Crop returns the axis-aligned region of src, clamped to its bounds, resized
// to size, together with the scale-and-offset transform it applies. It is used
// when perspective correction is disabled.
func (r *Rectifier) Crop(src gocv.Mat, region geometry.RectInt, size image.Point) (gocv.Mat, geometry.Homography, error) {
	rect := region.Image().Intersect(image.Rect(0, 0, src.Cols(), src.Rows()))
	if rect.Empty() {
		return gocv.Mat{}, geometry.Homography{}, fmt.Errorf("crop region %v outside %dx%d image", region, src.Cols(), src.Rows())
	}
	clamped := geometry.RectInt{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
	h, err := r.Transform(geometry.RectQuad(clamped), size)
	if err != nil {
		return gocv.Mat{}, geometry.Homography{}, err
	}

	roi := src.Region(rect)
	defer roi.Close()
	return r.prims.Resize(roi, size), h, nil
}
