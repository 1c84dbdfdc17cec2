package detector

import (
	"image"
	"image/color"
	"strconv"

	"gaze-markers/internal/features"
	"gaze-markers/internal/marker"
	"gaze-markers/internal/surface"
	"gaze-markers/internal/vision"
	"gaze-markers/pkg/geometry"

	"gocv.io/x/gocv"
)

var segmentColor = color.RGBA{128, 128, 255, 255}

// drawPolygon outlines a closed polygon.
func drawPolygon(img *gocv.Mat, pts []image.Point, c color.RGBA) {
	for i := range pts {
		gocv.Line(img, pts[i], pts[(i+1)%len(pts)], c, 2)
	}
}

// drawQuad outlines a quad given in TL, TR, BL, BR order.
func drawQuad(img *gocv.Mat, q geometry.Quad, c color.RGBA) {
	outline := q.Outline()
	pts := make([]image.Point, len(outline))
	for i, p := range outline {
		pts[i] = p.Image()
	}
	drawPolygon(img, pts, c)
}

// drawSurfaceCenter marks the frame point that lands at the center of the
// rectified surface.
func drawSurfaceCenter(img *gocv.Mat, s *surface.Surface) {
	center := geometry.Point2D{X: float64(s.Image.Cols()) / 2, Y: float64(s.Image.Rows()) / 2}
	p, err := s.ToFrame(center)
	if err != nil {
		return
	}
	gocv.Circle(img, p.Image(), 6, features.SurfaceColor, 2)
}

// downCorners returns the frame corners of the marker's bottom edge.
func downCorners(m marker.Marker) (geometry.Point2D, geometry.Point2D) {
	q := m.Corners
	switch m.Rotation {
	case marker.Rotation90:
		return q[geometry.TopLeft], q[geometry.BottomLeft]
	case marker.Rotation180:
		return q[geometry.TopLeft], q[geometry.TopRight]
	case marker.Rotation270:
		return q[geometry.TopRight], q[geometry.BottomRight]
	default:
		return q[geometry.BottomLeft], q[geometry.BottomRight]
	}
}

// drawDirection draws lines from the marker's bottom corners to its center
// and labels it with its ID.
func drawDirection(img *gocv.Mat, m marker.Marker) {
	c := features.ColorForID(m.ID)
	center := m.Center.Image()
	a, b := downCorners(m)
	gocv.Line(img, a.Image(), center, c, 2)
	gocv.Line(img, b.Image(), center, c, 2)
	gocv.PutText(img, strconv.Itoa(m.ID), center.Add(image.Point{X: 4, Y: -4}),
		gocv.FontHersheyComplexSmall, 1, c, 1)
}

func drawSegments(img *gocv.Mat, segs []vision.Segment) {
	for _, s := range segs {
		gocv.Line(img, s.A, s.B, segmentColor, 1)
	}
}
