package detector

import (
	"image"

	"gaze-markers/pkg/geometry"
)

// maxAspect bounds the bounding-box aspect ratio of a candidate either way.
const maxAspect = 3

// Candidate is a 4-vertex polygon that may be a marker.
type Candidate struct {
	Points [4]image.Point
	Area   float64
	Bounds image.Rectangle
}

// Corners returns the vertices as integer points.
func (c Candidate) Corners() [4]geometry.PointInt {
	var pts [4]geometry.PointInt
	for i, p := range c.Points {
		pts[i] = geometry.FromImagePoint(p)
	}
	return pts
}

// AcceptCandidate keeps polygons with exactly four vertices, an area above
// minArea and a bounding box no more elongated than 3:1.
func AcceptCandidate(polygon []image.Point, minArea float64) (Candidate, bool) {
	if len(polygon) != 4 {
		return Candidate{}, false
	}

	area := geometry.PolygonArea(polygon)
	if area <= minArea {
		return Candidate{}, false
	}

	bounds := boundingRect(polygon)
	w, h := bounds.Dx(), bounds.Dy()
	if h > maxAspect*w || w > maxAspect*h {
		return Candidate{}, false
	}

	c := Candidate{Area: area, Bounds: bounds}
	copy(c.Points[:], polygon)
	return c, true
}

// boundingRect matches cv::boundingRect: the max edge is inclusive.
func boundingRect(pts []image.Point) image.Rectangle {
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Point{X: 1, Y: 1})
	return r
}
