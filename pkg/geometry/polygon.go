package geometry

import (
	"image"
	"math"
)

// PolygonArea returns the unsigned area of a simple polygon using the
// shoelace formula. This matches cv::contourArea for closed contours.
func PolygonArea(polygon []image.Point) float64 {
	if len(polygon) < 3 {
		return 0
	}

	var sum float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += float64(polygon[i].X)*float64(polygon[j].Y) -
			float64(polygon[j].X)*float64(polygon[i].Y)
	}
	return math.Abs(sum) / 2
}

// Collinear reports whether three points lie on one line within tolerance.
// The tolerance is applied to twice the triangle area.
func Collinear(a, b, c Point2D, tolerance float64) bool {
	return math.Abs(crossProduct(a, b, c)) <= tolerance
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// distSq computes the squared distance between two points.
func distSq(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
