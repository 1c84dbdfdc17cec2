package geometry

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is returned when four points cannot be split into
// two points above and two points below their centroid.
var ErrInvalidGeometry = errors.New("invalid quadrilateral geometry")

// Corner indexes into a Quad.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return "unknown"
	}
}

// Quad holds four corners ordered TL, TR, BL, BR.
type Quad [4]Point2D

// At returns the given corner.
func (q Quad) At(c Corner) Point2D {
	return q[c]
}

// Points returns the corners as a slice in TL, TR, BL, BR order.
func (q Quad) Points() []Point2D {
	return []Point2D{q[0], q[1], q[2], q[3]}
}

// Outline returns the corners in drawing order (TL, TR, BR, BL).
func (q Quad) Outline() [4]Point2D {
	return [4]Point2D{q[TopLeft], q[TopRight], q[BottomRight], q[BottomLeft]}
}

// Bounds returns the axis-aligned span of the corners.
func (q Quad) Bounds() RectInt {
	return BoundingBox(q.Points())
}

// OrderedCorners is the result of sorting four points around their centroid.
type OrderedCorners struct {
	Corners  Quad
	Centroid PointInt
}

// SortCorners orders four points as top-left, top-right, bottom-left,
// bottom-right.
//
// The centroid is the truncating integer mean. Points with Y strictly less
// than the centroid's Y are "top", the rest are "bottom"; within each half the
// point with the smaller X is "left". Each half must hold exactly two points.
func SortCorners(points [4]PointInt) (OrderedCorners, error) {
	var sumX, sumY int
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	centroid := PointInt{X: sumX / len(points), Y: sumY / len(points)}

	var top, bottom []PointInt
	for _, p := range points {
		if p.Y < centroid.Y {
			top = append(top, p)
		} else {
			bottom = append(bottom, p)
		}
	}

	if len(top) != 2 || len(bottom) != 2 {
		return OrderedCorners{Centroid: centroid}, fmt.Errorf("%w: %d points above centroid %v, %d below",
			ErrInvalidGeometry, len(top), centroid, len(bottom))
	}

	tl, tr := leftRight(top[0], top[1])
	bl, br := leftRight(bottom[0], bottom[1])

	return OrderedCorners{
		Corners:  Quad{tl.ToFloat(), tr.ToFloat(), bl.ToFloat(), br.ToFloat()},
		Centroid: centroid,
	}, nil
}

// leftRight returns the pair ordered by X. Ties keep the input order.
func leftRight(a, b PointInt) (PointInt, PointInt) {
	if a.X > b.X {
		return b, a
	}
	return a, b
}
