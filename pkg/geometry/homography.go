package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrTransformSingular is returned when four point correspondences do not
// determine a projective transform.
var ErrTransformSingular = errors.New("perspective transform is singular")

// degenerateTolerance bounds twice the triangle area (in px²) below which
// three corners are treated as collinear.
const degenerateTolerance = 1e-6

// Homography is a 3x3 projective transform stored row-major.
// [h0 h1 h2]
// [h3 h4 h5]
// [h6 h7 h8]
type Homography [9]float64

// Apply maps a point through the transform.
func (h Homography) Apply(p Point2D) Point2D {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	return Point2D{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// At returns the element at row r, column c.
func (h Homography) At(r, c int) float64 {
	return h[r*3+c]
}

// RectQuad returns the corners of r as a quad.
func RectQuad(r RectInt) Quad {
	x0, y0 := float64(r.X), float64(r.Y)
	x1, y1 := float64(r.X+r.Width), float64(r.Y+r.Height)
	return Quad{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}}
}

// RectangleQuad returns the destination quad for a width x height output,
// ordered TL, TR, BL, BR.
func RectangleQuad(width, height float64) Quad {
	return Quad{
		{X: 0, Y: 0},
		{X: width, Y: 0},
		{X: 0, Y: height},
		{X: width, Y: height},
	}
}

// Inverse returns the transform mapping dst back to src, normalized so that
// h8 is 1.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrTransformSingular, err)
	}

	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	if out[8] != 0 {
		scale := out[8]
		for i := range out {
			out[i] /= scale
		}
	}
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, ErrTransformSingular
		}
	}
	return out, nil
}

// CheckDegenerate rejects quads with coincident corners or any three
// collinear corners. Such quads do not determine a projective transform.
func CheckDegenerate(q Quad) error {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if distSq(q[i], q[j]) < degenerateTolerance {
				return fmt.Errorf("%w: corners %s and %s coincide", ErrTransformSingular, Corner(i), Corner(j))
			}
		}
	}

	triples := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	for _, t := range triples {
		if Collinear(q[t[0]], q[t[1]], q[t[2]], degenerateTolerance) {
			return fmt.Errorf("%w: corners %s, %s, %s are collinear",
				ErrTransformSingular, Corner(t[0]), Corner(t[1]), Corner(t[2]))
		}
	}
	return nil
}
