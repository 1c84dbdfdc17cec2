// Package vision wraps the OpenCV primitives the detectors are built on.
//
// The detectors only depend on the Primitives interface, so any provider that
// honours the same contracts can be substituted.
package vision

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gaze-markers/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrUnsupportedChannelCount is returned for frames that are neither
// single-channel gray nor 3-channel BGR.
var ErrUnsupportedChannelCount = errors.New("unsupported number of channels")

// ErrEmptyFrame is returned for frames with no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// Retrieval selects which contours are returned.
type Retrieval int

const (
	// RetrievalExternal returns only the outermost contours.
	RetrievalExternal Retrieval = iota
	// RetrievalList returns every contour without hierarchy.
	RetrievalList
)

func (r Retrieval) String() string {
	switch r {
	case RetrievalExternal:
		return "external"
	case RetrievalList:
		return "list"
	default:
		return "unknown"
	}
}

// ParseRetrieval maps a config string to a Retrieval mode.
func ParseRetrieval(s string) (Retrieval, error) {
	switch s {
	case "", "external":
		return RetrievalExternal, nil
	case "list", "all":
		return RetrievalList, nil
	default:
		return RetrievalExternal, fmt.Errorf("unknown contour retrieval mode %q", s)
	}
}

func (r Retrieval) mode() gocv.RetrievalMode {
	if r == RetrievalList {
		return gocv.RetrievalList
	}
	return gocv.RetrievalExternal
}

// Segment is a line segment returned by the probabilistic Hough transform.
type Segment struct {
	A, B image.Point
}

// Primitives is the set of image operations the detectors call into.
// Every returned Mat is owned by the caller and must be closed.
type Primitives interface {
	// Grayscale converts a 1- or 3-channel frame to a new single-channel Mat.
	Grayscale(src gocv.Mat) (gocv.Mat, error)
	// Blur applies a Gaussian blur with the given sigma.
	Blur(src gocv.Mat, sigma float64) gocv.Mat
	// Edges runs Canny edge detection.
	Edges(src gocv.Mat, low, high float64) gocv.Mat
	// Lines runs the probabilistic Hough transform over an edge map.
	Lines(edges gocv.Mat) []Segment
	// Contours extracts contours from an edge map.
	Contours(edges gocv.Mat, mode Retrieval) [][]image.Point
	// ApproxPolygon approximates a contour with a closed polygon whose
	// tolerance is epsilon times the contour's arc length.
	ApproxPolygon(contour []image.Point, epsilon float64) []image.Point
	// PerspectiveTransform solves the projective transform mapping each src
	// corner onto the matching dst corner. Degenerate quads fail with
	// geometry.ErrTransformSingular.
	PerspectiveTransform(src, dst geometry.Quad) (geometry.Homography, error)
	// Warp resamples src through a perspective transform into size.
	Warp(src gocv.Mat, h geometry.Homography, size image.Point) gocv.Mat
	// Resize area-resamples src to size.
	Resize(src gocv.Mat, size image.Point) gocv.Mat
}

// Hough parameters for the diagnostic line pass.
const (
	houghRho          = 1
	houghThreshold    = 20
	houghMinLineWidth = 30
	houghMaxLineGap   = 15
)

// OpenCV implements Primitives with gocv.
type OpenCV struct{}

// Default returns the gocv-backed primitives.
func Default() Primitives {
	return OpenCV{}
}

// Grayscale converts BGR input to gray and clones gray input.
func (OpenCV) Grayscale(src gocv.Mat) (gocv.Mat, error) {
	switch src.Channels() {
	case 1:
		return src.Clone(), nil
	case 3:
		gray := gocv.NewMat()
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
		return gray, nil
	default:
		return gocv.Mat{}, fmt.Errorf("%w: %d", ErrUnsupportedChannelCount, src.Channels())
	}
}

// Blur applies a Gaussian blur; the kernel size is derived from sigma.
func (OpenCV) Blur(src gocv.Mat, sigma float64) gocv.Mat {
	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, image.Point{}, sigma, 0, gocv.BorderDefault)
	return dst
}

// Edges runs Canny with the given hysteresis thresholds.
func (OpenCV) Edges(src gocv.Mat, low, high float64) gocv.Mat {
	edges := gocv.NewMat()
	gocv.Canny(src, &edges, float32(low), float32(high))
	return edges
}

// Lines runs HoughLinesP with a 1px / 1° resolution.
func (OpenCV) Lines(edges gocv.Mat) []Segment {
	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, houghRho, math.Pi/180, houghThreshold,
		houghMinLineWidth, houghMaxLineGap)

	segments := make([]Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		segments = append(segments, Segment{
			A: image.Point{X: int(v[0]), Y: int(v[1])},
			B: image.Point{X: int(v[2]), Y: int(v[3])},
		})
	}
	return segments
}

// Contours runs FindContours with simple chain approximation.
func (OpenCV) Contours(edges gocv.Mat, mode Retrieval) [][]image.Point {
	contours := gocv.FindContours(edges, mode.mode(), gocv.ChainApproxSimple)
	defer contours.Close()
	return contours.ToPoints()
}

// ApproxPolygon runs ApproxPolyDP with a tolerance proportional to the
// open-curve arc length of the contour.
func (OpenCV) ApproxPolygon(contour []image.Point, epsilon float64) []image.Point {
	if len(contour) == 0 {
		return nil
	}
	pv := gocv.NewPointVectorFromPoints(contour)
	defer pv.Close()

	approx := gocv.ApproxPolyDP(pv, gocv.ArcLength(pv, false)*epsilon, true)
	defer approx.Close()
	return approx.ToPoints()
}

// PerspectiveTransform runs GetPerspectiveTransform on the two quads after
// rejecting degenerate corners.
func (OpenCV) PerspectiveTransform(src, dst geometry.Quad) (geometry.Homography, error) {
	if err := geometry.CheckDegenerate(src); err != nil {
		return geometry.Homography{}, fmt.Errorf("source corners: %w", err)
	}
	if err := geometry.CheckDegenerate(dst); err != nil {
		return geometry.Homography{}, fmt.Errorf("destination corners: %w", err)
	}

	sv := gocv.NewPoint2fVectorFromPoints(point2f(src))
	defer sv.Close()
	dv := gocv.NewPoint2fVectorFromPoints(point2f(dst))
	defer dv.Close()

	m := gocv.GetPerspectiveTransform2f(sv, dv)
	defer m.Close()
	if m.Empty() || m.Rows() != 3 || m.Cols() != 3 {
		return geometry.Homography{}, geometry.ErrTransformSingular
	}

	var h geometry.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := m.GetDoubleAt(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return geometry.Homography{}, geometry.ErrTransformSingular
			}
			h[r*3+c] = v
		}
	}
	return h, nil
}

func point2f(q geometry.Quad) []gocv.Point2f {
	pts := make([]gocv.Point2f, len(q))
	for i, p := range q {
		pts[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return pts
}

// Warp applies a perspective transform.
func (OpenCV) Warp(src gocv.Mat, h geometry.Homography, size image.Point) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, h.At(r, c))
		}
	}

	dst := gocv.NewMat()
	gocv.WarpPerspective(src, &dst, m, size)
	return dst
}

// Resize area-resamples, which averages each destination cell.
func (OpenCV) Resize(src gocv.Mat, size image.Point) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, size, 0, 0, gocv.InterpolationArea)
	return dst
}

// CheckFrame verifies that src is a non-empty 1- or 3-channel image.
func CheckFrame(src gocv.Mat) error {
	if src.Empty() {
		return ErrEmptyFrame
	}
	if c := src.Channels(); c != 1 && c != 3 {
		return fmt.Errorf("%w: %d", ErrUnsupportedChannelCount, c)
	}
	return nil
}

// ToBGR returns a 3-channel copy of src for drawing colored overlays.
func ToBGR(src gocv.Mat) (gocv.Mat, error) {
	switch src.Channels() {
	case 3:
		return src.Clone(), nil
	case 1:
		dst := gocv.NewMat()
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
		return dst, nil
	default:
		return gocv.Mat{}, fmt.Errorf("%w: %d", ErrUnsupportedChannelCount, src.Channels())
	}
}
