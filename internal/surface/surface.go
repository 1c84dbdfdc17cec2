// Package surface rectifies the planar region bounded by four marker centers.
package surface

import (
	"fmt"
	"image"
	"math"
	"time"

	"gaze-markers/internal/rectify"
	"gaze-markers/pkg/geometry"

	"gocv.io/x/gocv"
)

// Status describes the outcome of a surface extraction.
type Status int

const (
	// StatusNotApplicable means the frame did not hold exactly four markers.
	StatusNotApplicable Status = iota
	// StatusDetected means the surface was rectified and Image is valid.
	StatusDetected
	// StatusFailed means four markers were found but their centers did not
	// form a usable quadrilateral.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotApplicable:
		return "not-applicable"
	case StatusDetected:
		return "detected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Surface is the rectified region bounded by four markers.
type Surface struct {
	Status    Status
	Corners   geometry.Quad
	Bounds    geometry.RectInt
	Image     gocv.Mat // only set when Status is StatusDetected
	Timestamp time.Time
	Err       error // cause of StatusFailed

	// Transform maps frame coordinates into Image coordinates.
	Transform geometry.Homography
}

// Detected reports whether a rectified image is available.
func (s *Surface) Detected() bool {
	return s != nil && s.Status == StatusDetected
}

// ToSurface maps a frame point into the rectified image. ok is false when no
// surface was detected or the point falls outside it.
func (s *Surface) ToSurface(p geometry.Point2D) (geometry.Point2D, bool) {
	if !s.Detected() {
		return geometry.Point2D{}, false
	}
	q := s.Transform.Apply(p)
	if math.IsNaN(q.X) || math.IsNaN(q.Y) || math.IsInf(q.X, 0) || math.IsInf(q.Y, 0) {
		return geometry.Point2D{}, false
	}
	if q.X < 0 || q.Y < 0 || q.X >= float64(s.Image.Cols()) || q.Y >= float64(s.Image.Rows()) {
		return q, false
	}
	return q, true
}

// ToFrame maps a point of the rectified image back into the frame.
func (s *Surface) ToFrame(p geometry.Point2D) (geometry.Point2D, error) {
	if !s.Detected() {
		return geometry.Point2D{}, fmt.Errorf("surface %s", s.Status)
	}
	inv, err := s.Transform.Inverse()
	if err != nil {
		return geometry.Point2D{}, err
	}
	return inv.Apply(p), nil
}

// Close releases the rectified image.
func (s *Surface) Close() error {
	if s == nil || s.Status != StatusDetected {
		return nil
	}
	return s.Image.Close()
}

// Extractor produces surfaces of a fixed output size.
type Extractor struct {
	rect        *rectify.Rectifier
	Size        image.Point
	Perspective bool
}

// NewExtractor returns an Extractor. A nil rectifier uses the OpenCV one.
func NewExtractor(rect *rectify.Rectifier, size image.Point, perspective bool) *Extractor {
	if rect == nil {
		rect = rectify.New(nil)
	}
	return &Extractor{rect: rect, Size: size, Perspective: perspective}
}

// Extract rectifies the quadrilateral whose corners are the four centers.
// With perspective disabled the bounding box of the centers is cropped and
// resized instead.
func (e *Extractor) Extract(src gocv.Mat, centers []geometry.PointInt, now time.Time) Surface {
	if len(centers) != 4 {
		return Surface{Status: StatusNotApplicable, Timestamp: now}
	}

	ordered, err := geometry.SortCorners([4]geometry.PointInt{centers[0], centers[1], centers[2], centers[3]})
	if err != nil {
		return failed(now, fmt.Errorf("sort surface corners: %w", err))
	}

	s := Surface{
		Corners:   ordered.Corners,
		Bounds:    ordered.Corners.Bounds(),
		Timestamp: now,
	}

	var img gocv.Mat
	var h geometry.Homography
	if e.Perspective {
		img, h, err = e.rect.Rectify(src, e.Size, ordered.Corners)
	} else {
		img, h, err = e.rect.Crop(src, s.Bounds, e.Size)
	}
	if err != nil {
		s.Status = StatusFailed
		s.Err = fmt.Errorf("rectify surface: %w", err)
		return s
	}

	s.Status = StatusDetected
	s.Image = img
	s.Transform = h
	return s
}

// Extract is a convenience wrapper around a one-off Extractor.
func Extract(src gocv.Mat, centers []geometry.PointInt, size image.Point, perspective bool, now time.Time) Surface {
	return NewExtractor(nil, size, perspective).Extract(src, centers, now)
}

func failed(now time.Time, err error) Surface {
	return Surface{Status: StatusFailed, Timestamp: now, Err: err}
}
