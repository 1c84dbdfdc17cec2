// Package screen finds the largest quadrilateral in a frame, typically a
// display or a sheet of paper.
package screen

import (
	"fmt"
	"image"
	"time"

	"gaze-markers/pkg/geometry"
)

// Screen is the quadrilateral found in a frame.
type Screen struct {
	Detected  bool
	Corners   geometry.Quad // TL, TR, BL, BR
	Bounds    geometry.RectInt
	Area      float64
	Timestamp time.Time
}

func (s Screen) String() string {
	if !s.Detected {
		return "no screen"
	}
	return fmt.Sprintf("screen %dx%d at (%d,%d)", s.Bounds.Width, s.Bounds.Height, s.Bounds.X, s.Bounds.Y)
}

// Params configures screen detection.
type Params struct {
	CannyLow   float64
	CannyHigh  float64
	Epsilon    float64 // polygon tolerance as a fraction of the perimeter
	MinArea    float64
	DilateSize int
}

// DefaultParams returns the default screen parameters.
func DefaultParams() Params {
	return Params{
		CannyLow:   180,
		CannyHigh:  120,
		Epsilon:    0.05,
		MinArea:    5000,
		DilateSize: 3,
	}
}

// WithMinArea returns a copy with a new minimum area.
func (p Params) WithMinArea(area float64) Params {
	p.MinArea = area
	return p
}

// WithCanny returns a copy with new Canny thresholds.
func (p Params) WithCanny(low, high float64) Params {
	p.CannyLow = low
	p.CannyHigh = high
	return p
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.Epsilon <= 0 || p.Epsilon >= 1 {
		return fmt.Errorf("screen epsilon %.3f outside (0,1)", p.Epsilon)
	}
	if p.MinArea < 0 {
		return fmt.Errorf("screen min area %.0f is negative", p.MinArea)
	}
	if p.CannyLow <= 0 || p.CannyHigh <= 0 {
		return fmt.Errorf("screen canny thresholds must be positive")
	}
	if p.DilateSize < 1 {
		return fmt.Errorf("screen dilate size %d must be at least 1", p.DilateSize)
	}
	return nil
}

// largestQuad returns the largest 4-vertex polygon with area above minArea.
func largestQuad(polygons [][]image.Point, minArea float64) ([]image.Point, float64) {
	var best []image.Point
	var bestArea float64
	for _, poly := range polygons {
		if len(poly) != 4 {
			continue
		}
		area := geometry.PolygonArea(poly)
		if area <= minArea || area <= bestArea {
			continue
		}
		best, bestArea = poly, area
	}
	return best, bestArea
}
