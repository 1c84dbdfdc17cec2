package detector

import (
	"fmt"
	"image"

	"gaze-markers/internal/marker"
	"gaze-markers/internal/vision"
)

// Params configures marker detection.
type Params struct {
	// Contour filtering
	MinArea float64 // polygons must be strictly larger (px²)
	Epsilon float64 // ApproxPolyDP tolerance as a fraction of arc length

	// Edge detection
	BlurSigma float64
	CannyLow  float64
	CannyHigh float64
	Retrieval vision.Retrieval

	// Decoding
	PatchSize int   // side of the rectified candidate patch, px
	Threshold uint8 // cells below this are black

	// Surface
	FindSurface           bool
	PerspectiveCorrection bool
	SurfaceSize           image.Point

	// Debug logs rejected candidates and draws the Hough segments.
	Debug bool
}

// DefaultParams returns default marker detection parameters.
func DefaultParams() Params {
	return Params{
		MinArea:               250,
		Epsilon:               0.05,
		BlurSigma:             1,
		CannyLow:              100,
		CannyHigh:             200,
		Retrieval:             vision.RetrievalExternal,
		PatchSize:             50,
		Threshold:             marker.DefaultThreshold,
		FindSurface:           true,
		PerspectiveCorrection: true,
		SurfaceSize:           image.Point{X: 640, Y: 480},
	}
}

// WithMinArea returns a copy of params with a new minimum candidate area.
func (p Params) WithMinArea(area float64) Params {
	p.MinArea = area
	return p
}

// WithCanny returns a copy of params with new Canny thresholds.
func (p Params) WithCanny(low, high float64) Params {
	p.CannyLow = low
	p.CannyHigh = high
	return p
}

// WithSurface returns a copy of params with the surface output configured.
func (p Params) WithSurface(find bool, size image.Point, perspective bool) Params {
	p.FindSurface = find
	p.SurfaceSize = size
	p.PerspectiveCorrection = perspective
	return p
}

// WithRetrieval returns a copy of params with a contour retrieval mode.
func (p Params) WithRetrieval(r vision.Retrieval) Params {
	p.Retrieval = r
	return p
}

// WithDebug returns a copy of params with debug output toggled.
func (p Params) WithDebug(debug bool) Params {
	p.Debug = debug
	return p
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.MinArea < 0 {
		return fmt.Errorf("min area %.0f is negative", p.MinArea)
	}
	if p.Epsilon <= 0 || p.Epsilon >= 1 {
		return fmt.Errorf("epsilon %.3f outside (0,1)", p.Epsilon)
	}
	if p.BlurSigma <= 0 {
		return fmt.Errorf("blur sigma %.2f must be positive", p.BlurSigma)
	}
	if p.CannyLow <= 0 || p.CannyLow > p.CannyHigh {
		return fmt.Errorf("invalid canny thresholds: low=%.0f high=%.0f", p.CannyLow, p.CannyHigh)
	}
	if p.PatchSize < marker.GridSize {
		return fmt.Errorf("patch size %d smaller than the %d-cell grid", p.PatchSize, marker.GridSize)
	}
	if p.FindSurface && (p.SurfaceSize.X <= 0 || p.SurfaceSize.Y <= 0) {
		return fmt.Errorf("invalid surface size %dx%d", p.SurfaceSize.X, p.SurfaceSize.Y)
	}
	return nil
}
