// Package features defines the closed set of things a detector can report
// for a frame: markers, the rectified surface and the screen outline.
package features

import (
	"fmt"
	"time"

	"gaze-markers/internal/marker"
	"gaze-markers/internal/screen"
	"gaze-markers/internal/surface"
	"gaze-markers/pkg/geometry"
)

// Kind tags the variant held by a Feature.
type Kind int

const (
	KindMarker Kind = iota
	KindSurface
	KindScreen
)

func (k Kind) String() string {
	switch k {
	case KindMarker:
		return "marker"
	case KindSurface:
		return "surface"
	case KindScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// Feature is a tagged variant; exactly the field matching Kind is set.
type Feature struct {
	Kind    Kind
	Marker  *marker.Marker
	Surface *surface.Surface
	Screen  *screen.Screen
}

// FromMarker wraps a decoded marker.
func FromMarker(m marker.Marker) Feature {
	return Feature{Kind: KindMarker, Marker: &m}
}

// FromSurface wraps a surface. The surface keeps ownership of its image.
func FromSurface(s *surface.Surface) Feature {
	return Feature{Kind: KindSurface, Surface: s}
}

// FromScreen wraps a screen outline.
func FromScreen(s screen.Screen) Feature {
	return Feature{Kind: KindScreen, Screen: &s}
}

// ID returns a stable name for the feature within a frame.
func (f Feature) ID() string {
	switch f.Kind {
	case KindMarker:
		return fmt.Sprintf("marker-%d", f.Marker.ID)
	default:
		return f.Kind.String()
	}
}

// Detected reports whether the feature was found.
func (f Feature) Detected() bool {
	switch f.Kind {
	case KindMarker:
		return f.Marker != nil && f.Marker.Detected
	case KindSurface:
		return f.Surface.Detected()
	case KindScreen:
		return f.Screen != nil && f.Screen.Detected
	default:
		return false
	}
}

// Bounds returns the feature's bounding box in frame coordinates.
func (f Feature) Bounds() geometry.RectInt {
	switch {
	case f.Kind == KindMarker && f.Marker != nil:
		return f.Marker.Bounds
	case f.Kind == KindSurface && f.Surface != nil:
		return f.Surface.Bounds
	case f.Kind == KindScreen && f.Screen != nil:
		return f.Screen.Bounds
	default:
		return geometry.RectInt{}
	}
}

// Timestamp returns when the feature was detected.
func (f Feature) Timestamp() time.Time {
	switch {
	case f.Kind == KindMarker && f.Marker != nil:
		return f.Marker.Timestamp
	case f.Kind == KindSurface && f.Surface != nil:
		return f.Surface.Timestamp
	case f.Kind == KindScreen && f.Screen != nil:
		return f.Screen.Timestamp
	default:
		return time.Time{}
	}
}

// HitTest returns true if (x, y) lies within the feature's bounds.
func (f Feature) HitTest(x, y float64) bool {
	b := f.Bounds()
	return x >= float64(b.X) && x <= float64(b.X+b.Width) &&
		y >= float64(b.Y) && y <= float64(b.Y+b.Height)
}

func (f Feature) String() string {
	switch {
	case f.Kind == KindMarker && f.Marker != nil:
		return f.Marker.String()
	case f.Kind == KindScreen && f.Screen != nil:
		return f.Screen.String()
	case f.Kind == KindSurface && f.Surface != nil:
		return fmt.Sprintf("surface (%s)", f.Surface.Status)
	default:
		return f.Kind.String()
	}
}
