package marker

import (
	"errors"
	"fmt"

	"gaze-markers/pkg/geometry"

	"github.com/benbjohnson/clock"
	"gocv.io/x/gocv"
)

// ErrDecodeRejected is returned when a grid is not a valid marker. It is an
// expected outcome for most candidates in a frame.
var ErrDecodeRejected = errors.New("marker rejected")

// DefaultThreshold separates black cells from white cells.
const DefaultThreshold = 100

// maxPasses bounds the orientation search: one rotation, then a recheck.
const maxPasses = 2

// Decoder turns a 5x5 grayscale cell grid into a Marker.
type Decoder struct {
	Threshold uint8
	clock     clock.Clock
}

// NewDecoder creates a decoder. A nil clock uses the wall clock.
func NewDecoder(threshold uint8, clk clock.Clock) *Decoder {
	if clk == nil {
		clk = clock.New()
	}
	return &Decoder{Threshold: threshold, clock: clk}
}

// Decode reads the marker in cells, a single-channel 5x5 Mat sampled from the
// rectified candidate. center and corners are the candidate's frame
// coordinates and are copied into the result.
func (d *Decoder) Decode(cells gocv.Mat, center geometry.PointInt, corners geometry.Quad) (Marker, error) {
	if cells.Empty() || cells.Rows() != GridSize || cells.Cols() != GridSize || cells.Channels() != 1 {
		return Marker{}, fmt.Errorf("%w: expected %dx%d single-channel grid, got %dx%dx%d",
			ErrDecodeRejected, GridSize, GridSize, cells.Cols(), cells.Rows(), cells.Channels())
	}

	img := cells.Clone()
	defer func() { img.Close() }()

	rotation := Rotation0
	var grid Grid
	for pass := 0; ; pass++ {
		grid = d.binarize(img)
		if !grid.borderIsBlack() {
			return Marker{}, fmt.Errorf("%w: border is not black", ErrDecodeRejected)
		}

		r, ok := grid.orientation()
		if !ok {
			return Marker{}, fmt.Errorf("%w: no orientation corner", ErrDecodeRejected)
		}
		if r == Rotation0 {
			break
		}
		if pass+1 >= maxPasses {
			return Marker{}, fmt.Errorf("%w: orientation unresolved after %d passes", ErrDecodeRejected, maxPasses)
		}

		rotation = r
		rotated := rotateClockwise(img, 360-int(r))
		img.Close()
		img = rotated
	}

	return Marker{
		ID:        grid.id(),
		Rotation:  rotation,
		Corners:   corners,
		Center:    center,
		Bounds:    corners.Bounds(),
		Detected:  true,
		Timestamp: d.clock.Now(),
		Cells:     grid,
	}, nil
}

func (d *Decoder) binarize(img gocv.Mat) Grid {
	var g Grid
	for i := 0; i < GridSize; i++ {
		for j := 0; j < GridSize; j++ {
			if img.GetUCharAt(i, j) >= d.Threshold {
				g[i][j] = 1
			}
		}
	}
	return g
}

// rotateClockwise rotates by 90, 180 or 270 degrees.
func rotateClockwise(img gocv.Mat, degrees int) gocv.Mat {
	dst := gocv.NewMat()

	switch degrees % 360 {
	case 90:
		gocv.Rotate(img, &dst, gocv.Rotate90Clockwise)
	case 180:
		gocv.Rotate(img, &dst, gocv.Rotate180Clockwise)
	case 270:
		gocv.Rotate(img, &dst, gocv.Rotate90CounterClockwise)
	default:
		img.CopyTo(&dst)
	}

	return dst
}
