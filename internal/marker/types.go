// Package marker decodes and renders 5x5 square fiducial markers.
//
// A marker is a 5x5 grid of cells: a black outer ring, four inner corner
// cells that fix orientation, and five payload cells. Three of the inner
// corners share one value (the polarity bit) and the fourth differs; in the
// canonical orientation the odd corner is the bottom-left one.
package marker

import (
	"fmt"
	"time"

	"gaze-markers/pkg/geometry"
)

// GridSize is the number of cells per side.
const GridSize = 5

// MaxID is the largest identifier: 5 payload bits plus the polarity bit.
const MaxID = 1<<6 - 1

// Rotation is the clockwise rotation of a marker as seen in the frame.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", int(r))
}

// Direction names where the marker's top edge points.
func (r Rotation) Direction() string {
	switch r {
	case Rotation0:
		return "top"
	case Rotation90:
		return "right"
	case Rotation180:
		return "bottom"
	case Rotation270:
		return "left"
	default:
		return "unknown"
	}
}

// Cell addresses a grid cell by row and column.
type Cell struct {
	Row, Col int
}

// Inner corner cells.
var (
	cellTopLeft     = Cell{1, 1}
	cellTopRight    = Cell{1, 3}
	cellBottomLeft  = Cell{3, 1}
	cellBottomRight = Cell{3, 3}
)

// payloadCells lists the payload cells most-significant bit first.
var payloadCells = [5]Cell{{3, 2}, {2, 3}, {2, 2}, {2, 1}, {1, 2}}

// Grid holds binarized cells: 0 is black, 1 is white.
type Grid [GridSize][GridSize]uint8

// At returns the value of a cell.
func (g Grid) At(c Cell) uint8 {
	return g[c.Row][c.Col]
}

// Marker is a decoded fiducial marker.
type Marker struct {
	ID        int               `json:"id"`
	Rotation  Rotation          `json:"rotation"`
	Corners   geometry.Quad     `json:"corners"` // TL, TR, BL, BR in frame coordinates
	Center    geometry.PointInt `json:"center"`
	Bounds    geometry.RectInt  `json:"bounds"`
	Detected  bool              `json:"detected"`
	Timestamp time.Time         `json:"timestamp"`
	Cells     Grid              `json:"-"` // oriented cells
}

func (m Marker) String() string {
	return fmt.Sprintf("marker %d (%s) at (%d,%d)", m.ID, m.Rotation.Direction(), m.Center.X, m.Center.Y)
}
