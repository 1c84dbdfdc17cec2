package marker

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Cells returns the grid as a 5x5 single-channel Mat with black cells at 0
// and white cells at 255.
func (g Grid) Cells() gocv.Mat {
	m := gocv.NewMatWithSize(GridSize, GridSize, gocv.MatTypeCV8U)
	for i := 0; i < GridSize; i++ {
		for j := 0; j < GridSize; j++ {
			m.SetUCharAt(i, j, g[i][j]*255)
		}
	}
	return m
}

// Render draws the marker for id with cellSize pixels per cell, surrounded by
// a one-cell white quiet zone. The result is a single-channel Mat of
// (GridSize+2)*cellSize pixels per side.
func Render(id int, cellSize int) (gocv.Mat, error) {
	if cellSize <= 0 {
		return gocv.Mat{}, fmt.Errorf("invalid cell size %d", cellSize)
	}
	g, err := GridFor(id)
	if err != nil {
		return gocv.Mat{}, err
	}

	side := (GridSize + 2) * cellSize
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), side, side, gocv.MatTypeCV8U)
	for i := 0; i < GridSize; i++ {
		for j := 0; j < GridSize; j++ {
			if g[i][j] != 0 {
				continue
			}
			x := (j + 1) * cellSize
			y := (i + 1) * cellSize
			gocv.Rectangle(&m, image.Rect(x, y, x+cellSize, y+cellSize), color.RGBA{}, -1)
		}
	}
	return m, nil
}
