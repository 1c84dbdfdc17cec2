package marker

import "fmt"

// borderIsBlack reports whether every outer-ring cell is 0.
func (g Grid) borderIsBlack() bool {
	for i := 0; i < GridSize; i++ {
		for j := 0; j < GridSize; j++ {
			if i != 0 && j != 0 && i != GridSize-1 && j != GridSize-1 {
				continue
			}
			if g[i][j] != 0 {
				return false
			}
		}
	}
	return true
}

// orientation tests the four rotation hypotheses on the inner corners and
// returns the rotation of the marker. Exactly one hypothesis can match when
// three corners agree and the fourth differs.
func (g Grid) orientation() (Rotation, bool) {
	tl, tr := g.At(cellTopLeft), g.At(cellTopRight)
	bl, br := g.At(cellBottomLeft), g.At(cellBottomRight)

	switch {
	case tl == br && tl == tr && tl != bl:
		return Rotation0, true
	case tr == br && tr == bl && tl != br: // odd corner top-left
		return Rotation90, true
	case tl == br && tl == bl && tl != tr: // odd corner top-right
		return Rotation180, true
	case tl == bl && tl == tr && tl != br: // odd corner bottom-right
		return Rotation270, true
	default:
		return 0, false
	}
}

// polarity returns the shared value of the three matching inner corners of
// an oriented grid.
func (g Grid) polarity() uint8 {
	return g.At(cellTopLeft)
}

// id reads the payload MSB first and adds 2^5 when the polarity is 0.
func (g Grid) id() int {
	id := 0
	for i, c := range payloadCells {
		if g.At(c) == 1 {
			id += 1 << (len(payloadCells) - 1 - i)
		}
	}
	if g.polarity() == 0 {
		id += 1 << len(payloadCells)
	}
	return id
}

// GridFor returns the canonical (rotation 0) grid that encodes id.
func GridFor(id int) (Grid, error) {
	if id < 0 || id > MaxID {
		return Grid{}, fmt.Errorf("marker id %d out of range 0-%d", id, MaxID)
	}

	var g Grid
	var polarity uint8 = 1
	if id >= 1<<len(payloadCells) {
		polarity = 0
	}
	for _, c := range []Cell{cellTopLeft, cellTopRight, cellBottomRight} {
		g[c.Row][c.Col] = polarity
	}
	g[cellBottomLeft.Row][cellBottomLeft.Col] = 1 - polarity

	for i, c := range payloadCells {
		bit := (id >> (len(payloadCells) - 1 - i)) & 1
		g[c.Row][c.Col] = uint8(bit)
	}
	return g, nil
}
