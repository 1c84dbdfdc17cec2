package detector

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptCandidate(t *testing.T) {
	tests := []struct {
		name    string
		polygon []image.Point
		minArea float64
		accept  bool
	}{
		{
			name:    "square",
			polygon: []image.Point{{10, 10}, {60, 10}, {60, 60}, {10, 60}},
			minArea: 250,
			accept:  true,
		},
		{
			name:    "skewed quad",
			polygon: []image.Point{{12, 8}, {70, 15}, {64, 66}, {5, 58}},
			minArea: 250,
			accept:  true,
		},
		{
			name:    "area at the limit",
			polygon: []image.Point{{0, 0}, {10, 0}, {10, 25}, {0, 25}},
			minArea: 250,
			accept:  false,
		},
		{
			name:    "too small",
			polygon: []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
			minArea: 250,
			accept:  false,
		},
		{
			name:    "triangle",
			polygon: []image.Point{{0, 0}, {100, 0}, {0, 100}},
			minArea: 250,
			accept:  false,
		},
		{
			name:    "pentagon",
			polygon: []image.Point{{50, 0}, {100, 40}, {80, 100}, {20, 100}, {0, 40}},
			minArea: 250,
			accept:  false,
		},
		{
			name:    "wide strip",
			polygon: []image.Point{{0, 0}, {200, 0}, {200, 40}, {0, 40}},
			minArea: 250,
			accept:  false,
		},
		{
			name:    "tall strip",
			polygon: []image.Point{{0, 0}, {40, 0}, {40, 200}, {0, 200}},
			minArea: 250,
			accept:  false,
		},
		{
			name:    "exactly 3:1",
			polygon: []image.Point{{0, 0}, {89, 0}, {89, 29}, {0, 29}},
			minArea: 250,
			accept:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := AcceptCandidate(tt.polygon, tt.minArea)
			assert.Equal(t, tt.accept, ok)
			if ok {
				assert.Greater(t, c.Area, tt.minArea)
			}
		})
	}
}

func TestCandidateFields(t *testing.T) {
	c, ok := AcceptCandidate([]image.Point{{10, 10}, {60, 10}, {60, 60}, {10, 60}}, 0)
	require.True(t, ok)
	assert.Equal(t, 2500.0, c.Area)
	assert.Equal(t, image.Rect(10, 10, 61, 61), c.Bounds)
	assert.Equal(t, [4]image.Point{{10, 10}, {60, 10}, {60, 60}, {10, 60}}, c.Points)
	assert.Equal(t, 60, c.Corners()[2].X)
}
