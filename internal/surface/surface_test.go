package surface

import (
	"image"
	"testing"
	"time"

	"gaze-markers/internal/testimg"
	"gaze-markers/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// frame is a 300x300 gray image whose central 200x200 block is split into
// four quadrants of increasing brightness.
func frame() gocv.Mat {
	m := testimg.Gray(300, 300, 0)
	testimg.FillRect(&m, image.Rect(50, 50, 150, 150), 40)
	testimg.FillRect(&m, image.Rect(150, 50, 250, 150), 100)
	testimg.FillRect(&m, image.Rect(50, 150, 150, 250), 160)
	testimg.FillRect(&m, image.Rect(150, 150, 250, 250), 220)
	return m
}

func TestExtractNotApplicable(t *testing.T) {
	src := frame()
	defer src.Close()

	for _, n := range []int{0, 1, 3, 5} {
		centers := make([]geometry.PointInt, n)
		for i := range centers {
			centers[i] = geometry.PointInt{X: 60 + 10*i, Y: 60 + 20*i}
		}

		s := Extract(src, centers, image.Point{X: 100, Y: 100}, true, now)
		assert.Equal(t, StatusNotApplicable, s.Status, "%d centers", n)
		assert.False(t, s.Detected())
		assert.NoError(t, s.Close())
	}
}

func TestExtractPerspective(t *testing.T) {
	src := frame()
	defer src.Close()

	centers := []geometry.PointInt{{X: 250, Y: 250}, {X: 50, Y: 50}, {X: 50, Y: 250}, {X: 250, Y: 50}}
	s := Extract(src, centers, image.Point{X: 100, Y: 80}, true, now)
	defer s.Close()

	require.Equal(t, StatusDetected, s.Status, "err: %v", s.Err)
	assert.True(t, s.Detected())
	assert.Equal(t, now, s.Timestamp)
	assert.Equal(t, geometry.Quad{{X: 50, Y: 50}, {X: 250, Y: 50}, {X: 50, Y: 250}, {X: 250, Y: 250}}, s.Corners)
	assert.Equal(t, geometry.RectInt{X: 50, Y: 50, Width: 200, Height: 200}, s.Bounds)

	require.Equal(t, 80, s.Image.Rows())
	require.Equal(t, 100, s.Image.Cols())
	assert.InDelta(t, 40, int(s.Image.GetUCharAt(20, 25)), 2)
	assert.InDelta(t, 100, int(s.Image.GetUCharAt(20, 75)), 2)
	assert.InDelta(t, 160, int(s.Image.GetUCharAt(60, 25)), 2)
	assert.InDelta(t, 220, int(s.Image.GetUCharAt(60, 75)), 2)
}

func TestExtractCrop(t *testing.T) {
	src := frame()
	defer src.Close()

	centers := []geometry.PointInt{{X: 50, Y: 50}, {X: 250, Y: 50}, {X: 50, Y: 250}, {X: 250, Y: 250}}
	s := Extract(src, centers, image.Point{X: 40, Y: 40}, false, now)
	defer s.Close()

	require.Equal(t, StatusDetected, s.Status, "err: %v", s.Err)
	require.Equal(t, 40, s.Image.Rows())
	assert.InDelta(t, 40, int(s.Image.GetUCharAt(5, 5)), 2)
	assert.InDelta(t, 220, int(s.Image.GetUCharAt(35, 35)), 2)
}

func TestExtractFailed(t *testing.T) {
	src := frame()
	defer src.Close()

	t.Run("all centers on one row", func(t *testing.T) {
		centers := []geometry.PointInt{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 30, Y: 10}, {X: 40, Y: 10}}
		s := Extract(src, centers, image.Point{X: 100, Y: 100}, true, now)
		assert.Equal(t, StatusFailed, s.Status)
		assert.False(t, s.Detected())
		assert.ErrorIs(t, s.Err, geometry.ErrInvalidGeometry)
	})

	t.Run("coincident centers", func(t *testing.T) {
		centers := []geometry.PointInt{{X: 10, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 50}, {X: 60, Y: 50}}
		s := Extract(src, centers, image.Point{X: 100, Y: 100}, true, now)
		assert.Equal(t, StatusFailed, s.Status)
		assert.ErrorIs(t, s.Err, geometry.ErrTransformSingular)
		assert.NoError(t, s.Close())
	})
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "not-applicable", StatusNotApplicable.String())
	assert.Equal(t, "detected", StatusDetected.String())
	assert.Equal(t, "failed", StatusFailed.String())
}

func TestSurfacePointMapping(t *testing.T) {
	src := frame()
	defer src.Close()

	centers := []geometry.PointInt{{X: 50, Y: 50}, {X: 250, Y: 50}, {X: 50, Y: 250}, {X: 250, Y: 250}}

	t.Run("perspective", func(t *testing.T) {
		s := Extract(src, centers, image.Point{X: 100, Y: 80}, true, now)
		defer s.Close()
		require.True(t, s.Detected(), "err: %v", s.Err)

		p, ok := s.ToSurface(geometry.Point2D{X: 150, Y: 150})
		require.True(t, ok)
		assert.InDelta(t, 50, p.X, 1e-3)
		assert.InDelta(t, 40, p.Y, 1e-3)

		back, err := s.ToFrame(geometry.Point2D{X: 50, Y: 40})
		require.NoError(t, err)
		assert.InDelta(t, 150, back.X, 1e-3)
		assert.InDelta(t, 150, back.Y, 1e-3)

		_, ok = s.ToSurface(geometry.Point2D{X: 10, Y: 10})
		assert.False(t, ok, "points outside the markers are off the surface")
	})

	t.Run("crop", func(t *testing.T) {
		s := Extract(src, centers, image.Point{X: 40, Y: 40}, false, now)
		defer s.Close()
		require.True(t, s.Detected(), "err: %v", s.Err)

		p, ok := s.ToSurface(geometry.Point2D{X: 150, Y: 150})
		require.True(t, ok)
		assert.InDelta(t, 20, p.X, 1e-3)
		assert.InDelta(t, 20, p.Y, 1e-3)
	})

	t.Run("not applicable", func(t *testing.T) {
		s := Extract(src, centers[:3], image.Point{X: 40, Y: 40}, true, now)
		_, ok := s.ToSurface(geometry.Point2D{X: 150, Y: 150})
		assert.False(t, ok)
		_, err := s.ToFrame(geometry.Point2D{})
		assert.Error(t, err)
	})
}
