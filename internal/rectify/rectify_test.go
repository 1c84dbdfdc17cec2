package rectify

import (
	"image"
	"testing"

	"gaze-markers/internal/testimg"
	"gaze-markers/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func quadrantImage() gocv.Mat {
	m := testimg.Gray(300, 300, 0)
	testimg.FillRect(&m, image.Rect(0, 0, 150, 150), 40)
	testimg.FillRect(&m, image.Rect(150, 0, 300, 150), 100)
	testimg.FillRect(&m, image.Rect(0, 150, 150, 300), 160)
	testimg.FillRect(&m, image.Rect(150, 150, 300, 300), 220)
	return m
}

func TestRectifyAxisAligned(t *testing.T) {
	src := quadrantImage()
	defer src.Close()

	q := geometry.Quad{{X: 50, Y: 50}, {X: 250, Y: 50}, {X: 50, Y: 250}, {X: 250, Y: 250}}
	out, h, err := New(nil).Rectify(src, image.Pt(100, 100), q)
	require.NoError(t, err)
	defer out.Close()

	center := h.Apply(geometry.Point2D{X: 150, Y: 150})
	assert.InDelta(t, 50, center.X, 1e-3)
	assert.InDelta(t, 50, center.Y, 1e-3)

	assert.Equal(t, 100, out.Cols())
	assert.Equal(t, 100, out.Rows())

	cases := []struct {
		x, y int
		want uint8
	}{
		{25, 25, 40},
		{75, 25, 100},
		{25, 75, 160},
		{75, 75, 220},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, out.GetUCharAt(tc.y, tc.x), 2, "pixel (%d,%d)", tc.x, tc.y)
	}

	// The source is left untouched.
	assert.Equal(t, uint8(40), src.GetUCharAt(60, 60))
}

func TestRectifyPerspectiveRoundTrip(t *testing.T) {
	src := testimg.Gray(400, 400, 0)
	defer src.Close()

	corners := []image.Point{{120, 80}, {300, 100}, {330, 320}, {90, 300}}
	testimg.FillQuad(&src, corners, 200)

	q := geometry.Quad{
		{X: 120, Y: 80}, {X: 300, Y: 100},
		{X: 90, Y: 300}, {X: 330, Y: 320},
	}
	out, _, err := New(nil).Rectify(src, image.Pt(60, 60), q)
	require.NoError(t, err)
	defer out.Close()

	for y := 10; y < 50; y += 10 {
		for x := 10; x < 50; x += 10 {
			assert.InDelta(t, 200, out.GetUCharAt(y, x), 2, "pixel (%d,%d)", x, y)
		}
	}
}

func TestRectifySingular(t *testing.T) {
	src := testimg.Gray(100, 100, 0)
	defer src.Close()

	q := geometry.Quad{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}
	_, _, err := New(nil).Rectify(src, image.Pt(50, 50), q)
	assert.ErrorIs(t, err, geometry.ErrTransformSingular)

	_, _, err = New(nil).Rectify(src, image.Pt(0, 50), geometry.RectangleQuad(10, 10))
	assert.Error(t, err)
}

func TestDownsample(t *testing.T) {
	patch := testimg.Gray(50, 50, 0)
	defer patch.Close()
	testimg.FillRect(&patch, image.Rect(20, 20, 30, 30), 255)

	cells := New(nil).Downsample(patch, 5)
	defer cells.Close()

	require.Equal(t, 5, cells.Rows())
	require.Equal(t, 5, cells.Cols())
	assert.Equal(t, uint8(255), cells.GetUCharAt(2, 2))
	assert.Equal(t, uint8(0), cells.GetUCharAt(0, 0))
	assert.Equal(t, uint8(0), cells.GetUCharAt(2, 1))
}

func TestCrop(t *testing.T) {
	src := quadrantImage()
	defer src.Close()

	out, h, err := New(nil).Crop(src, geometry.RectInt{X: 150, Y: 0, Width: 150, Height: 150}, image.Pt(30, 30))
	require.NoError(t, err)
	defer out.Close()
	assert.InDelta(t, 100, out.GetUCharAt(15, 15), 1)

	p := h.Apply(geometry.Point2D{X: 225, Y: 75})
	assert.InDelta(t, 15, p.X, 1e-3)
	assert.InDelta(t, 15, p.Y, 1e-3)

	_, _, err = New(nil).Crop(src, geometry.RectInt{X: 400, Y: 400, Width: 10, Height: 10}, image.Pt(30, 30))
	assert.Error(t, err)
}
