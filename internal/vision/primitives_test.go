package vision

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gaze-markers/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestCheckFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	assert.ErrorIs(t, CheckFrame(empty), ErrEmptyFrame)

	two := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC2)
	defer two.Close()
	err := CheckFrame(two)
	assert.True(t, errors.Is(err, ErrUnsupportedChannelCount))

	gray := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer gray.Close()
	assert.NoError(t, CheckFrame(gray))
}

func TestGrayscaleAndBGR(t *testing.T) {
	bgr := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer bgr.Close()

	gray, err := OpenCV{}.Grayscale(bgr)
	require.NoError(t, err)
	defer gray.Close()
	assert.Equal(t, 1, gray.Channels())
	assert.Equal(t, uint8(200), gray.GetUCharAt(4, 4))

	back, err := ToBGR(gray)
	require.NoError(t, err)
	defer back.Close()
	assert.Equal(t, 3, back.Channels())

	four := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC4)
	defer four.Close()
	_, err = OpenCV{}.Grayscale(four)
	assert.ErrorIs(t, err, ErrUnsupportedChannelCount)
	_, err = ToBGR(four)
	assert.ErrorIs(t, err, ErrUnsupportedChannelCount)
}

func TestContoursAndApprox(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC1)
	defer img.Close()
	gocv.Rectangle(&img, image.Rect(20, 30, 80, 70), color.RGBA{255, 255, 255, 255}, -1)

	edges := OpenCV{}.Edges(img, 100, 200)
	defer edges.Close()

	contours := OpenCV{}.Contours(edges, RetrievalExternal)
	require.NotEmpty(t, contours)

	poly := OpenCV{}.ApproxPolygon(contours[0], 0.05)
	assert.Len(t, poly, 4)
	assert.InDelta(t, 60*40, geometry.PolygonArea(poly), 200)

	assert.Nil(t, OpenCV{}.ApproxPolygon(nil, 0.05))
}

func TestWarpIdentityAndResize(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 0, 0, 0), 20, 30, gocv.MatTypeCV8UC1)
	defer src.Close()

	h := geometry.Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
	out := OpenCV{}.Warp(src, h, image.Pt(30, 20))
	defer out.Close()
	assert.Equal(t, 30, out.Cols())
	assert.Equal(t, 20, out.Rows())
	assert.Equal(t, uint8(90), out.GetUCharAt(10, 15))

	small := OpenCV{}.Resize(src, image.Pt(5, 5))
	defer small.Close()
	assert.Equal(t, 5, small.Cols())
	assert.Equal(t, uint8(90), small.GetUCharAt(2, 2))
}

func TestPerspectiveTransform(t *testing.T) {
	t.Run("trapezoid corners land on the rectangle", func(t *testing.T) {
		src := geometry.Quad{{X: 20, Y: 10}, {X: 80, Y: 10}, {X: 0, Y: 90}, {X: 100, Y: 90}}
		dst := geometry.RectangleQuad(100, 100)
		h, err := OpenCV{}.PerspectiveTransform(src, dst)
		require.NoError(t, err)

		for i := range src {
			p := h.Apply(src[i])
			assert.InDelta(t, dst[i].X, p.X, 1e-3, "corner %s", geometry.Corner(i))
			assert.InDelta(t, dst[i].Y, p.Y, 1e-3, "corner %s", geometry.Corner(i))
		}

		// Symmetric trapezoid: the vertical axis maps to the vertical axis.
		mid := h.Apply(geometry.Point2D{X: 50, Y: 50})
		assert.InDelta(t, 50, mid.X, 1e-3)
	})

	t.Run("uniform scale", func(t *testing.T) {
		h, err := OpenCV{}.PerspectiveTransform(geometry.RectangleQuad(100, 100), geometry.RectangleQuad(50, 50))
		require.NoError(t, err)
		assert.InDelta(t, 0.5, h.At(0, 0), 1e-6)
		assert.InDelta(t, 1, h.At(2, 2), 1e-6)
	})

	t.Run("degenerate corners", func(t *testing.T) {
		collinear := geometry.Quad{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 0, Y: 30}}
		_, err := OpenCV{}.PerspectiveTransform(collinear, geometry.RectangleQuad(50, 50))
		assert.ErrorIs(t, err, geometry.ErrTransformSingular)

		_, err = OpenCV{}.PerspectiveTransform(geometry.RectangleQuad(10, 10), geometry.RectangleQuad(0, 50))
		assert.ErrorIs(t, err, geometry.ErrTransformSingular)
	})
}

func TestParseRetrieval(t *testing.T) {
	r, err := ParseRetrieval("list")
	require.NoError(t, err)
	assert.Equal(t, RetrievalList, r)

	r, err = ParseRetrieval("")
	require.NoError(t, err)
	assert.Equal(t, RetrievalExternal, r)
	assert.Equal(t, "external", r.String())

	_, err = ParseRetrieval("tree")
	assert.Error(t, err)
}
