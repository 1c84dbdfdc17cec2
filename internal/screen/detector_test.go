package screen

import (
	"image"
	"testing"
	"time"

	"gaze-markers/internal/source"
	"gaze-markers/internal/testimg"
	"gaze-markers/internal/vision"
	"gaze-markers/pkg/geometry"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newTestDetector() (*Detector, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(DefaultParams(), WithClock(clk)), clk
}

func TestDetectRectangle(t *testing.T) {
	d, clk := newTestDetector()
	defer d.Close()

	frame := testimg.BGR(400, 300, 0)
	defer frame.Close()
	testimg.FillRect(&frame, image.Rect(80, 60, 320, 240), 255)

	var calls int
	d.OnDetectionFinished(func(*Result) { calls++ })

	res, err := d.ProcessFrame(source.Frame{Mat: frame, Number: 1})
	require.NoError(t, err)
	require.True(t, res.Screen.Detected)

	s := res.Screen
	assert.InDelta(t, 80, s.Bounds.X, 8)
	assert.InDelta(t, 60, s.Bounds.Y, 8)
	assert.InDelta(t, 240, s.Bounds.Width, 16)
	assert.InDelta(t, 180, s.Bounds.Height, 16)
	assert.InDelta(t, 80, s.Corners.At(geometry.TopLeft).X, 8)
	assert.InDelta(t, 240, s.Corners.At(geometry.BottomRight).Y, 8)
	assert.Greater(t, s.Area, DefaultParams().MinArea)
	assert.Equal(t, clk.Now(), s.Timestamp)

	assert.Equal(t, 1, calls)
	assert.Same(t, res, d.Latest())
	assert.Equal(t, int64(1), d.Pin().Updates())
	assert.Equal(t, 3, res.Composite.Channels())
}

func TestDetectBlank(t *testing.T) {
	d, _ := newTestDetector()
	defer d.Close()

	frame := testimg.Gray(200, 200, 30)
	defer frame.Close()

	res, err := d.ProcessFrame(source.Frame{Mat: frame, Number: 1})
	require.NoError(t, err)
	assert.False(t, res.Screen.Detected)
	assert.Equal(t, "no screen", res.Screen.String())
	assert.Equal(t, 3, res.Composite.Channels(), "gray frames get a BGR composite")
}

func TestDetectSmallRectangleIgnored(t *testing.T) {
	d, _ := newTestDetector()
	defer d.Close()

	frame := testimg.Gray(200, 200, 0)
	defer frame.Close()
	testimg.FillRect(&frame, image.Rect(90, 90, 120, 120), 255)

	res, err := d.ProcessFrame(source.Frame{Mat: frame, Number: 1})
	require.NoError(t, err)
	assert.False(t, res.Screen.Detected)
}

func TestDetectUnsupportedChannels(t *testing.T) {
	d, _ := newTestDetector()
	defer d.Close()

	frame := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC2)
	defer frame.Close()

	var calls int
	d.OnDetectionFinished(func(*Result) { calls++ })

	_, err := d.ProcessFrame(source.Frame{Mat: frame})
	assert.ErrorIs(t, err, vision.ErrUnsupportedChannelCount)
	assert.Zero(t, calls)
	assert.Nil(t, d.Latest())
	assert.Zero(t, d.Pin().Updates())
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	assert.Error(t, DefaultParams().WithMinArea(-1).Validate())
	assert.Error(t, DefaultParams().WithCanny(0, 10).Validate())

	p := DefaultParams()
	p.Epsilon = 1
	assert.Error(t, p.Validate())
}

func TestLargestQuad(t *testing.T) {
	small := []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	large := []image.Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	triangle := []image.Point{{0, 0}, {500, 0}, {0, 500}}

	got, area := largestQuad([][]image.Point{small, triangle, large}, 50)
	assert.Equal(t, large, got)
	assert.Equal(t, 10000.0, area)

	got, _ = largestQuad([][]image.Point{small}, 200)
	assert.Nil(t, got)
}
