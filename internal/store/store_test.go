package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gaze-markers/internal/detector"
	"gaze-markers/internal/marker"
	"gaze-markers/internal/surface"
	"gaze-markers/pkg/geometry"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	s, err := Open(filepath.Join(t.TempDir(), "markers.db"), WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clk
}

// captured is the source timestamp of a test frame. Processing happens a
// second later so the two are never confused.
func captured(frame int64) time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, int(frame)*int(time.Millisecond), time.UTC)
}

func result(frame int64, ms ...marker.Marker) *detector.Result {
	return &detector.Result{
		Frame:      frame,
		CapturedAt: captured(frame),
		Timestamp:  captured(frame).Add(time.Second),
		Duration:   3 * time.Millisecond,
		Markers:    ms,
		Candidates: len(ms) + 1,
		Surface:    surface.Surface{Status: surface.StatusNotApplicable},
	}
}

func sighting(id, x, y int, r marker.Rotation) marker.Marker {
	return marker.Marker{
		ID:       id,
		Rotation: r,
		Center:   geometry.PointInt{X: x, Y: y},
		Bounds:   geometry.RectInt{X: x - 20, Y: y - 20, Width: 40, Height: 40},
		Detected: true,
	}
}

func TestSessions(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()

	id, err := s.StartSession(ctx, "device 0")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	clk.Add(time.Minute)
	id2, err := s.StartSession(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)

	sess, err := s.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "device 0", sess.Source)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), sess.StartedAt)

	all, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, id2, all[0].ID, "newest first")

	_, err = s.Session(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestRecordResult(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id, err := s.StartSession(ctx, "stills")
	require.NoError(t, err)

	require.NoError(t, s.RecordResult(ctx, id, result(1, sighting(21, 100, 100, marker.Rotation0))))
	require.NoError(t, s.RecordResult(ctx, id, result(2)))
	require.NoError(t, s.RecordResult(ctx, id, result(3,
		sighting(21, 110, 104, marker.Rotation90),
		sighting(7, 300, 300, marker.Rotation180))))

	n, err := s.FrameCount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	history, err := s.MarkerHistory(ctx, id, 21)
	require.NoError(t, err)
	assert.Equal(t, []MarkerRow{
		{Frame: 1, CapturedAt: captured(1), ID: 21, Rotation: marker.Rotation0, Center: geometry.PointInt{X: 100, Y: 100},
			Bounds: geometry.RectInt{X: 80, Y: 80, Width: 40, Height: 40}},
		{Frame: 3, CapturedAt: captured(3), ID: 21, Rotation: marker.Rotation90, Center: geometry.PointInt{X: 110, Y: 104},
			Bounds: geometry.RectInt{X: 90, Y: 84, Width: 40, Height: 40}},
	}, history)

	counts, err := s.MarkerCounts(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{21: 2, 7: 1}, counts)

	none, err := s.MarkerHistory(ctx, id, 50)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordResultWithoutCaptureTime(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id, err := s.StartSession(ctx, "stills")
	require.NoError(t, err)

	res := result(5, sighting(9, 50, 50, marker.Rotation270))
	res.CapturedAt = time.Time{}
	require.NoError(t, s.RecordResult(ctx, id, res))

	history, err := s.MarkerHistory(ctx, id, 9)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.Timestamp, history[0].CapturedAt, "falls back to the processing time")
}

func TestRecordResultRollsBack(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id, err := s.StartSession(ctx, "stills")
	require.NoError(t, err)
	require.NoError(t, s.RecordResult(ctx, id, result(1)))

	// Same frame again violates the primary key; nothing from it may remain.
	err = s.RecordResult(ctx, id, result(1, sighting(4, 10, 10, marker.Rotation0)))
	assert.Error(t, err)

	history, err := s.MarkerHistory(ctx, id, 4)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordResultUnknownSession(t *testing.T) {
	s, _ := openTestStore(t)
	err := s.RecordResult(context.Background(), "nope", result(1))
	assert.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.StartSession(ctx, "device 0")
	require.NoError(t, err)
	require.NoError(t, s.RecordResult(ctx, id, result(1)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.FrameCount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
