package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gaze-markers/internal/detector"
	"gaze-markers/internal/vision"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultMatchesDetectorDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p, err := cfg.DetectorParams()
	require.NoError(t, err)
	assert.Equal(t, detector.DefaultParams(), p)
	assert.Equal(t, "0", cfg.Source.Device)
	assert.False(t, cfg.Screen.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"detector": {"min_area": 400, "retrieval": "list", "surface_width": 320, "surface_height": 240, "debug": true},
		"source": {"device": "clip.mp4", "fps": 15},
		"store": {"path": "markers.db"},
		"log": {"level": "debug"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	p, err := cfg.DetectorParams()
	require.NoError(t, err)
	assert.Equal(t, 400.0, p.MinArea)
	assert.Equal(t, vision.RetrievalList, p.Retrieval)
	assert.Equal(t, image.Point{X: 320, Y: 240}, p.SurfaceSize)
	assert.True(t, p.Debug)
	assert.Equal(t, 0.05, p.Epsilon, "unset fields keep their defaults")
	assert.True(t, p.FindSurface)

	assert.Equal(t, "clip.mp4", cfg.Source.Device)
	assert.Equal(t, 15.0, cfg.Source.FPS)
	assert.Equal(t, "markers.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"detector": `), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"detector": {"epsilon": 2}}`), 0o644))
	_, err = Load(invalid)
	assert.Error(t, err)
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Detector.Threshold = 300
	cfg.Detector.Retrieval = "tree"
	cfg.Source.Device = ""
	cfg.Output.SnapshotEvery = 10
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
}

func TestValidateScreenOnlyWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Screen.Epsilon = 0
	assert.NoError(t, cfg.Validate())

	cfg.Screen.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Detector.CannyHigh = 250
	cfg.Output = OutputConfig{SnapshotDir: "snaps", SnapshotEvery: 30}

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Default().Save(path))

	w := NewWatcher(path, time.Second, clock.NewMock())
	var got []Config
	var errs []error
	w.OnChange(func(c Config) { got = append(got, c) })
	w.OnError(func(err error) { errs = append(errs, err) })

	assert.False(t, w.Check(), "unchanged file")

	touch := func(content string, at time.Time) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		require.NoError(t, os.Chtimes(path, at, at))
	}

	base := time.Now().Add(time.Hour)
	touch(`{"detector": {"min_area": 900}}`, base)
	assert.True(t, w.Check())
	require.Len(t, got, 1)
	assert.Equal(t, 900.0, got[0].Detector.MinArea)

	touch(`{"detector": {"epsilon": -1}}`, base.Add(time.Minute))
	assert.False(t, w.Check())
	assert.Len(t, errs, 1)

	touch(`{"detector": {"min_area": 500}}`, base.Add(2*time.Minute))
	assert.True(t, w.Check())
	require.Len(t, got, 2)
	assert.Equal(t, 500.0, got[1].Detector.MinArea)
}
