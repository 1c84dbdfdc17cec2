// Package config loads the tracker configuration from a JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"gaze-markers/internal/detector"
	"gaze-markers/internal/screen"
	"gaze-markers/internal/vision"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

const configFile = "config.json"

// Config is the complete tracker configuration.
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Screen   ScreenConfig   `json:"screen"`
	Source   SourceConfig   `json:"source"`
	Store    StoreConfig    `json:"store"`
	Output   OutputConfig   `json:"output"`
	Log      LogConfig      `json:"log"`
}

// DetectorConfig maps onto detector.Params.
type DetectorConfig struct {
	MinArea               float64 `json:"min_area"`
	Epsilon               float64 `json:"epsilon"`
	BlurSigma             float64 `json:"blur_sigma"`
	CannyLow              float64 `json:"canny_low"`
	CannyHigh             float64 `json:"canny_high"`
	Retrieval             string  `json:"retrieval"` // "external" or "list"
	PatchSize             int     `json:"patch_size"`
	Threshold             int     `json:"threshold"`
	FindSurface           bool    `json:"find_surface"`
	PerspectiveCorrection bool    `json:"perspective_correction"`
	SurfaceWidth          int     `json:"surface_width"`
	SurfaceHeight         int     `json:"surface_height"`
	Debug                 bool    `json:"debug"`
}

// ScreenConfig maps onto screen.Params.
type ScreenConfig struct {
	Enabled   bool    `json:"enabled"`
	MinArea   float64 `json:"min_area"`
	Epsilon   float64 `json:"epsilon"`
	CannyLow  float64 `json:"canny_low"`
	CannyHigh float64 `json:"canny_high"`
}

// SourceConfig selects the frame source. Device is a camera index ("0") or
// a video path; StillsDir replays the images in a directory instead.
type SourceConfig struct {
	Device    string  `json:"device"`
	StillsDir string  `json:"stills_dir,omitempty"`
	Loop      bool    `json:"loop,omitempty"`
	FPS       float64 `json:"fps,omitempty"`
	MaxFrames int64   `json:"max_frames,omitempty"`
}

// StoreConfig enables the detection log when Path is set.
type StoreConfig struct {
	Path string `json:"path,omitempty"`
}

// OutputConfig controls pin snapshots. SnapshotEvery of zero disables them.
type OutputConfig struct {
	SnapshotDir   string `json:"snapshot_dir,omitempty"`
	SnapshotEvery int64  `json:"snapshot_every,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Default returns the default configuration.
func Default() Config {
	p := detector.DefaultParams()
	s := screen.DefaultParams()
	return Config{
		Detector: DetectorConfig{
			MinArea:               p.MinArea,
			Epsilon:               p.Epsilon,
			BlurSigma:             p.BlurSigma,
			CannyLow:              p.CannyLow,
			CannyHigh:             p.CannyHigh,
			Retrieval:             p.Retrieval.String(),
			PatchSize:             p.PatchSize,
			Threshold:             int(p.Threshold),
			FindSurface:           p.FindSurface,
			PerspectiveCorrection: p.PerspectiveCorrection,
			SurfaceWidth:          p.SurfaceSize.X,
			SurfaceHeight:         p.SurfaceSize.Y,
		},
		Screen: ScreenConfig{
			MinArea:   s.MinArea,
			Epsilon:   s.Epsilon,
			CannyLow:  s.CannyLow,
			CannyHigh: s.CannyHigh,
		},
		Source: SourceConfig{Device: "0"},
		Log:    LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 3},
	}
}

// DefaultPath returns ~/.config/gaze-markers/config.json.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "gaze-markers", configFile)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write encodes the configuration as indented JSON.
func (c Config) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// DetectorParams converts the detector section.
func (c Config) DetectorParams() (detector.Params, error) {
	d := c.Detector
	retrieval, err := vision.ParseRetrieval(d.Retrieval)
	if err != nil {
		return detector.Params{}, err
	}
	if d.Threshold < 0 || d.Threshold > 255 {
		return detector.Params{}, fmt.Errorf("threshold %d outside 0-255", d.Threshold)
	}

	p := detector.DefaultParams().
		WithMinArea(d.MinArea).
		WithCanny(d.CannyLow, d.CannyHigh).
		WithRetrieval(retrieval).
		WithDebug(d.Debug).
		WithSurface(d.FindSurface, image.Point{X: d.SurfaceWidth, Y: d.SurfaceHeight}, d.PerspectiveCorrection)
	p.Epsilon = d.Epsilon
	p.BlurSigma = d.BlurSigma
	p.PatchSize = d.PatchSize
	p.Threshold = uint8(d.Threshold)
	return p, nil
}

// ScreenParams converts the screen section.
func (c Config) ScreenParams() screen.Params {
	p := screen.DefaultParams().
		WithMinArea(c.Screen.MinArea).
		WithCanny(c.Screen.CannyLow, c.Screen.CannyHigh)
	p.Epsilon = c.Screen.Epsilon
	return p
}

// Validate checks every section and reports all problems.
func (c Config) Validate() error {
	var errs error

	if p, err := c.DetectorParams(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("detector: %w", err))
	} else if err := p.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("detector: %w", err))
	}

	if c.Screen.Enabled {
		if err := c.ScreenParams().Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("screen: %w", err))
		}
	}

	if c.Source.Device == "" && c.Source.StillsDir == "" {
		errs = multierr.Append(errs, errors.New("source: device or stills_dir is required"))
	}
	if c.Source.FPS < 0 || c.Source.MaxFrames < 0 {
		errs = multierr.Append(errs, errors.New("source: fps and max_frames must not be negative"))
	}

	if c.Output.SnapshotEvery < 0 {
		errs = multierr.Append(errs, errors.New("output: snapshot_every must not be negative"))
	}
	if c.Output.SnapshotEvery > 0 && c.Output.SnapshotDir == "" {
		errs = multierr.Append(errs, errors.New("output: snapshot_dir is required when snapshot_every is set"))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log: %w", err))
	}
	return errs
}
