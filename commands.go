package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"gaze-markers/internal/app"
	"gaze-markers/internal/config"
	"gaze-markers/internal/detector"
	"gaze-markers/internal/features"
	"gaze-markers/internal/logging"
	"gaze-markers/internal/screen"
	"gaze-markers/internal/source"
	"gaze-markers/internal/store"
	"gaze-markers/internal/surface"
	"gaze-markers/internal/version"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const watchInterval = 2 * time.Second

func configPath(c *cli.Context) string {
	if p := c.String(flagConfig); p != "" {
		return p
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and applies the run flags over it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(configPath(c))
	if err != nil {
		return cfg, err
	}

	if c.IsSet(flagDevice) {
		cfg.Source.Device = c.String(flagDevice)
		cfg.Source.StillsDir = ""
	}
	if c.IsSet(flagStills) {
		cfg.Source.StillsDir = c.String(flagStills)
	}
	if c.IsSet(flagLoop) {
		cfg.Source.Loop = c.Bool(flagLoop)
	}
	if c.IsSet(flagMaxFrames) {
		cfg.Source.MaxFrames = c.Int64(flagMaxFrames)
	}
	if c.IsSet(flagFPS) {
		cfg.Source.FPS = c.Float64(flagFPS)
	}
	if c.IsSet(flagStore) {
		cfg.Store.Path = c.String(flagStore)
	}
	if c.IsSet(flagSnapshots) {
		cfg.Output.SnapshotDir = c.String(flagSnapshots)
		if cfg.Output.SnapshotEvery == 0 {
			cfg.Output.SnapshotEvery = 1
		}
	}
	if c.IsSet(flagEvery) {
		cfg.Output.SnapshotEvery = c.Int64(flagEvery)
	}
	if c.IsSet(flagScreen) {
		cfg.Screen.Enabled = c.Bool(flagScreen)
	}
	if c.IsSet(flagLogLevel) {
		cfg.Log.Level = c.String(flagLogLevel)
	}
	if c.IsSet(flagLogFile) {
		cfg.Log.File = c.String(flagLogFile)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func openSource(cfg config.SourceConfig, logger *zap.Logger) (source.Source, error) {
	opts := []source.Option{
		source.WithLogger(logger.Named("source")),
		source.WithMaxFrames(cfg.MaxFrames),
		source.WithFPS(cfg.FPS),
	}
	if cfg.StillsDir != "" {
		return source.Glob(cfg.StillsDir, cfg.Loop, opts...)
	}
	return source.Open(cfg.Device, opts...)
}

func runAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting", zap.String("version", version.String()))

	params, err := cfg.DetectorParams()
	if err != nil {
		return err
	}
	markers, err := detector.New(params, detector.WithLogger(logger.Named("markers")))
	if err != nil {
		return err
	}

	src, err := openSource(cfg.Source, logger)
	if err != nil {
		markers.Close()
		return err
	}
	defer func() { err = multierr.Append(err, src.Close()) }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []app.Option{app.WithLogger(logger.Named("pipeline"))}
	if cfg.Screen.Enabled {
		opts = append(opts, app.WithScreen(screen.New(cfg.ScreenParams(), screen.WithLogger(logger.Named("screen")))))
	}
	if cfg.Output.SnapshotEvery > 0 {
		opts = append(opts, app.WithSnapshots(cfg.Output.SnapshotDir, cfg.Output.SnapshotEvery))
	}
	if cfg.Store.Path != "" {
		var st *store.Store
		st, err = store.Open(cfg.Store.Path, store.WithLogger(logger.Named("store")))
		if err != nil {
			markers.Close()
			return err
		}
		defer func() { err = multierr.Append(err, st.Close()) }()

		var session string
		session, err = st.StartSession(ctx, src.Name())
		if err != nil {
			markers.Close()
			return err
		}
		logger.Info("recording session", zap.String("session", session), zap.String("store", cfg.Store.Path))
		opts = append(opts, app.WithStore(st, session))
	}

	pipeline := app.New(markers, opts...)
	defer func() { err = multierr.Append(err, pipeline.Close()) }()

	pipeline.On(app.EventFrameProcessed, func(interface{}) {
		set := pipeline.Features()
		logger.Debug("features", zap.Int64("frame", set.Frame()), zap.Int("total", set.Len()),
			zap.Int("markers", set.Count(features.KindMarker)), zap.Int("screens", set.Count(features.KindScreen)))
	})
	pipeline.On(app.EventSurfaceDetected, func(data interface{}) {
		s := data.(*surface.Surface)
		logger.Debug("surface detected", zap.Int("x", s.Bounds.X), zap.Int("y", s.Bounds.Y),
			zap.Int("width", s.Bounds.Width), zap.Int("height", s.Bounds.Height))
	})

	if c.Bool(flagWatch) {
		w := config.NewWatcher(configPath(c), watchInterval, clock.New())
		w.OnChange(func(next config.Config) {
			p, err := next.DetectorParams()
			if err == nil {
				err = pipeline.Reconfigure(p)
			}
			if err != nil {
				logger.Warn("config reload rejected", zap.Error(err))
			}
		})
		w.OnError(func(err error) { logger.Warn("config watch", zap.Error(err)) })
		w.Start()
		defer w.Stop()
	}

	if err := pipeline.Run(ctx, src); err != nil {
		return err
	}

	summary := pipeline.Summary()
	logger.Info("run finished", zap.Int64("frames", summary.Frames),
		zap.Int64("failed", summary.Failures), zap.Duration("p95", summary.P95Latency))
	summary.Render(c.App.Writer)
	return nil
}

func openStore(c *cli.Context) (*store.Store, error) {
	path := c.String(flagStore)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store %s: %w", path, err)
	}
	return store.Open(path)
}

func sessionsAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.Sessions(c.Context)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Session", "Source", "Started", "Frames", "Markers"})
	for _, s := range sessions {
		n, err := st.FrameCount(c.Context, s.ID)
		if err != nil {
			return err
		}
		counts, err := st.MarkerCounts(c.Context, s.ID)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{s.ID, s.Source, s.StartedAt.Local().Format(time.DateTime), n, formatCounts(counts)})
	}
	t.Render()
	return nil
}

// formatCounts renders marker sightings as "id:frames" pairs in ID order.
func formatCounts(counts map[int]int) string {
	if len(counts) == 0 {
		return "-"
	}
	ids := slices.Sorted(maps.Keys(counts))
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d:%d", id, counts[id])
	}
	return strings.Join(parts, " ")
}

func historyAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	session := c.String(flagSession)
	if _, err := st.Session(c.Context, session); err != nil {
		return err
	}
	rows, err := st.MarkerHistory(c.Context, session, c.Int(flagMarker))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(c.App.Writer, "Marker %d was not seen in session %s.\n", c.Int(flagMarker), session)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.SetTitle(fmt.Sprintf("Marker %d", c.Int(flagMarker)))
	t.AppendHeader(table.Row{"Frame", "Captured", "Rotation", "Facing", "Center", "Bounds"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Frame, r.CapturedAt.Local().Format("15:04:05.000"), r.Rotation, r.Rotation.Direction(),
			fmt.Sprintf("(%d,%d)", r.Center.X, r.Center.Y),
			fmt.Sprintf("%dx%d@(%d,%d)", r.Bounds.Width, r.Bounds.Height, r.Bounds.X, r.Bounds.Y)})
	}
	t.Render()
	return nil
}

func configShowAction(c *cli.Context) error {
	cfg, err := config.Load(configPath(c))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "# %s\n", configPath(c))
	return cfg.Write(c.App.Writer)
}

func configInitAction(c *cli.Context) error {
	path := configPath(c)
	if _, err := os.Stat(path); err == nil && !c.Bool(flagForce) {
		return fmt.Errorf("%s already exists (use --%s to overwrite)", path, flagForce)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}
