package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gaze-markers/internal/detector"
	"gaze-markers/internal/features"
	"gaze-markers/internal/output"
	"gaze-markers/internal/screen"
	"gaze-markers/internal/source"
	"gaze-markers/internal/store"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the clock used to measure frame latency.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithScreen adds the screen detector as a second stage.
func WithScreen(d *screen.Detector) Option {
	return func(p *Pipeline) { p.screen = d }
}

// WithStore records every marker result under sessionID.
func WithStore(s *store.Store, sessionID string) Option {
	return func(p *Pipeline) {
		p.store = s
		p.sessionID = sessionID
	}
}

// WithSnapshots saves the pins to dir every n frames.
func WithSnapshots(dir string, every int64) Option {
	return func(p *Pipeline) {
		p.snapshotDir = dir
		p.snapshotEvery = every
	}
}

// Pipeline runs the detection stages on each frame of a source.
type Pipeline struct {
	logger *zap.Logger
	clock  clock.Clock

	mu      sync.Mutex // serializes frames and reconfiguration
	markers *detector.Detector
	screen  *screen.Detector
	stages  []FeatureDetector

	store     *store.Store
	sessionID string

	snapshotDir   string
	snapshotEvery int64

	features *features.Set
	stats    *runStats
	saved    map[*output.Pin]int64 // update count at the last snapshot

	// pending holds events raised while mu is held; they are emitted after
	// it is released so listeners may call back into the pipeline.
	pending []pendingEvent

	listenersMu sync.RWMutex
	listeners   map[EventType][]EventListener
}

// New creates a pipeline around a marker detector.
func New(markers *detector.Detector, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:    zap.NewNop(),
		clock:     clock.New(),
		features:  features.NewSet(),
		stats:     newRunStats(),
		saved:     make(map[*output.Pin]int64),
		listeners: make(map[EventType][]EventListener),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.setMarkers(markers)
	if p.screen != nil {
		p.screen.OnDetectionFinished(func(res *screen.Result) {
			if res.Screen.Detected {
				p.queue(EventScreenDetected, res.Screen)
			}
		})
	}
	p.rebuildStages()
	return p
}

// On registers an event listener for the specified event type.
func (p *Pipeline) On(event EventType, listener EventListener) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.listeners[event] = append(p.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (p *Pipeline) Emit(event EventType, data interface{}) {
	p.listenersMu.RLock()
	listeners := p.listeners[event]
	p.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

type pendingEvent struct {
	event EventType
	data  interface{}
}

// queue defers an event until mu is released. Callers hold mu.
func (p *Pipeline) queue(event EventType, data interface{}) {
	p.pending = append(p.pending, pendingEvent{event: event, data: data})
}

// unlock releases mu and emits the events queued while it was held.
func (p *Pipeline) unlock() {
	events := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, e := range events {
		p.Emit(e.event, e.data)
	}
}

// Features returns the features of the latest frame.
func (p *Pipeline) Features() *features.Set {
	return p.features
}

// Markers returns the current marker detector.
func (p *Pipeline) Markers() *detector.Detector {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markers
}

// Attach subscribes the pipeline to src's frames.
func (p *Pipeline) Attach(src source.Source) {
	src.OnFrame(p.HandleFrame)
}

// Run attaches to src and reads it until it is exhausted or ctx is done.
func (p *Pipeline) Run(ctx context.Context, src source.Source) error {
	p.Attach(src)
	p.logger.Info("pipeline started", zap.String("source", src.Name()), zap.Int("stages", len(p.stages)))
	if err := src.Run(ctx); err != nil {
		return fmt.Errorf("run %s: %w", src.Name(), err)
	}
	return nil
}

// HandleFrame runs every stage on frame. A failing stage is reported and
// the remaining stages still run. Events are emitted once the frame is done.
func (p *Pipeline) HandleFrame(frame source.Frame) {
	p.mu.Lock()
	defer p.unlock()

	start := p.clock.Now()
	summary := FrameSummary{Frame: frame.Number}

	for _, stage := range p.stages {
		fs, err := stage.Detect(frame)
		if err != nil {
			summary.Failed = true
			fe := FrameError{Frame: frame.Number, Detector: stage.Name(), Err: err}
			p.logger.Warn("frame failed", zap.Int64("frame", frame.Number),
				zap.String("detector", stage.Name()), zap.Error(err))
			p.queue(EventFrameFailed, fe)
			continue
		}
		summary.Features = append(summary.Features, fs...)
	}

	p.features.Replace(frame.Number, summary.Features)
	p.stats.record(p.clock.Since(start), summary)
	p.snapshot(frame.Number)
	p.queue(EventFrameProcessed, summary)
}

// Reconfigure replaces the marker detector with one built from params. The
// output pins, and the images they hold, are carried over.
func (p *Pipeline) Reconfigure(params detector.Params) error {
	p.mu.Lock()
	defer p.unlock()

	old := p.markers
	next, err := detector.New(params,
		detector.WithLogger(p.logger),
		detector.WithClock(p.clock),
		detector.WithPins(old.CompositePin(), old.SurfacePin()))
	if err != nil {
		return err
	}
	old.Release()

	p.setMarkers(next)
	p.rebuildStages()
	p.logger.Info("detector reconfigured", zap.Float64("min_area", params.MinArea),
		zap.Float64("canny_low", params.CannyLow), zap.Float64("canny_high", params.CannyHigh))
	p.queue(EventReconfigured, params)
	return nil
}

func (p *Pipeline) setMarkers(d *detector.Detector) {
	p.markers = d
	d.OnDetectionFinished(p.onMarkerResult)
}

func (p *Pipeline) rebuildStages() {
	p.stages = []FeatureDetector{markerStage{p.markers}}
	if p.screen != nil {
		p.stages = append(p.stages, screenStage{p.screen})
	}
}

// onMarkerResult runs inside ProcessFrame, before the frame summary.
func (p *Pipeline) onMarkerResult(res *detector.Result) {
	p.stats.recordMarkers(res)
	if p.store != nil {
		if err := p.store.RecordResult(context.Background(), p.sessionID, res); err != nil {
			p.logger.Error("recording result", zap.Int64("frame", res.Frame), zap.Error(err))
		}
	}
	p.queue(EventDetectionFinished, res)
	if res.Surface.Detected() {
		p.queue(EventSurfaceDetected, &res.Surface)
	}
}

func (p *Pipeline) pins() []*output.Pin {
	pins := []*output.Pin{p.markers.CompositePin(), p.markers.SurfacePin()}
	if p.screen != nil {
		pins = append(pins, p.screen.Pin())
	}
	return pins
}

// snapshot saves every pin updated since its last snapshot when frame is due.
func (p *Pipeline) snapshot(frame int64) {
	if p.snapshotEvery <= 0 || frame%p.snapshotEvery != 0 {
		return
	}
	if err := os.MkdirAll(p.snapshotDir, 0o755); err != nil {
		p.logger.Error("snapshot dir", zap.Error(err))
		return
	}
	for _, pin := range p.pins() {
		n := pin.Updates()
		if n == 0 || n == p.saved[pin] {
			continue
		}
		path := filepath.Join(p.snapshotDir, pin.FileName(frame))
		if err := pin.SavePNG(path); err != nil {
			p.logger.Warn("snapshot failed", zap.String("pin", pin.Name), zap.Error(err))
			continue
		}
		p.saved[pin] = n
		p.logger.Debug("snapshot saved", zap.String("path", path), zap.Time("updated", pin.Updated()))
	}
}

// Summary returns the run statistics so far.
func (p *Pipeline) Summary() Summary {
	return p.stats.summary()
}

// Close releases every stage and the pins they publish to.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	for _, stage := range p.stages {
		errs = multierr.Append(errs, stage.Close())
	}
	for _, pin := range p.pins() {
		errs = multierr.Append(errs, pin.Close())
	}
	return errs
}
