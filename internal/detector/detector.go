// Package detector finds, rectifies and decodes square fiducial markers in
// video frames, and rectifies the surface bounded by four of them.
package detector

import (
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"gaze-markers/internal/features"
	"gaze-markers/internal/marker"
	"gaze-markers/internal/output"
	"gaze-markers/internal/rectify"
	"gaze-markers/internal/source"
	"gaze-markers/internal/surface"
	"gaze-markers/internal/vision"
	"gaze-markers/pkg/geometry"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Frame-level errors. Nothing is published for a frame that fails with one
// of these.
var (
	ErrUnsupportedChannelCount = vision.ErrUnsupportedChannelCount
	ErrEmptyFrame              = vision.ErrEmptyFrame
)

// Pin names.
const (
	CompositePinName        = "Markers Detector"
	CompositePinDescription = "Composite Markers"
	SurfacePinName          = "Surface Detector"
	SurfacePinDescription   = "Composite Surface"
)

// Result is the outcome of processing one frame. Mats referenced by a Result
// stay valid until the next ProcessFrame call.
type Result struct {
	Frame      int64
	CapturedAt time.Time // source timestamp of the frame
	Timestamp  time.Time // when processing started
	Duration   time.Duration

	// Features holds the surface first (only when detected), then markers in
	// contour order.
	Features []features.Feature
	Markers  []marker.Marker
	Surface  surface.Surface

	Candidates int
	Rejected   int
	Lines      []vision.Segment

	Composite gocv.Mat
}

func (r *Result) close() {
	r.Composite.Close()
	r.Surface.Close()
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// WithPrimitives replaces the OpenCV primitives.
func WithPrimitives(p vision.Primitives) Option {
	return func(d *Detector) { d.prims = p }
}

// WithPins sets the composite and surface output pins. The caller keeps
// ownership: Close leaves injected pins open.
func WithPins(composite, surf *output.Pin) Option {
	return func(d *Detector) {
		d.compositePin = composite
		d.surfacePin = surf
	}
}

// Detector runs the marker pipeline on one frame at a time.
type Detector struct {
	params Params
	logger *zap.Logger
	clock  clock.Clock
	prims  vision.Primitives

	rect      *rectify.Rectifier
	decoder   *marker.Decoder
	extractor *surface.Extractor

	compositePin *output.Pin
	surfacePin   *output.Pin
	ownedPins    []*output.Pin // created by New, released by Close

	mu        sync.RWMutex
	latest    *Result
	callbacks []func(*Result)
}

// New creates a detector.
func New(params Params, opts ...Option) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector params: %w", err)
	}

	d := &Detector{
		params: params,
		logger: zap.NewNop(),
		clock:  clock.New(),
		prims:  vision.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.compositePin == nil {
		d.compositePin = output.NewPin(CompositePinName, CompositePinDescription)
		d.ownedPins = append(d.ownedPins, d.compositePin)
	}
	if d.surfacePin == nil {
		d.surfacePin = output.NewPin(SurfacePinName, SurfacePinDescription)
		d.ownedPins = append(d.ownedPins, d.surfacePin)
	}

	d.rect = rectify.New(d.prims)
	d.decoder = marker.NewDecoder(params.Threshold, d.clock)
	d.extractor = surface.NewExtractor(d.rect, params.SurfaceSize, params.PerspectiveCorrection)
	return d, nil
}

// Name identifies the detector.
func (d *Detector) Name() string {
	return CompositePinName
}

// Params returns the detector's parameters.
func (d *Detector) Params() Params {
	return d.params
}

// CompositePin returns the annotated frame output.
func (d *Detector) CompositePin() *output.Pin {
	return d.compositePin
}

// SurfacePin returns the rectified surface output.
func (d *Detector) SurfacePin() *output.Pin {
	return d.surfacePin
}

// OnDetectionFinished registers fn to run synchronously after every
// processed frame.
func (d *Detector) OnDetectionFinished(fn func(*Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, fn)
}

// Latest returns the last published result, or nil.
func (d *Detector) Latest() *Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest
}

// ProcessFrame detects and decodes markers in frame, evaluates the surface
// and publishes the result.
func (d *Detector) ProcessFrame(frame source.Frame) (*Result, error) {
	start := d.clock.Now()
	if err := vision.CheckFrame(frame.Mat); err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.Number, err)
	}

	gray, err := d.prims.Grayscale(frame.Mat)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.Number, err)
	}
	defer gray.Close()

	blurred := d.prims.Blur(gray, d.params.BlurSigma)
	defer blurred.Close()

	edges := d.prims.Edges(blurred, d.params.CannyLow, d.params.CannyHigh)
	defer edges.Close()

	composite, err := vision.ToBGR(frame.Mat)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.Number, err)
	}

	res := &Result{
		Frame:      frame.Number,
		CapturedAt: frame.Timestamp,
		Timestamp:  start,
		Lines:      d.prims.Lines(edges),
		Composite:  composite,
	}

	for _, contour := range d.prims.Contours(edges, d.params.Retrieval) {
		cand, ok := AcceptCandidate(d.prims.ApproxPolygon(contour, d.params.Epsilon), d.params.MinArea)
		if !ok {
			continue
		}
		res.Candidates++

		m, err := d.decodeCandidate(gray, cand)
		if err != nil {
			res.Rejected++
			if d.params.Debug {
				d.logger.Debug("candidate rejected",
					zap.Int64("frame", frame.Number),
					zap.Stringer("bounds", cand.Bounds),
					zap.Error(err))
			}
			drawPolygon(&res.Composite, cand.Points[:], features.RejectedColor)
			continue
		}

		res.Markers = append(res.Markers, m)
		drawPolygon(&res.Composite, cand.Points[:], features.DecodedColor)
	}

	res.Surface = d.evaluateSurface(frame.Mat, res.Markers, start)
	if res.Surface.Detected() {
		res.Features = append(res.Features, features.FromSurface(&res.Surface))
		drawQuad(&res.Composite, res.Surface.Corners, features.SurfaceColor)
		drawSurfaceCenter(&res.Composite, &res.Surface)
	} else if res.Surface.Status == surface.StatusFailed {
		d.logger.Debug("surface not rectified", zap.Int64("frame", frame.Number), zap.Error(res.Surface.Err))
	}

	for _, m := range res.Markers {
		res.Features = append(res.Features, features.FromMarker(m))
		drawDirection(&res.Composite, m)
	}
	if d.params.Debug {
		drawSegments(&res.Composite, res.Lines)
	}

	res.Duration = d.clock.Since(start)
	d.publish(res)
	return res, nil
}

// decodeCandidate rectifies a candidate from the gray frame and decodes it.
func (d *Detector) decodeCandidate(gray gocv.Mat, cand Candidate) (marker.Marker, error) {
	ordered, err := geometry.SortCorners(cand.Corners())
	if err != nil {
		return marker.Marker{}, err
	}

	size := image.Point{X: d.params.PatchSize, Y: d.params.PatchSize}
	patch, _, err := d.rect.Rectify(gray, size, ordered.Corners)
	if err != nil {
		return marker.Marker{}, err
	}
	defer patch.Close()

	cells := d.rect.Downsample(patch, marker.GridSize)
	defer cells.Close()

	return d.decoder.Decode(cells, ordered.Centroid, ordered.Corners)
}

func (d *Detector) evaluateSurface(src gocv.Mat, markers []marker.Marker, now time.Time) surface.Surface {
	if !d.params.FindSurface || len(markers) != 4 {
		return surface.Surface{Status: surface.StatusNotApplicable, Timestamp: now}
	}
	centers := make([]geometry.PointInt, len(markers))
	for i, m := range markers {
		centers[i] = m.Center
	}
	return d.extractor.Extract(src, centers, now)
}

// publish stores res as the latest result, releases the previous one,
// updates the pins and runs the callbacks.
func (d *Detector) publish(res *Result) {
	d.mu.Lock()
	prev := d.latest
	d.latest = res
	callbacks := slices.Clone(d.callbacks)
	d.mu.Unlock()

	if prev != nil {
		prev.close()
	}

	d.compositePin.Update(res.Composite, res.Timestamp)
	if res.Surface.Detected() {
		d.surfacePin.Update(res.Surface.Image, res.Timestamp)
	}

	for _, fn := range callbacks {
		fn(res)
	}
}

// Release frees the last result but leaves every pin open, for handing the
// pins over to a replacement detector.
func (d *Detector) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest != nil {
		d.latest.close()
		d.latest = nil
	}
}

// Close releases the last result and the pins the detector created.
func (d *Detector) Close() error {
	d.Release()

	d.mu.Lock()
	defer d.mu.Unlock()
	var errs error
	for _, p := range d.ownedPins {
		errs = multierr.Append(errs, p.Close())
	}
	return errs
}
