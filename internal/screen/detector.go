package screen

import (
	"fmt"
	"image"
	"image/color"
	"slices"
	"sync"
	"time"

	"gaze-markers/internal/output"
	"gaze-markers/internal/source"
	"gaze-markers/internal/vision"
	"gaze-markers/pkg/geometry"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Pin names.
const (
	PinName        = "Screen Detector"
	PinDescription = "Composite Screen"
)

var outlineColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}

// Result is the outcome of one frame. Composite is valid until the next call
// to ProcessFrame.
type Result struct {
	Frame     int64
	Screen    Screen
	Composite gocv.Mat
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

// WithPin sets the composite output pin.
func WithPin(p *output.Pin) Option {
	return func(d *Detector) { d.pin = p }
}

// Detector finds the largest quadrilateral in each frame.
type Detector struct {
	params Params
	logger *zap.Logger
	clock  clock.Clock
	prims  vision.Primitives
	pin    *output.Pin

	mu        sync.RWMutex
	latest    *Result
	callbacks []func(*Result)
}

// New creates a screen detector.
func New(params Params, opts ...Option) *Detector {
	d := &Detector{
		params: params,
		logger: zap.NewNop(),
		clock:  clock.New(),
		prims:  vision.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pin == nil {
		d.pin = output.NewPin(PinName, PinDescription)
	}
	return d
}

// Name identifies the detector.
func (d *Detector) Name() string {
	return PinName
}

// Pin returns the composite output.
func (d *Detector) Pin() *output.Pin {
	return d.pin
}

// OnDetectionFinished registers fn to run after every processed frame.
func (d *Detector) OnDetectionFinished(fn func(*Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, fn)
}

// Latest returns the last result, or nil.
func (d *Detector) Latest() *Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest
}

// ProcessFrame looks for the screen in frame and publishes the composite.
func (d *Detector) ProcessFrame(frame source.Frame) (*Result, error) {
	if err := vision.CheckFrame(frame.Mat); err != nil {
		return nil, err
	}

	gray, err := d.prims.Grayscale(frame.Mat)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	edges := d.edges(gray)
	defer edges.Close()

	contours := d.prims.Contours(edges, vision.RetrievalList)
	polygons := make([][]image.Point, 0, len(contours))
	for _, c := range contours {
		polygons = append(polygons, d.approxClosed(c))
	}

	now := d.clock.Now()
	scr := Screen{Timestamp: now}
	if quad, area := largestQuad(polygons, d.params.MinArea); quad != nil {
		pts := [4]geometry.PointInt{}
		for i, p := range quad {
			pts[i] = geometry.FromImagePoint(p)
		}
		if ordered, err := geometry.SortCorners(pts); err == nil {
			scr.Detected = true
			scr.Corners = ordered.Corners
			scr.Bounds = ordered.Corners.Bounds()
			scr.Area = area
		} else {
			d.logger.Debug("screen corners rejected", zap.Error(err))
		}
	}

	composite, err := vision.ToBGR(frame.Mat)
	if err != nil {
		return nil, err
	}
	if scr.Detected {
		gocv.Rectangle(&composite, scr.Bounds.Image(), outlineColor, 2)
	}

	res := &Result{Frame: frame.Number, Screen: scr, Composite: composite}
	d.publish(res, now)
	return res, nil
}

// edges follows the pyramid edge pipeline: downsample, Canny, upsample,
// dilate.
func (d *Detector) edges(gray gocv.Mat) gocv.Mat {
	down := gocv.NewMat()
	defer down.Close()
	gocv.PyrDown(gray, &down, image.Point{}, gocv.BorderDefault)

	canny := d.prims.Edges(down, d.params.CannyLow, d.params.CannyHigh)
	defer canny.Close()

	up := gocv.NewMat()
	defer up.Close()
	gocv.PyrUp(canny, &up, image.Point{}, gocv.BorderDefault)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: d.params.DilateSize, Y: d.params.DilateSize})
	defer kernel.Close()

	dilated := gocv.NewMat()
	gocv.Dilate(up, &dilated, kernel)
	return dilated
}

// approxClosed approximates a contour using its closed perimeter.
func (d *Detector) approxClosed(contour []image.Point) []image.Point {
	if len(contour) < 3 {
		return nil
	}
	pv := gocv.NewPointVectorFromPoints(contour)
	defer pv.Close()

	approx := gocv.ApproxPolyDP(pv, gocv.ArcLength(pv, true)*d.params.Epsilon, true)
	defer approx.Close()
	return approx.ToPoints()
}

func (d *Detector) publish(res *Result, now time.Time) {
	d.mu.Lock()
	prev := d.latest
	d.latest = res
	callbacks := slices.Clone(d.callbacks)
	d.mu.Unlock()

	if prev != nil {
		prev.Composite.Close()
	}

	d.pin.Update(res.Composite, now)
	for _, fn := range callbacks {
		fn(res)
	}
}

// Close releases the last result and the pin.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest != nil {
		d.latest.Composite.Close()
		d.latest = nil
	}
	if err := d.pin.Close(); err != nil {
		return fmt.Errorf("close %s pin: %w", PinName, err)
	}
	return nil
}
