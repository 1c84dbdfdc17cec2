package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Option configures a Capture or Stills source.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	clock     clock.Clock
	maxFrames int64
	interval  time.Duration
}

func defaultOptions() options {
	return options{logger: zap.NewNop(), clock: clock.New()}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock used for frame timestamps and pacing.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMaxFrames stops the source after n frames. Zero means unlimited.
func WithMaxFrames(n int64) Option {
	return func(o *options) { o.maxFrames = n }
}

// WithFPS paces the source to at most fps frames per second. Zero disables
// pacing.
func WithFPS(fps float64) Option {
	return func(o *options) {
		if fps > 0 {
			o.interval = time.Duration(float64(time.Second) / fps)
		}
	}
}

// Capture reads frames from a camera or video file through OpenCV.
type Capture struct {
	dispatcher
	opts options
	name string
	vc   *gocv.VideoCapture
}

// Open opens a capture device by index ("0") or a video file by path.
func Open(device string, opts ...Option) (*Capture, error) {
	if id, err := strconv.Atoi(device); err == nil {
		return OpenDevice(id, opts...)
	}
	return OpenFile(device, opts...)
}

// OpenDevice opens a camera by index.
func OpenDevice(id int, opts ...Option) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", id, err)
	}
	return newCapture(fmt.Sprintf("device %d", id), vc, opts), nil
}

// OpenFile opens a video file.
func OpenFile(path string, opts ...Option) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	return newCapture(path, vc, opts), nil
}

func newCapture(name string, vc *gocv.VideoCapture, opts []Option) *Capture {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Capture{opts: o, name: name, vc: vc}
}

// Name returns the device or file name.
func (c *Capture) Name() string {
	return c.name
}

// Run reads frames into a single buffer and dispatches each one before the
// next read.
func (c *Capture) Run(ctx context.Context) error {
	img := gocv.NewMat()
	defer img.Close()

	log := c.opts.logger.With(zap.String("source", c.name))
	var n int64
	for {
		if err := ctx.Err(); err != nil {
			log.Debug("capture cancelled", zap.Int64("frames", n))
			return nil
		}
		if c.opts.maxFrames > 0 && n >= c.opts.maxFrames {
			return nil
		}

		start := c.opts.clock.Now()
		if ok := c.vc.Read(&img); !ok {
			log.Info("end of stream", zap.Int64("frames", n))
			return nil
		}
		if img.Empty() {
			continue
		}

		n++
		c.dispatch(Frame{Mat: img, Number: n, Timestamp: start})
		pace(ctx, c.opts, start)
	}
}

// Close releases the capture device.
func (c *Capture) Close() error {
	return c.vc.Close()
}

// pace sleeps until the frame interval has elapsed since start.
func pace(ctx context.Context, o options, start time.Time) {
	if o.interval <= 0 {
		return
	}
	wait := o.interval - o.clock.Since(start)
	if wait <= 0 {
		return
	}
	t := o.clock.Timer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
