// Package source delivers frames from cameras, video files and still images.
package source

import (
	"context"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one image from a source. Mat is owned by the source and is only
// valid for the duration of the handler call; handlers must clone it to keep
// it.
type Frame struct {
	Mat       gocv.Mat
	Number    int64
	Timestamp time.Time
}

// FrameHandler is invoked once per frame, in registration order.
type FrameHandler func(Frame)

// Source produces frames until it is exhausted or its context is cancelled.
type Source interface {
	// Name describes the source, e.g. "device 0" or a file path.
	Name() string
	// OnFrame registers a handler.
	OnFrame(h FrameHandler)
	// Run reads frames and dispatches them synchronously. It returns nil when
	// the source is exhausted or ctx is cancelled.
	Run(ctx context.Context) error
	// Close releases the underlying device or files.
	Close() error
}

// dispatcher holds the handler list shared by the source implementations.
type dispatcher struct {
	handlers []FrameHandler
}

func (d *dispatcher) OnFrame(h FrameHandler) {
	d.handlers = append(d.handlers, h)
}

func (d *dispatcher) dispatch(f Frame) {
	for _, h := range d.handlers {
		h(f)
	}
}
