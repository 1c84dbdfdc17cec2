// Package app wires frame sources, detectors, the detection store and pin
// snapshots into a processing pipeline.
package app

import (
	"gaze-markers/internal/features"
)

// EventType identifies pipeline events.
type EventType int

const (
	// EventFrameProcessed carries a FrameSummary after every frame.
	EventFrameProcessed EventType = iota
	// EventDetectionFinished carries the marker detector's *detector.Result.
	EventDetectionFinished
	// EventSurfaceDetected carries the *surface.Surface when one was rectified.
	EventSurfaceDetected
	// EventScreenDetected carries the screen.Screen when one was found.
	EventScreenDetected
	// EventFrameFailed carries a FrameError.
	EventFrameFailed
	// EventReconfigured carries the new detector.Params.
	EventReconfigured
)

func (e EventType) String() string {
	switch e {
	case EventFrameProcessed:
		return "frame-processed"
	case EventDetectionFinished:
		return "detection-finished"
	case EventSurfaceDetected:
		return "surface-detected"
	case EventScreenDetected:
		return "screen-detected"
	case EventFrameFailed:
		return "frame-failed"
	case EventReconfigured:
		return "reconfigured"
	default:
		return "unknown"
	}
}

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// FrameSummary describes one processed frame.
type FrameSummary struct {
	Frame    int64
	Features []features.Feature
	Failed   bool
}

// FrameError reports a detector that could not process a frame.
type FrameError struct {
	Frame    int64
	Detector string
	Err      error
}

func (e FrameError) Error() string {
	return e.Detector + ": " + e.Err.Error()
}

func (e FrameError) Unwrap() error {
	return e.Err
}
