package app

import (
	"gaze-markers/internal/detector"
	"gaze-markers/internal/features"
	"gaze-markers/internal/screen"
	"gaze-markers/internal/source"
)

// FeatureDetector is one detection stage of the pipeline.
type FeatureDetector interface {
	Name() string
	Detect(frame source.Frame) ([]features.Feature, error)
	Close() error
}

type markerStage struct {
	d *detector.Detector
}

func (s markerStage) Name() string { return s.d.Name() }

func (s markerStage) Detect(frame source.Frame) ([]features.Feature, error) {
	res, err := s.d.ProcessFrame(frame)
	if err != nil {
		return nil, err
	}
	return res.Features, nil
}

func (s markerStage) Close() error { return s.d.Close() }

type screenStage struct {
	d *screen.Detector
}

func (s screenStage) Name() string { return s.d.Name() }

func (s screenStage) Detect(frame source.Frame) ([]features.Feature, error) {
	res, err := s.d.ProcessFrame(frame)
	if err != nil {
		return nil, err
	}
	if !res.Screen.Detected {
		return nil, nil
	}
	return []features.Feature{features.FromScreen(res.Screen)}, nil
}

func (s screenStage) Close() error { return s.d.Close() }
