package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudu/facemakeup/internal/canvas"
	"github.com/dudu/facemakeup/internal/config"
	"github.com/dudu/facemakeup/internal/detector"
	"github.com/dudu/facemakeup/internal/feature"
	"github.com/dudu/facemakeup/internal/inference"
)

// Timing holds performance timing information
type Timing struct {
	Detection time.Duration
	Assembly  time.Duration
	Edit      time.Duration
	Total     time.Duration
}

// Result summarises one Process call
type Result struct {
	Faces    int     // faces assembled
	Applied  int     // edits that succeeded, counted per face
	Failures []error // feature-local failures that did not stop the run
}

// Pipeline detects faces, assembles their features and applies a recipe
type Pipeline struct {
	detector   LandmarkDetector
	makeup     config.Makeup
	logger     logrus.FieldLogger
	ownsORT    bool
	lastTiming Timing
}

// New creates a pipeline around an existing detector; the pipeline takes ownership of it
func New(det LandmarkDetector, makeup config.Makeup, logger logrus.FieldLogger) (*Pipeline, error) {
	if det == nil {
		return nil, errors.New("landmark detector is required")
	}
	if err := makeup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid makeup settings: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		detector: det,
		makeup:   makeup,
		logger:   logger,
	}, nil
}

// NewFromConfig builds the configured box detector and landmark model
func NewFromConfig(cfg config.Config, logger logrus.FieldLogger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Initialize ONNX Runtime
	if err := inference.Initialize(cfg.Detector.ONNXLibrary); err != nil {
		return nil, fmt.Errorf("failed to initialize inference: %w", err)
	}

	boxes, err := newBoxDetector(cfg.Detector, logger)
	if err != nil {
		inference.Shutdown()
		return nil, err
	}

	predictor, err := detector.NewLandmark68(detector.LandmarkConfig{
		ModelPath:  cfg.Detector.LandmarkModel,
		InputName:  cfg.Detector.LandmarkInput,
		OutputName: cfg.Detector.LandmarkOutput,
		InputSize:  cfg.Detector.LandmarkInputSize,
		Expand:     cfg.Detector.LandmarkExpand,
	}, logger)
	if err != nil {
		boxes.Close()
		inference.Shutdown()
		return nil, fmt.Errorf("failed to create landmark predictor: %w", err)
	}

	p, err := New(detector.NewFaceLandmarker(boxes, predictor), cfg.Makeup, logger)
	if err != nil {
		boxes.Close()
		predictor.Close()
		inference.Shutdown()
		return nil, err
	}
	p.ownsORT = true

	logger.WithFields(logrus.Fields{
		"backend":  cfg.Detector.Backend,
		"landmark": cfg.Detector.LandmarkModel,
	}).Info("Pipeline ready")
	return p, nil
}

func newBoxDetector(cfg config.Detector, logger logrus.FieldLogger) (detector.BoxDetector, error) {
	switch cfg.Backend {
	case config.BackendCascade:
		det, err := detector.NewCascade(cfg.CascadePath, cfg.CascadeMinSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create cascade detector: %w", err)
		}
		return det, nil
	case config.BackendSCRFD:
		det, err := detector.NewSCRFD(cfg.SCRFDModel, cfg.SCRFDInputSize, cfg.ConfThreshold, cfg.NMSThreshold, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create detector: %w", err)
		}
		return det, nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

// Process detects faces on c and applies recipe to each of them in order.
// With no face the canvas is left untouched and detector.ErrNoFaceDetected
// is returned. Feature-local failures are collected in the result and do
// not stop later steps.
func (p *Pipeline) Process(c *canvas.Canvas, recipe []config.Step) (Result, error) {
	totalStart := time.Now()
	var timing Timing
	var result Result

	for i, step := range recipe {
		if err := step.Validate(); err != nil {
			return result, fmt.Errorf("recipe step %d: %w", i, err)
		}
	}

	// Detect faces
	detectStart := time.Now()
	frame, err := c.BGR()
	if err != nil {
		return result, err
	}
	landmarks, err := p.detector.Detect(frame, p.makeup.MaxFaces)
	frame.Close()
	timing.Detection = time.Since(detectStart)
	if err != nil {
		p.record(timing, totalStart)
		return result, fmt.Errorf("detection failed: %w", err)
	}
	if len(landmarks) > p.makeup.MaxFaces {
		landmarks = landmarks[:p.makeup.MaxFaces]
	}

	// Assemble features
	assembleStart := time.Now()
	trace := feature.LogTrace(p.logger)
	faces := make([]*feature.Face, 0, len(landmarks))
	defer func() {
		for _, face := range faces {
			face.Close()
		}
	}()
	for i, lm := range landmarks {
		face, err := feature.NewFace(c, lm, p.makeup.Params(), trace)
		if err != nil {
			p.logger.WithError(err).WithField("face", i).Warn("Some features could not be built")
			result.Failures = append(result.Failures, err)
		}
		faces = append(faces, face)
	}
	result.Faces = len(faces)
	timing.Assembly = time.Since(assembleStart)

	// Apply recipe
	editStart := time.Now()
	for _, step := range recipe {
		name, _ := feature.ParseName(step.Feature)
		for i, face := range faces {
			if err := apply(face, name, step); err != nil {
				p.logger.WithError(err).WithField("face", i).Warn("Edit skipped")
				result.Failures = append(result.Failures, err)
				continue
			}
			result.Applied++
		}
	}
	timing.Edit = time.Since(editStart)

	p.record(timing, totalStart)
	return result, nil
}

func apply(face *feature.Face, name feature.Name, step config.Step) error {
	ft, err := face.Feature(name)
	if err != nil {
		return err
	}
	switch {
	case step.Brighten != nil:
		return ft.Brighten(*step.Brighten)
	case step.Resize != nil:
		_, err := ft.Resize(step.Resize.Width, step.Resize.Height)
		return err
	}
	return nil
}

func (p *Pipeline) record(timing Timing, start time.Time) {
	timing.Total = time.Since(start)
	p.lastTiming = timing
}

// LastTiming returns timing from last Process call
func (p *Pipeline) LastTiming() Timing {
	return p.lastTiming
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error

	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, err)
		}
		p.detector = nil
	}

	if p.ownsORT {
		if err := inference.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		p.ownsORT = false
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %w", errors.Join(errs...))
	}
	return nil
}
