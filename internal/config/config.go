package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dudu/facemakeup/internal/feature"
)

// Backend selects how face boxes are found before landmark prediction
type Backend string

const (
	BackendSCRFD   Backend = "scrfd"
	BackendCascade Backend = "cascade"
)

// Config is the full set of tunables for one run
type Config struct {
	Makeup   Makeup   `yaml:"makeup"`
	Detector Detector `yaml:"detector"`
	Recipe   []Step   `yaml:"recipe"`
}

// Makeup holds the region geometry and editing constants
type Makeup struct {
	BoxPadding     int     `yaml:"box_padding"`     // horizontal padding added on both sides of a feature box
	KernelRate     int     `yaml:"kernel_rate"`     // larger rate, smaller blur kernel, sharper mask edge
	BrightenRate   float64 `yaml:"brighten_rate"`   // used by steps that enable brightening without a rate
	BrightenKernel int     `yaml:"brighten_kernel"` // blur applied to the saturation delta
	MaxFaces       int     `yaml:"max_faces"`
}

// Detector configures the landmark detection boundary
type Detector struct {
	Backend        Backend `yaml:"backend"`
	ONNXLibrary    string  `yaml:"onnx_library"`
	SCRFDModel     string  `yaml:"scrfd_model"`
	SCRFDInputSize int     `yaml:"scrfd_input_size"`
	ConfThreshold  float32 `yaml:"conf_threshold"`
	NMSThreshold   float32 `yaml:"nms_threshold"`
	CascadePath    string  `yaml:"cascade_path"`
	CascadeMinSize int     `yaml:"cascade_min_size"`

	LandmarkModel     string  `yaml:"landmark_model"`
	LandmarkInputSize int     `yaml:"landmark_input_size"`
	LandmarkExpand    float32 `yaml:"landmark_expand"`
	LandmarkInput     string  `yaml:"landmark_input"`
	LandmarkOutput    string  `yaml:"landmark_output"`
}

// Step is one edit applied to a named feature. Exactly one of Brighten
// or Resize must be set.
type Step struct {
	Feature  string   `yaml:"feature"`
	Brighten *float64 `yaml:"brighten,omitempty"`
	Resize   *Size    `yaml:"resize,omitempty"`
}

// Size is a target pixel size for resize-and-paste
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Default returns the stock configuration
func Default() Config {
	return Config{
		Makeup: Makeup{
			BoxPadding:     8,
			KernelRate:     15,
			BrightenRate:   1.0,
			BrightenKernel: 3,
			MaxFaces:       1,
		},
		Detector: Detector{
			Backend:           BackendSCRFD,
			SCRFDModel:        "models/scrfd_10g.onnx",
			SCRFDInputSize:    640,
			ConfThreshold:     0.5,
			NMSThreshold:      0.4,
			CascadePath:       "models/haarcascade_frontalface_default.xml",
			CascadeMinSize:    40,
			LandmarkModel:     "models/landmark68.onnx",
			LandmarkInputSize: 112,
			LandmarkExpand:    1.2,
			LandmarkInput:     "input",
			LandmarkOutput:    "output",
		},
	}
}

// Load reads a YAML file on top of the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every tunable and recipe step
func (c Config) Validate() error {
	var errs []error

	if err := c.Makeup.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Detector.Backend {
	case BackendSCRFD, BackendCascade:
	default:
		errs = append(errs, fmt.Errorf("unknown detector backend %q", c.Detector.Backend))
	}
	if c.Detector.LandmarkInputSize <= 0 {
		errs = append(errs, fmt.Errorf("landmark_input_size must be positive, got %d", c.Detector.LandmarkInputSize))
	}

	for i, step := range c.Recipe {
		if err := step.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("recipe step %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Params converts the makeup constants for the feature package
func (m Makeup) Params() feature.Params {
	return feature.Params{
		Padding:        m.BoxPadding,
		KernelRate:     m.KernelRate,
		BrightenKernel: m.BrightenKernel,
	}
}

// Validate checks the makeup constants
func (m Makeup) Validate() error {
	var errs []error
	if m.BoxPadding < 0 {
		errs = append(errs, fmt.Errorf("box_padding must not be negative, got %d", m.BoxPadding))
	}
	if m.KernelRate <= 0 {
		errs = append(errs, fmt.Errorf("kernel_rate must be positive, got %d", m.KernelRate))
	}
	if m.BrightenRate < 0 {
		errs = append(errs, fmt.Errorf("brighten_rate must not be negative, got %g", m.BrightenRate))
	}
	if m.BrightenKernel <= 0 || m.BrightenKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("brighten_kernel must be odd and positive, got %d", m.BrightenKernel))
	}
	if m.MaxFaces <= 0 {
		errs = append(errs, fmt.Errorf("max_faces must be positive, got %d", m.MaxFaces))
	}
	return errors.Join(errs...)
}

// Validate checks that a step names a feature and exactly one operation
func (s Step) Validate() error {
	if strings.TrimSpace(s.Feature) == "" {
		return errors.New("feature is required")
	}
	if _, err := feature.ParseName(s.Feature); err != nil {
		return err
	}
	switch {
	case s.Brighten == nil && s.Resize == nil:
		return fmt.Errorf("%s: no operation set", s.Feature)
	case s.Brighten != nil && s.Resize != nil:
		return fmt.Errorf("%s: brighten and resize are exclusive", s.Feature)
	case s.Brighten != nil && *s.Brighten < 0:
		return fmt.Errorf("%s: brighten rate must not be negative, got %g", s.Feature, *s.Brighten)
	case s.Resize != nil && (s.Resize.Width <= 0 || s.Resize.Height <= 0):
		return fmt.Errorf("%s: resize needs a positive size, got %dx%d", s.Feature, s.Resize.Width, s.Resize.Height)
	}
	return nil
}

// ParseStep parses the CLI forms "mouth=1.8" (brighten) and "left_eye=70x30"
// (resize). A bare "mouth" brightens with defaultRate.
func ParseStep(kind, arg string, defaultRate float64) (Step, error) {
	name, value, hasValue := strings.Cut(arg, "=")
	if name == "" || (hasValue && value == "") {
		return Step{}, fmt.Errorf("expected FEATURE=VALUE, got %q", arg)
	}

	step := Step{Feature: name}
	switch kind {
	case "brighten":
		rate := defaultRate
		if hasValue {
			if _, err := fmt.Sscanf(value, "%g", &rate); err != nil {
				return Step{}, fmt.Errorf("invalid brighten rate %q: %w", value, err)
			}
		}
		step.Brighten = &rate
	case "resize":
		if !hasValue {
			return Step{}, fmt.Errorf("expected FEATURE=WxH, got %q", arg)
		}
		var size Size
		if _, err := fmt.Sscanf(value, "%dx%d", &size.Width, &size.Height); err != nil {
			return Step{}, fmt.Errorf("invalid size %q, want WxH: %w", value, err)
		}
		step.Resize = &size
	default:
		return Step{}, fmt.Errorf("unknown step kind %q", kind)
	}

	return step, step.Validate()
}
