package detector

import (
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facemakeup/internal/inference"
)

// LandmarkConfig describes the 68-point regression model
type LandmarkConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
	InputSize  int
	// Expand scales the square crop around the face box before it is fed to the model
	Expand float32
}

// Landmark68 predicts 68 facial landmarks inside a detected face box.
// The model takes a square RGB crop normalised to [0,1] and returns 136
// values, x/y pairs in crop-relative [0,1] coordinates.
type Landmark68 struct {
	session   *inference.Session
	inputSize int
	expand    float32
}

// NewLandmark68 creates a new 68-point landmark predictor
func NewLandmark68(cfg LandmarkConfig, logger logrus.FieldLogger) (*Landmark68, error) {
	session, err := inference.NewSession(cfg.ModelPath, []string{cfg.InputName}, []string{cfg.OutputName}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark session: %w", err)
	}

	expand := cfg.Expand
	if expand <= 0 {
		expand = 1
	}

	return &Landmark68{
		session:   session,
		inputSize: cfg.InputSize,
		expand:    expand,
	}, nil
}

// Detect fills face.Landmarks for a detected face
func (l *Landmark68) Detect(img gocv.Mat, face *Face) error {
	crop := newCropTransform(face.BoundingBox, l.inputSize, l.expand)

	M := crop.matrix()
	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, M, image.Pt(l.inputSize, l.inputSize))
	M.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(aligned, &rgb, gocv.ColorBGRToRGB)

	// HWC uint8 to NCHW float in [0,1]
	blob := gocv.BlobFromImage(rgb, 1.0/255.0, image.Pt(l.inputSize, l.inputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	floatData := inference.BytesToFloat32(blob.ToBytes())

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(l.inputSize), int64(l.inputSize)}, floatData)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, NumLandmarks * 2})
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := l.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return fmt.Errorf("landmark inference failed: %w", err)
	}

	landmarks, err := crop.postprocess(outputTensor.GetData())
	if err != nil {
		return err
	}
	face.Landmarks = &landmarks
	return nil
}

// Close releases predictor resources
func (l *Landmark68) Close() error {
	return l.session.Destroy()
}

// cropTransform maps between image space and the model's square input
type cropTransform struct {
	centerX, centerY float32
	scale            float32
	size             int
}

func newCropTransform(bbox BoundingBox, size int, expand float32) cropTransform {
	center := bbox.Center()
	maxDim := max(bbox.Width(), bbox.Height())
	if maxDim <= 0 {
		maxDim = 1
	}
	return cropTransform{
		centerX: center.X,
		centerY: center.Y,
		scale:   float32(size) / (maxDim * expand),
		size:    size,
	}
}

// matrix creates the 2x3 affine transform for the face crop (scale and translate, no rotation)
func (c cropTransform) matrix() gocv.Mat {
	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)

	half := float64(c.size) / 2
	M.SetDoubleAt(0, 0, float64(c.scale))
	M.SetDoubleAt(0, 1, 0)
	M.SetDoubleAt(0, 2, half-float64(c.centerX*c.scale))
	M.SetDoubleAt(1, 0, 0)
	M.SetDoubleAt(1, 1, float64(c.scale))
	M.SetDoubleAt(1, 2, half-float64(c.centerY*c.scale))

	return M
}

// postprocess maps crop-relative model output back to integer image coordinates
func (c cropTransform) postprocess(output []float32) (Landmarks68, error) {
	var landmarks Landmarks68
	if len(output) < NumLandmarks*2 {
		return landmarks, fmt.Errorf("landmark output has %d values, want %d", len(output), NumLandmarks*2)
	}

	half := float32(c.size) / 2
	for i := 0; i < NumLandmarks; i++ {
		x := output[i*2] * float32(c.size)
		y := output[i*2+1] * float32(c.size)

		landmarks[i] = image.Pt(
			int(math.Round(float64((x-half)/c.scale+c.centerX))),
			int(math.Round(float64((y-half)/c.scale+c.centerY))),
		)
	}

	return landmarks, nil
}
