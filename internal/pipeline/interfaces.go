package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/facemakeup/internal/detector"
)

// LandmarkDetector finds up to maxFaces faces and returns 68 landmarks for each.
// It returns detector.ErrNoFaceDetected when the frame holds no face.
type LandmarkDetector interface {
	Detect(img gocv.Mat, maxFaces int) ([]detector.Landmarks68, error)
	Close() error
}
