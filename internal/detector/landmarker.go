package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// PointPredictor fills the landmarks of a face found by a BoxDetector
type PointPredictor interface {
	Detect(img gocv.Mat, face *Face) error
	Close() error
}

// FaceLandmarker composes a box detector with a landmark predictor
type FaceLandmarker struct {
	boxes     BoxDetector
	predictor PointPredictor
}

// NewFaceLandmarker takes ownership of both collaborators
func NewFaceLandmarker(boxes BoxDetector, predictor PointPredictor) *FaceLandmarker {
	return &FaceLandmarker{boxes: boxes, predictor: predictor}
}

// Detect returns landmarks for at most maxFaces faces, highest score first.
// Faces beyond maxFaces are ignored; zero boxes yields ErrNoFaceDetected.
func (f *FaceLandmarker) Detect(img gocv.Mat, maxFaces int) ([]Landmarks68, error) {
	faces, err := f.boxes.DetectBoxes(img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	sortByScore(faces)
	if maxFaces > 0 && len(faces) > maxFaces {
		faces = faces[:maxFaces]
	}

	result := make([]Landmarks68, 0, len(faces))
	for i := range faces {
		if err := f.predictor.Detect(img, &faces[i]); err != nil {
			return nil, fmt.Errorf("landmark prediction for face %d failed: %w", i, err)
		}
		if faces[i].Landmarks == nil {
			return nil, fmt.Errorf("landmark prediction for face %d returned no points", i)
		}
		result = append(result, *faces[i].Landmarks)
	}

	return result, nil
}

// Close releases both collaborators
func (f *FaceLandmarker) Close() error {
	var errs []error
	if f.boxes != nil {
		if err := f.boxes.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.predictor != nil {
		if err := f.predictor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
