package detector

import (
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// Cascade finds face boxes with an OpenCV Haar cascade.
// It needs no model runtime, only the cascade XML file.
type Cascade struct {
	classifier gocv.CascadeClassifier
	minSize    int
}

// NewCascade loads a Haar cascade classifier from path
func NewCascade(path string, minSize int) (*Cascade, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade classifier: %s", path)
	}
	return &Cascade{classifier: classifier, minSize: minSize}, nil
}

// DetectBoxes runs the cascade on an equalised grey copy of img.
// Every hit scores 1, so larger boxes are returned first.
func (c *Cascade) DetectBoxes(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("cascade: empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	rects := c.classifier.DetectMultiScaleWithParams(gray, 1.1, 3, 0,
		image.Pt(c.minSize, c.minSize), image.Pt(0, 0))

	return rectsToFaces(rects), nil
}

// Close releases the classifier
func (c *Cascade) Close() error {
	return c.classifier.Close()
}

func rectsToFaces(rects []image.Rectangle) []Face {
	sort.SliceStable(rects, func(i, j int) bool {
		return rects[i].Dx()*rects[i].Dy() > rects[j].Dx()*rects[j].Dy()
	})

	faces := make([]Face, len(rects))
	for i, r := range rects {
		faces[i] = Face{
			BoundingBox: BoundingBox{
				X1: float32(r.Min.X), Y1: float32(r.Min.Y),
				X2: float32(r.Max.X), Y2: float32(r.Max.Y),
			},
			Score: 1,
		}
	}
	return faces
}
