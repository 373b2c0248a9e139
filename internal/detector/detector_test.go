package detector

import (
	"errors"
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

type fakeBoxes struct {
	faces  []Face
	err    error
	closed bool
}

func (f *fakeBoxes) DetectBoxes(img gocv.Mat) ([]Face, error) {
	out := make([]Face, len(f.faces))
	copy(out, f.faces)
	return out, f.err
}

func (f *fakeBoxes) Close() error {
	f.closed = true
	return nil
}

// fakePredictor places every landmark at the box center
type fakePredictor struct {
	calls  int
	closed bool
}

func (p *fakePredictor) Detect(img gocv.Mat, face *Face) error {
	p.calls++
	c := face.BoundingBox.Center()
	var lm Landmarks68
	for i := range lm {
		lm[i] = image.Pt(int(c.X), int(c.Y))
	}
	face.Landmarks = &lm
	return nil
}

func (p *fakePredictor) Close() error {
	p.closed = true
	return nil
}

func TestFaceLandmarkerNoFace(t *testing.T) {
	img := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()

	pred := &fakePredictor{}
	lm := NewFaceLandmarker(&fakeBoxes{}, pred)

	_, err := lm.Detect(img, 1)
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("Expected ErrNoFaceDetected, got %v", err)
	}
	if pred.calls != 0 {
		t.Errorf("Predictor should not run without faces, ran %d times", pred.calls)
	}
}

func TestFaceLandmarkerKeepsBestFaces(t *testing.T) {
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	boxes := &fakeBoxes{faces: []Face{
		{BoundingBox: BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.6},
		{BoundingBox: BoundingBox{X1: 40, Y1: 40, X2: 60, Y2: 60}, Score: 0.9},
		{BoundingBox: BoundingBox{X1: 80, Y1: 80, X2: 90, Y2: 90}, Score: 0.7},
	}}
	pred := &fakePredictor{}
	lm := NewFaceLandmarker(boxes, pred)

	got, err := lm.Detect(img, 1)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(got))
	}
	if got[0][0] != image.Pt(50, 50) {
		t.Errorf("Expected highest scoring face at (50,50), got %v", got[0][0])
	}
	if pred.calls != 1 {
		t.Errorf("Expected 1 predictor call, got %d", pred.calls)
	}

	if err := lm.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !boxes.closed || !pred.closed {
		t.Error("Close should release both collaborators")
	}
}

func TestFaceLandmarkerBoxError(t *testing.T) {
	img := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()

	boom := errors.New("boom")
	lm := NewFaceLandmarker(&fakeBoxes{err: boom}, &fakePredictor{})
	if _, err := lm.Detect(img, 1); !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped detector error, got %v", err)
	}
}

func TestNMS(t *testing.T) {
	faces := []Face{
		{BoundingBox: BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.8},
		{BoundingBox: BoundingBox{X1: 1, Y1: 1, X2: 11, Y2: 11}, Score: 0.9},
		{BoundingBox: BoundingBox{X1: 50, Y1: 50, X2: 60, Y2: 60}, Score: 0.5},
	}

	kept := nms(faces, 0.4)
	if len(kept) != 2 {
		t.Fatalf("Expected 2 faces after NMS, got %d", len(kept))
	}
	if kept[0].Score != 0.9 || kept[1].Score != 0.5 {
		t.Errorf("Unexpected faces kept: %+v", kept)
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b BoundingBox
		want float32
	}{
		{"identical", BoundingBox{0, 0, 10, 10}, BoundingBox{0, 0, 10, 10}, 1},
		{"disjoint", BoundingBox{0, 0, 10, 10}, BoundingBox{20, 20, 30, 30}, 0},
		{"half overlap", BoundingBox{0, 0, 10, 10}, BoundingBox{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", BoundingBox{0, 0, 0, 0}, BoundingBox{0, 0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("iou() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCropTransformRoundTrip(t *testing.T) {
	crop := newCropTransform(BoundingBox{X1: 100, Y1: 200, X2: 200, Y2: 300}, 112, 1.2)

	// The crop center maps back to the box center, the crop corner to center - half extent.
	output := make([]float32, NumLandmarks*2)
	output[0], output[1] = 0.5, 0.5
	output[2], output[3] = 0, 0

	lm, err := crop.postprocess(output)
	if err != nil {
		t.Fatalf("postprocess failed: %v", err)
	}
	if lm[0] != image.Pt(150, 250) {
		t.Errorf("Expected center (150,250), got %v", lm[0])
	}
	// half extent is 100*1.2/2 = 60
	if lm[1] != image.Pt(90, 190) {
		t.Errorf("Expected corner (90,190), got %v", lm[1])
	}
}

func TestCropTransformShortOutput(t *testing.T) {
	crop := newCropTransform(BoundingBox{X2: 10, Y2: 10}, 112, 1)
	if _, err := crop.postprocess(make([]float32, 10)); err == nil {
		t.Fatal("Expected error for short output")
	}
}

func TestLandmarksSliceCopies(t *testing.T) {
	var lm Landmarks68
	for i := range lm {
		lm[i] = image.Pt(i, i*2)
	}

	pts := lm.Slice(48, 61)
	if len(pts) != 13 {
		t.Fatalf("Expected 13 points, got %d", len(pts))
	}
	if pts[0] != image.Pt(48, 96) {
		t.Errorf("Expected first point (48,96), got %v", pts[0])
	}

	pts[0] = image.Pt(-1, -1)
	if lm[48] != image.Pt(48, 96) {
		t.Error("Slice must not alias the landmark array")
	}

	if got := lm.Slice(70, 80); got != nil {
		t.Errorf("Expected nil for out-of-range slice, got %v", got)
	}
}

func TestLandmarksBounds(t *testing.T) {
	var lm Landmarks68
	for i := range lm {
		lm[i] = image.Pt(10+i%5, 20+i%7)
	}
	want := image.Rect(10, 20, 15, 27)
	if got := lm.Bounds(); got != want {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}
}

func TestRectsToFacesOrdersByArea(t *testing.T) {
	faces := rectsToFaces([]image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(0, 0, 30, 30),
	})
	if len(faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(faces))
	}
	if faces[0].BoundingBox.Width() != 30 {
		t.Errorf("Expected largest box first, got %+v", faces[0].BoundingBox)
	}
}

func TestDecodeSCRFD(t *testing.T) {
	s := &SCRFD{
		inputSize:      32,
		confThreshold:  0.5,
		featureStrides: []int{8, 16, 32},
		numAnchors:     1,
	}

	scores := make([][]float32, 3)
	boxes := make([][]float32, 3)
	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		scores[level] = make([]float32, fm*fm)
		for i := range scores[level] {
			scores[level][i] = -10
		}
		boxes[level] = make([]float32, fm*fm*4)
	}
	// One confident anchor at level 0, cell (1,1): center (12,12), 1 stride each side.
	anchor := 1*4 + 1
	scores[0][anchor] = 10
	copy(boxes[0][anchor*4:], []float32{1, 1, 1, 1})

	faces := s.decode(scores, boxes, 0.5, 100, 100)
	if len(faces) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(faces))
	}
	want := BoundingBox{X1: 8, Y1: 8, X2: 40, Y2: 40}
	if faces[0].BoundingBox != want {
		t.Errorf("Expected %+v, got %+v", want, faces[0].BoundingBox)
	}
}
