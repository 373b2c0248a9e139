package feature

import (
	"image"
	"math"
	"testing"
)

// octagon returns eight points on a radius-40 octagon around (100,100)
func octagon() []image.Point {
	return []image.Point{
		{60, 100}, {140, 100}, {100, 60}, {100, 140},
		{72, 72}, {128, 72}, {72, 128}, {128, 128},
	}
}

func TestMaskSquareScenario(t *testing.T) {
	points := []image.Point{{10, 10}, {10, 20}, {20, 20}, {20, 10}}
	box, err := ComputeBox(points, 100, 100, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	mask, err := NewMask(points, box)
	if err != nil {
		t.Fatalf("NewMask failed: %v", err)
	}
	defer mask.Close()

	if mask.Rows() != 10 || mask.Cols() != 26 {
		t.Fatalf("Expected 10x26 mask, got %dx%d", mask.Rows(), mask.Cols())
	}

	// image (15,15) is crop-local (13,5)
	if v := mask.At(13, 5); math.Abs(float64(v)-1) > 1e-5 {
		t.Errorf("Expected mask ~1 inside the hull, got %v", v)
	}
	if v := mask.At(0, 0); v > 1e-5 {
		t.Errorf("Expected mask ~0 at the box corner, got %v", v)
	}
	// the hull boundary is inclusive
	if v := mask.At(8, 0); math.Abs(float64(v)-1) > 1e-5 {
		t.Errorf("Expected hull vertex to be filled, got %v", v)
	}
}

func TestMaskFeathered(t *testing.T) {
	points := octagon()
	box, err := ComputeBox(points, 200, 200, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if box.KernelSize != 5 {
		t.Fatalf("Expected kernel 5 for this region, got %d", box.KernelSize)
	}

	mask, err := NewMask(points, box)
	if err != nil {
		t.Fatalf("NewMask failed: %v", err)
	}
	defer mask.Close()

	crop := box.Crop()
	if mask.Rows() != crop.Dy() || mask.Cols() != crop.Dx() {
		t.Fatalf("Mask %dx%d does not match crop %v", mask.Cols(), mask.Rows(), crop)
	}

	center := image.Pt(100, 100).Sub(crop.Min)
	if v := mask.At(center.X, center.Y); math.Abs(float64(v)-1) > 1e-5 {
		t.Errorf("Expected 1 at the hull centroid, got %v", v)
	}
	if v := mask.At(0, 0); v != 0 {
		t.Errorf("Expected 0 far outside the hull, got %v", v)
	}

	mat := mask.Mat()
	feathered := false
	for y := 0; y < mask.Rows(); y++ {
		for x := 0; x < mask.Cols(); x++ {
			px := mat.GetVecfAt(y, x)
			if px[0] < 0 || px[0] > 1 {
				t.Fatalf("Mask value %v at (%d,%d) outside [0,1]", px[0], x, y)
			}
			if px[0] != px[1] || px[1] != px[2] {
				t.Fatalf("Channels differ at (%d,%d): %v", x, y, px)
			}
			if px[0] > 0.01 && px[0] < 0.99 {
				feathered = true
			}
		}
	}
	if !feathered {
		t.Error("Expected a soft transition at the hull boundary")
	}
}

func TestMaskDilatesBeyondHull(t *testing.T) {
	points := octagon()
	box, err := ComputeBox(points, 200, 200, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	mask, err := NewMask(points, box)
	if err != nil {
		t.Fatal(err)
	}
	defer mask.Close()

	// one pixel left of the leftmost vertex is outside the hull but inside the dilation
	p := image.Pt(59, 100).Sub(box.Crop().Min)
	if v := mask.At(p.X, p.Y); v <= 0 {
		t.Errorf("Expected dilated mask to reach past the hull, got %v", v)
	}
}

func TestMaskChannel(t *testing.T) {
	points := octagon()
	box, _ := ComputeBox(points, 200, 200, DefaultParams())
	mask, err := NewMask(points, box)
	if err != nil {
		t.Fatal(err)
	}
	defer mask.Close()

	ch := mask.Channel(1)
	defer ch.Close()
	if ch.Channels() != 1 || ch.Rows() != mask.Rows() || ch.Cols() != mask.Cols() {
		t.Fatalf("Unexpected channel shape %dx%dx%d", ch.Rows(), ch.Cols(), ch.Channels())
	}
	if ch.GetFloatAt(10, 10) != mask.At(10, 10) {
		t.Error("Channel copy differs from mask")
	}
}

func TestConvexHullDropsInteriorPoints(t *testing.T) {
	points := []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {5, 5}, {3, 7}}
	hull := convexHull(points)
	if len(hull) != 4 {
		t.Fatalf("Expected 4 hull points, got %v", hull)
	}
	for _, p := range hull {
		if p == image.Pt(5, 5) || p == image.Pt(3, 7) {
			t.Errorf("Interior point %v kept in hull", p)
		}
	}
}
