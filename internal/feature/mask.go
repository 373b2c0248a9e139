package feature

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Mask is a feathered 3-channel float mask shaped like a feature crop.
// Values are in [0,1] and identical across channels.
type Mask struct {
	mat gocv.Mat // CV_32FC3
}

// NewMask rasterises the convex hull of points (image coordinates) into the
// crop of box, dilates it slightly with a blur-then-threshold pass and
// feathers the edge with a second blur.
func NewMask(points []image.Point, box Box) (*Mask, error) {
	crop := box.Crop()
	if crop.Empty() {
		return nil, fmt.Errorf("%w: empty crop", ErrInvalidRegion)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no landmark points", ErrInvalidRegion)
	}

	local := make([]image.Point, len(points))
	for i, p := range points {
		local[i] = p.Sub(crop.Min)
	}
	hull := convexHull(local)

	hard := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), crop.Dy(), crop.Dx(), gocv.MatTypeCV8UC1)
	defer hard.Close()
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{hull})
	gocv.FillPoly(&hard, pv, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	pv.Close()

	soft := gocv.NewMat()
	defer soft.Close()
	hard.ConvertToWithParams(&soft, gocv.MatTypeCV32F, 1.0/255.0, 0)

	ksize := image.Pt(box.KernelSize, box.KernelSize)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(soft, &blurred, ksize, 0, 0, gocv.BorderDefault)

	// Anything the blur reached becomes fully inside
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Threshold(blurred, &dilated, 0, 1, gocv.ThresholdBinary)

	feathered := gocv.NewMat()
	defer feathered.Close()
	gocv.GaussianBlur(dilated, &feathered, ksize, 0, 0, gocv.BorderDefault)
	// kernel weights may sum a hair above 1 in float32
	gocv.Threshold(feathered, &feathered, 1, 1, gocv.ThresholdTrunc)

	mat := gocv.NewMat()
	gocv.Merge([]gocv.Mat{feathered, feathered, feathered}, &mat)

	return &Mask{mat: mat}, nil
}

// convexHull returns the hull of points in clockwise order
func convexHull(points []image.Point) []image.Point {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	indices := gocv.NewMat()
	defer indices.Close()
	gocv.ConvexHull(pv, &indices, true, false)

	hull := make([]image.Point, 0, indices.Rows())
	for i := 0; i < indices.Rows(); i++ {
		hull = append(hull, points[indices.GetIntAt(i, 0)])
	}
	if len(hull) == 0 {
		return points
	}
	return hull
}

// Rows returns the mask height
func (m *Mask) Rows() int {
	return m.mat.Rows()
}

// Cols returns the mask width
func (m *Mask) Cols() int {
	return m.mat.Cols()
}

// At returns the mask value at crop-local (x, y)
func (m *Mask) At(x, y int) float32 {
	return m.mat.GetVecfAt(y, x)[0]
}

// Mat returns the underlying 3-channel mask. It stays owned by the Mask.
func (m *Mask) Mat() gocv.Mat {
	return m.mat
}

// Channel returns a copy of one mask channel; the caller closes it
func (m *Mask) Channel(i int) gocv.Mat {
	channels := gocv.Split(m.mat)
	for j := range channels {
		if j != i {
			channels[j].Close()
		}
	}
	return channels[i]
}

// Close releases the mask
func (m *Mask) Close() error {
	return m.mat.Close()
}
