package feature

import (
	"fmt"
	"image"
	"math"
)

// Params are the geometry and editing constants shared by every feature of a face
type Params struct {
	Padding        int // horizontal padding added to both sides of the box
	KernelRate     int // divisor turning region size into a blur kernel side
	BrightenKernel int // blur kernel side applied to the saturation delta
}

// DefaultParams returns the stock constants
func DefaultParams() Params {
	return Params{Padding: 8, KernelRate: 15, BrightenKernel: 3}
}

// Box is the derived geometry of one feature. It is computed once and never changes.
type Box struct {
	Top, Bottom int // min and max landmark y, unpadded
	Left, Right int // min and max landmark x, padded by Params.Padding

	Width, Height int
	Area          int // Width * Height * 3

	// Adjustment grows the crop beyond the box, proportional to region size
	Adjustment int
	KernelSize int // odd and >= 1

	// Crop boundaries, clamped to the image. Upper bounds are exclusive.
	YLower, YUpper int
	XLower, XUpper int
}

// Crop returns the clamped crop rectangle in image coordinates
func (b Box) Crop() image.Rectangle {
	return image.Rect(b.XLower, b.YLower, b.XUpper, b.YUpper)
}

// Rect returns the unclamped landmark box
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// ComputeBox derives a feature box from its landmark points inside a
// width x height image.
func ComputeBox(points []image.Point, width, height int, p Params) (Box, error) {
	if len(points) == 0 {
		return Box{}, fmt.Errorf("%w: no landmark points", ErrInvalidRegion)
	}
	if p.KernelRate <= 0 {
		return Box{}, fmt.Errorf("%w: kernel rate %d", ErrInvalidRegion, p.KernelRate)
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, pt := range points[1:] {
		minX = min(minX, pt.X)
		maxX = max(maxX, pt.X)
		minY = min(minY, pt.Y)
		maxY = max(maxY, pt.Y)
	}

	b := Box{
		Top:    minY,
		Bottom: maxY,
		Left:   minX - p.Padding,
		Right:  maxX + p.Padding,
	}
	b.Height = b.Bottom - b.Top
	b.Width = b.Right - b.Left
	if b.Height <= 0 || b.Width <= 0 {
		return Box{}, fmt.Errorf("%w: box %dx%d from %d points", ErrInvalidRegion, b.Width, b.Height, len(points))
	}

	b.Area = b.Height * b.Width * 3
	side := math.Sqrt(float64(b.Area) / 3)
	b.Adjustment = int(side / 20)
	b.KernelSize = KernelSize(b.Area, p.KernelRate)

	b.YLower = clampInt(b.Top-b.Adjustment, 0, height)
	b.YUpper = clampInt(b.Bottom+b.Adjustment, 0, height)
	b.XLower = clampInt(b.Left-b.Adjustment, 0, width)
	b.XUpper = clampInt(b.Right+b.Adjustment, 0, width)
	if b.YUpper <= b.YLower || b.XUpper <= b.XLower {
		return Box{}, fmt.Errorf("%w: crop %v outside %dx%d image", ErrInvalidRegion, b.Crop(), width, height)
	}

	return b, nil
}

// KernelSize returns the odd Gaussian kernel side for a region area.
// Larger rates give smaller kernels and sharper mask edges.
func KernelSize(area, rate int) int {
	if rate <= 0 {
		rate = 1
	}
	size := max(int(math.Sqrt(float64(area)/3)/float64(rate)), 1)
	if size%2 != 1 {
		size++
	}
	return size
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// floorDiv divides rounding toward negative infinity
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
