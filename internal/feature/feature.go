package feature

import (
	"fmt"
	"image"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/facemakeup/internal/canvas"
)

// Feature is a handle on one facial region of a canvas. It owns its geometry
// and mask; pixel edits are submitted to the canvas, which applies them in order.
type Feature struct {
	name   Name
	points []image.Point
	box    Box
	mask   *Mask
	params Params
	canvas *canvas.Canvas
	trace  TraceFunc
}

// New builds the box and mask for one feature of c
func New(c *canvas.Canvas, name Name, points []image.Point, p Params, trace TraceFunc) (*Feature, error) {
	width, height := c.Size()

	start := time.Now()
	box, err := ComputeBox(points, width, height, p)
	trace.emit(Event{Feature: name, Stage: StageBox, Box: box, Elapsed: time.Since(start), Err: err})
	if err != nil {
		return nil, regionError(name, "box", err)
	}

	start = time.Now()
	mask, err := NewMask(points, box)
	trace.emit(Event{Feature: name, Stage: StageMask, Box: box, Elapsed: time.Since(start), Err: err})
	if err != nil {
		return nil, regionError(name, "mask", err)
	}

	pts := make([]image.Point, len(points))
	copy(pts, points)

	return &Feature{
		name:   name,
		points: pts,
		box:    box,
		mask:   mask,
		params: p,
		canvas: c,
		trace:  trace,
	}, nil
}

// Name returns the feature name
func (f *Feature) Name() Name {
	return f.name
}

// Box returns the feature geometry
func (f *Feature) Box() Box {
	return f.box
}

// Mask returns the feathered mask; it stays owned by the feature
func (f *Feature) Mask() *Mask {
	return f.mask
}

// Points returns a copy of the feature's landmark points
func (f *Feature) Points() []image.Point {
	pts := make([]image.Point, len(f.points))
	copy(pts, f.points)
	return pts
}

// Crop returns a copy of the feature's BGR crop; the caller closes it
func (f *Feature) Crop() (gocv.Mat, error) {
	var out gocv.Mat
	err := f.canvas.View(func(bgr, _ gocv.Mat) error {
		if !f.box.Crop().In(matBounds(bgr)) {
			return ErrOutOfBounds
		}
		roi := bgr.Region(f.box.Crop())
		defer roi.Close()
		out = roi.Clone()
		return nil
	})
	if err != nil {
		return out, regionError(f.name, "crop", err)
	}
	return out, nil
}

// Brighten raises saturation inside the mask by rate, blurs the change,
// clamps at 255 and refreshes the whole BGR frame from HSV. A zero rate
// leaves saturation untouched.
func (f *Feature) Brighten(rate float64) error {
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return regionError(f.name, "brighten", fmt.Errorf("%w: %g", ErrInvalidRate, rate))
	}
	if f.mask == nil {
		return regionError(f.name, "brighten", canvas.ErrClosed)
	}

	start := time.Now()
	crop := f.box.Crop()
	err := f.canvas.Edit(func(bgr, hsv *gocv.Mat) error {
		if !crop.In(matBounds(*hsv)) {
			return fmt.Errorf("%w: crop %v", ErrOutOfBounds, crop)
		}

		roi := hsv.Region(crop)
		defer roi.Close()

		channels := gocv.Split(roi)
		defer func() {
			for _, ch := range channels {
				ch.Close()
			}
		}()

		sat := gocv.NewMat()
		defer sat.Close()
		channels[1].ConvertTo(&sat, gocv.MatTypeCV32F)

		weight := f.mask.Channel(1)
		defer weight.Close()

		delta := gocv.NewMat()
		defer delta.Close()
		gocv.Multiply(sat, weight, &delta)
		delta.MultiplyFloat(float32(rate))
		k := f.params.BrightenKernel
		if k <= 0 {
			k = 3
		}
		gocv.GaussianBlur(delta, &delta, image.Pt(k, k), 0, 0, gocv.BorderDefault)

		gocv.Add(sat, delta, &sat)
		// saturating conversion clamps to [0,255]
		sat.ConvertTo(&channels[1], gocv.MatTypeCV8U)

		merged := gocv.NewMat()
		defer merged.Close()
		gocv.Merge(channels, &merged)
		merged.CopyTo(&roi)

		canvas.SyncBGR(bgr, hsv)
		return nil
	})

	f.trace.emit(Event{Feature: f.name, Stage: StageBrighten, Box: f.box, Rect: crop, Elapsed: time.Since(start), Err: err})
	if err != nil {
		return regionError(f.name, "brighten", err)
	}
	return nil
}

// Resize scales the feature's BGR crop to exactly width x height with area
// interpolation, erases the original crop and pastes the result centred on
// it. The paste rectangle must lie inside the image; otherwise nothing is
// modified and ErrOutOfBounds is returned. HSV is refreshed from BGR.
func (f *Feature) Resize(width, height int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, regionError(f.name, "resize", fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height))
	}

	start := time.Now()
	crop := f.box.Crop()
	paste := PasteRect(crop, width, height)

	err := f.canvas.Edit(func(bgr, hsv *gocv.Mat) error {
		bounds := matBounds(*bgr)
		if !crop.In(bounds) {
			return fmt.Errorf("%w: crop %v", ErrOutOfBounds, crop)
		}
		if !paste.In(bounds) {
			return fmt.Errorf("%w: paste %v outside %v", ErrOutOfBounds, paste, bounds)
		}

		src := bgr.Region(crop)
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(src, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationArea)

		// erase the old feature pixels
		src.SetTo(gocv.NewScalar(0, 0, 0, 0))
		src.Close()

		dst := bgr.Region(paste)
		resized.CopyTo(&dst)
		dst.Close()

		canvas.SyncHSV(bgr, hsv)
		return nil
	})

	f.trace.emit(Event{Feature: f.name, Stage: StageResize, Box: f.box, Rect: paste, Elapsed: time.Since(start), Err: err})
	if err != nil {
		return image.Rectangle{}, regionError(f.name, "resize", err)
	}
	return paste, nil
}

// PasteRect centres a width x height block on crop. The offsets are
// floor((size - crop size) / 2), so odd growth leans right and down.
func PasteRect(crop image.Rectangle, width, height int) image.Rectangle {
	wa := floorDiv(width-crop.Dx(), 2)
	ha := floorDiv(height-crop.Dy(), 2)
	origin := image.Pt(crop.Min.X-wa, crop.Min.Y-ha)
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(width, height))}
}

// Close releases the mask
func (f *Feature) Close() error {
	if f.mask == nil {
		return nil
	}
	err := f.mask.Close()
	f.mask = nil
	return err
}

func matBounds(m gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, m.Cols(), m.Rows())
}
