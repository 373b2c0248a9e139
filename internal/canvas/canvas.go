package canvas

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrDecodeFailure is returned when an image cannot be read or decoded
	ErrDecodeFailure = errors.New("image decode failure")
	// ErrClosed is returned for any access after Close
	ErrClosed = errors.New("canvas closed")
)

// Canvas owns one frame in both BGR and HSV encodings and serialises every
// edit against it. Feature handles never hold the Mats directly; they ask the
// canvas to run an edit, so writes from sibling features are applied one at a time.
type Canvas struct {
	mu     sync.Mutex
	bgr    gocv.Mat
	hsv    gocv.Mat
	closed bool
}

// New takes ownership of an 8-bit, 3-channel BGR Mat and derives its HSV twin
func New(bgr gocv.Mat) (*Canvas, error) {
	if bgr.Empty() {
		bgr.Close()
		return nil, fmt.Errorf("%w: empty frame", ErrDecodeFailure)
	}
	if bgr.Type() != gocv.MatTypeCV8UC3 {
		bgr.Close()
		return nil, fmt.Errorf("%w: expected 8-bit BGR, got mat type %v", ErrDecodeFailure, bgr.Type())
	}

	hsv := gocv.NewMat()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	return &Canvas{bgr: bgr, hsv: hsv}, nil
}

// FromClone builds a canvas over a copy of frame; frame stays owned by the caller
func FromClone(frame gocv.Mat) (*Canvas, error) {
	return New(frame.Clone())
}

// Load reads and decodes an image file
func Load(path string) (*Canvas, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailure, path)
	}
	return New(img)
}

// Decode decodes an in-memory encoded image (JPEG, PNG, ...)
func Decode(buf []byte) (*Canvas, error) {
	img, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrDecodeFailure, len(buf))
	}
	return New(img)
}

// Size returns the frame width and height
func (c *Canvas) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, 0
	}
	return c.bgr.Cols(), c.bgr.Rows()
}

// Bounds returns the frame extent as a rectangle anchored at the origin
func (c *Canvas) Bounds() image.Rectangle {
	w, h := c.Size()
	return image.Rect(0, 0, w, h)
}

// Edit runs fn with exclusive access to both encodings. fn is responsible for
// leaving them in lockstep, typically through SyncBGR or SyncHSV.
func (c *Canvas) Edit(fn func(bgr, hsv *gocv.Mat) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return fn(&c.bgr, &c.hsv)
}

// View runs fn with read access to both encodings. fn must not retain or mutate them.
func (c *Canvas) View(fn func(bgr, hsv gocv.Mat) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return fn(c.bgr, c.hsv)
}

// BGR returns a copy of the BGR frame
func (c *Canvas) BGR() (gocv.Mat, error) {
	var out gocv.Mat
	err := c.View(func(bgr, _ gocv.Mat) error {
		out = bgr.Clone()
		return nil
	})
	return out, err
}

// HSV returns a copy of the HSV frame
func (c *Canvas) HSV() (gocv.Mat, error) {
	var out gocv.Mat
	err := c.View(func(_, hsv gocv.Mat) error {
		out = hsv.Clone()
		return nil
	})
	return out, err
}

// CopyTo writes the BGR frame into dst
func (c *Canvas) CopyTo(dst *gocv.Mat) error {
	return c.View(func(bgr, _ gocv.Mat) error {
		bgr.CopyTo(dst)
		return nil
	})
}

// Save encodes the BGR frame to path; the format follows the file extension
func (c *Canvas) Save(path string) error {
	return c.View(func(bgr, _ gocv.Mat) error {
		if !gocv.IMWrite(path, bgr) {
			return fmt.Errorf("failed to write image: %s", path)
		}
		return nil
	})
}

// Close releases both Mats. It is safe to call more than once.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	if err := c.bgr.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.hsv.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SyncBGR recomputes the whole BGR frame from HSV
func SyncBGR(bgr, hsv *gocv.Mat) {
	gocv.CvtColor(*hsv, bgr, gocv.ColorHSVToBGR)
}

// SyncHSV recomputes the whole HSV frame from BGR
func SyncHSV(bgr, hsv *gocv.Mat) {
	gocv.CvtColor(*bgr, hsv, gocv.ColorBGRToHSV)
}
