package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// ErrSourceClosed is returned by Read after Close
var ErrSourceClosed = errors.New("video source closed")

// Source reads frames from a webcam or a video file
type Source struct {
	capture *gocv.VideoCapture
	name    string
	live    bool
	fps     float64
	width   int
	height  int
	frames  int
	mu      sync.Mutex
}

// OpenCamera opens a webcam with the requested resolution and frame rate.
// The device may pick a different resolution; Width and Height report the actual one.
func OpenCamera(deviceID, width, height int, fps float64) (*Source, error) {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	// Set camera properties
	capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	capture.Set(gocv.VideoCaptureFPS, fps)

	return newSource(capture, fmt.Sprintf("camera %d", deviceID), true), nil
}

// OpenFile opens a video file
func OpenFile(path string) (*Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("failed to open video %s", path)
	}
	return newSource(capture, path, false), nil
}

func newSource(capture *gocv.VideoCapture, name string, live bool) *Source {
	s := &Source{
		capture: capture,
		name:    name,
		live:    live,
		fps:     capture.Get(gocv.VideoCaptureFPS),
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
		frames:  -1,
	}
	if !live {
		if n := int(capture.Get(gocv.VideoCaptureFrameCount)); n > 0 {
			s.frames = n
		}
	}
	if s.fps <= 0 {
		s.fps = 30
	}
	return s
}

// Read captures a frame into the provided Mat. It returns false at the end
// of a file or when the device stops delivering frames.
func (s *Source) Read(frame *gocv.Mat) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return false, ErrSourceClosed
	}
	if !s.capture.Read(frame) || frame.Empty() {
		return false, nil
	}
	return true, nil
}

// Name describes the source for logs
func (s *Source) Name() string {
	return s.name
}

// FrameCount returns the number of frames in a file, or -1 when unknown
func (s *Source) FrameCount() int {
	return s.frames
}

// FPS returns the source frame rate, falling back to 30 when unreported
func (s *Source) FPS() float64 {
	return s.fps
}

// Width returns frame width
func (s *Source) Width() int {
	return s.width
}

// Height returns frame height
func (s *Source) Height() int {
	return s.height
}

// Close releases the device or file
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture != nil {
		err := s.capture.Close()
		s.capture = nil
		return err
	}
	return nil
}
