package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultCodec is the fourcc used when none is given
const DefaultCodec = "MJPG"

// Sink writes frames to a video file
type Sink struct {
	writer *gocv.VideoWriter
	path   string
	count  int
	mu     sync.Mutex
}

// CreateSink opens path for writing width x height frames at fps.
// An empty codec selects DefaultCodec.
func CreateSink(path, codec string, fps float64, width, height int) (*Sink, error) {
	if codec == "" {
		codec = DefaultCodec
	}
	if len(codec) != 4 {
		return nil, fmt.Errorf("codec must be a fourcc, got %q", codec)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	writer, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create video %s: %w", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("failed to create video %s with codec %s", path, codec)
	}

	return &Sink{writer: writer, path: path}, nil
}

// Write appends one frame
func (s *Sink) Write(frame gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return fmt.Errorf("video %s already closed", s.path)
	}
	if err := s.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", s.count, err)
	}
	s.count++
	return nil
}

// Count returns the number of frames written
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close finalises the file
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		err := s.writer.Close()
		s.writer = nil
		return err
	}
	return nil
}
