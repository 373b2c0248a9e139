package camera

import (
	"errors"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestSinkRejectsBadArguments(t *testing.T) {
	dir := t.TempDir()
	if _, err := CreateSink(filepath.Join(dir, "out.avi"), "MP4", 25, 64, 48); err == nil {
		t.Error("Expected error for a three-letter codec")
	}
	if _, err := CreateSink(filepath.Join(dir, "out.avi"), "", 25, 0, 48); err == nil {
		t.Error("Expected error for zero width")
	}
}

func TestOpenFileMissing(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "missing.avi")); err == nil {
		t.Error("Expected error for missing video")
	}
}

func TestSinkSourceRoundTrip(t *testing.T) {
	const width, height, frames = 64, 48, 5
	path := filepath.Join(t.TempDir(), "clip.avi")

	sink, err := CreateSink(path, "", 10, width, height)
	if err != nil {
		t.Skipf("No MJPG writer available: %v", err)
	}
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 90, 200, 0), height, width, gocv.MatTypeCV8UC3)
	defer frame.Close()
	for i := 0; i < frames; i++ {
		if err := sink.Write(frame); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if sink.Count() != frames {
		t.Errorf("Expected %d frames written, got %d", frames, sink.Count())
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(frame); err == nil {
		t.Error("Expected Write after Close to fail")
	}

	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer src.Close()

	if src.Width() != width || src.Height() != height {
		t.Errorf("Expected %dx%d, got %dx%d", width, height, src.Width(), src.Height())
	}
	if src.FPS() <= 0 {
		t.Errorf("Expected positive FPS, got %v", src.FPS())
	}

	read := gocv.NewMat()
	defer read.Close()
	n := 0
	for {
		ok, err := src.Read(&read)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		n++
	}
	if n != frames {
		t.Errorf("Expected %d frames read, got %d", frames, n)
	}

	src.Close()
	if _, err := src.Read(&read); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("Expected ErrSourceClosed, got %v", err)
	}
}
