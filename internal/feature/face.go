package feature

import (
	"errors"
	"fmt"

	"github.com/dudu/facemakeup/internal/canvas"
	"github.com/dudu/facemakeup/internal/detector"
)

// Face holds one Feature per named region of a detected face.
// All features share the same canvas.
type Face struct {
	landmarks detector.Landmarks68
	features  map[Name]*Feature
	failed    map[Name]error
}

// NewFace builds every feature of one face. A feature whose region is
// degenerate is skipped and reported in the returned error; the face is
// still returned with the features that succeeded.
func NewFace(c *canvas.Canvas, landmarks detector.Landmarks68, p Params, trace TraceFunc) (*Face, error) {
	face := &Face{
		landmarks: landmarks,
		features:  make(map[Name]*Feature, len(partitions)),
		failed:    make(map[Name]error),
	}

	var errs []error
	for _, part := range partitions {
		f, err := New(c, part.name, landmarks.Slice(part.lo, part.hi), p, trace)
		if err != nil {
			face.failed[part.name] = err
			errs = append(errs, err)
			continue
		}
		face.features[part.name] = f
	}

	return face, errors.Join(errs...)
}

// Landmarks returns the face's 68 points
func (f *Face) Landmarks() detector.Landmarks68 {
	return f.landmarks
}

// Feature returns the named feature handle
func (f *Face) Feature(name Name) (*Feature, error) {
	if ft, ok := f.features[name]; ok {
		return ft, nil
	}
	if err, ok := f.failed[name]; ok {
		return nil, err
	}
	return nil, regionError(name, "lookup", fmt.Errorf("%w: %q", ErrUnknownFeature, name))
}

// Features returns the features that were built, in assembly order
func (f *Face) Features() []*Feature {
	out := make([]*Feature, 0, len(f.features))
	for _, part := range partitions {
		if ft, ok := f.features[part.name]; ok {
			out = append(out, ft)
		}
	}
	return out
}

// Failed returns the construction error of each feature that could not be built
func (f *Face) Failed() map[Name]error {
	out := make(map[Name]error, len(f.failed))
	for k, v := range f.failed {
		out[k] = v
	}
	return out
}

// Close releases every feature mask
func (f *Face) Close() error {
	var errs []error
	for _, ft := range f.features {
		if err := ft.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
