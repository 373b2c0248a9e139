package detector

import (
	"errors"
	"image"
)

// ErrNoFaceDetected is returned when a frame yields no face boxes
var ErrNoFaceDetected = errors.New("no face detected")

// NumLandmarks is the number of points produced by the 68-point predictor
const NumLandmarks = 68

// Point represents a 2D point in model output space
type Point struct {
	X, Y float32
}

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Rect returns the box as an integer rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Landmarks68 holds the 68 facial landmarks in the predictor's anatomical order.
// Indices are never reordered or deduplicated.
type Landmarks68 [NumLandmarks]image.Point

// Slice returns a copy of the points in [lo, hi)
func (l *Landmarks68) Slice(lo, hi int) []image.Point {
	if lo < 0 {
		lo = 0
	}
	if hi > NumLandmarks {
		hi = NumLandmarks
	}
	if hi <= lo {
		return nil
	}
	points := make([]image.Point, hi-lo)
	copy(points, l[lo:hi])
	return points
}

// Bounds computes the tight bounding rectangle around all 68 points.
// The rectangle is inclusive of the extreme points.
func (l *Landmarks68) Bounds() image.Rectangle {
	minX, minY := l[0].X, l[0].Y
	maxX, maxY := l[0].X, l[0].Y
	for i := 1; i < len(l); i++ {
		if l[i].X < minX {
			minX = l[i].X
		}
		if l[i].X > maxX {
			maxX = l[i].X
		}
		if l[i].Y < minY {
			minY = l[i].Y
		}
		if l[i].Y > maxY {
			maxY = l[i].Y
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Face represents a detected face
type Face struct {
	BoundingBox BoundingBox
	Landmarks   *Landmarks68 // filled by the landmark predictor
	Score       float32
}
