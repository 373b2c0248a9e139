package feature

import (
	"fmt"
	"strings"
)

// Name identifies a facial feature
type Name string

const (
	Jaw       Name = "jaw"
	Mouth     Name = "mouth"
	Nose      Name = "nose"
	LeftEye   Name = "left_eye"
	RightEye  Name = "right_eye"
	LeftBrow  Name = "left_brow"
	RightBrow Name = "right_brow"
)

// partitions maps each feature to its half-open landmark index range
var partitions = []struct {
	name   Name
	lo, hi int
}{
	{Jaw, 0, 17},
	{Mouth, 48, 61},
	{Nose, 27, 35},
	{LeftEye, 42, 48},
	{RightEye, 36, 42},
	{LeftBrow, 22, 27},
	{RightBrow, 17, 22},
}

// Names returns every feature in assembly order
func Names() []Name {
	names := make([]Name, len(partitions))
	for i, p := range partitions {
		names[i] = p.name
	}
	return names
}

// Range returns the landmark index range [lo, hi) of the feature
func (n Name) Range() (lo, hi int, ok bool) {
	for _, p := range partitions {
		if p.name == n {
			return p.lo, p.hi, true
		}
	}
	return 0, 0, false
}

// ParseName accepts "left_eye", "left eye", "left-eye" and any letter case
func ParseName(s string) (Name, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	n := Name(norm)
	if _, _, ok := n.Range(); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return n, nil
}
