package feature

import (
	"image"
	"time"

	"github.com/sirupsen/logrus"
)

// Stage marks where in a feature's lifecycle a trace event fired
type Stage string

const (
	StageBox      Stage = "box"
	StageMask     Stage = "mask"
	StageBrighten Stage = "brighten"
	StageResize   Stage = "resize"
)

// Event is delivered to a TraceFunc after each stage completes
type Event struct {
	Feature Name
	Stage   Stage
	Box     Box
	Rect    image.Rectangle // rectangle written by a composite stage
	Elapsed time.Duration
	Err     error
}

// TraceFunc observes feature construction and edits. A nil TraceFunc is silent.
type TraceFunc func(Event)

func (t TraceFunc) emit(ev Event) {
	if t != nil {
		t(ev)
	}
}

// LogTrace returns a TraceFunc that logs every event at debug level
// and failed stages at warn level.
func LogTrace(logger logrus.FieldLogger) TraceFunc {
	return func(ev Event) {
		entry := logger.WithFields(logrus.Fields{
			"feature": ev.Feature,
			"stage":   ev.Stage,
			"elapsed": ev.Elapsed,
		})
		if ev.Stage == StageBox || ev.Stage == StageMask {
			entry = entry.WithFields(logrus.Fields{
				"crop":   ev.Box.Crop(),
				"kernel": ev.Box.KernelSize,
			})
		}
		if !ev.Rect.Empty() {
			entry = entry.WithField("rect", ev.Rect)
		}
		if ev.Err != nil {
			entry.WithError(ev.Err).Warn("feature stage failed")
			return
		}
		entry.Debug("feature stage done")
	}
}
