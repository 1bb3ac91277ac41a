package pipeline

import (
	"context"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/alertlog"
	"github.com/linh0526/canh-bao-va-cham/internal/capture"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
)

// Source delivers the most recent captured frame. *capture.Producer
// satisfies it.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	// Latest returns the newest unconsumed frame, if any.
	Latest() (capture.Frame, bool)
	// Active is false once the source has ended or failed.
	Active() bool
	Err() error
	FPS() float64
}

// OpenFunc opens a fresh Source for each run.
type OpenFunc func() (Source, error)

// AlertSink records alert-flagged detections while the alert is sounding.
// *alertlog.Log satisfies it.
type AlertSink interface {
	Add(d risk.AssessedDetection) alertlog.Record
	SetRunID(id string)
}

// SpeedSource reports the ego vehicle speed in m/s when known.
type SpeedSource interface {
	Speed() (mps float64, ok bool)
}

// RunStore persists run boundaries. *db.DB satisfies it.
type RunStore interface {
	StartRun(id, source string, at time.Time) error
	StopRun(id string, at time.Time, frames, alerts int64) error
}

// FrameSink receives each processed frame with its result, on the loop
// goroutine. Implementations must not retain f.Data past the call.
type FrameSink interface {
	OnFrame(f capture.Frame, res *FrameResult)
}

type dropCounter interface {
	Dropped() uint64
}
