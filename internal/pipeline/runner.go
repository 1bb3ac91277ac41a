package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linh0526/canh-bao-va-cham/internal/alert"
	"github.com/linh0526/canh-bao-va-cham/internal/audio"
	"github.com/linh0526/canh-bao-va-cham/internal/capture"
	"github.com/linh0526/canh-bao-va-cham/internal/config"
	"github.com/linh0526/canh-bao-va-cham/internal/detect"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
	"github.com/linh0526/canh-bao-va-cham/internal/tracking"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is in progress.
	ErrAlreadyRunning = errors.New("pipeline: already running")
	// ErrNotRunning is returned by Stop when no run is in progress.
	ErrNotRunning = errors.New("pipeline: not running")
	// ErrNoSource is returned by Start when the runner has no OpenFunc.
	ErrNoSource = errors.New("pipeline: no frame source configured")
)

// Config holds the stage settings for a Runner.
type Config struct {
	Perception perception.Config
	Tracker    tracking.TrackerConfig
	Classifier risk.ClassifierConfig
	Alert      alert.Config

	// PollInterval is the consumer tick. The loop checks for a fresh frame
	// once per tick and never spins.
	PollInterval time.Duration
}

// DefaultConfig returns the runner configuration from the canonical defaults
// file. Panics if the file cannot be found.
func DefaultConfig() Config {
	return ConfigFromCollision(config.MustLoadDefaultConfig())
}

// ConfigFromCollision derives every stage configuration from cfg.
func ConfigFromCollision(cfg *config.CollisionConfig) Config {
	return Config{
		Perception:   perception.ConfigFromCollision(cfg),
		Tracker:      tracking.TrackerConfigFromCollision(cfg),
		Classifier:   risk.ClassifierConfigFromCollision(cfg),
		Alert:        alert.ConfigFromCollision(cfg),
		PollInterval: cfg.GetPollInterval(),
	}
}

// Deps are the collaborators of a Runner. Detector is required; every other
// field is optional.
type Deps struct {
	Detector   detect.Detector
	Open       OpenFunc
	SourceName string // recorded with each run, e.g. "camera:0"
	Identity   tracking.IdentityStrategy
	Player     audio.Player
	AlertLog   AlertSink
	Speed      SpeedSource
	Runs       RunStore
	Sink       FrameSink
	Clock      timeutil.Clock
}

// FrameResult is the outcome of one pass through the pipeline.
type FrameResult struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"time"`
	Width  int       `json:"width"`
	Height int       `json:"height"`

	// RawDetections counts detector output before lane filtering.
	RawDetections int                      `json:"raw_detections"`
	Objects       []risk.AssessedDetection `json:"objects"`
	// AlertCount is the number of alert-flagged objects in this frame.
	AlertCount int `json:"alert_count"`
	// Closest is the nearest alert-flagged object with a known distance.
	Closest *risk.AssessedDetection `json:"closest,omitempty"`

	Identities      int     `json:"identities"`
	StationaryRatio float64 `json:"stationary_ratio"`
	MeanMovement    float64 `json:"mean_movement"`

	Alert    alert.Status  `json:"alert"`
	EgoSpeed *float64      `json:"ego_speed_mps,omitempty"`
	Latency  time.Duration `json:"latency_ns"`
}

// Stats are the running counters exposed on the status API.
type Stats struct {
	RunID                string    `json:"run_id,omitempty"`
	Running              bool      `json:"running"`
	SourceActive         bool      `json:"source_active"`
	StartedAt            time.Time `json:"started_at,omitzero"`
	FramesProcessed      int64     `json:"frames_processed"`
	FPS                  float64   `json:"fps"`
	SourceFPS            float64   `json:"source_fps"`
	DroppedFrames        uint64    `json:"dropped_frames"`
	DetectionsInFrame    int       `json:"detections_in_frame"`
	AlertsInFrame        int       `json:"alerts_in_frame"`
	AlertedFrames        int64     `json:"alerted_frames"`
	AlertsLogged         int64     `json:"alerts_logged"`
	VehicleStoppedEvents int64     `json:"vehicle_stopped_events"`
	SuppressedFrames     int64     `json:"stopped_suppressed_frames"`
	DetectorErrors       int64     `json:"detector_errors"`
	LastError            string    `json:"last_error,omitempty"`
}

// Runner owns one fusion pipeline. ProcessFrame is called from a single
// goroutine at a time; Stats, Last, ToggleMute and AlertStatus may be
// called concurrently.
type Runner struct {
	cfg        Config
	deps       Deps
	clock      timeutil.Clock
	lane       perception.LaneFilter
	estimator  perception.DistanceEstimator
	tracker    *tracking.Tracker
	classifier risk.Classifier
	arbiter    *alert.Arbiter

	mu          sync.Mutex
	running     bool
	starting    bool
	source      Source
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	stats       Stats
	last        *FrameResult
	wasStopped  bool
	wasAlerting bool
}

// NewRunner wires the stages described by cfg to deps.
func NewRunner(cfg Config, deps Deps) (*Runner, error) {
	if deps.Detector == nil {
		return nil, fmt.Errorf("pipeline: detector is required")
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	if deps.Player == nil {
		deps.Player = audio.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	return &Runner{
		cfg:        cfg,
		deps:       deps,
		clock:      deps.Clock,
		lane:       cfg.Perception.Lane,
		estimator:  cfg.Perception.Distance,
		tracker:    tracking.NewTracker(cfg.Tracker, deps.Identity),
		classifier: risk.NewClassifier(cfg.Classifier),
		arbiter:    alert.NewArbiter(cfg.Alert, deps.Clock),
	}, nil
}

// Config returns the runner configuration.
func (r *Runner) Config() Config { return r.cfg }

// ProcessFrame runs f through every stage and applies the alert decision to
// the player and alert log.
func (r *Runner) ProcessFrame(f capture.Frame) (*FrameResult, error) {
	began := r.clock.Now()

	raw, err := r.deps.Detector.Detect(f)
	if err != nil {
		r.mu.Lock()
		r.stats.DetectorErrors++
		r.stats.LastError = err.Error()
		r.mu.Unlock()
		return nil, fmt.Errorf("detect frame %d: %w", f.Seq, err)
	}
	allowed := make([]perception.Detection, 0, len(raw))
	for _, d := range raw {
		if _, ok := perception.ParseClass(string(d.Class)); ok && d.Box.Valid() {
			allowed = append(allowed, d)
		}
	}

	inLane := r.lane.Filter(allowed, f.Width)
	processed := r.estimator.Process(inLane)
	motion := r.tracker.Update(processed, f.Width, f.Height, f.Time)

	var egoSpeed float64
	var egoPtr *float64
	if r.deps.Speed != nil {
		if v, ok := r.deps.Speed.Speed(); ok {
			egoSpeed = v
			egoPtr = &v
		}
	}

	objects := r.classifier.AssessAll(motion.Objects, egoSpeed)
	status := r.arbiter.Update(objects, motion.VehicleStopped)

	res := &FrameResult{
		Seq:             f.Seq,
		Time:            f.Time,
		Width:           f.Width,
		Height:          f.Height,
		RawDetections:   len(raw),
		Objects:         objects,
		Identities:      motion.Identities,
		StationaryRatio: motion.StationaryRatio,
		MeanMovement:    motion.MeanMovement,
		Alert:           status,
		EgoSpeed:        egoPtr,
	}
	for i := range objects {
		o := &objects[i]
		if !o.Risk.Alert {
			continue
		}
		res.AlertCount++
		if o.Distance.Known && (res.Closest == nil || o.Distance.Meters < res.Closest.Distance.Meters) {
			res.Closest = o
		}
	}

	logged := r.applyDecision(res)
	res.Latency = r.clock.Since(began)

	r.mu.Lock()
	r.stats.FramesProcessed++
	r.stats.DetectionsInFrame = len(objects)
	r.stats.AlertsInFrame = res.AlertCount
	r.stats.AlertsLogged += int64(logged)
	if status.ShouldAlert {
		r.stats.AlertedFrames++
	}
	if status.StoppedSuppressed {
		r.stats.SuppressedFrames++
	}
	if motion.VehicleStopped && !r.wasStopped {
		r.stats.VehicleStoppedEvents++
	}
	r.wasStopped = motion.VehicleStopped
	r.last = res
	r.mu.Unlock()

	tracef("frame=%d objects=%d alerts=%d state=%s risk=%d safe=%d stopped=%v latency=%s",
		f.Seq, len(objects), res.AlertCount, status.State,
		status.ConsecutiveRisk, status.ConsecutiveSafe, motion.VehicleStopped, res.Latency)

	if r.deps.Sink != nil {
		r.deps.Sink.OnFrame(f, res)
	}
	return res, nil
}

// applyDecision drives the player and logs alert-flagged objects while
// alerting. It returns the number of records logged.
func (r *Runner) applyDecision(res *FrameResult) int {
	status := res.Alert
	if !status.ShouldAlert {
		if err := r.deps.Player.Stop(); err != nil {
			opsf("failed to stop alert sound: %v", err)
		}
		if r.wasAlerting {
			diagf("alert cleared (state=%s)", status.State)
		}
		r.wasAlerting = false
		if status.StoppedSuppressed {
			diagf("alert suppressed because vehicle stopped")
		}
		return 0
	}

	if !r.wasAlerting {
		diagf("alert raised after %d consecutive risky frames", status.ConsecutiveRisk)
	}
	r.wasAlerting = true
	if err := r.deps.Player.PlayLoop(); err != nil {
		opsf("failed to start alert sound: %v", err)
	}

	if r.deps.AlertLog == nil {
		return 0
	}
	n := 0
	for _, o := range res.Objects {
		if o.Risk.Alert {
			r.deps.AlertLog.Add(o)
			n++
		}
	}
	return n
}

// Start opens a fresh source and launches the consumer loop. Tracker
// history, arbitration counters and any mute window start clean. The source
// is opened without holding the runner lock, so Stats and Last stay
// responsive while a camera initialises.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running || r.starting {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	if r.deps.Open == nil {
		r.mu.Unlock()
		return ErrNoSource
	}
	r.starting = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	src, err := r.openSource(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false
	if err != nil {
		cancel()
		return err
	}

	r.resetLocked()
	runID := uuid.New().String()
	now := r.clock.Now()

	if r.deps.AlertLog != nil {
		r.deps.AlertLog.SetRunID(runID)
	}
	if r.deps.Runs != nil {
		if err := r.deps.Runs.StartRun(runID, r.deps.SourceName, now); err != nil {
			opsf("failed to record run start: %v", err)
		}
	}

	r.running = true
	r.source = src
	r.cancel = cancel
	r.done = make(chan struct{})
	r.err = nil
	r.stats = Stats{RunID: runID, Running: true, StartedAt: now}

	go r.loop(ctx, src, r.done)
	diagf("run %s started on %s", runID, r.deps.SourceName)
	return nil
}

// openSource opens a fresh source and starts its producer under ctx.
func (r *Runner) openSource(ctx context.Context) (Source, error) {
	src, err := r.deps.Open()
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", r.deps.SourceName, err)
	}
	if err := src.Start(ctx); err != nil {
		return nil, fmt.Errorf("start source %s: %w", r.deps.SourceName, err)
	}
	return src, nil
}

func (r *Runner) loop(ctx context.Context, src Source, done chan struct{}) {
	defer close(done)

	ticker := r.clock.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}

		f, ok := src.Latest()
		if !ok {
			if src.Active() {
				continue
			}
			// The producer may have published its last frame between
			// Latest and Active.
			if f, ok = src.Latest(); !ok {
				err := src.Err()
				r.mu.Lock()
				r.err = err
				r.mu.Unlock()
				if err != nil {
					opsf("source %s failed: %v", r.deps.SourceName, err)
				} else {
					diagf("source %s finished", r.deps.SourceName)
				}
				return
			}
		}

		if _, err := r.ProcessFrame(f); err != nil {
			opsf("%v", err)
		}
	}
}

// Done is closed when the current run's loop exits, either because the
// source ended or Stop was called. It is nil before the first Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err returns the source error that ended the last run, if any.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop ends the run: the loop exits, the source is released, the alert is
// silenced and all per-run state is reset.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.cancel()
	done := r.done
	src := r.source
	r.mu.Unlock()

	<-done
	srcErr := src.Stop()

	if err := r.deps.Player.Stop(); err != nil {
		opsf("failed to stop alert sound: %v", err)
	}

	r.mu.Lock()
	r.running = false
	r.source = nil
	r.stats.Running = false
	r.stats.SourceActive = false
	runID := r.stats.RunID
	frames, alerts := r.stats.FramesProcessed, r.stats.AlertedFrames
	r.resetLocked()
	r.mu.Unlock()

	if r.deps.Runs != nil {
		if err := r.deps.Runs.StopRun(runID, r.clock.Now(), frames, alerts); err != nil {
			opsf("failed to record run stop: %v", err)
		}
	}
	diagf("run %s stopped after %d frames", runID, frames)
	return srcErr
}

// resetLocked clears tracker history, arbitration state and the mute window.
func (r *Runner) resetLocked() {
	r.tracker.Reset()
	r.arbiter.Reset()
	r.wasStopped = false
	r.wasAlerting = false
	r.last = nil
}

// Stats returns a snapshot of the run counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	if r.running && r.source != nil {
		s.SourceActive = r.source.Active()
		s.SourceFPS = r.source.FPS()
		if dc, ok := r.source.(dropCounter); ok {
			s.DroppedFrames = dc.Dropped()
		}
	}
	if !s.StartedAt.IsZero() && s.FramesProcessed > 0 {
		if elapsed := r.clock.Since(s.StartedAt).Seconds(); elapsed > 0 {
			s.FPS = float64(s.FramesProcessed) / elapsed
		}
	}
	return s
}

// Last returns the most recent frame result, or nil.
func (r *Runner) Last() *FrameResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// AlertStatus returns the current arbitration state.
func (r *Runner) AlertStatus() alert.Status {
	return r.arbiter.Status()
}

// ToggleMute starts or cancels the mute window and reports whether it is
// active afterwards. Muting silences the alert immediately.
func (r *Runner) ToggleMute() bool {
	muted := r.arbiter.ToggleMute()
	if muted {
		if err := r.deps.Player.Stop(); err != nil {
			opsf("failed to stop alert sound: %v", err)
		}
		diagf("alert muted until %s", r.arbiter.Status().MuteUntil.Format(time.TimeOnly))
	} else {
		diagf("alert mute cancelled")
	}
	return muted
}
