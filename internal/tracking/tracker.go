// Package tracking maintains coarse per-identity history across frames and
// decides whether the scene ahead is static enough to treat the vehicle as
// stopped.
package tracking

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/linh0526/canh-bao-va-cham/internal/config"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
)

// minMotionSamples is the history length below which an identity is assumed
// to be moving.
const minMotionSamples = 3

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	MotionEnabled         bool    // when false every identity is moving and the vehicle never stopped
	GridCellSize          float64 // pixels per identity cell
	HistorySize           int     // samples kept per identity
	MotionWindow          int     // most recent samples used for the movement score
	MotionThreshold       float64 // normalised displacement above which an identity is moving
	StationaryRatio       float64 // stationary share for the relaxed stopped rule
	StoppedMeanMovement   float64 // mean score below which the relaxed stopped rule holds
	StrictStationaryRatio float64 // stationary share for the strict stopped rule
	StrictMinObjects      int     // identities required for the strict stopped rule
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical defaults file. Panics if the file cannot be found.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromCollision(config.MustLoadDefaultConfig())
}

// TrackerConfigFromCollision builds a TrackerConfig from a loaded
// CollisionConfig.
func TrackerConfigFromCollision(cfg *config.CollisionConfig) TrackerConfig {
	return TrackerConfig{
		MotionEnabled:         cfg.GetEnableMotionDetection(),
		GridCellSize:          cfg.GetGridCellSize(),
		HistorySize:           cfg.GetMotionHistorySize(),
		MotionWindow:          cfg.GetMotionWindow(),
		MotionThreshold:       cfg.GetMotionThreshold(),
		StationaryRatio:       cfg.GetStationaryRatioThreshold(),
		StoppedMeanMovement:   cfg.GetStoppedMeanMovement(),
		StrictStationaryRatio: cfg.GetStrictStationaryRatio(),
		StrictMinObjects:      cfg.GetStrictMinObjects(),
	}
}

// TrackedDetection is a processed detection annotated with its identity and
// motion classification.
type TrackedDetection struct {
	perception.ProcessedDetection
	ID            Identity `json:"id"`
	Moving        bool     `json:"moving"`
	MovementScore float64  `json:"movement_score"`
	History       []Sample `json:"-"` // oldest first, includes the current sample
}

// FrameMotion is the tracker output for one frame.
type FrameMotion struct {
	Objects         []TrackedDetection
	Identities      int
	StationaryRatio float64
	MeanMovement    float64
	VehicleStopped  bool
}

// Tracker keeps bounded history per identity. It is owned by a single
// goroutine and is not safe for concurrent use.
type Tracker struct {
	cfg       TrackerConfig
	strategy  IdentityStrategy
	histories map[Identity]*History
}

// NewTracker creates a tracker. A nil strategy selects GridBinning with the
// configured cell size.
func NewTracker(cfg TrackerConfig, strategy IdentityStrategy) *Tracker {
	if strategy == nil {
		strategy = GridBinning{CellSize: cfg.GridCellSize}
	}
	if cfg.HistorySize < 2 {
		cfg.HistorySize = 2
	}
	if cfg.MotionWindow < 2 || cfg.MotionWindow > cfg.HistorySize {
		cfg.MotionWindow = cfg.HistorySize
	}
	return &Tracker{
		cfg:       cfg,
		strategy:  strategy,
		histories: make(map[Identity]*History),
	}
}

// Update appends one sample per detection, classifies motion, purges
// identities absent from this frame and evaluates the vehicle-stopped rule.
func (t *Tracker) Update(dets []perception.ProcessedDetection, frameWidth, frameHeight int, ts time.Time) FrameMotion {
	scale := float64(max(frameWidth, frameHeight))
	seen := make(map[Identity]bool, len(dets))
	objects := make([]TrackedDetection, 0, len(dets))

	for _, d := range dets {
		id := t.strategy.Assign(d)
		h, ok := t.histories[id]
		if !ok {
			h = NewHistory(t.cfg.HistorySize)
			t.histories[id] = h
		}
		cx, cy := d.Box.Center()
		h.Push(Sample{CenterX: cx, CenterY: cy, Box: d.Box, Distance: d.Distance, Time: ts})
		seen[id] = true
		objects = append(objects, TrackedDetection{ProcessedDetection: d, ID: id})
	}

	// Score each identity once, after all of this frame's samples are in.
	moving := make(map[Identity]bool, len(seen))
	scores := make(map[Identity]float64, len(seen))
	for id := range seen {
		m, s := t.classify(t.histories[id], scale)
		moving[id] = m
		scores[id] = s
	}
	for i := range objects {
		id := objects[i].ID
		objects[i].Moving = moving[id]
		objects[i].MovementScore = scores[id]
		objects[i].History = t.histories[id].Samples()
	}

	for id := range t.histories {
		if !seen[id] {
			delete(t.histories, id)
		}
	}

	out := FrameMotion{Objects: objects, Identities: len(seen)}
	if t.cfg.MotionEnabled {
		out.StationaryRatio, out.MeanMovement, out.VehicleStopped = t.vehicleStopped(moving, scores)
	}
	return out
}

// classify returns whether the identity is moving and its movement score:
// the summed center displacement over the motion window divided by the
// larger frame dimension.
func (t *Tracker) classify(h *History, scale float64) (bool, float64) {
	if !t.cfg.MotionEnabled || h.Len() < minMotionSamples || scale <= 0 {
		return true, 0
	}
	recent := h.Last(t.cfg.MotionWindow)
	steps := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		steps = append(steps, math.Hypot(
			recent[i].CenterX-recent[i-1].CenterX,
			recent[i].CenterY-recent[i-1].CenterY,
		))
	}
	score := floats.Sum(steps) / scale
	return score > t.cfg.MotionThreshold, score
}

// vehicleStopped applies the dual-threshold rule. No identities means not
// stopped.
func (t *Tracker) vehicleStopped(moving map[Identity]bool, scores map[Identity]float64) (ratio, mean float64, stopped bool) {
	n := len(moving)
	if n == 0 {
		return 0, 0, false
	}
	ids := make([]string, 0, n)
	for id := range moving {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	stationary := 0
	vals := make([]float64, 0, n)
	for _, id := range ids {
		if !moving[Identity(id)] {
			stationary++
		}
		vals = append(vals, scores[Identity(id)])
	}
	ratio = float64(stationary) / float64(n)
	mean = stat.Mean(vals, nil)

	relaxed := ratio >= t.cfg.StationaryRatio && mean < t.cfg.StoppedMeanMovement
	strict := n >= t.cfg.StrictMinObjects && ratio >= t.cfg.StrictStationaryRatio
	return ratio, mean, relaxed || strict
}

// History returns the samples held for id, oldest first.
func (t *Tracker) History(id Identity) []Sample {
	h, ok := t.histories[id]
	if !ok {
		return nil
	}
	return h.Samples()
}

// Len returns the number of identities currently tracked.
func (t *Tracker) Len() int { return len(t.histories) }

// Reset drops all identity history.
func (t *Tracker) Reset() {
	t.histories = make(map[Identity]*History)
}
