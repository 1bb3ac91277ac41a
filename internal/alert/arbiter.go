// Package alert decides when the driver should be alerted. It applies
// noise rejection, consecutive-frame hysteresis, a timed mute window and the
// vehicle-stopped override on top of per-object risk assessments.
package alert

import (
	"math"
	"sync"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/config"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
)

// State is the arbitration state after the most recent frame.
type State string

const (
	StateIdle     State = "idle"     // no risk observed
	StateArmed    State = "armed"    // risk observed but not yet alerting
	StateAlerting State = "alerting" // alert sounding
	StateMuted    State = "muted"    // mute window active
)

// Config holds the noise-rejection and hysteresis thresholds.
type Config struct {
	MinVelocity    float64 // |v| below this is treated as noise (m/s)
	MaxTTC         float64 // TTC above this is treated as noise (s)
	FarDistance    float64 // beyond this distance FarMinVelocity applies (m)
	FarMinVelocity float64 // |v| required beyond FarDistance (m/s)
	RiskThreshold  int     // consecutive risky frames before alerting
	SafeThreshold  int     // consecutive safe frames that silence the alert
	MuteDuration   time.Duration
}

// DefaultConfig returns arbitration configuration loaded from the canonical
// defaults file. Panics if the file cannot be found.
func DefaultConfig() Config {
	return ConfigFromCollision(config.MustLoadDefaultConfig())
}

// ConfigFromCollision builds a Config from a loaded CollisionConfig.
func ConfigFromCollision(cfg *config.CollisionConfig) Config {
	return Config{
		MinVelocity:    cfg.GetMinVelocityForAlert(),
		MaxTTC:         cfg.GetMaxTTCForAlert(),
		FarDistance:    cfg.GetFarDistance(),
		FarMinVelocity: cfg.GetFarMinVelocity(),
		RiskThreshold:  cfg.GetConsecutiveRiskThreshold(),
		SafeThreshold:  cfg.GetConsecutiveSafeThreshold(),
		MuteDuration:   cfg.GetMuteDuration(),
	}
}

// IsRealRisk reports whether an assessed detection counts toward the
// consecutive-risk counter. Alert-flagged detections are rejected when the
// object is barely moving relative to us, the collision is far off in time,
// or the object is far away and slow.
func (c Config) IsRealRisk(d risk.AssessedDetection) bool {
	if !d.Risk.Alert {
		return false
	}
	v := math.Abs(d.Risk.Velocity)
	if v < c.MinVelocity {
		return false
	}
	if d.Risk.TTC != nil && *d.Risk.TTC > c.MaxTTC {
		return false
	}
	if d.Distance.Known && d.Distance.Meters > c.FarDistance && v < c.FarMinVelocity {
		return false
	}
	return true
}

// Status is a snapshot of the arbitration state.
type Status struct {
	State           State     `json:"state"`
	ShouldAlert     bool      `json:"should_alert"`
	HasRisk         bool      `json:"has_risk"`      // any alert-flagged detection
	HasRealRisk     bool      `json:"has_real_risk"` // survived noise rejection
	ConsecutiveRisk int       `json:"consecutive_risk"`
	ConsecutiveSafe int       `json:"consecutive_safe"`
	Muted           bool      `json:"muted"`
	MuteUntil       time.Time `json:"mute_until,omitzero"`
	VehicleStopped  bool      `json:"vehicle_stopped"`
	// StoppedSuppressed is true when the vehicle-stopped override silenced
	// a frame that carried risk.
	StoppedSuppressed bool `json:"stopped_suppressed"`
}

// Arbiter holds the per-run arbitration state. Update is called by the
// frame consumer; Mute, Unmute and Status may be called from other
// goroutines.
type Arbiter struct {
	cfg   Config
	clock timeutil.Clock

	mu     sync.Mutex
	status Status
}

// NewArbiter creates an Arbiter. A nil clock uses the real clock.
func NewArbiter(cfg Config, clock timeutil.Clock) *Arbiter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.RiskThreshold < 1 {
		cfg.RiskThreshold = 1
	}
	if cfg.SafeThreshold < 1 {
		cfg.SafeThreshold = 1
	}
	return &Arbiter{cfg: cfg, clock: clock, status: Status{State: StateIdle}}
}

// Update advances the state machine by one frame and returns the decision.
func (a *Arbiter) Update(dets []risk.AssessedDetection, vehicleStopped bool) Status {
	hasRisk, hasRealRisk := false, false
	for _, d := range dets {
		if !d.Risk.Alert {
			continue
		}
		hasRisk = true
		if a.cfg.IsRealRisk(d) {
			hasRealRisk = true
			break
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.status
	a.expireMuteLocked()

	if hasRealRisk {
		s.ConsecutiveRisk++
		s.ConsecutiveSafe = 0
	} else {
		s.ConsecutiveRisk = 0
		s.ConsecutiveSafe++
	}

	s.HasRisk = hasRisk
	s.HasRealRisk = hasRealRisk
	s.VehicleStopped = vehicleStopped
	s.ShouldAlert = s.ConsecutiveRisk >= a.cfg.RiskThreshold &&
		!s.Muted &&
		!vehicleStopped &&
		s.ConsecutiveSafe < a.cfg.SafeThreshold
	s.StoppedSuppressed = !s.ShouldAlert && vehicleStopped && hasRisk
	s.State = a.stateLocked()
	return *s
}

func (a *Arbiter) stateLocked() State {
	s := &a.status
	switch {
	case s.Muted:
		return StateMuted
	case s.ShouldAlert:
		return StateAlerting
	case s.ConsecutiveRisk > 0:
		return StateArmed
	}
	return StateIdle
}

// expireMuteLocked clears the mute window once its deadline has passed.
func (a *Arbiter) expireMuteLocked() {
	s := &a.status
	if s.Muted && a.clock.Now().After(s.MuteUntil) {
		s.Muted = false
		s.MuteUntil = time.Time{}
	}
}

// Mute blocks alerting for the configured duration and returns the deadline.
// The hysteresis counters are left untouched.
func (a *Arbiter) Mute() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.status
	s.Muted = true
	s.MuteUntil = a.clock.Now().Add(a.cfg.MuteDuration)
	s.ShouldAlert = false
	s.State = a.stateLocked()
	return s.MuteUntil
}

// Unmute cancels an active mute window.
func (a *Arbiter) Unmute() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Muted = false
	a.status.MuteUntil = time.Time{}
	a.status.State = a.stateLocked()
}

// ToggleMute mutes when unmuted and unmutes when muted. It reports whether
// the mute window is active afterwards.
func (a *Arbiter) ToggleMute() bool {
	a.mu.Lock()
	a.expireMuteLocked()
	muted := a.status.Muted
	a.mu.Unlock()

	if muted {
		a.Unmute()
		return false
	}
	a.Mute()
	return true
}

// Status returns a snapshot of the current state.
func (a *Arbiter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expireMuteLocked()
	a.status.State = a.stateLocked()
	return a.status
}

// Reset clears the counters, the vehicle-stopped flag and any mute window.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = Status{State: StateIdle}
}
