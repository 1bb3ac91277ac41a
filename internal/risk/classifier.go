package risk

import (
	"github.com/linh0526/canh-bao-va-cham/internal/config"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/tracking"
)

// ClassifierConfig holds the distance and TTC thresholds.
type ClassifierConfig struct {
	EnableTTC bool

	VeryCloseDistance float64 // metres, always danger
	DangerDistance    float64
	WarningDistance   float64
	CautionDistance   float64

	TTCDanger            float64 // seconds
	TTCWarning           float64
	TTCCaution           float64
	SlowApproachVelocity float64 // m/s

	ReactionTime float64 // seconds
	Deceleration float64 // m/s²
}

// DefaultClassifierConfig returns classifier configuration loaded from the
// canonical defaults file. Panics if the file cannot be found.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfigFromCollision(config.MustLoadDefaultConfig())
}

// ClassifierConfigFromCollision builds a ClassifierConfig from a loaded
// CollisionConfig.
func ClassifierConfigFromCollision(cfg *config.CollisionConfig) ClassifierConfig {
	return ClassifierConfig{
		EnableTTC:            cfg.GetEnableTTC(),
		VeryCloseDistance:    cfg.GetVeryCloseDistance(),
		DangerDistance:       cfg.GetDangerDistance(),
		WarningDistance:      cfg.GetWarningDistance(),
		CautionDistance:      cfg.GetCautionDistance(),
		TTCDanger:            cfg.GetTTCDanger(),
		TTCWarning:           cfg.GetTTCWarning(),
		TTCCaution:           cfg.GetTTCCaution(),
		SlowApproachVelocity: cfg.GetSlowApproachVelocity(),
		ReactionTime:         cfg.GetReactionTime(),
		Deceleration:         cfg.GetDeceleration(),
	}
}

// Classifier maps distance, relative velocity and TTC to a risk level. It
// holds no state; the same inputs always yield the same Assessment.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg ClassifierConfig) Classifier {
	return Classifier{cfg: cfg}
}

// Config returns the classifier thresholds.
func (c Classifier) Config() ClassifierConfig { return c.cfg }

// Assess classifies one object. egoSpeed is the vehicle speed in m/s, or
// zero when unavailable; it only feeds the stopping-distance diagnostic.
func (c Classifier) Assess(d perception.Distance, velocity, egoSpeed float64) Assessment {
	var stopping *float64
	if egoSpeed > 0 {
		s := StoppingDistance(egoSpeed, c.cfg.ReactionTime, c.cfg.Deceleration)
		stopping = &s
	}
	if !d.Known {
		return Assessment{Level: LevelUnknown, Velocity: velocity, StoppingDistance: stopping}
	}
	if !c.cfg.EnableTTC {
		return newAssessment(c.distanceOnly(d.Meters), velocity, nil, stopping)
	}
	ttc := TimeToCollision(d.Meters, velocity)
	return newAssessment(c.classify(d.Meters, velocity, ttc), velocity, ttc, stopping)
}

// DistanceOnly classifies raw distance without any velocity adjustment.
func (c Classifier) DistanceOnly(d perception.Distance) Assessment {
	if !d.Known {
		return Assessment{Level: LevelUnknown}
	}
	return newAssessment(c.distanceOnly(d.Meters), 0, nil, nil)
}

func (c Classifier) distanceOnly(distance float64) Level {
	switch {
	case distance <= c.cfg.DangerDistance:
		return LevelDanger
	case distance <= c.cfg.WarningDistance:
		return LevelWarning
	case distance <= c.cfg.CautionDistance:
		return LevelCaution
	}
	return LevelSafe
}

// classify runs the TTC-driven path and falls back to the distance-driven
// path. The only TTC branch that falls through is a short TTC on a slow
// approach with the gap still beyond the very-close distance.
func (c Classifier) classify(distance, velocity float64, ttc *float64) Level {
	slow := velocity < c.cfg.SlowApproachVelocity

	if ttc != nil {
		t := *ttc
		switch {
		case t <= c.cfg.TTCDanger:
			if !slow || distance <= c.cfg.VeryCloseDistance {
				return LevelDanger
			}
		case t <= c.cfg.TTCWarning && !slow:
			return LevelWarning
		case t <= c.cfg.TTCCaution:
			return LevelCaution
		}
	}

	switch {
	case distance <= c.cfg.VeryCloseDistance:
		return LevelDanger
	case distance <= c.cfg.DangerDistance && !slow:
		return LevelDanger
	case distance <= c.cfg.DangerDistance:
		return LevelWarning
	case distance <= c.cfg.WarningDistance && !slow:
		return LevelWarning
	case distance <= c.cfg.CautionDistance:
		return LevelCaution
	}
	return LevelSafe
}

// AssessedDetection is a tracked detection with its risk assessment.
type AssessedDetection struct {
	tracking.TrackedDetection
	Risk Assessment `json:"risk"`
}

// AssessAll estimates velocity from each object's history and classifies it.
func (c Classifier) AssessAll(objs []tracking.TrackedDetection, egoSpeed float64) []AssessedDetection {
	out := make([]AssessedDetection, 0, len(objs))
	for _, o := range objs {
		v := RelativeVelocity(o.History)
		out = append(out, AssessedDetection{
			TrackedDetection: o,
			Risk:             c.Assess(o.Distance, v, egoSpeed),
		})
	}
	return out
}
