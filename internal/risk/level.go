// Package risk estimates closing velocity and time-to-collision for tracked
// objects and classifies them into discrete risk levels.
package risk

import (
	"encoding/json"
	"fmt"
)

// Level is a discrete risk level ordered by severity.
type Level int

const (
	LevelUnknown Level = iota
	LevelSafe
	LevelCaution
	LevelWarning
	LevelDanger
)

var levelNames = map[Level]string{
	LevelUnknown: "unknown",
	LevelSafe:    "safe",
	LevelCaution: "caution",
	LevelWarning: "warning",
	LevelDanger:  "danger",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses the lower-case level name.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return LevelUnknown, fmt.Errorf("unknown risk level %q", s)
}

// MarshalJSON encodes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Priority returns 3/2/1/0 for Danger/Warning/Caution/Safe. Unknown has no
// priority.
func (l Level) Priority() (int, bool) {
	switch l {
	case LevelDanger:
		return 3, true
	case LevelWarning:
		return 2, true
	case LevelCaution:
		return 1, true
	case LevelSafe:
		return 0, true
	}
	return 0, false
}

// Alerting reports whether the level raises the alert flag.
func (l Level) Alerting() bool {
	return l == LevelDanger || l == LevelWarning
}

// Assessment is the risk classification of one detection.
type Assessment struct {
	Level            Level    `json:"level"`
	Alert            bool     `json:"alert"`
	Velocity         float64  `json:"relative_velocity"`           // m/s, positive when closing
	TTC              *float64 `json:"ttc,omitempty"`               // seconds
	StoppingDistance *float64 `json:"stopping_distance,omitempty"` // metres, needs ego speed
}

// Priority returns the level's priority; ok is false for Unknown.
func (a Assessment) Priority() (p int, ok bool) { return a.Level.Priority() }

func newAssessment(level Level, velocity float64, ttc, stopping *float64) Assessment {
	return Assessment{
		Level:            level,
		Alert:            level.Alerting(),
		Velocity:         velocity,
		TTC:              ttc,
		StoppingDistance: stopping,
	}
}
