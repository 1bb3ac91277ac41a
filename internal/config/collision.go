package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical collision defaults file.
const DefaultConfigPath = "config/collision.defaults.json"

// CollisionConfig is the root configuration for the collision warning
// pipeline. Every field is optional: omitted fields fall back to the
// defaults returned by the Get* accessors, so partial files are safe.
type CollisionConfig struct {
	// Detector params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	NMSThreshold        *float64 `json:"nms_threshold,omitempty"`

	// Distance estimation
	FocalLength *float64           `json:"focal_length,omitempty"` // pixels
	RealHeights map[string]float64 `json:"real_heights,omitempty"` // metres per class

	// Distance thresholds (metres)
	VeryCloseDistance *float64 `json:"very_close_distance,omitempty"`
	DangerDistance    *float64 `json:"danger_distance,omitempty"`
	WarningDistance   *float64 `json:"warning_distance,omitempty"`
	CautionDistance   *float64 `json:"caution_distance,omitempty"`

	// Time-to-collision
	EnableTTC            *bool    `json:"enable_ttc,omitempty"`
	TTCDanger            *float64 `json:"ttc_danger,omitempty"`
	TTCWarning           *float64 `json:"ttc_warning,omitempty"`
	TTCCaution           *float64 `json:"ttc_caution,omitempty"`
	SlowApproachVelocity *float64 `json:"slow_approach_velocity,omitempty"` // m/s
	ReactionTime         *float64 `json:"reaction_time,omitempty"`          // seconds
	Deceleration         *float64 `json:"deceleration,omitempty"`           // m/s²

	// Motion / coarse identity tracking
	EnableMotionDetection    *bool    `json:"enable_motion_detection,omitempty"`
	GridCellSize             *float64 `json:"grid_cell_size,omitempty"` // pixels
	MotionHistorySize        *int     `json:"motion_history_size,omitempty"`
	MotionWindow             *int     `json:"motion_window,omitempty"`
	MotionThreshold          *float64 `json:"motion_threshold,omitempty"`
	StationaryRatioThreshold *float64 `json:"stationary_ratio_threshold,omitempty"`
	StoppedMeanMovement      *float64 `json:"stopped_mean_movement,omitempty"`
	StrictStationaryRatio    *float64 `json:"strict_stationary_ratio,omitempty"`
	StrictMinObjects         *int     `json:"strict_min_objects,omitempty"`

	// Alert arbitration
	MinVelocityForAlert      *float64 `json:"min_velocity_for_alert,omitempty"`
	MaxTTCForAlert           *float64 `json:"max_ttc_for_alert,omitempty"`
	FarDistance              *float64 `json:"far_distance,omitempty"`
	FarMinVelocity           *float64 `json:"far_min_velocity,omitempty"`
	ConsecutiveRiskThreshold *int     `json:"consecutive_risk_threshold,omitempty"`
	ConsecutiveSafeThreshold *int     `json:"consecutive_safe_threshold,omitempty"`
	MuteDuration             *string  `json:"mute_duration,omitempty"` // duration string like "30s"

	// Lane-of-travel band
	EnableLaneFilter    *bool    `json:"enable_lane_filter,omitempty"`
	LaneLeftMargin      *float64 `json:"lane_left_margin,omitempty"`
	LaneRightMargin     *float64 `json:"lane_right_margin,omitempty"`
	LaneOverlapFraction *float64 `json:"lane_overlap_fraction,omitempty"`

	// Collaborators
	AlertVolume  *float64 `json:"alert_volume,omitempty"`
	LogCapacity  *int     `json:"log_capacity,omitempty"`
	PollInterval *string  `json:"poll_interval,omitempty"` // consumer reschedule delay
}

// defaultRealHeights mirrors the fixed class allow-list.
var defaultRealHeights = map[string]float64{
	"person":     1.7,
	"car":        1.5,
	"truck":      2.5,
	"bus":        2.8,
	"motorcycle": 1.2,
	"bicycle":    1.5,
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCollisionConfig returns a CollisionConfig with all fields unset.
// Every accessor then yields its built-in default.
func EmptyCollisionConfig() *CollisionConfig {
	return &CollisionConfig{}
}

// LoadConfig loads a CollisionConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*CollisionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCollisionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *CollisionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks ranges and the ordering between related thresholds.
func (c *CollisionConfig) Validate() error {
	if v := c.GetConfidenceThreshold(); v < 0 || v > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", v)
	}
	if v := c.GetNMSThreshold(); v <= 0 || v > 1 {
		return fmt.Errorf("nms_threshold must be in (0, 1], got %f", v)
	}
	if v := c.GetFocalLength(); v <= 0 {
		return fmt.Errorf("focal_length must be positive, got %f", v)
	}
	for class, h := range c.RealHeights {
		if h <= 0 {
			return fmt.Errorf("real_heights[%s] must be positive, got %f", class, h)
		}
	}

	vc, d, w, ca := c.GetVeryCloseDistance(), c.GetDangerDistance(), c.GetWarningDistance(), c.GetCautionDistance()
	if vc <= 0 || !(vc <= d && d < w && w < ca) {
		return fmt.Errorf("distance thresholds must satisfy 0 < very_close (%g) <= danger (%g) < warning (%g) < caution (%g)", vc, d, w, ca)
	}

	td, tw, tc := c.GetTTCDanger(), c.GetTTCWarning(), c.GetTTCCaution()
	if td <= 0 || !(td < tw && tw < tc) {
		return fmt.Errorf("ttc thresholds must satisfy 0 < danger (%g) < warning (%g) < caution (%g)", td, tw, tc)
	}

	if c.GetReactionTime() < 0 {
		return fmt.Errorf("reaction_time must be non-negative, got %f", c.GetReactionTime())
	}
	if c.GetDeceleration() <= 0 {
		return fmt.Errorf("deceleration must be positive, got %f", c.GetDeceleration())
	}
	if c.GetGridCellSize() <= 0 {
		return fmt.Errorf("grid_cell_size must be positive, got %f", c.GetGridCellSize())
	}
	if c.GetMotionHistorySize() < 2 {
		return fmt.Errorf("motion_history_size must be at least 2, got %d", c.GetMotionHistorySize())
	}
	if w := c.GetMotionWindow(); w < 2 || w > c.GetMotionHistorySize() {
		return fmt.Errorf("motion_window must be in [2, motion_history_size], got %d", w)
	}
	for name, v := range map[string]float64{
		"stationary_ratio_threshold": c.GetStationaryRatioThreshold(),
		"strict_stationary_ratio":    c.GetStrictStationaryRatio(),
		"lane_overlap_fraction":      c.GetLaneOverlapFraction(),
		"alert_volume":               c.GetAlertVolume(),
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, v)
		}
	}
	if c.GetConsecutiveRiskThreshold() < 1 {
		return fmt.Errorf("consecutive_risk_threshold must be at least 1, got %d", c.GetConsecutiveRiskThreshold())
	}
	if c.GetConsecutiveSafeThreshold() < 1 {
		return fmt.Errorf("consecutive_safe_threshold must be at least 1, got %d", c.GetConsecutiveSafeThreshold())
	}
	if l, r := c.GetLaneLeftMargin(), c.GetLaneRightMargin(); l < 0 || r < 0 || l+r >= 1 {
		return fmt.Errorf("lane margins must be non-negative and leave a band (left=%g right=%g)", l, r)
	}
	if c.LogCapacity != nil && *c.LogCapacity < 1 {
		return fmt.Errorf("log_capacity must be positive, got %d", *c.LogCapacity)
	}

	if c.MuteDuration != nil && *c.MuteDuration != "" {
		if _, err := time.ParseDuration(*c.MuteDuration); err != nil {
			return fmt.Errorf("invalid mute_duration '%s': %w", *c.MuteDuration, err)
		}
	}
	if c.PollInterval != nil && *c.PollInterval != "" {
		if _, err := time.ParseDuration(*c.PollInterval); err != nil {
			return fmt.Errorf("invalid poll_interval '%s': %w", *c.PollInterval, err)
		}
	}

	return nil
}
