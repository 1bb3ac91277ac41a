package config

import "time"

// GetMuteDuration parses and returns the MuteDuration as a time.Duration.
func (c *CollisionConfig) GetMuteDuration() time.Duration {
	if c.MuteDuration == nil || *c.MuteDuration == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.MuteDuration)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *CollisionConfig) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return 10 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil {
		return 10 * time.Millisecond // default on parse error
	}
	return d
}

// GetRealHeights returns the per-class real-world heights, merging any
// configured overrides over the built-in table.
func (c *CollisionConfig) GetRealHeights() map[string]float64 {
	heights := make(map[string]float64, len(defaultRealHeights)+len(c.RealHeights))
	for class, h := range defaultRealHeights {
		heights[class] = h
	}
	for class, h := range c.RealHeights {
		heights[class] = h
	}
	return heights
}

// GetLaneCenterWidth returns the width of the lane band as a fraction of the
// frame, derived from the two margins.
func (c *CollisionConfig) GetLaneCenterWidth() float64 {
	return 1 - c.GetLaneLeftMargin() - c.GetLaneRightMargin()
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *CollisionConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.5
	}
	return *c.ConfidenceThreshold
}

// GetNMSThreshold returns the nms_threshold value or the default.
func (c *CollisionConfig) GetNMSThreshold() float64 {
	if c.NMSThreshold == nil {
		return 0.45
	}
	return *c.NMSThreshold
}

// GetFocalLength returns the focal_length value or the default.
func (c *CollisionConfig) GetFocalLength() float64 {
	if c.FocalLength == nil {
		return 900
	}
	return *c.FocalLength
}

// GetVeryCloseDistance returns the very_close_distance value or the default.
func (c *CollisionConfig) GetVeryCloseDistance() float64 {
	if c.VeryCloseDistance == nil {
		return 5.0
	}
	return *c.VeryCloseDistance
}

// GetDangerDistance returns the danger_distance value or the default.
func (c *CollisionConfig) GetDangerDistance() float64 {
	if c.DangerDistance == nil {
		return 8.0
	}
	return *c.DangerDistance
}

// GetWarningDistance returns the warning_distance value or the default.
func (c *CollisionConfig) GetWarningDistance() float64 {
	if c.WarningDistance == nil {
		return 15.0
	}
	return *c.WarningDistance
}

// GetCautionDistance returns the caution_distance value or the default.
func (c *CollisionConfig) GetCautionDistance() float64 {
	if c.CautionDistance == nil {
		return 20.0
	}
	return *c.CautionDistance
}

// GetEnableTTC returns the enable_ttc value or the default.
func (c *CollisionConfig) GetEnableTTC() bool {
	if c.EnableTTC == nil {
		return true
	}
	return *c.EnableTTC
}

// GetTTCDanger returns the ttc_danger value or the default.
func (c *CollisionConfig) GetTTCDanger() float64 {
	if c.TTCDanger == nil {
		return 2.0
	}
	return *c.TTCDanger
}

// GetTTCWarning returns the ttc_warning value or the default.
func (c *CollisionConfig) GetTTCWarning() float64 {
	if c.TTCWarning == nil {
		return 4.0
	}
	return *c.TTCWarning
}

// GetTTCCaution returns the ttc_caution value or the default.
func (c *CollisionConfig) GetTTCCaution() float64 {
	if c.TTCCaution == nil {
		return 6.0
	}
	return *c.TTCCaution
}

// GetSlowApproachVelocity returns the slow_approach_velocity value or the default.
func (c *CollisionConfig) GetSlowApproachVelocity() float64 {
	if c.SlowApproachVelocity == nil {
		return 1.0
	}
	return *c.SlowApproachVelocity
}

// GetReactionTime returns the reaction_time value or the default.
func (c *CollisionConfig) GetReactionTime() float64 {
	if c.ReactionTime == nil {
		return 1.2
	}
	return *c.ReactionTime
}

// GetDeceleration returns the deceleration value or the default.
func (c *CollisionConfig) GetDeceleration() float64 {
	if c.Deceleration == nil {
		return 6.0 // ~0.6g
	}
	return *c.Deceleration
}

// GetEnableMotionDetection returns the enable_motion_detection value or the default.
func (c *CollisionConfig) GetEnableMotionDetection() bool {
	if c.EnableMotionDetection == nil {
		return true
	}
	return *c.EnableMotionDetection
}

// GetGridCellSize returns the grid_cell_size value or the default.
func (c *CollisionConfig) GetGridCellSize() float64 {
	if c.GridCellSize == nil {
		return 50
	}
	return *c.GridCellSize
}

// GetMotionHistorySize returns the motion_history_size value or the default.
func (c *CollisionConfig) GetMotionHistorySize() int {
	if c.MotionHistorySize == nil {
		return 10
	}
	return *c.MotionHistorySize
}

// GetMotionWindow returns the motion_window value or the default.
func (c *CollisionConfig) GetMotionWindow() int {
	if c.MotionWindow == nil {
		return 5
	}
	return *c.MotionWindow
}

// GetMotionThreshold returns the motion_threshold value or the default.
func (c *CollisionConfig) GetMotionThreshold() float64 {
	if c.MotionThreshold == nil {
		return 0.02
	}
	return *c.MotionThreshold
}

// GetStationaryRatioThreshold returns the stationary_ratio_threshold value or the default.
func (c *CollisionConfig) GetStationaryRatioThreshold() float64 {
	if c.StationaryRatioThreshold == nil {
		return 0.7
	}
	return *c.StationaryRatioThreshold
}

// GetStoppedMeanMovement returns the stopped_mean_movement value or the default.
func (c *CollisionConfig) GetStoppedMeanMovement() float64 {
	if c.StoppedMeanMovement == nil {
		return 0.01
	}
	return *c.StoppedMeanMovement
}

// GetStrictStationaryRatio returns the strict_stationary_ratio value or the default.
func (c *CollisionConfig) GetStrictStationaryRatio() float64 {
	if c.StrictStationaryRatio == nil {
		return 0.9
	}
	return *c.StrictStationaryRatio
}

// GetStrictMinObjects returns the strict_min_objects value or the default.
func (c *CollisionConfig) GetStrictMinObjects() int {
	if c.StrictMinObjects == nil {
		return 3
	}
	return *c.StrictMinObjects
}

// GetMinVelocityForAlert returns the min_velocity_for_alert value or the default.
func (c *CollisionConfig) GetMinVelocityForAlert() float64 {
	if c.MinVelocityForAlert == nil {
		return 0.5
	}
	return *c.MinVelocityForAlert
}

// GetMaxTTCForAlert returns the max_ttc_for_alert value or the default.
func (c *CollisionConfig) GetMaxTTCForAlert() float64 {
	if c.MaxTTCForAlert == nil {
		return 10.0
	}
	return *c.MaxTTCForAlert
}

// GetFarDistance returns the far_distance value or the default.
func (c *CollisionConfig) GetFarDistance() float64 {
	if c.FarDistance == nil {
		return 15.0
	}
	return *c.FarDistance
}

// GetFarMinVelocity returns the far_min_velocity value or the default.
func (c *CollisionConfig) GetFarMinVelocity() float64 {
	if c.FarMinVelocity == nil {
		return 1.5
	}
	return *c.FarMinVelocity
}

// GetConsecutiveRiskThreshold returns the consecutive_risk_threshold value or the default.
func (c *CollisionConfig) GetConsecutiveRiskThreshold() int {
	if c.ConsecutiveRiskThreshold == nil {
		return 4
	}
	return *c.ConsecutiveRiskThreshold
}

// GetConsecutiveSafeThreshold returns the consecutive_safe_threshold value or the default.
func (c *CollisionConfig) GetConsecutiveSafeThreshold() int {
	if c.ConsecutiveSafeThreshold == nil {
		return 1
	}
	return *c.ConsecutiveSafeThreshold
}

// GetEnableLaneFilter returns the enable_lane_filter value or the default.
func (c *CollisionConfig) GetEnableLaneFilter() bool {
	if c.EnableLaneFilter == nil {
		return true
	}
	return *c.EnableLaneFilter
}

// GetLaneLeftMargin returns the lane_left_margin value or the default.
func (c *CollisionConfig) GetLaneLeftMargin() float64 {
	if c.LaneLeftMargin == nil {
		return 0.25
	}
	return *c.LaneLeftMargin
}

// GetLaneRightMargin returns the lane_right_margin value or the default.
func (c *CollisionConfig) GetLaneRightMargin() float64 {
	if c.LaneRightMargin == nil {
		return 0.25
	}
	return *c.LaneRightMargin
}

// GetLaneOverlapFraction returns the lane_overlap_fraction value or the default.
func (c *CollisionConfig) GetLaneOverlapFraction() float64 {
	if c.LaneOverlapFraction == nil {
		return 0.5
	}
	return *c.LaneOverlapFraction
}

// GetAlertVolume returns the alert_volume value or the default.
func (c *CollisionConfig) GetAlertVolume() float64 {
	if c.AlertVolume == nil {
		return 0.7
	}
	return *c.AlertVolume
}

// GetLogCapacity returns the log_capacity value or the default.
func (c *CollisionConfig) GetLogCapacity() int {
	if c.LogCapacity == nil {
		return 1000
	}
	return *c.LogCapacity
}
