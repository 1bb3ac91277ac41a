package perception

import "github.com/linh0526/canh-bao-va-cham/internal/config"

// Config groups the distance estimator and lane filter settings.
type Config struct {
	Distance DistanceEstimator
	Lane     LaneFilter
}

// DefaultConfig returns perception settings loaded from the canonical
// defaults file. Panics if the file cannot be found.
func DefaultConfig() Config {
	return ConfigFromCollision(config.MustLoadDefaultConfig())
}

// ConfigFromCollision builds perception settings from a loaded
// CollisionConfig.
func ConfigFromCollision(cfg *config.CollisionConfig) Config {
	heights := make(map[Class]float64)
	for name, h := range cfg.GetRealHeights() {
		heights[Class(name)] = h
	}
	return Config{
		Distance: DistanceEstimator{
			FocalLength: cfg.GetFocalLength(),
			RealHeights: heights,
		},
		Lane: LaneFilter{
			Enabled:         cfg.GetEnableLaneFilter(),
			LeftMargin:      cfg.GetLaneLeftMargin(),
			RightMargin:     cfg.GetLaneRightMargin(),
			OverlapFraction: cfg.GetLaneOverlapFraction(),
		},
	}
}
