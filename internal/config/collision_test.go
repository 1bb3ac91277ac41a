package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyCollisionConfig()

	if cfg.GetFocalLength() != 900 {
		t.Errorf("GetFocalLength() = %f, want 900", cfg.GetFocalLength())
	}
	if cfg.GetConsecutiveRiskThreshold() != 4 {
		t.Errorf("GetConsecutiveRiskThreshold() = %d, want 4", cfg.GetConsecutiveRiskThreshold())
	}
	if cfg.GetConsecutiveSafeThreshold() != 1 {
		t.Errorf("GetConsecutiveSafeThreshold() = %d, want 1", cfg.GetConsecutiveSafeThreshold())
	}
	if cfg.GetMuteDuration() != 30*time.Second {
		t.Errorf("GetMuteDuration() = %v, want 30s", cfg.GetMuteDuration())
	}
	if !cfg.GetEnableTTC() || !cfg.GetEnableLaneFilter() || !cfg.GetEnableMotionDetection() {
		t.Error("expected TTC, lane filter and motion detection enabled by default")
	}
	if got := cfg.GetLaneCenterWidth(); got != 0.5 {
		t.Errorf("GetLaneCenterWidth() = %f, want 0.5", got)
	}
	if got := cfg.GetRealHeights()["truck"]; got != 2.5 {
		t.Errorf("GetRealHeights()[truck] = %f, want 2.5", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	empty := EmptyCollisionConfig()

	assert.Equal(t, empty.GetFocalLength(), fromFile.GetFocalLength())
	assert.Equal(t, empty.GetRealHeights(), fromFile.GetRealHeights())
	assert.Equal(t, empty.GetDangerDistance(), fromFile.GetDangerDistance())
	assert.Equal(t, empty.GetWarningDistance(), fromFile.GetWarningDistance())
	assert.Equal(t, empty.GetCautionDistance(), fromFile.GetCautionDistance())
	assert.Equal(t, empty.GetTTCDanger(), fromFile.GetTTCDanger())
	assert.Equal(t, empty.GetMotionHistorySize(), fromFile.GetMotionHistorySize())
	assert.Equal(t, empty.GetMotionThreshold(), fromFile.GetMotionThreshold())
	assert.Equal(t, empty.GetMinVelocityForAlert(), fromFile.GetMinVelocityForAlert())
	assert.Equal(t, empty.GetMaxTTCForAlert(), fromFile.GetMaxTTCForAlert())
	assert.Equal(t, empty.GetMuteDuration(), fromFile.GetMuteDuration())
	assert.Equal(t, empty.GetPollInterval(), fromFile.GetPollInterval())
	assert.Equal(t, empty.GetLogCapacity(), fromFile.GetLogCapacity())
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "collision.json")

	testJSON := `{
  "focal_length": 1000,
  "real_heights": {"car": 1.6},
  "consecutive_risk_threshold": 6,
  "mute_duration": "45s",
  "enable_lane_filter": false
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, cfg.GetFocalLength())
	assert.Equal(t, 1.6, cfg.GetRealHeights()["car"])
	assert.Equal(t, 1.7, cfg.GetRealHeights()["person"], "unspecified classes keep defaults")
	assert.Equal(t, 6, cfg.GetConsecutiveRiskThreshold())
	assert.Equal(t, 45*time.Second, cfg.GetMuteDuration())
	assert.False(t, cfg.GetEnableLaneFilter())
	// Omitted fields fall back to defaults
	assert.Equal(t, 0.02, cfg.GetMotionThreshold())
}

func TestLoadConfigRejectsBadFiles(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "collision.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(tmpDir, "missing.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(tmpDir, "invalid.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"danger_distance": 30}`), 0644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *CollisionConfig)
		wantErr bool
	}{
		{"defaults", func(c *CollisionConfig) {}, false},
		{"confidence above one", func(c *CollisionConfig) { c.ConfidenceThreshold = ptrFloat64(1.5) }, true},
		{"zero focal length", func(c *CollisionConfig) { c.FocalLength = ptrFloat64(0) }, true},
		{"negative class height", func(c *CollisionConfig) { c.RealHeights = map[string]float64{"car": -1} }, true},
		{"danger beyond warning", func(c *CollisionConfig) { c.DangerDistance = ptrFloat64(16) }, true},
		{"very close beyond danger", func(c *CollisionConfig) { c.VeryCloseDistance = ptrFloat64(9) }, true},
		{"ttc out of order", func(c *CollisionConfig) { c.TTCWarning = ptrFloat64(7) }, true},
		{"zero deceleration", func(c *CollisionConfig) { c.Deceleration = ptrFloat64(0) }, true},
		{"window larger than history", func(c *CollisionConfig) { c.MotionWindow = ptrInt(12) }, true},
		{"risk threshold zero", func(c *CollisionConfig) { c.ConsecutiveRiskThreshold = ptrInt(0) }, true},
		{"margins swallow frame", func(c *CollisionConfig) {
			c.LaneLeftMargin = ptrFloat64(0.5)
			c.LaneRightMargin = ptrFloat64(0.5)
		}, true},
		{"volume above one", func(c *CollisionConfig) { c.AlertVolume = ptrFloat64(1.2) }, true},
		{"bad mute duration", func(c *CollisionConfig) { c.MuteDuration = ptrString("forever") }, true},
		{"bad poll interval", func(c *CollisionConfig) { c.PollInterval = ptrString("1x") }, true},
		{"lane filter toggle is fine", func(c *CollisionConfig) { c.EnableLaneFilter = ptrBool(false) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := EmptyCollisionConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationFallbackOnParseError(t *testing.T) {
	cfg := &CollisionConfig{MuteDuration: ptrString("nope"), PollInterval: ptrString("nope")}
	if cfg.GetMuteDuration() != 30*time.Second {
		t.Errorf("GetMuteDuration() = %v, want fallback 30s", cfg.GetMuteDuration())
	}
	if cfg.GetPollInterval() != 10*time.Millisecond {
		t.Errorf("GetPollInterval() = %v, want fallback 10ms", cfg.GetPollInterval())
	}
}
