package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
	"github.com/linh0526/canh-bao-va-cham/internal/tracking"
)

func testConfig() Config {
	return Config{
		MinVelocity:    0.5,
		MaxTTC:         10,
		FarDistance:    15,
		FarMinVelocity: 1.5,
		RiskThreshold:  4,
		SafeThreshold:  1,
		MuteDuration:   30 * time.Second,
	}
}

func assessed(level risk.Level, distance, velocity float64) risk.AssessedDetection {
	return risk.AssessedDetection{
		TrackedDetection: tracking.TrackedDetection{
			ProcessedDetection: perception.ProcessedDetection{
				Detection: perception.Detection{Class: perception.ClassCar, Confidence: 0.9},
				Distance:  perception.KnownDistance(distance),
			},
		},
		Risk: risk.Assessment{
			Level:    level,
			Alert:    level.Alerting(),
			Velocity: velocity,
			TTC:      risk.TimeToCollision(distance, velocity),
		},
	}
}

var (
	risky = []risk.AssessedDetection{assessed(risk.LevelDanger, 4, 2)}
	safe  = []risk.AssessedDetection{assessed(risk.LevelSafe, 30, 0)}
)

func newTestArbiter() (*Arbiter, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	return NewArbiter(testConfig(), clock), clock
}

func TestIsRealRisk(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name string
		det  risk.AssessedDetection
		want bool
	}{
		{"danger closing", assessed(risk.LevelDanger, 4, 2), true},
		{"not alert flagged", assessed(risk.LevelCaution, 18, 3), false},
		{"below min velocity", assessed(risk.LevelDanger, 4, 0.2), false},
		{"receding fast counts", assessed(risk.LevelWarning, 7, -2), true},
		{"far and slow", assessed(risk.LevelWarning, 16, 1.2), false},
		{"far and fast", assessed(risk.LevelWarning, 16, 5), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.IsRealRisk(tt.det))
		})
	}

	longTTC := assessed(risk.LevelWarning, 14, 1.2)
	ttc := 11.0
	longTTC.Risk.TTC = &ttc
	assert.False(t, cfg.IsRealRisk(longTTC), "ttc above max")
}

func TestHysteresisAlertsOnFourthFrame(t *testing.T) {
	a, _ := newTestArbiter()
	for i := 1; i <= 6; i++ {
		s := a.Update(risky, false)
		assert.Equal(t, i >= 4, s.ShouldAlert, "frame %d", i)
		assert.Equal(t, i, s.ConsecutiveRisk)
		if i < 4 {
			assert.Equal(t, StateArmed, s.State)
		} else {
			assert.Equal(t, StateAlerting, s.State)
		}
	}

	s := a.Update(safe, false)
	assert.False(t, s.ShouldAlert, "single safe frame drops the alert")
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, 0, s.ConsecutiveRisk)
	assert.Equal(t, 1, s.ConsecutiveSafe)

	// counting restarts from zero
	for i := 1; i <= 3; i++ {
		assert.False(t, a.Update(risky, false).ShouldAlert)
	}
	assert.True(t, a.Update(risky, false).ShouldAlert)
}

func TestCountersMutuallyExclusive(t *testing.T) {
	a, _ := newTestArbiter()
	seq := [][]risk.AssessedDetection{risky, risky, safe, safe, risky, safe, risky, risky, nil}
	for i, dets := range seq {
		s := a.Update(dets, i%3 == 0)
		assert.False(t, s.ConsecutiveRisk > 0 && s.ConsecutiveSafe > 0, "frame %d: %+v", i, s)
	}
}

func TestNoiseRejectedFramesNeverAlert(t *testing.T) {
	a, _ := newTestArbiter()
	creep := []risk.AssessedDetection{assessed(risk.LevelDanger, 4, 0.2)}
	for i := 0; i < 50; i++ {
		s := a.Update(creep, false)
		assert.True(t, s.HasRisk)
		assert.False(t, s.HasRealRisk)
		assert.False(t, s.ShouldAlert)
		assert.Equal(t, 0, s.ConsecutiveRisk)
	}
}

func TestAnyRealRiskCounts(t *testing.T) {
	a, _ := newTestArbiter()
	mixed := []risk.AssessedDetection{
		assessed(risk.LevelDanger, 4, 0.1),
		assessed(risk.LevelSafe, 40, 0),
		assessed(risk.LevelWarning, 10, 3),
	}
	s := a.Update(mixed, false)
	assert.True(t, s.HasRealRisk)
	assert.Equal(t, 1, s.ConsecutiveRisk)
}

func TestMuteGatesDecision(t *testing.T) {
	a, clock := newTestArbiter()
	for i := 0; i < 5; i++ {
		a.Update(risky, false)
	}
	require.True(t, a.Status().ShouldAlert)

	until := a.Mute()
	assert.Equal(t, clock.Now().Add(30*time.Second), until)
	assert.False(t, a.Status().ShouldAlert)
	assert.Equal(t, StateMuted, a.Status().State)

	for i := 0; i < 20; i++ {
		clock.Advance(time.Second)
		s := a.Update(risky, false)
		assert.False(t, s.ShouldAlert, "muted frame %d", i)
		assert.Greater(t, s.ConsecutiveRisk, 4, "mute must not reset counters")
	}

	clock.Set(until.Add(-time.Nanosecond))
	s := a.Update(risky, false)
	assert.True(t, s.Muted)
	assert.False(t, s.ShouldAlert)

	clock.Set(until)
	s = a.Update(risky, false)
	assert.True(t, s.Muted, "still muted at the deadline")
	assert.False(t, s.ShouldAlert)
	assert.Equal(t, StateMuted, s.State)

	clock.Set(until.Add(time.Nanosecond))
	s = a.Update(risky, false)
	assert.False(t, s.Muted)
	assert.True(t, s.ShouldAlert)
	assert.True(t, s.MuteUntil.IsZero())
}

func TestToggleMute(t *testing.T) {
	a, clock := newTestArbiter()
	assert.True(t, a.ToggleMute())
	assert.True(t, a.Status().Muted)
	assert.False(t, a.ToggleMute())
	assert.False(t, a.Status().Muted)

	assert.True(t, a.ToggleMute())
	clock.Advance(31 * time.Second)
	assert.False(t, a.Status().Muted, "expired mute")
	assert.True(t, a.ToggleMute(), "toggle after expiry mutes again")
}

func TestVehicleStoppedOverride(t *testing.T) {
	a, _ := newTestArbiter()
	for i := 0; i < 6; i++ {
		s := a.Update(risky, true)
		assert.False(t, s.ShouldAlert)
		assert.True(t, s.StoppedSuppressed)
		assert.True(t, s.VehicleStopped)
	}
	assert.Equal(t, 6, a.Status().ConsecutiveRisk)

	s := a.Update(risky, false)
	assert.True(t, s.ShouldAlert, "alert resumes once the vehicle moves")
	assert.False(t, s.StoppedSuppressed)
}

func TestReset(t *testing.T) {
	a, _ := newTestArbiter()
	for i := 0; i < 5; i++ {
		a.Update(risky, true)
	}
	a.Mute()
	a.Reset()

	s := a.Status()
	assert.Equal(t, Status{State: StateIdle}, s)

	for i := 1; i <= 3; i++ {
		assert.False(t, a.Update(risky, false).ShouldAlert)
	}
	assert.True(t, a.Update(risky, false).ShouldAlert)
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, testConfig(), DefaultConfig())
}
