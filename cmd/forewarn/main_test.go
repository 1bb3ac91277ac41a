package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linh0526/canh-bao-va-cham/internal/alertlog"
	"github.com/linh0526/canh-bao-va-cham/internal/config"
	"github.com/linh0526/canh-bao-va-cham/internal/db"
	"github.com/linh0526/canh-bao-va-cham/internal/egospeed"
	"github.com/linh0526/canh-bao-va-cham/internal/monitoring"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
	"github.com/linh0526/canh-bao-va-cham/internal/tracking"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, "collision_alerts.db", *dbPath)
	assert.Equal(t, "kph", *units)
	assert.True(t, *autoStart)
	assert.False(t, *devMode)
}

func TestDevScenario(t *testing.T) {
	steps := devScenario()
	require.NotEmpty(t, steps)

	cfg := perception.ConfigFromCollision(config.EmptyCollisionConfig())
	for i, step := range steps {
		require.Len(t, step, 2, "step %d", i)
		kept := cfg.Lane.Filter(step, devWidth)
		require.Len(t, kept, 1, "parked car must be outside the lane at step %d", i)
	}

	dist := func(i int) float64 {
		lead := steps[i][0]
		d := cfg.Distance.Estimate(lead.Class, float64(lead.Box.Height()))
		require.True(t, d.Known)
		return d.Meters
	}
	assert.InDelta(t, 30, dist(0), 1)
	assert.Less(t, dist(130), dist(0))
	assert.Less(t, dist(259), dist(130))
	assert.InDelta(t, 4, dist(270), 0.1, "holds close behind the lead car")
	assert.Greater(t, dist(len(steps)-1), 25.0)
}

func TestFeedDevSpeed(t *testing.T) {
	port := egospeed.NewMockPort()
	feed := egospeed.NewFeed(port, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Monitor(ctx)
	go feedDevSpeed(ctx, port)

	require.Eventually(t, func() bool {
		_, ok := feed.Speed()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	v, _ := feed.Speed()
	assert.InDelta(t, 30.0/3.6, v, 1.0)
}

type fakeRun struct {
	mu      sync.Mutex
	done    chan struct{}
	running bool
	err     error
	stops   int
}

func (f *fakeRun) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *fakeRun) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeRun) Err() error { return f.err }

func (f *fakeRun) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
	return nil
}

func (f *fakeRun) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func TestSuperviseStopsEndedRun(t *testing.T) {
	run := &fakeRun{done: make(chan struct{}), running: true, err: errors.New("camera unplugged")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go supervise(ctx, run, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, run.stopCount(), "live run is left alone")

	close(run.done)
	require.Eventually(t, func() bool { return run.stopCount() == 1 }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, run.stopCount(), "stopped run is not stopped twice")
}

func TestSuperviseWithoutRun(t *testing.T) {
	run := &fakeRun{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	supervise(ctx, run, time.Millisecond)
	assert.Zero(t, run.stopCount())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 900.0, cfg.GetFocalLength())

	path := filepath.Join(t.TempDir(), "collision.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"focal_length": 1000}`), 0o644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cfg.GetFocalLength())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func sessionAlert(dist float64) risk.AssessedDetection {
	ttc := 2.0
	return risk.AssessedDetection{
		TrackedDetection: tracking.TrackedDetection{
			ProcessedDetection: perception.ProcessedDetection{
				Detection: perception.Detection{Class: perception.ClassCar, Confidence: 0.9,
					Box: perception.BoundingBox{X1: 500, Y1: 300, X2: 700, Y2: 500}},
				Distance: perception.KnownDistance(dist),
			},
		},
		Risk: risk.Assessment{Level: risk.LevelDanger, Alert: true, TTC: &ttc},
	}
}

func TestWriteSessionPlot(t *testing.T) {
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	defer func() { monitoring.Logf = orig }()

	start := time.Now().Add(-time.Minute)
	dir := t.TempDir()

	alerts := alertlog.New(alertlog.Options{Dir: dir})
	alerts.Add(sessionAlert(4))
	path := filepath.Join(dir, "memory.png")
	require.NoError(t, writeSessionPlot(path, nil, alerts, start))
	_, err := os.Stat(path)
	require.NoError(t, err)

	database, err := db.NewDB(filepath.Join(dir, "alerts.db"))
	require.NoError(t, err)
	defer database.Close()
	stored := alertlog.New(alertlog.Options{Dir: dir, Store: database})
	stored.Add(sessionAlert(5))
	require.NoError(t, stored.Close())
	path = filepath.Join(dir, "db.png")
	require.NoError(t, writeSessionPlot(path, database, stored, start))
	_, err = os.Stat(path)
	require.NoError(t, err)
}
