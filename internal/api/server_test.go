package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linh0526/canh-bao-va-cham/internal/alert"
	"github.com/linh0526/canh-bao-va-cham/internal/alertlog"
	"github.com/linh0526/canh-bao-va-cham/internal/config"
	"github.com/linh0526/canh-bao-va-cham/internal/db"
	"github.com/linh0526/canh-bao-va-cham/internal/monitoring"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/pipeline"
	"github.com/linh0526/canh-bao-va-cham/internal/render"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
	"github.com/linh0526/canh-bao-va-cham/internal/testutil"
	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
)

var t0 = time.Date(2026, 10, 19, 14, 30, 0, 0, time.Local)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

type fakeController struct {
	mu       sync.Mutex
	running  bool
	muted    bool
	until    time.Time
	last     *pipeline.FrameResult
	startErr error
	starts   int
}

func (c *fakeController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	if c.running {
		return pipeline.ErrAlreadyRunning
	}
	c.running = true
	c.starts++
	return nil
}

func (c *fakeController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return pipeline.ErrNotRunning
	}
	c.running = false
	return nil
}

func (c *fakeController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *fakeController) Stats() pipeline.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pipeline.Stats{RunID: "run-1", Running: c.running, FramesProcessed: 42, FPS: 25}
}

func (c *fakeController) Last() *pipeline.FrameResult { return c.last }

func (c *fakeController) AlertStatus() alert.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return alert.Status{Muted: c.muted, MuteUntil: c.until}
}

func (c *fakeController) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = !c.muted
	if c.muted {
		c.until = t0.Add(30 * time.Second)
	} else {
		c.until = time.Time{}
	}
	return c.muted
}

type fixedSpeed float64

func (s fixedSpeed) Speed() (float64, bool) { return float64(s), true }

type fixture struct {
	srv    *Server
	mux    *http.ServeMux
	ctrl   *fakeController
	log    *alertlog.Log
	db     *db.DB
	frames *render.Snapshot
	clock  *timeutil.MockClock
}

func newFixture(t *testing.T, withDB bool) *fixture {
	t.Helper()
	f := &fixture{
		ctrl:   &fakeController{},
		frames: &render.Snapshot{},
		clock:  timeutil.NewMockClock(t0),
	}
	opts := alertlog.Options{Clock: f.clock, Dir: filepath.Join(t.TempDir(), "logs")}
	var history History
	if withDB {
		database, err := db.NewDB(filepath.Join(t.TempDir(), "alerts.db"))
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
		f.db = database
		opts.Store = database
		history = database
	}
	f.log = alertlog.New(opts)
	t.Cleanup(func() { f.log.Close() })
	f.srv = NewServer(Options{
		Runner:  f.ctrl,
		Alerts:  f.log,
		History: history,
		Frames:  f.frames,
		Speed:   fixedSpeed(10),
		Config:  config.MustLoadDefaultConfig(),
		Units:   "kph",
		Clock:   f.clock,
	})
	f.mux = f.srv.ServeMux()
	return f
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStatus(t *testing.T) {
	f := newFixture(t, false)
	closest := testutil.Assessed(perception.ClassCar, 4, risk.LevelDanger)
	f.ctrl.last = &pipeline.FrameResult{
		Objects: []risk.AssessedDetection{closest, testutil.Assessed(perception.ClassTruck, 12, risk.LevelWarning)},
		Closest: &closest,
	}

	rec := f.do(http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.Stats.RunID)
	assert.EqualValues(t, 42, resp.Stats.FramesProcessed)
	assert.Equal(t, 2, resp.Objects)
	require.NotNil(t, resp.Closest)
	assert.Equal(t, "car", resp.Closest.Class)
	assert.Equal(t, 4.0, resp.Closest.Distance)
	assert.Equal(t, risk.LevelDanger, resp.Closest.Level)
	require.NotNil(t, resp.EgoSpeed)
	assert.Equal(t, "36.0 km/h", resp.EgoSpeed.Display)
	assert.Equal(t, "kph", resp.Units)

	testutil.AssertJSONError(t, f.do(http.MethodPost, "/api/status"), http.StatusMethodNotAllowed, "method not allowed")
}

func TestStatusBeforeFirstFrame(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Closest)
	assert.Zero(t, resp.Objects)
}

func TestListAlerts(t *testing.T) {
	f := newFixture(t, false)
	for i := 0; i < 5; i++ {
		f.log.Add(testutil.Assessed(perception.ClassCar, float64(i+1), risk.LevelDanger))
	}

	tests := []struct {
		name   string
		query  string
		status int
		count  int
	}{
		{"default limit", "", http.StatusOK, 5},
		{"limit 2", "?limit=2", http.StatusOK, 2},
		{"limit above cap", "?limit=5000", http.StatusOK, 5},
		{"zero", "?limit=0", http.StatusBadRequest, 0},
		{"not a number", "?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/api/alerts"+tt.query)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}
			var recs []alertlog.Record
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
			assert.Len(t, recs, tt.count)
		})
	}

	rec := f.do(http.MethodGet, "/api/alerts?limit=2")
	var recs []alertlog.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	assert.Equal(t, perception.KnownDistance(4), recs[0].Distance, "newest two, oldest first")
	assert.Equal(t, perception.KnownDistance(5), recs[1].Distance)
}

func TestClearAlerts(t *testing.T) {
	f := newFixture(t, false)
	f.log.Add(testutil.Assessed(perception.ClassCar, 4, risk.LevelDanger))
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/alerts").Code)
	assert.Zero(t, f.log.Len())
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPut, "/api/alerts").Code)
}

func TestExportAlerts(t *testing.T) {
	f := newFixture(t, false)
	f.log.Add(testutil.Assessed(perception.ClassCar, 4, risk.LevelDanger))

	rec := f.do(http.MethodGet, "/api/alerts/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="warnings_export_20261019_143000.json"`,
		rec.Header().Get("Content-Disposition"))
	var recs []alertlog.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	assert.Len(t, recs, 1)

	rec = f.do(http.MethodPost, "/api/alerts/export")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "warnings_export_20261019_143000.json", filepath.Base(resp["path"]))
	_, err := os.Stat(resp["path"])
	assert.NoError(t, err)
}

func TestToggleMute(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/mute")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp MuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Muted)
	assert.True(t, resp.MuteUntil.Equal(t0.Add(30*time.Second)))

	rec = f.do(http.MethodPost, "/api/mute")
	resp = MuteResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Muted)
	assert.True(t, resp.MuteUntil.IsZero())

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/api/mute").Code)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/stop").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/start").Code)
	assert.True(t, f.ctrl.Running())
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/start").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/stop").Code)
	assert.False(t, f.ctrl.Running())

	f.ctrl.startErr = errors.New("camera busy")
	rec := f.do(http.MethodPost, "/api/start")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "camera busy")
}

func TestRuns(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/runs").Code)

	f = newFixture(t, true)
	rec := f.do(http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, f.db.StartRun("run-1", "camera 0", t0))
	rec = f.do(http.MethodGet, "/api/runs")
	var runs []db.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "camera 0", runs[0].Source)
}

func TestConfig(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Units     string                 `json:"units"`
		Collision config.CollisionConfig `json:"collision"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "kph", resp.Units)
	assert.Equal(t, config.MustLoadDefaultConfig().GetFocalLength(), resp.Collision.GetFocalLength())
}

func TestFrame(t *testing.T) {
	f := newFixture(t, false)
	testutil.AssertJSONError(t, f.do(http.MethodGet, "/api/frame.jpg"), http.StatusNotFound, "no frame available")

	jpeg := []byte{0xff, 0xd8, 0xff, 0xd9}
	f.frames.Store(jpeg, 12, t0)
	rec := f.do(http.MethodGet, "/api/frame.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "12", rec.Header().Get("X-Frame-Seq"))
	assert.True(t, bytes.Equal(jpeg, rec.Body.Bytes()))
}

func TestAlertChart(t *testing.T) {
	for _, withDB := range []bool{false, true} {
		f := newFixture(t, withDB)
		f.log.Add(testutil.Assessed(perception.ClassCar, 4, risk.LevelDanger))
		f.log.Flush()
		f.clock.Advance(time.Minute)

		rec := f.do(http.MethodGet, "/debug/charts/alerts?minutes=5")
		require.Equal(t, http.StatusOK, rec.Code, "withDB=%v", withDB)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
		assert.Contains(t, rec.Body.String(), "alerts=1")

		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/debug/charts/alerts?minutes=-1").Code)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	f := newFixture(t, false)
	h := LoggingMiddleware(f.mux)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frame.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
