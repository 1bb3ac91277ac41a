// Package api serves the collision-warning HTTP interface: live status,
// the alert log, mute control, the annotated frame and debug charts.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/alert"
	"github.com/linh0526/canh-bao-va-cham/internal/alertlog"
	"github.com/linh0526/canh-bao-va-cham/internal/config"
	"github.com/linh0526/canh-bao-va-cham/internal/db"
	"github.com/linh0526/canh-bao-va-cham/internal/httputil"
	"github.com/linh0526/canh-bao-va-cham/internal/pipeline"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
	"github.com/linh0526/canh-bao-va-cham/internal/security"
	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
	"github.com/linh0526/canh-bao-va-cham/internal/units"
)

// MaxAlertLimit caps the limit query parameter of /api/alerts.
const MaxAlertLimit = alertlog.DefaultCapacity

// Controller runs the pipeline. *pipeline.Runner satisfies it.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
	Stats() pipeline.Stats
	Last() *pipeline.FrameResult
	AlertStatus() alert.Status
	ToggleMute() bool
}

// AlertLog is the in-memory alert log. *alertlog.Log satisfies it.
type AlertLog interface {
	Recent(limit int) []alertlog.Record
	ExportJSON(w io.Writer) error
	ExportFile() (string, error)
	Clear()
}

// History is the persistent alert store. *db.DB satisfies it.
type History interface {
	AlertsBetween(start, end time.Time) ([]db.Alert, error)
	Runs() ([]db.Run, error)
}

// FrameStore holds the latest annotated JPEG. *render.Snapshot satisfies it.
type FrameStore interface {
	Load() (data []byte, seq uint64, at time.Time, ok bool)
}

// Options wires a Server. Runner and Alerts are required.
type Options struct {
	Runner  Controller
	Alerts  AlertLog
	History History
	Frames  FrameStore
	Speed   pipeline.SpeedSource
	Config  *config.CollisionConfig
	Units   string
	Clock   timeutil.Clock
	// BaseContext parents runs started through POST /api/start.
	BaseContext context.Context
}

type Server struct {
	runner  Controller
	alerts  AlertLog
	history History
	frames  FrameStore
	speed   pipeline.SpeedSource
	cfg     *config.CollisionConfig
	units   string
	clock   timeutil.Clock
	baseCtx context.Context
}

func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if !units.IsValid(opts.Units) {
		opts.Units = units.KPH
	}
	return &Server{
		runner:  opts.Runner,
		alerts:  opts.Alerts,
		history: opts.History,
		frames:  opts.Frames,
		speed:   opts.Speed,
		cfg:     opts.Config,
		units:   opts.Units,
		clock:   opts.Clock,
		baseCtx: opts.BaseContext,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/alerts/export", s.exportAlerts)
	mux.HandleFunc("/api/mute", s.toggleMute)
	mux.HandleFunc("/api/start", s.startRun)
	mux.HandleFunc("/api/stop", s.stopRun)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/frame.jpg", s.serveFrame)
	mux.HandleFunc("/debug/charts/alerts", s.handleAlertChart)
	return mux
}

// ClosestObject summarises the nearest alert-flagged object.
type ClosestObject struct {
	Class    string     `json:"class"`
	Distance float64    `json:"distance_m"`
	TTC      *float64   `json:"ttc_s,omitempty"`
	Level    risk.Level `json:"risk_level"`
	Velocity float64    `json:"relative_velocity_mps"`
}

// SpeedReading is the ego speed in m/s plus its display form.
type SpeedReading struct {
	MPS     float64 `json:"mps"`
	Display string  `json:"display"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Stats    pipeline.Stats `json:"stats"`
	Alert    alert.Status   `json:"alert"`
	Closest  *ClosestObject `json:"closest,omitempty"`
	Objects  int            `json:"objects"`
	EgoSpeed *SpeedReading  `json:"ego_speed,omitempty"`
	Units    string         `json:"units"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	resp := StatusResponse{
		Stats: s.runner.Stats(),
		Alert: s.runner.AlertStatus(),
		Units: s.units,
	}
	if last := s.runner.Last(); last != nil {
		resp.Objects = len(last.Objects)
		if c := last.Closest; c != nil {
			resp.Closest = &ClosestObject{
				Class:    string(c.Class),
				Distance: c.Distance.Meters,
				TTC:      c.Risk.TTC,
				Level:    c.Risk.Level,
				Velocity: c.Risk.Velocity,
			}
		}
	}
	if s.speed != nil {
		if mps, ok := s.speed.Speed(); ok {
			resp.EgoSpeed = &SpeedReading{MPS: mps, Display: units.FormatSpeed(mps, s.units)}
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listAlerts(w, r)
	case http.MethodDelete:
		s.alerts.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit := alertlog.DefaultRecentLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = min(parsed, MaxAlertLimit)
	}
	httputil.WriteJSONOK(w, s.alerts.Recent(limit))
}

func (s *Server) exportAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		name := fmt.Sprintf("%s_%s.json", alertlog.ExportPrefix, s.clock.Now().Format(security.ExportTimeLayout))
		httputil.SetAttachment(w, "application/json", name)
		if err := s.alerts.ExportJSON(w); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to export alerts: %v", err))
		}
	case http.MethodPost:
		path, err := s.alerts.ExportFile()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to export alerts: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, map[string]string{"path": path})
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// MuteResponse is the body of POST /api/mute.
type MuteResponse struct {
	Muted     bool      `json:"muted"`
	MuteUntil time.Time `json:"mute_until,omitzero"`
}

func (s *Server) toggleMute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	muted := s.runner.ToggleMute()
	resp := MuteResponse{Muted: muted}
	if muted {
		resp.MuteUntil = s.runner.AlertStatus().MuteUntil
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	err := s.runner.Start(s.baseCtx)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		httputil.Conflict(w, err.Error())
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("Failed to start: %v", err))
	default:
		httputil.WriteJSONOK(w, s.runner.Stats())
	}
}

func (s *Server) stopRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	stats := s.runner.Stats()
	err := s.runner.Stop()
	switch {
	case errors.Is(err, pipeline.ErrNotRunning):
		httputil.Conflict(w, err.Error())
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("Failed to stop: %v", err))
	default:
		httputil.WriteJSONOK(w, stats)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.history == nil {
		httputil.NotFound(w, "no alert database configured")
		return
	}
	runs, err := s.history.Runs()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":     s.units,
		"collision": s.cfg,
	})
}

func (s *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.frames == nil {
		httputil.NotFound(w, "frame rendering disabled")
		return
	}
	data, seq, at, ok := s.frames.Load()
	if !ok {
		httputil.NotFound(w, "no frame available")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	_, _ = w.Write(data)
}
