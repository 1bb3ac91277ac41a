package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/db"
	"github.com/linh0526/canh-bao-va-cham/internal/httputil"
	"github.com/linh0526/canh-bao-va-cham/internal/report"
)

const defaultChartWindow = time.Hour

// chartAlerts returns alerts from the last window, read from the history
// store when present and from the in-memory log otherwise.
func (s *Server) chartAlerts(window time.Duration) ([]db.Alert, error) {
	now := s.clock.Now()
	if s.history != nil {
		return s.history.AlertsBetween(now.Add(-window), now)
	}
	records := s.alerts.Recent(MaxAlertLimit)
	alerts := make([]db.Alert, 0, len(records))
	for _, rec := range records {
		if now.Sub(rec.Time()) <= window {
			alerts = append(alerts, rec.DBAlert())
		}
	}
	return alerts, nil
}

// handleAlertChart renders the alert timeline (distance over time, one
// series per level) using go-echarts.
func (s *Server) handleAlertChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	window := defaultChartWindow
	if m := r.URL.Query().Get("minutes"); m != "" {
		minutes, err := strconv.Atoi(m)
		if err != nil || minutes < 1 {
			httputil.BadRequest(w, "Invalid 'minutes' parameter")
			return
		}
		window = time.Duration(minutes) * time.Minute
	}

	alerts, err := s.chartAlerts(window)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve alerts: %v", err))
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Collision alerts (last %s)", window)
	if err := report.WriteHTML(&buf, report.Group(alerts), title); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
