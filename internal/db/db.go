package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// DB is the persistent alert store.
type DB struct {
	*sql.DB
	path string
}

// Applied through the DSN so every pooled connection carries them.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

func dsn(path string) string {
	q := make([]string, len(pragmas))
	for i, p := range pragmas {
		q[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(q, "&")
}

// NewDB opens (or creates) the sqlite database at path and brings its schema
// up to the latest embedded migration.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Alert is one persisted alert-log entry.
type Alert struct {
	ID         int64
	RunID      string
	Time       time.Time
	Class      string
	DistanceM  *float64
	Level      string
	Confidence float64
	TTC        *float64
	X1, Y1     int
	X2, Y2     int
}

// Run summarises one pipeline start/stop cycle.
type Run struct {
	ID              string
	Source          string
	StartedAt       time.Time
	StoppedAt       *time.Time
	FramesProcessed int64
	AlertCount      int64
}

func toUnix(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromUnix(f float64) time.Time {
	return time.UnixMicro(int64(math.Round(f * 1e6)))
}

// InsertAlert stores a and returns its row id.
func (db *DB) InsertAlert(a Alert) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO alerts (
			run_id, recorded_at, class, distance_m, risk_level, confidence, ttc_s,
			x1, y1, x2, y2
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, toUnix(a.Time), a.Class, a.DistanceM, a.Level, a.Confidence, a.TTC,
		a.X1, a.Y1, a.X2, a.Y2,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return res.LastInsertId()
}

const alertColumns = `alert_id, run_id, recorded_at, class, distance_m, risk_level,
	confidence, ttc_s, x1, y1, x2, y2`

func scanAlerts(rows *sql.Rows) ([]Alert, error) {
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var (
			a        Alert
			recorded float64
			dist     sql.NullFloat64
			ttc      sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.RunID, &recorded, &a.Class, &dist, &a.Level,
			&a.Confidence, &ttc, &a.X1, &a.Y1, &a.X2, &a.Y2); err != nil {
			return nil, err
		}
		a.Time = fromUnix(recorded)
		if dist.Valid {
			a.DistanceM = &dist.Float64
		}
		if ttc.Valid {
			a.TTC = &ttc.Float64
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// RecentAlerts returns up to limit of the newest alerts, oldest first.
func (db *DB) RecentAlerts(limit int) ([]Alert, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.Query(`
		SELECT `+alertColumns+` FROM (
			SELECT * FROM alerts ORDER BY recorded_at DESC, alert_id DESC LIMIT ?
		) ORDER BY recorded_at ASC, alert_id ASC`, limit)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

// AlertsBetween returns alerts recorded in [start, end), oldest first.
func (db *DB) AlertsBetween(start, end time.Time) ([]Alert, error) {
	rows, err := db.Query(`
		SELECT `+alertColumns+` FROM alerts
		WHERE recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at ASC, alert_id ASC`, toUnix(start), toUnix(end))
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

// AlertsForRun returns all alerts recorded under runID, oldest first.
func (db *DB) AlertsForRun(runID string) ([]Alert, error) {
	rows, err := db.Query(`
		SELECT `+alertColumns+` FROM alerts
		WHERE run_id = ?
		ORDER BY recorded_at ASC, alert_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

// CountAlerts returns the number of stored alerts.
func (db *DB) CountAlerts() (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&n)
	return n, err
}

// ClearAlerts deletes every stored alert.
func (db *DB) ClearAlerts() error {
	_, err := db.Exec(`DELETE FROM alerts`)
	return err
}

// StartRun records the start of a pipeline run.
func (db *DB) StartRun(id, source string, at time.Time) error {
	_, err := db.Exec(`INSERT INTO runs (run_id, source, started_at) VALUES (?, ?, ?)`,
		id, source, toUnix(at))
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// StopRun closes a run with its final counters.
func (db *DB) StopRun(id string, at time.Time, frames, alerts int64) error {
	res, err := db.Exec(`
		UPDATE runs SET stopped_at = ?, frames_processed = ?, alert_count = ?
		WHERE run_id = ?`, toUnix(at), frames, alerts, id)
	if err != nil {
		return fmt.Errorf("failed to record run stop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %q not found", id)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, source, started_at, stopped_at, frames_processed, alert_count
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started float64
			stopped sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Source, &started, &stopped, &r.FramesProcessed, &r.AlertCount); err != nil {
			return nil, err
		}
		r.StartedAt = fromUnix(started)
		if stopped.Valid {
			t := fromUnix(stopped.Float64)
			r.StoppedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats is the summary served on /debug/db-stats.
type Stats struct {
	Alerts  int64            `json:"alerts"`
	Runs    int64            `json:"runs"`
	ByLevel map[string]int64 `json:"by_level"`
}

func (db *DB) Stats() (*Stats, error) {
	s := &Stats{ByLevel: map[string]int64{}}
	if err := db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&s.Alerts); err != nil {
		return nil, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&s.Runs); err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT risk_level, COUNT(*) FROM alerts GROUP BY risk_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		s.ByLevel[level] = n
	}
	return s, rows.Err()
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Collision alerts DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("db-stats", "Alert database statistics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.Stats()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read stats: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Printf("Failed to encode db stats: %v", err)
		}
	}))

	debug.Handle("backup", "Create and download a backup of the alert database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("alerts-backup-%d.db", time.Now().Unix()))
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
		w.Header().Set("Content-Type", "application/gzip")

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			log.Printf("Failed to stream backup: %v", err)
		}
	}))
}
