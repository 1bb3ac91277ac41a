// Package alertlog keeps the in-memory record of alert-worthy detections
// and exports it as JSON. Records can be written through to a persistent
// store on a background writer so Add never waits on disk.
package alertlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/db"
	"github.com/linh0526/canh-bao-va-cham/internal/monitoring"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
	"github.com/linh0526/canh-bao-va-cham/internal/security"
	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
)

const (
	// DefaultCapacity bounds the in-memory log; the oldest record is dropped.
	DefaultCapacity = 1000
	// DefaultRecentLimit is used by Recent when limit <= 0.
	DefaultRecentLimit = 100
	// TimestampLayout formats Record timestamps in exports.
	TimestampLayout = "2006-01-02 15:04:05"
	// ExportPrefix names exported files: warnings_export_YYYYMMDD_HHMMSS.json.
	ExportPrefix = "warnings_export"
	// DefaultQueueSize bounds the records waiting for the store writer.
	DefaultQueueSize = 256
)

// Timestamp marshals as local wall-clock time in TimestampLayout.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Record is one logged alert.
type Record struct {
	Timestamp  Timestamp           `json:"timestamp"`
	Class      perception.Class    `json:"class"`
	Distance   perception.Distance `json:"distance"`
	RiskLevel  risk.Level          `json:"risk_level"`
	Confidence float64             `json:"confidence"`
	BBox       [4]int              `json:"bbox"`
	TTC        *float64            `json:"ttc,omitempty"`
	RunID      string              `json:"run_id,omitempty"`
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time { return time.Time(r.Timestamp) }

func (r Record) String() string {
	return fmt.Sprintf("[%s] %s - %s - %s",
		r.Time().Format(TimestampLayout), r.Class, r.Distance, r.RiskLevel)
}

// Store persists records. *db.DB satisfies it.
type Store interface {
	InsertAlert(a db.Alert) (int64, error)
}

// Options configures a Log.
type Options struct {
	Capacity  int    // defaults to DefaultCapacity
	Dir       string // export directory
	Store     Store  // optional write-through
	QueueSize int    // store backlog, defaults to DefaultQueueSize
	Clock     timeutil.Clock
}

// storeJob is one pending insert, or a flush marker when done is set.
type storeJob struct {
	alert db.Alert
	done  chan struct{}
}

// Log is a bounded, concurrency-safe alert log.
type Log struct {
	mu      sync.Mutex
	records []Record
	cap     int
	total   int64
	runID   string

	dir   string
	store Store
	clock timeutil.Clock

	queue   chan storeJob
	closed  bool
	dropped int64
	writer  sync.WaitGroup
}

// New returns an empty Log.
func New(opts Options) *Log {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	l := &Log{
		records: make([]Record, 0, opts.Capacity),
		cap:     opts.Capacity,
		dir:     opts.Dir,
		store:   opts.Store,
		clock:   opts.Clock,
	}
	if l.store != nil {
		l.queue = make(chan storeJob, opts.QueueSize)
		l.writer.Add(1)
		go l.persist()
	}
	return l
}

// persist drains the queue into the store until Close.
func (l *Log) persist() {
	defer l.writer.Done()
	for job := range l.queue {
		if job.done != nil {
			close(job.done)
			continue
		}
		if _, err := l.store.InsertAlert(job.alert); err != nil {
			monitoring.Logf("alertlog: failed to persist alert: %v", err)
		}
	}
}

// SetRunID tags subsequent records with id.
func (l *Log) SetRunID(id string) {
	l.mu.Lock()
	l.runID = id
	l.mu.Unlock()
}

// Dir returns the export directory.
func (l *Log) Dir() string { return l.dir }

// Add records d. Store failures are logged and do not drop the in-memory
// record.
func (l *Log) Add(d risk.AssessedDetection) Record {
	rec := Record{
		Timestamp:  Timestamp(l.clock.Now()),
		Class:      d.Class,
		Distance:   d.Distance,
		RiskLevel:  d.Risk.Level,
		Confidence: d.Confidence,
		BBox:       [4]int{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2},
		TTC:        d.Risk.TTC,
	}

	l.mu.Lock()
	rec.RunID = l.runID
	if len(l.records) == l.cap {
		copy(l.records, l.records[1:])
		l.records = l.records[:l.cap-1]
	}
	l.records = append(l.records, rec)
	l.total++
	queued := l.enqueueLocked(rec)
	l.mu.Unlock()

	monitoring.Logf("ALERT class=%s distance=%s level=%s confidence=%.1f%%",
		rec.Class, rec.Distance, rec.RiskLevel, rec.Confidence*100)
	if !queued {
		monitoring.Logf("alertlog: store backlog full, alert not persisted")
	}
	return rec
}

// enqueueLocked hands rec to the store writer without blocking. It reports
// false only when the backlog is full.
func (l *Log) enqueueLocked(rec Record) bool {
	if l.queue == nil || l.closed {
		return true
	}
	select {
	case l.queue <- storeJob{alert: rec.DBAlert()}:
		return true
	default:
		l.dropped++
		return false
	}
}

// Flush blocks until every record added so far has reached the store.
func (l *Log) Flush() {
	l.mu.Lock()
	if l.queue == nil || l.closed {
		l.mu.Unlock()
		return
	}
	// The writer never takes l.mu; holding it keeps Close from closing the
	// queue mid-send.
	done := make(chan struct{})
	l.queue <- storeJob{done: done}
	l.mu.Unlock()
	<-done
}

// Dropped returns the number of records the store writer could not accept.
func (l *Log) Dropped() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close stops the store writer after it has written every queued record.
// The in-memory log stays readable. Close is safe to call more than once.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.queue == nil || l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	l.writer.Wait()
	return nil
}

// DBAlert converts r to its stored form.
func (r Record) DBAlert() db.Alert {
	return db.Alert{
		RunID:      r.RunID,
		Time:       r.Time(),
		Class:      string(r.Class),
		DistanceM:  r.Distance.Ptr(),
		Level:      r.RiskLevel.String(),
		Confidence: r.Confidence,
		TTC:        r.TTC,
		X1:         r.BBox[0],
		Y1:         r.BBox[1],
		X2:         r.BBox[2],
		Y2:         r.BBox[3],
	}
}

// Recent returns up to limit of the newest records, oldest first.
func (l *Log) Recent(limit int) []Record {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	start := len(l.records) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Record, len(l.records)-start)
	copy(out, l.records[start:])
	return out
}

// Len returns the number of records held in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Total returns the number of records added since creation, including
// evicted and cleared ones.
func (l *Log) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Clear drops every in-memory record. The store is left untouched.
func (l *Log) Clear() {
	l.mu.Lock()
	l.records = l.records[:0]
	l.mu.Unlock()
	monitoring.Logf("alertlog: cleared in-memory records")
}

// ExportJSON writes every in-memory record as an indented JSON array.
func (l *Log) ExportJSON(w io.Writer) error {
	records := l.Recent(l.cap)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ExportFile writes the log to <dir>/warnings_export_YYYYMMDD_HHMMSS.json and
// returns the path.
func (l *Log) ExportFile() (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	path, err := security.ExportPath(l.dir, ExportPrefix, l.clock.Now())
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := l.ExportJSON(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
