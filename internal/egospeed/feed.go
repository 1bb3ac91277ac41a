// Package egospeed reads the ego vehicle speed from a serial device. The
// latest reading feeds the stopping-distance diagnostic only.
package egospeed

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
)

// DefaultMaxAge is how long a reading stays valid without a newer one.
const DefaultMaxAge = 2 * time.Second

// Feed tracks the latest speed reported by a Porter.
type Feed struct {
	port   Porter
	clock  timeutil.Clock
	maxAge time.Duration

	mu       sync.Mutex
	speed    float64
	at       time.Time
	have     bool
	lines    int64
	rejected int64
	closing  bool
}

// NewFeed wraps port. A zero maxAge uses DefaultMaxAge; a nil clock uses
// the real clock.
func NewFeed(port Porter, clock timeutil.Clock, maxAge time.Duration) *Feed {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Feed{port: port, clock: clock, maxAge: maxAge}
}

// Open opens the device at path and wraps it in a Feed.
func Open(path string, opts PortOptions) (*Feed, error) {
	port, err := OpenPort(path, opts)
	if err != nil {
		return nil, err
	}
	opsf("opened speed device %s", path)
	return NewFeed(port, nil, 0), nil
}

// Speed returns the latest reading in m/s, or false when none has arrived
// within the max age.
func (f *Feed) Speed() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.have || f.clock.Since(f.at) > f.maxAge {
		return 0, false
	}
	return f.speed, true
}

// Observe parses and records one line. Bad lines are counted and ignored.
func (f *Feed) Observe(line string) {
	mps, err := ParseSpeedLine(line)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines++
	if err != nil {
		f.rejected++
		diagf("ignoring speed line %q: %v", line, err)
		return
	}
	f.speed = mps
	f.at = f.clock.Now()
	f.have = true
}

// Monitor reads lines from the port until ctx is cancelled, the port is
// closed, or a read fails.
func (f *Feed) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(f.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if f.isClosing() {
				return nil
			}
			opsf("speed port read failed: %v", err)
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !f.isClosing() {
						opsf("speed port read failed: %v", err)
						return err
					}
				default:
				}
				return nil
			}
			if f.isClosing() {
				return nil
			}
			f.Observe(line)
		}
	}
}

func (f *Feed) isClosing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closing
}

// Close closes the underlying port, which ends Monitor.
func (f *Feed) Close() error {
	f.mu.Lock()
	f.closing = true
	f.mu.Unlock()
	return f.port.Close()
}

// Status is the admin view of the feed.
type Status struct {
	SpeedMPS *float64   `json:"speed_mps"`
	LastAt   *time.Time `json:"last_at,omitempty"`
	Lines    int64      `json:"lines"`
	Rejected int64      `json:"rejected"`
}

// Status reports the current reading and line counters.
func (f *Feed) Status() Status {
	s := Status{}
	if v, ok := f.Speed(); ok {
		s.SpeedMPS = &v
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s.Lines = f.lines
	s.Rejected = f.rejected
	if f.have {
		at := f.at
		s.LastAt = &at
	}
	return s
}

// AttachAdminRoutes exposes the feed status at /debug/egospeed.
func (f *Feed) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("egospeed", "ego speed feed status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(f.Status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
