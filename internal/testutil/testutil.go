// Package testutil holds helpers shared by handler and pipeline tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
	"github.com/linh0526/canh-bao-va-cham/internal/tracking"
)

// DefaultBox is the box used by Assessed: 337px tall, centred in a 1280px
// frame, which the default config puts at 4m for a car.
var DefaultBox = perception.BoundingBox{X1: 400, Y1: 200, X2: 600, Y2: 537}

// LocalRequest returns a request that appears to come from localhost so
// tsweb debug routes accept it.
func LocalRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// Assessed builds an alert-flagged detection at dist metres with a 2s TTC
// closing at 2 m/s.
func Assessed(class perception.Class, dist float64, level risk.Level) risk.AssessedDetection {
	ttc := 2.0
	return risk.AssessedDetection{
		TrackedDetection: tracking.TrackedDetection{
			ProcessedDetection: perception.ProcessedDetection{
				Detection: perception.Detection{
					Class:      class,
					Confidence: 0.9,
					Box:        DefaultBox,
				},
				Distance: perception.KnownDistance(dist),
			},
		},
		Risk: risk.Assessment{Level: level, Alert: level.Alerting(), Velocity: 2, TTC: &ttc},
	}
}

// AssertJSONError checks a JSON error response's status and message.
func AssertJSONError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("status = %d, want %d (body %q)", rec.Code, status, rec.Body.String())
		return
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error != msg {
		t.Errorf("error = %q, want %q", resp.Error, msg)
	}
}
