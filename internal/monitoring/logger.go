// Package monitoring carries the event log that alert records and run
// lifecycle messages are written to.
package monitoring

import (
	"io"
	"log"
)

// Logf writes one event line. It defaults to log.Printf; SetLogger or
// SetWriter redirect it and tests may mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the event logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetWriter sends events to w with an "[event] " prefix. A nil writer
// mutes the log.
func SetWriter(w io.Writer) {
	if w == nil {
		SetLogger(nil)
		return
	}
	l := log.New(w, "[event] ", log.LstdFlags|log.Lmicroseconds)
	SetLogger(l.Printf)
}
