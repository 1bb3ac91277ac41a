// Package pipeline runs the forward collision-warning fusion loop.
//
// A Runner owns the per-run state (tracker history, arbitration counters)
// and drives every frame through detection, lane filtering, distance
// estimation, tracking, velocity/TTC estimation, risk classification and
// alert arbitration, then fans the result out to the optional sinks
// (alert sound, alert log, run store, frame sink). The stages themselves
// live in their own packages; this package only wires them.
package pipeline
