// Package perception turns raw detector output into lane-gated,
// distance-annotated detections.
package perception

import (
	"encoding/json"
	"fmt"
)

// Class is a road-relevant object class produced by the detector.
type Class string

const (
	ClassPerson     Class = "person"
	ClassBicycle    Class = "bicycle"
	ClassCar        Class = "car"
	ClassMotorcycle Class = "motorcycle"
	ClassBus        Class = "bus"
	ClassTruck      Class = "truck"
)

// AllowedClasses is the fixed allow-list. Detections of any other class are
// dropped before entering the pipeline.
var AllowedClasses = []Class{
	ClassPerson,
	ClassBicycle,
	ClassCar,
	ClassMotorcycle,
	ClassBus,
	ClassTruck,
}

// ParseClass returns the Class named by s and whether it is on the allow-list.
func ParseClass(s string) (Class, bool) {
	for _, c := range AllowedClasses {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// BoundingBox is an axis-aligned pixel box with X1 < X2 and Y1 < Y2.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent in pixels.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent in pixels.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Center returns the box center in pixel coordinates.
func (b BoundingBox) Center() (x, y float64) {
	return float64(b.X1+b.X2) / 2, float64(b.Y1+b.Y2) / 2
}

// Valid reports whether the box has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is one object reported by the detector for a single frame.
type Detection struct {
	Class      Class       `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
}

// Distance is a metric range estimate that may be unknown.
type Distance struct {
	Meters float64
	Known  bool
}

// UnknownDistance is returned when a range cannot be estimated.
var UnknownDistance = Distance{}

// KnownDistance wraps a metric estimate. Negative inputs clamp to zero.
func KnownDistance(m float64) Distance {
	if m < 0 {
		m = 0
	}
	return Distance{Meters: m, Known: true}
}

func (d Distance) String() string {
	if !d.Known {
		return "unknown"
	}
	return fmt.Sprintf("%.1fm", d.Meters)
}

// Ptr returns the metres as a pointer, nil when unknown.
func (d Distance) Ptr() *float64 {
	if !d.Known {
		return nil
	}
	m := d.Meters
	return &m
}

// MarshalJSON encodes an unknown distance as null and a known one as metres.
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.Known {
		return []byte("null"), nil
	}
	return json.Marshal(d.Meters)
}

func (d *Distance) UnmarshalJSON(b []byte) error {
	var m *float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if m == nil {
		*d = UnknownDistance
		return nil
	}
	*d = KnownDistance(*m)
	return nil
}

// ProcessedDetection is a Detection with its estimated distance attached.
type ProcessedDetection struct {
	Detection
	Distance Distance `json:"distance"`
}
