// Package report renders alert timelines: a PNG via gonum/plot for offline
// review and an interactive HTML chart via go-echarts for the debug server.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/db"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
)

// ErrNoAlerts is returned when there is nothing to chart.
var ErrNoAlerts = errors.New("report: no alerts with a known distance")

// levelOrder lists the plotted levels from most to least severe.
var levelOrder = []risk.Level{risk.LevelDanger, risk.LevelWarning, risk.LevelCaution, risk.LevelSafe}

var levelColors = map[risk.Level]color.RGBA{
	risk.LevelDanger:  {220, 20, 20, 255},
	risk.LevelWarning: {230, 190, 0, 255},
	risk.LevelCaution: {255, 140, 0, 255},
	risk.LevelSafe:    {0, 160, 0, 255},
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Point is one alert on the timeline.
type Point struct {
	Time     time.Time
	Distance float64
	TTC      *float64
	Class    string
}

// Series groups points by level, oldest first. Alerts without a distance
// or with an unrecognised level are skipped.
type Series map[risk.Level][]Point

// Len returns the number of points across all levels.
func (s Series) Len() int {
	n := 0
	for _, pts := range s {
		n += len(pts)
	}
	return n
}

// Span returns the earliest and latest point times.
func (s Series) Span() (first, last time.Time) {
	for _, pts := range s {
		for _, p := range pts {
			if first.IsZero() || p.Time.Before(first) {
				first = p.Time
			}
			if p.Time.After(last) {
				last = p.Time
			}
		}
	}
	return first, last
}

// Group builds a Series from stored alerts.
func Group(alerts []db.Alert) Series {
	s := make(Series)
	for _, a := range alerts {
		if a.DistanceM == nil {
			continue
		}
		level, err := risk.ParseLevel(a.Level)
		if err != nil || level == risk.LevelUnknown {
			continue
		}
		s[level] = append(s[level], Point{Time: a.Time, Distance: *a.DistanceM, TTC: a.TTC, Class: a.Class})
	}
	for _, pts := range s {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })
	}
	return s
}
