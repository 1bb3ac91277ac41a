// Package render plans the annotated video overlay: box colors and labels,
// the lane band and the status panel. Drawing onto pixels lives in cvdraw.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/pipeline"
	"github.com/linh0526/canh-bao-va-cham/internal/risk"
)

// Overlay colors.
var (
	ColorSafe    = color.RGBA{0, 255, 0, 255}
	ColorCaution = color.RGBA{255, 165, 0, 255}
	ColorWarning = color.RGBA{255, 255, 0, 255}
	ColorDanger  = color.RGBA{255, 0, 0, 255}
	ColorUnknown = color.RGBA{128, 128, 128, 255}

	ColorLane      = color.RGBA{255, 255, 0, 255}
	ColorLabelText = color.RGBA{255, 255, 255, 255}
)

// LevelColor returns the box color for a risk level.
func LevelColor(l risk.Level) color.RGBA {
	switch l {
	case risk.LevelSafe:
		return ColorSafe
	case risk.LevelCaution:
		return ColorCaution
	case risk.LevelWarning:
		return ColorWarning
	case risk.LevelDanger:
		return ColorDanger
	default:
		return ColorUnknown
	}
}

// Box is one annotated detection.
type Box struct {
	Rect      image.Rectangle
	Color     color.RGBA
	Thickness int
	Label     string
}

// Line is one row of the status panel.
type Line struct {
	Text  string
	Color color.RGBA
}

// Lane is the lane band drawn as two vertical lines.
type Lane struct {
	Left, Right int
}

// Overlay is everything drawn on one frame.
type Overlay struct {
	Lane   *Lane
	Boxes  []Box
	Status []Line
}

// BoxLabel formats the label above a box: distance, TTC, class, confidence.
func BoxLabel(d risk.AssessedDetection) string {
	parts := make([]string, 0, 4)
	if d.Distance.Known {
		parts = append(parts, fmt.Sprintf("%.2fm", d.Distance.Meters))
	}
	if d.Risk.TTC != nil {
		parts = append(parts, fmt.Sprintf("TTC: %.1fs", *d.Risk.TTC))
	}
	parts = append(parts, string(d.Class))
	parts = append(parts, fmt.Sprintf("%.1f%%", d.Confidence*100))
	return strings.Join(parts, " | ")
}

// StatusLines builds the status panel rows. Rows without data are omitted.
func StatusLines(res *pipeline.FrameResult, fps float64) []Line {
	lines := []Line{{Text: fmt.Sprintf("FPS: %.1f", fps), Color: ColorSafe}}
	if res == nil {
		return lines
	}
	if res.AlertCount > 0 {
		lines = append(lines, Line{Text: fmt.Sprintf("Alerts: %d", res.AlertCount), Color: ColorDanger})
	}
	if c := res.Closest; c != nil {
		text := fmt.Sprintf("Closest: %.2fm", c.Distance.Meters)
		if c.Risk.TTC != nil {
			text += fmt.Sprintf(" (TTC: %.1fs)", *c.Risk.TTC)
		}
		lines = append(lines, Line{Text: text, Color: ColorWarning})
	}

	var markers []string
	if res.Alert.VehicleStopped {
		markers = append(markers, "STOPPED")
	}
	if res.Alert.Muted {
		markers = append(markers, "ALERT OFF")
	}
	if len(markers) > 0 {
		lines = append(lines, Line{Text: strings.Join(markers, " | "), Color: ColorCaution})
	}
	return lines
}

// Build plans the overlay for one processed frame.
func Build(res *pipeline.FrameResult, lane perception.LaneFilter, fps float64) Overlay {
	var ov Overlay
	if res == nil {
		ov.Status = StatusLines(nil, fps)
		return ov
	}
	if lane.Enabled && res.Width > 0 {
		left, right := lane.Band(res.Width)
		ov.Lane = &Lane{Left: int(left), Right: int(right)}
	}
	ov.Boxes = make([]Box, 0, len(res.Objects))
	for _, o := range res.Objects {
		thickness := 2
		if o.Risk.Alert {
			thickness = 3
		}
		ov.Boxes = append(ov.Boxes, Box{
			Rect:      image.Rect(o.Box.X1, o.Box.Y1, o.Box.X2, o.Box.Y2),
			Color:     LevelColor(o.Risk.Level),
			Thickness: thickness,
			Label:     BoxLabel(o),
		})
	}
	ov.Status = StatusLines(res, fps)
	return ov
}
