package perception

// LaneFilter keeps detections inside the central horizontal band presumed
// to be the vehicle's own lane.
type LaneFilter struct {
	Enabled         bool
	LeftMargin      float64 // fraction of frame width excluded on the left
	RightMargin     float64 // fraction of frame width excluded on the right
	OverlapFraction float64 // share of box width that must overlap the band
}

// Band returns the pixel bounds of the lane band for a frame width.
func (f LaneFilter) Band(frameWidth int) (left, right float64) {
	w := float64(frameWidth)
	return w * f.LeftMargin, w * (1 - f.RightMargin)
}

// InLane reports whether box belongs to the lane ahead. A box whose center
// is outside the band is still accepted when more than OverlapFraction of
// its width lies inside it.
func (f LaneFilter) InLane(box BoundingBox, frameWidth int) bool {
	if !f.Enabled {
		return true
	}
	left, right := f.Band(frameWidth)
	cx, _ := box.Center()
	if cx >= left && cx <= right {
		return true
	}

	x1, x2 := float64(box.X1), float64(box.X2)
	width := x2 - x1
	if width <= 0 {
		return false
	}
	overlap := width - max(0, left-x1) - max(0, x2-right)
	return overlap > width*f.OverlapFraction
}

// Filter returns the detections that pass InLane, preserving order.
func (f LaneFilter) Filter(dets []Detection, frameWidth int) []Detection {
	if !f.Enabled {
		return dets
	}
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if f.InLane(d.Box, frameWidth) {
			out = append(out, d)
		}
	}
	return out
}
