package detect

import (
	"image"
	"math"

	"github.com/linh0526/canh-bao-va-cham/internal/perception"
)

// YOLOv8 output layout: [1, 4+classes, anchors] with rows cx, cy, w, h
// followed by one score row per class.
const (
	DefaultInputSize  = 640
	DefaultNumClasses = 80
	DefaultNumAnchors = 8400
)

// Letterbox describes how a frame was scaled and padded into the square
// network input.
type Letterbox struct {
	Size        int         // network input side in pixels
	Scale       float64     // frame pixels to input pixels
	PadX, PadY  int         // padding added on the left and top
	Content     image.Point // scaled frame size inside the square
	FrameWidth  int
	FrameHeight int
}

// NewLetterbox fits a frame into a size x size square, preserving aspect
// ratio and centering the content.
func NewLetterbox(frameWidth, frameHeight, size int) Letterbox {
	scale := math.Min(float64(size)/float64(frameWidth), float64(size)/float64(frameHeight))
	w := int(math.Round(float64(frameWidth) * scale))
	h := int(math.Round(float64(frameHeight) * scale))
	return Letterbox{
		Size:        size,
		Scale:       scale,
		PadX:        (size - w) / 2,
		PadY:        (size - h) / 2,
		Content:     image.Pt(w, h),
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
	}
}

// ToFrame maps a center/size box in network input pixels back to a frame
// rectangle clamped to the frame bounds.
func (l Letterbox) ToFrame(cx, cy, w, h float32) image.Rectangle {
	x1 := (float64(cx-w/2) - float64(l.PadX)) / l.Scale
	y1 := (float64(cy-h/2) - float64(l.PadY)) / l.Scale
	x2 := (float64(cx+w/2) - float64(l.PadX)) / l.Scale
	y2 := (float64(cy+h/2) - float64(l.PadY)) / l.Scale
	r := image.Rect(int(math.Round(x1)), int(math.Round(y1)), int(math.Round(x2)), int(math.Round(y2)))
	return r.Intersect(image.Rect(0, 0, l.FrameWidth, l.FrameHeight))
}

// Candidate is one decoded box before non-maximum suppression.
type Candidate struct {
	ClassID int
	Score   float32
	Box     image.Rectangle // frame pixels
}

// DecodeYOLOv8 reads the raw output tensor and returns boxes whose best
// class is allow-listed and scores at least minScore.
func DecodeYOLOv8(out []float32, numClasses, numAnchors int, minScore float32, lb Letterbox) []Candidate {
	if len(out) < (4+numClasses)*numAnchors {
		return nil
	}
	at := func(row, anchor int) float32 { return out[row*numAnchors+anchor] }

	var cands []Candidate
	for a := 0; a < numAnchors; a++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, a); s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < minScore {
			continue
		}
		if _, ok := cocoClasses[best]; !ok {
			continue
		}
		box := lb.ToFrame(at(0, a), at(1, a), at(2, a), at(3, a))
		if box.Empty() {
			continue
		}
		cands = append(cands, Candidate{ClassID: best, Score: bestScore, Box: box})
	}
	return cands
}

// ToDetections converts candidates to detections, dropping any class off
// the allow-list.
func ToDetections(cands []Candidate) []perception.Detection {
	out := make([]perception.Detection, 0, len(cands))
	for _, c := range cands {
		class, ok := COCOClass(c.ClassID)
		if !ok {
			continue
		}
		out = append(out, perception.Detection{
			Class:      class,
			Confidence: float64(c.Score),
			Box: perception.BoundingBox{
				X1: c.Box.Min.X, Y1: c.Box.Min.Y,
				X2: c.Box.Max.X, Y2: c.Box.Max.Y,
			},
		})
	}
	return out
}
