// Package cvdraw draws render overlays onto frames with OpenCV and keeps the
// latest annotated JPEG.
package cvdraw

import (
	"fmt"
	"image"
	"log"

	"gocv.io/x/gocv"

	"github.com/linh0526/canh-bao-va-cham/internal/capture"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/pipeline"
	"github.com/linh0526/canh-bao-va-cham/internal/render"
)

const (
	font          = gocv.FontHersheySimplex
	labelScale    = 0.6
	statusScale   = 0.6
	textThickness = 2
	panelAlpha    = 0.7
	panelWidth    = 350
	lineHeight    = 25
)

// Draw paints ov onto img in place.
func Draw(img *gocv.Mat, ov render.Overlay) {
	if ov.Lane != nil {
		h := img.Rows()
		gocv.Line(img, image.Pt(ov.Lane.Left, 0), image.Pt(ov.Lane.Left, h), render.ColorLane, 2)
		gocv.Line(img, image.Pt(ov.Lane.Right, 0), image.Pt(ov.Lane.Right, h), render.ColorLane, 2)
		gocv.PutText(img, "Lane ROI", image.Pt(ov.Lane.Left+10, 30), font, 0.7, render.ColorLane, textThickness)
	}

	for _, b := range ov.Boxes {
		gocv.Rectangle(img, b.Rect, b.Color, b.Thickness)
		size := gocv.GetTextSize(b.Label, font, labelScale, textThickness)
		bg := image.Rect(b.Rect.Min.X, b.Rect.Min.Y-size.Y-10, b.Rect.Min.X+size.X, b.Rect.Min.Y)
		gocv.Rectangle(img, bg, b.Color, -1)
		gocv.PutText(img, b.Label, image.Pt(b.Rect.Min.X, b.Rect.Min.Y-5), font, labelScale, render.ColorLabelText, textThickness)
	}

	drawPanel(img, ov.Status)
}

func drawPanel(img *gocv.Mat, lines []render.Line) {
	if len(lines) == 0 {
		return
	}
	panel := image.Rect(10, 10, panelWidth, 20+lineHeight*len(lines))
	panel = panel.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if panel.Empty() {
		return
	}

	roi := img.Region(panel)
	black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), roi.Rows(), roi.Cols(), roi.Type())
	gocv.AddWeighted(black, panelAlpha, roi, 1-panelAlpha, 0, &roi)
	black.Close()
	roi.Close()

	y := 30
	for _, l := range lines {
		gocv.PutText(img, l.Text, image.Pt(20, y), font, statusScale, l.Color, textThickness)
		y += lineHeight
	}
}

// Sink is a pipeline.FrameSink that annotates each processed frame and
// stores it as JPEG in a render.Snapshot.
type Sink struct {
	Lane     perception.LaneFilter
	Snapshot *render.Snapshot
	Quality  int

	fps render.FPSMeter
}

// NewSink returns a Sink drawing lane on every frame.
func NewSink(lane perception.LaneFilter) *Sink {
	return &Sink{Lane: lane, Snapshot: &render.Snapshot{}, Quality: 80}
}

// FPS returns the annotated frame rate.
func (s *Sink) FPS() float64 { return s.fps.FPS() }

// OnFrame implements pipeline.FrameSink.
func (s *Sink) OnFrame(f capture.Frame, res *pipeline.FrameResult) {
	fps := s.fps.Tick(f.Time)
	if f.Empty() {
		return
	}
	data, err := s.annotate(f, res, fps)
	if err != nil {
		log.Printf("cvdraw: %v", err)
		return
	}
	s.Snapshot.Store(data, f.Seq, f.Time)
}

func (s *Sink) annotate(f capture.Frame, res *pipeline.FrameResult, fps float64) ([]byte, error) {
	src, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return nil, fmt.Errorf("wrap frame %d: %w", f.Seq, err)
	}
	defer src.Close()
	img := src.Clone()
	defer img.Close()

	Draw(&img, render.Build(res, s.Lane, fps))

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, s.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
