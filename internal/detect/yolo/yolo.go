// Package yolo runs a YOLOv8 ONNX model through the OpenCV DNN module.
package yolo

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/linh0526/canh-bao-va-cham/internal/capture"
	"github.com/linh0526/canh-bao-va-cham/internal/detect"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
)

// Config selects the model and its thresholds.
type Config struct {
	ModelPath           string
	InputSize           int     // square network input, default 640
	ConfidenceThreshold float32 // default 0.5
	NMSThreshold        float32 // default 0.45
}

// padColor matches the grey used when the model was trained.
var padColor = gocv.NewScalar(114, 114, 114, 0)

// Detector is a detect.Detector backed by an OpenCV DNN network.
type Detector struct {
	cfg Config
	net gocv.Net
}

// New loads the ONNX model.
func New(cfg Config) (*Detector, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("yolo: model path is required")
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = detect.DefaultInputSize
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.45
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("yolo: failed to load model %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &Detector{cfg: cfg, net: net}, nil
}

// Detect implements detect.Detector.
func (d *Detector) Detect(f capture.Frame) ([]perception.Detection, error) {
	if f.Empty() {
		return nil, nil
	}
	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return nil, fmt.Errorf("yolo: frame to mat: %w", err)
	}
	defer img.Close()

	lb := detect.NewLetterbox(f.Width, f.Height, d.cfg.InputSize)
	blob := d.blob(img, lb)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("yolo: read output: %w", err)
	}
	sizes := out.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("yolo: unexpected output shape %v", sizes)
	}
	numClasses, numAnchors := sizes[1]-4, sizes[2]

	cands := detect.DecodeYOLOv8(data, numClasses, numAnchors, d.cfg.ConfidenceThreshold, lb)
	if len(cands) == 0 {
		return nil, nil
	}
	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.Box
		scores[i] = c.Score
	}
	keep := gocv.NMSBoxes(boxes, scores, d.cfg.ConfidenceThreshold, d.cfg.NMSThreshold)
	kept := make([]detect.Candidate, 0, len(keep))
	for _, i := range keep {
		kept = append(kept, cands[i])
	}
	return detect.ToDetections(kept), nil
}

// blob letterboxes img into the square network input.
func (d *Detector) blob(img gocv.Mat, lb detect.Letterbox) gocv.Mat {
	canvas := gocv.NewMatWithSizeFromScalar(padColor, lb.Size, lb.Size, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, lb.Content, 0, 0, gocv.InterpolationLinear)

	roi := canvas.Region(image.Rect(lb.PadX, lb.PadY, lb.PadX+lb.Content.X, lb.PadY+lb.Content.Y))
	defer roi.Close()
	resized.CopyTo(&roi)

	return gocv.BlobFromImage(canvas, 1.0/255.0, image.Pt(lb.Size, lb.Size), gocv.NewScalar(0, 0, 0, 0), true, false)
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}
