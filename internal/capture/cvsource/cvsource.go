// Package cvsource reads frames from camera devices and video files with
// OpenCV.
package cvsource

import (
	"context"
	"fmt"
	"log"

	"gocv.io/x/gocv"

	"github.com/linh0526/canh-bao-va-cham/internal/capture"
	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
)

// Camera capture defaults.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultFPS    = 30
	fallbackFPS   = 30
)

// DeviceConfig selects and configures a live camera.
type DeviceConfig struct {
	Index  int
	Width  int
	Height int
	FPS    float64
}

// FileConfig selects a video file.
type FileConfig struct {
	Path string
	Loop bool // restart at the end instead of closing
}

// Reader wraps a gocv.VideoCapture as a capture.Reader.
type Reader struct {
	vc    *gocv.VideoCapture
	img   gocv.Mat
	clock timeutil.Clock
	pacer *capture.Pacer
	file  bool
	loop  bool
	name  string
	seq   uint64
}

// OpenDevice opens a camera. Devices are not paced.
func OpenDevice(cfg DeviceConfig, clock timeutil.Clock) (*Reader, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.Index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device not available", cfg.Index)
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, cfg.FPS)

	return newReader(vc, fmt.Sprintf("camera %d", cfg.Index), false, false, 0, clock), nil
}

// OpenFile opens a video file, paced to the file's native frame rate.
func OpenFile(cfg FileConfig, clock timeutil.Clock) (*Reader, error) {
	vc, err := gocv.VideoCaptureFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", cfg.Path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open video %s: file not readable", cfg.Path)
	}
	fps := vc.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = fallbackFPS
	}
	log.Printf("opened video %s at %.1f fps (loop=%v)", cfg.Path, fps, cfg.Loop)
	return newReader(vc, cfg.Path, true, cfg.Loop, fps, clock), nil
}

func newReader(vc *gocv.VideoCapture, name string, file, loop bool, fps float64, clock timeutil.Clock) *Reader {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Reader{
		vc:    vc,
		img:   gocv.NewMat(),
		clock: clock,
		pacer: capture.NewPacer(fps, clock),
		file:  file,
		loop:  loop,
		name:  name,
	}
}

// Read implements capture.Reader. Transient read failures are retried
// after capture.RetryDelay; a file at its end either rewinds or returns
// capture.ErrSourceClosed.
func (r *Reader) Read(ctx context.Context) (capture.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return capture.Frame{}, err
		}
		if r.file {
			r.pacer.Wait()
		}
		if r.vc.Read(&r.img) && !r.img.Empty() {
			return r.frame()
		}

		if r.file && r.atEnd() {
			if !r.loop {
				return capture.Frame{}, capture.ErrSourceClosed
			}
			r.vc.Set(gocv.VideoCapturePosFrames, 0)
			r.pacer.Reset()
			continue
		}
		r.clock.Sleep(capture.RetryDelay)
	}
}

func (r *Reader) atEnd() bool {
	total := r.vc.Get(gocv.VideoCaptureFrameCount)
	pos := r.vc.Get(gocv.VideoCapturePosFrames)
	return pos >= total-1
}

func (r *Reader) frame() (capture.Frame, error) {
	if r.img.Type() != gocv.MatTypeCV8UC3 {
		converted := gocv.NewMat()
		defer converted.Close()
		gocv.CvtColor(r.img, &converted, gocv.ColorGrayToBGR)
		converted.CopyTo(&r.img)
	}
	r.seq++
	return capture.Frame{
		Seq:    r.seq,
		Time:   r.clock.Now(),
		Width:  r.img.Cols(),
		Height: r.img.Rows(),
		Data:   r.img.ToBytes(),
	}, nil
}

// Close releases the capture handle.
func (r *Reader) Close() error {
	r.img.Close()
	return r.vc.Close()
}

func (r *Reader) String() string { return r.name }
