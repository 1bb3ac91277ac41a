package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/alertlog"
	"github.com/linh0526/canh-bao-va-cham/internal/api"
	"github.com/linh0526/canh-bao-va-cham/internal/audio"
	"github.com/linh0526/canh-bao-va-cham/internal/audio/device"
	"github.com/linh0526/canh-bao-va-cham/internal/capture"
	"github.com/linh0526/canh-bao-va-cham/internal/capture/cvsource"
	"github.com/linh0526/canh-bao-va-cham/internal/config"
	"github.com/linh0526/canh-bao-va-cham/internal/db"
	"github.com/linh0526/canh-bao-va-cham/internal/detect"
	"github.com/linh0526/canh-bao-va-cham/internal/detect/yolo"
	"github.com/linh0526/canh-bao-va-cham/internal/egospeed"
	"github.com/linh0526/canh-bao-va-cham/internal/monitoring"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
	"github.com/linh0526/canh-bao-va-cham/internal/pipeline"
	"github.com/linh0526/canh-bao-va-cham/internal/render/cvdraw"
	"github.com/linh0526/canh-bao-va-cham/internal/report"
	"github.com/linh0526/canh-bao-va-cham/internal/timeutil"
	"github.com/linh0526/canh-bao-va-cham/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run with a synthetic camera, scripted detections and a simulated speed feed")
	listen     = flag.String("listen", ":8080", "Listen address")
	camera     = flag.Int("camera", 0, "Camera device index (ignored when -video is set)")
	videoPath  = flag.String("video", "", "Video file to read instead of a camera")
	loopVideo  = flag.Bool("loop", false, "Restart the video file at its end")
	modelPath  = flag.String("model", "models/yolov8n.onnx", "YOLOv8 ONNX model")
	soundPath  = flag.String("sound", "", "WAV file for the alert sound (a generated beep when empty)")
	noAudio    = flag.Bool("no-audio", false, "Disable the alert sound")
	noRender   = flag.Bool("no-render", false, "Disable the annotated frame at /api/frame.jpg")
	dbPath     = flag.String("db", "collision_alerts.db", "SQLite alert database (empty disables persistence)")
	configPath = flag.String("config", "", "Collision config JSON (defaults when empty)")
	logDir     = flag.String("log-dir", "logs", "Directory for alert exports")
	speedPort  = flag.String("egospeed-port", "", "Serial port streaming the ego vehicle speed")
	speedBaud  = flag.Int("egospeed-baud", 0, "Baud rate for -egospeed-port (default 115200)")
	units      = flag.String("units", "kph", "Display units for speeds: mps, kph, kmph or mph")
	plotPath   = flag.String("plot", "", "Write a PNG alert timeline for this session on shutdown")
	autoStart  = flag.Bool("autostart", true, "Start the pipeline immediately")
	debugLog   = flag.Bool("debug", false, "Log pipeline diagnostics to stderr")
	traceLog   = flag.Bool("trace", false, "Log every processed frame to stderr")
	showVer    = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String("forewarn"))
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	setupLogging(os.Stderr, *debugLog, *traceLog)
	log.Printf("starting %s", version.String("forewarn"))
	sessionStart := time.Now()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
	}

	alertOpts := alertlog.Options{Capacity: cfg.GetLogCapacity(), Dir: *logDir}
	if database != nil {
		alertOpts.Store = database
	}
	alerts := alertlog.New(alertOpts)
	defer alerts.Close()

	detector, err := openDetector(cfg)
	if err != nil {
		log.Fatalf("failed to load detector: %v", err)
	}
	defer detector.Close()

	player := openPlayer(cfg)
	defer player.Close()

	var wg sync.WaitGroup

	var speed *egospeed.Feed
	switch {
	case *speedPort != "":
		speed, err = egospeed.Open(*speedPort, egospeed.PortOptions{BaudRate: *speedBaud})
		if err != nil {
			log.Fatalf("failed to open speed port: %v", err)
		}
	case *devMode:
		port := egospeed.NewMockPort()
		speed = egospeed.NewFeed(port, nil, 0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			feedDevSpeed(ctx, port)
		}()
	}
	if speed != nil {
		defer speed.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := speed.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("speed feed stopped: %v", err)
			}
			log.Print("speed monitor routine terminated")
		}()
	}

	pcfg := perception.ConfigFromCollision(cfg)
	var sink *cvdraw.Sink
	if !*noRender {
		sink = cvdraw.NewSink(pcfg.Lane)
	}

	open, sourceName := frameSource()
	deps := pipeline.Deps{
		Detector:   detector,
		Open:       open,
		SourceName: sourceName,
		Player:     player,
		AlertLog:   alerts,
	}
	if speed != nil {
		deps.Speed = speed
	}
	if database != nil {
		deps.Runs = database
	}
	if sink != nil {
		deps.Sink = sink
	}
	runner, err := pipeline.NewRunner(pipeline.ConfigFromCollision(cfg), deps)
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	if *autoStart {
		if err := runner.Start(ctx); err != nil {
			log.Fatalf("failed to start pipeline: %v", err)
		}
		log.Printf("pipeline started on %s", sourceName)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		supervise(ctx, runner, time.Second)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		opts := api.Options{
			Runner:      runner,
			Alerts:      alerts,
			Config:      cfg,
			Units:       *units,
			BaseContext: ctx,
		}
		if database != nil {
			opts.History = database
		}
		if sink != nil {
			opts.Frames = sink.Snapshot
		}
		if speed != nil {
			opts.Speed = speed
		}
		mux := api.NewServer(opts).ServeMux()
		if database != nil {
			database.AttachAdminRoutes(mux)
		}
		if speed != nil {
			speed.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("listening on %s", *listen)

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	<-ctx.Done()
	if err := runner.Stop(); err != nil && !errors.Is(err, pipeline.ErrNotRunning) {
		log.Printf("failed to stop pipeline: %v", err)
	}
	if speed != nil {
		speed.Close()
	}
	wg.Wait()
	if err := alerts.Close(); err != nil {
		log.Printf("failed to flush alert store: %v", err)
	}

	if *plotPath != "" {
		if err := writeSessionPlot(*plotPath, database, alerts, sessionStart); err != nil {
			log.Printf("failed to write alert plot: %v", err)
		} else {
			log.Printf("alert timeline written to %s", *plotPath)
		}
	}
	log.Printf("Graceful shutdown complete")
}

// setupLogging routes the ops stream of every package to w and the diag and
// trace streams when enabled.
func setupLogging(w io.Writer, debug, trace bool) {
	var diag, tr io.Writer
	if debug {
		diag = w
	}
	if trace {
		tr = w
	}
	pipeline.SetLogWriters(w, diag, tr)
	capture.SetLogWriters(w, diag, tr)
	egospeed.SetLogWriters(w, diag)
	monitoring.SetWriter(w)
}

func loadConfig(path string) (*config.CollisionConfig, error) {
	if path == "" {
		return config.EmptyCollisionConfig(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded collision config from %s", path)
	return cfg, nil
}

// frameSource returns an opener for the selected source. Each run opens a
// fresh reader.
func frameSource() (pipeline.OpenFunc, string) {
	clock := timeutil.RealClock{}
	switch {
	case *devMode:
		return func() (pipeline.Source, error) {
			r := capture.NewSynthetic(capture.SyntheticConfig{Width: devWidth, Height: devHeight, FPS: 30, Loop: true, Fill: 96}, clock)
			return capture.NewProducer(r, clock), nil
		}, "synthetic"
	case *videoPath != "":
		path, loop := *videoPath, *loopVideo
		return func() (pipeline.Source, error) {
			r, err := cvsource.OpenFile(cvsource.FileConfig{Path: path, Loop: loop}, clock)
			if err != nil {
				return nil, err
			}
			return capture.NewProducer(r, clock), nil
		}, "video:" + path
	default:
		index := *camera
		return func() (pipeline.Source, error) {
			r, err := cvsource.OpenDevice(cvsource.DeviceConfig{Index: index}, clock)
			if err != nil {
				return nil, err
			}
			return capture.NewProducer(r, clock), nil
		}, fmt.Sprintf("camera:%d", index)
	}
}

func openDetector(cfg *config.CollisionConfig) (detect.Detector, error) {
	if *devMode {
		d := detect.NewScripted(devScenario()...)
		d.Loop = true
		return d, nil
	}
	return yolo.New(yolo.Config{
		ModelPath:           *modelPath,
		ConfidenceThreshold: float32(cfg.GetConfidenceThreshold()),
		NMSThreshold:        float32(cfg.GetNMSThreshold()),
	})
}

// openPlayer opens the audio device, falling back to a silent player when
// audio is disabled or unavailable.
func openPlayer(cfg *config.CollisionConfig) audio.Player {
	if *noAudio || *devMode {
		return audio.NewNop()
	}
	clip := audio.Beep(44100)
	if *soundPath != "" {
		c, err := audio.LoadWAVFile(*soundPath)
		if err != nil {
			log.Printf("failed to load alert sound, using beep: %v", err)
		} else {
			clip = c
		}
	}
	p, err := device.New(clip, cfg.GetAlertVolume())
	if err != nil {
		log.Printf("audio device unavailable, alerts will be silent: %v", err)
		return audio.NewNop()
	}
	return p
}

// writeSessionPlot charts the alerts raised since start.
func writeSessionPlot(path string, database *db.DB, alerts *alertlog.Log, start time.Time) error {
	var rows []db.Alert
	if database != nil {
		var err error
		rows, err = database.AlertsBetween(start, time.Now())
		if err != nil {
			return err
		}
	} else {
		for _, rec := range alerts.Recent(alertlog.DefaultCapacity) {
			rows = append(rows, rec.DBAlert())
		}
	}
	title := fmt.Sprintf("Collision alerts %s", start.Format("2006-01-02 15:04"))
	return report.SavePNG(path, report.Group(rows), title)
}
