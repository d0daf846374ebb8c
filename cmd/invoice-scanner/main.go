package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/ai4fin/invoice-scanner/internal/camera"
	"github.com/ai4fin/invoice-scanner/internal/capture"
	"github.com/ai4fin/invoice-scanner/internal/config"
	"github.com/ai4fin/invoice-scanner/internal/detection"
	"github.com/ai4fin/invoice-scanner/internal/extraction"
	"github.com/ai4fin/invoice-scanner/internal/pipeline"
	"github.com/ai4fin/invoice-scanner/internal/preview"
	"github.com/ai4fin/invoice-scanner/internal/results"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("invoice-scanner")
	var (
		device       = fs.StringLong("device", "/dev/video0", "Camera device path (Linux) or name (Windows)")
		highWidth    = fs.IntLong("width", 1920, "Capture width for stills")
		highHeight   = fs.IntLong("height", 1080, "Capture height for stills")
		detectWidth  = fs.IntLong("detect-width", 320, "Downscaled width for motion analysis")
		detectHeight = fs.IntLong("detect-height", 240, "Downscaled height for motion analysis")
		fps          = fs.IntLong("fps", 15, "Camera frame rate")

		motionThreshold = fs.IntLong("motion-threshold", 1500, "Moving-pixel count at or below which a frame is stable")
		stableFrames    = fs.IntLong("stable-frames", 15, "Consecutive stable frames before a capture triggers")
		captureInterval = fs.DurationLong("capture-interval", 3*time.Second, "Minimum time between accepted captures")

		queueSize          = fs.IntLong("queue-size", 8, "Pending recognition job capacity")
		workers            = fs.IntLong("workers", 2, "Concurrent recognition workers")
		recognitionTimeout = fs.DurationLong("recognition-timeout", 2*time.Minute, "Upper bound on one model call")

		extractorType = fs.StringLong("extractor", "ollama", "Extractor backend: 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")

		shotsDir = fs.StringLong("shots", "./shots", "Directory for captured stills")
		dbPath   = fs.StringLong("db", "invoice-scanner.db", "Result database file path")
		xlsxPath = fs.StringLong("xlsx", "invoices.xlsx", "Result workbook file path")

		previewAddr = fs.StringLong("preview", ":8080", "Preview HTTP listen address")
		authUser    = fs.StringLong("auth-user", "", "Preview basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Preview basic auth password (optional)")

		logLevel    = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_SCANNER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	setupLogging(*logLevel)

	cfg := config.Config{
		Device:             *device,
		HighWidth:          *highWidth,
		HighHeight:         *highHeight,
		DetectWidth:        *detectWidth,
		DetectHeight:       *detectHeight,
		FPS:                *fps,
		MotionThreshold:    *motionThreshold,
		StableFrames:       *stableFrames,
		CaptureInterval:    *captureInterval,
		ShotsDir:           *shotsDir,
		QueueSize:          *queueSize,
		Workers:            *workers,
		RecognitionTimeout: *recognitionTimeout,
		Extractor:          *extractorType,
		GeminiKey:          *geminiKey,
		GeminiModel:        *geminiModel,
		OllamaURL:          *ollamaURL,
		OllamaModel:        *ollamaModel,
		DBPath:             *dbPath,
		XLSXPath:           *xlsxPath,
		PreviewAddr:        *previewAddr,
		AuthUser:           *authUser,
		AuthPass:           *authPass,
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

// run builds the pipeline in dependency order and tears it down in reverse.
// Any initialization failure returns before a partial pipeline can start.
func run(cfg config.Config) error {
	slog.Info("invoice-scanner starting", "version", version, "device", cfg.Device)

	store, err := results.NewBoltStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing result database: %w", err)
	}
	defer store.Close()

	sink := results.NewTee(store, results.NewXLSXSink(cfg.XLSXPath))

	extractor, err := newExtractor(cfg)
	if err != nil {
		return fmt.Errorf("initializing extractor: %w", err)
	}
	defer extractor.Close()

	shots, err := capture.NewShotStore(cfg.ShotsDir)
	if err != nil {
		return fmt.Errorf("initializing shot store: %w", err)
	}

	lastID, err := store.LastJobID()
	if err != nil {
		return fmt.Errorf("reading last job id: %w", err)
	}

	src := camera.NewFFmpegSource(cfg.Device, cfg.HighWidth, cfg.HighHeight, cfg.FPS)
	if err := src.Start(); err != nil {
		return err
	}
	defer src.Stop()

	session := uuid.New().String()[:8]
	stats := pipeline.NewStats()
	feed := preview.NewFeed()
	detector := detection.NewStabilityDetector(detection.Config{
		MotionThreshold: cfg.MotionThreshold,
		StableFrames:    cfg.StableFrames,
		WarmupFrames:    detection.DefaultConfig().WarmupFrames,
		Alpha:           detection.DefaultConfig().Alpha,
		PixelDelta:      detection.DefaultConfig().PixelDelta,
	})
	scheduler := capture.NewScheduler(cfg.CaptureInterval, feed, shots, session, lastID+1)
	queue := pipeline.NewQueue(cfg.QueueSize)

	pool := pipeline.NewPool(queue, extractor, sink, stats, cfg.Workers, cfg.RecognitionTimeout)
	pool.Start()

	server := preview.NewServer(feed, stats, func() (string, string, int) {
		return string(detector.State()), string(scheduler.Phase()), queue.Len()
	}, store, preview.BasicAuth{Username: cfg.AuthUser, Password: cfg.AuthPass})
	go func() {
		if err := server.Start(cfg.PreviewAddr); err != nil {
			slog.Error("Preview server error", "error", err)
		}
	}()
	slog.Info("preview available", "address", cfg.PreviewAddr)

	shutdown := make(chan struct{})
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- captureLoop(src, detector, scheduler, queue, feed, stats, cfg, shutdown)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var loopErr error
	select {
	case sig := <-sigChan:
		slog.Info("Shutting down on signal", "signal", sig.String())
		close(shutdown)
		loopErr = <-loopDone
	case loopErr = <-loopDone:
		slog.Info("Capture loop ended, shutting down")
	}

	scheduler.Shutdown()
	src.Stop()

	// Pending jobs are abandoned, never silently retried; in-flight
	// recognitions run to completion.
	if abandoned := queue.Close(); abandoned > 0 {
		slog.Warn("abandoning queued jobs on shutdown", "count", abandoned)
	}
	slog.Info("Waiting for in-flight recognition to finish")
	pool.Wait()

	snap := stats.Snapshot()
	slog.Info("Final stats",
		"frames_seen", snap.FramesSeen,
		"captures_accepted", snap.CapturesAccepted,
		"captures_dropped", snap.CapturesDropped,
		"extractions_ok", snap.ExtractionsOK,
		"extractions_failed", snap.ExtractionsFailed,
		"uptime_seconds", fmt.Sprintf("%.1f", snap.UptimeSeconds),
	)
	return loopErr
}

func newExtractor(cfg config.Config) (extraction.Extractor, error) {
	switch cfg.Extractor {
	case "gemini":
		apiKey := cfg.GeminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Using Gemini extractor", "model", cfg.GeminiModel)
		return extraction.NewGemini(apiKey, cfg.GeminiModel)
	case "ollama":
		slog.Info("Using Ollama extractor", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return extraction.NewOllama(cfg.OllamaURL, cfg.OllamaModel)
	default:
		return nil, fmt.Errorf("unknown extractor type %q", cfg.Extractor)
	}
}

// captureLoop is the single camera-read-and-detect thread of control. It
// suspends only on the camera read; every hand-off out of it (preview
// publish, enqueue) is non-blocking.
func captureLoop(
	src camera.Source,
	detector *detection.StabilityDetector,
	scheduler *capture.Scheduler,
	queue *pipeline.Queue,
	feed *preview.Feed,
	stats *pipeline.Stats,
	cfg config.Config,
	shutdown <-chan struct{},
) error {
	for {
		select {
		case <-shutdown:
			return nil
		case err := <-src.Errors():
			return fmt.Errorf("camera source failed: %w", err)
		case frame, ok := <-src.Frames():
			if !ok {
				return nil
			}
			stats.FrameSeen()
			feed.Publish(frame)

			low := camera.Downscale(frame, cfg.DetectWidth, cfg.DetectHeight)
			ready := detector.Observe(low)

			job := scheduler.OnTrigger(ready, frame.CapturedAt)
			if job == nil {
				continue
			}
			if queue.Enqueue(job) {
				stats.CaptureAccepted()
			} else {
				// Backpressure is visible, never blocking: the edge is
				// consumed and this document is lost until it is removed
				// and re-placed.
				stats.CaptureDropped()
				slog.Warn("recognition queue full, capture dropped",
					"job_id", job.ID,
					"queue_depth", queue.Len(),
				)
			}
		}
	}
}
