// Package config defines the immutable options bundle shared by every
// component. It is filled once from flags/environment in main and passed by
// value into constructors; nothing reads ambient global state after startup.
package config

import (
	"fmt"
	"time"
)

// Config holds all pipeline tuning. Values are validated before any
// component starts; an invalid configuration aborts the process.
type Config struct {
	// Camera
	Device       string
	HighWidth    int
	HighHeight   int
	DetectWidth  int
	DetectHeight int
	FPS          int

	// Detection
	MotionThreshold int
	StableFrames    int

	// Capture
	CaptureInterval time.Duration
	ShotsDir        string

	// Recognition pipeline
	QueueSize          int
	Workers            int
	RecognitionTimeout time.Duration

	// Extractor backend
	Extractor   string // "gemini" or "ollama"
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string

	// Results
	DBPath   string
	XLSXPath string

	// Preview surface
	PreviewAddr string
	AuthUser    string
	AuthPass    string
}

// Validate rejects configurations no pipeline should start with.
func (c Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("camera device is required")
	}
	if c.HighWidth <= 0 || c.HighHeight <= 0 {
		return fmt.Errorf("capture resolution must be positive, got %dx%d", c.HighWidth, c.HighHeight)
	}
	if c.DetectWidth <= 0 || c.DetectHeight <= 0 {
		return fmt.Errorf("detect resolution must be positive, got %dx%d", c.DetectWidth, c.DetectHeight)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.MotionThreshold < 0 {
		return fmt.Errorf("motion threshold must not be negative, got %d", c.MotionThreshold)
	}
	if c.StableFrames < 1 {
		return fmt.Errorf("stable frames trigger must be at least 1, got %d", c.StableFrames)
	}
	if c.CaptureInterval <= 0 {
		return fmt.Errorf("capture interval must be positive, got %s", c.CaptureInterval)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RecognitionTimeout <= 0 {
		return fmt.Errorf("recognition timeout must be positive, got %s", c.RecognitionTimeout)
	}
	switch c.Extractor {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("extractor must be 'gemini' or 'ollama', got %q", c.Extractor)
	}
	if c.ShotsDir == "" {
		return fmt.Errorf("shots directory is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.XLSXPath == "" {
		return fmt.Errorf("xlsx path is required")
	}
	return nil
}
