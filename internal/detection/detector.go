// Package detection decides when a document has settled into view.
//
// The detector keeps an exponentially-weighted grayscale background of the
// low-resolution feed and counts pixels that moved against it. A run of
// quiet frames long enough to satisfy StableFrames fires a single trigger
// edge; the edge stays consumed until the scene goes active again (document
// lifted or swapped), so a still document sitting under the camera for
// minutes never re-fires.
package detection

import (
	"github.com/ai4fin/invoice-scanner/internal/camera"
)

// State describes where the detector is in its settle cycle, for the
// operator status surface.
type State string

const (
	// StateWarming means the background model is not primed yet; every
	// frame counts as active.
	StateWarming State = "warming"
	// StateActive means the scene changed on the last frame.
	StateActive State = "active"
	// StateCounting means quiet frames are accumulating toward a trigger.
	StateCounting State = "counting"
	// StateFired means the trigger edge for this stable episode has been
	// consumed; only a return to active can re-arm it.
	StateFired State = "fired"
)

// Config holds detector tuning.
type Config struct {
	// MotionThreshold is the moving-pixel count at or below which a frame
	// is quiet. The comparison is inclusive: a count exactly equal to the
	// threshold is quiet.
	MotionThreshold int

	// StableFrames is how many consecutive quiet frames settle a document.
	StableFrames int

	// WarmupFrames is how many frames feed the background model before any
	// frame may be classified quiet.
	WarmupFrames int

	// Alpha is the background update weight per frame. Zero freezes the
	// background after warmup.
	Alpha float64

	// PixelDelta is the per-pixel luminance difference above which a pixel
	// counts as moving.
	PixelDelta uint8
}

// DefaultConfig returns tuning that works for a fixed overhead camera at
// typical office lighting.
func DefaultConfig() Config {
	return Config{
		MotionThreshold: 1500,
		StableFrames:    15,
		WarmupFrames:    10,
		Alpha:           0.05,
		PixelDelta:      25,
	}
}

// StabilityDetector classifies frames and emits edge triggers. It is owned
// by the single detection loop goroutine and needs no locking.
type StabilityDetector struct {
	cfg Config

	background []float64
	width      int
	height     int

	seen        int
	quietStreak int
	fired       bool
	state       State
}

// NewStabilityDetector creates a detector with the given tuning.
func NewStabilityDetector(cfg Config) *StabilityDetector {
	return &StabilityDetector{cfg: cfg, state: StateWarming}
}

// Observe feeds one low-resolution frame into the detector and reports
// whether a stable-and-new trigger edge fired on this frame. The edge fires
// exactly once, on the frame where the quiet streak first reaches
// StableFrames.
func (d *StabilityDetector) Observe(frame *camera.Frame) bool {
	gray := camera.Grayscale(frame.Pixels)

	// Resolution change (or first frame) resets the background model.
	if d.background == nil || frame.Width() != d.width || frame.Height() != d.height {
		d.reset(frame, gray)
		return false
	}

	moving := d.diffAndUpdate(gray)

	d.seen++
	if d.seen <= d.cfg.WarmupFrames {
		d.state = StateWarming
		return false
	}

	if moving > d.cfg.MotionThreshold {
		d.quietStreak = 0
		d.fired = false
		d.state = StateActive
		return false
	}

	d.quietStreak++
	if d.fired {
		d.state = StateFired
		return false
	}
	if d.quietStreak >= d.cfg.StableFrames {
		d.fired = true
		d.state = StateFired
		return true
	}
	d.state = StateCounting
	return false
}

// State reports the current settle-cycle state.
func (d *StabilityDetector) State() State { return d.state }

// QuietStreak reports the current consecutive-quiet-frame count.
func (d *StabilityDetector) QuietStreak() int { return d.quietStreak }

func (d *StabilityDetector) reset(frame *camera.Frame, gray []uint8) {
	d.width = frame.Width()
	d.height = frame.Height()
	d.background = make([]float64, len(gray))
	for i, v := range gray {
		d.background[i] = float64(v)
	}
	d.seen = 1
	d.quietStreak = 0
	d.fired = false
	d.state = StateWarming
}

// diffAndUpdate counts pixels that moved against the background, then folds
// the frame into the background estimate.
func (d *StabilityDetector) diffAndUpdate(gray []uint8) int {
	moving := 0
	delta := float64(d.cfg.PixelDelta)
	alpha := d.cfg.Alpha

	for i, v := range gray {
		diff := float64(v) - d.background[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > delta {
			moving++
		}
		if alpha > 0 {
			d.background[i] += alpha * (float64(v) - d.background[i])
		}
	}
	return moving
}
