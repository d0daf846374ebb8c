// Package capture turns detector trigger edges into recognition jobs.
//
// The scheduler is the rate limiter between "a document just settled" and
// "we committed to recognizing it": it enforces a hard floor between
// accepted captures, grabs the high-resolution still at trigger time, and
// persists it before the job enters the queue.
package capture

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/ai4fin/invoice-scanner/internal/camera"
)

// jpegQuality balances still fidelity against shot directory growth.
const jpegQuality = 92

// Phase describes the scheduler's position in the capture cycle.
type Phase string

const (
	// PhaseArmed means the scheduler will accept the next trigger edge.
	PhaseArmed Phase = "armed"
	// PhaseCooldown means a capture was accepted recently and edges are
	// suppressed until the interval elapses.
	PhaseCooldown Phase = "cooldown"
	// PhaseShuttingDown means the scheduler no longer accepts triggers.
	PhaseShuttingDown Phase = "shutting_down"
)

// FrameGrabber supplies the current high-resolution frame at trigger time.
type FrameGrabber interface {
	Grab() (*camera.Frame, error)
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time { return time.Now() }

// Scheduler allocates capture jobs from trigger edges. It is owned by the
// single detection loop goroutine.
type Scheduler struct {
	interval time.Duration
	grabber  FrameGrabber
	shots    *ShotStore
	clock    TimeSource

	session     string
	nextID      uint64
	lastCapture time.Time
	shuttingDn  bool
}

// NewScheduler creates a scheduler. session tags shot filenames so stills
// from different runs never collide; firstID seeds the job id sequence
// (normally one past the last id already in the result table).
func NewScheduler(interval time.Duration, grabber FrameGrabber, shots *ShotStore, session string, firstID uint64) *Scheduler {
	return &Scheduler{
		interval: interval,
		grabber:  grabber,
		shots:    shots,
		clock:    defaultTimeSource{},
		session:  session,
		nextID:   firstID,
	}
}

// WithClock substitutes the time source, for tests.
func (s *Scheduler) WithClock(clock TimeSource) *Scheduler {
	s.clock = clock
	return s
}

// OnTrigger consumes one detector observation. When ready is true and the
// minimum inter-capture interval has elapsed, it grabs the current
// high-resolution frame, persists the still, and returns a new Job;
// otherwise it returns nil. The last-capture timestamp advances only when a
// job is actually produced, so a failed grab may retry on the very next
// stable edge.
func (s *Scheduler) OnTrigger(ready bool, now time.Time) *Job {
	if !ready || s.shuttingDn {
		return nil
	}

	if !s.lastCapture.IsZero() && now.Sub(s.lastCapture) < s.interval {
		slog.Info("trigger suppressed by capture interval",
			"since_last", now.Sub(s.lastCapture),
			"interval", s.interval,
		)
		return nil
	}

	frame, err := s.grabber.Grab()
	if err != nil {
		slog.Error("high-res grab failed, discarding trigger", "error", err)
		return nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Pixels, &jpeg.Options{Quality: jpegQuality}); err != nil {
		slog.Error("encoding still failed, discarding trigger", "error", err)
		return nil
	}

	id := s.nextID
	filename := fmt.Sprintf("shot_%s_%06d_%d.jpg", s.session, id, now.UnixMilli())
	path, err := s.shots.Save(filename, buf.Bytes())
	if err != nil {
		slog.Error("persisting still failed, discarding trigger", "job_id", id, "error", err)
		return nil
	}

	s.nextID++
	s.lastCapture = now

	slog.Info("capture accepted", "job_id", id, "shot", path)
	return &Job{
		ID:          id,
		Image:       buf.Bytes(),
		ContentType: "image/jpeg",
		CapturedAt:  now,
		ShotPath:    path,
	}
}

// Shutdown stops the scheduler from accepting further triggers.
func (s *Scheduler) Shutdown() { s.shuttingDn = true }

// Phase reports the scheduler's position in the capture cycle.
func (s *Scheduler) Phase() Phase {
	switch {
	case s.shuttingDn:
		return PhaseShuttingDown
	case !s.lastCapture.IsZero() && s.clock.Now().Sub(s.lastCapture) < s.interval:
		return PhaseCooldown
	default:
		return PhaseArmed
	}
}
