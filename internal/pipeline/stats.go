package pipeline

import (
	"sync/atomic"
	"time"
)

// Stats counts pipeline activity. All counters are safe for concurrent
// update from the detection loop and the workers.
type Stats struct {
	framesSeen        atomic.Uint64
	capturesAccepted  atomic.Uint64
	capturesDropped   atomic.Uint64
	extractionsOK     atomic.Uint64
	extractionsFailed atomic.Uint64

	startedAt time.Time
}

// NewStats starts the uptime clock.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) FrameSeen()        { s.framesSeen.Add(1) }
func (s *Stats) CaptureAccepted()  { s.capturesAccepted.Add(1) }
func (s *Stats) CaptureDropped()   { s.capturesDropped.Add(1) }
func (s *Stats) ExtractionOK()     { s.extractionsOK.Add(1) }
func (s *Stats) ExtractionFailed() { s.extractionsFailed.Add(1) }

// Snapshot is a point-in-time copy of the counters for logging and the
// status endpoint.
type Snapshot struct {
	FramesSeen        uint64  `json:"frames_seen"`
	CapturesAccepted  uint64  `json:"captures_accepted"`
	CapturesDropped   uint64  `json:"captures_dropped"`
	ExtractionsOK     uint64  `json:"extractions_ok"`
	ExtractionsFailed uint64  `json:"extractions_failed"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Snapshot reads all counters at once.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		FramesSeen:        s.framesSeen.Load(),
		CapturesAccepted:  s.capturesAccepted.Load(),
		CapturesDropped:   s.capturesDropped.Load(),
		ExtractionsOK:     s.extractionsOK.Load(),
		ExtractionsFailed: s.extractionsFailed.Load(),
		UptimeSeconds:     time.Since(s.startedAt).Seconds(),
	}
}
