package capture

import "time"

// Job is one unit of pending recognition work: a captured high-resolution
// still plus its provenance. Jobs are immutable after creation and consumed
// exactly once by exactly one worker.
type Job struct {
	// ID is strictly increasing across the life of the result table, so a
	// result row can always be tied back to its capture.
	ID uint64

	// Image is the JPEG-encoded still, the same bytes persisted to the
	// shots directory.
	Image       []byte
	ContentType string

	CapturedAt time.Time
	ShotPath   string
}
