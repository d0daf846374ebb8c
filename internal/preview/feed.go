// Package preview is the operator surface: a live MJPEG view of the camera
// plus pipeline status, served over HTTP.
package preview

import (
	"errors"
	"sync/atomic"

	"github.com/ai4fin/invoice-scanner/internal/camera"
)

// Feed holds the most recent frame for preview clients. The detection loop
// publishes with a single atomic store, so a slow or absent viewer can
// never block the camera.
type Feed struct {
	latest atomic.Pointer[camera.Frame]
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Publish replaces the current frame.
func (f *Feed) Publish(frame *camera.Frame) {
	f.latest.Store(frame)
}

// Current returns the most recently published frame, or nil before the
// first frame arrives.
func (f *Feed) Current() *camera.Frame {
	return f.latest.Load()
}

// Grab implements the capture scheduler's high-res readback against the
// live feed. It fails when the camera has not delivered a frame yet.
func (f *Feed) Grab() (*camera.Frame, error) {
	frame := f.latest.Load()
	if frame == nil {
		return nil, errors.New("no frame available from camera")
	}
	return frame, nil
}
