package camera

import (
	"image"
	"time"
)

// Resolution tags which of the two configured resolutions a frame carries.
type Resolution string

const (
	// ResHigh is the full capture resolution used for stills.
	ResHigh Resolution = "high"
	// ResLow is the downscaled resolution used for motion analysis.
	ResLow Resolution = "low"
)

// Frame is a single timestamped image read from the camera. Frames are
// immutable once produced; components that need a different resolution
// derive a new Frame instead of mutating the pixel buffer.
type Frame struct {
	Pixels     *image.RGBA
	Res        Resolution
	Seq        uint64
	CapturedAt time.Time
}

// Width returns the pixel width of the frame.
func (f *Frame) Width() int {
	return f.Pixels.Rect.Dx()
}

// Height returns the pixel height of the frame.
func (f *Frame) Height() int {
	return f.Pixels.Rect.Dy()
}

// Source delivers a live stream of high-resolution frames from a camera
// device. Implementations own the device handle; callers receive frames
// until Stop is called or the device fails permanently.
type Source interface {
	// Start opens the device and begins streaming. An error here is fatal:
	// no pipeline should be started without a working camera.
	Start() error

	// Frames returns the stream of captured frames. The channel is closed
	// when the source stops.
	Frames() <-chan *Frame

	// Errors reports a permanent source failure (device lost and could not
	// be reopened).
	Errors() <-chan error

	// Stop releases the device and closes the frame channel.
	Stop()
}
