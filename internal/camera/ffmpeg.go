package camera

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

const (
	bytesPerPixel = 4

	// maxFailedReads is how many consecutive short/failed reads we tolerate
	// before tearing the device down and reopening it.
	maxFailedReads = 30

	// stderrTailCap bounds retained ffmpeg stderr. ffmpeg chatters progress
	// lines for as long as it runs; only the most recent output matters for
	// diagnosing a failure.
	stderrTailCap = 4 << 10
)

// tailBuffer is an io.Writer that retains only the last limit bytes written.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer { return &tailBuffer{limit: limit} }

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// FFmpegSource streams raw RGBA frames from a camera device through an
// ffmpeg child process (v4l2 on Linux, dshow on Windows). The device is
// opened at the full capture resolution; callers downscale for detection.
type FFmpegSource struct {
	device string
	width  int
	height int
	fps    int

	// cmdMu guards cmd: the read loop replaces it on reopen while Stop may
	// kill it from another goroutine.
	cmdMu sync.Mutex
	cmd   *exec.Cmd

	frames chan *Frame
	errs   chan error
	stop   chan struct{}

	seq      uint64
	stopOnce sync.Once
}

// NewFFmpegSource creates a source for the given device path or name.
func NewFFmpegSource(device string, width, height, fps int) *FFmpegSource {
	return &FFmpegSource{
		device: device,
		width:  width,
		height: height,
		fps:    fps,
		frames: make(chan *Frame, 1),
		errs:   make(chan error, 1),
		stop:   make(chan struct{}),
	}
}

// Start opens the camera and begins the read loop.
func (s *FFmpegSource) Start() error {
	stdout, err := s.open()
	if err != nil {
		return fmt.Errorf("opening camera %s: %w", s.device, err)
	}
	go s.readLoop(stdout)
	return nil
}

func (s *FFmpegSource) open() (io.ReadCloser, error) {
	var args []string
	if runtime.GOOS == "windows" {
		args = []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", s.device)}
	} else {
		args = []string{"-f", "v4l2", "-i", s.device}
	}
	args = append(args,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", s.fps, s.width, s.height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)

	cmd := exec.Command("ffmpeg", args...)

	stderr := newTailBuffer(stderrTailCap)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w (%s)", err, stderr.String())
	}

	s.cmdMu.Lock()
	s.cmd = cmd
	s.cmdMu.Unlock()
	return stdout, nil
}

func (s *FFmpegSource) readLoop(stdout io.ReadCloser) {
	defer close(s.frames)
	defer s.killCmd()

	frameSize := s.width * s.height * bytesPerPixel
	buf := make([]byte, frameSize)
	failed := 0

	for {
		select {
		case <-s.stop:
			stdout.Close()
			return
		default:
		}

		if _, err := io.ReadFull(stdout, buf); err != nil {
			select {
			case <-s.stop:
				stdout.Close()
				return
			default:
			}

			failed++
			slog.Warn("camera frame read failed", "device", s.device, "failed_reads", failed, "error", err)
			if failed < maxFailedReads {
				continue
			}

			// Device is gone. Reopen once; give up if that also fails.
			slog.Error("too many failed reads, reopening camera", "device", s.device)
			stdout.Close()
			s.killCmd()

			reopened, rerr := s.open()
			if rerr != nil {
				s.errs <- fmt.Errorf("reopening camera %s: %w", s.device, rerr)
				return
			}
			stdout = reopened
			failed = 0
			continue
		}
		failed = 0

		s.seq++
		frame := &Frame{
			Pixels:     rgbaFromRaw(buf, s.width, s.height),
			Res:        ResHigh,
			Seq:        s.seq,
			CapturedAt: time.Now(),
		}

		// Never block the device read on a slow consumer; the detection
		// loop keeps pace, and a dropped live frame costs nothing.
		select {
		case s.frames <- frame:
		case <-s.stop:
			stdout.Close()
			return
		default:
		}
	}
}

func (s *FFmpegSource) killCmd() {
	s.cmdMu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.cmdMu.Unlock()

	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
		cmd.Wait()
	}
}

// Frames returns the live frame stream.
func (s *FFmpegSource) Frames() <-chan *Frame { return s.frames }

// Errors reports permanent device failure.
func (s *FFmpegSource) Errors() <-chan error { return s.errs }

// Stop releases the camera. Safe to call more than once.
func (s *FFmpegSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.killCmd()
	})
}
