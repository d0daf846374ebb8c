package preview

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ai4fin/invoice-scanner/internal/pipeline"
	"github.com/ai4fin/invoice-scanner/internal/results"
)

// streamInterval paces the MJPEG stream; 10 fps is plenty for positioning a
// document under the camera.
const streamInterval = 100 * time.Millisecond

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Invoice Scanner</title></head>
<body style="margin:0;background:#111;color:#eee;font-family:sans-serif">
<div style="padding:8px">invoice-scanner — <a style="color:#8cf" href="/status">status</a> · <a style="color:#8cf" href="/results">results</a></div>
<img src="/stream" style="max-width:100%">
</body>
</html>`

// BasicAuth holds optional operator credentials.
type BasicAuth struct {
	Username string
	Password string
}

// StatusFunc supplies the non-counter parts of the status payload.
type StatusFunc func() (detectorState string, schedulerPhase string, queueDepth int)

// Server serves the live preview, pipeline status, and recent results.
type Server struct {
	feed   *Feed
	stats  *pipeline.Stats
	status StatusFunc
	store  *results.BoltStore
	auth   BasicAuth
	mux    *http.ServeMux
}

// NewServer wires the preview routes.
func NewServer(feed *Feed, stats *pipeline.Stats, status StatusFunc, store *results.BoltStore, auth BasicAuth) *Server {
	s := &Server{
		feed:   feed,
		stats:  stats,
		status: status,
		store:  store,
		auth:   auth,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("/stream", s.requireAuth(s.handleStream))
	s.mux.HandleFunc("/status", s.requireAuth(s.handleStatus))
	s.mux.HandleFunc("/results", s.requireAuth(s.handleResults))
	return s
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}

// Handler exposes the mux, for tests.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) authenticate(r *http.Request) bool {
	if s.auth.Username == "" && s.auth.Password == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Basic ") {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return false
	}
	creds := strings.SplitN(string(decoded), ":", 2)
	if len(creds) != 2 {
		return false
	}
	return creds[0] == s.auth.Username && creds[1] == s.auth.Password
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Scanner"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

// handleStatus reports pipeline counters and component states as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	detector, phase, depth := s.status()
	payload := struct {
		pipeline.Snapshot
		DetectorState  string `json:"detector_state"`
		SchedulerPhase string `json:"scheduler_phase"`
		QueueDepth     int    `json:"queue_depth"`
	}{
		Snapshot:       s.stats.Snapshot(),
		DetectorState:  detector,
		SchedulerPhase: phase,
		QueueDepth:     depth,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encoding status response", "error", err)
	}
}

// handleResults returns the recorded result table as JSON.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List()
	if err != nil {
		slog.Error("listing results", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		slog.Error("encoding results response", "error", err)
	}
}

// handleStream serves the live feed as multipart MJPEG. Each client gets
// its own encode loop; the feed itself is a lock-free read.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame := s.feed.Current()
		if frame == nil || frame.Seq == lastSeq {
			continue
		}
		lastSeq = frame.Seq

		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n")
		if err := jpeg.Encode(w, frame.Pixels, &jpeg.Options{Quality: 70}); err != nil {
			return
		}
		fmt.Fprint(w, "\r\n")
		flusher.Flush()
	}
}
