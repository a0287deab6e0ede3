package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/engine"
	"github.com/kozaktomas/face-attendance/internal/snapshot"
	"github.com/kozaktomas/face-attendance/internal/window"
)

// maxFrameBytes caps uploaded frame size (8 MiB).
const maxFrameBytes = 8 << 20

// FramesHandler ingests one frame per request and returns the engine's
// directives. The capture harness either posts pre-computed detections as
// JSON or uploads the raw frame and lets the server call the embedder.
type FramesHandler struct {
	engine   *engine.Engine
	embedder *embedder.Client // nil when no embedder is configured
	saver    *snapshot.Saver  // nil when snapshots are disabled
}

// NewFramesHandler creates a new frames handler.
func NewFramesHandler(eng *engine.Engine, emb *embedder.Client, saver *snapshot.Saver) *FramesHandler {
	return &FramesHandler{engine: eng, embedder: emb, saver: saver}
}

type frameRequest struct {
	CapturedAt time.Time          `json:"captured_at,omitempty"`
	Detections []engine.Detection `json:"detections"`
}

type frameResponse struct {
	Directives []engine.Directive `json:"directives"`
}

// Process handles POST /frames.
func (h *FramesHandler) Process(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")

	var detections []engine.Detection
	var frame []byte
	now := time.Now()

	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var req frameRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		detections = req.Detections
		if !req.CapturedAt.IsZero() {
			now = req.CapturedAt
		}
	default:
		// Raw frame upload: run the embedder here.
		if h.embedder == nil {
			respondError(w, http.StatusBadRequest, "raw frames not supported: no embedder configured")
			return
		}
		var err error
		frame, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
		if err != nil {
			respondError(w, http.StatusBadRequest, "reading frame: "+err.Error())
			return
		}
		detections, err = h.embedder.DetectAndEmbed(r.Context(), frame)
		if err != nil {
			log.Printf("embedder failed: %v", err)
			respondError(w, http.StatusBadGateway, "embedder unavailable")
			return
		}
	}

	directives, err := h.engine.Process(r.Context(), detections, now)
	if err != nil {
		log.Printf("frame processing failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, "identity store unavailable")
		return
	}

	if frame != nil && h.saver != nil {
		h.executeScreenshots(directives, frame, now)
	}

	respondJSON(w, http.StatusOK, frameResponse{Directives: directives})
}

// executeScreenshots runs take_screenshot directives against the uploaded
// frame and attaches the saved path. Failures are logged, not fatal.
func (h *FramesHandler) executeScreenshots(directives []engine.Directive, frame []byte, now time.Time) {
	for i := range directives {
		d := &directives[i]
		if d.Type != engine.DirectiveTakeScreenshot {
			continue
		}
		win := windowFromString(d.Window)
		path, err := h.saver.SaveScreenshot(frame, win, d.Name, now)
		if err != nil {
			log.Printf("saving screenshot for %s: %v", sanitizeForLog(d.Name), err)
			continue
		}
		d.Path = path
	}
}

func windowFromString(s string) window.Window {
	switch s {
	case window.Morning.String():
		return window.Morning
	case window.Afternoon.String():
		return window.Afternoon
	default:
		return window.NoWindow
	}
}
