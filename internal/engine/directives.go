package engine

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// DirectiveType identifies what the caller should do or display for a
// processed detection. The engine decides; rendering, screenshotting and
// speech are executed by the presentation layer.
type DirectiveType string

const (
	// DirectiveRecognized displays the matched identity.
	DirectiveRecognized DirectiveType = "recognized"
	// DirectiveUnknownFace offers enrollment for an unmatched face.
	DirectiveUnknownFace DirectiveType = "unknown_face"
	// DirectiveArrival reports a new arrival ledger record.
	DirectiveArrival DirectiveType = "arrival"
	// DirectiveDeparture reports a closed ledger record.
	DirectiveDeparture DirectiveType = "departure"
	// DirectiveRegistrationInProgress tells the caller the engine is modal:
	// enrollment is active and no matching or logging happens.
	DirectiveRegistrationInProgress DirectiveType = "registration_in_progress"
	// DirectiveTakeScreenshot asks the caller to persist a frame screenshot
	// in the named window's folder.
	DirectiveTakeScreenshot DirectiveType = "take_screenshot"
	// DirectiveSpeakGreeting asks the caller to speak the greeting text.
	DirectiveSpeakGreeting DirectiveType = "speak_greeting"
)

// Directive is one instruction emitted by Engine.Process.
type Directive struct {
	Type       DirectiveType              `json:"type"`
	IdentityID int64                      `json:"identity_id,omitempty"`
	Name       string                     `json:"name,omitempty"`
	Role       string                     `json:"role,omitempty"`
	Distance   float64                    `json:"distance,omitempty"`
	BBox       []float64                  `json:"bbox,omitempty"`
	Window     string                     `json:"window,omitempty"`
	Greeting   string                     `json:"greeting,omitempty"`
	Path       string                     `json:"path,omitempty"` // filled in by the caller once a screenshot is saved
	Record     *database.AttendanceRecord `json:"record,omitempty"`
}

// Detection is one face observed in a frame: an opaque embedding from the
// external embedder plus the bounding box, never persisted directly.
type Detection struct {
	Embedding  []float32 `json:"embedding"`
	BBox       []float64 `json:"bbox,omitempty"` // [x1, y1, x2, y2] pixels
	ObservedAt time.Time `json:"observed_at,omitempty"`
}
