// Package engine orchestrates the attendance pipeline: detections are
// matched against the roster, throttled, fed through the session ledger,
// and converted into directives for the presentation layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/match"
	"github.com/kozaktomas/face-attendance/internal/throttle"
	"github.com/kozaktomas/face-attendance/internal/window"
)

// Config collects the tunables of the attendance pipeline.
type Config struct {
	Tolerance         float64
	IndexThreshold    int
	Cooldown          time.Duration
	Windows           window.Policy
	ArrivalGreeting   string
	DepartureGreeting string
	EmbeddingDim      int
}

// Engine owns the matcher, throttle state and ledger for one camera stream.
// Frames are expected to arrive sequentially; enrollment may run from
// another goroutine, which is why enrollment is modal.
type Engine struct {
	cfg     Config
	store   database.IdentityWriter
	matcher *match.Matcher
	ledger  *attendance.Ledger

	cooldown *throttle.Cooldown
	frame    *throttle.SeenSet // cleared every frame
	shots    *throttle.SeenSet // cleared on enrollment and window change

	mu           sync.Mutex
	enrollTicket string // non-empty while enrollment is modal
	lastWindow   window.Window

	listenerMu sync.Mutex
	listeners  map[chan attendance.Event]struct{}
}

// New creates an engine over the given identity store.
func New(cfg Config, store database.IdentityWriter) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		matcher:   match.NewMatcher(cfg.Tolerance, cfg.IndexThreshold),
		ledger:    attendance.NewLedger(store),
		cooldown:  throttle.NewCooldown(cfg.Cooldown),
		frame:     throttle.NewSeenSet(),
		shots:     throttle.NewSeenSet(),
		listeners: make(map[chan attendance.Event]struct{}),
	}
}

// WarmUp preloads the matcher index from the current roster. Optional;
// matching works without it.
func (e *Engine) WarmUp(ctx context.Context) error {
	roster, err := e.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}
	e.matcher.SetRoster(roster)
	return nil
}

// Process runs one frame of detections through the pipeline and returns
// the directives for the caller to execute, in detection order. A roster
// read failure fails the whole frame (the caller's loop continues with the
// next frame); per-detection store failures skip that detection only.
func (e *Engine) Process(ctx context.Context, detections []Detection, now time.Time) ([]Directive, error) {
	e.frame.Clear()

	if e.Enrolling() {
		// Enrollment is modal: no matching or logging until it finishes.
		return []Directive{{Type: DirectiveRegistrationInProgress}}, nil
	}

	e.rollWindow(now)

	roster, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}

	var directives []Directive
	for i := range detections {
		directives = append(directives, e.processDetection(ctx, &detections[i], roster, now)...)
	}
	return directives, nil
}

// rollWindow clears the per-window screenshot tracking when the operating
// window changes, so each window visit gets a fresh set of screenshots.
func (e *Engine) rollWindow(now time.Time) {
	current := e.cfg.Windows.Current(now)
	e.mu.Lock()
	changed := current != e.lastWindow
	e.lastWindow = current
	e.mu.Unlock()
	if changed {
		e.shots.Clear()
	}
}

func (e *Engine) processDetection(ctx context.Context, det *Detection, roster []database.Identity, now time.Time) []Directive {
	res := e.matcher.Match(det.Embedding, roster)
	if !res.Matched() {
		return []Directive{{Type: DirectiveUnknownFace, BBox: det.BBox}}
	}

	ident := res.Identity
	recognized := Directive{
		Type:       DirectiveRecognized,
		IdentityID: ident.ID,
		Name:       ident.Name,
		Role:       ident.Role,
		Distance:   res.Distance,
		BBox:       det.BBox,
	}

	if !e.cooldown.ShouldProcess(ident.ID, now) {
		// Within cooldown: display only, no ledger write, no side effects.
		return []Directive{recognized}
	}

	event, err := e.ledger.Record(ctx, ident.ID, now)
	if err != nil {
		// Fail the detection, never the frame loop. Corrupt logs need
		// manual remediation; store outages resolve on their own.
		var corrupt *database.CorruptLogError
		if errors.As(err, &corrupt) {
			log.Printf("attendance log for identity %d is corrupt, refusing to record: %v", ident.ID, err)
		} else {
			log.Printf("skipping detection of identity %d: %v", ident.ID, err)
		}
		return []Directive{recognized}
	}
	e.cooldown.MarkProcessed(ident.ID, now)
	e.publish(event)

	directives := []Directive{recognized, {
		Type:       directiveForEvent(event.Type),
		IdentityID: ident.ID,
		Name:       ident.Name,
		Role:       ident.Role,
		Record:     &event.Record,
	}}

	return append(directives, e.sideEffects(det, ident, now)...)
}

// sideEffects decides screenshot and greeting directives, gated by the
// operating window and by the frame-local dedup key so near-duplicate
// boxes of one face in a single frame fire at most once.
func (e *Engine) sideEffects(det *Detection, ident *database.Identity, now time.Time) []Directive {
	current := e.cfg.Windows.Current(now)
	if current == window.NoWindow {
		return nil
	}

	key := fingerprint.Key(det.Embedding)
	if e.frame.Seen(key) {
		return nil
	}
	e.frame.Mark(key)

	var directives []Directive

	shotKey := fmt.Sprintf("%d|%s", ident.ID, current)
	if !e.shots.Seen(shotKey) {
		e.shots.Mark(shotKey)
		directives = append(directives, Directive{
			Type:       DirectiveTakeScreenshot,
			IdentityID: ident.ID,
			Name:       ident.Name,
			Window:     current.String(),
		})
	}

	if text := e.greetingText(current); text != "" {
		directives = append(directives, Directive{
			Type:       DirectiveSpeakGreeting,
			IdentityID: ident.ID,
			Name:       ident.Name,
			Window:     current.String(),
			Greeting:   fmt.Sprintf("%s, %s!", text, ident.Name),
		})
	}
	return directives
}

func (e *Engine) greetingText(w window.Window) string {
	switch window.Greeting(w) {
	case window.ArrivalGreeting:
		return e.cfg.ArrivalGreeting
	case window.DepartureGreeting:
		return e.cfg.DepartureGreeting
	default:
		return ""
	}
}

func directiveForEvent(t attendance.EventType) DirectiveType {
	if t == attendance.Departure {
		return DirectiveDeparture
	}
	return DirectiveArrival
}

// Enrolling reports whether enrollment is currently modal.
func (e *Engine) Enrolling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enrollTicket != ""
}

// BeginEnrollment switches the engine into modal enrollment and returns a
// ticket the presentation layer must present to complete or cancel it.
// Fails if an enrollment is already in progress.
func (e *Engine) BeginEnrollment() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enrollTicket != "" {
		return "", errors.New("enrollment already in progress")
	}
	e.enrollTicket = uuid.NewString()
	return e.enrollTicket, nil
}

// CancelEnrollment leaves modal enrollment without creating an identity.
func (e *Engine) CancelEnrollment(ticket string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enrollTicket == "" || e.enrollTicket != ticket {
		return errors.New("no matching enrollment in progress")
	}
	e.enrollTicket = ""
	return nil
}

// CompleteEnrollment creates the new identity and leaves modal enrollment.
// The ticket stays valid on validation failure so the form can be retried.
func (e *Engine) CompleteEnrollment(ctx context.Context, ticket string, embedding []float32, name, role, imagePath string) (*database.Identity, error) {
	e.mu.Lock()
	if e.enrollTicket == "" || e.enrollTicket != ticket {
		e.mu.Unlock()
		return nil, errors.New("no matching enrollment in progress")
	}
	e.mu.Unlock()

	ident, err := e.Enroll(ctx, embedding, name, role, imagePath)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.enrollTicket = ""
	e.mu.Unlock()
	return ident, nil
}

// Enroll creates a new identity with an empty log. Empty name or role is a
// *database.ValidationError. No near-duplicate check against existing
// embeddings is attempted. Screenshot tracking is cleared so the new
// identity gets fresh side effects.
func (e *Engine) Enroll(ctx context.Context, embedding []float32, name, role, imagePath string) (*database.Identity, error) {
	name = strings.TrimSpace(name)
	role = strings.TrimSpace(role)
	if name == "" {
		return nil, &database.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if role == "" {
		return nil, &database.ValidationError{Field: "role", Reason: "must not be empty"}
	}
	if e.cfg.EmbeddingDim > 0 && len(embedding) != e.cfg.EmbeddingDim {
		return nil, &database.ValidationError{
			Field:  "embedding",
			Reason: fmt.Sprintf("expected %d dimensions, got %d", e.cfg.EmbeddingDim, len(embedding)),
		}
	}

	ident := &database.Identity{
		Name:      name,
		Role:      role,
		ImagePath: imagePath,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}
	id, err := e.store.Append(ctx, ident)
	if err != nil {
		return nil, fmt.Errorf("enrolling identity: %w", err)
	}
	ident.ID = id

	e.frame.Clear()
	e.shots.Clear()

	if roster, err := e.store.ListAll(ctx); err == nil {
		e.matcher.SetRoster(roster)
	}
	return ident, nil
}

// AddListener subscribes to attendance events (used by the SSE stream).
// Events are dropped for slow listeners rather than blocking the frame loop.
func (e *Engine) AddListener() chan attendance.Event {
	ch := make(chan attendance.Event, 16)
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners[ch] = struct{}{}
	return ch
}

// RemoveListener unsubscribes and closes the channel.
func (e *Engine) RemoveListener(ch chan attendance.Event) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	if _, ok := e.listeners[ch]; ok {
		delete(e.listeners, ch)
		close(ch)
	}
}

func (e *Engine) publish(event attendance.Event) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	for ch := range e.listeners {
		select {
		case ch <- event:
		default:
		}
	}
}
