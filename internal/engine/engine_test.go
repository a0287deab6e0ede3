package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/window"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	policy, err := window.NewPolicy("07:30-12:00", "14:00-18:00")
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return Config{
		Tolerance:         0.5,
		IndexThreshold:    256,
		Cooldown:          5 * time.Minute,
		Windows:           policy,
		ArrivalGreeting:   "Selamat datang",
		DepartureGreeting: "Selamat jalan",
	}
}

func newTestEngine(t *testing.T) (*Engine, *mock.IdentityStore, int64) {
	t.Helper()
	store := mock.NewIdentityStore()
	id := store.AddIdentity(database.Identity{
		Name:      "Jana Novakova",
		Role:      "teacher",
		Embedding: []float32{1, 0, 0},
	})
	return New(testConfig(t), store), store, id
}

func types(directives []Directive) []DirectiveType {
	out := make([]DirectiveType, len(directives))
	for i, d := range directives {
		out[i] = d.Type
	}
	return out
}

func hasType(directives []Directive, want DirectiveType) bool {
	for _, d := range directives {
		if d.Type == want {
			return true
		}
	}
	return false
}

// morning is inside the morning window so side effects fire.
var morning = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func TestProcessRecognizedArrival(t *testing.T) {
	eng, _, id := newTestEngine(t)
	ctx := context.Background()

	// Distance 0.3 with tolerance 0.5: a match.
	detections := []Detection{{Embedding: []float32{1, 0.3, 0}}}
	directives, err := eng.Process(ctx, detections, morning)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if !hasType(directives, DirectiveRecognized) {
		t.Errorf("missing recognized directive: %v", types(directives))
	}
	if !hasType(directives, DirectiveArrival) {
		t.Errorf("missing arrival directive: %v", types(directives))
	}
	if !hasType(directives, DirectiveTakeScreenshot) {
		t.Errorf("missing screenshot directive in morning window: %v", types(directives))
	}
	if !hasType(directives, DirectiveSpeakGreeting) {
		t.Errorf("missing greeting directive in morning window: %v", types(directives))
	}

	for _, d := range directives {
		if d.Type == DirectiveRecognized && d.IdentityID != id {
			t.Errorf("recognized identity = %d, want %d", d.IdentityID, id)
		}
		if d.Type == DirectiveSpeakGreeting && d.Greeting != "Selamat datang, Jana Novakova!" {
			t.Errorf("greeting = %q, want arrival greeting with name", d.Greeting)
		}
	}
}

func TestProcessRepeatWithinCooldown(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	detections := []Detection{{Embedding: []float32{1, 0.3, 0}}}

	if _, err := eng.Process(ctx, detections, morning); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}

	// One second later, still in cooldown: recognized only, no ledger
	// write, no side effects.
	directives, err := eng.Process(ctx, detections, morning.Add(time.Second))
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	if len(directives) != 1 || directives[0].Type != DirectiveRecognized {
		t.Fatalf("within cooldown got %v, want [recognized]", types(directives))
	}
}

func TestProcessRepeatAfterCooldown(t *testing.T) {
	eng, store, id := newTestEngine(t)
	ctx := context.Background()
	detections := []Detection{{Embedding: []float32{1, 0.3, 0}}}

	if _, err := eng.Process(ctx, detections, morning); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}

	// Past the cooldown the same person toggles to departure.
	directives, err := eng.Process(ctx, detections, morning.Add(6*time.Minute))
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	if !hasType(directives, DirectiveDeparture) {
		t.Errorf("after cooldown got %v, want a departure", types(directives))
	}

	ident, _ := store.Get(ctx, id)
	if len(ident.Log) != 1 || ident.Log[0].Open() {
		t.Errorf("log = %+v, want one closed record", ident.Log)
	}
}

func TestProcessUnknownFace(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	// Distance 0.9 with tolerance 0.5: no match.
	detections := []Detection{{Embedding: []float32{1, 0.9, 0}, BBox: []float64{10, 10, 50, 50}}}
	directives, err := eng.Process(context.Background(), detections, morning)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(directives) != 1 || directives[0].Type != DirectiveUnknownFace {
		t.Fatalf("got %v, want [unknown_face]", types(directives))
	}
	if len(directives[0].BBox) != 4 {
		t.Errorf("unknown face directive should carry the bbox, got %v", directives[0].BBox)
	}
}

func TestProcessOutsideWindowsSkipsSideEffects(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	evening := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	detections := []Detection{{Embedding: []float32{1, 0, 0}}}
	directives, err := eng.Process(context.Background(), detections, evening)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// The ledger still records outside the windows, only screenshots and
	// greetings are gated.
	if !hasType(directives, DirectiveArrival) {
		t.Errorf("attendance should be logged outside windows: %v", types(directives))
	}
	if hasType(directives, DirectiveTakeScreenshot) || hasType(directives, DirectiveSpeakGreeting) {
		t.Errorf("side effects should not fire outside windows: %v", types(directives))
	}
}

func TestProcessDuplicateBoxesOneFrame(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	// The same face detected twice in one frame (jittered boxes, same
	// embedding): side effects fire once, the second box still renders.
	detections := []Detection{
		{Embedding: []float32{1, 0, 0}, BBox: []float64{10, 10, 50, 50}},
		{Embedding: []float32{1, 0, 0}, BBox: []float64{12, 11, 52, 51}},
	}
	directives, err := eng.Process(context.Background(), detections, morning)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	recognized, shots, greetings := 0, 0, 0
	for _, d := range directives {
		switch d.Type {
		case DirectiveRecognized:
			recognized++
		case DirectiveTakeScreenshot:
			shots++
		case DirectiveSpeakGreeting:
			greetings++
		}
	}
	if recognized != 2 {
		t.Errorf("recognized %d times, want 2 (both boxes render)", recognized)
	}
	if shots != 1 {
		t.Errorf("screenshot fired %d times, want 1", shots)
	}
	if greetings != 1 {
		t.Errorf("greeting fired %d times, want 1", greetings)
	}
}

func TestProcessScreenshotOncePerWindow(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	detections := []Detection{{Embedding: []float32{1, 0, 0}}}

	first, err := eng.Process(ctx, detections, morning)
	if err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	if !hasType(first, DirectiveTakeScreenshot) {
		t.Fatalf("first sighting should screenshot: %v", types(first))
	}

	// Past the cooldown but same window: the ledger toggles, the
	// screenshot does not repeat.
	second, err := eng.Process(ctx, detections, morning.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	if hasType(second, DirectiveTakeScreenshot) {
		t.Errorf("second sighting in same window should not screenshot: %v", types(second))
	}

	// Afternoon window: screenshot tracking rolled over, fires again.
	afternoon := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	third, err := eng.Process(ctx, detections, afternoon)
	if err != nil {
		t.Fatalf("third Process failed: %v", err)
	}
	if !hasType(third, DirectiveTakeScreenshot) {
		t.Errorf("window change should allow a fresh screenshot: %v", types(third))
	}
}

func TestProcessAfternoonGreeting(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	afternoon := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	detections := []Detection{{Embedding: []float32{1, 0, 0}}}
	directives, err := eng.Process(context.Background(), detections, afternoon)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	found := false
	for _, d := range directives {
		if d.Type == DirectiveSpeakGreeting {
			found = true
			if d.Greeting != "Selamat jalan, Jana Novakova!" {
				t.Errorf("greeting = %q, want departure greeting", d.Greeting)
			}
		}
	}
	if !found {
		t.Errorf("missing greeting in afternoon window: %v", types(directives))
	}
}

func TestProcessRosterLoadFailure(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	store.ListAllError = errors.New("connection refused")

	_, err := eng.Process(context.Background(), []Detection{{Embedding: []float32{1, 0, 0}}}, morning)
	if err == nil {
		t.Fatal("Process should fail when the roster cannot be loaded")
	}
}

func TestProcessLedgerFailureDegradesToRecognized(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	store.UpdateLogError = errors.New("disk full")

	directives, err := eng.Process(context.Background(), []Detection{{Embedding: []float32{1, 0, 0}}}, morning)
	if err != nil {
		t.Fatalf("Process should not fail the frame: %v", err)
	}
	if len(directives) != 1 || directives[0].Type != DirectiveRecognized {
		t.Fatalf("got %v, want [recognized] when the ledger write fails", types(directives))
	}

	// The cooldown must not start, so the write is retried next frame.
	store.UpdateLogError = nil
	directives, err = eng.Process(context.Background(), []Detection{{Embedding: []float32{1, 0, 0}}}, morning.Add(time.Second))
	if err != nil {
		t.Fatalf("retry Process failed: %v", err)
	}
	if !hasType(directives, DirectiveArrival) {
		t.Errorf("retry should record the arrival: %v", types(directives))
	}
}

func TestProcessCorruptLogFailsClosed(t *testing.T) {
	eng, store, id := newTestEngine(t)
	ctx := context.Background()

	healthy, err := eng.Process(ctx, []Detection{{Embedding: []float32{1, 0, 0}}}, morning)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !hasType(healthy, DirectiveArrival) {
		t.Fatalf("healthy log should record: %v", types(healthy))
	}

	// A corrupt log makes the whole roster unreadable; the frame fails and
	// the stored data is never touched.
	store.CorruptLogs[id] = true
	if _, err := eng.Process(ctx, []Detection{{Embedding: []float32{1, 0, 0}}}, morning.Add(6*time.Minute)); err == nil {
		t.Fatal("Process should fail when the roster cannot be read")
	}

	store.CorruptLogs[id] = false
	ident, _ := store.Get(ctx, id)
	if len(ident.Log) != 1 {
		t.Errorf("corrupt-log handling mutated the log: %d records", len(ident.Log))
	}
}

func TestEnrollmentModal(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	ticket, err := eng.BeginEnrollment()
	if err != nil {
		t.Fatalf("BeginEnrollment failed: %v", err)
	}
	if ticket == "" {
		t.Fatal("BeginEnrollment returned empty ticket")
	}

	// Modal: frames are not processed.
	directives, err := eng.Process(ctx, []Detection{{Embedding: []float32{1, 0, 0}}}, morning)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(directives) != 1 || directives[0].Type != DirectiveRegistrationInProgress {
		t.Fatalf("modal Process got %v, want [registration_in_progress]", types(directives))
	}

	// A second enrollment cannot start.
	if _, err := eng.BeginEnrollment(); err == nil {
		t.Error("second BeginEnrollment should fail while modal")
	}

	// Wrong ticket cannot cancel.
	if err := eng.CancelEnrollment("bogus"); err == nil {
		t.Error("CancelEnrollment with wrong ticket should fail")
	}

	if err := eng.CancelEnrollment(ticket); err != nil {
		t.Fatalf("CancelEnrollment failed: %v", err)
	}

	// Back to normal processing.
	directives, err = eng.Process(ctx, []Detection{{Embedding: []float32{1, 0, 0}}}, morning)
	if err != nil {
		t.Fatalf("Process after cancel failed: %v", err)
	}
	if !hasType(directives, DirectiveRecognized) {
		t.Errorf("after cancel got %v, want recognition to resume", types(directives))
	}
}

func TestCompleteEnrollment(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	ticket, err := eng.BeginEnrollment()
	if err != nil {
		t.Fatalf("BeginEnrollment failed: %v", err)
	}

	ident, err := eng.CompleteEnrollment(ctx, ticket, []float32{0, 0, 1}, "Petr Svoboda", "student", "")
	if err != nil {
		t.Fatalf("CompleteEnrollment failed: %v", err)
	}
	if ident.ID == 0 {
		t.Error("enrolled identity should have an ID")
	}
	if len(ident.Log) != 0 {
		t.Errorf("new identity log should be empty, got %d records", len(ident.Log))
	}

	if eng.Enrolling() {
		t.Error("engine should leave modal enrollment after completion")
	}

	count, _ := store.Count(ctx)
	if count != 2 {
		t.Errorf("store has %d identities, want 2", count)
	}

	// The new identity is matchable immediately.
	directives, err := eng.Process(ctx, []Detection{{Embedding: []float32{0, 0, 1}}}, morning)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !hasType(directives, DirectiveRecognized) {
		t.Errorf("new identity not recognized: %v", types(directives))
	}
}

func TestCompleteEnrollmentValidation(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	ticket, err := eng.BeginEnrollment()
	if err != nil {
		t.Fatalf("BeginEnrollment failed: %v", err)
	}

	tests := []struct {
		name      string
		embedding []float32
		person    string
		role      string
	}{
		{"empty name", []float32{0, 0, 1}, "", "student"},
		{"whitespace name", []float32{0, 0, 1}, "   ", "student"},
		{"empty role", []float32{0, 0, 1}, "Petr", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.CompleteEnrollment(ctx, ticket, tc.embedding, tc.person, tc.role, "")
			var verr *database.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("CompleteEnrollment error = %v, want *ValidationError", err)
			}
		})
	}

	// The ticket survives validation failures so the form can retry.
	if !eng.Enrolling() {
		t.Fatal("validation failure should keep enrollment modal")
	}
	if _, err := eng.CompleteEnrollment(ctx, ticket, []float32{0, 0, 1}, "Petr Svoboda", "student", ""); err != nil {
		t.Fatalf("retry after validation failure should succeed: %v", err)
	}
}

func TestEnrollEmbeddingDim(t *testing.T) {
	cfg := testConfig(t)
	cfg.EmbeddingDim = 3
	store := mock.NewIdentityStore()
	eng := New(cfg, store)

	_, err := eng.Enroll(context.Background(), []float32{1, 2}, "Petr", "student", "")
	var verr *database.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Enroll with wrong dimension error = %v, want *ValidationError", err)
	}

	if _, err := eng.Enroll(context.Background(), []float32{1, 2, 3}, "Petr", "student", ""); err != nil {
		t.Fatalf("Enroll with right dimension failed: %v", err)
	}
}

func TestEnrollTrimsNameAndRole(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	ident, err := eng.Enroll(context.Background(), []float32{0, 0, 1}, "  Petr Svoboda  ", " student ", "")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if ident.Name != "Petr Svoboda" || ident.Role != "student" {
		t.Errorf("Enroll stored %q/%q, want trimmed values", ident.Name, ident.Role)
	}
}

func TestListeners(t *testing.T) {
	eng, _, id := newTestEngine(t)
	ctx := context.Background()

	ch := eng.AddListener()
	defer eng.RemoveListener(ch)

	if _, err := eng.Process(ctx, []Detection{{Embedding: []float32{1, 0, 0}}}, morning); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	select {
	case event := <-ch:
		if event.IdentityID != id {
			t.Errorf("event identity = %d, want %d", event.IdentityID, id)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}
