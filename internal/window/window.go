// Package window maps wall-clock time to the operating window that gates
// screenshot capture and greeting side effects. Attendance logging itself
// is independent of windows.
package window

import (
	"fmt"
	"strings"
	"time"
)

// Window names the time-of-day interval a timestamp falls into.
type Window int

const (
	NoWindow Window = iota
	Morning
	Afternoon
)

func (w Window) String() string {
	switch w {
	case Morning:
		return "morning"
	case Afternoon:
		return "afternoon"
	default:
		return "none"
	}
}

// GreetingClass selects which greeting, if any, a window produces.
type GreetingClass int

const (
	NoGreeting GreetingClass = iota
	ArrivalGreeting
	DepartureGreeting
)

// Span is a [start, end) time-of-day range in minutes since midnight.
// End < Start means the span wraps past midnight (e.g. 14:00-00:30).
// Start == End is an empty span that contains nothing.
type Span struct {
	Start int
	End   int
}

// ParseSpan parses "HH:MM-HH:MM" into a Span.
func ParseSpan(s string) (Span, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Span{}, fmt.Errorf("invalid window %q: expected HH:MM-HH:MM", s)
	}
	start, err := parseMinutes(parts[0])
	if err != nil {
		return Span{}, fmt.Errorf("invalid window %q: %w", s, err)
	}
	end, err := parseMinutes(parts[1])
	if err != nil {
		return Span{}, fmt.Errorf("invalid window %q: %w", s, err)
	}
	return Span{Start: start, End: end}, nil
}

func parseMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad time of day %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether the wall-clock time of t falls inside the span.
// Start is inclusive, End exclusive.
func (s Span) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	switch {
	case s.Start == s.End:
		return false
	case s.Start < s.End:
		return s.Start <= m && m < s.End
	default: // wraps midnight
		return m >= s.Start || m < s.End
	}
}

// Policy holds the configured morning and afternoon spans.
type Policy struct {
	Morning   Span
	Afternoon Span
}

// NewPolicy parses the two configured span strings.
func NewPolicy(morning, afternoon string) (Policy, error) {
	m, err := ParseSpan(morning)
	if err != nil {
		return Policy{}, fmt.Errorf("morning window: %w", err)
	}
	a, err := ParseSpan(afternoon)
	if err != nil {
		return Policy{}, fmt.Errorf("afternoon window: %w", err)
	}
	return Policy{Morning: m, Afternoon: a}, nil
}

// Current returns the window containing now, or NoWindow. When spans
// overlap, morning wins.
func (p Policy) Current(now time.Time) Window {
	if p.Morning.Contains(now) {
		return Morning
	}
	if p.Afternoon.Contains(now) {
		return Afternoon
	}
	return NoWindow
}

// Greeting maps a window to its greeting class: arrivals are greeted in the
// morning, departures in the afternoon, nobody outside the windows.
func Greeting(w Window) GreetingClass {
	switch w {
	case Morning:
		return ArrivalGreeting
	case Afternoon:
		return DepartureGreeting
	default:
		return NoGreeting
	}
}
