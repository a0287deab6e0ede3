// Package attendance maintains per-identity day-session logs: the first
// detection of a day records an arrival, the next a departure, and any
// later one a re-entry.
package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// EventType distinguishes ledger transitions.
type EventType int

const (
	Arrival EventType = iota
	Departure
)

func (t EventType) String() string {
	if t == Departure {
		return "departure"
	}
	return "arrival"
}

// Event is the result of a ledger write.
type Event struct {
	Type       EventType
	IdentityID int64
	Name       string
	Role       string
	Record     database.AttendanceRecord
}

// Ledger applies the attendance state machine on top of an identity store.
// Writes for the same identity serialize on a per-identity mutex so two
// concurrent detections can never both observe an open record and both
// close it.
type Ledger struct {
	store database.IdentityWriter

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewLedger creates a ledger over the given store.
func NewLedger(store database.IdentityWriter) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[int64]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(id int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	return lock
}

// Record applies one detection of the identity at time now and returns the
// resulting event. State is derived entirely from the last stored record:
//
//   - no record for today: append an open record, arrival
//   - open record for today: close it, departure
//   - closed record for today: append a new open record, re-entry arrival
//
// A new day always starts with an arrival regardless of how the previous
// day ended. The log is re-read from the store under the per-identity lock
// so the decision is based on current state, and a corrupt stored log fails
// closed without mutating anything.
func (l *Ledger) Record(ctx context.Context, identityID int64, now time.Time) (Event, error) {
	lock := l.lockFor(identityID)
	lock.Lock()
	defer lock.Unlock()

	ident, err := l.store.Get(ctx, identityID)
	if err != nil {
		return Event{}, err
	}
	if ident == nil {
		return Event{}, fmt.Errorf("record attendance: identity %d not found", identityID)
	}

	today := now.Format(database.DateFormat)
	log := ident.Log
	last := ident.LastRecord()

	var event Event
	switch {
	case last == nil || last.Date != today:
		// First detection of the day.
		log = append(log, database.AttendanceRecord{Date: today, ArrivalTime: now})
		event = Event{Type: Arrival, Record: log[len(log)-1]}
	case last.Open():
		departure := now
		last.DepartureTime = &departure
		event = Event{Type: Departure, Record: *last}
	default:
		// Already closed today: re-entry.
		log = append(log, database.AttendanceRecord{Date: today, ArrivalTime: now})
		event = Event{Type: Arrival, Record: log[len(log)-1]}
	}

	if err := l.store.UpdateLog(ctx, identityID, log); err != nil {
		return Event{}, fmt.Errorf("persisting attendance log: %w", err)
	}

	event.IdentityID = ident.ID
	event.Name = ident.Name
	event.Role = ident.Role
	return event, nil
}
