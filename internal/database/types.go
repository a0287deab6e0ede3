package database

import (
	"time"
)

// DateFormat is the calendar-date layout used in attendance logs.
const DateFormat = "2006-01-02"

// Identity represents an enrolled person. The identity itself is immutable
// after enrollment; only Log is ever updated, and only by the attendance
// ledger. Re-enrollment creates a new Identity instead of editing one.
type Identity struct {
	ID        int64
	Name      string
	Role      string
	ImagePath string // face crop saved at enrollment (empty if none)
	Embedding []float32
	Log       []AttendanceRecord
	CreatedAt time.Time
}

// AttendanceRecord is a single arrival (and optional departure) on a
// calendar date. A record with no departure time is "open".
type AttendanceRecord struct {
	Date          string     `json:"date"`
	ArrivalTime   time.Time  `json:"arrival_time"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
}

// Open reports whether the record still has no departure time.
func (r *AttendanceRecord) Open() bool {
	return r.DepartureTime == nil
}

// LastRecord returns the most recent attendance record, or nil for an
// identity that has never been logged.
func (i *Identity) LastRecord() *AttendanceRecord {
	if len(i.Log) == 0 {
		return nil
	}
	return &i.Log[len(i.Log)-1]
}
