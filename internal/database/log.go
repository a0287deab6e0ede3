package database

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParseLog decodes a stored attendance log and validates it against the
// schema. The legacy implementation evaluated the stored text as code;
// here anything that is not a well-formed, correctly ordered record array
// produces a *CorruptLogError and the log is treated as unreadable.
func ParseLog(identityID int64, raw []byte) ([]AttendanceRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var log []AttendanceRecord
	if err := json.Unmarshal(raw, &log); err != nil {
		return nil, &CorruptLogError{IdentityID: identityID, Reason: fmt.Sprintf("not a record array: %v", err)}
	}

	if err := ValidateLog(log); err != nil {
		return nil, &CorruptLogError{IdentityID: identityID, Reason: err.Error()}
	}
	return log, nil
}

// EncodeLog serializes an attendance log for storage. The log is validated
// first so a bad in-memory state can never be written back.
func EncodeLog(identityID int64, log []AttendanceRecord) ([]byte, error) {
	if err := ValidateLog(log); err != nil {
		return nil, &CorruptLogError{IdentityID: identityID, Reason: err.Error()}
	}
	if log == nil {
		log = []AttendanceRecord{}
	}
	data, err := json.Marshal(log)
	if err != nil {
		return nil, fmt.Errorf("encoding attendance log: %w", err)
	}
	return data, nil
}

// ValidateLog checks the attendance log invariants: valid dates and times,
// records ordered by date then arrival time, departures not before
// arrivals, and at most one open record, which must be the last one.
func ValidateLog(log []AttendanceRecord) error {
	for i := range log {
		rec := &log[i]

		day, err := time.Parse(DateFormat, rec.Date)
		if err != nil {
			return fmt.Errorf("record %d: bad date %q", i, rec.Date)
		}
		if rec.ArrivalTime.IsZero() {
			return fmt.Errorf("record %d: missing arrival time", i)
		}
		if rec.DepartureTime != nil && rec.DepartureTime.Before(rec.ArrivalTime) {
			return fmt.Errorf("record %d: departure before arrival", i)
		}
		if rec.Open() && i != len(log)-1 {
			return fmt.Errorf("record %d: open record is not the last record", i)
		}

		if i == 0 {
			continue
		}
		prev := &log[i-1]
		prevDay, err := time.Parse(DateFormat, prev.Date)
		if err != nil {
			return fmt.Errorf("record %d: bad date %q", i-1, prev.Date)
		}
		if day.Before(prevDay) {
			return fmt.Errorf("record %d: date %q out of order", i, rec.Date)
		}
		if day.Equal(prevDay) && rec.ArrivalTime.Before(prev.ArrivalTime) {
			return fmt.Errorf("record %d: arrival time out of order", i)
		}
	}
	return nil
}
