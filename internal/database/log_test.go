package database

import (
	"errors"
	"testing"
	"time"
)

func tm(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func tmp(hour, min int) *time.Time {
	t := tm(hour, min)
	return &t
}

func TestParseLog(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		corrupt bool
	}{
		{
			name: "empty input",
			raw:  "",
			want: 0,
		},
		{
			name: "empty array",
			raw:  "[]",
			want: 0,
		},
		{
			name: "single open record",
			raw:  `[{"date":"2026-03-10","arrival_time":"2026-03-10T08:00:00Z"}]`,
			want: 1,
		},
		{
			name: "closed then open on same day",
			raw: `[{"date":"2026-03-10","arrival_time":"2026-03-10T08:00:00Z","departure_time":"2026-03-10T12:00:00Z"},` +
				`{"date":"2026-03-10","arrival_time":"2026-03-10T13:00:00Z"}]`,
			want: 2,
		},
		{
			name:    "not json",
			raw:     `print("hello")`,
			corrupt: true,
		},
		{
			name:    "not an array",
			raw:     `{"date":"2026-03-10"}`,
			corrupt: true,
		},
		{
			name:    "bad date",
			raw:     `[{"date":"10.3.2026","arrival_time":"2026-03-10T08:00:00Z"}]`,
			corrupt: true,
		},
		{
			name:    "missing arrival",
			raw:     `[{"date":"2026-03-10"}]`,
			corrupt: true,
		},
		{
			name: "departure before arrival",
			raw: `[{"date":"2026-03-10","arrival_time":"2026-03-10T12:00:00Z",` +
				`"departure_time":"2026-03-10T08:00:00Z"}]`,
			corrupt: true,
		},
		{
			name: "open record not last",
			raw: `[{"date":"2026-03-10","arrival_time":"2026-03-10T08:00:00Z"},` +
				`{"date":"2026-03-11","arrival_time":"2026-03-11T08:00:00Z"}]`,
			corrupt: true,
		},
		{
			name: "dates out of order",
			raw: `[{"date":"2026-03-11","arrival_time":"2026-03-11T08:00:00Z","departure_time":"2026-03-11T12:00:00Z"},` +
				`{"date":"2026-03-10","arrival_time":"2026-03-10T08:00:00Z"}]`,
			corrupt: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, err := ParseLog(42, []byte(tc.raw))
			if tc.corrupt {
				var corrupt *CorruptLogError
				if !errors.As(err, &corrupt) {
					t.Fatalf("ParseLog(%q) error = %v, want *CorruptLogError", tc.raw, err)
				}
				if corrupt.IdentityID != 42 {
					t.Errorf("CorruptLogError.IdentityID = %d, want 42", corrupt.IdentityID)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLog(%q) unexpected error: %v", tc.raw, err)
			}
			if len(log) != tc.want {
				t.Errorf("ParseLog(%q) returned %d records, want %d", tc.raw, len(log), tc.want)
			}
		})
	}
}

func TestValidateLogOrdering(t *testing.T) {
	tests := []struct {
		name    string
		log     []AttendanceRecord
		wantErr bool
	}{
		{
			name: "same day arrivals in order",
			log: []AttendanceRecord{
				{Date: "2026-03-10", ArrivalTime: tm(8, 0), DepartureTime: tmp(12, 0)},
				{Date: "2026-03-10", ArrivalTime: tm(13, 0)},
			},
		},
		{
			name: "same day arrivals out of order",
			log: []AttendanceRecord{
				{Date: "2026-03-10", ArrivalTime: tm(13, 0), DepartureTime: tmp(14, 0)},
				{Date: "2026-03-10", ArrivalTime: tm(8, 0)},
			},
			wantErr: true,
		},
		{
			name: "two open records",
			log: []AttendanceRecord{
				{Date: "2026-03-09", ArrivalTime: tm(8, 0)},
				{Date: "2026-03-10", ArrivalTime: tm(8, 0)},
			},
			wantErr: true,
		},
		{
			name: "closed record after open-ended previous day",
			log: []AttendanceRecord{
				{Date: "2026-03-09", ArrivalTime: tm(8, 0), DepartureTime: tmp(16, 0)},
				{Date: "2026-03-10", ArrivalTime: tm(8, 0)},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateLog(tc.log)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateLog() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestEncodeLogRejectsInvalid(t *testing.T) {
	bad := []AttendanceRecord{
		{Date: "not-a-date", ArrivalTime: tm(8, 0)},
	}
	_, err := EncodeLog(7, bad)
	var corrupt *CorruptLogError
	if !errors.As(err, &corrupt) {
		t.Fatalf("EncodeLog() error = %v, want *CorruptLogError", err)
	}
}

func TestEncodeLogRoundTrip(t *testing.T) {
	log := []AttendanceRecord{
		{Date: "2026-03-10", ArrivalTime: tm(8, 0), DepartureTime: tmp(16, 0)},
	}
	data, err := EncodeLog(7, log)
	if err != nil {
		t.Fatalf("EncodeLog() unexpected error: %v", err)
	}
	got, err := ParseLog(7, data)
	if err != nil {
		t.Fatalf("ParseLog() unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Date != "2026-03-10" || !got[0].ArrivalTime.Equal(tm(8, 0)) {
		t.Errorf("round trip changed the record: %+v", got)
	}
}

func TestEncodeLogNil(t *testing.T) {
	data, err := EncodeLog(7, nil)
	if err != nil {
		t.Fatalf("EncodeLog(nil) unexpected error: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("EncodeLog(nil) = %s, want []", data)
	}
}
