package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler serves day-level attendance summaries.
type AttendanceHandler struct {
	store database.IdentityReader
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(store database.IdentityReader) *AttendanceHandler {
	return &AttendanceHandler{store: store}
}

type attendanceEntry struct {
	IdentityID int64                       `json:"identity_id"`
	Name       string                      `json:"name"`
	Role       string                      `json:"role"`
	Present    bool                        `json:"present"` // has an open record
	Records    []database.AttendanceRecord `json:"records"`
}

// Today handles GET /attendance/today. ?date=YYYY-MM-DD overrides the day.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	day := time.Now().Format(database.DateFormat)
	if d := r.URL.Query().Get("date"); d != "" {
		if _, err := time.Parse(database.DateFormat, d); err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = d
	}

	identities, err := h.store.ListAll(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "identity store unavailable")
		return
	}

	entries := make([]attendanceEntry, 0)
	for i := range identities {
		ident := &identities[i]
		var records []database.AttendanceRecord
		present := false
		for _, rec := range ident.Log {
			if rec.Date != day {
				continue
			}
			records = append(records, rec)
			if rec.Open() {
				present = true
			}
		}
		if len(records) == 0 {
			continue
		}
		entries = append(entries, attendanceEntry{
			IdentityID: ident.ID,
			Name:       ident.Name,
			Role:       ident.Role,
			Present:    present,
			Records:    records,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":    day,
		"entries": entries,
	})
}
