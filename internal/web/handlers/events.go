package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/engine"
)

// EventsHandler streams attendance events over SSE so a dashboard can show
// arrivals and departures live.
type EventsHandler struct {
	engine *engine.Engine
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(eng *engine.Engine) *EventsHandler {
	return &EventsHandler{engine: eng}
}

type eventView struct {
	Type       string `json:"type"`
	IdentityID int64  `json:"identity_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

func toEventView(ev attendance.Event) eventView {
	v := eventView{
		Type:       ev.Type.String(),
		IdentityID: ev.IdentityID,
		Name:       ev.Name,
		Role:       ev.Role,
		Date:       ev.Record.Date,
	}
	if ev.Type == attendance.Departure && ev.Record.DepartureTime != nil {
		v.Time = ev.Record.DepartureTime.Format("15:04:05")
	} else {
		v.Time = ev.Record.ArrivalTime.Format("15:04:05")
	}
	return v
}

// Stream handles GET /events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := h.engine.AddListener()
	defer h.engine.RemoveListener(ch)

	sendSSEEvent(w, flusher, "connected", map[string]string{"status": "ok"})

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "attendance", toEventView(ev))
		}
	}
}

// sendSSEEvent writes one SSE event and flushes it to the client.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}
