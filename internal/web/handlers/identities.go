package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/normalize"
)

// IdentitiesHandler serves the enrolled roster and per-identity logs.
// Embeddings are never exposed over the API.
type IdentitiesHandler struct {
	store database.IdentityReader
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(store database.IdentityReader) *IdentitiesHandler {
	return &IdentitiesHandler{store: store}
}

type identityView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ImagePath string `json:"image_path,omitempty"`
	Records   int    `json:"records"`
}

func toView(ident *database.Identity) identityView {
	return identityView{
		ID:        ident.ID,
		Name:      ident.Name,
		Role:      ident.Role,
		ImagePath: ident.ImagePath,
		Records:   len(ident.Log),
	}
}

// List handles GET /identities. An optional ?name= filter compares
// normalized names so "jan-novak" finds "Jan Novák".
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.store.ListAll(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "identity store unavailable")
		return
	}

	filter := normalize.PersonName(r.URL.Query().Get("name"))
	views := make([]identityView, 0, len(identities))
	for i := range identities {
		if filter != "" && normalize.PersonName(identities[i].Name) != filter {
			continue
		}
		views = append(views, toView(&identities[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"identities": views})
}

// Get handles GET /identities/{id}.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toView(ident))
}

// Attendance handles GET /identities/{id}/attendance.
func (h *IdentitiesHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.lookup(w, r)
	if !ok {
		return
	}
	log := ident.Log
	if date := r.URL.Query().Get("date"); date != "" {
		filtered := make([]database.AttendanceRecord, 0, len(log))
		for _, rec := range log {
			if rec.Date == date {
				filtered = append(filtered, rec)
			}
		}
		log = filtered
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":   ident.ID,
		"name": ident.Name,
		"log":  log,
	})
}

func (h *IdentitiesHandler) lookup(w http.ResponseWriter, r *http.Request) (*database.Identity, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid identity ID")
		return nil, false
	}

	ident, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "identity store unavailable")
		return nil, false
	}
	if ident == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return nil, false
	}
	return ident, true
}
