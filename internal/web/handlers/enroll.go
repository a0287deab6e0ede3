package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/engine"
	"github.com/kozaktomas/face-attendance/internal/snapshot"
)

// EnrollHandler drives the modal enrollment flow. The presentation layer
// begins enrollment when an unknown face should be registered, the engine
// suspends matching, and the flow ends with complete or cancel.
type EnrollHandler struct {
	engine *engine.Engine
	store  database.IdentityReader
	saver  *snapshot.Saver // nil when snapshots are disabled
}

// NewEnrollHandler creates a new enrollment handler.
func NewEnrollHandler(eng *engine.Engine, store database.IdentityReader, saver *snapshot.Saver) *EnrollHandler {
	return &EnrollHandler{engine: eng, store: store, saver: saver}
}

// Begin handles POST /enroll/begin.
func (h *EnrollHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.engine.BeginEnrollment()
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"ticket": ticket})
}

type cancelRequest struct {
	Ticket string `json:"ticket"`
}

// Cancel handles POST /enroll/cancel.
func (h *EnrollHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := h.engine.CancelEnrollment(req.Ticket); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type completeRequest struct {
	Ticket    string    `json:"ticket"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Embedding []float32 `json:"embedding"`
	Frame     []byte    `json:"frame,omitempty"` // base64 JPEG of the captured frame
	BBox      []float64 `json:"bbox,omitempty"`
}

type completeResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ImagePath string `json:"image_path,omitempty"`

	// Nearest existing identity, reported so an operator can spot an
	// accidental re-enrollment. Enrollment is never blocked on it.
	NearestID       int64   `json:"nearest_id,omitempty"`
	NearestName     string  `json:"nearest_name,omitempty"`
	NearestDistance float64 `json:"nearest_distance,omitempty"`
}

// Complete handles POST /enroll.
func (h *EnrollHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	imagePath := ""
	if len(req.Frame) > 0 && h.saver != nil {
		path, err := h.saver.SaveFaceCrop(req.Frame, req.BBox, time.Now())
		if err != nil {
			log.Printf("saving enrollment face crop: %v", err)
		} else {
			imagePath = path
		}
	}

	ident, err := h.engine.CompleteEnrollment(r.Context(), req.Ticket, req.Embedding, req.Name, req.Role, imagePath)
	if err != nil {
		var validation *database.ValidationError
		if errors.As(err, &validation) {
			respondError(w, http.StatusUnprocessableEntity, validation.Error())
			return
		}
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	log.Printf("enrolled %s (%s) as identity %d", sanitizeForLog(ident.Name), sanitizeForLog(ident.Role), ident.ID)

	resp := completeResponse{
		ID:        ident.ID,
		Name:      ident.Name,
		Role:      ident.Role,
		ImagePath: ident.ImagePath,
	}

	// Best effort: the second-nearest identity is the closest pre-existing one.
	if nearest, distances, err := h.store.FindNearest(r.Context(), req.Embedding, 2); err == nil {
		for i := range nearest {
			if nearest[i].ID == ident.ID {
				continue
			}
			resp.NearestID = nearest[i].ID
			resp.NearestName = nearest[i].Name
			resp.NearestDistance = distances[i]
			break
		}
	}

	respondJSON(w, http.StatusCreated, resp)
}
