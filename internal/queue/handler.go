package queue

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicware/clinicops/internal/api/respond"
	"github.com/clinicware/clinicops/internal/clinicerr"
	"github.com/clinicware/clinicops/internal/identity"
	"github.com/clinicware/clinicops/pkg/logging"
)

// Handler serves the walk-in queue endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a queue handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type joinRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
}

// Create handles POST /api/v1/queues. Patients join for themselves;
// admins may enqueue any patient.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}
	if !identity.CanJoinQueue(principal) {
		respond.Error(w, clinicerr.Forbidden("Only patients or admins may join a queue."))
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, clinicerr.Validation("Invalid request body."))
		return
	}

	verr := clinicerr.Validation("The given data was invalid.")
	var doctorID uuid.UUID
	if req.DoctorID == "" {
		verr.WithField("doctor_id", "The doctor id field is required.")
	} else if id, err := uuid.Parse(req.DoctorID); err != nil {
		verr.WithField("doctor_id", "The selected doctor id is invalid.")
	} else {
		doctorID = id
	}
	// Patients join for themselves when patient_id is absent or unusable.
	var patientID uuid.UUID
	if id, err := uuid.Parse(req.PatientID); err == nil {
		patientID = id
	} else if principal.Role == identity.RolePatient {
		patientID = principal.PatientID
	} else if req.PatientID == "" {
		verr.WithField("patient_id", "The patient id field is required.")
	} else {
		verr.WithField("patient_id", "The selected patient id is invalid.")
	}
	if len(verr.Fields) > 0 {
		respond.Error(w, verr)
		return
	}
	if principal.Role == identity.RolePatient && patientID != principal.PatientID {
		respond.Error(w, clinicerr.Forbidden("Patients may only join the queue for themselves."))
		return
	}

	entry, err := h.service.Create(r.Context(), doctorID, patientID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, entry, "Patient added to queue successfully")
}

// List handles GET /api/v1/queues. Admins see every queue, optionally
// filtered with ?doctor_id=; doctors see their own.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}

	var doctorID uuid.UUID
	switch {
	case principal.IsAdmin():
		if raw := r.URL.Query().Get("doctor_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				respond.Error(w, clinicerr.Validation("Invalid doctor id.").WithField("doctor_id", "Invalid doctor id."))
				return
			}
			doctorID = id
		}
	case principal.Role == identity.RoleDoctor && principal.DoctorID != uuid.Nil:
		doctorID = principal.DoctorID
	default:
		respond.Error(w, clinicerr.Forbidden("Only admins or doctors may list queues."))
		return
	}

	entries, err := h.service.List(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to list queue entries", "error", err)
		respond.Error(w, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	respond.JSON(w, http.StatusOK, entries, "Queue entries fetched successfully")
}

// Get handles GET /api/v1/queues/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, clinicerr.Validation("Invalid queue entry id.").WithField("id", "Invalid queue entry id."))
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if !identity.CanViewQueueEntry(principal, entry.DoctorID, entry.PatientID) {
		respond.Error(w, clinicerr.Forbidden("You may not view this queue entry."))
		return
	}
	respond.JSON(w, http.StatusOK, entry, "Queue entry fetched successfully")
}

type updateRequest struct {
	Status   *string    `json:"status"`
	Position *int       `json:"position"`
	CalledAt *time.Time `json:"called_at"`
}

// Update handles PATCH /api/v1/queues/{id}. Only the assigned doctor or
// an admin may call, move, or close out an entry.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, clinicerr.Validation("Invalid queue entry id.").WithField("id", "Invalid queue entry id."))
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respond.Error(w, clinicerr.Validation("Invalid request body."))
		return
	}
	body, _ := json.Marshal(raw)
	var req updateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, clinicerr.Validation("Invalid request body."))
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if !identity.CanUpdateQueueEntry(principal, entry.DoctorID) {
		respond.Error(w, clinicerr.Forbidden("Only admins or the assigned doctor may update this entry."))
		return
	}

	_, calledAtSet := raw["called_at"]
	updated, err := h.service.Update(r.Context(), id, UpdatePatch{
		Status:      req.Status,
		Position:    req.Position,
		CalledAt:    req.CalledAt,
		CalledAtSet: calledAtSet,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated, "Queue entry updated successfully")
}

// Delete handles DELETE /api/v1/queues/{id}. The queued patient may
// leave; admins may remove anyone. Remaining waiting entries close ranks.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, clinicerr.Validation("Invalid queue entry id.").WithField("id", "Invalid queue entry id."))
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if !identity.CanDeleteQueueEntry(principal, entry.PatientID) {
		respond.Error(w, clinicerr.Forbidden("Only admins or the queued patient may remove this entry."))
		return
	}

	if err := h.service.RemoveAndReorder(r.Context(), id); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, nil, "Patient removed from queue successfully")
}
