package doctors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicware/clinicops/internal/api/respond"
	"github.com/clinicware/clinicops/internal/availability"
	"github.com/clinicware/clinicops/internal/clinicerr"
	"github.com/clinicware/clinicops/internal/identity"
	"github.com/clinicware/clinicops/pkg/logging"
)

// Handler serves the read-only doctor surface plus availability updates.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a doctors handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /api/v1/doctors.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list doctors", "error", err)
		respond.Error(w, err)
		return
	}
	if docs == nil {
		docs = []*Doctor{}
	}
	respond.JSON(w, http.StatusOK, docs, "Doctors fetched successfully")
}

// Get handles GET /api/v1/doctors/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, clinicerr.Validation("Invalid doctor id.").WithField("id", "Invalid doctor id."))
		return
	}
	doc, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, doc, "Doctor fetched successfully")
}

type updateAvailabilityRequest struct {
	Availability []availability.Slot `json:"availability"`
}

// UpdateAvailability handles PUT /api/v1/doctors/{id}/availability.
// Admins may edit any doctor; a doctor may edit only their own slots.
func (h *Handler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, clinicerr.Validation("Invalid doctor id.").WithField("id", "Invalid doctor id."))
		return
	}
	if !principal.IsAdmin() && !(principal.Role == identity.RoleDoctor && principal.DoctorID == id) {
		respond.Error(w, clinicerr.Forbidden("Only admins or the doctor may edit availability."))
		return
	}

	var req updateAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, clinicerr.Validation("Invalid request body."))
		return
	}

	doc, err := h.store.UpdateAvailability(r.Context(), id, req.Availability)
	if err != nil {
		h.logger.Error("failed to update availability", "doctor_id", id, "error", err)
		respond.Error(w, err)
		return
	}
	h.logger.Info("doctor availability updated", "doctor_id", id, "slots", len(doc.Availability))
	respond.JSON(w, http.StatusOK, doc, "Doctor availability updated successfully")
}
