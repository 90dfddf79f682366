package scheduling

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicware/clinicops/internal/api/respond"
	"github.com/clinicware/clinicops/internal/clinicerr"
	"github.com/clinicware/clinicops/internal/identity"
	"github.com/clinicware/clinicops/pkg/logging"
)

// Handler serves the appointment endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Accepted scheduled_at layouts; the date-time forms are interpreted in
// the clinic timezone.
var scheduledAtLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func (h *Handler) parseScheduledAt(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range scheduledAtLayouts {
		if t, err := time.ParseInLocation(layout, raw, h.service.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, clinicerr.Validation("The given data was invalid.").
		WithField("scheduled_at", "The scheduled at field must be a valid date.")
}

type bookRequest struct {
	DoctorID    string `json:"doctor_id"`
	PatientID   string `json:"patient_id"`
	ScheduledAt string `json:"scheduled_at"`
	Status      string `json:"status"`
}

// Create handles POST /api/v1/appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}

	var req bookRequest
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
	if req.ScheduledAt == "" {
		verr.WithField("scheduled_at", "The scheduled at field is required.")
	}
	if len(verr.Fields) > 0 {
		respond.Error(w, verr)
		return
	}

	scheduledAt, err := h.parseScheduledAt(req.ScheduledAt)
	if err != nil {
		respond.Error(w, err)
		return
	}

	var patientID uuid.UUID
	if req.PatientID != "" {
		patientID, err = uuid.Parse(req.PatientID)
		if err != nil {
			respond.Error(w, clinicerr.Validation("The given data was invalid.").
				WithField("patient_id", "The selected patient id is invalid."))
			return
		}
	}

	booking, err := NewBooking(principal, doctorID, patientID, scheduledAt, req.Status)
	if err != nil {
		respond.Error(w, err)
		return
	}
	appt, err := h.service.Book(r.Context(), booking)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, appt, "Appointment created successfully")
}

// List handles GET /api/v1/appointments, scoped by role. Admins may
// filter with doctor_id, patient_id, status, date (YYYY-MM-DD in the
// clinic timezone), limit, and offset.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}

	var f ListFilter
	q := r.URL.Query()
	if raw := q.Get("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respond.Error(w, clinicerr.Validation("Invalid doctor id.").WithField("doctor_id", "Invalid doctor id."))
			return
		}
		f.DoctorID = id
	}
	if raw := q.Get("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respond.Error(w, clinicerr.Validation("Invalid patient id.").WithField("patient_id", "Invalid patient id."))
			return
		}
		f.PatientID = id
	}
	if status := q.Get("status"); status != "" {
		if !ValidStatus(status) {
			respond.Error(w, clinicerr.Validation("The given data was invalid.").WithField("status", "The selected status is invalid."))
			return
		}
		f.Status = status
	}
	if raw := q.Get("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, h.service.Location())
		if err != nil {
			respond.Error(w, clinicerr.Validation("The given data was invalid.").WithField("date", "The date must match YYYY-MM-DD."))
			return
		}
		f.From = day
		f.To = day.AddDate(0, 0, 1)
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Offset = n
		}
	}

	appts, err := h.service.List(r.Context(), principal, f)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		respond.Error(w, err)
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	respond.JSON(w, http.StatusOK, appts, "Appointments fetched successfully")
}

// Get handles GET /api/v1/appointments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, clinicerr.Validation("Invalid appointment id.").WithField("id", "Invalid appointment id."))
		return
	}
	appt, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt, "Appointment fetched successfully")
}

type updateAppointmentRequest struct {
	DoctorID    *string `json:"doctor_id"`
	PatientID   *string `json:"patient_id"`
	ScheduledAt *string `json:"scheduled_at"`
	Status      *string `json:"status"`
}

// Update handles PATCH /api/v1/appointments/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, clinicerr.Validation("Invalid appointment id.").WithField("id", "Invalid appointment id."))
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, clinicerr.Validation("Invalid request body."))
		return
	}

	var patch UpdatePatch
	if req.DoctorID != nil {
		doctorID, err := uuid.Parse(*req.DoctorID)
		if err != nil {
			respond.Error(w, clinicerr.Validation("The given data was invalid.").
				WithField("doctor_id", "The selected doctor id is invalid."))
			return
		}
		patch.DoctorID = &doctorID
	}
	if req.PatientID != nil {
		patientID, err := uuid.Parse(*req.PatientID)
		if err != nil {
			respond.Error(w, clinicerr.Validation("The given data was invalid.").
				WithField("patient_id", "The selected patient id is invalid."))
			return
		}
		patch.PatientID = &patientID
	}
	if req.ScheduledAt != nil {
		scheduledAt, err := h.parseScheduledAt(*req.ScheduledAt)
		if err != nil {
			respond.Error(w, err)
			return
		}
		patch.ScheduledAt = &scheduledAt
	}
	patch.Status = req.Status

	appt, err := h.service.Update(r.Context(), principal, id, patch)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt, "Appointment updated successfully")
}

// Delete handles DELETE /api/v1/appointments/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, clinicerr.Forbidden("Authentication required."))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, clinicerr.Validation("Invalid appointment id.").WithField("id", "Invalid appointment id."))
		return
	}
	if err := h.service.Cancel(r.Context(), principal, id); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, nil, "Appointment cancelled successfully")
}
