package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicware/clinicops/internal/identity"
)

func newTestRouter(store *stubStore, notifier *recordingNotifier) http.Handler {
	svc := NewService(store, existsAlways(true), existsAlways(true), notifier, nil, nil)
	h := NewHandler(svc, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/queues", h.Create)
	r.Get("/api/v1/queues", h.List)
	r.Get("/api/v1/queues/{id}", h.Get)
	r.Patch("/api/v1/queues/{id}", h.Update)
	r.Delete("/api/v1/queues/{id}", h.Delete)
	return r
}

func asPrincipal(req *http.Request, p identity.Principal) *http.Request {
	return req.WithContext(identity.WithPrincipal(req.Context(), p))
}

func TestJoinQueueAsPatient(t *testing.T) {
	store := newStubStore()
	store.insertEntry = testEntry(1)
	store.insertCreated = true
	router := newTestRouter(store, &recordingNotifier{})

	body := fmt.Sprintf(`{"doctor_id":%q,"patient_id":%q}`, store.insertEntry.DoctorID, store.insertEntry.PatientID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queues", bytes.NewBufferString(body))
	req = asPrincipal(req, identity.Principal{Role: identity.RolePatient, PatientID: store.insertEntry.PatientID})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data    Entry  `json:"data"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Position != 1 {
		t.Errorf("position = %d, want 1", envelope.Data.Position)
	}
	if envelope.Message != "Patient added to queue successfully" {
		t.Errorf("message = %q", envelope.Message)
	}
}

func TestJoinQueueForAnotherPatientForbidden(t *testing.T) {
	router := newTestRouter(newStubStore(), &recordingNotifier{})

	body := fmt.Sprintf(`{"doctor_id":%q,"patient_id":%q}`, uuid.New(), uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queues", bytes.NewBufferString(body))
	req = asPrincipal(req, identity.Principal{Role: identity.RolePatient, PatientID: uuid.New()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestJoinQueueAsDoctorForbidden(t *testing.T) {
	router := newTestRouter(newStubStore(), &recordingNotifier{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queues", bytes.NewBufferString(`{}`))
	req = asPrincipal(req, identity.Principal{Role: identity.RoleDoctor, DoctorID: uuid.New()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestJoinQueueMalformedIDsInvalid(t *testing.T) {
	router := newTestRouter(newStubStore(), &recordingNotifier{})

	body := `{"doctor_id":"not-a-uuid","patient_id":"also-not-a-uuid"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queues", bytes.NewBufferString(body))
	req = asPrincipal(req, identity.Principal{Role: identity.RoleAdmin})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var envelope struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := envelope.Errors["doctor_id"]; len(got) == 0 || got[0] != "The selected doctor id is invalid." {
		t.Errorf("doctor_id detail = %v, want invalid-selection message", got)
	}
	if got := envelope.Errors["patient_id"]; len(got) == 0 || got[0] != "The selected patient id is invalid." {
		t.Errorf("patient_id detail = %v, want invalid-selection message", got)
	}
}

func TestUpdateQueueEntryStampsCalledAt(t *testing.T) {
	prior := testEntry(1)
	store := newStubStore()
	store.entries[prior.ID] = prior

	updated := *prior
	updated.Status = StatusCalled
	store.patched = &updated

	router := newTestRouter(store, &recordingNotifier{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/queues/"+prior.ID.String(), bytes.NewBufferString(`{"status":"called"}`))
	req = asPrincipal(req, identity.Principal{Role: identity.RoleDoctor, DoctorID: prior.DoctorID})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !store.lastPatch.CalledAtSet || store.lastPatch.CalledAt == nil {
		t.Errorf("called_at not stamped by service: %+v", store.lastPatch)
	}
}

func TestUpdateQueueEntryByOtherDoctorForbidden(t *testing.T) {
	prior := testEntry(1)
	store := newStubStore()
	store.entries[prior.ID] = prior
	router := newTestRouter(store, &recordingNotifier{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/queues/"+prior.ID.String(), bytes.NewBufferString(`{"status":"called"}`))
	req = asPrincipal(req, identity.Principal{Role: identity.RoleDoctor, DoctorID: uuid.New()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestLeaveQueueAsOwningPatient(t *testing.T) {
	entry := testEntry(1)
	store := newStubStore()
	store.entries[entry.ID] = entry
	store.removed = entry
	notifier := &recordingNotifier{}
	router := newTestRouter(store, notifier)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/queues/"+entry.ID.String(), nil)
	req = asPrincipal(req, identity.Principal{Role: identity.RolePatient, PatientID: entry.PatientID})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(notifier.left) != 1 {
		t.Errorf("left events = %d, want 1", len(notifier.left))
	}
}

func TestGetQueueEntryUnknownIDNotFound(t *testing.T) {
	router := newTestRouter(newStubStore(), &recordingNotifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queues/"+uuid.NewString(), nil)
	req = asPrincipal(req, identity.Principal{Role: identity.RoleAdmin})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListQueuesScopedToDoctor(t *testing.T) {
	mine := testEntry(1)
	other := testEntry(1)
	store := newStubStore()
	store.entries[mine.ID] = mine
	store.entries[other.ID] = other
	router := newTestRouter(store, &recordingNotifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queues", nil)
	req = asPrincipal(req, identity.Principal{Role: identity.RoleDoctor, DoctorID: mine.DoctorID})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data []Entry `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].ID != mine.ID {
		t.Errorf("list = %+v, want only own doctor's entries", envelope.Data)
	}
}
