package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/clinicware/clinicops/internal/clinicerr"
)

func apptRow(a *Appointment) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "doctor_id", "patient_id", "scheduled_at", "status", "created_at", "updated_at"}).
		AddRow(a.ID, a.DoctorID, a.PatientID, a.ScheduledAt, a.Status, a.CreatedAt, a.UpdatedAt)
}

func testAppointment() *Appointment {
	now := time.Now().UTC()
	return &Appointment{
		ID:          uuid.New(),
		DoctorID:    uuid.New(),
		PatientID:   uuid.New(),
		ScheduledAt: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		Status:      StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateInsertsWhenSlotFree(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	want := testAppointment()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(want.DoctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(want.DoctorID, want.ScheduledAt).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), want.DoctorID, want.PatientID, want.ScheduledAt, StatusScheduled).
		WillReturnRows(apptRow(want))
	mock.ExpectCommit()

	store := NewStore(mock)
	appt, err := store.Create(context.Background(), want.DoctorID, want.PatientID, want.ScheduledAt, StatusScheduled)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.ID != want.ID {
		t.Errorf("id = %s, want %s", appt.ID, want.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRejectsOccupiedSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	want := testAppointment()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(want.DoctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(want.DoctorID, want.ScheduledAt).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	store := NewStore(mock)
	_, err = store.Create(context.Background(), want.DoctorID, want.PatientID, want.ScheduledAt, StatusScheduled)
	domainErr, ok := clinicerr.As(err)
	if !ok || domainErr.Kind != clinicerr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if domainErr.Message != "Doctor already has an appointment at this time." {
		t.Errorf("message = %q", domainErr.Message)
	}
}

func TestUpdateRechecksOnlyWhenDoctorAndTimeBothChange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	want := testAppointment()
	newDoctor := uuid.New()
	newTime := want.ScheduledAt.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(want.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(newDoctor).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(newDoctor, newTime, want.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("UPDATE appointments SET").
		WithArgs(want.ID, newDoctor, newTime).
		WillReturnRows(apptRow(want))
	mock.ExpectCommit()

	store := NewStore(mock)
	if _, err := store.Update(context.Background(), want.ID, UpdatePatch{DoctorID: &newDoctor, ScheduledAt: &newTime}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateTimeOnlySkipsRecheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	want := testAppointment()
	newTime := want.ScheduledAt.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(want.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("UPDATE appointments SET").
		WithArgs(want.ID, newTime).
		WillReturnRows(apptRow(want))
	mock.ExpectCommit()

	store := NewStore(mock)
	if _, err := store.Update(context.Background(), want.ID, UpdatePatch{ScheduledAt: &newTime}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateOccupiedTargetSlotConflicts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	want := testAppointment()
	newDoctor := uuid.New()
	newTime := want.ScheduledAt.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(want.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(newDoctor).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(newDoctor, newTime, want.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	store := NewStore(mock)
	_, err = store.Update(context.Background(), want.ID, UpdatePatch{DoctorID: &newDoctor, ScheduledAt: &newTime})
	domainErr, ok := clinicerr.As(err)
	if !ok || domainErr.Kind != clinicerr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeleteReturnsFinalState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	want := testAppointment()
	mock.ExpectQuery("DELETE FROM appointments").
		WithArgs(want.ID).
		WillReturnRows(apptRow(want))

	store := NewStore(mock)
	appt, err := store.Delete(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if appt.DoctorID != want.DoctorID || appt.PatientID != want.PatientID {
		t.Errorf("deleted = %+v", appt)
	}
}
