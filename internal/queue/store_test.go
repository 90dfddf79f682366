package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/clinicware/clinicops/internal/clinicerr"
)

func entryRow(e *Entry) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "doctor_id", "patient_id", "position", "status", "called_at", "created_at", "updated_at"}).
		AddRow(e.ID, e.DoctorID, e.PatientID, e.Position, e.Status, e.CalledAt, e.CreatedAt, e.UpdatedAt)
}

func testEntry(position int) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Position:  position,
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertWaitingAssignsNextPosition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	want := testEntry(3)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(want.DoctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id, doctor_id, patient_id").
		WithArgs(want.DoctorID, want.PatientID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`COALESCE\(MAX\(position\), 0\)`).
		WithArgs(want.DoctorID).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO queues").
		WithArgs(pgxmock.AnyArg(), want.DoctorID, want.PatientID, 3).
		WillReturnRows(entryRow(want))
	mock.ExpectCommit()

	store := NewStore(mock)
	entry, created, err := store.InsertWaiting(context.Background(), want.DoctorID, want.PatientID, false)
	if err != nil {
		t.Fatalf("InsertWaiting: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}
	if entry.Position != 3 {
		t.Errorf("position = %d, want 3", entry.Position)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertWaitingIfAbsentReturnsExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	existing := testEntry(1)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(existing.DoctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id, doctor_id, patient_id").
		WithArgs(existing.DoctorID, existing.PatientID).
		WillReturnRows(entryRow(existing))
	mock.ExpectCommit()

	store := NewStore(mock)
	entry, created, err := store.InsertWaiting(context.Background(), existing.DoctorID, existing.PatientID, true)
	if err != nil {
		t.Fatalf("InsertWaiting: %v", err)
	}
	if created {
		t.Fatal("expected created=false for existing waiting entry")
	}
	if entry.ID != existing.ID {
		t.Errorf("entry id = %s, want %s", entry.ID, existing.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertWaitingDuplicateJoinConflicts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	existing := testEntry(1)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(existing.DoctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id, doctor_id, patient_id").
		WithArgs(existing.DoctorID, existing.PatientID).
		WillReturnRows(entryRow(existing))
	mock.ExpectRollback()

	store := NewStore(mock)
	_, _, err = store.InsertWaiting(context.Background(), existing.DoctorID, existing.PatientID, false)
	domainErr, ok := clinicerr.As(err)
	if !ok || domainErr.Kind != clinicerr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if domainErr.Message != "Patient is already in the queue for this doctor." {
		t.Errorf("message = %q", domainErr.Message)
	}
}

func TestDeleteAndReorderClosesGaps(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	removed := testEntry(1)
	secondID := uuid.New()
	thirdID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id, patient_id").
		WithArgs(removed.ID).
		WillReturnRows(entryRow(removed))
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(removed.DoctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM queues").
		WithArgs(removed.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("SELECT id, position").
		WithArgs(removed.DoctorID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "position"}).
			AddRow(secondID, 2).
			AddRow(thirdID, 3))
	mock.ExpectExec("UPDATE queues SET position").
		WithArgs(secondID, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE queues SET position").
		WithArgs(thirdID, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	store := NewStore(mock)
	got, remaining, err := store.DeleteAndReorder(context.Background(), removed.ID)
	if err != nil {
		t.Fatalf("DeleteAndReorder: %v", err)
	}
	if got.ID != removed.ID {
		t.Errorf("removed id = %s, want %s", got.ID, removed.ID)
	}
	if remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAndReorderSkipsAlignedPositions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	removed := testEntry(3)
	firstID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id, patient_id").
		WithArgs(removed.ID).
		WillReturnRows(entryRow(removed))
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(removed.DoctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM queues").
		WithArgs(removed.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("SELECT id, position").
		WithArgs(removed.DoctorID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "position"}).AddRow(firstID, 1))
	mock.ExpectCommit()

	store := NewStore(mock)
	if _, _, err := store.DeleteAndReorder(context.Background(), removed.ID); err != nil {
		t.Fatalf("DeleteAndReorder: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyPatchNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	status := StatusCalled
	mock.ExpectQuery("UPDATE queues SET").
		WithArgs(id, status).
		WillReturnError(pgx.ErrNoRows)

	store := NewStore(mock)
	_, err = store.ApplyPatch(context.Background(), id, UpdatePatch{Status: &status})
	domainErr, ok := clinicerr.As(err)
	if !ok || domainErr.Kind != clinicerr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetByIDWrapsUnexpectedErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT id, doctor_id, patient_id").
		WithArgs(id).
		WillReturnError(boom)

	store := NewStore(mock)
	_, err = store.GetByID(context.Background(), id)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if _, ok := clinicerr.As(err); ok {
		t.Fatal("driver error must not map to a domain error")
	}
}
