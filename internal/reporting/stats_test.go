package reporting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/clinicware/clinicops/internal/identity"
)

var statsNow = time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC)

func newStatsRepo(t *testing.T) (*StatsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := NewStatsRepository(db, time.UTC).WithClock(func() time.Time { return statsNow })
	return repo, mock
}

func expectCounts(mock sqlmock.Sqlmock, scheduled, completed, cancelled, today int64) {
	mock.ExpectQuery("SELECT COUNT").WithArgs("scheduled").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(scheduled))
	mock.ExpectQuery("SELECT COUNT").WithArgs("completed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(completed))
	mock.ExpectQuery("SELECT COUNT").WithArgs("cancelled").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(cancelled))
	dayStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").WithArgs(dayStart, dayStart.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(today))
}

func TestGetStatsAllTime(t *testing.T) {
	repo, mock := newStatsRepo(t)

	doctorA := uuid.NewString()
	doctorB := uuid.NewString()
	expectCounts(mock, 12, 7, 3, 4)
	mock.ExpectQuery("SELECT doctor_id, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"doctor_id", "count"}).
			AddRow(doctorA, 2).
			AddRow(doctorB, 5))

	stats, err := repo.GetStats(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.AppointmentsScheduled != 12 || stats.AppointmentsCompleted != 7 || stats.AppointmentsCancelled != 3 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.BookingsToday != 4 {
		t.Errorf("bookings today = %d, want 4", stats.BookingsToday)
	}
	if len(stats.QueueDepths) != 2 || stats.QueueDepths[1].Waiting != 5 {
		t.Errorf("depths = %+v", stats.QueueDepths)
	}
	if stats.PeriodStart != "all-time" {
		t.Errorf("period start = %q", stats.PeriodStart)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetStatsBoundedPeriod(t *testing.T) {
	repo, mock := newStatsRepo(t)

	start := statsNow.AddDate(0, -1, 0)
	end := statsNow
	mock.ExpectQuery("SELECT COUNT").WithArgs("scheduled", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT").WithArgs("completed", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT COUNT").WithArgs("cancelled", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	dayStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").WithArgs(dayStart, dayStart.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT doctor_id, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"doctor_id", "count"}))

	stats, err := repo.GetStats(context.Background(), &start, &end)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.PeriodStart != start.Format(time.RFC3339) {
		t.Errorf("period start = %q", stats.PeriodStart)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatsHandlerRequiresAdmin(t *testing.T) {
	repo, _ := newStatsRepo(t)
	h := NewStatsHandler(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req = req.WithContext(identity.WithPrincipal(req.Context(), identity.Principal{Role: identity.RoleDoctor}))

	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestStatsHandlerRejectsHalfBoundedPeriod(t *testing.T) {
	repo, _ := newStatsRepo(t)
	h := NewStatsHandler(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats?start=2026-03-01T00:00:00Z", nil)
	req = req.WithContext(identity.WithPrincipal(req.Context(), identity.Principal{Role: identity.RoleAdmin}))

	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}
