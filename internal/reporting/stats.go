// Package reporting aggregates admin statistics over database/sql.
package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/clinicware/clinicops/internal/api/respond"
	"github.com/clinicware/clinicops/internal/clinicerr"
	"github.com/clinicware/clinicops/internal/identity"
	"github.com/clinicware/clinicops/pkg/logging"
)

// Stats is the admin dashboard snapshot.
type Stats struct {
	AppointmentsScheduled int64        `json:"appointments_scheduled"`
	AppointmentsCompleted int64        `json:"appointments_completed"`
	AppointmentsCancelled int64        `json:"appointments_cancelled"`
	BookingsToday         int64        `json:"bookings_today"`
	QueueDepths           []QueueDepth `json:"queue_depths"`
	PeriodStart           string       `json:"period_start"`
	PeriodEnd             string       `json:"period_end"`
}

// QueueDepth is one doctor's waiting count.
type QueueDepth struct {
	DoctorID string `json:"doctor_id"`
	Waiting  int64  `json:"waiting"`
}

// StatsRepository queries aggregate clinic metrics.
type StatsRepository struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

// NewStatsRepository creates a stats repository. loc is the clinic
// timezone used to bound "today"; nil means time.Local.
func NewStatsRepository(db *sql.DB, loc *time.Location) *StatsRepository {
	if db == nil {
		panic("reporting: db required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &StatsRepository{db: db, loc: loc, now: time.Now}
}

// WithClock overrides the repository clock for tests.
func (r *StatsRepository) WithClock(now func() time.Time) *StatsRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// GetStats aggregates appointment and queue metrics. Optional start/end
// bound the appointment counts; nil means all-time.
func (r *StatsRepository) GetStats(ctx context.Context, start, end *time.Time) (*Stats, error) {
	stats := &Stats{}

	var timeFilter string
	var args []any
	argIdx := 2
	if start != nil && end != nil {
		timeFilter = fmt.Sprintf(" AND scheduled_at >= $%d AND scheduled_at < $%d", argIdx, argIdx+1)
		args = append(args, *start, *end)
		stats.PeriodStart = start.Format(time.RFC3339)
		stats.PeriodEnd = end.Format(time.RFC3339)
	} else {
		stats.PeriodStart = "all-time"
		stats.PeriodEnd = "now"
	}

	countQuery := `SELECT COUNT(*) FROM appointments WHERE status = $1` + timeFilter
	counts := []struct {
		status string
		dest   *int64
	}{
		{"scheduled", &stats.AppointmentsScheduled},
		{"completed", &stats.AppointmentsCompleted},
		{"cancelled", &stats.AppointmentsCancelled},
	}
	for _, c := range counts {
		rowArgs := append([]any{c.status}, args...)
		if err := r.db.QueryRowContext(ctx, countQuery, rowArgs...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("reporting: count %s: %w", c.status, err)
		}
	}

	dayStart := r.today()
	dayEnd := dayStart.AddDate(0, 0, 1)
	todayQuery := `SELECT COUNT(*) FROM appointments WHERE scheduled_at >= $1 AND scheduled_at < $2`
	if err := r.db.QueryRowContext(ctx, todayQuery, dayStart, dayEnd).Scan(&stats.BookingsToday); err != nil {
		return nil, fmt.Errorf("reporting: count today: %w", err)
	}

	depthQuery := `
		SELECT doctor_id, COUNT(*)
		FROM queues
		WHERE status = 'waiting'
		GROUP BY doctor_id
		ORDER BY doctor_id
	`
	rows, err := r.db.QueryContext(ctx, depthQuery)
	if err != nil {
		return nil, fmt.Errorf("reporting: queue depths: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d QueueDepth
		if err := rows.Scan(&d.DoctorID, &d.Waiting); err != nil {
			return nil, fmt.Errorf("reporting: scan depth: %w", err)
		}
		stats.QueueDepths = append(stats.QueueDepths, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reporting: iterate depths: %w", err)
	}

	return stats, nil
}

func (r *StatsRepository) today() time.Time {
	now := r.now().In(r.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
}

// StatsHandler serves GET /admin/stats.
type StatsHandler struct {
	repo   *StatsRepository
	logger *logging.Logger
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(repo *StatsRepository, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{repo: repo, logger: logger}
}

// GetStats returns the aggregate snapshot. Admin only. Optional start
// and end query params (RFC3339) bound the appointment counts; provide
// both or neither.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok || !principal.IsAdmin() {
		respond.Error(w, clinicerr.Forbidden("Admin access required."))
		return
	}

	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respond.Error(w, clinicerr.Validation("The given data was invalid.").
				WithField("start", "The start time must be RFC3339."))
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			respond.Error(w, clinicerr.Validation("The given data was invalid.").
				WithField("end", "The end time must be RFC3339."))
			return
		}
		end = &t
	}
	if (start == nil) != (end == nil) {
		respond.Error(w, clinicerr.Validation("The given data was invalid.").
			WithField("start", "Provide both start and end, or neither."))
		return
	}

	stats, err := h.repo.GetStats(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to aggregate stats", "error", err)
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats, "Statistics fetched successfully")
}
