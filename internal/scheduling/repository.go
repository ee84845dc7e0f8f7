package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository persists schedules and appointments.
type Repository struct {
	pool db
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(d db) *Repository {
	if d == nil {
		panic("scheduling: db required")
	}
	return &Repository{pool: d}
}

// DaySchedule loads the weekly rule and any override for the nurse on date.
func (r *Repository) DaySchedule(ctx context.Context, nurseID uuid.UUID, date time.Time) (DaySchedule, error) {
	var sched DaySchedule

	weeklyQuery := `
		SELECT start_time, end_time, is_available
		FROM nurse_availability
		WHERE nurse_id = $1 AND weekday = $2
	`
	var wStart, wEnd pgtype.Time
	var wAvail bool
	err := r.pool.QueryRow(ctx, weeklyQuery, nurseID, int(date.Weekday())).Scan(&wStart, &wEnd, &wAvail)
	switch {
	case err == nil:
		sched.Weekly = &WeeklyRule{
			NurseID:   nurseID,
			Weekday:   date.Weekday(),
			Start:     fromPGTime(wStart),
			End:       fromPGTime(wEnd),
			Available: wAvail,
		}
	case errors.Is(err, pgx.ErrNoRows):
		// no recurring rule for this weekday
	default:
		return DaySchedule{}, fmt.Errorf("scheduling: load weekly rule: %w", err)
	}

	overrideQuery := `
		SELECT start_time, end_time, is_available, COALESCE(reason, '')
		FROM availability_overrides
		WHERE nurse_id = $1 AND override_date = $2
	`
	var oStart, oEnd pgtype.Time
	var oAvail bool
	var reason string
	err = r.pool.QueryRow(ctx, overrideQuery, nurseID, dateOnly(date)).Scan(&oStart, &oEnd, &oAvail, &reason)
	switch {
	case err == nil:
		ov := &Override{NurseID: nurseID, Date: dateOnly(date), Available: oAvail, Reason: reason}
		if oStart.Valid {
			s := fromPGTime(oStart)
			ov.Start = &s
		}
		if oEnd.Valid {
			e := fromPGTime(oEnd)
			ov.End = &e
		}
		sched.Override = ov
	case errors.Is(err, pgx.ErrNoRows):
		// no override for this date
	default:
		return DaySchedule{}, fmt.Errorf("scheduling: load override: %w", err)
	}

	return sched, nil
}

// AppointmentsOn returns all non-cancelled appointments for the nurse on date.
func (r *Repository) AppointmentsOn(ctx context.Context, nurseID uuid.UUID, date time.Time) ([]Appointment, error) {
	query := `
		SELECT id, patient_id, nurse_id, date, start_time, duration_minutes, status, type, COALESCE(notes, ''), created_at
		FROM appointments
		WHERE nurse_id = $1 AND date = $2 AND status != 'cancelled'
		ORDER BY start_time
	`
	rows, err := r.pool.Query(ctx, query, nurseID, dateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("scheduling: load appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// GetAppointment loads one appointment by id.
func (r *Repository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT id, patient_id, nurse_id, date, start_time, duration_minutes, status, type, COALESCE(notes, ''), created_at
		FROM appointments
		WHERE id = $1
	`
	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("scheduling: load appointment: %w", err)
	}
	return appt, nil
}

// BookingNotice is one notification row written alongside a booking.
type BookingNotice struct {
	RecipientType string
	RecipientID   uuid.UUID
	Type          string
	Message       string
	SendEmail     bool
}

// BookParams describes one booking attempt.
type BookParams struct {
	PatientID    uuid.UUID
	NurseID      uuid.UUID
	Date         time.Time
	Start        TimeOfDay
	DurationMins int
	Type         AppointmentType
	Notes        string
	Notices      []BookingNotice
}

// Book inserts the appointment and its notification rows in one transaction.
// Bookings for the same nurse and date serialize on a transaction-scoped
// advisory lock before the overlap re-check; locking the existing rows is
// not enough, an empty day has no rows to lock and two inserts would both
// pass the check.
func (r *Repository) Book(ctx context.Context, p BookParams) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: begin booking: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := p.NurseID.String() + ":" + dateOnly(p.Date).Format("2006-01-02")
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return nil, fmt.Errorf("scheduling: lock day: %w", err)
	}

	checkQuery := `
		SELECT start_time, duration_minutes
		FROM appointments
		WHERE nurse_id = $1 AND date = $2 AND status != 'cancelled'
	`
	rows, err := tx.Query(ctx, checkQuery, p.NurseID, dateOnly(p.Date))
	if err != nil {
		return nil, fmt.Errorf("scheduling: check day: %w", err)
	}
	want := Interval{Start: p.Start, End: p.Start + TimeOfDay(p.DurationMins)}
	conflict := false
	for rows.Next() {
		var start pgtype.Time
		var dur int
		if err := rows.Scan(&start, &dur); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scheduling: scan day row: %w", err)
		}
		taken := Interval{Start: fromPGTime(start), End: fromPGTime(start) + TimeOfDay(dur)}
		if overlaps(want, taken) {
			conflict = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate day rows: %w", err)
	}
	if conflict {
		return nil, ErrSlotConflict
	}

	appt := &Appointment{
		ID:           uuid.New(),
		PatientID:    p.PatientID,
		NurseID:      p.NurseID,
		Date:         dateOnly(p.Date),
		Start:        p.Start,
		StartClock:   p.Start.String(),
		DurationMins: p.DurationMins,
		Status:       StatusScheduled,
		Type:         p.Type,
		Notes:        p.Notes,
	}
	insertQuery := `
		INSERT INTO appointments (id, patient_id, nurse_id, date, start_time, duration_minutes, status, type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insertQuery,
		appt.ID,
		appt.PatientID,
		appt.NurseID,
		appt.Date,
		toPGTime(appt.Start),
		appt.DurationMins,
		string(appt.Status),
		string(appt.Type),
		appt.Notes,
	).Scan(&appt.CreatedAt); err != nil {
		return nil, fmt.Errorf("scheduling: insert appointment: %w", err)
	}

	noticeQuery := `
		INSERT INTO notifications (id, recipient_type, recipient_id, notification_type, message, appointment_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, n := range p.Notices {
		if _, err := tx.Exec(ctx, noticeQuery, uuid.New(), n.RecipientType, n.RecipientID, n.Type, n.Message, appt.ID); err != nil {
			return nil, fmt.Errorf("scheduling: insert notification: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("scheduling: commit booking: %w", err)
	}
	return appt, nil
}

// Cancel marks the appointment cancelled and returns the updated row.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status != 'cancelled'
		RETURNING id, patient_id, nurse_id, date, start_time, duration_minutes, status, type, COALESCE(notes, ''), created_at
	`
	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("scheduling: cancel appointment: %w", err)
	}
	return appt, nil
}

// NurseExists reports whether an active nurse row exists.
func (r *Repository) NurseExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM nurses WHERE id = $1 AND is_active`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scheduling: check nurse: %w", err)
	}
	return true, nil
}

// PatientExists reports whether a patient row exists.
func (r *Repository) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM patients WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scheduling: check patient: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var a Appointment
	var start pgtype.Time
	var status, typ string
	if err := row.Scan(&a.ID, &a.PatientID, &a.NurseID, &a.Date, &start, &a.DurationMins, &status, &typ, &a.Notes, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Start = fromPGTime(start)
	a.StartClock = a.Start.String()
	a.Status = AppointmentStatus(status)
	a.Type = AppointmentType(typ)
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate appointments: %w", err)
	}
	return out, nil
}

func toPGTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 60 * 1_000_000, Valid: true}
}

func fromPGTime(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / (60 * 1_000_000))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
