package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Delivery states for notification rows.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Recipient kinds.
const (
	RecipientPatient = "patient"
	RecipientNurse   = "nurse"
)

// Notification is one queued message. Rows are written inside the booking
// transaction; delivery happens out of band.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	RecipientType string     `json:"recipient_type"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	Type          string     `json:"notification_type"`
	Message       string     `json:"message"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and updates queued notification rows.
type Repository struct {
	pool db
}

// NewRepository creates a repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("notify: nil pool")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(d db) *Repository {
	return &Repository{pool: d}
}

// Pending returns the oldest undelivered notifications, capped at limit.
func (r *Repository) Pending(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, recipient_type, recipient_id, notification_type, message, appointment_id, status, created_at, sent_at
		FROM notifications
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list pending: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientType, &n.RecipientID, &n.Type, &n.Message, &n.AppointmentID, &n.Status, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate pending: %w", err)
	}
	return out, nil
}

// MarkSent stamps a notification delivered.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET status = 'sent', sent_at = now() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("notify: mark sent: %w", err)
	}
	return nil
}

// MarkFailed stamps a notification undeliverable so it is not retried
// forever.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET status = 'failed' WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("notify: mark failed: %w", err)
	}
	return nil
}

// ForAppointment lists all notification rows tied to one appointment.
func (r *Repository) ForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Notification, error) {
	query := `
		SELECT id, recipient_type, recipient_id, notification_type, message, appointment_id, status, created_at, sent_at
		FROM notifications
		WHERE appointment_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("notify: list for appointment: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientType, &n.RecipientID, &n.Type, &n.Message, &n.AppointmentID, &n.Status, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate for appointment: %w", err)
	}
	return out, nil
}
