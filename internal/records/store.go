package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCallNotFound means no call row matched.
var ErrCallNotFound = errors.New("records: call not found")

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists calls, conversation logs, and transcripts.
type Store struct {
	pool db
}

// NewStore creates a store backed by pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithDB(d db) *Store {
	if d == nil {
		panic("records: db required")
	}
	return &Store{pool: d}
}

// StartCall records the call's opening row. Retried opens for the same call
// SID land on the existing row.
func (s *Store) StartCall(ctx context.Context, callSID, patientPhone, direction string, patientID *uuid.UUID) (*Call, error) {
	query := `
		INSERT INTO calls (id, call_sid, patient_phone, patient_id, direction, status)
		VALUES ($1, $2, $3, $4, $5, 'in_progress')
		ON CONFLICT (call_sid)
		DO UPDATE SET status = 'in_progress', patient_id = COALESCE(calls.patient_id, EXCLUDED.patient_id)
		RETURNING id, started_at
	`
	call := &Call{
		CallSID:      callSID,
		PatientPhone: patientPhone,
		PatientID:    patientID,
		Direction:    direction,
		Status:       CallStatusInProgress,
	}
	if err := s.pool.QueryRow(ctx, query, uuid.New(), callSID, patientPhone, patientID, direction).Scan(&call.ID, &call.StartedAt); err != nil {
		return nil, fmt.Errorf("records: start call: %w", err)
	}
	return call, nil
}

// EndCall finalizes the call row.
func (s *Store) EndCall(ctx context.Context, callID uuid.UUID, status string, duration time.Duration, appointmentID *uuid.UUID) error {
	query := `
		UPDATE calls
		SET status = $2,
		    duration_seconds = $3,
		    appointment_scheduled = $4,
		    appointment_id = COALESCE($5, appointment_id),
		    ended_at = NOW()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, callID, status, int(duration.Seconds()), appointmentID != nil, appointmentID)
	if err != nil {
		return fmt.Errorf("records: end call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// AppendEntry writes one conversation log row.
func (s *Store) AppendEntry(ctx context.Context, e *ConversationEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO conversation_logs (id, call_id, speaker, message_text, message_type, intent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING timestamp
	`
	if err := s.pool.QueryRow(ctx, query, e.ID, e.CallID, e.Speaker, e.Text, e.Kind, e.Intent).Scan(&e.Timestamp); err != nil {
		return fmt.Errorf("records: append entry: %w", err)
	}
	return nil
}

// EntriesFor returns the call's log in chronological order.
func (s *Store) EntriesFor(ctx context.Context, callID uuid.UUID) ([]ConversationEntry, error) {
	query := `
		SELECT id, call_id, speaker, message_text, message_type, COALESCE(intent, ''), timestamp
		FROM conversation_logs
		WHERE call_id = $1
		ORDER BY timestamp, id
	`
	rows, err := s.pool.Query(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("records: load entries: %w", err)
	}
	defer rows.Close()
	var out []ConversationEntry
	for rows.Next() {
		var e ConversationEntry
		if err := rows.Scan(&e.ID, &e.CallID, &e.Speaker, &e.Text, &e.Kind, &e.Intent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("records: scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: iterate entries: %w", err)
	}
	return out, nil
}

// UpsertTranscript writes the finalized transcript with update-or-create
// semantics keyed by call id, so a retried flush cannot duplicate rows.
func (s *Store) UpsertTranscript(ctx context.Context, t *CallTranscript) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO call_transcripts (id, call_id, full_transcript, patient_transcript, assistant_transcript, appointment_summary, scheduling_outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (call_id)
		DO UPDATE SET full_transcript = EXCLUDED.full_transcript,
		              patient_transcript = EXCLUDED.patient_transcript,
		              assistant_transcript = EXCLUDED.assistant_transcript,
		              appointment_summary = EXCLUDED.appointment_summary,
		              scheduling_outcome = EXCLUDED.scheduling_outcome
		RETURNING id, created_at
	`
	if err := s.pool.QueryRow(ctx, query,
		t.ID, t.CallID, t.FullTranscript, t.PatientTranscript, t.AssistantTranscript, t.AppointmentSummary, t.SchedulingOutcome,
	).Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("records: upsert transcript: %w", err)
	}
	return nil
}

// TranscriptFor loads the finalized transcript for a call.
func (s *Store) TranscriptFor(ctx context.Context, callID uuid.UUID) (*CallTranscript, error) {
	query := `
		SELECT id, call_id, full_transcript, patient_transcript, assistant_transcript, COALESCE(appointment_summary, ''), scheduling_outcome, created_at
		FROM call_transcripts
		WHERE call_id = $1
	`
	var t CallTranscript
	if err := s.pool.QueryRow(ctx, query, callID).Scan(
		&t.ID, &t.CallID, &t.FullTranscript, &t.PatientTranscript, &t.AssistantTranscript, &t.AppointmentSummary, &t.SchedulingOutcome, &t.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("records: load transcript: %w", err)
	}
	return &t, nil
}

// GetCall loads one call row by id.
func (s *Store) GetCall(ctx context.Context, id uuid.UUID) (*Call, error) {
	query := `
		SELECT id, call_sid, patient_phone, patient_id, direction, status, duration_seconds, appointment_scheduled, appointment_id, started_at, ended_at
		FROM calls
		WHERE id = $1
	`
	return s.scanCall(s.pool.QueryRow(ctx, query, id))
}

// GetCallBySID loads one call row by provider SID.
func (s *Store) GetCallBySID(ctx context.Context, callSID string) (*Call, error) {
	query := `
		SELECT id, call_sid, patient_phone, patient_id, direction, status, duration_seconds, appointment_scheduled, appointment_id, started_at, ended_at
		FROM calls
		WHERE call_sid = $1
	`
	return s.scanCall(s.pool.QueryRow(ctx, query, callSID))
}

// ListCalls returns recent calls, newest first.
func (s *Store) ListCalls(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, call_sid, patient_phone, patient_id, direction, status, duration_seconds, appointment_scheduled, appointment_id, started_at, ended_at
		FROM calls
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("records: list calls: %w", err)
	}
	defer rows.Close()
	var out []Call
	for rows.Next() {
		c, err := s.scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: iterate calls: %w", err)
	}
	return out, nil
}

func (s *Store) scanCall(row pgx.Row) (*Call, error) {
	var c Call
	if err := row.Scan(
		&c.ID, &c.CallSID, &c.PatientPhone, &c.PatientID, &c.Direction, &c.Status,
		&c.DurationSeconds, &c.AppointmentScheduled, &c.AppointmentID, &c.StartedAt, &c.EndedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("records: scan call: %w", err)
	}
	return &c, nil
}
