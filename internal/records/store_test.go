package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestStartCallUpserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newStoreWithDB(mock)
	callID := uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "started_at"}).AddRow(callID, now)
	mock.ExpectQuery("INSERT INTO calls").
		WithArgs(pgxmock.AnyArg(), "CA123", "+15551234567", (*uuid.UUID)(nil), "outbound").
		WillReturnRows(rows)

	call, err := store.StartCall(context.Background(), "CA123", "+15551234567", "outbound", nil)
	if err != nil {
		t.Fatalf("start call failed: %v", err)
	}
	if call.ID != callID || call.Status != CallStatusInProgress {
		t.Fatalf("unexpected call: %+v", call)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEndCallNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newStoreWithDB(mock)
	callID := uuid.New()
	mock.ExpectExec("UPDATE calls").
		WithArgs(callID, CallStatusCompleted, 42, false, (*uuid.UUID)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.EndCall(context.Background(), callID, CallStatusCompleted, 42*time.Second, nil)
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestUpsertTranscript(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newStoreWithDB(mock)
	callID := uuid.New()
	transcript := &CallTranscript{
		CallID:            callID,
		FullTranscript:    "Call CA123\n(no turns captured)\n",
		SchedulingOutcome: OutcomeFailed,
	}

	rowID := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "created_at"}).AddRow(rowID, time.Now().UTC())
	mock.ExpectQuery("ON CONFLICT \\(call_id\\)").
		WithArgs(pgxmock.AnyArg(), callID, transcript.FullTranscript, "", "", "", OutcomeFailed).
		WillReturnRows(rows)

	if err := store.UpsertTranscript(context.Background(), transcript); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if transcript.ID != rowID {
		t.Fatalf("expected persisted id %s, got %s", rowID, transcript.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newStoreWithDB(mock)
	callID := uuid.New()
	entry := &ConversationEntry{
		CallID:  callID,
		Speaker: SpeakerPatient,
		Text:    "hello",
		Kind:    EntryTranscript,
	}

	rows := pgxmock.NewRows([]string{"timestamp"}).AddRow(time.Now().UTC())
	mock.ExpectQuery("INSERT INTO conversation_logs").
		WithArgs(pgxmock.AnyArg(), callID, SpeakerPatient, "hello", EntryTranscript, "").
		WillReturnRows(rows)

	if err := store.AppendEntry(context.Background(), entry); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if entry.ID == uuid.Nil || entry.Timestamp.IsZero() {
		t.Fatalf("entry not filled in: %+v", entry)
	}
}
