package records

import (
	"time"

	"github.com/google/uuid"
)

// Call lifecycle states.
const (
	CallStatusInitiated  = "initiated"
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
)

// Speaker tags for conversation entries.
const (
	SpeakerPatient   = "patient"
	SpeakerAssistant = "assistant"
	SpeakerSystem    = "system"
)

// Entry kinds.
const (
	EntryTranscript = "transcript"
	EntryAction     = "action"
	EntryDatabase   = "database"
	EntrySystem     = "system"
)

// Scheduling outcome classifications.
const (
	OutcomeScheduled = "scheduled"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Call is the durable record of one phone call.
type Call struct {
	ID                   uuid.UUID  `json:"id"`
	CallSID              string     `json:"call_sid"`
	PatientPhone         string     `json:"patient_phone"`
	PatientID            *uuid.UUID `json:"patient_id,omitempty"`
	Direction            string     `json:"direction"`
	Status               string     `json:"status"`
	DurationSeconds      int        `json:"duration_seconds"`
	AppointmentScheduled bool       `json:"appointment_scheduled"`
	AppointmentID        *uuid.UUID `json:"appointment_id,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	EndedAt              *time.Time `json:"ended_at,omitempty"`
}

// ConversationEntry is one attributed turn or event in the call log.
type ConversationEntry struct {
	ID        uuid.UUID `json:"id"`
	CallID    uuid.UUID `json:"call_id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"message_text"`
	Kind      string    `json:"message_type"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CallTranscript is the finalized one-to-one transcript for a completed call.
type CallTranscript struct {
	ID                  uuid.UUID `json:"id"`
	CallID              uuid.UUID `json:"call_id"`
	FullTranscript      string    `json:"full_transcript"`
	PatientTranscript   string    `json:"patient_transcript"`
	AssistantTranscript string    `json:"assistant_transcript"`
	AppointmentSummary  string    `json:"appointment_summary,omitempty"`
	SchedulingOutcome   string    `json:"scheduling_outcome"`
	CreatedAt           time.Time `json:"created_at"`
}
