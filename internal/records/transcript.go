package records

import (
	"fmt"
	"strings"
	"time"
)

// TranscriptHeader carries the call identity block rendered at the top of a
// finalized transcript.
type TranscriptHeader struct {
	CallSID      string
	PatientName  string
	PatientPhone string
	NurseName    string
	StartedAt    time.Time
	Duration     time.Duration
}

// BuildTranscript assembles the finalized transcript from the turn log. An
// empty log still produces a minimal record so every call leaves an
// auditable row.
func BuildTranscript(h TranscriptHeader, entries []ConversationEntry) *CallTranscript {
	var full, patient, assistant strings.Builder

	fmt.Fprintf(&full, "Call %s\n", h.CallSID)
	if h.PatientName != "" {
		fmt.Fprintf(&full, "Patient: %s (%s)\n", h.PatientName, h.PatientPhone)
	} else if h.PatientPhone != "" {
		fmt.Fprintf(&full, "Patient: %s\n", h.PatientPhone)
	}
	if h.NurseName != "" {
		fmt.Fprintf(&full, "Nurse: %s\n", h.NurseName)
	}
	fmt.Fprintf(&full, "Started: %s\n", h.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&full, "Duration: %ds\n\n", int(h.Duration.Seconds()))

	turns := 0
	for _, e := range entries {
		if e.Kind != EntryTranscript {
			continue
		}
		turns++
		switch e.Speaker {
		case SpeakerPatient:
			fmt.Fprintf(&full, "Patient: %s\n", e.Text)
			fmt.Fprintf(&patient, "%s\n", e.Text)
		case SpeakerAssistant:
			fmt.Fprintf(&full, "Assistant: %s\n", e.Text)
			fmt.Fprintf(&assistant, "%s\n", e.Text)
		}
	}
	if turns == 0 {
		full.WriteString("(no turns captured)\n")
	}

	return &CallTranscript{
		FullTranscript:      full.String(),
		PatientTranscript:   strings.TrimRight(patient.String(), "\n"),
		AssistantTranscript: strings.TrimRight(assistant.String(), "\n"),
		SchedulingOutcome:   ClassifyOutcome(entries),
	}
}

var bookingWords = []string{"scheduled", "confirmed", "booked", "set"}

var bookingSubjects = []string{"appointment", "meeting", "call"}

var farewellPhrases = []string{
	"goodbye", "bye", "thank you", "thanks", "that's all", "that's it",
	"i'm done", "i'm finished", "have a good day", "take care",
}

// ClassifyOutcome applies the keyword heuristic over the aggregate turn log:
// booking language wins over plain farewells, anything else is a failure to
// conclude. Best-effort, substring-based.
func ClassifyOutcome(entries []ConversationEntry) string {
	var closed bool
	for _, e := range entries {
		if e.Kind != EntryTranscript && e.Kind != EntryDatabase {
			continue
		}
		text := strings.ToLower(e.Text)
		if containsAny(text, bookingWords) && containsAny(text, bookingSubjects) {
			return OutcomeScheduled
		}
		if containsAny(text, farewellPhrases) {
			closed = true
		}
	}
	if closed {
		return OutcomeCompleted
	}
	return OutcomeFailed
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
