package session

import (
	"github.com/KhichiDushyant/voice-agent/internal/directory"
)

// State is the lifecycle phase of one bridged call.
type State int

const (
	// StateConnecting covers the window between websocket accept and the
	// telephony start frame.
	StateConnecting State = iota
	// StateContextLoading resolves the caller to a patient, assignment and
	// nurse before the assistant is configured.
	StateContextLoading
	// StateAwaitingFirstUtterance holds the greeting until the caller has
	// said something.
	StateAwaitingFirstUtterance
	// StateConversing is the steady turn-taking phase.
	StateConversing
	// StateEnding means graceful termination has begun.
	StateEnding
	// StateClosed means both legs are torn down and records are flushed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateContextLoading:
		return "context_loading"
	case StateAwaitingFirstUtterance:
		return "awaiting_first_utterance"
	case StateConversing:
		return "conversing"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// CallContext is the resolved caller identity for one call. A nil
// *CallContext means the lookup has not completed yet.
type CallContext struct {
	Patient *directory.Patient
	Nurse   *directory.Nurse
	// Bootstrap is true when the patient had no primary assignment for
	// today and a default active nurse was assigned instead.
	Bootstrap bool
}
