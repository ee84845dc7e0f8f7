package realtime

// Event type strings produced by the realtime API.
const (
	EventSessionCreated  = "session.created"
	EventSessionUpdated  = "session.updated"
	EventResponseCreated = "response.created"
	EventResponseDone    = "response.done"
	EventAudioDelta      = "response.output_audio.delta"
	EventSpeechStarted   = "conversation.item.input_audio_buffer.speech_started"
	EventSpeechStopped   = "conversation.item.input_audio_buffer.speech_stopped"
	EventInputCommitted  = "conversation.item.input_audio_buffer.committed"
	EventOutputAudioDone = "conversation.item.output_audio.done"
	EventError           = "error"
)

// Event is one inbound realtime message. Only the fields this system
// consumes are modelled.
type Event struct {
	Type             string             `json:"type"`
	Delta            string             `json:"delta,omitempty"`
	Response         *ResponseInfo      `json:"response,omitempty"`
	InputAudioBuffer *TranscriptPayload `json:"input_audio_buffer,omitempty"`
	OutputAudio      *TranscriptPayload `json:"output_audio,omitempty"`
	Error            *ErrorInfo         `json:"error,omitempty"`
}

// ResponseInfo identifies an in-flight generated reply.
type ResponseInfo struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// TranscriptPayload carries transcript text on committed/done events.
type TranscriptPayload struct {
	Transcript string `json:"transcript,omitempty"`
}

// ErrorInfo is the machine-readable error attached to an error event.
type ErrorInfo struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Fatal reports whether the session cannot proceed past this error. Rate
// limiting and quota exhaustion end the call; everything else is either
// recoverable or droppable.
func (e *ErrorInfo) Fatal() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case "rate_limit_exceeded", "insufficient_quota", "quota_exceeded":
		return true
	}
	return e.Type == "rate_limit_error"
}

// ActiveResponseConflict reports whether the error means a response is
// already in flight; the right reaction is to wait, not to tear down.
func (e *ErrorInfo) ActiveResponseConflict() bool {
	if e == nil {
		return false
	}
	return e.Code == "conversation_already_has_active_response"
}

// SessionConfig is the payload pushed after session.created.
type SessionConfig struct {
	Model        string
	Voice        string
	Instructions string
}

type sessionUpdateMsg struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	Type             string       `json:"type"`
	Model            string       `json:"model"`
	OutputModalities []string     `json:"output_modalities"`
	Audio            audioPayload `json:"audio"`
	Instructions     string       `json:"instructions"`
}

type audioPayload struct {
	Input  audioInput  `json:"input"`
	Output audioOutput `json:"output"`
}

type audioInput struct {
	Format        formatSpec    `json:"format"`
	TurnDetection turnDetection `json:"turn_detection"`
}

type audioOutput struct {
	Format formatSpec `json:"format"`
	Voice  string     `json:"voice"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type turnDetection struct {
	Type string `json:"type"`
}

// SessionUpdate builds the configuration message: narrow-band audio both
// ways, server-side voice activity detection, and the per-call instructions.
func SessionUpdate(cfg SessionConfig) any {
	return sessionUpdateMsg{
		Type: "session.update",
		Session: sessionPayload{
			Type:             "realtime",
			Model:            cfg.Model,
			OutputModalities: []string{"audio"},
			Audio: audioPayload{
				Input: audioInput{
					Format:        formatSpec{Type: "audio/pcmu"},
					TurnDetection: turnDetection{Type: "server_vad"},
				},
				Output: audioOutput{
					Format: formatSpec{Type: "audio/pcmu"},
					Voice:  cfg.Voice,
				},
			},
			Instructions: cfg.Instructions,
		},
	}
}

type audioAppendMsg struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// AudioAppend builds an input-buffer append carrying one base64 audio chunk.
func AudioAppend(payload string) any {
	return audioAppendMsg{Type: "input_audio_buffer.append", Audio: payload}
}

type itemCreateMsg struct {
	Type string      `json:"type"`
	Item messageItem `json:"item"`
}

type messageItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []itemContent `json:"content"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AssistantMessage injects assistant-authored text into the conversation.
func AssistantMessage(text string) any {
	return itemCreateMsg{
		Type: "conversation.item.create",
		Item: messageItem{
			Type:    "message",
			Role:    "assistant",
			Content: []itemContent{{Type: "input_text", Text: text}},
		},
	}
}

type interruptMsg struct {
	Type string `json:"type"`
}

// Interrupt builds the barge-in signal that cuts off an active response.
func Interrupt() any {
	return interruptMsg{Type: "interrupt"}
}

// ResponseCreate asks the model to speak. Sent after injecting a
// conversation item so the item is voiced.
func ResponseCreate() any {
	return interruptMsg{Type: "response.create"}
}
