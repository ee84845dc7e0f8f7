package telephony

import (
	"encoding/json"
	"fmt"
)

// Media-stream frame kinds exchanged over the Twilio websocket.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventHangup    = "hangup"
	EventClear     = "clear"
)

// MarkSpeechStarted is the named marker Twilio raises when the caller begins
// speaking over assistant playback.
const MarkSpeechStarted = "speech_started"

// Frame is one discriminated media-stream message.
type Frame struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
	Stop      *StopPayload  `json:"stop,omitempty"`
}

// StartPayload opens a stream and carries the call identity plus any custom
// parameters set on the <Stream> TwiML noun.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	AccountSID       string            `json:"accountSid,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaPayload carries one base64-encoded audio chunk.
type MediaPayload struct {
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp,omitempty"`
	Track     string `json:"track,omitempty"`
}

// MarkPayload is a named marker echoed back by Twilio.
type MarkPayload struct {
	Name string `json:"name"`
}

// StopPayload closes a stream.
type StopPayload struct {
	CallSID string `json:"callSid,omitempty"`
}

// ParseFrame decodes one inbound frame.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("telephony: decode frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("telephony: frame without event")
	}
	return f, nil
}

// Marshal encodes the frame for the wire.
func (f Frame) Marshal() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("telephony: encode frame: %w", err)
	}
	return data, nil
}

// IsInterrupt reports whether the frame is a caller speech_started marker.
func (f Frame) IsInterrupt() bool {
	return f.Event == EventMark && f.Mark != nil && f.Mark.Name == MarkSpeechStarted
}

// MediaFrame builds an outbound audio frame for the stream.
func MediaFrame(streamSID, payload string) Frame {
	return Frame{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     &MediaPayload{Payload: payload},
	}
}

// HangupFrame builds the frame that asks Twilio to end the call.
func HangupFrame(streamSID string) Frame {
	return Frame{Event: EventHangup, StreamSID: streamSID}
}

// ClearFrame builds the frame that flushes buffered playback on the stream.
func ClearFrame(streamSID string) Frame {
	return Frame{Event: EventClear, StreamSID: streamSID}
}
