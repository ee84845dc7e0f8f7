package realtime

import (
	"encoding/json"
	"testing"
)

func TestEventDecoding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		test func(t *testing.T, ev Event)
	}{
		{
			name: "audio delta",
			raw:  `{"type":"response.output_audio.delta","delta":"AAAA"}`,
			test: func(t *testing.T, ev Event) {
				if ev.Type != EventAudioDelta || ev.Delta != "AAAA" {
					t.Fatalf("unexpected event: %+v", ev)
				}
			},
		},
		{
			name: "response created",
			raw:  `{"type":"response.created","response":{"id":"resp_1","status":"in_progress"}}`,
			test: func(t *testing.T, ev Event) {
				if ev.Response == nil || ev.Response.ID != "resp_1" {
					t.Fatalf("unexpected event: %+v", ev)
				}
			},
		},
		{
			name: "committed transcript",
			raw:  `{"type":"conversation.item.input_audio_buffer.committed","input_audio_buffer":{"transcript":"next monday at ten"}}`,
			test: func(t *testing.T, ev Event) {
				if ev.InputAudioBuffer == nil || ev.InputAudioBuffer.Transcript != "next monday at ten" {
					t.Fatalf("unexpected event: %+v", ev)
				}
			},
		},
		{
			name: "assistant transcript",
			raw:  `{"type":"conversation.item.output_audio.done","output_audio":{"transcript":"you are booked"}}`,
			test: func(t *testing.T, ev Event) {
				if ev.OutputAudio == nil || ev.OutputAudio.Transcript != "you are booked" {
					t.Fatalf("unexpected event: %+v", ev)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Event
			if err := json.Unmarshal([]byte(tt.raw), &ev); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			tt.test(t, ev)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      *ErrorInfo
		fatal    bool
		conflict bool
	}{
		{"nil", nil, false, false},
		{"rate limited", &ErrorInfo{Type: "rate_limit_error", Code: "rate_limit_exceeded"}, true, false},
		{"quota", &ErrorInfo{Code: "insufficient_quota"}, true, false},
		{"active response", &ErrorInfo{Code: "conversation_already_has_active_response"}, false, true},
		{"protocol", &ErrorInfo{Type: "invalid_request_error", Code: "unknown_parameter"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Fatal(); got != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", got, tt.fatal)
			}
			if got := tt.err.ActiveResponseConflict(); got != tt.conflict {
				t.Errorf("ActiveResponseConflict() = %v, want %v", got, tt.conflict)
			}
		})
	}
}

func TestSessionUpdateShape(t *testing.T) {
	data, err := json.Marshal(SessionUpdate(SessionConfig{
		Model:        "gpt-realtime",
		Voice:        "alloy",
		Instructions: "be helpful",
	}))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded["type"] != "session.update" {
		t.Fatalf("unexpected type: %v", decoded["type"])
	}
	session := decoded["session"].(map[string]any)
	if session["instructions"] != "be helpful" {
		t.Fatalf("instructions lost: %v", session)
	}
	audio := session["audio"].(map[string]any)
	input := audio["input"].(map[string]any)
	if input["format"].(map[string]any)["type"] != "audio/pcmu" {
		t.Fatalf("expected pcmu input format: %v", input)
	}
	if input["turn_detection"].(map[string]any)["type"] != "server_vad" {
		t.Fatalf("expected server vad: %v", input)
	}
	output := audio["output"].(map[string]any)
	if output["voice"] != "alloy" {
		t.Fatalf("voice lost: %v", output)
	}
}

func TestOutboundMessages(t *testing.T) {
	data, _ := json.Marshal(AudioAppend("base64chunk"))
	if string(data) != `{"type":"input_audio_buffer.append","audio":"base64chunk"}` {
		t.Fatalf("unexpected append message: %s", data)
	}

	data, _ = json.Marshal(Interrupt())
	if string(data) != `{"type":"interrupt"}` {
		t.Fatalf("unexpected interrupt message: %s", data)
	}

	data, _ = json.Marshal(AssistantMessage("hello there"))
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	item := msg["item"].(map[string]any)
	if item["role"] != "assistant" {
		t.Fatalf("unexpected role: %v", item)
	}
	content := item["content"].([]any)[0].(map[string]any)
	if content["type"] != "input_text" || content["text"] != "hello there" {
		t.Fatalf("unexpected content: %v", content)
	}
}
