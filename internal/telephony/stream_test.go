package telephony

import (
	"encoding/json"
	"testing"
)

func TestParseFrameStart(t *testing.T) {
	raw := `{"event":"start","start":{"streamSid":"MZ123","callSid":"CA456","customParameters":{"patient_phone":"+15551234567"}}}`
	f, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if f.Event != EventStart || f.Start == nil {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if f.Start.StreamSID != "MZ123" || f.Start.CallSID != "CA456" {
		t.Fatalf("unexpected identifiers: %+v", f.Start)
	}
	if f.Start.CustomParameters["patient_phone"] != "+15551234567" {
		t.Fatalf("custom parameters lost: %+v", f.Start.CustomParameters)
	}
}

func TestParseFrameMedia(t *testing.T) {
	raw := `{"event":"media","streamSid":"MZ123","media":{"payload":"//7+","timestamp":"100"}}`
	f, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if f.Event != EventMedia || f.Media == nil || f.Media.Payload != "//7+" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestParseFrameErrors(t *testing.T) {
	if _, err := ParseFrame([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed frame")
	}
	if _, err := ParseFrame([]byte(`{"media":{"payload":"x"}}`)); err == nil {
		t.Fatal("expected error for frame without event")
	}
}

func TestIsInterrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"speech started mark", `{"event":"mark","mark":{"name":"speech_started"}}`, true},
		{"other mark", `{"event":"mark","mark":{"name":"playback_done"}}`, false},
		{"media", `{"event":"media","media":{"payload":"eA=="}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame([]byte(tt.raw))
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if f.IsInterrupt() != tt.want {
				t.Fatalf("IsInterrupt() = %v, want %v", f.IsInterrupt(), tt.want)
			}
		})
	}
}

func TestOutboundFrames(t *testing.T) {
	media := MediaFrame("MZ123", "AAAA")
	data, err := json.Marshal(media)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	round, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if round.Event != EventMedia || round.StreamSID != "MZ123" || round.Media.Payload != "AAAA" {
		t.Fatalf("round trip mismatch: %+v", round)
	}

	hangup := HangupFrame("MZ123")
	if hangup.Event != EventHangup || hangup.StreamSID != "MZ123" {
		t.Fatalf("unexpected hangup frame: %+v", hangup)
	}
	if hangup.Media != nil || hangup.Mark != nil {
		t.Fatalf("hangup frame must carry no payload: %+v", hangup)
	}
}
