package telephony

import (
	"strings"
	"testing"
)

func TestStreamTwiML(t *testing.T) {
	doc, err := StreamTwiML("wss://example.com/ws/media-stream", map[string]string{
		"format":        "audio/pcmu",
		"patient_phone": "+15551234567",
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{
		`<Connect>`,
		`<Stream url="wss://example.com/ws/media-stream">`,
		`<Parameter name="format" value="audio/pcmu">`,
		`<Parameter name="patient_phone" value="+15551234567">`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
	// parameter order is deterministic
	if strings.Index(doc, "format") > strings.Index(doc, "patient_phone") {
		t.Errorf("parameters not sorted by name:\n%s", doc)
	}
}

func TestStreamTwiMLRequiresURL(t *testing.T) {
	if _, err := StreamTwiML("", nil); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestWelcomeStreamTwiML(t *testing.T) {
	doc, err := WelcomeStreamTwiML("wss://example.com/ws/media-stream", nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	sayIdx := strings.Index(doc, "<Say>")
	pauseIdx := strings.Index(doc, "<Pause")
	connectIdx := strings.Index(doc, "<Connect>")
	if sayIdx == -1 || pauseIdx == -1 || connectIdx == -1 {
		t.Fatalf("expected Say, Pause, Connect verbs:\n%s", doc)
	}
	if !(sayIdx < pauseIdx && pauseIdx < connectIdx) {
		t.Fatalf("verbs out of order:\n%s", doc)
	}
}
