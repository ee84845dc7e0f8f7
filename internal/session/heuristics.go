package session

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/KhichiDushyant/voice-agent/internal/records"
	"github.com/KhichiDushyant/voice-agent/internal/scheduling"
)

// EndDetector decides whether an utterance signals the conversation is over.
type EndDetector interface {
	ShouldEnd(utterance string) bool
}

// SchedulingIntent is a date/time reference recognized in an utterance.
type SchedulingIntent struct {
	Date    time.Time
	Start   scheduling.TimeOfDay
	HasDate bool
	HasTime bool
}

// Complete reports whether the intent carries enough to act on.
func (i SchedulingIntent) Complete() bool {
	return i.HasDate && i.HasTime
}

// IntentExtractor recognizes scheduling references in caller utterances.
type IntentExtractor interface {
	Extract(utterance string, now time.Time) SchedulingIntent
}

// OutcomeClassifier labels a finished call from its turn log.
type OutcomeClassifier interface {
	Classify(entries []records.ConversationEntry) string
}

// endPhrases are terminal phrases matched as substrings of a lowered
// utterance.
var endPhrases = []string{
	"goodbye", "bye", "thank you", "thanks",
	"that's all", "that's it", "i'm done", "i'm finished",
	"end call", "hang up", "disconnect",
	"see you later", "talk to you later",
	"have a good day", "take care",
	"appointment scheduled", "meeting scheduled", "confirmed", "done",
	"okay bye", "ok bye", "alright bye",
	"sounds good", "perfect",
}

var endVerbs = []string{"scheduled", "confirmed", "booked", "set"}

var endSubjects = []string{"appointment", "meeting", "call"}

// lexiconEndDetector is the default phrase-based end heuristic.
type lexiconEndDetector struct{}

// NewEndDetector returns the default phrase-lexicon detector.
func NewEndDetector() EndDetector {
	return lexiconEndDetector{}
}

func (lexiconEndDetector) ShouldEnd(utterance string) bool {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return false
	}
	for _, p := range endPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	// Compound form: a booking verb plus a booking subject anywhere in
	// the utterance, e.g. "your appointment is booked".
	for _, v := range endVerbs {
		if !strings.Contains(text, v) {
			continue
		}
		for _, subj := range endSubjects {
			if strings.Contains(text, subj) {
				return true
			}
		}
	}
	return false
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday, "sunday": time.Sunday,
}

var (
	meridiemTimeRE = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)`)
	clockTimeRE    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	weekdayRE      = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

// patternIntentExtractor is the default regex-based date/time recognizer.
type patternIntentExtractor struct{}

// NewIntentExtractor returns the default pattern-based extractor.
func NewIntentExtractor() IntentExtractor {
	return patternIntentExtractor{}
}

func (patternIntentExtractor) Extract(utterance string, now time.Time) SchedulingIntent {
	text := strings.ToLower(utterance)
	var intent SchedulingIntent

	switch {
	case strings.Contains(text, "tomorrow"):
		intent.Date = dateOnly(now.AddDate(0, 0, 1))
		intent.HasDate = true
	case strings.Contains(text, "today"):
		intent.Date = dateOnly(now)
		intent.HasDate = true
	default:
		if m := weekdayRE.FindStringSubmatch(text); m != nil {
			target := weekdayNames[m[1]]
			ahead := (int(target) - int(now.Weekday()) + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			intent.Date = dateOnly(now.AddDate(0, 0, ahead))
			intent.HasDate = true
		}
	}

	if m := meridiemTimeRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem := strings.ReplaceAll(m[3], ".", "")
		if meridiem == "pm" && hour != 12 {
			hour += 12
		} else if meridiem == "am" && hour == 12 {
			hour = 0
		}
		if hour < 24 && minute < 60 {
			intent.Start = scheduling.TimeOfDay(hour*60 + minute)
			intent.HasTime = true
		}
	} else if m := clockTimeRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 24 && minute < 60 {
			intent.Start = scheduling.TimeOfDay(hour*60 + minute)
			intent.HasTime = true
		}
	}

	return intent
}

// keywordOutcomeClassifier is the default turn-log classifier.
type keywordOutcomeClassifier struct{}

// NewOutcomeClassifier returns the default keyword classifier.
func NewOutcomeClassifier() OutcomeClassifier {
	return keywordOutcomeClassifier{}
}

func (keywordOutcomeClassifier) Classify(entries []records.ConversationEntry) string {
	return records.ClassifyOutcome(entries)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
