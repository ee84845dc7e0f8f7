package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is minutes since midnight.
type TimeOfDay int

// ParseClock parses "HH:MM" or "HH:MM:SS" into a TimeOfDay.
func ParseClock(s string) (TimeOfDay, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("scheduling: parse clock %q: %w", s, err)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("scheduling: clock %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// String formats as a 24-hour "HH:MM" clock string.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Interval is a half-open [Start, End) window within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// AppointmentStatus enumerates appointment lifecycle states.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// AppointmentType enumerates visit categories.
type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow_up"
	TypeEmergency    AppointmentType = "emergency"
	TypeRoutine      AppointmentType = "routine"
)

// Appointment is one booked visit.
type Appointment struct {
	ID           uuid.UUID         `json:"id"`
	PatientID    uuid.UUID         `json:"patient_id"`
	NurseID      uuid.UUID         `json:"nurse_id"`
	Date         time.Time         `json:"date"`
	Start        TimeOfDay         `json:"-"`
	StartClock   string            `json:"start_time"`
	DurationMins int               `json:"duration_minutes"`
	Status       AppointmentStatus `json:"status"`
	Type         AppointmentType   `json:"type"`
	Notes        string            `json:"notes,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Window returns the appointment's occupied interval.
func (a Appointment) Window() Interval {
	return Interval{Start: a.Start, End: a.Start + TimeOfDay(a.DurationMins)}
}

// WeeklyRule is a nurse's recurring availability for one weekday.
type WeeklyRule struct {
	NurseID   uuid.UUID    `json:"nurse_id"`
	Weekday   time.Weekday `json:"weekday"`
	Start     TimeOfDay    `json:"-"`
	End       TimeOfDay    `json:"-"`
	Available bool         `json:"is_available"`
}

// Override is a date-specific exception to the weekly rule. Start and End
// are nil when the override carries no interval.
type Override struct {
	NurseID   uuid.UUID  `json:"nurse_id"`
	Date      time.Time  `json:"override_date"`
	Start     *TimeOfDay `json:"-"`
	End       *TimeOfDay `json:"-"`
	Available bool       `json:"is_available"`
	Reason    string     `json:"reason,omitempty"`
}

// DaySchedule is the loaded availability picture for one nurse on one date.
type DaySchedule struct {
	Weekly   *WeeklyRule
	Override *Override
}

// EffectiveInterval resolves the working window for the day. An override for
// the exact date wins: unavailable means no window regardless of any interval
// on the record, available without both endpoints also yields no window.
// Otherwise the weekly rule applies when marked available.
func (d DaySchedule) EffectiveInterval() (Interval, bool) {
	if d.Override != nil {
		if !d.Override.Available || d.Override.Start == nil || d.Override.End == nil {
			return Interval{}, false
		}
		return Interval{Start: *d.Override.Start, End: *d.Override.End}, true
	}
	if d.Weekly == nil || !d.Weekly.Available {
		return Interval{}, false
	}
	return Interval{Start: d.Weekly.Start, End: d.Weekly.End}, true
}
