package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

// ScheduleStore is the persistence surface the gateway needs.
type ScheduleStore interface {
	DaySchedule(ctx context.Context, nurseID uuid.UUID, date time.Time) (DaySchedule, error)
	AppointmentsOn(ctx context.Context, nurseID uuid.UUID, date time.Time) ([]Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Book(ctx context.Context, p BookParams) (*Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error)
	NurseExists(ctx context.Context, id uuid.UUID) (bool, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service is the scheduling gateway: every conversational or administrative
// booking operation goes through here.
type Service struct {
	store  ScheduleStore
	logger *logging.Logger
}

// NewService wires the gateway.
func NewService(store ScheduleStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger}
}

// CheckAvailability reports whether the window is inside the nurse's schedule
// and free of other non-cancelled appointments.
func (s *Service) CheckAvailability(ctx context.Context, nurseID uuid.UUID, date time.Time, start TimeOfDay, durationMins int) (bool, error) {
	day, err := s.store.DaySchedule(ctx, nurseID, date)
	if err != nil {
		return false, err
	}
	appts, err := s.store.AppointmentsOn(ctx, nurseID, date)
	if err != nil {
		return false, err
	}
	return SlotFits(day, appts, start, durationMins), nil
}

// ListSlots computes the open slot start times for the nurse on date.
func (s *Service) ListSlots(ctx context.Context, nurseID uuid.UUID, date time.Time, durationMins int) ([]string, error) {
	day, err := s.store.DaySchedule(ctx, nurseID, date)
	if err != nil {
		return nil, err
	}
	appts, err := s.store.AppointmentsOn(ctx, nurseID, date)
	if err != nil {
		return nil, err
	}
	return AvailableSlots(day, appts, durationMins), nil
}

// BookAppointment validates the window against the nurse's schedule and then
// books atomically. The store re-checks overlap under a per-nurse-day lock,
// so a concurrent booking for the same window surfaces as ErrSlotConflict.
func (s *Service) BookAppointment(ctx context.Context, patientID, nurseID uuid.UUID, date time.Time, start TimeOfDay, durationMins int) (*Appointment, error) {
	ok, err := s.store.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}
	ok, err = s.store.NurseExists(ctx, nurseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNurseNotFound
	}

	day, err := s.store.DaySchedule(ctx, nurseID, date)
	if err != nil {
		return nil, err
	}
	window, open := day.EffectiveInterval()
	end := start + TimeOfDay(durationMins)
	if !open || start < window.Start || end > window.End {
		return nil, ErrOutsideAvailability
	}

	when := fmt.Sprintf("%s at %s", date.Format("Monday, January 2"), start.String())
	appt, err := s.store.Book(ctx, BookParams{
		PatientID:    patientID,
		NurseID:      nurseID,
		Date:         date,
		Start:        start,
		DurationMins: durationMins,
		Type:         TypeConsultation,
		Notices: []BookingNotice{
			{
				RecipientType: "patient",
				RecipientID:   patientID,
				Type:          "appointment_confirmed",
				Message:       fmt.Sprintf("Your appointment on %s has been scheduled.", when),
			},
			{
				RecipientType: "nurse",
				RecipientID:   nurseID,
				Type:          "appointment_assigned",
				Message:       fmt.Sprintf("New appointment assigned on %s.", when),
			},
		},
	})
	if err != nil {
		if errors.Is(err, ErrSlotConflict) {
			s.logger.Warn("booking conflict", "nurse_id", nurseID, "date", date.Format("2006-01-02"), "start", start.String())
		}
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"nurse_id", nurseID,
		"date", appt.Date.Format("2006-01-02"),
		"start", appt.StartClock,
	)
	return appt, nil
}

// CancelAppointment marks the appointment cancelled.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "nurse_id", appt.NurseID)
	return appt, nil
}

// GetAppointment loads one appointment.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.GetAppointment(ctx, id)
}

// AvailabilitySummary renders a multi-day digest of open slots, one line per
// day, for inclusion in the assistant's instructions.
func (s *Service) AvailabilitySummary(ctx context.Context, nurseID uuid.UUID, from time.Time, days, durationMins int) (string, error) {
	var b strings.Builder
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i)
		slots, err := s.ListSlots(ctx, nurseID, date, durationMins)
		if err != nil {
			return "", err
		}
		label := date.Format("Monday, January 2")
		if len(slots) == 0 {
			fmt.Fprintf(&b, "%s: no openings\n", label)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(slots, ", "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
