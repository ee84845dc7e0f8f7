package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/KhichiDushyant/voice-agent/internal/scheduling"
	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

// Scheduler is the slice of the scheduling service the HTTP surface uses.
type Scheduler interface {
	ListSlots(ctx context.Context, nurseID uuid.UUID, date time.Time, durationMins int) ([]string, error)
	BookAppointment(ctx context.Context, patientID, nurseID uuid.UUID, date time.Time, start scheduling.TimeOfDay, durationMins int) (*scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

// AppointmentsHandler exposes availability queries and appointment booking.
type AppointmentsHandler struct {
	scheduler        Scheduler
	slotDurationMins int
	logger           *logging.Logger
}

// NewAppointmentsHandler creates the appointments handler.
func NewAppointmentsHandler(scheduler Scheduler, slotDurationMins int, logger *logging.Logger) *AppointmentsHandler {
	if slotDurationMins <= 0 {
		slotDurationMins = 30
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{scheduler: scheduler, slotDurationMins: slotDurationMins, logger: logger}
}

// AvailabilityResponse lists bookable slot starts for one nurse and date.
type AvailabilityResponse struct {
	NurseID      uuid.UUID `json:"nurse_id"`
	Date         string    `json:"date"`
	DurationMins int       `json:"duration_minutes"`
	Slots        []string  `json:"slots"`
}

// Availability is GET /nurses/{nurseID}/availability?date=YYYY-MM-DD&duration=30.
func (h *AppointmentsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	nurseID, ok := urlUUID(w, r, "nurseID")
	if !ok {
		return
	}

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			jsonError(w, "invalid date", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	duration := h.slotDurationMins
	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonError(w, "invalid duration", http.StatusBadRequest)
			return
		}
		duration = parsed
	}

	slots, err := h.scheduler.ListSlots(r.Context(), nurseID, date, duration)
	if err != nil {
		if errors.Is(err, scheduling.ErrNurseNotFound) {
			jsonError(w, "nurse not found", http.StatusNotFound)
			return
		}
		h.logger.Error("availability query failed", "error", err, "nurse_id", nurseID)
		jsonError(w, "availability query failed", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		NurseID:      nurseID,
		Date:         date.Format("2006-01-02"),
		DurationMins: duration,
		Slots:        slots,
	})
}

// BookRequest is the POST /appointments body.
type BookRequest struct {
	PatientID    uuid.UUID `json:"patient_id"`
	NurseID      uuid.UUID `json:"nurse_id"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	DurationMins int       `json:"duration_minutes,omitempty"`
}

// Book is POST /appointments.
func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil || req.NurseID == uuid.Nil {
		jsonError(w, "patient_id and nurse_id are required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		jsonError(w, "invalid date", http.StatusBadRequest)
		return
	}
	start, err := scheduling.ParseClock(req.StartTime)
	if err != nil {
		jsonError(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	duration := req.DurationMins
	if duration <= 0 {
		duration = h.slotDurationMins
	}

	appt, err := h.scheduler.BookAppointment(r.Context(), req.PatientID, req.NurseID, date, start, duration)
	if err != nil {
		switch {
		case errors.Is(err, scheduling.ErrSlotConflict):
			jsonError(w, "requested slot is no longer available", http.StatusConflict)
		case errors.Is(err, scheduling.ErrOutsideAvailability):
			jsonError(w, "requested time is outside the nurse's availability", http.StatusUnprocessableEntity)
		case errors.Is(err, scheduling.ErrPatientNotFound):
			jsonError(w, "patient not found", http.StatusNotFound)
		case errors.Is(err, scheduling.ErrNurseNotFound):
			jsonError(w, "nurse not found", http.StatusNotFound)
		default:
			h.logger.Error("booking failed", "error", err, "nurse_id", req.NurseID)
			jsonError(w, "booking failed", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Get is GET /appointments/{appointmentID}.
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	appt, err := h.scheduler.GetAppointment(r.Context(), id)
	if err != nil {
		if errors.Is(err, scheduling.ErrAppointmentNotFound) {
			jsonError(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get appointment failed", "error", err, "appointment_id", id)
		jsonError(w, "get appointment failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Cancel is DELETE /appointments/{appointmentID}.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	appt, err := h.scheduler.CancelAppointment(r.Context(), id)
	if err != nil {
		if errors.Is(err, scheduling.ErrAppointmentNotFound) {
			jsonError(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("cancel appointment failed", "error", err, "appointment_id", id)
		jsonError(w, "cancel appointment failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}
