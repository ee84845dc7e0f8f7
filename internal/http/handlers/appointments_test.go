package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhichiDushyant/voice-agent/internal/scheduling"
)

type stubScheduler struct {
	slots   []string
	bookErr error
	booked  *scheduling.Appointment
	getErr  error
}

func (s *stubScheduler) ListSlots(_ context.Context, _ uuid.UUID, _ time.Time, _ int) ([]string, error) {
	return s.slots, nil
}

func (s *stubScheduler) BookAppointment(_ context.Context, patientID, nurseID uuid.UUID, date time.Time, start scheduling.TimeOfDay, durationMins int) (*scheduling.Appointment, error) {
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	s.booked = &scheduling.Appointment{
		ID:           uuid.New(),
		PatientID:    patientID,
		NurseID:      nurseID,
		Date:         date,
		Start:        start,
		StartClock:   start.String(),
		DurationMins: durationMins,
		Status:       scheduling.StatusScheduled,
	}
	return s.booked, nil
}

func (s *stubScheduler) CancelAppointment(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &scheduling.Appointment{ID: id, Status: scheduling.StatusCancelled}, nil
}

func (s *stubScheduler) GetAppointment(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &scheduling.Appointment{ID: id}, nil
}

func appointmentsRouter(h *AppointmentsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/nurses/{nurseID}/availability", h.Availability)
	r.Post("/appointments", h.Book)
	r.Get("/appointments/{appointmentID}", h.Get)
	r.Delete("/appointments/{appointmentID}", h.Cancel)
	return r
}

func bookBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(BookRequest{
		PatientID: uuid.New(),
		NurseID:   uuid.New(),
		Date:      "2026-09-07",
		StartTime: "14:00",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestAvailabilityResponse(t *testing.T) {
	sched := &stubScheduler{slots: []string{"09:00", "09:30", "14:00"}}
	h := NewAppointmentsHandler(sched, 30, nil)
	nurseID := uuid.New()

	rec := httptest.NewRecorder()
	appointmentsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nurses/"+nurseID.String()+"/availability?date=2026-09-07", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, nurseID, resp.NurseID)
	assert.Equal(t, "2026-09-07", resp.Date)
	assert.Equal(t, 30, resp.DurationMins)
	assert.Equal(t, []string{"09:00", "09:30", "14:00"}, resp.Slots)
}

func TestAvailabilityRejectsBadDate(t *testing.T) {
	h := NewAppointmentsHandler(&stubScheduler{}, 30, nil)
	rec := httptest.NewRecorder()
	appointmentsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nurses/"+uuid.NewString()+"/availability?date=tomorrow", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookAppointmentSuccess(t *testing.T) {
	sched := &stubScheduler{}
	h := NewAppointmentsHandler(sched, 30, nil)

	rec := httptest.NewRecorder()
	appointmentsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments", bookBody(t)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, sched.booked)
	assert.Equal(t, "14:00", sched.booked.StartClock)
	assert.Equal(t, 30, sched.booked.DurationMins)
}

func TestBookAppointmentErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"slot conflict", scheduling.ErrSlotConflict, http.StatusConflict},
		{"outside availability", scheduling.ErrOutsideAvailability, http.StatusUnprocessableEntity},
		{"unknown patient", scheduling.ErrPatientNotFound, http.StatusNotFound},
		{"unknown nurse", scheduling.ErrNurseNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAppointmentsHandler(&stubScheduler{bookErr: tc.err}, 30, nil)
			rec := httptest.NewRecorder()
			appointmentsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments", bookBody(t)))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestCancelAppointmentNotFound(t *testing.T) {
	h := NewAppointmentsHandler(&stubScheduler{getErr: scheduling.ErrAppointmentNotFound}, 30, nil)
	rec := httptest.NewRecorder()
	appointmentsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/appointments/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
