package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/KhichiDushyant/voice-agent/internal/directory"
	"github.com/KhichiDushyant/voice-agent/internal/observability/metrics"
	"github.com/KhichiDushyant/voice-agent/internal/realtime"
	"github.com/KhichiDushyant/voice-agent/internal/records"
	"github.com/KhichiDushyant/voice-agent/internal/scheduling"
	"github.com/KhichiDushyant/voice-agent/internal/telephony"
	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

// callerLeg is the telephony websocket. *websocket.Conn satisfies it.
type callerLeg interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// assistantLeg is the realtime AI websocket. *realtime.Conn satisfies it.
type assistantLeg interface {
	ReadEvent() (realtime.Event, error)
	Send(msg any) error
	Close() error
}

// callLog is the slice of the records store the bridge writes through.
type callLog interface {
	StartCall(ctx context.Context, callSID, patientPhone, direction string, patientID *uuid.UUID) (*records.Call, error)
	EndCall(ctx context.Context, callID uuid.UUID, status string, duration time.Duration, appointmentID *uuid.UUID) error
	AppendEntry(ctx context.Context, e *records.ConversationEntry) error
	UpsertTranscript(ctx context.Context, t *records.CallTranscript) error
}

// contextDirectory resolves the caller to a patient and nurse.
type contextDirectory interface {
	PatientByPhone(ctx context.Context, phone string) (*directory.Patient, error)
	PrimaryAssignment(ctx context.Context, patientID uuid.UUID, date time.Time) (*directory.Assignment, error)
	DefaultActiveNurse(ctx context.Context) (*directory.Nurse, error)
	EnsurePrimaryAssignment(ctx context.Context, patientID, nurseID uuid.UUID, date time.Time) (*directory.Assignment, error)
	NurseByID(ctx context.Context, id uuid.UUID) (*directory.Nurse, error)
}

// scheduler is the slice of the scheduling service the bridge calls.
type scheduler interface {
	CheckAvailability(ctx context.Context, nurseID uuid.UUID, date time.Time, start scheduling.TimeOfDay, durationMins int) (bool, error)
	BookAppointment(ctx context.Context, patientID, nurseID uuid.UUID, date time.Time, start scheduling.TimeOfDay, durationMins int) (*scheduling.Appointment, error)
	AvailabilitySummary(ctx context.Context, nurseID uuid.UUID, from time.Time, days, durationMins int) (string, error)
}

// Options wires a Session. Zero-value durations and nil heuristics fall back
// to defaults.
type Options struct {
	Logger    *logging.Logger
	Records   callLog
	Directory contextDirectory
	Scheduler scheduler
	Live      *LiveStore
	Audio     *records.AudioWriter
	Archive   *records.ArchiveStore
	Metrics   *metrics.CallMetrics

	Model string
	Voice string

	SlotDurationMins int
	AvailabilityDays int
	GreetingDelay    time.Duration
	SilenceTimeout   time.Duration
	MaxCallDuration  time.Duration
	WatchdogInterval time.Duration
	SaveAudio        bool

	End      EndDetector
	Intents  IntentExtractor
	Classify OutcomeClassifier
}

func (o *Options) fillDefaults() {
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.SlotDurationMins <= 0 {
		o.SlotDurationMins = 30
	}
	if o.AvailabilityDays <= 0 {
		o.AvailabilityDays = 7
	}
	if o.GreetingDelay <= 0 {
		o.GreetingDelay = 250 * time.Millisecond
	}
	if o.SilenceTimeout <= 0 {
		o.SilenceTimeout = 8 * time.Second
	}
	if o.MaxCallDuration <= 0 {
		o.MaxCallDuration = 5 * time.Minute
	}
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = time.Second
	}
	if o.End == nil {
		o.End = NewEndDetector()
	}
	if o.Intents == nil {
		o.Intents = NewIntentExtractor()
	}
	if o.Classify == nil {
		o.Classify = NewOutcomeClassifier()
	}
}

// Session bridges one telephony media stream to one realtime AI session. It
// owns both legs and all per-call state; Run blocks until teardown finishes.
type Session struct {
	opts Options
	tw   callerLeg
	ai   assistantLeg

	twMu sync.Mutex // caller leg writes come from two goroutines

	mu             sync.Mutex
	state          State
	callCtx        *CallContext
	call           *records.Call
	streamSID      string
	callSID        string
	patientPhone   string
	direction      string
	activeResponse string
	aiReady        bool
	configured     bool
	greeted        bool
	appointmentID  *uuid.UUID
	entries        []records.ConversationEntry
	callerAudio    []string
	assistantAudio []string
	startedAt      time.Time
	lastActivity   time.Time
	finalStatus    string
	finalOutcome   string
	finalDuration  time.Duration

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	teardown sync.Once
}

// New builds a session over an accepted telephony connection and a dialed
// realtime connection.
func New(tw callerLeg, ai assistantLeg, opts Options) *Session {
	opts.fillDefaults()
	now := time.Now()
	return &Session{
		opts:         opts,
		tw:           tw,
		ai:           ai,
		state:        StateConnecting,
		startedAt:    now,
		lastActivity: now,
	}
}

// Run drives the call to completion. It always returns with both legs
// closed and the durable record flushed.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(3)
	go s.readCaller(ctx)
	go s.readAssistant(ctx)
	go s.watch(ctx)
	s.wg.Wait()

	// Reads can exit before terminate ran (context cancelled upstream).
	s.terminate(records.CallStatusCompleted, "session context done")
}

// Result reports the final status, scheduling outcome, and duration once the
// session has closed. Values are zero until flush has run.
func (s *Session) Result() (status, outcome string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalStatus, s.finalOutcome, s.finalDuration
}

// CurrentState is safe to call from other goroutines.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	if st > s.state {
		s.state = st
	}
	s.mu.Unlock()
	if st > prev {
		s.opts.Logger.Debug("call state changed", "call_sid", s.sid(), "from", prev.String(), "to", st.String())
	}
}

func (s *Session) sid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSID
}

func (s *Session) bumpActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// readCaller is the telephony receive loop.
func (s *Session) readCaller(ctx context.Context) {
	defer s.wg.Done()
	for {
		_, data, err := s.tw.ReadMessage()
		if err != nil {
			s.terminate(records.CallStatusCompleted, "telephony stream closed")
			return
		}
		frame, err := telephony.ParseFrame(data)
		if err != nil {
			s.opts.Logger.Warn("dropping malformed telephony frame", "call_sid", s.sid(), "error", err)
			continue
		}
		switch frame.Event {
		case telephony.EventConnected:
			// Handshake noise.
		case telephony.EventStart:
			s.handleStart(ctx, frame.Start)
		case telephony.EventMedia:
			s.handleCallerMedia(frame.Media)
		case telephony.EventMark:
			if frame.IsInterrupt() {
				s.handleInterrupt()
			}
		case telephony.EventStop:
			s.terminate(records.CallStatusCompleted, "caller hung up")
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Session) handleStart(ctx context.Context, start *telephony.StartPayload) {
	if start == nil {
		return
	}
	phone := start.CustomParameters["patient_phone"]
	if phone == "" {
		phone = start.CustomParameters["from"]
	}
	direction := start.CustomParameters["direction"]
	if direction == "" {
		direction = "inbound"
	}

	s.mu.Lock()
	s.streamSID = start.StreamSID
	s.callSID = start.CallSID
	s.patientPhone = phone
	s.direction = direction
	s.mu.Unlock()

	s.setState(StateContextLoading)
	s.opts.Logger.Info("media stream started",
		"call_sid", start.CallSID,
		"stream_sid", start.StreamSID,
		"patient_phone", logging.MaskPhone(phone))

	s.loadContext(ctx)
	s.maybeConfigure()
}

// loadContext resolves caller phone to patient, assignment and nurse, opens
// the durable call row, and mirrors live state. Lookup failures leave the
// context nil; the assistant then runs in unregistered-caller mode.
func (s *Session) loadContext(ctx context.Context) {
	cc := &CallContext{}
	var patientID *uuid.UUID

	if s.opts.Directory != nil {
		patient, err := s.opts.Directory.PatientByPhone(ctx, s.patientPhone)
		if err != nil && !errors.Is(err, directory.ErrPatientNotFound) {
			s.opts.Logger.Error("patient lookup failed", "call_sid", s.sid(), "error", err)
		}
		if patient != nil {
			cc.Patient = patient
			patientID = &patient.ID
			cc.Nurse = s.resolveNurse(ctx, patient.ID, &cc.Bootstrap)
		}
	}

	if s.opts.Records != nil {
		call, err := s.opts.Records.StartCall(ctx, s.callSID, s.patientPhone, s.direction, patientID)
		if err != nil {
			s.opts.Logger.Error("call record open failed", "call_sid", s.callSID, "error", err)
		} else {
			s.mu.Lock()
			s.call = call
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.callCtx = cc
	s.mu.Unlock()

	s.mirrorLive(ctx, cc)
}

// resolveNurse returns today's primary-assignment nurse, assigning a default
// active nurse when the patient has none.
func (s *Session) resolveNurse(ctx context.Context, patientID uuid.UUID, bootstrap *bool) *directory.Nurse {
	today := dateOnly(time.Now())
	assignment, err := s.opts.Directory.PrimaryAssignment(ctx, patientID, today)
	if err != nil {
		s.opts.Logger.Error("assignment lookup failed", "call_sid", s.sid(), "error", err)
		return nil
	}
	if assignment != nil {
		nurse, err := s.opts.Directory.NurseByID(ctx, assignment.NurseID)
		if err != nil {
			s.opts.Logger.Error("nurse lookup failed", "call_sid", s.sid(), "error", err)
			return nil
		}
		return nurse
	}

	nurse, err := s.opts.Directory.DefaultActiveNurse(ctx)
	if err != nil {
		if !errors.Is(err, directory.ErrNoActiveNurse) {
			s.opts.Logger.Error("default nurse lookup failed", "call_sid", s.sid(), "error", err)
		}
		return nil
	}
	if _, err := s.opts.Directory.EnsurePrimaryAssignment(ctx, patientID, nurse.ID, today); err != nil {
		s.opts.Logger.Error("assignment bootstrap failed", "call_sid", s.sid(), "error", err)
		return nurse
	}
	*bootstrap = true
	s.opts.Logger.Info("assigned default nurse for unassigned patient",
		"call_sid", s.sid(), "nurse_id", nurse.ID)
	return nurse
}

func (s *Session) mirrorLive(ctx context.Context, cc *CallContext) {
	if s.opts.Live == nil {
		return
	}
	state := &LiveState{
		CallSID:      s.callSID,
		StreamSID:    s.streamSID,
		PatientPhone: s.patientPhone,
		Phase:        s.CurrentState().String(),
		StartedAt:    s.startedAt.UTC(),
	}
	if cc.Patient != nil {
		state.PatientName = cc.Patient.Name
	}
	if cc.Nurse != nil {
		state.NurseName = cc.Nurse.Name
	}
	if err := s.opts.Live.Save(ctx, state); err != nil {
		s.opts.Logger.Warn("live state mirror failed", "call_sid", s.callSID, "error", err)
	}
}

// maybeConfigure pushes session.update once both the AI session exists and
// the call context is loaded, in either arrival order.
func (s *Session) maybeConfigure() {
	s.mu.Lock()
	ready := s.aiReady && s.callCtx != nil && !s.configured
	if ready {
		s.configured = true
	}
	cc := s.callCtx
	s.mu.Unlock()
	if !ready {
		return
	}

	availability := s.availabilitySummary(cc)
	cfg := realtime.SessionConfig{
		Model:        s.opts.Model,
		Voice:        s.opts.Voice,
		Instructions: BuildInstructions(cc, availability),
	}
	if err := s.ai.Send(realtime.SessionUpdate(cfg)); err != nil {
		s.opts.Logger.Error("session configure failed", "call_sid", s.sid(), "error", err)
		s.terminate(records.CallStatusFailed, "assistant configuration failed")
	}
}

func (s *Session) availabilitySummary(cc *CallContext) string {
	if s.opts.Scheduler == nil || cc == nil || cc.Nurse == nil {
		return ""
	}
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	summary, err := s.opts.Scheduler.AvailabilitySummary(ctx, cc.Nurse.ID, time.Now(), s.opts.AvailabilityDays, s.opts.SlotDurationMins)
	if err != nil {
		s.opts.Logger.Warn("availability summary failed", "call_sid", s.sid(), "error", err)
		return ""
	}
	return summary
}

func (s *Session) handleCallerMedia(media *telephony.MediaPayload) {
	if media == nil || media.Payload == "" {
		return
	}
	s.mu.Lock()
	if s.state >= StateEnding {
		s.mu.Unlock()
		return
	}
	if s.opts.SaveAudio {
		s.callerAudio = append(s.callerAudio, media.Payload)
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if err := s.ai.Send(realtime.AudioAppend(media.Payload)); err != nil {
		s.terminate(records.CallStatusFailed, "assistant audio forward failed")
	}
}

// handleInterrupt forwards caller barge-in, but only while the assistant has
// a response in flight. An interrupt with nothing to interrupt would cancel
// the next response instead.
func (s *Session) handleInterrupt() {
	s.mu.Lock()
	active := s.activeResponse != ""
	streamSID := s.streamSID
	s.mu.Unlock()
	if !active {
		return
	}
	if err := s.ai.Send(realtime.Interrupt()); err != nil {
		s.opts.Logger.Warn("interrupt forward failed", "call_sid", s.sid(), "error", err)
		return
	}
	s.writeCallerFrame(telephony.ClearFrame(streamSID))
}

// readAssistant is the realtime receive loop.
func (s *Session) readAssistant(ctx context.Context) {
	defer s.wg.Done()
	for {
		ev, err := s.ai.ReadEvent()
		if err != nil {
			if errors.Is(err, realtime.ErrMalformedEvent) {
				s.opts.Logger.Warn("dropping malformed assistant event", "call_sid", s.sid(), "error", err)
				continue
			}
			s.terminate(records.CallStatusCompleted, "assistant stream closed")
			return
		}
		switch ev.Type {
		case realtime.EventSessionCreated:
			s.mu.Lock()
			s.aiReady = true
			s.mu.Unlock()
			s.maybeConfigure()
		case realtime.EventSessionUpdated:
			s.setState(StateAwaitingFirstUtterance)
		case realtime.EventResponseCreated:
			if ev.Response != nil {
				s.mu.Lock()
				s.activeResponse = ev.Response.ID
				s.mu.Unlock()
			}
		case realtime.EventResponseDone:
			s.mu.Lock()
			s.activeResponse = ""
			s.mu.Unlock()
		case realtime.EventAudioDelta:
			s.handleAssistantAudio(ev.Delta)
		case realtime.EventSpeechStarted:
			// Server VAD heard the caller; treat it like a barge-in mark.
			s.bumpActivity()
			s.handleInterrupt()
		case realtime.EventSpeechStopped:
			s.bumpActivity()
		case realtime.EventInputCommitted:
			if ev.InputAudioBuffer != nil {
				s.handleCallerUtterance(ctx, ev.InputAudioBuffer.Transcript)
			}
		case realtime.EventOutputAudioDone:
			if ev.OutputAudio != nil {
				s.handleAssistantUtterance(ev.OutputAudio.Transcript)
			}
		case realtime.EventError:
			if ev.Error.ActiveResponseConflict() {
				s.opts.Logger.Debug("response already active, waiting", "call_sid", s.sid())
				break
			}
			if ev.Error.Fatal() {
				s.opts.Logger.Error("fatal assistant error",
					"call_sid", s.sid(), "code", ev.Error.Code, "message", ev.Error.Message)
				s.terminate(records.CallStatusFailed, "assistant error: "+ev.Error.Code)
				return
			}
			s.opts.Logger.Warn("assistant error",
				"call_sid", s.sid(), "code", ev.Error.Code, "message", ev.Error.Message)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Session) handleAssistantAudio(delta string) {
	if delta == "" {
		return
	}
	s.mu.Lock()
	if s.state >= StateEnding {
		s.mu.Unlock()
		return
	}
	if s.opts.SaveAudio {
		s.assistantAudio = append(s.assistantAudio, delta)
	}
	s.lastActivity = time.Now()
	streamSID := s.streamSID
	s.mu.Unlock()

	s.writeCallerFrame(telephony.MediaFrame(streamSID, delta))
}

func (s *Session) handleCallerUtterance(ctx context.Context, text string) {
	if text == "" {
		return
	}
	s.bumpActivity()
	s.recordTurn(records.SpeakerPatient, records.EntryTranscript, text, "")

	s.mu.Lock()
	firstUtterance := !s.greeted
	s.greeted = true
	cc := s.callCtx
	s.mu.Unlock()

	if firstUtterance {
		s.scheduleGreeting(ctx, cc)
	} else {
		s.setState(StateConversing)
	}

	if intent := s.opts.Intents.Extract(text, time.Now()); intent.Complete() {
		s.actOnIntent(ctx, intent, text)
	}

	if s.opts.End.ShouldEnd(text) {
		s.terminate(records.CallStatusCompleted, "caller ended conversation")
	}
}

// scheduleGreeting voices the greeting shortly after the caller's first
// utterance. Greeting before the caller speaks races the model into a
// duplicate first response.
func (s *Session) scheduleGreeting(ctx context.Context, cc *CallContext) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.opts.GreetingDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := s.ai.Send(realtime.AssistantMessage(GreetingText(cc))); err != nil {
			s.opts.Logger.Warn("greeting send failed", "call_sid", s.sid(), "error", err)
			return
		}
		if err := s.ai.Send(realtime.ResponseCreate()); err != nil {
			s.opts.Logger.Warn("greeting response trigger failed", "call_sid", s.sid(), "error", err)
			return
		}
		s.setState(StateConversing)
	}()
}

func (s *Session) handleAssistantUtterance(text string) {
	if text == "" {
		return
	}
	s.bumpActivity()
	s.recordTurn(records.SpeakerAssistant, records.EntryTranscript, text, "")

	if s.opts.End.ShouldEnd(text) {
		s.terminate(records.CallStatusCompleted, "assistant wrapped up")
	}
}

// actOnIntent checks and books the recognized slot. Results are logged as
// database entries in the turn log; the assistant narrates availability from
// its instructions rather than from these writes.
func (s *Session) actOnIntent(ctx context.Context, intent SchedulingIntent, utterance string) {
	s.mu.Lock()
	cc := s.callCtx
	s.mu.Unlock()
	if s.opts.Scheduler == nil || cc == nil || cc.Patient == nil || cc.Nurse == nil {
		return
	}

	free, err := s.opts.Scheduler.CheckAvailability(ctx, cc.Nurse.ID, intent.Date, intent.Start, s.opts.SlotDurationMins)
	if err != nil {
		s.opts.Logger.Error("availability check failed", "call_sid", s.sid(), "error", err)
		return
	}
	if !free {
		s.opts.Metrics.ObserveBooking("unavailable")
		s.recordTurn(records.SpeakerSystem, records.EntryDatabase,
			"slot unavailable: "+intent.Date.Format("2006-01-02")+" "+intent.Start.String(), "check_availability")
		return
	}

	appt, err := s.opts.Scheduler.BookAppointment(ctx, cc.Patient.ID, cc.Nurse.ID, intent.Date, intent.Start, s.opts.SlotDurationMins)
	if err != nil {
		if errors.Is(err, scheduling.ErrSlotConflict) {
			s.opts.Metrics.ObserveBooking("conflict")
			s.recordTurn(records.SpeakerSystem, records.EntryDatabase,
				"booking conflict: "+intent.Date.Format("2006-01-02")+" "+intent.Start.String(), "book_appointment")
			return
		}
		s.opts.Logger.Error("booking failed", "call_sid", s.sid(), "error", err)
		return
	}

	s.mu.Lock()
	s.appointmentID = &appt.ID
	s.mu.Unlock()
	s.opts.Metrics.ObserveBooking("booked")
	s.recordTurn(records.SpeakerSystem, records.EntryDatabase,
		"appointment booked for "+intent.Date.Format("2006-01-02")+" at "+intent.Start.String(), "book_appointment")
	s.opts.Logger.Info("appointment booked from call",
		"call_sid", s.sid(), "appointment_id", appt.ID, "utterance_len", len(utterance))
}

// recordTurn appends to the in-memory log and mirrors to Postgres and Redis
// best-effort.
func (s *Session) recordTurn(speaker, kind, text, intent string) {
	s.mu.Lock()
	entry := records.ConversationEntry{
		Speaker:   speaker,
		Text:      text,
		Kind:      kind,
		Intent:    intent,
		Timestamp: time.Now().UTC(),
	}
	if s.call != nil {
		entry.CallID = s.call.ID
	}
	s.entries = append(s.entries, entry)
	call := s.call
	callSID := s.callSID
	s.mu.Unlock()

	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	if call != nil && s.opts.Records != nil {
		if err := s.opts.Records.AppendEntry(ctx, &entry); err != nil {
			s.opts.Logger.Warn("turn log write failed", "call_sid", callSID, "error", err)
		}
	}
	if s.opts.Live != nil && kind == records.EntryTranscript {
		if err := s.opts.Live.AppendTurn(ctx, callSID, speaker, text); err != nil {
			s.opts.Logger.Warn("live turn mirror failed", "call_sid", callSID, "error", err)
		}
	}
}

func (s *Session) writeCallerFrame(frame telephony.Frame) {
	data, err := frame.Marshal()
	if err != nil {
		s.opts.Logger.Warn("frame marshal failed", "call_sid", s.sid(), "error", err)
		return
	}
	s.twMu.Lock()
	err = s.tw.WriteMessage(websocket.TextMessage, data)
	s.twMu.Unlock()
	if err != nil {
		s.terminate(records.CallStatusCompleted, "telephony write failed")
	}
}

// terminate is the single exit path. Every caller funnels through the Once:
// one hangup frame, one record flush, regardless of how many goroutines
// observe the end of the call.
func (s *Session) terminate(status, reason string) {
	s.teardown.Do(func() {
		s.setState(StateEnding)
		s.opts.Logger.Info("ending call", "call_sid", s.sid(), "status", status, "reason", reason)

		_ = s.ai.Send(realtime.AssistantMessage("Thank you for calling. Goodbye!"))

		s.mu.Lock()
		streamSID := s.streamSID
		s.mu.Unlock()
		if data, err := telephony.HangupFrame(streamSID).Marshal(); err == nil {
			s.twMu.Lock()
			_ = s.tw.WriteMessage(websocket.TextMessage, data)
			s.twMu.Unlock()
		}

		_ = s.ai.Close()
		_ = s.tw.Close()
		if s.cancel != nil {
			s.cancel()
		}

		s.flush(status, reason)
		s.setState(StateClosed)
	})
}

// flush writes the durable end-of-call artifacts. Each write is independent;
// a failed transcript must not block audio, and vice versa.
func (s *Session) flush(status, reason string) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelFn()

	s.mu.Lock()
	call := s.call
	callSID := s.callSID
	patientPhone := s.patientPhone
	cc := s.callCtx
	appointmentID := s.appointmentID
	entries := make([]records.ConversationEntry, len(s.entries))
	copy(entries, s.entries)
	callerAudio := s.callerAudio
	assistantAudio := s.assistantAudio
	duration := time.Since(s.startedAt)
	s.mu.Unlock()

	outcome := s.opts.Classify.Classify(entries)

	s.mu.Lock()
	s.finalStatus = status
	s.finalOutcome = outcome
	s.finalDuration = duration
	s.mu.Unlock()

	if call != nil && s.opts.Records != nil {
		if err := s.opts.Records.EndCall(ctx, call.ID, status, duration, appointmentID); err != nil {
			s.opts.Logger.Error("call record close failed", "call_sid", callSID, "error", err)
		}

		header := records.TranscriptHeader{
			CallSID:      callSID,
			PatientPhone: patientPhone,
			StartedAt:    s.startedAt,
			Duration:     duration,
		}
		if cc != nil && cc.Patient != nil {
			header.PatientName = cc.Patient.Name
		}
		if cc != nil && cc.Nurse != nil {
			header.NurseName = cc.Nurse.Name
		}
		transcript := records.BuildTranscript(header, entries)
		transcript.CallID = call.ID
		transcript.SchedulingOutcome = outcome
		if err := s.opts.Records.UpsertTranscript(ctx, transcript); err != nil {
			s.opts.Logger.Error("transcript write failed", "call_sid", callSID, "error", err)
		} else if s.opts.Archive != nil && s.opts.Archive.Enabled() {
			if err := s.opts.Archive.ArchiveTranscript(ctx, callSID, transcript); err != nil {
				s.opts.Logger.Warn("transcript archive failed", "call_sid", callSID, "error", err)
			}
		}
	}

	if s.opts.Audio != nil && s.opts.SaveAudio {
		s.saveAudioChannel(ctx, callSID, records.SpeakerPatient, callerAudio)
		s.saveAudioChannel(ctx, callSID, records.SpeakerAssistant, assistantAudio)
	}

	if s.opts.Live != nil {
		if err := s.opts.Live.End(ctx, callSID, outcome); err != nil {
			s.opts.Logger.Warn("live state close failed", "call_sid", callSID, "error", err)
		}
	}

	s.opts.Logger.Info("call finished",
		"call_sid", callSID,
		"status", status,
		"reason", reason,
		"outcome", outcome,
		"duration_seconds", int(duration.Seconds()),
		"turns", len(entries))
}

func (s *Session) saveAudioChannel(ctx context.Context, callSID, speaker string, chunks []string) {
	if len(chunks) == 0 {
		return
	}
	path, samples, err := s.opts.Audio.SaveChannel(callSID, speaker, chunks)
	if err != nil {
		s.opts.Logger.Error("audio save failed", "call_sid", callSID, "speaker", speaker, "error", err)
		return
	}
	s.opts.Logger.Info("audio saved", "call_sid", callSID, "speaker", speaker, "path", path, "samples", samples)

	if s.opts.Archive != nil && s.opts.Archive.Enabled() {
		wav, err := os.ReadFile(path)
		if err != nil {
			s.opts.Logger.Warn("audio archive read failed", "call_sid", callSID, "error", err)
			return
		}
		if err := s.opts.Archive.ArchiveAudio(ctx, callSID, speaker, wav); err != nil {
			s.opts.Logger.Warn("audio archive failed", "call_sid", callSID, "error", err)
		}
	}
}
