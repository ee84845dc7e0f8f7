package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KhichiDushyant/voice-agent/internal/records"
	"github.com/KhichiDushyant/voice-agent/internal/session"
	"github.com/KhichiDushyant/voice-agent/internal/telephony"
	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

// CallStore is the slice of the records store the call history surface uses.
type CallStore interface {
	ListCalls(ctx context.Context, limit int) ([]records.Call, error)
	GetCall(ctx context.Context, id uuid.UUID) (*records.Call, error)
	TranscriptFor(ctx context.Context, callID uuid.UUID) (*records.CallTranscript, error)
}

// Dialer starts outbound calls. *telephony.Client satisfies it.
type Dialer interface {
	Configured() bool
	StartCall(ctx context.Context, to, twiml string) (*telephony.CallInfo, error)
}

// CallsHandler exposes call initiation, inbound TwiML, and call history.
type CallsHandler struct {
	store         CallStore
	dialer        Dialer
	live          *session.LiveStore
	audio         *records.AudioWriter
	publicBaseURL string
	logger        *logging.Logger
}

// NewCallsHandler creates the calls handler. publicBaseURL is the externally
// reachable base (https://...) used to derive the media-stream websocket URL.
func NewCallsHandler(store CallStore, dialer Dialer, live *session.LiveStore, audio *records.AudioWriter, publicBaseURL string, logger *logging.Logger) *CallsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CallsHandler{
		store:         store,
		dialer:        dialer,
		live:          live,
		audio:         audio,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

// streamURL converts the public base URL into the websocket endpoint.
func (h *CallsHandler) streamURL() string {
	base := h.publicBaseURL
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/ws/media-stream"
}

// StartCallRequest is the POST /calls body.
type StartCallRequest struct {
	Phone string `json:"phone"`
}

// StartCall is POST /calls: place an outbound call that connects the callee
// to the assistant bridge.
func (h *CallsHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	if h.dialer == nil || !h.dialer.Configured() {
		jsonError(w, "telephony is not configured", http.StatusServiceUnavailable)
		return
	}
	var req StartCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Phone == "" {
		jsonError(w, "phone is required", http.StatusBadRequest)
		return
	}

	twiml, err := telephony.StreamTwiML(h.streamURL(), map[string]string{
		"patient_phone": req.Phone,
		"direction":     "outbound",
	})
	if err != nil {
		h.logger.Error("twiml build failed", "error", err)
		jsonError(w, "call setup failed", http.StatusInternalServerError)
		return
	}

	info, err := h.dialer.StartCall(r.Context(), req.Phone, twiml)
	if err != nil {
		h.logger.Error("outbound call failed", "error", err, "to", logging.MaskPhone(req.Phone))
		jsonError(w, "outbound call failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// Incoming is POST /calls/incoming: the voice webhook for inbound calls.
// Twilio posts form-encoded call data and expects TwiML back.
func (h *CallsHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	from := r.FormValue("From")

	twiml, err := telephony.WelcomeStreamTwiML(h.streamURL(), map[string]string{
		"patient_phone": from,
		"direction":     "inbound",
	})
	if err != nil {
		h.logger.Error("twiml build failed", "error", err)
		http.Error(w, "call setup failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("incoming call", "from", logging.MaskPhone(from))
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(twiml))
}

// List is GET /calls?limit=50.
func (h *CallsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	calls, err := h.store.ListCalls(r.Context(), limit)
	if err != nil {
		h.logger.Error("list calls failed", "error", err)
		jsonError(w, "list calls failed", http.StatusInternalServerError)
		return
	}
	if calls == nil {
		calls = []records.Call{}
	}
	writeJSON(w, http.StatusOK, calls)
}

// Get is GET /calls/{callID}.
func (h *CallsHandler) Get(w http.ResponseWriter, r *http.Request) {
	call, ok := h.loadCall(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, call)
}

// Transcript is GET /calls/{callID}/transcript.
func (h *CallsHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	call, ok := h.loadCall(w, r)
	if !ok {
		return
	}
	transcript, err := h.store.TranscriptFor(r.Context(), call.ID)
	if err != nil {
		if errors.Is(err, records.ErrCallNotFound) {
			jsonError(w, "transcript not found", http.StatusNotFound)
			return
		}
		h.logger.Error("transcript lookup failed", "error", err, "call_id", call.ID)
		jsonError(w, "transcript lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

// Live is GET /calls/{callID}/live: the in-flight mirror for a call still in
// progress.
func (h *CallsHandler) Live(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		jsonError(w, "live call state is not configured", http.StatusServiceUnavailable)
		return
	}
	call, ok := h.loadCall(w, r)
	if !ok {
		return
	}
	state, err := h.live.Get(r.Context(), call.CallSID)
	if err != nil {
		h.logger.Error("live state lookup failed", "error", err, "call_sid", call.CallSID)
		jsonError(w, "live state lookup failed", http.StatusInternalServerError)
		return
	}
	if state == nil {
		jsonError(w, "no live state for call", http.StatusNotFound)
		return
	}
	turns, err := h.live.Turns(r.Context(), call.CallSID)
	if err != nil {
		h.logger.Error("live turns lookup failed", "error", err, "call_sid", call.CallSID)
		jsonError(w, "live state lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state, "turns": turns})
}

// Audio is GET /calls/{callID}/audio/{speaker}: the per-channel WAV
// artifact.
func (h *CallsHandler) Audio(w http.ResponseWriter, r *http.Request) {
	if h.audio == nil {
		jsonError(w, "call audio is not configured", http.StatusServiceUnavailable)
		return
	}
	call, ok := h.loadCall(w, r)
	if !ok {
		return
	}
	speaker := chi.URLParam(r, "speaker")
	if speaker != records.SpeakerPatient && speaker != records.SpeakerAssistant {
		jsonError(w, "speaker must be patient or assistant", http.StatusBadRequest)
		return
	}

	path := h.audio.ChannelPath(call.CallSID, speaker)
	if _, err := os.Stat(path); err != nil {
		jsonError(w, "audio not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

func (h *CallsHandler) loadCall(w http.ResponseWriter, r *http.Request) (*records.Call, bool) {
	id, ok := urlUUID(w, r, "callID")
	if !ok {
		return nil, false
	}
	call, err := h.store.GetCall(r.Context(), id)
	if err != nil {
		if errors.Is(err, records.ErrCallNotFound) {
			jsonError(w, "call not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("get call failed", "error", err, "call_id", id)
		jsonError(w, "get call failed", http.StatusInternalServerError)
		return nil, false
	}
	return call, true
}
