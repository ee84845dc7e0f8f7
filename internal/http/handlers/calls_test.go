package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhichiDushyant/voice-agent/internal/records"
	"github.com/KhichiDushyant/voice-agent/internal/session"
	"github.com/KhichiDushyant/voice-agent/internal/telephony"
)

type fakeCallStore struct {
	calls       map[uuid.UUID]*records.Call
	transcripts map[uuid.UUID]*records.CallTranscript
	listLimit   int
}

func newFakeCallStore() *fakeCallStore {
	return &fakeCallStore{
		calls:       map[uuid.UUID]*records.Call{},
		transcripts: map[uuid.UUID]*records.CallTranscript{},
	}
}

func (f *fakeCallStore) ListCalls(_ context.Context, limit int) ([]records.Call, error) {
	f.listLimit = limit
	out := make([]records.Call, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCallStore) GetCall(_ context.Context, id uuid.UUID) (*records.Call, error) {
	call, ok := f.calls[id]
	if !ok {
		return nil, records.ErrCallNotFound
	}
	return call, nil
}

func (f *fakeCallStore) TranscriptFor(_ context.Context, callID uuid.UUID) (*records.CallTranscript, error) {
	tr, ok := f.transcripts[callID]
	if !ok {
		return nil, records.ErrCallNotFound
	}
	return tr, nil
}

type fakeDialer struct {
	configured bool
	to         string
	twiml      string
	err        error
}

func (f *fakeDialer) Configured() bool { return f.configured }

func (f *fakeDialer) StartCall(_ context.Context, to, twiml string) (*telephony.CallInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.to = to
	f.twiml = twiml
	return &telephony.CallInfo{SID: "CA123", To: to, Status: "queued"}, nil
}

func callsRouter(h *CallsHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/calls", h.StartCall)
	r.Post("/calls/incoming", h.Incoming)
	r.Get("/calls", h.List)
	r.Get("/calls/{callID}", h.Get)
	r.Get("/calls/{callID}/transcript", h.Transcript)
	r.Get("/calls/{callID}/live", h.Live)
	r.Get("/calls/{callID}/audio/{speaker}", h.Audio)
	return r
}

func TestStartCallRequiresConfiguredTelephony(t *testing.T) {
	h := NewCallsHandler(newFakeCallStore(), &fakeDialer{configured: false}, nil, nil, "https://agent.example.com", nil)
	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"phone":"+15551230001"}`)
	callsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calls", body))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartCallPlacesOutboundCall(t *testing.T) {
	dialer := &fakeDialer{configured: true}
	h := NewCallsHandler(newFakeCallStore(), dialer, nil, nil, "https://agent.example.com", nil)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"phone":"+15551230001"}`)
	callsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calls", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "+15551230001", dialer.to)
	assert.Contains(t, dialer.twiml, "wss://agent.example.com/ws/media-stream")
	assert.Contains(t, dialer.twiml, "patient_phone")
	assert.Contains(t, dialer.twiml, "outbound")

	var info telephony.CallInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "CA123", info.SID)
}

func TestStartCallRequiresPhone(t *testing.T) {
	h := NewCallsHandler(newFakeCallStore(), &fakeDialer{configured: true}, nil, nil, "https://agent.example.com", nil)
	rec := httptest.NewRecorder()
	callsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calls", bytes.NewBufferString(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncomingCallReturnsStreamTwiML(t *testing.T) {
	h := NewCallsHandler(newFakeCallStore(), nil, nil, nil, "https://agent.example.com", nil)

	form := bytes.NewBufferString("From=%2B15551230001&CallSid=CA999")
	req := httptest.NewRequest(http.MethodPost, "/calls/incoming", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	callsRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Stream")
	assert.Contains(t, rec.Body.String(), "wss://agent.example.com/ws/media-stream")
	assert.Contains(t, rec.Body.String(), "inbound")
}

func TestGetCallNotFound(t *testing.T) {
	h := NewCallsHandler(newFakeCallStore(), nil, nil, nil, "https://agent.example.com", nil)
	rec := httptest.NewRecorder()
	callsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCallAndTranscript(t *testing.T) {
	store := newFakeCallStore()
	call := &records.Call{ID: uuid.New(), CallSID: "CA1", PatientPhone: "+15551230001", Status: records.CallStatusCompleted}
	store.calls[call.ID] = call
	store.transcripts[call.ID] = &records.CallTranscript{CallID: call.ID, FullTranscript: "Patient: hello", SchedulingOutcome: "completed"}

	h := NewCallsHandler(store, nil, nil, nil, "https://agent.example.com", nil)
	router := callsRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls/"+call.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got records.Call
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "CA1", got.CallSID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls/"+call.ID.String()+"/transcript", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Patient: hello")
}

func TestListCallsParsesLimit(t *testing.T) {
	store := newFakeCallStore()
	h := NewCallsHandler(store, nil, nil, nil, "https://agent.example.com", nil)

	rec := httptest.NewRecorder()
	callsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.listLimit)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = httptest.NewRecorder()
	callsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls?limit=oops", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAudioRejectsUnknownSpeaker(t *testing.T) {
	store := newFakeCallStore()
	call := &records.Call{ID: uuid.New(), CallSID: "CA1"}
	store.calls[call.ID] = call

	h := NewCallsHandler(store, nil, nil, records.NewAudioWriter(t.TempDir(), false), "https://agent.example.com", nil)
	rec := httptest.NewRecorder()
	callsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls/"+call.ID.String()+"/audio/operator", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLiveStateReadsMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	live := session.NewLiveStore(client)

	store := newFakeCallStore()
	call := &records.Call{ID: uuid.New(), CallSID: "CA42"}
	store.calls[call.ID] = call

	ctx := context.Background()
	require.NoError(t, live.Save(ctx, &session.LiveState{
		CallSID:     "CA42",
		PatientName: "Maria Lopez",
		Phase:       "conversing",
		StartedAt:   time.Now().UTC(),
	}))
	require.NoError(t, live.AppendTurn(ctx, "CA42", "patient", "hello"))

	h := NewCallsHandler(store, nil, live, nil, "https://agent.example.com", nil)
	rec := httptest.NewRecorder()
	callsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls/"+call.ID.String()+"/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Maria Lopez")
	assert.Contains(t, rec.Body.String(), "hello")
}
