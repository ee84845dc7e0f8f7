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

	"github.com/KhichiDushyant/voice-agent/internal/directory"
)

type fakeDirectoryStore struct {
	patients    map[uuid.UUID]*directory.Patient
	byPhone     map[string]*directory.Patient
	nurses      map[uuid.UUID]*directory.Nurse
	assignments map[uuid.UUID]*directory.Assignment
}

func newFakeDirectoryStore() *fakeDirectoryStore {
	return &fakeDirectoryStore{
		patients:    map[uuid.UUID]*directory.Patient{},
		byPhone:     map[string]*directory.Patient{},
		nurses:      map[uuid.UUID]*directory.Nurse{},
		assignments: map[uuid.UUID]*directory.Assignment{},
	}
}

func (f *fakeDirectoryStore) CreatePatient(_ context.Context, p *directory.Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	f.patients[p.ID] = p
	f.byPhone[p.Phone] = p
	return nil
}

func (f *fakeDirectoryStore) PatientByID(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, directory.ErrPatientNotFound
	}
	return p, nil
}

func (f *fakeDirectoryStore) PatientByPhone(_ context.Context, phone string) (*directory.Patient, error) {
	p, ok := f.byPhone[phone]
	if !ok {
		return nil, directory.ErrPatientNotFound
	}
	return p, nil
}

func (f *fakeDirectoryStore) ListPatients(_ context.Context) ([]directory.Patient, error) {
	out := make([]directory.Patient, 0, len(f.patients))
	for _, p := range f.patients {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeDirectoryStore) CreateNurse(_ context.Context, n *directory.Nurse) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	f.nurses[n.ID] = n
	return nil
}

func (f *fakeDirectoryStore) NurseByID(_ context.Context, id uuid.UUID) (*directory.Nurse, error) {
	n, ok := f.nurses[id]
	if !ok {
		return nil, directory.ErrNurseNotFound
	}
	return n, nil
}

func (f *fakeDirectoryStore) ListNurses(_ context.Context) ([]directory.Nurse, error) {
	out := make([]directory.Nurse, 0, len(f.nurses))
	for _, n := range f.nurses {
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeDirectoryStore) PrimaryAssignment(_ context.Context, patientID uuid.UUID, _ time.Time) (*directory.Assignment, error) {
	a, ok := f.assignments[patientID]
	if !ok {
		return nil, nil
	}
	return a, nil
}

func (f *fakeDirectoryStore) EnsurePrimaryAssignment(_ context.Context, patientID, nurseID uuid.UUID, date time.Time) (*directory.Assignment, error) {
	a := &directory.Assignment{ID: uuid.New(), PatientID: patientID, NurseID: nurseID, Date: date, Primary: true}
	f.assignments[patientID] = a
	return a, nil
}

func directoryRouter(h *DirectoryHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/patients", h.CreatePatient)
	r.Get("/patients", h.ListPatients)
	r.Get("/patients/{patientID}", h.GetPatient)
	r.Get("/patients/{patientID}/assignment", h.GetAssignment)
	r.Post("/nurses", h.CreateNurse)
	r.Get("/nurses", h.ListNurses)
	r.Get("/nurses/{nurseID}", h.GetNurse)
	r.Put("/assignments", h.UpsertAssignment)
	return r
}

func TestCreatePatientValidation(t *testing.T) {
	h := NewDirectoryHandler(newFakeDirectoryStore(), nil)
	router := directoryRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/patients", bytes.NewBufferString(`{"name":"Maria Lopez"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	body := `{"name":"Maria Lopez","phone":"+15551230001","date_of_birth":"1961-04-12","medical_conditions":["diabetes"]}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/patients", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created directory.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, []string{"diabetes"}, created.MedicalConditions)
}

func TestListPatientsPhoneFilter(t *testing.T) {
	store := newFakeDirectoryStore()
	p := &directory.Patient{Name: "Maria Lopez", Phone: "+15551230001"}
	require.NoError(t, store.CreatePatient(context.Background(), p))

	h := NewDirectoryHandler(store, nil)
	router := directoryRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients?phone=%2B15551230001", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var matched []directory.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matched))
	require.Len(t, matched, 1)
	assert.Equal(t, p.ID, matched[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients?phone=%2B15550000000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetPatientNotFound(t *testing.T) {
	h := NewDirectoryHandler(newFakeDirectoryStore(), nil)
	rec := httptest.NewRecorder()
	directoryRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateNurseDefaultsActive(t *testing.T) {
	h := NewDirectoryHandler(newFakeDirectoryStore(), nil)
	rec := httptest.NewRecorder()
	body := `{"name":"James Okafor","specialization":"cardiology"}`
	directoryRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/nurses", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var nurse directory.Nurse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nurse))
	assert.True(t, nurse.Active)
}

func TestAssignmentUpsertAndLookup(t *testing.T) {
	store := newFakeDirectoryStore()
	h := NewDirectoryHandler(store, nil)
	router := directoryRouter(h)

	patientID := uuid.New()
	nurseID := uuid.New()
	body, _ := json.Marshal(AssignmentRequest{PatientID: patientID, NurseID: nurseID, Date: "2026-09-01"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/assignments", bytes.NewBuffer(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var assignment directory.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assignment))
	assert.Equal(t, nurseID, assignment.NurseID)
	assert.True(t, assignment.Primary)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients/"+patientID.String()+"/assignment?date=2026-09-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), nurseID.String())
}
