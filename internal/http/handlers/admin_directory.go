package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/KhichiDushyant/voice-agent/internal/directory"
	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

// DirectoryStore is the slice of the directory repository the admin surface
// uses.
type DirectoryStore interface {
	CreatePatient(ctx context.Context, p *directory.Patient) error
	PatientByID(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
	PatientByPhone(ctx context.Context, phone string) (*directory.Patient, error)
	ListPatients(ctx context.Context) ([]directory.Patient, error)
	CreateNurse(ctx context.Context, n *directory.Nurse) error
	NurseByID(ctx context.Context, id uuid.UUID) (*directory.Nurse, error)
	ListNurses(ctx context.Context) ([]directory.Nurse, error)
	PrimaryAssignment(ctx context.Context, patientID uuid.UUID, date time.Time) (*directory.Assignment, error)
	EnsurePrimaryAssignment(ctx context.Context, patientID, nurseID uuid.UUID, date time.Time) (*directory.Assignment, error)
}

// DirectoryHandler exposes patient, nurse and assignment administration.
type DirectoryHandler struct {
	store  DirectoryStore
	logger *logging.Logger
}

// NewDirectoryHandler creates the admin directory handler.
func NewDirectoryHandler(store DirectoryStore, logger *logging.Logger) *DirectoryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DirectoryHandler{store: store, logger: logger}
}

// CreatePatientRequest is the POST /patients body.
type CreatePatientRequest struct {
	Name              string   `json:"name"`
	Phone             string   `json:"phone"`
	Email             string   `json:"email,omitempty"`
	DateOfBirth       string   `json:"date_of_birth,omitempty"`
	MedicalConditions []string `json:"medical_conditions,omitempty"`
}

// CreatePatient is POST /patients.
func (h *DirectoryHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Phone == "" {
		jsonError(w, "name and phone are required", http.StatusBadRequest)
		return
	}

	patient := &directory.Patient{
		Name:              req.Name,
		Phone:             req.Phone,
		Email:             req.Email,
		MedicalConditions: req.MedicalConditions,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			jsonError(w, "invalid date_of_birth", http.StatusBadRequest)
			return
		}
		patient.DateOfBirth = &dob
	}

	if err := h.store.CreatePatient(r.Context(), patient); err != nil {
		h.logger.Error("create patient failed", "error", err)
		jsonError(w, "create patient failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

// GetPatient is GET /patients/{patientID}.
func (h *DirectoryHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "patientID")
	if !ok {
		return
	}
	patient, err := h.store.PatientByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get patient failed", "error", err, "patient_id", id)
		jsonError(w, "get patient failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

// ListPatients is GET /patients. An optional phone query filters to one
// caller identity.
func (h *DirectoryHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	if phone := r.URL.Query().Get("phone"); phone != "" {
		patient, err := h.store.PatientByPhone(r.Context(), phone)
		if err != nil {
			if errors.Is(err, directory.ErrPatientNotFound) {
				writeJSON(w, http.StatusOK, []directory.Patient{})
				return
			}
			h.logger.Error("patient phone lookup failed", "error", err)
			jsonError(w, "list patients failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, []directory.Patient{*patient})
		return
	}

	patients, err := h.store.ListPatients(r.Context())
	if err != nil {
		h.logger.Error("list patients failed", "error", err)
		jsonError(w, "list patients failed", http.StatusInternalServerError)
		return
	}
	if patients == nil {
		patients = []directory.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

// CreateNurseRequest is the POST /nurses body.
type CreateNurseRequest struct {
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
}

// CreateNurse is POST /nurses.
func (h *DirectoryHandler) CreateNurse(w http.ResponseWriter, r *http.Request) {
	var req CreateNurseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	nurse := &directory.Nurse{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
		Active:         true,
	}
	if err := h.store.CreateNurse(r.Context(), nurse); err != nil {
		h.logger.Error("create nurse failed", "error", err)
		jsonError(w, "create nurse failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, nurse)
}

// GetNurse is GET /nurses/{nurseID}.
func (h *DirectoryHandler) GetNurse(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "nurseID")
	if !ok {
		return
	}
	nurse, err := h.store.NurseByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, directory.ErrNurseNotFound) {
			jsonError(w, "nurse not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get nurse failed", "error", err, "nurse_id", id)
		jsonError(w, "get nurse failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nurse)
}

// ListNurses is GET /nurses.
func (h *DirectoryHandler) ListNurses(w http.ResponseWriter, r *http.Request) {
	nurses, err := h.store.ListNurses(r.Context())
	if err != nil {
		h.logger.Error("list nurses failed", "error", err)
		jsonError(w, "list nurses failed", http.StatusInternalServerError)
		return
	}
	if nurses == nil {
		nurses = []directory.Nurse{}
	}
	writeJSON(w, http.StatusOK, nurses)
}

// AssignmentRequest is the PUT /assignments body. The write is an upsert;
// at most one primary assignment exists per patient per date.
type AssignmentRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	NurseID   uuid.UUID `json:"nurse_id"`
	Date      string    `json:"assignment_date"`
}

// UpsertAssignment is PUT /assignments.
func (h *DirectoryHandler) UpsertAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil || req.NurseID == uuid.Nil {
		jsonError(w, "patient_id and nurse_id are required", http.StatusBadRequest)
		return
	}
	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			jsonError(w, "invalid assignment_date", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	assignment, err := h.store.EnsurePrimaryAssignment(r.Context(), req.PatientID, req.NurseID, date)
	if err != nil {
		h.logger.Error("assignment upsert failed", "error", err)
		jsonError(w, "assignment upsert failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

// GetAssignment is GET /patients/{patientID}/assignment?date=YYYY-MM-DD.
func (h *DirectoryHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	patientID, ok := urlUUID(w, r, "patientID")
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

	assignment, err := h.store.PrimaryAssignment(r.Context(), patientID, date)
	if err != nil {
		h.logger.Error("assignment lookup failed", "error", err, "patient_id", patientID)
		jsonError(w, "assignment lookup failed", http.StatusInternalServerError)
		return
	}
	if assignment == nil {
		jsonError(w, "no assignment for date", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}
