package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPatientNotFound means no patient row matched.
	ErrPatientNotFound = errors.New("directory: patient not found")
	// ErrNurseNotFound means no nurse row matched.
	ErrNurseNotFound = errors.New("directory: nurse not found")
	// ErrNoActiveNurse means the bootstrap default lookup found nobody.
	ErrNoActiveNurse = errors.New("directory: no active nurse available")
)

// Patient is one care recipient. Phone is the unique caller identity.
type Patient struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	Email             string     `json:"email,omitempty"`
	DateOfBirth       *time.Time `json:"date_of_birth,omitempty"`
	MedicalConditions []string   `json:"medical_conditions,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Nurse is one care provider.
type Nurse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	LicenseNumber  string    `json:"license_number,omitempty"`
	Active         bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Assignment links a patient to a nurse for one date. At most one primary
// assignment may exist per (patient, date); the schema enforces this with a
// partial unique index.
type Assignment struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	NurseID   uuid.UUID `json:"nurse_id"`
	Date      time.Time `json:"assignment_date"`
	Primary   bool      `json:"is_primary"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
