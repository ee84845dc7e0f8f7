package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores patients, nurses, and their assignments.
type Repository struct {
	pool db
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(d db) *Repository {
	if d == nil {
		panic("directory: db required")
	}
	return &Repository{pool: d}
}

// CreatePatient inserts a new patient row.
func (r *Repository) CreatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO patients (id, name, phone, email, date_of_birth, medical_conditions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.Phone, p.Email, p.DateOfBirth, p.MedicalConditions,
	).Scan(&p.CreatedAt); err != nil {
		return fmt.Errorf("directory: insert patient: %w", err)
	}
	return nil
}

// PatientByPhone resolves a caller's phone number to a patient.
func (r *Repository) PatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	query := `
		SELECT id, name, phone, COALESCE(email, ''), date_of_birth, COALESCE(medical_conditions, '[]'), created_at
		FROM patients
		WHERE phone = $1
	`
	return r.scanPatient(r.pool.QueryRow(ctx, query, phone))
}

// PatientByID loads one patient.
func (r *Repository) PatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	query := `
		SELECT id, name, phone, COALESCE(email, ''), date_of_birth, COALESCE(medical_conditions, '[]'), created_at
		FROM patients
		WHERE id = $1
	`
	return r.scanPatient(r.pool.QueryRow(ctx, query, id))
}

// ListPatients returns all patients ordered by name.
func (r *Repository) ListPatients(ctx context.Context) ([]Patient, error) {
	query := `
		SELECT id, name, phone, COALESCE(email, ''), date_of_birth, COALESCE(medical_conditions, '[]'), created_at
		FROM patients
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("directory: list patients: %w", err)
	}
	defer rows.Close()
	var out []Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate patients: %w", err)
	}
	return out, nil
}

func (r *Repository) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.DateOfBirth, &p.MedicalConditions, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("directory: scan patient: %w", err)
	}
	return &p, nil
}

// CreateNurse inserts a new nurse row.
func (r *Repository) CreateNurse(ctx context.Context, n *Nurse) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
		INSERT INTO nurses (id, name, phone, email, specialization, license_number, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		n.ID, n.Name, n.Phone, n.Email, n.Specialization, n.LicenseNumber, n.Active,
	).Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("directory: insert nurse: %w", err)
	}
	return nil
}

// NurseByID loads one nurse.
func (r *Repository) NurseByID(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	query := `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(specialization, ''), COALESCE(license_number, ''), is_active, created_at
		FROM nurses
		WHERE id = $1
	`
	return r.scanNurse(r.pool.QueryRow(ctx, query, id))
}

// ListNurses returns all nurses ordered by name.
func (r *Repository) ListNurses(ctx context.Context) ([]Nurse, error) {
	query := `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(specialization, ''), COALESCE(license_number, ''), is_active, created_at
		FROM nurses
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("directory: list nurses: %w", err)
	}
	defer rows.Close()
	var out []Nurse
	for rows.Next() {
		n, err := r.scanNurse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate nurses: %w", err)
	}
	return out, nil
}

// DefaultActiveNurse returns the longest-tenured active nurse, used when a
// caller has no assignment yet.
func (r *Repository) DefaultActiveNurse(ctx context.Context) (*Nurse, error) {
	query := `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(specialization, ''), COALESCE(license_number, ''), is_active, created_at
		FROM nurses
		WHERE is_active
		ORDER BY created_at
		LIMIT 1
	`
	n, err := r.scanNurse(r.pool.QueryRow(ctx, query))
	if errors.Is(err, ErrNurseNotFound) {
		return nil, ErrNoActiveNurse
	}
	return n, err
}

func (r *Repository) scanNurse(row pgx.Row) (*Nurse, error) {
	var n Nurse
	if err := row.Scan(&n.ID, &n.Name, &n.Phone, &n.Email, &n.Specialization, &n.LicenseNumber, &n.Active, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNurseNotFound
		}
		return nil, fmt.Errorf("directory: scan nurse: %w", err)
	}
	return &n, nil
}

// PrimaryAssignment returns the patient's primary assignment for date, if any.
func (r *Repository) PrimaryAssignment(ctx context.Context, patientID uuid.UUID, date time.Time) (*Assignment, error) {
	query := `
		SELECT id, patient_id, nurse_id, assignment_date, is_primary, COALESCE(notes, ''), created_at
		FROM assignments
		WHERE patient_id = $1 AND assignment_date = $2 AND is_primary
	`
	var a Assignment
	err := r.pool.QueryRow(ctx, query, patientID, dateOnly(date)).Scan(
		&a.ID, &a.PatientID, &a.NurseID, &a.Date, &a.Primary, &a.Notes, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: load primary assignment: %w", err)
	}
	return &a, nil
}

// EnsurePrimaryAssignment upserts the primary assignment for the patient on
// date. The partial unique index on (patient_id, assignment_date) makes the
// write race-free: a concurrent insert lands on the same row.
func (r *Repository) EnsurePrimaryAssignment(ctx context.Context, patientID, nurseID uuid.UUID, date time.Time) (*Assignment, error) {
	query := `
		INSERT INTO assignments (id, patient_id, nurse_id, assignment_date, is_primary)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (patient_id, assignment_date) WHERE is_primary
		DO UPDATE SET nurse_id = EXCLUDED.nurse_id
		RETURNING id, patient_id, nurse_id, assignment_date, is_primary, COALESCE(notes, ''), created_at
	`
	var a Assignment
	if err := r.pool.QueryRow(ctx, query, uuid.New(), patientID, nurseID, dateOnly(date)).Scan(
		&a.ID, &a.PatientID, &a.NurseID, &a.Date, &a.Primary, &a.Notes, &a.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("directory: ensure primary assignment: %w", err)
	}
	return &a, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
