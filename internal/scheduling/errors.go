package scheduling

import "errors"

var (
	// ErrSlotConflict means another non-cancelled appointment occupies the window.
	ErrSlotConflict = errors.New("scheduling: slot already booked")
	// ErrOutsideAvailability means the window falls outside the nurse's schedule.
	ErrOutsideAvailability = errors.New("scheduling: outside nurse availability")
	// ErrPatientNotFound means the patient id resolves to no row.
	ErrPatientNotFound = errors.New("scheduling: patient not found")
	// ErrNurseNotFound means the nurse id resolves to no row.
	ErrNurseNotFound = errors.New("scheduling: nurse not found")
	// ErrAppointmentNotFound means the appointment id resolves to no row.
	ErrAppointmentNotFound = errors.New("scheduling: appointment not found")
)
