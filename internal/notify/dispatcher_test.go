package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhichiDushyant/voice-agent/internal/directory"
)

type fakeQueue struct {
	mu      sync.Mutex
	pending []Notification
	sent    []uuid.UUID
	failed  []uuid.UUID
}

func (f *fakeQueue) Pending(context.Context, int) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, nil
}

func (f *fakeQueue) MarkSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeQueue) MarkFailed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

type fakeContacts struct {
	patients map[uuid.UUID]*directory.Patient
	nurses   map[uuid.UUID]*directory.Nurse
}

func (f *fakeContacts) PatientByID(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	if p, ok := f.patients[id]; ok {
		return p, nil
	}
	return nil, directory.ErrPatientNotFound
}

func (f *fakeContacts) NurseByID(_ context.Context, id uuid.UUID) (*directory.Nurse, error) {
	if n, ok := f.nurses[id]; ok {
		return n, nil
	}
	return nil, directory.ErrNurseNotFound
}

type recordingSender struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestDispatchPending(t *testing.T) {
	patientID := uuid.New()
	nurseID := uuid.New()
	n1 := Notification{ID: uuid.New(), RecipientType: RecipientPatient, RecipientID: patientID, Type: "appointment_confirmed", Message: "Your appointment on Monday is scheduled."}
	n2 := Notification{ID: uuid.New(), RecipientType: RecipientNurse, RecipientID: nurseID, Type: "appointment_assigned", Message: "New visit on Monday."}

	queue := &fakeQueue{pending: []Notification{n1, n2}}
	contacts := &fakeContacts{
		patients: map[uuid.UUID]*directory.Patient{patientID: {ID: patientID, Name: "Maria Lopez", Email: "maria@example.com"}},
		nurses:   map[uuid.UUID]*directory.Nurse{nurseID: {ID: nurseID, Name: "James Okafor", Email: "james@example.com"}},
	}
	sender := &recordingSender{}

	d := NewDispatcher(queue, contacts, sender, nil)
	sent := d.DispatchPending(context.Background())

	assert.Equal(t, 2, sent)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "maria@example.com", sender.sent[0].To)
	assert.Equal(t, "Your appointment is confirmed", sender.sent[0].Subject)
	assert.Equal(t, "james@example.com", sender.sent[1].To)
	assert.Equal(t, "New appointment on your schedule", sender.sent[1].Subject)
	assert.ElementsMatch(t, []uuid.UUID{n1.ID, n2.ID}, queue.sent)
}

func TestDispatchSkipsRecipientWithoutEmail(t *testing.T) {
	patientID := uuid.New()
	n := Notification{ID: uuid.New(), RecipientType: RecipientPatient, RecipientID: patientID, Type: "appointment_confirmed"}

	queue := &fakeQueue{pending: []Notification{n}}
	contacts := &fakeContacts{
		patients: map[uuid.UUID]*directory.Patient{patientID: {ID: patientID, Name: "Maria Lopez"}},
	}
	sender := &recordingSender{}

	d := NewDispatcher(queue, contacts, sender, nil)
	sent := d.DispatchPending(context.Background())

	assert.Equal(t, 0, sent)
	assert.Empty(t, sender.sent)
	assert.Equal(t, []uuid.UUID{n.ID}, queue.failed)
}

func TestDispatchLeavesRowPendingOnSendError(t *testing.T) {
	patientID := uuid.New()
	n := Notification{ID: uuid.New(), RecipientType: RecipientPatient, RecipientID: patientID, Type: "appointment_confirmed"}

	queue := &fakeQueue{pending: []Notification{n}}
	contacts := &fakeContacts{
		patients: map[uuid.UUID]*directory.Patient{patientID: {ID: patientID, Name: "Maria Lopez", Email: "maria@example.com"}},
	}
	sender := &recordingSender{err: errors.New("provider down")}

	d := NewDispatcher(queue, contacts, sender, nil)
	sent := d.DispatchPending(context.Background())

	assert.Equal(t, 0, sent)
	assert.Empty(t, queue.sent)
	assert.Empty(t, queue.failed)
}

func TestSubjectForUnknownType(t *testing.T) {
	assert.Equal(t, "Care scheduling update", subjectFor("something_else"))
}
