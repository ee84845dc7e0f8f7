package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/KhichiDushyant/voice-agent/internal/directory"
	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

// queue is the slice of the repository the dispatcher drives.
type queue interface {
	Pending(ctx context.Context, limit int) ([]Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// contactBook resolves a recipient id to a deliverable address.
type contactBook interface {
	PatientByID(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
	NurseByID(ctx context.Context, id uuid.UUID) (*directory.Nurse, error)
}

// Dispatcher drains pending notification rows, best-effort. Delivery
// failures never propagate to callers; a row either gets sent, marked
// failed, or left pending for the next sweep.
type Dispatcher struct {
	repo     queue
	contacts contactBook
	email    EmailSender
	logger   *logging.Logger
}

// NewDispatcher wires a dispatcher. A nil email sender downgrades every
// delivery to a log line via the stub.
func NewDispatcher(repo queue, contacts contactBook, email EmailSender, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &Dispatcher{repo: repo, contacts: contacts, email: email, logger: logger}
}

// DispatchPending makes one delivery sweep and returns how many rows were
// sent.
func (d *Dispatcher) DispatchPending(ctx context.Context) int {
	pending, err := d.repo.Pending(ctx, 20)
	if err != nil {
		d.logger.Error("notification sweep failed", "error", err)
		return 0
	}

	sent := 0
	for _, n := range pending {
		if err := d.deliver(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed", "notification_id", n.ID, "error", err)
			continue
		}
		if err := d.repo.MarkSent(ctx, n.ID); err != nil {
			d.logger.Error("notification mark sent failed", "notification_id", n.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) error {
	to, toName, err := d.resolve(ctx, n)
	if err != nil {
		return err
	}
	if to == "" {
		// No address on file. Drop the row rather than retrying forever.
		d.logger.Info("notification recipient has no email, skipping",
			"notification_id", n.ID, "recipient_type", n.RecipientType)
		return d.repo.MarkFailed(ctx, n.ID)
	}
	return d.email.Send(ctx, EmailMessage{
		To:      to,
		ToName:  toName,
		Subject: subjectFor(n.Type),
		Body:    n.Message,
	})
}

func (d *Dispatcher) resolve(ctx context.Context, n Notification) (email, name string, err error) {
	switch n.RecipientType {
	case RecipientNurse:
		nurse, err := d.contacts.NurseByID(ctx, n.RecipientID)
		if err != nil {
			return "", "", err
		}
		return nurse.Email, nurse.Name, nil
	default:
		patient, err := d.contacts.PatientByID(ctx, n.RecipientID)
		if err != nil {
			return "", "", err
		}
		return patient.Email, patient.Name, nil
	}
}

func subjectFor(notificationType string) string {
	switch notificationType {
	case "appointment_confirmed":
		return "Your appointment is confirmed"
	case "appointment_assigned":
		return "New appointment on your schedule"
	case "appointment_cancelled":
		return "Appointment cancelled"
	}
	return "Care scheduling update"
}

// Run sweeps on a fixed interval until the context ends.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchPending(ctx)
		}
	}
}
