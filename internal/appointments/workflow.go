package appointments

import (
	"context"
	"fmt"

	"github.com/esthetix/clinic-portal/internal/observability/metrics"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// Workflow performs the admin-side appointment transitions.
type Workflow struct {
	store    *Store
	notifier Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewWorkflow wires the admin workflow. notifier and metrics may be nil.
func NewWorkflow(store *Store, notifier Notifier, m *metrics.BookingMetrics, logger *logging.Logger) *Workflow {
	if store == nil {
		panic("appointments: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{store: store, notifier: notifier, metrics: m, logger: logger}
}

// List returns every appointment for the admin dashboard.
func (w *Workflow) List(ctx context.Context) ([]Appointment, error) {
	return w.store.List(ctx)
}

// SetStatus moves one appointment to the given status. Rejecting releases
// the slot in the same transaction as the status write, so the hour opens
// back up the moment the rejection lands. The returned warning is non-empty
// when the transition succeeded but the status email could not be queued.
func (w *Workflow) SetStatus(ctx context.Context, id string, status Status) (Appointment, string, error) {
	// Pending is the initial state only; no transition leads back to it.
	if !status.Valid() || status == StatusPending {
		return Appointment{}, "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	appt, err := w.store.Get(ctx, id)
	if err != nil {
		return Appointment{}, "", err
	}

	if status == StatusRejected && appt.SlotID != "" {
		err = w.store.UpdateStatusReleasingSlot(ctx, id, status, appt.SlotID)
	} else {
		err = w.store.UpdateStatus(ctx, id, status)
	}
	if err != nil {
		return Appointment{}, "", err
	}

	appt.Status = status
	w.metrics.ObserveStatusChange(string(status))
	w.logger.Info("appointment status changed",
		"appointment_id", id, "status", status)

	warning := ""
	if w.notifier != nil {
		if err := w.notifier.StatusUpdate(ctx, appt); err != nil {
			w.metrics.ObserveNotification("status", "failed")
			w.logger.Error("failed to queue status email",
				"appointment_id", id, "error", err)
			warning = "status updated, but the notification email could not be sent"
		} else {
			w.metrics.ObserveNotification("status", "queued")
		}
	}
	return appt, warning, nil
}

// SetStatusBatch applies the transition to each id, continuing past
// failures. It returns how many transitions succeeded.
func (w *Workflow) SetStatusBatch(ctx context.Context, ids []string, status Status) (int, error) {
	if !status.Valid() || status == StatusPending {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	updated := 0
	for _, id := range ids {
		if _, _, err := w.SetStatus(ctx, id, status); err != nil {
			w.logger.Error("batch status update skipped appointment",
				"appointment_id", id, "status", status, "error", err)
			continue
		}
		updated++
	}
	return updated, nil
}

// DeleteBatch removes each appointment, continuing past failures. It returns
// how many deletions succeeded.
func (w *Workflow) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := w.Delete(ctx, id); err != nil {
			w.logger.Error("batch delete skipped appointment",
				"appointment_id", id, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Delete removes the appointment record. The slot it occupied is left
// untouched: deletion is bookkeeping, rejection is the transition that
// frees the hour.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if _, err := w.store.Get(ctx, id); err != nil {
		return err
	}
	if err := w.store.Delete(ctx, id); err != nil {
		return err
	}
	w.logger.Info("appointment deleted", "appointment_id", id)
	return nil
}
