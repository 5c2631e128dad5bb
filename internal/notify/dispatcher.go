package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/esthetix/clinic-portal/internal/appointments"
	"github.com/esthetix/clinic-portal/internal/observability/metrics"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// emailJob is the queue payload: a fully composed email plus its kind for
// logging and metrics.
type emailJob struct {
	Kind    string       `json:"kind"`
	Message EmailMessage `json:"message"`
}

// Publisher enqueues composed appointment emails onto the outbox queue. It
// implements the booking and workflow services' notifier interface.
type Publisher struct {
	queue   queueClient
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewPublisher wires a publisher onto the queue. metrics may be nil.
func NewPublisher(queue queueClient, m *metrics.BookingMetrics, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, metrics: m, logger: logger}
}

func (p *Publisher) enqueue(ctx context.Context, kind string, msg EmailMessage) error {
	if msg.To == "" {
		p.logger.Warn("skipping email with no recipient", "kind", kind)
		return nil
	}
	body, err := json.Marshal(emailJob{Kind: kind, Message: msg})
	if err != nil {
		return fmt.Errorf("notify: marshal %s email: %w", kind, err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return err
	}
	p.logger.Info("email queued", "kind", kind, "to", msg.To)
	return nil
}

// BookingConfirmation queues the booking-received email.
func (p *Publisher) BookingConfirmation(ctx context.Context, appt appointments.Appointment) error {
	return p.enqueue(ctx, "booking", ComposeBookingConfirmation(appt))
}

// StatusUpdate queues the status-change email.
func (p *Publisher) StatusUpdate(ctx context.Context, appt appointments.Appointment) error {
	return p.enqueue(ctx, "status", ComposeStatusUpdate(appt))
}

// Worker drains the outbox queue and hands each email to the sender.
type Worker struct {
	queue   queueClient
	sender  EmailSender
	metrics *metrics.BookingMetrics
	logger  *logging.Logger

	waitSeconds int
	batchSize   int
}

// NewWorker wires a worker onto the queue and sender. metrics may be nil.
func NewWorker(queue queueClient, sender EmailSender, m *metrics.BookingMetrics, logger *logging.Logger, waitSeconds, batchSize int) *Worker {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if sender == nil {
		panic("notify: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if waitSeconds <= 0 {
		waitSeconds = 10
	}
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Worker{
		queue:       queue,
		sender:      sender,
		metrics:     m,
		logger:      logger,
		waitSeconds: waitSeconds,
		batchSize:   batchSize,
	}
}

// Run polls the queue until ctx is cancelled. Failed sends are left on the
// queue for redelivery; malformed payloads are deleted so they cannot wedge
// the outbox.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("notification worker started", "wait_seconds", w.waitSeconds, "batch_size", w.batchSize)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopping")
			return ctx.Err()
		default:
		}

		messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("failed to receive outbox messages", "error", err)
			continue
		}
		for _, msg := range messages {
			w.process(ctx, msg)
		}
	}
}

func (w *Worker) process(ctx context.Context, msg queueMessage) {
	var job emailJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("dropping malformed outbox message", "message_id", msg.ID, "error", err)
		if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
			w.logger.Error("failed to delete malformed message", "message_id", msg.ID, "error", err)
		}
		return
	}

	if err := w.sender.Send(ctx, job.Message); err != nil {
		w.metrics.ObserveNotification(job.Kind, "send_failed")
		w.logger.Error("email send failed, leaving message for retry",
			"kind", job.Kind, "to", job.Message.To, "error", err)
		return
	}

	w.metrics.ObserveNotification(job.Kind, "sent")
	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Error("failed to delete sent message", "message_id", msg.ID, "error", err)
	}
}
