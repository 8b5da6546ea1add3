// Package worker drains due notification jobs and hands them to the email
// delivery provider.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/notifications/internal/models"
	"github.com/aura-webinar/notifications/pkg/mailer"
	"github.com/aura-webinar/notifications/pkg/queue"
)

const (
	pollInterval = time.Second
	batchSize    = 50
)

// JobSource is the queue surface the dispatcher consumes.
type JobSource interface {
	DequeueDue(ctx context.Context, now time.Time, limit int) ([]*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// SentMarker flips the per-kind sent flag after a successful delivery.
type SentMarker interface {
	MarkSent(ctx context.Context, registrationID uuid.UUID, kind string) error
}

// LogWriter records dispatch attempts.
type LogWriter interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// Dispatcher fires due notification jobs: render, send, mark sent. Failed
// sends go back to the queue's retry path; delivery is at-least-once overall.
type Dispatcher struct {
	jobs   JobSource
	sender mailer.Sender
	store  SentMarker
	logs   LogWriter
	logger *zap.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(jobs JobSource, sender mailer.Sender, store SentMarker, logs LogWriter, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{jobs: jobs, sender: sender, store: store, logs: logs, logger: logger}
}

// Process executes one job. An error means the send failed and the job should
// be retried; everything after a successful send is best-effort only, because
// retrying a delivered email would duplicate it.
func (d *Dispatcher) Process(ctx context.Context, job *queue.Job) error {
	email := renderEmail(job)
	msgID, err := d.sender.Send(ctx, job.Payload.Email, email.Subject, email.HTML, email.Text)
	now := time.Now()
	if err != nil {
		d.writeLog(ctx, job, &models.EmailLog{
			Status:       models.EmailLogStatusFailed,
			Subject:      email.Subject,
			ErrorMessage: err.Error(),
		})
		return err
	}

	d.writeLog(ctx, job, &models.EmailLog{
		Status:            models.EmailLogStatusSent,
		Subject:           email.Subject,
		ProviderMessageID: msgID,
		SentAt:            &now,
	})
	if err := d.store.MarkSent(ctx, job.Payload.RegistrationID, job.Kind); err != nil {
		d.logger.Error("mark sent failed",
			zap.Error(err), zap.String("registration_id", job.Payload.RegistrationID.String()), zap.String("kind", job.Kind))
	}
	return nil
}

func (d *Dispatcher) writeLog(ctx context.Context, job *queue.Job, el *models.EmailLog) {
	el.WebinarID = job.Payload.WebinarID
	el.RegistrationID = job.Payload.RegistrationID
	el.EmailType = job.Kind
	el.RecipientEmail = job.Payload.Email
	if err := d.logs.Create(ctx, el); err != nil {
		d.logger.Warn("email log write failed", zap.Error(err), zap.String("job_id", job.ID))
	}
}

// Run polls for due jobs until ctx is done. Failed jobs go through the
// queue's retry/DLQ policy; the loop itself never stops on job errors.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatch worker stopping")
			return
		case <-ticker.C:
		}

		jobs, err := d.jobs.DequeueDue(ctx, time.Now(), batchSize)
		if err != nil {
			d.logger.Warn("dequeue due jobs failed", zap.Error(err))
			continue
		}
		for _, job := range jobs {
			d.logger.Debug("dispatching job", zap.String("job_id", job.ID), zap.String("kind", job.Kind))
			if err := d.Process(ctx, job); err != nil {
				d.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
				if reErr := d.jobs.Retry(ctx, job); reErr != nil {
					d.logger.Error("retry enqueue failed", zap.Error(reErr), zap.String("job_id", job.ID))
				}
			}
		}
	}
}
