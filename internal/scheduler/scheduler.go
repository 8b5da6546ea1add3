// Package scheduler computes the time-offset notification jobs owed to a new
// registration and hands them to the delayed job queue.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/notifications/internal/models"
	"github.com/aura-webinar/notifications/pkg/queue"
)

// Enqueuer is the slice of the job queue the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, priority int, delay time.Duration, payload queue.Payload) error
}

// reminderOffsets are the offsets before the webinar start at which reminder
// jobs fire. A reminder whose fire time is already past is skipped entirely.
var reminderOffsets = []struct {
	kind     string
	offset   time.Duration
	priority int
}{
	{queue.KindReminder24h, 24 * time.Hour, queue.PriorityReminder},
	{queue.KindReminder3h, 3 * time.Hour, queue.PriorityReminder},
	{queue.KindReminder15m, 15 * time.Minute, queue.PriorityReminder15m},
}

// Scheduler emits notification jobs for newly created registrations.
type Scheduler struct {
	queue  Enqueuer
	logger *zap.Logger
	now    func() time.Time
}

// New creates a notification scheduler.
func New(q Enqueuer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{queue: q, logger: logger, now: time.Now}
}

// Schedule enqueues the confirmation job (immediately due) and each reminder
// whose fire time is still in the future. Enqueue failures are logged and
// swallowed: scheduling is best-effort and must never fail the registration
// that triggered it.
func (s *Scheduler) Schedule(ctx context.Context, reg *models.Registration, w *models.Webinar) {
	now := s.now()
	payload := queue.Payload{
		RegistrationID:   reg.ID,
		RegistrationCode: reg.Code,
		Email:            reg.Email,
		FirstName:        reg.FirstName,
		WebinarID:        w.ID,
		WebinarTopic:     w.Topic,
		ScheduledAt:      w.ScheduledAt,
	}

	if err := s.queue.Enqueue(ctx, queue.KindConfirmation, queue.PriorityConfirmation, 0, payload); err != nil {
		s.logger.Error("enqueue confirmation failed",
			zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}

	if w.ScheduledAt == nil {
		return
	}
	for _, r := range reminderOffsets {
		fireAt := w.ScheduledAt.Add(-r.offset)
		if !fireAt.After(now) {
			continue
		}
		if err := s.queue.Enqueue(ctx, r.kind, r.priority, fireAt.Sub(now), payload); err != nil {
			s.logger.Error("enqueue reminder failed",
				zap.Error(err), zap.String("kind", r.kind), zap.String("registration_id", reg.ID.String()))
		}
	}
}
