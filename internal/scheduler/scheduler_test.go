package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/notifications/internal/models"
	"github.com/aura-webinar/notifications/pkg/queue"
)

type enqueued struct {
	kind     string
	priority int
	delay    time.Duration
	payload  queue.Payload
}

type fakeQueue struct {
	jobs []enqueued
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, kind string, priority int, delay time.Duration, payload queue.Payload) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueued{kind: kind, priority: priority, delay: delay, payload: payload})
	return nil
}

func newTestScheduler(q Enqueuer, now time.Time) *Scheduler {
	s := New(q, nil)
	s.now = func() time.Time { return now }
	return s
}

func testFixtures(scheduledAt *time.Time) (*models.Registration, *models.Webinar) {
	reg := &models.Registration{
		ID:        uuid.New(),
		Email:     "jane@example.com",
		FirstName: "Jane",
		Code:      "WEB-1735689600000-4K7Q2M9XA",
	}
	w := &models.Webinar{
		ID:          uuid.New(),
		ExternalID:  "q3-launch",
		Topic:       "Q3 Product Launch",
		ScheduledAt: scheduledAt,
	}
	reg.WebinarID = w.ID
	return reg, w
}

func TestSchedule_NoScheduledAt_OnlyConfirmation(t *testing.T) {
	q := &fakeQueue{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reg, w := testFixtures(nil)

	newTestScheduler(q, now).Schedule(context.Background(), reg, w)

	require.Len(t, q.jobs, 1)
	assert.Equal(t, queue.KindConfirmation, q.jobs[0].kind)
	assert.Equal(t, queue.PriorityConfirmation, q.jobs[0].priority)
	assert.Equal(t, time.Duration(0), q.jobs[0].delay)
}

func TestSchedule_SkipIfPast(t *testing.T) {
	q := &fakeQueue{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Webinar starts in 90 minutes: 24h and 3h reminders are already past,
	// the 15m reminder fires in 75 minutes.
	scheduledAt := now.Add(90 * time.Minute)
	reg, w := testFixtures(&scheduledAt)

	newTestScheduler(q, now).Schedule(context.Background(), reg, w)

	require.Len(t, q.jobs, 2)
	assert.Equal(t, queue.KindConfirmation, q.jobs[0].kind)
	assert.Equal(t, queue.KindReminder15m, q.jobs[1].kind)
	assert.Equal(t, queue.PriorityReminder15m, q.jobs[1].priority)
	assert.Equal(t, 75*time.Minute, q.jobs[1].delay)
}

func TestSchedule_FarFuture_AllReminders(t *testing.T) {
	q := &fakeQueue{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduledAt := now.Add(48 * time.Hour)
	reg, w := testFixtures(&scheduledAt)

	newTestScheduler(q, now).Schedule(context.Background(), reg, w)

	require.Len(t, q.jobs, 4)
	assert.Equal(t, queue.KindConfirmation, q.jobs[0].kind)
	assert.Equal(t, queue.KindReminder24h, q.jobs[1].kind)
	assert.Equal(t, 24*time.Hour, q.jobs[1].delay)
	assert.Equal(t, queue.PriorityReminder, q.jobs[1].priority)
	assert.Equal(t, queue.KindReminder3h, q.jobs[2].kind)
	assert.Equal(t, 45*time.Hour, q.jobs[2].delay)
	assert.Equal(t, queue.KindReminder15m, q.jobs[3].kind)
	assert.Equal(t, 48*time.Hour-15*time.Minute, q.jobs[3].delay)
}

func TestSchedule_PayloadIsDenormalized(t *testing.T) {
	q := &fakeQueue{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduledAt := now.Add(48 * time.Hour)
	reg, w := testFixtures(&scheduledAt)

	newTestScheduler(q, now).Schedule(context.Background(), reg, w)

	require.NotEmpty(t, q.jobs)
	p := q.jobs[0].payload
	assert.Equal(t, reg.ID, p.RegistrationID)
	assert.Equal(t, reg.Code, p.RegistrationCode)
	assert.Equal(t, "jane@example.com", p.Email)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, w.ID, p.WebinarID)
	assert.Equal(t, "Q3 Product Launch", p.WebinarTopic)
	require.NotNil(t, p.ScheduledAt)
	assert.Equal(t, scheduledAt, *p.ScheduledAt)
}

func TestSchedule_EnqueueFailureIsSwallowed(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduledAt := now.Add(48 * time.Hour)
	reg, w := testFixtures(&scheduledAt)

	// Must not panic or propagate the error.
	newTestScheduler(q, now).Schedule(context.Background(), reg, w)
	assert.Empty(t, q.jobs)
}
