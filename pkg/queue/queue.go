package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// KeyScheduled is the Redis sorted set holding delayed notification jobs,
	// scored by fire time.
	KeyScheduled = "notify:scheduled"
	// KeyDLQ is the dead-letter list for jobs that exhausted their retries.
	KeyDLQ = "notify:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay applied when a failed job is re-enqueued.
	RetryBackoff = 10 * time.Second
)

// Job kinds, one per notification. Kept in sync with the sent flags on the
// registration row.
const (
	KindConfirmation = "confirmation"
	KindReminder24h  = "reminder_24h"
	KindReminder3h   = "reminder_3h"
	KindReminder15m  = "reminder_15m"
)

// Job priorities. Lower fires first when two jobs share a fire time.
const (
	PriorityConfirmation = 1
	PriorityReminder     = 2
	PriorityReminder15m  = 3
)

// Payload carries everything the dispatch worker needs to send one email,
// denormalized so the worker does not read the registration back.
type Payload struct {
	RegistrationID   uuid.UUID  `json:"registration_id"`
	RegistrationCode string     `json:"registration_code"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	WebinarID        uuid.UUID  `json:"webinar_id"`
	WebinarTopic     string     `json:"webinar_topic"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
}

// Job is the queue envelope for one scheduled notification.
type Job struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Priority  int       `json:"priority"`
	FireAt    time.Time `json:"fire_at"`
	Payload   Payload   `json:"payload"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue is a Redis-backed delayed job queue. Jobs live in a sorted set until
// due; a worker claims a job by removing its member, so each job is consumed
// at most once even with concurrent workers.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a Redis-backed delayed queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// score encodes fire time and priority into one sortable value. Priority only
// breaks ties between jobs due at the same millisecond.
func score(fireAt time.Time, priority int) float64 {
	return float64(fireAt.UnixMilli()*10 + int64(priority))
}

// Enqueue schedules a job to fire after delay. Negative delays are clamped to
// zero, making the job immediately due.
func (q *Queue) Enqueue(ctx context.Context, kind string, priority int, delay time.Duration, payload Payload) error {
	if delay < 0 {
		delay = 0
	}
	now := time.Now()
	job := Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Priority:  priority,
		FireAt:    now.Add(delay),
		Payload:   payload,
		Attempt:   0,
		CreatedAt: now,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.ZAdd(ctx, KeyScheduled, redis.Z{Score: score(job.FireAt, priority), Member: raw}).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	q.logger.Debug("enqueued notification job",
		zap.String("job_id", job.ID),
		zap.String("kind", kind),
		zap.Time("fire_at", job.FireAt),
		zap.String("registration_id", payload.RegistrationID.String()),
	)
	return nil
}

// DequeueDue returns up to limit jobs whose fire time has passed, ordered by
// fire time then priority. A job is returned only if this caller removed its
// member, so two workers never process the same job.
func (q *Queue) DequeueDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	members, err := q.client.ZRangeByScore(ctx, KeyScheduled, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()*10+9),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore: %w", err)
	}

	var jobs []*Job
	for _, m := range members {
		removed, err := q.client.ZRem(ctx, KeyScheduled, m).Result()
		if err != nil {
			return jobs, fmt.Errorf("zrem: %w", err)
		}
		if removed == 0 {
			// Another worker claimed it first.
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			q.logger.Warn("invalid job payload dropped", zap.String("raw", m), zap.Error(err))
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// Retry re-enqueues a job with incremented attempt after RetryBackoff. If the
// job has exhausted MaxRetries it is pushed to the DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		raw, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		if err := q.client.RPush(ctx, KeyDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}

	job.FireAt = time.Now().Add(RetryBackoff)
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.ZAdd(ctx, KeyScheduled, redis.Z{Score: score(job.FireAt, job.Priority), Member: raw}).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
