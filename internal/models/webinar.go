package models

import (
	"time"

	"github.com/google/uuid"
)

// Webinar status values.
const (
	WebinarStatusScheduled = "scheduled"
	WebinarStatusLive      = "live"
	WebinarStatusCompleted = "completed"
)

// Webinar represents a webinar session. Rows are created on first reference
// by external ID and are never deleted by this service.
type Webinar struct {
	ID          uuid.UUID  `json:"id"`
	ExternalID  string     `json:"external_id"` // human slug used by clients, e.g. "q3-product-launch"
	Topic       string     `json:"topic"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Capacity    int        `json:"capacity"` // 0 = unlimited
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
