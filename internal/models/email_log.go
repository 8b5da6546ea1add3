package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailLog status values.
const (
	EmailLogStatusSent   = "sent"
	EmailLogStatusFailed = "failed"
)

// EmailLog records one outbound notification attempt.
type EmailLog struct {
	ID                uuid.UUID  `json:"id"`
	WebinarID         uuid.UUID  `json:"webinar_id"`
	RegistrationID    uuid.UUID  `json:"registration_id"`
	EmailType         string     `json:"email_type"` // notification kind, e.g. "confirmation"
	RecipientEmail    string     `json:"recipient_email"`
	Subject           string     `json:"subject,omitempty"`
	Status            string     `json:"status"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
